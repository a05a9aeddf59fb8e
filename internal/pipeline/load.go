package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/correlator-io/trainhub/internal/features"
	"github.com/correlator-io/trainhub/internal/jobs"
	"github.com/correlator-io/trainhub/internal/kinderr"
	"github.com/correlator-io/trainhub/internal/storage"
)

// featureSource is the subset of *features.Store the Load stage depends on.
type featureSource interface {
	ComputeFeatureSet(ctx context.Context, tenant, asset, setName string, ts time.Time) (features.Vector, error)
}

// Load builds a time-ordered Dataset for the job's configured feature set,
// asset list, and date range: one row per (asset, hour) with the computed
// feature vector and the target measurement horizon hours ahead (spec §4.6
// Load stage). Unlike original_source/training_pipeline.py::_load_features,
// which generates synthetic np.random data as a placeholder, this queries
// the real Feature Store and the real measurement table.
func Load(ctx context.Context, conn *storage.Connection, fs featureSource, tenant string, cfg jobs.TrainingConfig) (Dataset, error) {
	if len(cfg.AssetIDs) == 0 {
		return Dataset{}, kinderr.New(kinderr.Validation, "training config has no asset_ids")
	}

	var rows []Row

	nameSet := make(map[string]bool)

	for _, asset := range cfg.AssetIDs {
		for ts := cfg.RangeStart; ts.Before(cfg.RangeEnd); ts = ts.Add(time.Hour) {
			vec, err := fs.ComputeFeatureSet(ctx, tenant, asset, cfg.FeatureSet, ts)
			if err != nil {
				return Dataset{}, kinderr.Wrap(kinderr.Internal, "compute feature set failed", err)
			}

			targetTs := ts.Add(time.Duration(cfg.Horizon) * time.Hour)

			target, ok, err := targetValue(ctx, conn, tenant, asset, targetTs)
			if err != nil {
				return Dataset{}, err
			}

			if !ok {
				continue // no ground-truth target available at this horizon yet
			}

			for name := range vec {
				nameSet[name] = true
			}

			rows = append(rows, Row{AssetID: asset, Timestamp: ts, Features: vec, Target: target})
		}
	}

	if len(rows) == 0 {
		return Dataset{}, kinderr.New(kinderr.NotFound, "no training rows available for the configured range")
	}

	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}

	sort.Strings(names)

	return Dataset{FeatureNames: names, Rows: rows}, nil
}

func targetValue(ctx context.Context, conn *storage.Connection, tenant, asset string, ts time.Time) (float64, bool, error) {
	const q = `SELECT value FROM raw_measurements WHERE tenant_id = $1 AND asset_id = $2 AND ts = $3`

	var value float64

	err := conn.QueryRowContext(ctx, q, tenant, asset, ts).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, kinderr.Wrap(kinderr.Internal, fmt.Sprintf("target lookup failed for %s at %s", asset, ts), err)
	}

	return value, true, nil
}
