package experiments

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/correlator-io/trainhub/internal/kinderr"
	"github.com/correlator-io/trainhub/internal/storage"
)

// ErrDuplicateExperiment is returned when (tenant, name) already exists.
var ErrDuplicateExperiment = errors.New("experiment already exists for tenant")

// Tracker is the Experiment Tracker (spec §4.4). Tracker exclusively writes
// Experiment/Run/Param/Metric rows (spec §3 Ownership).
type Tracker struct {
	conn   *storage.Connection
	logger *slog.Logger
}

// New constructs a Tracker.
func New(conn *storage.Connection, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Tracker{conn: conn, logger: logger}
}

// CreateExperiment registers a new experiment under (tenant, name).
func (t *Tracker) CreateExperiment(ctx context.Context, tenant, modelType, name string) (*Experiment, error) {
	exp := &Experiment{
		ID: uuid.New(), TenantID: tenant, ModelType: modelType, Name: name, CreatedAt: time.Now().UTC(),
	}

	const q = `INSERT INTO experiments (id, tenant_id, model_type, name, created_at) VALUES ($1,$2,$3,$4,$5)`

	_, err := t.conn.ExecContext(ctx, q, exp.ID, exp.TenantID, exp.ModelType, exp.Name, exp.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, kinderr.Wrap(kinderr.Conflict, ErrDuplicateExperiment.Error(), err)
		}

		return nil, kinderr.Wrap(kinderr.Internal, "create experiment failed", err)
	}

	return exp, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && (contains(err.Error(), "duplicate key") || contains(err.Error(), "unique constraint"))
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}

		return false
	})()
}

// StartRun begins a new run within an experiment.
func (t *Tracker) StartRun(ctx context.Context, experimentID uuid.UUID, name string, tags map[string]string) (*Run, error) {
	run := &Run{
		ID: uuid.New(), ExperimentID: experimentID, Name: name, Status: RunRunning,
		Tags: tags, StartedAt: time.Now().UTC(),
	}

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	const q = `
		INSERT INTO runs (id, experiment_id, name, status, tags, started_at)
		VALUES ($1,$2,$3,$4,$5,$6)`

	if _, err := t.conn.ExecContext(ctx, q, run.ID, run.ExperimentID, run.Name, run.Status, tagsJSON, run.StartedAt); err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, "start run failed", err)
	}

	return run, nil
}

// EndRun transitions a run to a terminal status and records its artifact
// location (if any) and end time.
func (t *Tracker) EndRun(ctx context.Context, runID uuid.UUID, status RunStatus, artifactURI *string) error {
	now := time.Now().UTC()

	const q = `UPDATE runs SET status = $2, artifact_uri = $3, ended_at = $4 WHERE id = $1`

	res, err := t.conn.ExecContext(ctx, q, runID, status, artifactURI, now)
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, "end run failed", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return kinderr.New(kinderr.NotFound, fmt.Sprintf("run %s not found", runID))
	}

	return nil
}

// LogParam records a single hyperparameter key/value for a run.
func (t *Tracker) LogParam(ctx context.Context, runID uuid.UUID, key, value string) error {
	const q = `
		INSERT INTO run_params (run_id, key, value) VALUES ($1,$2,$3)
		ON CONFLICT (run_id, key) DO UPDATE SET value = EXCLUDED.value`

	_, err := t.conn.ExecContext(ctx, q, runID, key, value)
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, "log param failed", err)
	}

	return nil
}

// LogTrainingConfig flattens an arbitrary nested configuration document into
// dot-joined param keys and logs each, matching
// original_source/experiment_tracker.py::log_training_config exactly: list
// and array leaves are stringified with fmt.Sprintf("%v", ...), nested maps
// are recursed into. It additionally logs the JSON encoding of the full
// config as the "_config_json" param; no artifact file is written.
func (t *Tracker) LogTrainingConfig(ctx context.Context, runID uuid.UUID, config map[string]any) error {
	flat := make(map[string]string)
	flattenConfig("", config, flat)

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		if err := t.LogParam(ctx, runID, k, flat[k]); err != nil {
			return err
		}
	}

	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal training config: %w", err)
	}

	return t.LogParam(ctx, runID, "_config_json", string(data))
}

func flattenConfig(prefix string, v any, out map[string]string) {
	switch val := v.(type) {
	case map[string]any:
		for k, sub := range val {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}

			flattenConfig(key, sub, out)
		}
	default:
		out[prefix] = fmt.Sprintf("%v", val)
	}
}

// LogMetric records one metric observation at a training step.
func (t *Tracker) LogMetric(ctx context.Context, runID uuid.UUID, key string, value float64, step int) error {
	const q = `
		INSERT INTO run_metrics (run_id, key, value, step, ts_millis)
		VALUES ($1,$2,$3,$4,$5)`

	_, err := t.conn.ExecContext(ctx, q, runID, key, value, step, time.Now().UTC().UnixMilli())
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, "log metric failed", err)
	}

	return nil
}

// GetRun returns a run by id.
func (t *Tracker) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	const q = `SELECT id, experiment_id, name, status, artifact_uri, tags, started_at, ended_at FROM runs WHERE id = $1`

	var (
		run         Run
		tagsJSON    []byte
		artifactURI sql.NullString
	)

	err := t.conn.QueryRowContext(ctx, q, runID).Scan(
		&run.ID, &run.ExperimentID, &run.Name, &run.Status, &artifactURI, &tagsJSON, &run.StartedAt, &run.EndedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kinderr.New(kinderr.NotFound, fmt.Sprintf("run %s not found", runID))
	}

	if err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, "get run failed", err)
	}

	if artifactURI.Valid {
		run.ArtifactURI = &artifactURI.String
	}

	if len(tagsJSON) > 0 {
		_ = json.Unmarshal(tagsJSON, &run.Tags)
	}

	return &run, nil
}

// SearchRuns lists runs matching filters, newest first.
func (t *Tracker) SearchRuns(ctx context.Context, filters SearchFilters) ([]Run, error) {
	q := `SELECT id, experiment_id, name, status, artifact_uri, tags, started_at, ended_at FROM runs WHERE experiment_id = $1`
	args := []any{filters.ExperimentID}

	if filters.Status != "" {
		args = append(args, filters.Status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}

	if filters.TagKey != "" {
		args = append(args, filters.TagKey, filters.TagValue)
		q += fmt.Sprintf(" AND tags->>$%d = $%d", len(args)-1, len(args))
	}

	q += " ORDER BY started_at DESC"

	rows, err := t.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, "search runs failed", err)
	}
	defer rows.Close()

	var runs []Run

	for rows.Next() {
		var (
			run         Run
			tagsJSON    []byte
			artifactURI sql.NullString
		)

		if err := rows.Scan(&run.ID, &run.ExperimentID, &run.Name, &run.Status, &artifactURI, &tagsJSON, &run.StartedAt, &run.EndedAt); err != nil {
			return nil, kinderr.Wrap(kinderr.Internal, "scan run failed", err)
		}

		if artifactURI.Valid {
			run.ArtifactURI = &artifactURI.String
		}

		if len(tagsJSON) > 0 {
			_ = json.Unmarshal(tagsJSON, &run.Tags)
		}

		runs = append(runs, run)
	}

	return runs, nil
}

// finalMetricValues returns, for every run in the experiment, the latest
// (highest-step) logged value of metricKey.
func (t *Tracker) finalMetricValues(ctx context.Context, experimentID uuid.UUID, metricKey string) ([]float64, error) {
	const q = `
		SELECT DISTINCT ON (rm.run_id) rm.value
		FROM run_metrics rm
		JOIN runs r ON r.id = rm.run_id
		WHERE r.experiment_id = $1 AND rm.key = $2
		ORDER BY rm.run_id, rm.step DESC`

	rows, err := t.conn.QueryContext(ctx, q, experimentID, metricKey)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, "final metric values failed", err)
	}
	defer rows.Close()

	var values []float64

	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, kinderr.Wrap(kinderr.Internal, "scan metric value failed", err)
		}

		values = append(values, v)
	}

	return values, nil
}

// GetStats computes count/mean/std/min/max for metricKey across an
// experiment's runs, using each run's final logged value (spec §4.4).
func (t *Tracker) GetStats(ctx context.Context, experimentID uuid.UUID, metricKey string) (*Stats, error) {
	values, err := t.finalMetricValues(ctx, experimentID, metricKey)
	if err != nil {
		return nil, err
	}

	if len(values) == 0 {
		return &Stats{}, nil
	}

	stats := &Stats{Count: len(values), Min: values[0], Max: values[0]}

	sum := 0.0
	for _, v := range values {
		sum += v

		if v < stats.Min {
			stats.Min = v
		}

		if v > stats.Max {
			stats.Max = v
		}
	}

	stats.Mean = sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - stats.Mean
		variance += d * d
	}

	stats.Std = math.Sqrt(variance / float64(len(values)))

	return stats, nil
}

// BestRun returns the run with the best (min or max, per maximize) final
// value of metricKey.
func (t *Tracker) BestRun(ctx context.Context, experimentID uuid.UUID, metricKey string, maximize bool) (*Run, error) {
	const q = `
		SELECT DISTINCT ON (rm.run_id) rm.run_id, rm.value
		FROM run_metrics rm
		JOIN runs r ON r.id = rm.run_id
		WHERE r.experiment_id = $1 AND rm.key = $2
		ORDER BY rm.run_id, rm.step DESC`

	rows, err := t.conn.QueryContext(ctx, q, experimentID, metricKey)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, "best run query failed", err)
	}
	defer rows.Close()

	var (
		bestID    uuid.UUID
		bestValue float64
		found     bool
	)

	for rows.Next() {
		var (
			id    uuid.UUID
			value float64
		)

		if err := rows.Scan(&id, &value); err != nil {
			return nil, kinderr.Wrap(kinderr.Internal, "scan best run failed", err)
		}

		if !found || (maximize && value > bestValue) || (!maximize && value < bestValue) {
			bestID, bestValue, found = id, value, true
		}
	}

	if !found {
		return nil, kinderr.New(kinderr.NotFound, "no runs with that metric")
	}

	return t.GetRun(ctx, bestID)
}
