package features

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/parquet-go/parquet-go"

	"github.com/correlator-io/trainhub/internal/kinderr"
)

// exportObjectStore is the subset of *objectstore.Gateway the exporter
// depends on.
type exportObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// ExportStatus is the terminal state of a feature export job (spec §4.2
// "Feature export").
type ExportStatus string

const (
	ExportCompleted ExportStatus = "completed"
	ExportNoData    ExportStatus = "no_data"
	ExportFailed    ExportStatus = "failed"
)

// Row is a single exported feature observation, flattened to a fixed set of
// columns. Of the forecast_full members, day_of_month, month, quarter,
// hourly_min and hourly_max have no column and are not exported. Feature
// sets that don't populate a given column simply leave it nil; parquet
// encodes nil pointer fields as the column's null value.
type Row struct {
	Tenant        string    `parquet:"tenant"`
	AssetID       string    `parquet:"asset_id"`
	Timestamp     time.Time `parquet:"timestamp,timestamp"`
	HourOfDay     *float64  `parquet:"hour_of_day,optional"`
	DayOfWeek     *float64  `parquet:"day_of_week,optional"`
	IsWeekend     *float64  `parquet:"is_weekend,optional"`
	HourlyMean    *float64  `parquet:"hourly_mean,optional"`
	HourlyStd     *float64  `parquet:"hourly_std,optional"`
	HourlyCV      *float64  `parquet:"hourly_cv,optional"`
	DailyMean     *float64  `parquet:"daily_mean,optional"`
	DailyStd      *float64  `parquet:"daily_std,optional"`
	Lag1h         *float64  `parquet:"lag_1h,optional"`
	Lag24h        *float64  `parquet:"lag_24h,optional"`
	Lag168h       *float64  `parquet:"lag_168h,optional"`
	Rolling24hMean  *float64 `parquet:"rolling_24h_mean,optional"`
	Rolling24hStd   *float64 `parquet:"rolling_24h_std,optional"`
	Rolling168hMean *float64 `parquet:"rolling_168h_mean,optional"`
	Rolling168hStd  *float64 `parquet:"rolling_168h_std,optional"`
	WeatherTempC  *float64  `parquet:"weather_temperature_c,optional"`
	WeatherHumid  *float64  `parquet:"weather_humidity_pct,optional"`
	WeatherWind   *float64  `parquet:"weather_wind_mps,optional"`
}

func ptr(v Vector, key string) *float64 {
	if val, ok := v[key]; ok {
		return &val
	}

	return nil
}

func toRow(tenant, asset string, ts time.Time, v Vector) Row {
	return Row{
		Tenant: tenant, AssetID: asset, Timestamp: ts,
		HourOfDay: ptr(v, "hour_of_day"), DayOfWeek: ptr(v, "day_of_week"), IsWeekend: ptr(v, "is_weekend"),
		HourlyMean: ptr(v, "hourly_mean"), HourlyStd: ptr(v, "hourly_std"), HourlyCV: ptr(v, "hourly_cv"),
		DailyMean: ptr(v, "daily_mean"), DailyStd: ptr(v, "daily_std"),
		Lag1h: ptr(v, "lag_1h"), Lag24h: ptr(v, "lag_24h"), Lag168h: ptr(v, "lag_168h"),
		Rolling24hMean: ptr(v, "rolling_24h_mean"), Rolling24hStd: ptr(v, "rolling_24h_std"),
		Rolling168hMean: ptr(v, "rolling_168h_mean"), Rolling168hStd: ptr(v, "rolling_168h_std"),
		WeatherTempC: ptr(v, "weather_temperature_c"), WeatherHumid: ptr(v, "weather_humidity_pct"),
		WeatherWind: ptr(v, "weather_wind_mps"),
	}
}

// ExportResult records the outcome of a single export run.
type ExportResult struct {
	ID          uuid.UUID
	Status      ExportStatus
	RowCount    int
	ByteSize    int
	StoragePath string
	Error       string
}

// featureSetViews maps a named feature-set projection to the materialized
// view that backs its export query (spec §4.2: "maps feature-set name to a
// materialized view, builds a parameterized query over (tenant, time range,
// optional asset filter)"), mirroring original_source's
// feature_store.py::export_features_to_parquet view_mapping. forecast_full
// reuses forecast_basic_features, the same fallback the original takes for
// forecast_advanced, since no richer view is materialized yet.
var featureSetViews = map[string]string{
	"forecast_basic":    "forecast_basic_features",
	"forecast_full":     "forecast_basic_features",
	"anomaly_detection": "anomaly_detection_features",
}

// Export queries the materialized view backing featureSet over [start, end)
// for tenant (optionally filtered to assetIDs), encodes the result as
// Parquet, uploads the file to the object store, and records a durable
// feature_exports row independent of request success (spec §4.2 "Exports
// are independently durable": the export record persists even if the
// upload itself later fails to be retrieved). An empty result set, not an
// empty assetIDs argument, is what drives the no_data status.
func (s *Store) Export(
	ctx context.Context,
	store exportObjectStore,
	tenant, featureSet string,
	assetIDs []string,
	start, end time.Time,
) (*ExportResult, error) {
	id := uuid.New()

	result := &ExportResult{ID: id}

	rows, err := s.queryFeatureSetView(ctx, featureSet, tenant, assetIDs, start, end)
	if err != nil {
		result.Status = ExportFailed
		result.Error = err.Error()

		return result, s.recordExport(ctx, tenant, featureSet, start, end, result)
	}

	if len(rows) == 0 {
		result.Status = ExportNoData

		return result, s.recordExport(ctx, tenant, featureSet, start, end, result)
	}

	buf := new(bytes.Buffer)
	if err := encodeParquet(buf, rows); err != nil {
		result.Status = ExportFailed
		result.Error = err.Error()

		return result, s.recordExport(ctx, tenant, featureSet, start, end, result)
	}

	path := fmt.Sprintf("exports/%s/%s/%s.parquet", tenant, featureSet, id)

	if err := store.Put(ctx, path, buf.Bytes(), "application/vnd.apache.parquet"); err != nil {
		result.Status = ExportFailed
		result.Error = err.Error()

		return result, s.recordExport(ctx, tenant, featureSet, start, end, result)
	}

	result.Status = ExportCompleted
	result.RowCount = len(rows)
	result.ByteSize = buf.Len()
	result.StoragePath = path

	return result, s.recordExport(ctx, tenant, featureSet, start, end, result)
}

// queryFeatureSetView resolves featureSet to its backing materialized view
// and runs the range query, returning one Row per matched observation.
func (s *Store) queryFeatureSetView(
	ctx context.Context,
	featureSet, tenant string,
	assetIDs []string,
	start, end time.Time,
) ([]Row, error) {
	view, ok := featureSetViews[featureSet]
	if !ok {
		return nil, kinderr.New(kinderr.Validation, fmt.Sprintf("unknown feature set %q", featureSet))
	}

	if s.conn == nil {
		return nil, kinderr.New(kinderr.Unavailable, "feature export requires a database connection")
	}

	switch view {
	case "anomaly_detection_features":
		return s.queryAnomalyDetectionFeatures(ctx, tenant, assetIDs, start, end)
	default:
		return s.queryForecastBasicFeatures(ctx, tenant, assetIDs, start, end)
	}
}

// queryForecastBasicFeatures backs the forecast_basic and forecast_full
// feature sets from the forecast_basic_features view (hourly stats joined
// with the matching weather observation).
func (s *Store) queryForecastBasicFeatures(
	ctx context.Context,
	tenant string,
	assetIDs []string,
	start, end time.Time,
) ([]Row, error) {
	q := `
		SELECT asset_id, ts, mean, std, min, max, temperature_c
		FROM forecast_basic_features
		WHERE tenant_id = $1 AND ts >= $2 AND ts < $3`

	args := []any{tenant, start, end}
	if len(assetIDs) > 0 {
		q += " AND asset_id = ANY($4)"
		args = append(args, pq.Array(assetIDs))
	}

	q += " ORDER BY asset_id, ts"

	sqlRows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, "query forecast_basic_features failed", err)
	}
	defer sqlRows.Close()

	var rows []Row

	for sqlRows.Next() {
		var (
			asset                        string
			ts                           time.Time
			mean, std, minV, maxV, tempC sql.NullFloat64
		)

		if err := sqlRows.Scan(&asset, &ts, &mean, &std, &minV, &maxV, &tempC); err != nil {
			return nil, kinderr.Wrap(kinderr.Internal, "scan forecast_basic_features row failed", err)
		}

		v := Vector{}
		setIfValid(v, "hourly_mean", mean)
		setIfValid(v, "hourly_std", std)
		setIfValid(v, "hourly_min", minV)
		setIfValid(v, "hourly_max", maxV)
		setIfValid(v, "weather_temperature_c", tempC)

		rows = append(rows, toRow(tenant, asset, ts, v))
	}

	if err := sqlRows.Err(); err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, "iterate forecast_basic_features failed", err)
	}

	return rows, nil
}

// queryAnomalyDetectionFeatures backs the anomaly_detection feature set
// from the anomaly_detection_features view (hourly stats joined with the
// matching daily rollup).
func (s *Store) queryAnomalyDetectionFeatures(
	ctx context.Context,
	tenant string,
	assetIDs []string,
	start, end time.Time,
) ([]Row, error) {
	q := `
		SELECT asset_id, ts, mean, std, cv, daily_mean, daily_std
		FROM anomaly_detection_features
		WHERE tenant_id = $1 AND ts >= $2 AND ts < $3`

	args := []any{tenant, start, end}
	if len(assetIDs) > 0 {
		q += " AND asset_id = ANY($4)"
		args = append(args, pq.Array(assetIDs))
	}

	q += " ORDER BY asset_id, ts"

	sqlRows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, "query anomaly_detection_features failed", err)
	}
	defer sqlRows.Close()

	var rows []Row

	for sqlRows.Next() {
		var (
			asset                               string
			ts                                  time.Time
			mean, std, cv, dailyMean, dailyStd sql.NullFloat64
		)

		if err := sqlRows.Scan(&asset, &ts, &mean, &std, &cv, &dailyMean, &dailyStd); err != nil {
			return nil, kinderr.Wrap(kinderr.Internal, "scan anomaly_detection_features row failed", err)
		}

		v := Vector{}
		setIfValid(v, "hourly_mean", mean)
		setIfValid(v, "hourly_std", std)
		setIfValid(v, "hourly_cv", cv)
		setIfValid(v, "daily_mean", dailyMean)
		setIfValid(v, "daily_std", dailyStd)

		rows = append(rows, toRow(tenant, asset, ts, v))
	}

	if err := sqlRows.Err(); err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, "iterate anomaly_detection_features failed", err)
	}

	return rows, nil
}

func encodeParquet(buf *bytes.Buffer, rows []Row) error {
	writer := parquet.NewGenericWriter[Row](buf, parquet.Compression(&parquet.Snappy))

	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}

	return nil
}

// ExportRecord is a durable feature_exports row as returned by ListExports.
type ExportRecord struct {
	ID          uuid.UUID    `json:"id"`
	Tenant      string       `json:"tenant_id"`
	FeatureSet  string       `json:"feature_set"`
	RangeStart  time.Time    `json:"range_start"`
	RangeEnd    time.Time    `json:"range_end"`
	RowCount    int          `json:"row_count"`
	ByteSize    int          `json:"byte_size"`
	StoragePath string       `json:"storage_path,omitempty"`
	Status      ExportStatus `json:"status"`
	Error       string       `json:"error_message,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt time.Time    `json:"completed_at"`
}

// ListExports returns feature_exports rows matching the given tenant and,
// optionally, featureSet and status filters (empty string skips a filter).
func (s *Store) ListExports(ctx context.Context, tenant, featureSet, status string) ([]ExportRecord, error) {
	const q = `
		SELECT id, tenant_id, feature_set, range_start, range_end, row_count, byte_size,
		       COALESCE(storage_path, ''), status, COALESCE(error_message, ''), created_at, completed_at
		FROM feature_exports
		WHERE tenant_id = $1
		  AND ($2 = '' OR feature_set = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY created_at DESC`

	rows, err := s.conn.QueryContext(ctx, q, tenant, featureSet, status)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, "list feature exports failed", err)
	}
	defer rows.Close()

	var records []ExportRecord

	for rows.Next() {
		var rec ExportRecord
		if err := rows.Scan(
			&rec.ID, &rec.Tenant, &rec.FeatureSet, &rec.RangeStart, &rec.RangeEnd,
			&rec.RowCount, &rec.ByteSize, &rec.StoragePath, &rec.Status, &rec.Error,
			&rec.CreatedAt, &rec.CompletedAt,
		); err != nil {
			return nil, kinderr.Wrap(kinderr.Internal, "scan feature export failed", err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, "iterate feature exports failed", err)
	}

	return records, nil
}

func (s *Store) recordExport(ctx context.Context, tenant, featureSet string, start, end time.Time, r *ExportResult) error {
	if s.conn == nil {
		return nil
	}

	const q = `
		INSERT INTO feature_exports
			(id, tenant_id, feature_set, range_start, range_end, row_count, byte_size, storage_path, status, error_message, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`

	var errMsg *string
	if r.Error != "" {
		errMsg = &r.Error
	}

	now := time.Now().UTC()

	_, err := s.conn.ExecContext(ctx, q,
		r.ID, tenant, featureSet, start, end, r.RowCount, r.ByteSize, r.StoragePath, r.Status, errMsg, now)
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, "record feature export failed", err)
	}

	return nil
}
