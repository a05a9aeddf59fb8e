package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/correlator-io/trainhub/internal/kinderr"
	"github.com/correlator-io/trainhub/internal/storage"
)

// Sentinel errors for the jobs store, following the teacher's per-package
// sentinel-error convention (internal/storage/lineage_store.go).
var (
	ErrJobStoreFailed      = errors.New("jobs store operation failed")
	ErrNoDatabaseConnection = errors.New("jobs store has no database connection")
)

// Store persists Job and job log state in Postgres. Orchestrator is the
// sole writer of Job rows (spec §3 Ownership).
type Store struct {
	conn   *storage.Connection
	logger *slog.Logger
}

// NewStore constructs a Store. conn must be non-nil.
func NewStore(conn *storage.Connection, logger *slog.Logger) (*Store, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Store{conn: conn, logger: logger}, nil
}

// HealthCheck delegates to the underlying connection's health check.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.conn == nil {
		return ErrNoDatabaseConnection
	}

	return s.conn.HealthCheck(ctx)
}

// Create inserts a new Job row in QUEUED status.
func (s *Store) Create(ctx context.Context, job *Job) error {
	configJSON, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("%w: marshal config: %w", ErrJobStoreFailed, err)
	}

	tagsJSON, err := json.Marshal(job.Tags)
	if err != nil {
		return fmt.Errorf("%w: marshal tags: %w", ErrJobStoreFailed, err)
	}

	const q = `
		INSERT INTO jobs (id, tenant_id, model_type, model_name, config, priority, status,
		                   progress, estimated_duration_seconds, tags, schedule_expression, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`

	_, err = s.conn.ExecContext(ctx, q,
		job.ID, job.TenantID, string(job.ModelType), job.ModelName, configJSON, job.Priority,
		string(job.Status), job.Progress, job.EstimatedDurationSeconds, tagsJSON,
		job.ScheduleExpression, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert job: %w", ErrJobStoreFailed, err)
	}

	return nil
}

// Get returns a Job by id, or a kinderr.NotFound error.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	const q = `
		SELECT id, tenant_id, model_type, model_name, config, priority, status, progress,
		       metrics, model_id, error_message, estimated_duration_seconds, tags,
		       schedule_expression, created_at, started_at, completed_at, updated_at
		FROM jobs WHERE id = $1`

	row := s.conn.QueryRowContext(ctx, q, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kinderr.New(kinderr.NotFound, fmt.Sprintf("job %s not found", id))
	}

	if err != nil {
		return nil, fmt.Errorf("%w: get job: %w", ErrJobStoreFailed, err)
	}

	return job, nil
}

// ClaimNextQueued atomically claims the next QUEUED job ordered by
// (priority DESC, created_at ASC), transitioning it to RUNNING with
// started_at set. Returns (nil, nil) if no job is queued. The claim uses an
// update-where-status=QUEUED pattern so concurrent dispatchers cannot both
// claim the same row (spec §4.7 "Claims must be atomic").
func (s *Store) ClaimNextQueued(ctx context.Context) (*Job, error) {
	const selectQ = `
		SELECT id FROM jobs
		WHERE status = 'QUEUED'
		ORDER BY priority DESC, created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin claim tx: %w", ErrJobStoreFailed, err)
	}

	defer func() { _ = tx.Rollback() }()

	var id uuid.UUID

	err = tx.QueryRowContext(ctx, selectQ).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // no job queued is not an error condition
	}

	if err != nil {
		return nil, fmt.Errorf("%w: select queued job: %w", ErrJobStoreFailed, err)
	}

	now := time.Now().UTC()

	const updateQ = `
		UPDATE jobs SET status = 'RUNNING', started_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'QUEUED'`

	res, err := tx.ExecContext(ctx, updateQ, id, now)
	if err != nil {
		return nil, fmt.Errorf("%w: claim job: %w", ErrJobStoreFailed, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		// Another dispatcher claimed it between SELECT and UPDATE despite the
		// row lock; treat as "nothing claimed" rather than an error.
		return nil, nil //nolint:nilnil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit claim: %w", ErrJobStoreFailed, err)
	}

	return s.Get(ctx, id)
}

// UpdateProgress writes progress/metrics without touching status (spec
// §4.7 "Progress reporting").
func (s *Store) UpdateProgress(ctx context.Context, id uuid.UUID, fraction float64, metrics map[string]float64) error {
	var metricsJSON []byte

	if metrics != nil {
		var err error

		metricsJSON, err = json.Marshal(metrics)
		if err != nil {
			return fmt.Errorf("%w: marshal metrics: %w", ErrJobStoreFailed, err)
		}
	}

	const q = `UPDATE jobs SET progress = $2, metrics = COALESCE($3, metrics), updated_at = $4 WHERE id = $1`

	_, err := s.conn.ExecContext(ctx, q, id, fraction, metricsJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: update progress: %w", ErrJobStoreFailed, err)
	}

	return nil
}

// Transition applies a validated FSM transition, writing terminal fields
// (completed_at, error_message, model_id) as appropriate.
func (s *Store) Transition(ctx context.Context, id uuid.UUID, to Status, modelID, errMsg *string) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := ValidateTransition(job.Status, to); err != nil {
		return kinderr.Wrap(kinderr.Conflict, "job transition rejected", err)
	}

	now := time.Now().UTC()

	var completedAt *time.Time
	if to.IsTerminal() {
		completedAt = &now
	}

	var progress *float64
	if to == StatusCompleted {
		one := 1.0
		progress = &one
	}

	const q = `
		UPDATE jobs SET status = $2, completed_at = COALESCE($3, completed_at),
		                model_id = COALESCE($4, model_id), error_message = COALESCE($5, error_message),
		                progress = COALESCE($6, progress), updated_at = $7
		WHERE id = $1`

	_, err = s.conn.ExecContext(ctx, q, id, string(to), completedAt, modelID, errMsg, progress, now)
	if err != nil {
		return fmt.Errorf("%w: transition job: %w", ErrJobStoreFailed, err)
	}

	return nil
}

// List returns a filtered, paginated job listing ordered by created_at DESC.
func (s *Store) List(ctx context.Context, filters ListFilters, page, pageSize int) (*Page, error) {
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	if page < 1 {
		page = 1
	}

	where, args := buildListFilters(filters)

	var total int

	countQ := "SELECT count(*) FROM jobs" + where

	if err := s.conn.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("%w: count jobs: %w", ErrJobStoreFailed, err)
	}

	listQ := `
		SELECT id, tenant_id, model_type, model_name, config, priority, status, progress,
		       metrics, model_id, error_message, estimated_duration_seconds, tags,
		       schedule_expression, created_at, started_at, completed_at, updated_at
		FROM jobs` + where + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)

	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := s.conn.QueryContext(ctx, listQ, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list jobs: %w", ErrJobStoreFailed, err)
	}
	defer rows.Close()

	items := make([]*Job, 0, pageSize)

	for rows.Next() {
		job, err := scanJobRows(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan job row: %w", ErrJobStoreFailed, err)
		}

		items = append(items, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate jobs: %w", ErrJobStoreFailed, err)
	}

	return &Page{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// AppendLog appends one log entry for a job.
func (s *Store) AppendLog(ctx context.Context, jobID uuid.UUID, level, message string) error {
	const q = `INSERT INTO job_logs (job_id, ts, level, message) VALUES ($1, $2, $3, $4)`

	_, err := s.conn.ExecContext(ctx, q, jobID, time.Now().UTC(), level, message)
	if err != nil {
		return fmt.Errorf("%w: append log: %w", ErrJobStoreFailed, err)
	}

	return nil
}

// Logs returns the most recent `tail` log entries for a job, oldest first.
func (s *Store) Logs(ctx context.Context, jobID uuid.UUID, tail int, level string) ([]LogEntry, error) {
	if tail <= 0 {
		tail = 100
	}

	q := `SELECT ts, level, message FROM job_logs WHERE job_id = $1`
	args := []any{jobID}

	if level != "" {
		q += " AND level = $2"
		args = append(args, level)
	}

	q += fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d", len(args)+1)
	args = append(args, tail)

	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query logs: %w", ErrJobStoreFailed, err)
	}
	defer rows.Close()

	var entries []LogEntry

	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.Timestamp, &e.Level, &e.Message); err != nil {
			return nil, fmt.Errorf("%w: scan log: %w", ErrJobStoreFailed, err)
		}

		entries = append(entries, e)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	return entries, rows.Err()
}

// ActiveCount returns the number of jobs currently RUNNING, used to report
// utilization against max_concurrent_jobs.
func (s *Store) ActiveCount(ctx context.Context) (int, error) {
	var n int

	err := s.conn.QueryRowContext(ctx, `SELECT count(*) FROM jobs WHERE status = 'RUNNING'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count active jobs: %w", ErrJobStoreFailed, err)
	}

	return n, nil
}

func buildListFilters(f ListFilters) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	add := func(clause string, val any) {
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.TenantID != "" {
		add("tenant_id = $%d", f.TenantID)
	}

	if f.ModelType != "" {
		add("model_type = $%d", string(f.ModelType))
	}

	if f.ModelName != "" {
		add("model_name = $%d", f.ModelName)
	}

	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}

	if f.CreatedAfter != nil {
		add("created_at > $%d", *f.CreatedAfter)
	}

	if f.CreatedBefore != nil {
		add("created_at < $%d", *f.CreatedBefore)
	}

	if len(clauses) == 0 {
		return "", args
	}

	where := " WHERE "

	for i, c := range clauses {
		if i > 0 {
			where += " AND "
		}

		where += c
	}

	return where, args
}

// rowScanner abstracts *sql.Row and *sql.Rows for a shared scan routine.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	return scanJobRows(row)
}

func scanJobRows(row rowScanner) (*Job, error) {
	var (
		j              Job
		modelType      string
		status         string
		configJSON     []byte
		metricsJSON    []byte
		tagsJSON       []byte
	)

	err := row.Scan(
		&j.ID, &j.TenantID, &modelType, &j.ModelName, &configJSON, &j.Priority, &status,
		&j.Progress, &metricsJSON, &j.ModelID, &j.ErrorMessage, &j.EstimatedDurationSeconds,
		&tagsJSON, &j.ScheduleExpression, &j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.ModelType = ModelType(modelType)
	j.Status = Status(status)

	if err := json.Unmarshal(configJSON, &j.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(metricsJSON) > 0 {
		if err := json.Unmarshal(metricsJSON, &j.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal metrics: %w", err)
		}
	}

	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &j.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}

	return &j, nil
}
