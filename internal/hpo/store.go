package hpo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/correlator-io/trainhub/internal/kinderr"
	"github.com/correlator-io/trainhub/internal/storage"
)

// Store persists Study/Trial rows (spec §4.5; schema in
// migrations/003_hpo.up.sql).
type Store struct {
	conn *storage.Connection
}

// NewStore constructs a Store.
func NewStore(conn *storage.Connection) *Store {
	return &Store{conn: conn}
}

// CreateStudy persists a new study. resume_study is only meaningful against
// a persistent backing store (spec §4.5) — this Store is always that
// backing store, so resumption is simply GetStudy + ListTrials.
func (s *Store) CreateStudy(ctx context.Context, study *Study) error {
	attrs, err := json.Marshal(study.UserAttrs)
	if err != nil {
		return fmt.Errorf("marshal user attrs: %w", err)
	}

	const q = `
		INSERT INTO studies (name, tenant_id, model_type, direction, sampler, pruner, n_trials_target, timeout_seconds, user_attrs, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err = s.conn.ExecContext(ctx, q,
		study.Name, study.TenantID, study.ModelType, study.Direction, study.Sampler, study.Pruner,
		study.NTrialsTarget, study.TimeoutSeconds, attrs, study.CreatedAt)
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, "create study failed", err)
	}

	return nil
}

// GetStudy returns a study by name, supporting resume_study.
func (s *Store) GetStudy(ctx context.Context, name string) (*Study, error) {
	const q = `
		SELECT name, tenant_id, model_type, direction, sampler, pruner, n_trials_target, timeout_seconds, user_attrs, created_at
		FROM studies WHERE name = $1`

	var (
		study Study
		attrs []byte
	)

	err := s.conn.QueryRowContext(ctx, q, name).Scan(
		&study.Name, &study.TenantID, &study.ModelType, &study.Direction, &study.Sampler, &study.Pruner,
		&study.NTrialsTarget, &study.TimeoutSeconds, &attrs, &study.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kinderr.New(kinderr.NotFound, fmt.Sprintf("study %s not found", name))
	}

	if err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, "get study failed", err)
	}

	if len(attrs) > 0 {
		_ = json.Unmarshal(attrs, &study.UserAttrs)
	}

	return &study, nil
}

// AppendTrial persists a new trial row under the caller-assigned
// trial.TrialNumber and stores the row's generated id in trial.ID.
func (s *Store) AppendTrial(ctx context.Context, trial *Trial) error {
	params, err := json.Marshal(trial.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	intermediate, err := json.Marshal(trial.Intermediate)
	if err != nil {
		return fmt.Errorf("marshal intermediate: %w", err)
	}

	const q = `
		INSERT INTO trials (study_name, trial_number, state, params, objective_value, intermediate, started_at, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id`

	err = s.conn.QueryRowContext(ctx, q,
		trial.StudyName, trial.TrialNumber, trial.State, params, trial.ObjectiveValue, intermediate,
		trial.StartedAt, trial.CompletedAt).Scan(&trial.ID)
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, "append trial failed", err)
	}

	return nil
}

// UpdateTrial persists a trial's terminal state and objective value.
func (s *Store) UpdateTrial(ctx context.Context, trial *Trial) error {
	intermediate, err := json.Marshal(trial.Intermediate)
	if err != nil {
		return fmt.Errorf("marshal intermediate: %w", err)
	}

	const q = `
		UPDATE trials SET state = $2, objective_value = $3, intermediate = $4, completed_at = $5
		WHERE id = $1`

	_, err = s.conn.ExecContext(ctx, q, trial.ID, trial.State, trial.ObjectiveValue, intermediate, trial.CompletedAt)
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, "update trial failed", err)
	}

	return nil
}

// DeleteStudy removes a study and its trials (ON DELETE CASCADE).
func (s *Store) DeleteStudy(ctx context.Context, name string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM studies WHERE name = $1`, name)
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, "delete study failed", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, "delete study rows affected failed", err)
	}

	if n == 0 {
		return kinderr.New(kinderr.NotFound, fmt.Sprintf("study %s not found", name))
	}

	return nil
}

// ListTrials returns all trials of a study, ordered by trial number.
func (s *Store) ListTrials(ctx context.Context, studyName string) ([]Trial, error) {
	const q = `
		SELECT id, study_name, trial_number, state, params, objective_value, intermediate, started_at, completed_at
		FROM trials WHERE study_name = $1 ORDER BY trial_number ASC`

	rows, err := s.conn.QueryContext(ctx, q, studyName)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, "list trials failed", err)
	}
	defer rows.Close()

	var trials []Trial

	for rows.Next() {
		var (
			t            Trial
			params       []byte
			intermediate []byte
		)

		if err := rows.Scan(&t.ID, &t.StudyName, &t.TrialNumber, &t.State, &params, &t.ObjectiveValue, &intermediate, &t.StartedAt, &t.CompletedAt); err != nil {
			return nil, kinderr.Wrap(kinderr.Internal, "scan trial failed", err)
		}

		_ = json.Unmarshal(params, &t.Params)
		_ = json.Unmarshal(intermediate, &t.Intermediate)

		trials = append(trials, t)
	}

	return trials, nil
}
