package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/correlator-io/trainhub/internal/kinderr"
)

const (
	defaultMaxConcurrentJobs = 3
	baseDurationSeconds      = 180
	hpoTrialSeconds          = 30
	longSpanDays             = 365
	longSpanMultiplier       = 2
)

// Executor runs a Job's training pipeline. The Orchestrator depends only on
// this abstract interface (spec's Design Notes: dependency inversion
// resolves the orchestrator↔pipeline cyclic import the source has) and is
// handed a concrete Training Pipeline at composition time.
type Executor interface {
	// Execute runs job to completion, reporting progress via onProgress and
	// returning final metrics and a model id on success. ctx is cancelled if
	// the job is cancelled mid-flight.
	Execute(ctx context.Context, job *Job, onProgress func(fraction float64, metrics map[string]float64)) (modelID string, metrics map[string]float64, err error)
}

// Orchestrator is the Job Orchestrator: priority queue + concurrency
// governor over durable Job state (spec §4.7).
type Orchestrator struct {
	store    *Store
	executor Executor
	logger   *slog.Logger
	events   EventPublisher

	maxConcurrent int
	slots         chan struct{}

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc

	dispatchStop chan struct{}
	dispatchDone chan struct{}
	stopOnce     sync.Once
}

// EventPublisher publishes job lifecycle events. A no-op implementation is
// used when eventbus wiring is absent.
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, jobID uuid.UUID, status Status, progress float64)
}

// OrchestratorOption configures an Orchestrator at construction, following
// the teacher's functional-options convention (internal/storage/lineage_store.go).
type OrchestratorOption func(*Orchestrator)

// WithMaxConcurrentJobs overrides the default concurrency cap (3).
func WithMaxConcurrentJobs(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithEventPublisher wires an EventPublisher for job lifecycle notifications.
func WithEventPublisher(p EventPublisher) OrchestratorOption {
	return func(o *Orchestrator) { o.events = p }
}

type noopPublisher struct{}

func (noopPublisher) PublishJobEvent(context.Context, uuid.UUID, Status, float64) {}

// NewOrchestrator constructs an Orchestrator. executor must be non-nil.
func NewOrchestrator(store *Store, executor Executor, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		store:         store,
		executor:      executor,
		logger:        logger,
		events:        noopPublisher{},
		maxConcurrent: defaultMaxConcurrentJobs,
		cancels:       make(map[uuid.UUID]context.CancelFunc),
		dispatchStop:  make(chan struct{}),
		dispatchDone:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(o)
	}

	o.slots = make(chan struct{}, o.maxConcurrent)

	return o
}

// Submit persists a new Job in QUEUED status and computes its duration
// estimate (spec §4.7 "Duration estimation").
func (o *Orchestrator) Submit(ctx context.Context, job *Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	job.Status = StatusQueued
	job.CreatedAt = time.Now().UTC()
	job.UpdatedAt = job.CreatedAt
	job.EstimatedDurationSeconds = estimateDuration(job.Config)

	if err := o.store.Create(ctx, job); err != nil {
		return err
	}

	o.events.PublishJobEvent(ctx, job.ID, StatusQueued, 0)

	return nil
}

// estimateDuration computes the coarse, informational duration estimate of
// spec §4.7: base=180s/n_workers; +30s*n_trials/n_workers if HPO enabled;
// ×2 if the training span exceeds 365 days. Grounded on
// original_source/training_orchestrator.py::_estimate_duration.
func estimateDuration(cfg TrainingConfig) int {
	workers := cfg.NWorkers
	if workers < 1 {
		workers = 1
	}

	estimate := float64(baseDurationSeconds) / float64(workers)

	if cfg.EnableHPO {
		estimate += float64(hpoTrialSeconds*cfg.NTrials) / float64(workers)
	}

	if !cfg.RangeStart.IsZero() && !cfg.RangeEnd.IsZero() {
		span := cfg.RangeEnd.Sub(cfg.RangeStart)
		if span.Hours()/24 > longSpanDays {
			estimate *= longSpanMultiplier
		}
	}

	return int(estimate)
}

// Run starts the dispatch loop; it returns once ctx is cancelled or Stop is
// called.
func (o *Orchestrator) Run(ctx context.Context) {
	defer close(o.dispatchDone)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-o.dispatchStop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.dispatchOnce(ctx)
		}
	}
}

// Stop signals the dispatch loop to exit and waits (with a bounded timeout)
// for it to do so.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		close(o.dispatchStop)

		select {
		case <-o.dispatchDone:
		case <-time.After(5 * time.Second):
			o.logger.Warn("dispatch loop did not stop within timeout")
		}
	})
}

func (o *Orchestrator) dispatchOnce(ctx context.Context) {
	select {
	case o.slots <- struct{}{}:
	default:
		return // at max_concurrent_jobs
	}

	job, err := o.store.ClaimNextQueued(ctx)
	if err != nil {
		<-o.slots
		o.logger.Error("claim queued job failed", slog.Any("error", err))

		return
	}

	if job == nil {
		<-o.slots
		return
	}

	taskCtx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	o.cancels[job.ID] = cancel
	o.mu.Unlock()

	o.events.PublishJobEvent(ctx, job.ID, StatusRunning, 0)

	go o.runJob(taskCtx, job)
}

func (o *Orchestrator) runJob(ctx context.Context, job *Job) {
	defer func() {
		o.mu.Lock()
		delete(o.cancels, job.ID)
		o.mu.Unlock()

		<-o.slots
	}()

	onProgress := func(fraction float64, metrics map[string]float64) {
		if err := o.store.UpdateProgress(context.Background(), job.ID, fraction, metrics); err != nil {
			o.logger.Error("update progress failed", slog.String("job_id", job.ID.String()), slog.Any("error", err))
		}

		o.events.PublishJobEvent(context.Background(), job.ID, StatusRunning, fraction)
	}

	modelID, metrics, err := o.executor.Execute(ctx, job, onProgress)

	final := context.Background()

	if err != nil {
		msg := err.Error()
		if tErr := o.store.Transition(final, job.ID, StatusFailed, nil, &msg); tErr != nil {
			o.logger.Error("transition to failed rejected", slog.Any("error", tErr))
		}

		o.events.PublishJobEvent(final, job.ID, StatusFailed, job.Progress)

		return
	}

	if metrics != nil {
		if uErr := o.store.UpdateProgress(final, job.ID, 1.0, metrics); uErr != nil {
			o.logger.Error("final progress update failed", slog.Any("error", uErr))
		}
	}

	if tErr := o.store.Transition(final, job.ID, StatusCompleted, &modelID, nil); tErr != nil {
		o.logger.Error("transition to completed rejected", slog.Any("error", tErr))
	}

	o.events.PublishJobEvent(final, job.ID, StatusCompleted, 1.0)
}

// Cancel cancels a job. A QUEUED job transitions directly to CANCELLED; a
// RUNNING job also cancels its in-flight execution context (spec §4.7).
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID) error {
	job, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if job.Status.IsTerminal() {
		return kinderr.New(kinderr.Precondition, fmt.Sprintf("job %s is already terminal (%s)", id, job.Status))
	}

	if err := o.store.Transition(ctx, id, StatusCancelled, nil, nil); err != nil {
		return err
	}

	o.mu.Lock()
	cancel, running := o.cancels[id]
	o.mu.Unlock()

	if running {
		cancel()
	}

	o.events.PublishJobEvent(ctx, id, StatusCancelled, job.Progress)

	return nil
}

// Retry creates a new QUEUED job that deep-copies the original's config and
// tags, adding retry_of=<original_id>. The original job is not modified
// (spec §4.7).
func (o *Orchestrator) Retry(ctx context.Context, id uuid.UUID) (*Job, error) {
	original, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	tags := make(map[string]string, len(original.Tags)+1)
	for k, v := range original.Tags {
		tags[k] = v
	}

	tags["retry_of"] = original.ID.String()

	newJob := &Job{
		ID:        uuid.New(),
		TenantID:  original.TenantID,
		ModelType: original.ModelType,
		ModelName: original.ModelName,
		Config:    original.Config,
		Priority:  original.Priority,
		Tags:      tags,
	}

	if err := o.Submit(ctx, newJob); err != nil {
		return nil, err
	}

	return newJob, nil
}

// Get returns a job by id.
func (o *Orchestrator) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	return o.store.Get(ctx, id)
}

// List returns a filtered, paginated job listing.
func (o *Orchestrator) List(ctx context.Context, filters ListFilters, page, pageSize int) (*Page, error) {
	return o.store.List(ctx, filters, page, pageSize)
}

// Logs returns a job's tailed log entries.
func (o *Orchestrator) Logs(ctx context.Context, id uuid.UUID, tail int, level string) ([]LogEntry, error) {
	return o.store.Logs(ctx, id, tail, level)
}

// Stats reports capacity, the number of active jobs, and utilization. It
// carries no per-status job counts.
type Stats struct {
	Capacity    int
	ActiveCount int
	Utilization float64
}

// Stats returns current orchestrator capacity/utilization (spec §6
// GET /training/stats).
func (o *Orchestrator) Stats(ctx context.Context) (*Stats, error) {
	active, err := o.store.ActiveCount(ctx)
	if err != nil {
		return nil, err
	}

	util := 0.0
	if o.maxConcurrent > 0 {
		util = float64(active) / float64(o.maxConcurrent)
	}

	return &Stats{Capacity: o.maxConcurrent, ActiveCount: active, Utilization: util}, nil
}
