// Package eventbus publishes job lifecycle and progress events to Kafka,
// satisfying internal/jobs.EventPublisher (spec §4.7 supplement).
package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/correlator-io/trainhub/internal/jobs"
)

const defaultTopic = "training.job.events"

// JobEvent is the wire shape of one published job lifecycle event.
type JobEvent struct {
	JobID     uuid.UUID   `json:"job_id"`
	Status    jobs.Status `json:"status"`
	Progress  float64     `json:"progress"`
	Timestamp time.Time   `json:"timestamp"`
}

// writer is the subset of *kafka.Writer the Publisher depends on.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher publishes job lifecycle events to a Kafka topic. It implements
// internal/jobs.EventPublisher. Publish failures are logged and swallowed:
// the event bus is additive instrumentation, never a precondition for the
// Orchestrator's durable Postgres state transitions (spec §4.7 supplement).
type Publisher struct {
	writer writer
	logger *slog.Logger
}

// NewPublisher constructs a Publisher against brokers, using defaultTopic.
func NewPublisher(brokers []string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        defaultTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return &Publisher{writer: w, logger: logger}
}

// PublishJobEvent implements internal/jobs.EventPublisher.
func (p *Publisher) PublishJobEvent(ctx context.Context, jobID uuid.UUID, status jobs.Status, progress float64) {
	event := JobEvent{JobID: jobID, Status: status, Progress: progress, Timestamp: time.Now().UTC()}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("encode job event failed", slog.Any("error", err))

		return
	}

	msg := kafka.Message{Key: []byte(jobID.String()), Value: data}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("publish job event failed", slog.String("job_id", jobID.String()), slog.Any("error", err))
	}
}

// Close releases the underlying Kafka writer's connections.
func (p *Publisher) Close() error {
	if w, ok := p.writer.(*kafka.Writer); ok {
		return w.Close()
	}

	return nil
}
