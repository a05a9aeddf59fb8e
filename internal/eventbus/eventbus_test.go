package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/correlator-io/trainhub/internal/jobs"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}

	f.msgs = append(f.msgs, msgs...)

	return nil
}

func TestPublishJobEvent_EncodesAndWritesMessage(t *testing.T) {
	fw := &fakeWriter{}
	p := &Publisher{writer: fw, logger: slog.Default()}

	jobID := uuid.New()
	p.PublishJobEvent(context.Background(), jobID, jobs.StatusRunning, 0.5)

	require.Len(t, fw.msgs, 1)
	assert.Equal(t, jobID.String(), string(fw.msgs[0].Key))

	var event JobEvent
	require.NoError(t, json.Unmarshal(fw.msgs[0].Value, &event))
	assert.Equal(t, jobID, event.JobID)
	assert.Equal(t, jobs.StatusRunning, event.Status)
	assert.Equal(t, 0.5, event.Progress)
}

func TestPublishJobEvent_SwallowsWriterError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker unavailable")}
	p := &Publisher{writer: fw, logger: slog.Default()}

	assert.NotPanics(t, func() {
		p.PublishJobEvent(context.Background(), uuid.New(), jobs.StatusFailed, 1.0)
	})
}

func TestClose_NonKafkaWriterIsNoop(t *testing.T) {
	p := &Publisher{writer: &fakeWriter{}, logger: slog.Default()}

	assert.NoError(t, p.Close())
}
