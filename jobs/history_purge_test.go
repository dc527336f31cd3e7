package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPurger struct {
	cutoff  time.Time
	removed int64
	err     error
}

func (s *stubPurger) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return s.removed, s.err
}

func TestHistoryPurgeUsesRetention(t *testing.T) {
	purger := &stubPurger{removed: 7}
	job := NewHistoryPurgeJob(purger, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }

	task, err := NewHistoryPurgeTask(HistoryPurgePayload{RetentionDays: 7})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, now.AddDate(0, 0, -7), purger.cutoff)
}

func TestHistoryPurgeDefaultRetention(t *testing.T) {
	purger := &stubPurger{}
	job := NewHistoryPurgeJob(purger, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }

	task, err := NewHistoryPurgeTask(HistoryPurgePayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, now.AddDate(0, 0, -defaultRetentionDays), purger.cutoff)
}

func TestHistoryPurgePropagatesError(t *testing.T) {
	purger := &stubPurger{err: errors.New("db gone")}
	job := NewHistoryPurgeJob(purger, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	task, err := NewHistoryPurgeTask(HistoryPurgePayload{})
	require.NoError(t, err)
	assert.Error(t, job.Handle(context.Background(), task))
}

func TestHistoryPurgeMalformedPayloadSkipsRetry(t *testing.T) {
	job := NewHistoryPurgeJob(&stubPurger{}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	task := asynq.NewTask(TaskHistoryPurge, []byte("{not json"))
	err := job.Handle(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
