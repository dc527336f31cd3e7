package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/abdulmahfud/ongkir-service/internal/jobs"
)

const defaultRetentionDays = 30

// HistoryPurger deletes quote history rows older than a cutoff.
// *quote.Repository satisfies it.
type HistoryPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryPurgeJob trims the quote history table on a schedule.
type HistoryPurgeJob struct {
	Repo    HistoryPurger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewHistoryPurgeJob wires dependencies for the purge handler.
func NewHistoryPurgeJob(repo HistoryPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *HistoryPurgeJob {
	return &HistoryPurgeJob{
		Repo:    repo,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes history purge tasks.
func (j *HistoryPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Repo == nil {
		return errors.New("history purge: handler not configured")
	}
	var payload HistoryPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionDays <= 0 {
		payload.RetentionDays = defaultRetentionDays
	}

	tracker := j.Metrics.Track(TaskHistoryPurge)
	cutoff := j.now().AddDate(0, 0, -payload.RetentionDays)
	removed, err := j.Repo.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		j.logger().Error("history purge failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddPurged(removed)
	j.logger().Info("history purge done",
		slog.Int64("removed", removed),
		slog.Time("cutoff", cutoff),
	)
	return tracker.End(nil)
}

func (j *HistoryPurgeJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *HistoryPurgeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
