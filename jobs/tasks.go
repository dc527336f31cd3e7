// Package jobs contains the background workloads of the quote service:
// purging aged quote history and pre-warming discount caches.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskHistoryPurge removes quote history rows past retention.
	TaskHistoryPurge = "history:purge"
	// TaskDiscountWarmup pre-populates the discount cache per vendor.
	TaskDiscountWarmup = "discount:warmup"
)

// HistoryPurgePayload configures one purge run.
type HistoryPurgePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewHistoryPurgeTask constructs an Asynq task.
func NewHistoryPurgeTask(payload HistoryPurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHistoryPurge, data), nil
}

// DiscountWarmupPayload configures one warmup run. Empty order values
// fall back to the defaults used by the handler.
type DiscountWarmupPayload struct {
	OrderValues []int64 `json:"order_values"`
}

// NewDiscountWarmupTask constructs an Asynq task.
func NewDiscountWarmupTask(payload DiscountWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDiscountWarmup, data), nil
}
