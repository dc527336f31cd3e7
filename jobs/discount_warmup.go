package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/abdulmahfud/ongkir-service/internal/discount"
	"github.com/abdulmahfud/ongkir-service/internal/expedition"
	jobmetrics "github.com/abdulmahfud/ongkir-service/internal/jobs"
	"github.com/abdulmahfud/ongkir-service/internal/platform/cache"
)

// Typical order values that cover the storefront's common parcels.
var defaultWarmupOrderValues = []int64{10000, 25000, 50000}

// DiscountWarmupJob refreshes the discount cache for every vendor so
// the first quote of the day does not pay the lookup latency.
type DiscountWarmupJob struct {
	Lookup  discount.Lookup
	Cache   *cache.JSONCache
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewDiscountWarmupJob wires dependencies for the warmup handler.
func NewDiscountWarmupJob(lookup discount.Lookup, jsonCache *cache.JSONCache, logger *slog.Logger, metrics *jobmetrics.Metrics) *DiscountWarmupJob {
	return &DiscountWarmupJob{Lookup: lookup, Cache: jsonCache, Logger: logger, Metrics: metrics}
}

// Handle processes discount warmup tasks. Individual lookup failures
// are logged and skipped; the job only fails when nothing succeeded.
func (j *DiscountWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Lookup == nil {
		return errors.New("discount warmup: handler not configured")
	}
	var payload DiscountWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	orderValues := payload.OrderValues
	if len(orderValues) == 0 {
		orderValues = defaultWarmupOrderValues
	}

	tracker := j.Metrics.Track(TaskDiscountWarmup)
	var warmed, failed int
	for _, desc := range expedition.Catalogue() {
		for _, orderValue := range orderValues {
			key := discount.CacheKey(desc.DiscountCode, orderValue)
			var best *expedition.BestDiscount
			err := j.Cache.FetchJSON(ctx, key, &best, func(ctx context.Context) (any, error) {
				return j.Lookup.AvailableDiscounts(ctx, desc.DiscountCode, orderValue)
			})
			if err != nil {
				failed++
				j.logger().Warn("discount warmup lookup failed",
					slog.String("vendor", desc.DiscountCode),
					slog.Int64("order_value", orderValue),
					slog.Any("error", err),
				)
				continue
			}
			warmed++
		}
	}
	j.logger().Info("discount warmup done",
		slog.Int("warmed", warmed),
		slog.Int("failed", failed),
	)
	if warmed == 0 && failed > 0 {
		return tracker.End(errors.New("discount warmup: all lookups failed"))
	}
	return tracker.End(nil)
}

func (j *DiscountWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
