// Package discount resolves per-option shipping discounts against the
// backend and settles them into the quote batch as they arrive.
package discount

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/abdulmahfud/ongkir-service/internal/expedition"
	"github.com/abdulmahfud/ongkir-service/internal/observability"
	"github.com/abdulmahfud/ongkir-service/internal/quote"
)

// Lookup fetches the best available discount for a vendor at a given
// order value. *expedition.Client satisfies it.
type Lookup interface {
	AvailableDiscounts(ctx context.Context, vendorCode string, orderValue int64) (*expedition.BestDiscount, error)
}

// StateWriter persists the settled discount state for one option.
// *quote.BatchStore satisfies it.
type StateWriter interface {
	SetDiscount(ctx context.Context, batchID, optionID string, state quote.DiscountState) error
}

// Enricher runs one discount lookup per option, concurrently, and
// writes each result back to the batch the moment it settles.
type Enricher struct {
	lookup  Lookup
	store   StateWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewEnricher constructs an Enricher. Metrics may be nil.
func NewEnricher(lookup Lookup, store StateWriter, logger *slog.Logger, metrics *observability.Metrics) *Enricher {
	return &Enricher{lookup: lookup, store: store, logger: logger, metrics: metrics}
}

// Enrich settles the discount state of every option in the batch. A
// failed lookup settles the option with no discount rather than
// leaving it loading; a failed write is logged and dropped, since the
// batch may simply have been superseded.
func (e *Enricher) Enrich(ctx context.Context, batchID string, options []quote.Option) {
	var wg sync.WaitGroup
	for _, opt := range options {
		wg.Add(1)
		go func(opt quote.Option) {
			defer wg.Done()
			state := quote.DiscountState{Discount: e.resolve(ctx, opt)}
			if err := e.store.SetDiscount(ctx, batchID, opt.ID, state); err != nil {
				e.logger.Warn("discount state write failed",
					slog.String("batch_id", batchID),
					slog.String("option_id", opt.ID),
					slog.Any("error", err),
				)
			}
		}(opt)
	}
	wg.Wait()
}

func (e *Enricher) resolve(ctx context.Context, opt quote.Option) *quote.Discount {
	vendorCode := expedition.DiscountCodeForOption(opt.ID)
	best, err := e.lookup.AvailableDiscounts(ctx, vendorCode, opt.Price)
	if err != nil {
		e.logger.Warn("discount lookup failed",
			slog.String("vendor", vendorCode),
			slog.String("option_id", opt.ID),
			slog.Any("error", err),
		)
		e.metrics.DiscountLookup("error")
		return &quote.Discount{OriginalPrice: opt.Price}
	}
	if best == nil || !best.HasDiscount {
		e.metrics.DiscountLookup("miss")
		return &quote.Discount{OriginalPrice: opt.Price}
	}
	e.metrics.DiscountLookup("hit")

	discounted := best.DiscountedPrice
	if discounted <= 0 {
		discounted = Apply(opt.Price, best.DiscountType, best.DiscountValue)
	}
	original := best.OriginalPrice
	if original <= 0 {
		original = opt.Price
	}
	amount := best.DiscountAmount
	if amount <= 0 {
		amount = original - discounted
	}

	var description string
	if best.DiscountDescription != nil {
		description = *best.DiscountDescription
	}
	return &quote.Discount{
		HasDiscount:     true,
		DiscountAmount:  amount,
		DiscountedPrice: discounted,
		OriginalPrice:   original,
		DiscountID:      best.DiscountID,
		Description:     description,
		Type:            best.DiscountType,
	}
}

// Apply computes the discounted price for a raw price and discount
// definition. Percentages round to the nearest rupiah; fixed amounts
// never push the price below zero. Unknown types leave the price
// untouched.
func Apply(price int64, discountType string, value float64) int64 {
	switch discountType {
	case "percentage":
		return int64(math.Round(float64(price) * (1 - value/100)))
	case "fixed_amount":
		discounted := price - int64(math.Round(value))
		if discounted < 0 {
			return 0
		}
		return discounted
	default:
		return price
	}
}
