package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abdulmahfud/ongkir-service/internal/expedition"
	"github.com/abdulmahfud/ongkir-service/internal/observability"
)

// Batch statuses surfaced to API clients.
const (
	StatusPending   = "pending"
	StatusReady     = "ready"
	StatusNoOptions = "no_options"
)

// Enricher settles the discount state of a batch's options. Implemented
// by the discount package; declared here so quote does not depend on it.
type Enricher interface {
	Enrich(ctx context.Context, batchID string, options []Option)
}

// HistoryRecorder appends finished batches to the reporting history.
type HistoryRecorder interface {
	RecordBatch(ctx context.Context, batch *Batch) error
	RecentBatches(ctx context.Context, limit int) ([]HistoryEntry, error)
}

// OptionView is an option together with its discount state.
type OptionView struct {
	Option
	Discount DiscountState `json:"discount"`
}

// BatchView is the API projection of a batch.
type BatchView struct {
	BatchID    string       `json:"batch_id"`
	Generation int64        `json:"generation"`
	Status     string       `json:"status"`
	Options    []OptionView `json:"options"`
}

// Service orchestrates one quote round trip: fan out to the vendors,
// normalize whatever settled, persist the batch, then hand the options
// to the discount enricher in the background.
type Service struct {
	dispatcher *Dispatcher
	store      *BatchStore
	history    HistoryRecorder
	enricher   Enricher
	logger     *slog.Logger
	metrics    *observability.Metrics
	jobTimeout time.Duration
}

// NewService constructs a Service. History and metrics may be nil; a
// typed-nil *Repository is flattened so the optional-history guard in
// RequestQuotes keeps working.
func NewService(dispatcher *Dispatcher, store *BatchStore, history HistoryRecorder, enricher Enricher, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if repo, ok := history.(*Repository); ok && repo == nil {
		history = nil
	}
	return &Service{
		dispatcher: dispatcher,
		store:      store,
		history:    history,
		enricher:   enricher,
		logger:     logger,
		metrics:    metrics,
		jobTimeout: 30 * time.Second,
	}
}

// RequestQuotes runs the full pipeline for one request. An empty vendor
// harvest is a valid outcome, not an error: the batch is still created
// and reported with the no-options status. Discount enrichment and the
// history write continue after the response is sent, detached from the
// request's cancellation.
func (s *Service) RequestQuotes(ctx context.Context, req Request) (*BatchView, error) {
	outcomes, err := s.dispatcher.Dispatch(ctx, req)
	if err != nil {
		return nil, err
	}
	if allUnauthorized(outcomes) {
		return nil, fmt.Errorf("quote: backend rejected credentials: %w", expedition.ErrUnauthorized)
	}
	options := Normalize(outcomes)
	for _, opt := range options {
		vendorPrefix, _, _ := strings.Cut(opt.ID, "-")
		s.metrics.OptionProduced(vendorPrefix)
	}

	batch, err := s.store.Create(ctx, req, options)
	if err != nil {
		return nil, err
	}

	background := context.WithoutCancel(ctx)
	if len(options) > 0 {
		go func() {
			jobCtx, cancel := context.WithTimeout(background, s.jobTimeout)
			defer cancel()
			s.enricher.Enrich(jobCtx, batch.ID, options)
		}()
	}
	if s.history != nil {
		go func() {
			jobCtx, cancel := context.WithTimeout(background, s.jobTimeout)
			defer cancel()
			if err := s.history.RecordBatch(jobCtx, batch); err != nil {
				s.logger.Warn("quote history write failed",
					slog.String("batch_id", batch.ID),
					slog.Any("error", err),
				)
			}
		}()
	}
	return projectBatch(batch), nil
}

// GetBatch returns the batch's current snapshot, including whichever
// discount states have settled so far.
func (s *Service) GetBatch(ctx context.Context, batchID string) (*BatchView, error) {
	batch, err := s.store.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return projectBatch(batch), nil
}

// Recent lists the newest history entries.
func (s *Service) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.RecentBatches(ctx, limit)
}

// allUnauthorized reports whether every vendor call was rejected with a
// bad token. A single vendor failure degrades to "no options from that
// vendor", but a uniformly rejected batch means the token itself is
// broken and the caller deserves the real error over an empty batch.
func allUnauthorized(outcomes []Outcome) bool {
	if len(outcomes) == 0 {
		return false
	}
	for _, o := range outcomes {
		if o.Err == nil || !errors.Is(o.Err, expedition.ErrUnauthorized) {
			return false
		}
	}
	return true
}

func projectBatch(batch *Batch) *BatchView {
	view := &BatchView{
		BatchID:    batch.ID,
		Generation: batch.Generation,
		Status:     StatusReady,
		Options:    make([]OptionView, 0, len(batch.Options)),
	}
	if len(batch.Options) == 0 {
		view.Status = StatusNoOptions
		return view
	}
	if batch.Pending() {
		view.Status = StatusPending
	}
	for _, opt := range batch.Options {
		view.Options = append(view.Options, OptionView{
			Option:   opt,
			Discount: batch.States[opt.ID],
		})
	}
	return view
}
