package quote

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alicebob/miniredis/v2"

	"github.com/abdulmahfud/ongkir-service/internal/expedition"
)

type stubEnricher struct {
	mu      sync.Mutex
	batches []string
	done    chan struct{}
}

func (s *stubEnricher) Enrich(_ context.Context, batchID string, _ []Option) {
	s.mu.Lock()
	s.batches = append(s.batches, batchID)
	s.mu.Unlock()
	if s.done != nil {
		close(s.done)
	}
}

type stubHistory struct {
	mu      sync.Mutex
	batches []*Batch
	done    chan struct{}
}

func (s *stubHistory) RecordBatch(_ context.Context, batch *Batch) error {
	s.mu.Lock()
	s.batches = append(s.batches, batch)
	s.mu.Unlock()
	if s.done != nil {
		close(s.done)
	}
	return nil
}

func (s *stubHistory) RecentBatches(context.Context, int) ([]HistoryEntry, error) {
	return nil, nil
}

// newTestService takes history as the interface type so a nil argument
// stays a nil interface instead of becoming a typed-nil *stubHistory
// that would slip past the optional-dependency guard.
func newTestService(t *testing.T, fetcher *fakeFetcher, enricher *stubEnricher, history HistoryRecorder) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewBatchStore(client, time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := NewDispatcher(fetcher, expedition.Catalogue(), logger, nil)
	return NewService(dispatcher, store, history, enricher, logger, nil)
}

func waitClosed(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("background job did not finish")
	}
}

func TestRequestQuotesFullPipeline(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.payloads[expedition.VendorJNT] = `{"status":"success","shipping_costs_with_discount":[
		{"name":"EZ","productType":"EZ","cost":"9000"},
		{"name":"REG","productType":"REG","cost":"12000"}
	]}`
	fetcher.payloads[expedition.VendorSAP] = `{"shipping_cost":15000,"estimated_days":3}`

	enricher := &stubEnricher{done: make(chan struct{})}
	history := &stubHistory{done: make(chan struct{})}
	svc := newTestService(t, fetcher, enricher, history)

	view, err := svc.RequestQuotes(context.Background(), sampleRequest("sess-9"))
	require.NoError(t, err)
	require.Len(t, view.Options, 3)
	assert.Equal(t, StatusPending, view.Status)
	assert.Equal(t, "jnt-ez", view.Options[0].ID)
	assert.True(t, view.Options[0].Recommended)
	assert.True(t, view.Options[0].Discount.Loading)
	assert.Equal(t, "sap-regular", view.Options[2].ID)

	waitClosed(t, enricher.done)
	waitClosed(t, history.done)
	assert.Equal(t, []string{view.BatchID}, enricher.batches)
	require.Len(t, history.batches, 1)
	assert.Equal(t, view.BatchID, history.batches[0].ID)
}

func TestRequestQuotesNoOptions(t *testing.T) {
	fetcher := newFakeFetcher()
	enricher := &stubEnricher{}
	svc := newTestService(t, fetcher, enricher, nil)

	view, err := svc.RequestQuotes(context.Background(), sampleRequest(""))
	require.NoError(t, err)
	assert.Equal(t, StatusNoOptions, view.Status)
	assert.Empty(t, view.Options)
	assert.Empty(t, enricher.batches, "nothing to enrich")
}

func TestRequestQuotesWithoutHistory(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.payloads[expedition.VendorPaxel] = `{"status":"success","data":{"data":{"fixed_price":18000}}}`

	enricher := &stubEnricher{done: make(chan struct{})}
	svc := newTestService(t, fetcher, enricher, nil)

	view, err := svc.RequestQuotes(context.Background(), sampleRequest(""))
	require.NoError(t, err)
	require.Len(t, view.Options, 1)

	waitClosed(t, enricher.done)
	assert.Equal(t, []string{view.BatchID}, enricher.batches)
}

func TestRequestQuotesTypedNilRepository(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.payloads[expedition.VendorPaxel] = `{"status":"success","data":{"data":{"fixed_price":18000}}}`

	var repo *Repository
	enricher := &stubEnricher{done: make(chan struct{})}
	svc := newTestService(t, fetcher, enricher, repo)

	view, err := svc.RequestQuotes(context.Background(), sampleRequest(""))
	require.NoError(t, err)
	require.Len(t, view.Options, 1)
	waitClosed(t, enricher.done)
}

func TestRequestQuotesAllUnauthorized(t *testing.T) {
	fetcher := newFakeFetcher()
	for _, d := range expedition.Catalogue() {
		fetcher.failures[d.Vendor] = expedition.ErrUnauthorized
	}
	svc := newTestService(t, fetcher, &stubEnricher{}, nil)

	_, err := svc.RequestQuotes(context.Background(), sampleRequest(""))
	assert.ErrorIs(t, err, expedition.ErrUnauthorized)
}

func TestRequestQuotesPartialUnauthorized(t *testing.T) {
	fetcher := newFakeFetcher()
	for _, d := range expedition.Catalogue() {
		fetcher.failures[d.Vendor] = expedition.ErrUnauthorized
	}
	delete(fetcher.failures, expedition.VendorPaxel)
	fetcher.payloads[expedition.VendorPaxel] = `{"status":"success","data":{"data":{"fixed_price":18000}}}`

	svc := newTestService(t, fetcher, &stubEnricher{done: make(chan struct{})}, nil)

	view, err := svc.RequestQuotes(context.Background(), sampleRequest(""))
	require.NoError(t, err)
	require.Len(t, view.Options, 1)
}

func TestRequestQuotesValidationError(t *testing.T) {
	svc := newTestService(t, newFakeFetcher(), &stubEnricher{}, nil)

	_, err := svc.RequestQuotes(context.Background(), Request{WeightGrams: 500})
	assert.ErrorIs(t, err, ErrMissingLocation)
}

func TestGetBatchReflectsSettledDiscounts(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.payloads[expedition.VendorPaxel] = `{"status":"success","data":{"data":{"fixed_price":18000}}}`

	enricher := &stubEnricher{done: make(chan struct{})}
	svc := newTestService(t, fetcher, enricher, nil)

	view, err := svc.RequestQuotes(context.Background(), sampleRequest(""))
	require.NoError(t, err)
	waitClosed(t, enricher.done)

	state := DiscountState{Discount: &Discount{HasDiscount: true, DiscountedPrice: 16200, OriginalPrice: 18000}}
	require.NoError(t, svc.store.SetDiscount(context.Background(), view.BatchID, "paxel-regular", state))

	loaded, err := svc.GetBatch(context.Background(), view.BatchID)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, loaded.Status)
	require.Len(t, loaded.Options, 1)
	require.NotNil(t, loaded.Options[0].Discount.Discount)
	assert.Equal(t, int64(16200), loaded.Options[0].Discount.Discount.DiscountedPrice)
}

func TestGetBatchNotFound(t *testing.T) {
	svc := newTestService(t, newFakeFetcher(), &stubEnricher{}, nil)

	_, err := svc.GetBatch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBatchNotFound)
}
