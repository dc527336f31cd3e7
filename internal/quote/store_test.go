package quote

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*BatchStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBatchStore(client, time.Minute), mr
}

func sampleRequest(sessionKey string) Request {
	return Request{
		Origin:      Locus{Regency: "Jakarta Selatan"},
		Destination: Locus{Regency: "Bandung", District: "Coblong"},
		WeightGrams: 1500,
		SessionKey:  sessionKey,
	}
}

func sampleOptions() []Option {
	return []Option{
		{ID: "jnt-ez", Name: "J&T EZ", Price: 9000, DisplayPrice: "Rp9.000", Recommended: true},
		{ID: "paxel-regular", Name: "Paxel Express", Price: 18000, DisplayPrice: "Rp18.000"},
	}
}

func TestBatchStoreCreateAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	batch, err := store.Create(ctx, sampleRequest(""), sampleOptions())
	require.NoError(t, err)
	require.NotEmpty(t, batch.ID)
	assert.Equal(t, int64(1), batch.Generation)
	assert.True(t, batch.Pending())

	loaded, err := store.Get(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.Options, loaded.Options)
	assert.Equal(t, batch.Generation, loaded.Generation)
	require.Contains(t, loaded.States, "jnt-ez")
	assert.True(t, loaded.States["jnt-ez"].Loading)
}

func TestBatchStoreGenerationsIncrease(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, sampleRequest(""), sampleOptions())
	require.NoError(t, err)
	second, err := store.Create(ctx, sampleRequest(""), sampleOptions())
	require.NoError(t, err)
	assert.Greater(t, second.Generation, first.Generation)
}

func TestBatchStoreSessionSupersede(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	old, err := store.Create(ctx, sampleRequest("sess-1"), sampleOptions())
	require.NoError(t, err)
	fresh, err := store.Create(ctx, sampleRequest("sess-1"), sampleOptions())
	require.NoError(t, err)

	_, err = store.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrBatchNotFound)

	current, err := store.CurrentBatch(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, current)
}

func TestBatchStoreSetDiscount(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	batch, err := store.Create(ctx, sampleRequest(""), sampleOptions())
	require.NoError(t, err)

	state := DiscountState{Discount: &Discount{HasDiscount: true, DiscountedPrice: 8100}}
	require.NoError(t, store.SetDiscount(ctx, batch.ID, "jnt-ez", state))

	loaded, err := store.Get(ctx, batch.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.States["jnt-ez"].Discount)
	assert.Equal(t, int64(8100), loaded.States["jnt-ez"].Discount.DiscountedPrice)
	assert.False(t, loaded.States["jnt-ez"].Loading)
	assert.True(t, loaded.Pending(), "second option still loading")
}

func TestBatchStoreLateDiscountDiscarded(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	batch, err := store.Create(ctx, sampleRequest(""), sampleOptions())
	require.NoError(t, err)
	mr.Del(batchKeyPrefix + batch.ID)

	require.NoError(t, store.SetDiscount(ctx, batch.ID, "jnt-ez", DiscountState{}))
	assert.False(t, mr.Exists(batchKeyPrefix+batch.ID), "discarded write must not resurrect the batch")
}

func TestBatchStoreExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	batch, err := store.Create(ctx, sampleRequest(""), sampleOptions())
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = store.Get(ctx, batch.ID)
	assert.ErrorIs(t, err, ErrBatchNotFound)
}
