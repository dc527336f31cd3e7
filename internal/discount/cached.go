package discount

import (
	"context"
	"fmt"

	"github.com/abdulmahfud/ongkir-service/internal/expedition"
	"github.com/abdulmahfud/ongkir-service/internal/platform/cache"
)

// CacheKey names the redis entry holding the best discount for one
// vendor code and order value. The warmup job writes the same keys the
// cached lookup reads.
func CacheKey(vendorCode string, orderValue int64) string {
	return fmt.Sprintf("ongkir:discount:%s:%d", vendorCode, orderValue)
}

// CachedLookup is a read-through cache in front of a Lookup. Entries
// written ahead of time by the warmup job are served without a backend
// round trip; misses fall through to the wrapped lookup and populate
// the cache for the next caller. A "no discount" answer is cached too.
type CachedLookup struct {
	lookup Lookup
	cache  *cache.JSONCache
}

// NewCachedLookup wraps lookup with the given cache.
func NewCachedLookup(lookup Lookup, jsonCache *cache.JSONCache) *CachedLookup {
	return &CachedLookup{lookup: lookup, cache: jsonCache}
}

// AvailableDiscounts implements Lookup.
func (c *CachedLookup) AvailableDiscounts(ctx context.Context, vendorCode string, orderValue int64) (*expedition.BestDiscount, error) {
	var best *expedition.BestDiscount
	err := c.cache.FetchJSON(ctx, CacheKey(vendorCode, orderValue), &best, func(ctx context.Context) (any, error) {
		return c.lookup.AvailableDiscounts(ctx, vendorCode, orderValue)
	})
	if err != nil {
		return nil, err
	}
	return best, nil
}
