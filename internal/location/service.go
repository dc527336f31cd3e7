// Package location proxies the backend's administrative area lookups
// (provinces, regencies, districts) behind a read-through cache. The
// data set changes rarely, so a long TTL and request coalescing keep
// almost all traffic off the backend.
package location

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/abdulmahfud/ongkir-service/internal/expedition"
	"github.com/abdulmahfud/ongkir-service/internal/platform/cache"
)

// Directory is the slice of the backend client this service needs.
type Directory interface {
	Provinces(ctx context.Context) ([]expedition.Place, error)
	Regencies(ctx context.Context, provinceID int64) ([]expedition.Place, error)
	Districts(ctx context.Context, regencyID int64) ([]expedition.Place, error)
}

// Service serves cached location lookups.
type Service struct {
	directory Directory
	cache     *cache.JSONCache
	group     singleflight.Group
}

// NewService constructs a Service.
func NewService(directory Directory, jsonCache *cache.JSONCache) *Service {
	return &Service{directory: directory, cache: jsonCache}
}

// Provinces lists all provinces.
func (s *Service) Provinces(ctx context.Context) ([]expedition.Place, error) {
	return s.cached(ctx, "ongkir:loc:provinces", func(ctx context.Context) (any, error) {
		return s.directory.Provinces(ctx)
	})
}

// Regencies lists regencies under a province.
func (s *Service) Regencies(ctx context.Context, provinceID int64) ([]expedition.Place, error) {
	key := fmt.Sprintf("ongkir:loc:regencies:%d", provinceID)
	return s.cached(ctx, key, func(ctx context.Context) (any, error) {
		return s.directory.Regencies(ctx, provinceID)
	})
}

// Districts lists districts under a regency.
func (s *Service) Districts(ctx context.Context, regencyID int64) ([]expedition.Place, error) {
	key := fmt.Sprintf("ongkir:loc:districts:%d", regencyID)
	return s.cached(ctx, key, func(ctx context.Context) (any, error) {
		return s.directory.Districts(ctx, regencyID)
	})
}

// cached coalesces concurrent misses for the same key into a single
// backend call before consulting the read-through cache.
func (s *Service) cached(ctx context.Context, key string, loader func(context.Context) (any, error)) ([]expedition.Place, error) {
	result, err, _ := s.group.Do(key, func() (any, error) {
		var places []expedition.Place
		if err := s.cache.FetchJSON(ctx, key, &places, loader); err != nil {
			return nil, err
		}
		return places, nil
	})
	if err != nil {
		return nil, err
	}
	places := result.([]expedition.Place)
	if places == nil {
		places = []expedition.Place{}
	}
	return places, nil
}
