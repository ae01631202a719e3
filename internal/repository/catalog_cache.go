package repository

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"dining-concierge/internal/domain"
)

const defaultCacheSize = 1024

type restaurantSource interface {
	FindByCuisine(ctx context.Context, cuisine string, limit int) ([]string, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.RestaurantRecord, error)
}

// CachedCatalog keeps catalog records in an LRU across invocations of a warm
// worker. Cuisine lookups always go to the source so new rows show up.
type CachedCatalog struct {
	source restaurantSource
	cache  *lru.Cache
}

func NewCachedCatalog(source restaurantSource, size int) (*CachedCatalog, error) {
	if source == nil {
		return nil, errors.New("repository: catalog source must not be nil")
	}
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("repository: create catalog cache: %w", err)
	}
	return &CachedCatalog{source: source, cache: cache}, nil
}

func (c *CachedCatalog) FindByCuisine(ctx context.Context, cuisine string, limit int) ([]string, error) {
	return c.source.FindByCuisine(ctx, cuisine, limit)
}

// GetByIDs serves cached records and fetches only the misses.
func (c *CachedCatalog) GetByIDs(ctx context.Context, ids []string) ([]domain.RestaurantRecord, error) {
	hits := make(map[string]domain.RestaurantRecord, len(ids))
	var misses []string
	for _, id := range ids {
		if v, ok := c.cache.Get(id); ok {
			hits[id] = v.(domain.RestaurantRecord)
			continue
		}
		misses = append(misses, id)
	}

	if len(misses) > 0 {
		fetched, err := c.source.GetByIDs(ctx, misses)
		if err != nil {
			return nil, err
		}
		for _, rec := range fetched {
			c.cache.Add(rec.ID, rec)
			hits[rec.ID] = rec
		}
	}

	out := make([]domain.RestaurantRecord, 0, len(hits))
	for _, id := range ids {
		if rec, ok := hits[id]; ok {
			out = append(out, rec)
			delete(hits, id)
		}
	}
	return out, nil
}

// Len reports the number of cached records.
func (c *CachedCatalog) Len() int {
	return c.cache.Len()
}
