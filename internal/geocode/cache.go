package geocode

import (
	"context"
	"fmt"
	"time"

	"github.com/web-kovcheg/storefront/internal/docstore"
	"github.com/web-kovcheg/storefront/internal/geo"
)

// CacheCollection holds geocoding results keyed by CacheKey.
const CacheCollection = "geocache"

// CacheEntry is the persisted geocoding result. Entries are written once and
// never expire.
type CacheEntry struct {
	Key        string  `dynamodbav:"id"`
	Address    string  `dynamodbav:"address"`
	Normalized string  `dynamodbav:"normalized"`
	Lat        float64 `dynamodbav:"lat"`
	Lon        float64 `dynamodbav:"lon"`
	Provider   string  `dynamodbav:"provider"`
	CreatedAt  string  `dynamodbav:"created_at"`
}

// Coordinate returns the cached point.
func (e CacheEntry) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: e.Lat, Lon: e.Lon}
}

// Cache is a cache-aside store of geocoding results.
type Cache struct {
	store   docstore.Store
	nowFunc func() time.Time
}

// NewCache returns a Cache over store.
func NewCache(store docstore.Store) *Cache {
	return &Cache{store: store, nowFunc: time.Now}
}

// Get returns the entry for key or nil on a miss. Entries holding an invalid
// coordinate are reported as misses.
func (c *Cache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	var e CacheEntry
	found, err := c.store.Get(ctx, CacheCollection, key, &e)
	if err != nil {
		return nil, fmt.Errorf("geocache read: %w", err)
	}
	if !found || !e.Coordinate().Valid() {
		return nil, nil
	}
	return &e, nil
}

// Put stores the result for key.
func (c *Cache) Put(ctx context.Context, key, rawAddress string, coord geo.Coordinate, provider string) error {
	e := CacheEntry{
		Key:        key,
		Address:    rawAddress,
		Normalized: key,
		Lat:        coord.Lat,
		Lon:        coord.Lon,
		Provider:   provider,
		CreatedAt:  c.nowFunc().UTC().Format(time.RFC3339),
	}
	if err := c.store.Put(ctx, CacheCollection, key, e); err != nil {
		return fmt.Errorf("geocache write: %w", err)
	}
	return nil
}
