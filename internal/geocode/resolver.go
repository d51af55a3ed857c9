package geocode

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/web-kovcheg/storefront/internal/address"
	"github.com/web-kovcheg/storefront/internal/geo"
	"github.com/web-kovcheg/storefront/internal/logging"
)

// Warning tags recorded by Resolve.
const (
	WarnFallbackUsed    = "address_fallback_used"
	WarnCacheReadFailed = "geocache_read_failed"
	WarnCacheWriteFail  = "geocache_write_failed"
)

// Result is a resolved address.
type Result struct {
	Coordinate geo.Coordinate
	Provider   string
	Cached     bool
	Warnings   []string
}

// Resolver geocodes free-text addresses through the cache and a provider.
type Resolver struct {
	normalizer   *address.Normalizer
	cache        *Cache
	provider     Provider
	providerName string
}

// NewResolver wires a resolver. provider may be nil, in which case every
// cache miss fails with ErrUnsupportedProvider; providerName is then
// reported in the error and recorded on cache hits.
func NewResolver(normalizer *address.Normalizer, cache *Cache, provider Provider, providerName string) *Resolver {
	if provider != nil {
		providerName = provider.Name()
	}
	if normalizer == nil {
		normalizer = address.NewNormalizer("")
	}
	return &Resolver{normalizer: normalizer, cache: cache, provider: provider, providerName: strings.ToLower(providerName)}
}

// Resolve returns the coordinate for raw. Cache failures never fail the
// lookup: a read failure is a miss and a write failure is dropped, both
// recorded as warnings.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*Result, error) {
	logger := logging.FromContext(ctx)
	// provider calls and the cache write finish even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	cands := r.normalizer.Candidates(raw)
	warnings := append([]string(nil), cands.Warnings...)
	key := CacheKey(raw)

	if r.cache != nil && key != "" {
		entry, err := r.cache.Get(ctx, key)
		switch {
		case err != nil:
			logger.Warn("geocache read failed", zap.String("key", key), zap.Error(err))
			warnings = append(warnings, WarnCacheReadFailed)
		case entry != nil:
			provider := entry.Provider
			if provider == "" {
				provider = r.providerName
			}
			return &Result{Coordinate: entry.Coordinate(), Provider: provider, Cached: true, Warnings: warnings}, nil
		}
	}

	if r.provider == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, r.providerName)
	}

	place, searchWarnings, err := r.search(ctx, cands)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, searchWarnings...)

	coord, err := parseCoordinate(place)
	if err != nil {
		return nil, err
	}

	if r.cache != nil && key != "" {
		if err := r.cache.Put(ctx, key, raw, coord, r.providerName); err != nil {
			logger.Warn("geocache write failed", zap.String("key", key), zap.Error(err))
			warnings = append(warnings, WarnCacheWriteFail)
		}
	}

	return &Result{Coordinate: coord, Provider: r.providerName, Warnings: warnings}, nil
}

// search tries the candidates strictly in order, then the postal-code and
// locality fallbacks. Provider errors abort the search.
func (r *Resolver) search(ctx context.Context, cands address.Candidates) (*Place, []string, error) {
	for i, q := range cands.Queries {
		place, err := r.first(ctx, q)
		if err != nil {
			return nil, nil, err
		}
		if place != nil {
			if i > 0 {
				return place, []string{WarnFallbackUsed}, nil
			}
			return place, nil, nil
		}
	}
	for _, fb := range cands.Fallbacks() {
		place, err := r.first(ctx, fb.Query)
		if err != nil {
			return nil, nil, err
		}
		if place != nil {
			return place, []string{fb.Warning}, nil
		}
	}
	return nil, nil, ErrAddressNotFound
}

func (r *Resolver) first(ctx context.Context, q address.Query) (*Place, error) {
	places, err := r.provider.Search(ctx, q, 1)
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, nil
	}
	return &places[0], nil
}

func parseCoordinate(p *Place) (geo.Coordinate, error) {
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(p.Lat), 64)
	lon, lonErr := strconv.ParseFloat(strings.TrimSpace(p.Lon), 64)
	c := geo.Coordinate{Lat: lat, Lon: lon}
	if latErr != nil || lonErr != nil || !c.Valid() {
		return geo.Coordinate{}, fmt.Errorf("%w: lat=%q lon=%q", ErrInvalidCoordinate, p.Lat, p.Lon)
	}
	return c, nil
}
