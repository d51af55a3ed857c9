package geocode

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/web-kovcheg/storefront/internal/address"
	"github.com/web-kovcheg/storefront/internal/docstore"
	"github.com/web-kovcheg/storefront/internal/geo"
	"github.com/web-kovcheg/storefront/internal/logging"
)

// SuggestCollection caches suggestion lists keyed by SuggestKey.
const SuggestCollection = "geosuggest"

const (
	DefaultSuggestLimit = 5
	MaxSuggestLimit     = 10
	maxSuggestKeyQuery  = 200
)

// Components is the structured part of a suggestion.
type Components struct {
	Street string `json:"street" dynamodbav:"street"`
	City   string `json:"city" dynamodbav:"city"`
	Zip    string `json:"zip" dynamodbav:"zip"`
}

// Suggestion is one address autocomplete entry.
type Suggestion struct {
	Label      string         `json:"label" dynamodbav:"label"`
	Components Components     `json:"components" dynamodbav:"components"`
	Coords     geo.Coordinate `json:"coords" dynamodbav:"coords"`
}

type suggestRecord struct {
	Query     string       `dynamodbav:"q"`
	Limit     int          `dynamodbav:"limit"`
	List      []Suggestion `dynamodbav:"list"`
	CreatedAt string       `dynamodbav:"created_at"`
}

// Suggester serves address autocomplete through a cache-aside list store.
type Suggester struct {
	provider     Provider
	providerName string
	store        docstore.Store
	nowFunc      func() time.Time
}

// NewSuggester returns a Suggester. provider may be nil (unsupported provider).
func NewSuggester(provider Provider, providerName string, store docstore.Store) *Suggester {
	return &Suggester{provider: provider, providerName: providerName, store: store, nowFunc: time.Now}
}

// ClampLimit bounds limit to 1..MaxSuggestLimit, defaulting non-positive values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultSuggestLimit
	case limit > MaxSuggestLimit:
		return MaxSuggestLimit
	}
	return limit
}

// SuggestKey derives the cache key for a query and limit.
func SuggestKey(q string, limit int) string {
	k := CacheKey(q)
	if len(k) > maxSuggestKeyQuery {
		k = k[:maxSuggestKeyQuery]
	}
	return k + "|" + strconv.Itoa(limit)
}

// Suggest returns up to limit suggestions for q and whether they came from cache.
func (s *Suggester) Suggest(ctx context.Context, q string, limit int) ([]Suggestion, bool, error) {
	logger := logging.FromContext(ctx)
	q = address.Clean(q)
	if len([]rune(q)) < 2 {
		return nil, false, ErrQueryTooShort
	}
	limit = ClampLimit(limit)
	key := SuggestKey(q, limit)

	if s.store != nil {
		var rec suggestRecord
		found, err := s.store.Get(ctx, SuggestCollection, key, &rec)
		if err != nil {
			logger.Warn("geosuggest read failed", zap.String("key", key), zap.Error(err))
		} else if found && rec.List != nil {
			return rec.List, true, nil
		}
	}

	if s.provider == nil {
		return nil, false, fmt.Errorf("%w: %s", ErrUnsupportedProvider, s.providerName)
	}
	places, err := s.provider.Search(ctx, address.Query{Text: q}, limit)
	if err != nil {
		return nil, false, err
	}

	list := make([]Suggestion, 0, len(places))
	for _, p := range places {
		coord, err := parseCoordinate(&p)
		if err != nil {
			continue
		}
		list = append(list, Suggestion{Label: p.DisplayName, Components: components(p.Address), Coords: coord})
	}

	if s.store != nil {
		rec := suggestRecord{Query: q, Limit: limit, List: list, CreatedAt: s.nowFunc().UTC().Format(time.RFC3339)}
		if err := s.store.Put(context.WithoutCancel(ctx), SuggestCollection, key, rec); err != nil {
			logger.Warn("geosuggest write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return list, false, nil
}

func components(addr map[string]string) Components {
	street := strings.TrimSpace(strings.Join(nonEmpty(addr["road"], addr["house_number"]), " "))
	city := ""
	for _, k := range []string{"city", "town", "village", "municipality", "county"} {
		if v := addr[k]; v != "" {
			city = v
			break
		}
	}
	return Components{Street: street, City: city, Zip: addr["postcode"]}
}

func nonEmpty(values ...string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
