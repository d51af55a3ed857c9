package shipping

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/web-kovcheg/storefront/internal/docstore"
	"github.com/web-kovcheg/storefront/internal/logging"
)

const (
	// ConfigCollection and ConfigDocument address the persisted ShippingConfig.
	ConfigCollection = "shipping_config"
	ConfigDocument   = "default"

	// WarnConfigFallback is recorded when the config store could not be read.
	WarnConfigFallback = "shipping_config_fallback"
)

// Mode is the pricing policy selected by a ShippingConfig.
type Mode int

const (
	ModeDistanceFormula Mode = iota
	ModeWeightTier
)

func (m Mode) String() string {
	if m == ModeWeightTier {
		return "weight_tier"
	}
	return "distance_formula"
}

// WeightTier is one pricing bracket: carts up to MaxKg cost PriceEUR.
type WeightTier struct {
	MaxKg    float64 `json:"max_kg"`
	PriceEUR float64 `json:"price_eur"`
}

// Config is the shipping pricing policy.
type Config struct {
	BaseEUR                float64      `json:"base_eur"`
	PerKmEUR               float64      `json:"per_km_eur"`
	PerKgEUR               float64      `json:"per_kg_eur"`
	MinPriceEUR            float64      `json:"min_price_eur"`
	FreeOverEUR            float64      `json:"free_over_eur"`
	RemoteZoneKm           float64      `json:"remote_zone_km"`
	RemoteSurchargeEUR     float64      `json:"remote_surcharge_eur"`
	ExpressMultiplier      float64      `json:"express_multiplier"`
	ExpressEnabled         bool         `json:"express_enabled"`
	PickupEnabled          bool         `json:"pickup_enabled"`
	Currency               string       `json:"currency"`
	WeightTiers            []WeightTier `json:"weight_tiers"`
	WeightOverflowPerKgEUR float64      `json:"weight_overflow_per_kg_eur"`
}

// Mode reports which pricing policy applies: weight tiers win when any are configured.
func (c Config) Mode() Mode {
	if len(c.WeightTiers) > 0 {
		return ModeWeightTier
	}
	return ModeDistanceFormula
}

// DefaultConfig is the policy for an empty configuration document.
func DefaultConfig() Config {
	return Config{
		BaseEUR:            2,
		PerKmEUR:           0.5,
		PerKgEUR:           0.5,
		MinPriceEUR:        3,
		RemoteZoneKm:       60,
		RemoteSurchargeEUR: 5,
		ExpressMultiplier:  1.5,
		PickupEnabled:      true,
		Currency:           "eur",
	}
}

// FallbackConfig is used when the config store is unreachable.
func FallbackConfig() Config {
	c := DefaultConfig()
	c.WeightTiers = []WeightTier{{MaxKg: 2, PriceEUR: 3.5}, {MaxKg: 5, PriceEUR: 4.5}}
	return c
}

// ConfigLoader reads the ShippingConfig document.
type ConfigLoader struct {
	store docstore.Store
}

// NewConfigLoader returns a loader over store.
func NewConfigLoader(store docstore.Store) *ConfigLoader {
	return &ConfigLoader{store: store}
}

// Load returns the current config. A read failure is never fatal: the fallback
// config is returned with WarnConfigFallback.
func (l *ConfigLoader) Load(ctx context.Context) (Config, []string) {
	if l == nil || l.store == nil {
		return DefaultConfig(), nil
	}
	doc := map[string]any{}
	found, err := l.store.Get(ctx, ConfigCollection, ConfigDocument, &doc)
	if err != nil {
		logging.FromContext(ctx).Warn("shipping config unavailable, using fallback", zap.Error(err))
		return FallbackConfig(), []string{WarnConfigFallback}
	}
	if !found {
		return DefaultConfig(), nil
	}
	return ParseConfig(doc), nil
}

// ParseConfig applies field-by-field defaults to a loosely typed document.
func ParseConfig(doc map[string]any) Config {
	def := DefaultConfig()
	c := Config{
		BaseEUR:                docstore.NumberOr(doc["base_eur"], def.BaseEUR),
		PerKmEUR:               docstore.NumberOr(doc["per_km_eur"], def.PerKmEUR),
		PerKgEUR:               docstore.NumberOr(doc["per_kg_eur"], def.PerKgEUR),
		MinPriceEUR:            docstore.NumberOr(doc["min_price_eur"], def.MinPriceEUR),
		FreeOverEUR:            docstore.NumberOr(doc["free_over_eur"], def.FreeOverEUR),
		RemoteZoneKm:           docstore.NumberOr(doc["remote_zone_km"], def.RemoteZoneKm),
		RemoteSurchargeEUR:     docstore.NumberOr(doc["remote_surcharge_eur"], def.RemoteSurchargeEUR),
		ExpressMultiplier:      docstore.NumberOr(doc["express_multiplier"], def.ExpressMultiplier),
		ExpressEnabled:         doc["express_enabled"] == true,
		PickupEnabled:          doc["pickup_enabled"] != false,
		Currency:               def.Currency,
		WeightTiers:            parseTiers(doc["weight_tiers"]),
		WeightOverflowPerKgEUR: docstore.NumberOr(doc["weight_overflow_per_kg_eur"], 0),
	}
	if s, ok := doc["currency"].(string); ok && strings.TrimSpace(s) != "" {
		c.Currency = strings.ToLower(strings.TrimSpace(s))
	}
	return c
}

// parseTiers keeps tiers with a positive max_kg and a non-negative price,
// sorted ascending by max_kg.
func parseTiers(v any) []WeightTier {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var tiers []WeightTier
	for _, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		maxKg, okMax := docstore.Number(m["max_kg"])
		price, okPrice := docstore.Number(m["price_eur"])
		if !okMax || !okPrice || maxKg <= 0 || price < 0 {
			continue
		}
		tiers = append(tiers, WeightTier{MaxKg: maxKg, PriceEUR: price})
	}
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MaxKg < tiers[j].MaxKg })
	return tiers
}
