package shipping

import "math"

// PriceCapEUR bounds the standard and express prices from above.
const PriceCapEUR = 4.5

const (
	OptionStandard = "standard"
	OptionExpress  = "express"
	OptionPickup   = "pickup"
)

// Warning tags recorded by the pricing engine.
const (
	WarnWeightTierPricing = "weight_tier_pricing"
	WarnWeightOverLast    = "weight_over_last_tier"
)

const (
	tierEpsilon  = 1e-9
	moneyEpsilon = 2.220446049250313e-16
)

// Option is one priced shipping method.
type Option struct {
	ID       string  `json:"id" dynamodbav:"id"`
	Label    string  `json:"label" dynamodbav:"label"`
	PriceEUR float64 `json:"price_eur" dynamodbav:"price_eur"`
	EtaDays  int     `json:"eta_days" dynamodbav:"eta_days"`
}

// Pricing is the engine output.
type Pricing struct {
	// StandardBase is the standard price before free shipping and the cap.
	StandardBase float64
	Options      []Option
	Warnings     []string
}

// RoundMoney rounds half up to the cent.
func RoundMoney(v float64) float64 {
	return math.Round((v+moneyEpsilon)*100) / 100
}

// Price computes the shipping options for a cart.
func Price(distanceKm, weightKg, subtotalEUR float64, cfg Config) Pricing {
	var (
		base     float64
		warnings []string
	)
	switch cfg.Mode() {
	case ModeWeightTier:
		base, warnings = tierPrice(weightKg, cfg)
	default:
		base = formulaPrice(distanceKm, weightKg, cfg)
	}

	standard := base
	if cfg.FreeOverEUR > 0 && subtotalEUR >= cfg.FreeOverEUR {
		standard = 0
	}

	options := []Option{{ID: OptionStandard, Label: "Стандарт", PriceEUR: capped(standard), EtaDays: 2}}
	if cfg.ExpressEnabled {
		express := math.Max(standard, base) * cfg.ExpressMultiplier
		options = append(options, Option{ID: OptionExpress, Label: "Экспресс", PriceEUR: capped(express), EtaDays: 1})
	}
	if cfg.PickupEnabled {
		options = append(options, Option{ID: OptionPickup, Label: "Самовывоз", PriceEUR: 0, EtaDays: 0})
	}
	return Pricing{StandardBase: base, Options: options, Warnings: warnings}
}

// tierPrice selects the first tier covering weightKg. Past the last tier the
// price is extrapolated when an overflow rate is set, otherwise the last tier applies.
func tierPrice(weightKg float64, cfg Config) (float64, []string) {
	warnings := []string{}
	tiers := cfg.WeightTiers
	price, found := 0.0, false
	for _, t := range tiers {
		if weightKg <= t.MaxKg+tierEpsilon {
			price, found = t.PriceEUR, true
			break
		}
	}
	if !found {
		last := tiers[len(tiers)-1]
		if cfg.WeightOverflowPerKgEUR > 0 {
			price = last.PriceEUR + cfg.WeightOverflowPerKgEUR*math.Max(0, weightKg-last.MaxKg)
		} else {
			price = last.PriceEUR
			warnings = append(warnings, WarnWeightOverLast)
		}
	}
	return price, append(warnings, WarnWeightTierPricing)
}

func formulaPrice(distanceKm, weightKg float64, cfg Config) float64 {
	price := cfg.BaseEUR + cfg.PerKmEUR*distanceKm + cfg.PerKgEUR*weightKg
	if cfg.RemoteZoneKm > 0 && distanceKm > cfg.RemoteZoneKm {
		price += cfg.RemoteSurchargeEUR
	}
	return math.Max(price, cfg.MinPriceEUR)
}

func capped(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return RoundMoney(math.Max(0, math.Min(PriceCapEUR, v)))
}
