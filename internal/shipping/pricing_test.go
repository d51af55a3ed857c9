package shipping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tierConfig() Config {
	cfg := DefaultConfig()
	cfg.WeightTiers = []WeightTier{{MaxKg: 2, PriceEUR: 3.5}, {MaxKg: 5, PriceEUR: 4.5}}
	return cfg
}

func optionIDs(opts []Option) []string {
	ids := make([]string, 0, len(opts))
	for _, o := range opts {
		ids = append(ids, o.ID)
	}
	return ids
}

func TestPrice_WeightTierScenario(t *testing.T) {
	p := Price(12.3, 1.2, 20, tierConfig())

	require.Len(t, p.Options, 2)
	assert.Equal(t, Option{ID: OptionStandard, Label: "Стандарт", PriceEUR: 3.5, EtaDays: 2}, p.Options[0])
	assert.Equal(t, Option{ID: OptionPickup, Label: "Самовывоз", PriceEUR: 0, EtaDays: 0}, p.Options[1])
	assert.Equal(t, []string{WarnWeightTierPricing}, p.Warnings)
}

func TestPrice_TierBoundaryIsInclusive(t *testing.T) {
	cfg := tierConfig()
	assert.Equal(t, 3.5, Price(0, 2, 0, cfg).Options[0].PriceEUR)
	assert.Equal(t, 3.5, Price(0, 2+1e-12, 0, cfg).Options[0].PriceEUR)
	assert.Equal(t, 4.5, Price(0, 2.001, 0, cfg).Options[0].PriceEUR)
	assert.Equal(t, 4.5, Price(0, 5, 0, cfg).Options[0].PriceEUR)
}

func TestPrice_Overflow(t *testing.T) {
	cfg := tierConfig()
	cfg.WeightOverflowPerKgEUR = 1.0

	p := Price(0, 7, 0, cfg)
	assert.InDelta(t, 6.5, p.StandardBase, 1e-9)
	assert.Equal(t, 4.5, p.Options[0].PriceEUR)
	assert.Equal(t, []string{WarnWeightTierPricing}, p.Warnings)

	cfg.WeightOverflowPerKgEUR = 0
	p = Price(0, 7, 0, cfg)
	assert.Equal(t, 4.5, p.StandardBase)
	assert.Equal(t, []string{WarnWeightOverLast, WarnWeightTierPricing}, p.Warnings)
}

func TestPrice_DistanceFormula(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PickupEnabled = false

	// 2 + 0.5*1 + 0.5*0.4 = 2.7, floored at 3
	p := Price(1, 0.4, 0, cfg)
	assert.InDelta(t, 3.0, p.StandardBase, 1e-9)
	assert.Equal(t, []string{OptionStandard}, optionIDs(p.Options))
	assert.Empty(t, p.Warnings)

	// 2 + 0.5*3 = 3.5
	assert.InDelta(t, 3.5, Price(3, 0, 0, cfg).StandardBase, 1e-9)

	// remote surcharge past 60 km, then capped
	p = Price(61, 0, 0, cfg)
	assert.InDelta(t, 2+30.5+5, p.StandardBase, 1e-9)
	assert.Equal(t, PriceCapEUR, p.Options[0].PriceEUR)
}

func TestPrice_FreeShipping(t *testing.T) {
	cfg := tierConfig()
	cfg.FreeOverEUR = 50
	cfg.ExpressEnabled = true

	p := Price(0, 1, 50, cfg)
	assert.Equal(t, []string{OptionStandard, OptionExpress, OptionPickup}, optionIDs(p.Options))
	assert.Equal(t, 0.0, p.Options[0].PriceEUR)
	// express derives from the pre-discount base: 3.5*1.5 capped
	assert.Equal(t, 4.5, p.Options[1].PriceEUR)

	assert.Equal(t, 3.5, Price(0, 1, 49.99, cfg).Options[0].PriceEUR)

	cfg.FreeOverEUR = 0
	assert.Equal(t, 3.5, Price(0, 1, 1000, cfg).Options[0].PriceEUR)
}

func TestPrice_Express(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExpressEnabled = true
	cfg.MinPriceEUR = 2

	p := Price(0, 0, 0, cfg)
	require.Len(t, p.Options, 3)
	assert.Equal(t, Option{ID: OptionExpress, Label: "Экспресс", PriceEUR: 3, EtaDays: 1}, p.Options[1])
}

func TestPrice_OptionsBounded(t *testing.T) {
	cfgs := []Config{DefaultConfig(), tierConfig()}
	cfgs[0].ExpressEnabled = true
	cfgs[1].ExpressEnabled = true
	cfgs[1].WeightOverflowPerKgEUR = 3

	for _, cfg := range cfgs {
		for _, d := range []float64{0, 0.5, 10, 59.9, 60.1, 500} {
			for _, w := range []float64{0, 0.1, 2, 4.99, 5, 20} {
				for _, o := range Price(d, w, 0, cfg).Options {
					assert.GreaterOrEqual(t, o.PriceEUR, 0.0)
					assert.LessOrEqual(t, o.PriceEUR, PriceCapEUR)
				}
			}
		}
	}
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, 1.01, RoundMoney(1.005))
	assert.Equal(t, 3.64, RoundMoney(3.6449))
	assert.Equal(t, 3.65, RoundMoney(3.645))
	assert.Equal(t, 0.0, RoundMoney(0))
}
