package shipping

import (
	"fmt"
	"math"
)

// PriceTolerance is the largest accepted difference between a claimed and a
// recomputed price.
const PriceTolerance = 0.01

// PriceChangedError reports that the option a buyer accepted is no longer
// offered at the claimed price. Options are the authoritative recomputed ones.
type PriceChangedError struct {
	OptionID string
	Claimed  float64
	Quoted   float64
	// Offered is false when the option is missing from the new quote.
	Offered bool
	Options []Option
}

func (e *PriceChangedError) Error() string {
	if !e.Offered {
		return fmt.Sprintf("shipping option %q is no longer offered", e.OptionID)
	}
	return fmt.Sprintf("shipping price changed for %q: claimed %.2f, quoted %.2f", e.OptionID, e.Claimed, e.Quoted)
}

// VerifyOption checks a client-declared option against q and returns the
// authoritative option, or a *PriceChangedError.
func VerifyOption(q *Quote, optionID string, claimedEUR float64) (Option, error) {
	opt, ok := q.Option(optionID)
	if !ok {
		return Option{}, &PriceChangedError{OptionID: optionID, Claimed: claimedEUR, Options: q.Options}
	}
	if math.IsNaN(claimedEUR) || math.Abs(claimedEUR-opt.PriceEUR) > PriceTolerance+tierEpsilon {
		return Option{}, &PriceChangedError{OptionID: optionID, Claimed: claimedEUR, Quoted: opt.PriceEUR, Offered: true, Options: q.Options}
	}
	return opt, nil
}
