// Package shipping prices carts for delivery from the warehouse: it loads the
// pricing policy, weighs the cart, geocodes the destination and assembles a
// Quote. Checkout re-runs the same quote to verify client-declared prices.
package shipping

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/web-kovcheg/storefront/internal/geo"
	"github.com/web-kovcheg/storefront/internal/geocode"
)

var (
	ErrAddressRequired        = errors.New("shipping: address required")
	ErrWarehouseNotConfigured = errors.New("shipping: warehouse coordinates not configured")
)

// Geocoder resolves an address to a coordinate.
type Geocoder interface {
	Resolve(ctx context.Context, raw string) (*geocode.Result, error)
}

// ConfigSource provides the current pricing policy and any degradation warnings.
type ConfigSource interface {
	Load(ctx context.Context) (Config, []string)
}

// Request is the input of a quote. When ItemsJSON is set it is decoded into
// Cart once the address and warehouse are known to be usable.
type Request struct {
	Address     string
	SubtotalEUR float64
	Cart        Cart
	ItemsJSON   string
}

// Quote is a priced set of shipping options for one address and cart.
type Quote struct {
	Address       string         `json:"address"`
	Coords        geo.Coordinate `json:"coords"`
	Provider      string         `json:"provider"`
	Cached        bool           `json:"cached"`
	DistanceKm    float64        `json:"distance_km"`
	TotalWeightKg float64        `json:"total_weight_kg"`
	SubtotalEUR   float64        `json:"subtotal_eur"`
	Currency      string         `json:"currency"`
	Options       []Option       `json:"options"`
	Warnings      []string       `json:"warnings"`
}

// Option returns the option with id, if offered.
func (q *Quote) Option(id string) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Quoter composes geocoding, weighing and pricing.
type Quoter struct {
	warehouse *geo.Coordinate
	geocoder  Geocoder
	weights   *WeightResolver
	configs   ConfigSource
}

// NewQuoter wires a Quoter. A nil warehouse makes every quote fail with
// ErrWarehouseNotConfigured.
func NewQuoter(warehouse *geo.Coordinate, geocoder Geocoder, weights *WeightResolver, configs ConfigSource) *Quoter {
	if weights == nil {
		weights = NewWeightResolver(nil)
	}
	return &Quoter{warehouse: warehouse, geocoder: geocoder, weights: weights, configs: configs}
}

// Quote prices req. Geocoder failures are returned unchanged so callers can
// classify them with errors.Is.
func (q *Quoter) Quote(ctx context.Context, req Request) (*Quote, error) {
	if q.warehouse == nil || !q.warehouse.Valid() {
		return nil, ErrWarehouseNotConfigured
	}
	addr := strings.TrimSpace(req.Address)
	if addr == "" {
		return nil, ErrAddressRequired
	}
	if strings.TrimSpace(req.ItemsJSON) != "" {
		cart, err := DecodeCart(req.ItemsJSON)
		if err != nil {
			return nil, err
		}
		req.Cart = cart
	}
	subtotal := req.SubtotalEUR
	if math.IsNaN(subtotal) || math.IsInf(subtotal, 0) {
		subtotal = 0
	}

	cfg, configWarnings := DefaultConfig(), []string(nil)
	if q.configs != nil {
		cfg, configWarnings = q.configs.Load(ctx)
	}

	res, err := q.geocoder.Resolve(ctx, addr)
	if err != nil {
		return nil, err
	}
	distance := geo.DistanceKm(*q.warehouse, res.Coordinate)

	weight, weightWarnings := q.weights.TotalWeight(ctx, req.Cart.Items)
	// priced on the exact distance; rounding is for display only
	pricing := Price(distance, weight, subtotal, cfg)

	warnings := make([]string, 0, len(res.Warnings)+len(req.Cart.Warnings)+len(weightWarnings)+len(pricing.Warnings)+len(configWarnings))
	warnings = append(warnings, res.Warnings...)
	warnings = append(warnings, req.Cart.Warnings...)
	warnings = append(warnings, weightWarnings...)
	warnings = append(warnings, pricing.Warnings...)
	warnings = append(warnings, configWarnings...)

	return &Quote{
		Address:       addr,
		Coords:        res.Coordinate,
		Provider:      res.Provider,
		Cached:        res.Cached,
		DistanceKm:    math.Round(distance*1000) / 1000,
		TotalWeightKg: weight,
		SubtotalEUR:   RoundMoney(subtotal),
		Currency:      cfg.Currency,
		Options:       pricing.Options,
		Warnings:      warnings,
	}, nil
}
