// Package handlers exposes the storefront HTTP API on gin.
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/web-kovcheg/storefront/internal/checkout"
	"github.com/web-kovcheg/storefront/internal/geocode"
	"github.com/web-kovcheg/storefront/internal/orders"
	"github.com/web-kovcheg/storefront/internal/shipping"
	"github.com/web-kovcheg/storefront/internal/validation"
)

// Quoter prices shipping for an address and cart.
type Quoter interface {
	Quote(ctx context.Context, req shipping.Request) (*shipping.Quote, error)
}

// Suggester autocompletes addresses.
type Suggester interface {
	Suggest(ctx context.Context, q string, limit int) ([]geocode.Suggestion, bool, error)
}

// Checkout places orders.
type Checkout interface {
	Place(ctx context.Context, req checkout.Request) (*orders.Receipt, error)
}

// Counter records metrics; *aws.Metrics satisfies it, including a nil one.
type Counter interface {
	Count(ctx context.Context, name string, dimensions map[string]string)
}

// HandlerConfig groups dependencies for the API handlers.
type HandlerConfig struct {
	Quoter    Quoter
	Suggester Suggester
	Checkout  Checkout
	Metrics   Counter
}

type handler struct {
	quoter      Quoter
	suggester   Suggester
	checkoutSvc Checkout
	metrics     Counter
	validate    *validatorv10.Validate
}

type nopCounter struct{}

func (nopCounter) Count(context.Context, string, map[string]string) {}

// RegisterRoutes registers the storefront routes on r.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	h := &handler{
		quoter:      cfg.Quoter,
		suggester:   cfg.Suggester,
		checkoutSvc: cfg.Checkout,
		metrics:     cfg.Metrics,
		validate:    validation.New(),
	}
	if h.metrics == nil {
		h.metrics = nopCounter{}
	}

	r.GET("/shipping-quote", h.shippingQuote)
	r.GET("/address-suggest", h.addressSuggest)
	r.POST("/checkout", h.checkout)
}
