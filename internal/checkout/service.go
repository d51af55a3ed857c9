// Package checkout turns a confirmed cart into a persisted order. The shipping
// price the buyer saw is never trusted: the quote is recomputed and compared
// before anything is written.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/web-kovcheg/storefront/internal/idempotency"
	"github.com/web-kovcheg/storefront/internal/logging"
	"github.com/web-kovcheg/storefront/internal/orders"
	"github.com/web-kovcheg/storefront/internal/shipping"
)

var (
	ErrUnknownProduct = errors.New("checkout: unknown product")
	ErrKeyReused      = errors.New("checkout: idempotency key reused with a different request")
	ErrEnqueueFailed  = errors.New("checkout: enqueue failed")
)

// MetricPriceChanged counts checkouts rejected by the price-integrity check.
const MetricPriceChanged = "CheckoutPriceChanged"

// ReplayError is returned when the idempotency key was already used for the
// same request. Record tells the caller what to answer.
type ReplayError struct {
	Record *idempotency.Record
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("checkout: idempotency key %s already %s", e.Record.IdempotencyKey, e.Record.Status)
}

// Line is one requested cart line.
type Line struct {
	ID       string   `json:"id"`
	Qty      int      `json:"qty"`
	WeightKg *float64 `json:"weight,omitempty"`
}

// Request is a checkout attempt.
type Request struct {
	IdempotencyKey string  `json:"-"`
	CorrelationID  string  `json:"-"`
	Email          string  `json:"email"`
	Address        string  `json:"address"`
	Lines          []Line  `json:"items"`
	OptionID       string  `json:"option_id"`
	ClaimedPrice   float64 `json:"price_eur"`
}

// Quoter recomputes shipping quotes.
type Quoter interface {
	Quote(ctx context.Context, req shipping.Request) (*shipping.Quote, error)
}

// OrderStore persists an order together with its idempotency record.
type OrderStore interface {
	CreateWithIdempotency(ctx context.Context, idempotencyTable string, record any, order orders.Order, ttl time.Duration) error
}

// KeyStore tracks idempotency keys.
type KeyStore interface {
	Table() string
	NewRecord(key, orderID, requestHash string) idempotency.Record
	Get(ctx context.Context, key string) (*idempotency.Record, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// Publisher enqueues order messages for the worker.
type Publisher interface {
	Publish(ctx context.Context, payload any, attributes map[string]string) error
}

// Counter records metrics.
type Counter interface {
	Count(ctx context.Context, name string, dimensions map[string]string)
}

// Message is the queue payload consumed by the order worker.
type Message struct {
	OrderID        string `json:"order_id"`
	IdempotencyKey string `json:"idempotency_key"`
	CorrelationID  string `json:"correlation_id,omitempty"`
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Catalog   shipping.Catalog
	Quoter    Quoter
	Orders    OrderStore
	Keys      KeyStore
	Publisher Publisher
	Metrics   Counter
	KeyTTL    time.Duration
}

// Service places orders.
type Service struct {
	deps  Deps
	newID func() string
}

// NewService returns a Service.
func NewService(deps Deps) *Service {
	return &Service{deps: deps, newID: uuid.NewString}
}

// Place validates prices, persists the order and enqueues it. Errors:
// *ReplayError for a known key, ErrKeyReused, ErrUnknownProduct,
// *shipping.PriceChangedError, quote errors, ErrEnqueueFailed.
func (s *Service) Place(ctx context.Context, req Request) (*orders.Receipt, error) {
	logger := logging.FromContext(ctx).With(zap.String("idempotency_key", req.IdempotencyKey))

	hash, err := idempotency.Fingerprint(req)
	if err != nil {
		return nil, err
	}
	if err := s.checkReplay(ctx, req.IdempotencyKey, hash); err != nil {
		return nil, err
	}

	items, cart, subtotal, err := s.price(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	quote, err := s.deps.Quoter.Quote(ctx, shipping.Request{Address: req.Address, SubtotalEUR: subtotal, Cart: cart})
	if err != nil {
		return nil, err
	}
	opt, err := shipping.VerifyOption(quote, req.OptionID, req.ClaimedPrice)
	if err != nil {
		logger.Info("checkout price changed", zap.String("option", req.OptionID), zap.Float64("claimed", req.ClaimedPrice))
		if s.deps.Metrics != nil {
			s.deps.Metrics.Count(ctx, MetricPriceChanged, map[string]string{"Option": req.OptionID})
		}
		return nil, err
	}

	order := orders.Order{
		OrderID:        s.newID(),
		IdempotencyKey: req.IdempotencyKey,
		Status:         orders.StatusPending,
		Email:          req.Email,
		Address:        quote.Address,
		Items:          items,
		Shipping:       orders.Shipping{OptionID: opt.ID, Label: opt.Label, PriceEUR: opt.PriceEUR, EtaDays: opt.EtaDays},
		SubtotalEUR:    subtotal,
		TotalEUR:       shipping.RoundMoney(subtotal + opt.PriceEUR),
		Currency:       quote.Currency,
		DistanceKm:     quote.DistanceKm,
		TotalWeightKg:  quote.TotalWeightKg,
		Warnings:       quote.Warnings,
	}
	record := s.deps.Keys.NewRecord(req.IdempotencyKey, order.OrderID, hash)
	if err := s.deps.Orders.CreateWithIdempotency(ctx, s.deps.Keys.Table(), record, order, s.deps.KeyTTL); err != nil {
		if errors.Is(err, orders.ErrDuplicateKey) {
			// lost a race with a concurrent request using the same key
			if rerr := s.checkReplay(ctx, req.IdempotencyKey, hash); rerr != nil {
				return nil, rerr
			}
		}
		return nil, fmt.Errorf("persist order: %w", err)
	}

	// the order exists now; finish the bookkeeping even if the client goes away
	ctx = context.WithoutCancel(ctx)
	msg := Message{OrderID: order.OrderID, IdempotencyKey: req.IdempotencyKey, CorrelationID: req.CorrelationID}
	attrs := map[string]string{
		"idempotency_key": req.IdempotencyKey,
		"order_id":        order.OrderID,
		"correlation_id":  req.CorrelationID,
	}
	if err := s.deps.Publisher.Publish(ctx, msg, attrs); err != nil {
		logger.Error("order enqueue failed", zap.String("order_id", order.OrderID), zap.Error(err))
		if merr := s.deps.Keys.MarkFailed(ctx, req.IdempotencyKey, fmt.Sprintf("sqs_send_failed: %v", err)); merr != nil {
			logger.Error("mark idempotency failed", zap.Error(merr))
		}
		return nil, fmt.Errorf("%w: %v", ErrEnqueueFailed, err)
	}

	receipt := order.Receipt()
	body, err := json.Marshal(receipt)
	if err == nil {
		err = s.deps.Keys.MarkDone(ctx, req.IdempotencyKey, string(body), http.StatusCreated)
	}
	if err != nil {
		logger.Warn("mark idempotency done failed", zap.Error(err))
	}
	logger.Info("order placed", zap.String("order_id", order.OrderID), zap.Float64("total_eur", order.TotalEUR))
	return &receipt, nil
}

func (s *Service) checkReplay(ctx context.Context, key, hash string) error {
	rec, err := s.deps.Keys.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("idempotency lookup: %w", err)
	}
	if rec == nil {
		return nil
	}
	if !rec.Matches(hash) {
		return ErrKeyReused
	}
	return &ReplayError{Record: rec}
}

// price resolves catalog prices and the cart to re-quote. The subtotal is
// computed server-side only. A stored catalog weight always replaces the
// client's inline weight; inline weights count only for unweighed products.
func (s *Service) price(ctx context.Context, lines []Line) ([]orders.Item, shipping.Cart, float64, error) {
	items := make([]orders.Item, 0, len(lines))
	cart := shipping.Cart{Items: make([]shipping.CartItem, 0, len(lines))}
	var subtotal float64
	for _, l := range lines {
		p, err := s.deps.Catalog.Product(ctx, l.ID)
		if err != nil {
			return nil, shipping.Cart{}, 0, fmt.Errorf("product %s: %w", l.ID, err)
		}
		if p == nil || !p.HasPrice {
			return nil, shipping.Cart{}, 0, fmt.Errorf("%w: %s", ErrUnknownProduct, l.ID)
		}
		qty := shipping.ClampQty(l.Qty)
		items = append(items, orders.Item{ProductID: l.ID, Name: p.Name, Qty: qty, UnitPriceEUR: p.PriceEUR})
		subtotal += p.PriceEUR * float64(qty)

		weight := l.WeightKg
		if p.HasWeight {
			w := p.WeightKg
			weight = &w
		}
		cart.Items = append(cart.Items, shipping.CartItem{ID: l.ID, Qty: qty, Weight: weight})
	}
	return items, cart, shipping.RoundMoney(subtotal), nil
}
