package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/web-kovcheg/storefront/internal/checkout"
	"github.com/web-kovcheg/storefront/internal/idempotency"
	"github.com/web-kovcheg/storefront/internal/logging"
	"github.com/web-kovcheg/storefront/internal/orders"
)

// MetricOrderCompleted counts orders the worker moved to COMPLETED.
const MetricOrderCompleted = "OrderCompleted"

// OrderStore is the part of orders.Store the worker uses.
type OrderStore interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	UpdateStatus(ctx context.Context, orderID, expected, next string) error
	IncrementAttempts(ctx context.Context, orderID string) (int, error)
}

// KeyStore is the part of idempotency.Store the worker uses.
type KeyStore interface {
	Get(ctx context.Context, key string) (*idempotency.Record, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
}

// Counter records metrics.
type Counter interface {
	Count(ctx context.Context, name string, dimensions map[string]string)
}

// Processor handles SQS messages and performs order lifecycle transitions.
type Processor struct {
	orders  OrderStore
	keys    KeyStore
	metrics Counter
	logger  *zap.Logger
}

// NewProcessor returns a Processor. metrics may be nil.
func NewProcessor(orderStore OrderStore, keys KeyStore, metrics Counter, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{orders: orderStore, keys: keys, metrics: metrics, logger: logger}
}

// Handle processes an SQS batch. The first failure is returned so Lambda
// retries the batch; repeated failures end up in the DLQ.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	p.logger.Debug("received sqs batch", zap.Int("records", len(ev.Records)))
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.logger.Error("worker error", zap.String("message_id", rec.MessageId), zap.Error(err))
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg checkout.Message
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if msg.OrderID == "" {
		return errors.New("invalid message body: missing order_id")
	}

	logger := p.logger.With(
		zap.String("order_id", msg.OrderID),
		zap.String("idempotency_key", msg.IdempotencyKey),
		zap.String("correlation_id", msg.CorrelationID),
	)
	ctx = logging.WithLogger(ctx, logger)

	order, err := p.orders.Get(ctx, msg.OrderID)
	if err != nil {
		return fmt.Errorf("fetch order: %w", err)
	}
	if order == nil {
		return fmt.Errorf("order not found: %s", msg.OrderID)
	}

	attempts, err := p.orders.IncrementAttempts(ctx, msg.OrderID)
	if err != nil {
		return err
	}
	logger.Info("processing order", zap.Int("attempt", attempts), zap.String("status", order.Status))

	err = p.orders.UpdateStatus(ctx, msg.OrderID, orders.StatusPending, orders.StatusProcessing)
	if errors.Is(err, orders.ErrStatusMismatch) {
		current, gerr := p.orders.Get(ctx, msg.OrderID)
		if gerr != nil {
			return fmt.Errorf("reload order: %w", gerr)
		}
		if current == nil {
			return fmt.Errorf("order vanished: %s", msg.OrderID)
		}
		switch current.Status {
		case orders.StatusCompleted:
			// an earlier delivery may have stopped before the key was finalised
			logger.Info("order already completed")
			return p.finishKey(ctx, msg.IdempotencyKey, *current)
		case orders.StatusFailed:
			return fmt.Errorf("order %s is FAILED", msg.OrderID)
		case orders.StatusProcessing:
			// nothing runs between the two moves, so a PROCESSING order is one
			// whose completion failed on an earlier delivery
			logger.Info("resuming order left in PROCESSING")
			return p.complete(ctx, logger, msg, *current)
		default:
			return fmt.Errorf("unexpected status for order %s: %s", msg.OrderID, current.Status)
		}
	}
	if err != nil {
		return fmt.Errorf("move to PROCESSING: %w", err)
	}

	return p.complete(ctx, logger, msg, *order)
}

// complete moves a PROCESSING order to COMPLETED and finalises its key.
// Losing the move to a concurrent delivery that already completed it is fine.
func (p *Processor) complete(ctx context.Context, logger *zap.Logger, msg checkout.Message, order orders.Order) error {
	err := p.orders.UpdateStatus(ctx, msg.OrderID, orders.StatusProcessing, orders.StatusCompleted)
	if errors.Is(err, orders.ErrStatusMismatch) {
		current, gerr := p.orders.Get(ctx, msg.OrderID)
		if gerr != nil {
			return fmt.Errorf("reload order: %w", gerr)
		}
		if current == nil || current.Status != orders.StatusCompleted {
			return fmt.Errorf("move to COMPLETED: %w", err)
		}
		return p.finishKey(ctx, msg.IdempotencyKey, *current)
	}
	if err != nil {
		return fmt.Errorf("move to COMPLETED: %w", err)
	}
	order.Status = orders.StatusCompleted

	if err := p.finishKey(ctx, msg.IdempotencyKey, order); err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.Count(ctx, MetricOrderCompleted, nil)
	}
	logger.Info("order completed")
	return nil
}

// finishKey marks the idempotency record DONE unless the API already did.
// A missing record (expired or never written) is left alone.
func (p *Processor) finishKey(ctx context.Context, key string, order orders.Order) error {
	if key == "" {
		return nil
	}
	rec, err := p.keys.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get idempotency record: %w", err)
	}
	if rec == nil || rec.Status == idempotency.StatusDone {
		return nil
	}
	body, err := json.Marshal(order.Receipt())
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}
	if err := p.keys.MarkDone(ctx, key, string(body), http.StatusCreated); err != nil && !errors.Is(err, idempotency.ErrNotFound) {
		return fmt.Errorf("mark idempotency done: %w", err)
	}
	return nil
}
