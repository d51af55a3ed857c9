package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/web-kovcheg/storefront/internal/checkout"
	"github.com/web-kovcheg/storefront/internal/idempotency"
	"github.com/web-kovcheg/storefront/internal/logging"
	"github.com/web-kovcheg/storefront/internal/shipping"
	"github.com/web-kovcheg/storefront/internal/validation"
)

// IdempotencyKeyHeader must accompany every checkout.
const IdempotencyKeyHeader = "Idempotency-Key"

func (h *handler) checkout(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.FromContext(ctx)

	var req validation.CheckoutRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		// BindAndValidate already wrote a 400
		return
	}

	idempKey := c.GetHeader(IdempotencyKeyHeader)
	if idempKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_idempotency_key", "message": "Idempotency-Key header is required"})
		return
	}

	correlationID := c.Writer.Header().Get(logging.RequestIDHeader)
	if correlationID == "" {
		correlationID = c.GetHeader(logging.RequestIDHeader)
	}
	lines := make([]checkout.Line, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, checkout.Line{ID: it.ID, Qty: it.Qty, WeightKg: it.Weight})
	}
	receipt, err := h.checkoutSvc.Place(ctx, checkout.Request{
		IdempotencyKey: idempKey,
		CorrelationID:  correlationID,
		Email:          req.Email,
		Address:        req.Address,
		Lines:          lines,
		OptionID:       req.Shipping.OptionID,
		ClaimedPrice:   *req.Shipping.PriceEUR,
	})
	if err != nil {
		h.checkoutFailed(c, err)
		return
	}

	c.Header("Location", "/orders/"+receipt.OrderID)
	c.JSON(http.StatusCreated, receipt)
	logger.Debug("checkout responded", zap.String("order_id", receipt.OrderID))
}

func (h *handler) checkoutFailed(c *gin.Context, err error) {
	logger := logging.FromContext(c.Request.Context())

	var replay *checkout.ReplayError
	if errors.As(err, &replay) {
		replayResponse(c, replay.Record)
		return
	}
	var changed *shipping.PriceChangedError
	if errors.As(err, &changed) {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "price_changed",
			"message": changed.Error(),
			"options": changed.Options,
		})
		return
	}

	switch {
	case errors.Is(err, checkout.ErrKeyReused):
		writeError(c, apiError{http.StatusUnprocessableEntity, "idempotency_key_reused"}, err)
	case errors.Is(err, checkout.ErrUnknownProduct):
		writeError(c, apiError{http.StatusBadRequest, "unknown_product"}, err)
	case errors.Is(err, checkout.ErrEnqueueFailed):
		logger.Error("checkout enqueue failed", zap.Error(err))
		writeError(c, apiError{http.StatusInternalServerError, "enqueue_failed"}, err)
	default:
		e := classifyQuoteError(err)
		if e.status >= http.StatusInternalServerError {
			logger.Error("checkout failed", zap.String("code", e.code), zap.Error(err))
		}
		writeError(c, e, err)
	}
}

// replayResponse answers a repeated Idempotency-Key from the stored record.
func replayResponse(c *gin.Context, rec *idempotency.Record) {
	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" && json.Valid([]byte(rec.ResponseBody)) {
			status := rec.ResponseStatus
			if status == 0 {
				status = http.StatusOK
			}
			c.Data(status, "application/json", []byte(rec.ResponseBody))
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_id": rec.OrderID})
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress", "order_id": rec.OrderID})
	case idempotency.StatusFailed:
		// let client retry with a new key
		c.JSON(http.StatusInternalServerError, gin.H{"error": "previous_attempt_failed", "message": rec.Note, "order_id": rec.OrderID})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_idempotency_status", "message": rec.Status})
	}
}
