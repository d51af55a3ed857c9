package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/web-kovcheg/storefront/internal/logging"
	"github.com/web-kovcheg/storefront/internal/shipping"
)

// Metric names recorded by the quote endpoint.
const (
	MetricShippingQuote    = "ShippingQuote"
	MetricGeocodeCacheHit  = "GeocodeCacheHit"
	MetricGeocodeCacheMiss = "GeocodeCacheMiss"
)

func (h *handler) shippingQuote(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.FromContext(ctx)

	subtotal, err := strconv.ParseFloat(strings.TrimSpace(c.Query("subtotal")), 64)
	if err != nil {
		subtotal = 0
	}
	quote, err := h.quoter.Quote(ctx, shipping.Request{
		Address:     c.Query("address"),
		SubtotalEUR: subtotal,
		ItemsJSON:   c.Query("items"),
	})
	if err != nil {
		e := classifyQuoteError(err)
		if e.status >= http.StatusInternalServerError {
			logger.Error("shipping quote failed", zap.String("code", e.code), zap.Error(err))
		} else {
			logger.Info("shipping quote rejected", zap.String("code", e.code), zap.Error(err))
		}
		h.quoteFailed(c, e, err)
		return
	}

	cacheMetric := MetricGeocodeCacheMiss
	if quote.Cached {
		cacheMetric = MetricGeocodeCacheHit
	}
	h.metrics.Count(ctx, cacheMetric, nil)
	h.metrics.Count(ctx, MetricShippingQuote, map[string]string{"Outcome": "ok"})
	c.JSON(http.StatusOK, quote)
}

func (h *handler) quoteFailed(c *gin.Context, e apiError, err error) {
	h.metrics.Count(c.Request.Context(), MetricShippingQuote, map[string]string{"Outcome": e.code})
	writeError(c, e, err)
}
