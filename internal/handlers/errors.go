package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/web-kovcheg/storefront/internal/geocode"
	"github.com/web-kovcheg/storefront/internal/shipping"
)

// apiError is a classified failure: HTTP status plus a stable error code.
type apiError struct {
	status int
	code   string
}

// quoteErrors classifies quote failures, first match wins.
var quoteErrors = []struct {
	err error
	apiError
}{
	{shipping.ErrAddressRequired, apiError{http.StatusBadRequest, "address_required"}},
	{shipping.ErrInvalidItemsJSON, apiError{http.StatusBadRequest, "invalid_items_json"}},
	{shipping.ErrWarehouseNotConfigured, apiError{http.StatusInternalServerError, "warehouse_not_configured"}},
	{geocode.ErrAddressNotFound, apiError{http.StatusUnprocessableEntity, "address_not_found"}},
	{geocode.ErrRateLimited, apiError{http.StatusTooManyRequests, "geocode_rate_limited"}},
	{geocode.ErrInvalidCoordinate, apiError{http.StatusBadGateway, "geocode_invalid"}},
	{geocode.ErrGeocoderFailed, apiError{http.StatusBadGateway, "geocode_failed"}},
	{geocode.ErrGeocoderUnavailable, apiError{http.StatusBadGateway, "geocode_failed"}},
	{geocode.ErrUnsupportedProvider, apiError{http.StatusNotImplemented, "geocoder_not_implemented"}},
}

func classifyQuoteError(err error) apiError {
	for _, e := range quoteErrors {
		if errors.Is(err, e.err) {
			return e.apiError
		}
	}
	return apiError{http.StatusInternalServerError, "internal_error"}
}

func classifySuggestError(err error) apiError {
	switch {
	case errors.Is(err, geocode.ErrQueryTooShort):
		return apiError{http.StatusBadRequest, "query_too_short"}
	case errors.Is(err, geocode.ErrRateLimited):
		return apiError{http.StatusTooManyRequests, "rate_limited"}
	case errors.Is(err, geocode.ErrUnsupportedProvider):
		return apiError{http.StatusNotImplemented, "geocoder_not_implemented"}
	}
	return apiError{http.StatusBadGateway, "geocoder_failed"}
}

func writeError(c *gin.Context, e apiError, err error) {
	msg := http.StatusText(e.status)
	if err != nil && e.status < http.StatusInternalServerError {
		msg = err.Error()
	}
	c.JSON(e.status, gin.H{"error": e.code, "message": msg})
}
