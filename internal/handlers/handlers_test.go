package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web-kovcheg/storefront/internal/checkout"
	"github.com/web-kovcheg/storefront/internal/geo"
	"github.com/web-kovcheg/storefront/internal/geocode"
	"github.com/web-kovcheg/storefront/internal/idempotency"
	"github.com/web-kovcheg/storefront/internal/orders"
	"github.com/web-kovcheg/storefront/internal/shipping"
)

type fakeQuoter struct {
	quote *shipping.Quote
	err   error
	got   shipping.Request
}

func (f *fakeQuoter) Quote(_ context.Context, req shipping.Request) (*shipping.Quote, error) {
	f.got = req
	return f.quote, f.err
}

type fakeSuggester struct {
	list   []geocode.Suggestion
	cached bool
	err    error
	limit  int
}

func (f *fakeSuggester) Suggest(_ context.Context, _ string, limit int) ([]geocode.Suggestion, bool, error) {
	f.limit = limit
	return f.list, f.cached, f.err
}

type fakeCheckout struct {
	receipt *orders.Receipt
	err     error
	got     checkout.Request
}

func (f *fakeCheckout) Place(_ context.Context, req checkout.Request) (*orders.Receipt, error) {
	f.got = req
	return f.receipt, f.err
}

type recordingCounter struct {
	mu    sync.Mutex
	names []string
}

func (r *recordingCounter) Count(_ context.Context, name string, dims map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := dims["Outcome"]; ok {
		name += ":" + o
	}
	r.names = append(r.names, name)
}

func newRouter(cfg HandlerConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, cfg)
	return r
}

func do(r http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestShippingQuote_OK(t *testing.T) {
	q := &fakeQuoter{quote: &shipping.Quote{
		Address:  "Aniisi 11, Saue",
		Cached:   true,
		Currency: "eur",
		Options:  []shipping.Option{{ID: shipping.OptionStandard, Label: "Стандарт", PriceEUR: 4.5, EtaDays: 2}},
		Warnings: []string{},
	}}
	metrics := &recordingCounter{}
	r := newRouter(HandlerConfig{Quoter: q, Metrics: metrics})

	target := "/shipping-quote?address=" + url.QueryEscape("Aniisi 11, Saue") +
		"&subtotal=12.5&items=" + url.QueryEscape(`[{"id":"p1","qty":2}]`)
	rec := do(r, http.MethodGet, target, "", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Aniisi 11, Saue", q.got.Address)
	assert.Equal(t, 12.5, q.got.SubtotalEUR)
	assert.Equal(t, `[{"id":"p1","qty":2}]`, q.got.ItemsJSON)

	body := decode(t, rec)
	assert.Equal(t, true, body["cached"])
	assert.Len(t, body["options"], 1)
	assert.Equal(t, []string{MetricGeocodeCacheHit, MetricShippingQuote + ":ok"}, metrics.names)
}

func TestShippingQuote_BadSubtotalIsZero(t *testing.T) {
	q := &fakeQuoter{quote: &shipping.Quote{}}
	r := newRouter(HandlerConfig{Quoter: q})

	rec := do(r, http.MethodGet, "/shipping-quote?address=x&subtotal=abc", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, q.got.SubtotalEUR)
}

type noGeocoder struct{ calls int }

func (g *noGeocoder) Resolve(context.Context, string) (*geocode.Result, error) {
	g.calls++
	return nil, geocode.ErrAddressNotFound
}

func TestShippingQuote_PreconditionsBeforeItems(t *testing.T) {
	wh := geo.Coordinate{Lat: 59.437, Lon: 24.7536}
	cases := []struct {
		name      string
		warehouse *geo.Coordinate
		address   string
		status    int
		code      string
	}{
		{"warehouse missing", nil, "Aniisi 11", http.StatusInternalServerError, "warehouse_not_configured"},
		{"address missing", &wh, "", http.StatusBadRequest, "address_required"},
		{"bad items", &wh, "Aniisi 11", http.StatusBadRequest, "invalid_items_json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := &noGeocoder{}
			metrics := &recordingCounter{}
			quoter := shipping.NewQuoter(tc.warehouse, g, nil, nil)
			r := newRouter(HandlerConfig{Quoter: quoter, Metrics: metrics})

			rec := do(r, http.MethodGet, "/shipping-quote?address="+url.QueryEscape(tc.address)+"&items=%7Bnope", "", nil)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decode(t, rec)["error"])
			assert.Zero(t, g.calls)
			assert.Equal(t, []string{MetricShippingQuote + ":" + tc.code}, metrics.names)
		})
	}
}

func TestShippingQuote_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{shipping.ErrAddressRequired, http.StatusBadRequest, "address_required"},
		{shipping.ErrWarehouseNotConfigured, http.StatusInternalServerError, "warehouse_not_configured"},
		{fmt.Errorf("resolve: %w", geocode.ErrAddressNotFound), http.StatusUnprocessableEntity, "address_not_found"},
		{geocode.ErrRateLimited, http.StatusTooManyRequests, "geocode_rate_limited"},
		{geocode.ErrInvalidCoordinate, http.StatusBadGateway, "geocode_invalid"},
		{geocode.ErrGeocoderFailed, http.StatusBadGateway, "geocode_failed"},
		{geocode.ErrGeocoderUnavailable, http.StatusBadGateway, "geocode_failed"},
		{geocode.ErrUnsupportedProvider, http.StatusNotImplemented, "geocoder_not_implemented"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			r := newRouter(HandlerConfig{Quoter: &fakeQuoter{err: tc.err}})
			rec := do(r, http.MethodGet, "/shipping-quote?address=x", "", nil)
			assert.Equal(t, tc.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tc.code, body["error"])
			if tc.status >= http.StatusInternalServerError {
				assert.Equal(t, http.StatusText(tc.status), body["message"])
			}
		})
	}
}

func TestAddressSuggest(t *testing.T) {
	s := &fakeSuggester{list: []geocode.Suggestion{{Label: "Aniisi 11, Saue"}}, cached: true}
	r := newRouter(HandlerConfig{Suggester: s})

	rec := do(r, http.MethodGet, "/address-suggest?q=Aniisi&limit=3", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, s.limit)
	body := decode(t, rec)
	assert.Equal(t, true, body["cached"])
	assert.Len(t, body["suggestions"], 1)
}

func TestAddressSuggest_Errors(t *testing.T) {
	cases := map[error]int{
		geocode.ErrQueryTooShort:       http.StatusBadRequest,
		geocode.ErrRateLimited:         http.StatusTooManyRequests,
		geocode.ErrUnsupportedProvider: http.StatusNotImplemented,
		geocode.ErrGeocoderFailed:      http.StatusBadGateway,
	}
	for err, status := range cases {
		r := newRouter(HandlerConfig{Suggester: &fakeSuggester{err: err}})
		rec := do(r, http.MethodGet, "/address-suggest?q=ab", "", nil)
		assert.Equal(t, status, rec.Code, err.Error())
	}
}

const checkoutBody = `{
	"email": "buyer@example.com",
	"address": "Aniisi 11, 76505 Saue",
	"items": [{"id": "p1", "qty": 2}],
	"shipping": {"option_id": "standard", "price_eur": 4.5}
}`

func TestCheckout_Created(t *testing.T) {
	svc := &fakeCheckout{receipt: &orders.Receipt{OrderID: "o-1", Status: orders.StatusPending, TotalEUR: 24.5}}
	r := newRouter(HandlerConfig{Checkout: svc})

	rec := do(r, http.MethodPost, "/checkout", checkoutBody, map[string]string{
		IdempotencyKeyHeader: "key-1",
		"X-Request-Id":       "req-1",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/orders/o-1", rec.Header().Get("Location"))
	assert.Equal(t, "o-1", decode(t, rec)["order_id"])

	assert.Equal(t, "key-1", svc.got.IdempotencyKey)
	assert.Equal(t, "req-1", svc.got.CorrelationID)
	assert.Equal(t, "standard", svc.got.OptionID)
	assert.Equal(t, 4.5, svc.got.ClaimedPrice)
	require.Len(t, svc.got.Lines, 1)
	assert.Equal(t, checkout.Line{ID: "p1", Qty: 2}, svc.got.Lines[0])
}

func TestCheckout_MissingIdempotencyKey(t *testing.T) {
	r := newRouter(HandlerConfig{Checkout: &fakeCheckout{}})

	rec := do(r, http.MethodPost, "/checkout", checkoutBody, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_idempotency_key", decode(t, rec)["error"])
}

func TestCheckout_ValidationFailed(t *testing.T) {
	r := newRouter(HandlerConfig{Checkout: &fakeCheckout{}})

	rec := do(r, http.MethodPost, "/checkout", `{"email":"nope","items":[]}`, map[string]string{IdempotencyKeyHeader: "k"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decode(t, rec)["error"])
}

func TestCheckout_Replay(t *testing.T) {
	cases := []struct {
		name   string
		record idempotency.Record
		status int
	}{
		{"done", idempotency.Record{Status: idempotency.StatusDone, ResponseStatus: 201, ResponseBody: `{"order_id":"o-1"}`}, http.StatusCreated},
		{"in progress", idempotency.Record{Status: idempotency.StatusInProgress, OrderID: "o-1"}, http.StatusAccepted},
		{"failed", idempotency.Record{Status: idempotency.StatusFailed, OrderID: "o-1"}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := tc.record
			svc := &fakeCheckout{err: &checkout.ReplayError{Record: &rec}}
			r := newRouter(HandlerConfig{Checkout: svc})

			resp := do(r, http.MethodPost, "/checkout", checkoutBody, map[string]string{IdempotencyKeyHeader: "k"})

			assert.Equal(t, tc.status, resp.Code)
			assert.Equal(t, "o-1", decode(t, resp)["order_id"])
		})
	}
}

func TestCheckout_PriceChanged(t *testing.T) {
	options := []shipping.Option{{ID: shipping.OptionStandard, PriceEUR: 3.2}}
	svc := &fakeCheckout{err: &shipping.PriceChangedError{OptionID: "standard", Claimed: 4.5, Quoted: 3.2, Offered: true, Options: options}}
	r := newRouter(HandlerConfig{Checkout: svc})

	rec := do(r, http.MethodPost, "/checkout", checkoutBody, map[string]string{IdempotencyKeyHeader: "k"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "price_changed", body["error"])
	assert.Len(t, body["options"], 1)
}

func TestCheckout_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{checkout.ErrKeyReused, http.StatusUnprocessableEntity, "idempotency_key_reused"},
		{fmt.Errorf("%w: p9", checkout.ErrUnknownProduct), http.StatusBadRequest, "unknown_product"},
		{checkout.ErrEnqueueFailed, http.StatusInternalServerError, "enqueue_failed"},
		{geocode.ErrAddressNotFound, http.StatusUnprocessableEntity, "address_not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			r := newRouter(HandlerConfig{Checkout: &fakeCheckout{err: tc.err}})
			rec := do(r, http.MethodPost, "/checkout", checkoutBody, map[string]string{IdempotencyKeyHeader: "k"})
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decode(t, rec)["error"])
		})
	}
}
