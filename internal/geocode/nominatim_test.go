package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web-kovcheg/storefront/internal/address"
)

func TestNominatim_FreeTextQuery(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"59.3225","lon":"24.5482","display_name":"Aniisi 11, Saue","address":{"road":"Aniisi","house_number":"11","town":"Saue","postcode":"76505"}}]`))
	}))
	defer srv.Close()

	n := NewNominatim(ProviderOptions{BaseURL: srv.URL + "/", UserAgent: "test-agent", CountryCode: "EE"})
	places, err := n.Search(context.Background(), address.Query{Text: "Aniisi 11, Saue, Estonia"}, 1)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "59.3225", places[0].Lat)
	assert.Equal(t, "Saue", places[0].Address["town"])

	require.NotNil(t, got)
	assert.Equal(t, "/search", got.URL.Path)
	qs := got.URL.Query()
	assert.Equal(t, "Aniisi 11, Saue, Estonia", qs.Get("q"))
	assert.Equal(t, "ee", qs.Get("countrycodes"))
	assert.Equal(t, "json", qs.Get("format"))
	assert.Equal(t, "1", qs.Get("limit"))
	assert.Equal(t, "test-agent", got.Header.Get("User-Agent"))
}

func TestNominatim_StructuredQuery(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	n := NewNominatim(ProviderOptions{BaseURL: srv.URL})
	places, err := n.Search(context.Background(), address.Query{Structured: true, Street: "Aniisi 11", PostalCode: "76505"}, 3)
	require.NoError(t, err)
	assert.Empty(t, places)

	qs := got.URL.Query()
	assert.Equal(t, "Aniisi 11", qs.Get("street"))
	assert.Equal(t, "76505", qs.Get("postalcode"))
	assert.Equal(t, "Estonia", qs.Get("country"))
	assert.Equal(t, "3", qs.Get("limit"))
	assert.False(t, qs.Has("city"))
	assert.False(t, qs.Has("q"))
}

func TestNominatim_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, "slow down", ErrRateLimited},
		{"server error", http.StatusBadGateway, "upstream", ErrGeocoderFailed},
		{"bad json", http.StatusOK, "{not json", ErrGeocoderFailed},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.status)
				_, _ = w.Write([]byte(c.body))
			}))
			defer srv.Close()

			_, err := NewNominatim(ProviderOptions{BaseURL: srv.URL}).Search(context.Background(), address.Query{Text: "x"}, 1)
			assert.ErrorIs(t, err, c.want)
		})
	}
}

func TestNominatim_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewNominatim(ProviderOptions{BaseURL: url}).Search(context.Background(), address.Query{Text: "x"}, 1)
	assert.ErrorIs(t, err, ErrGeocoderUnavailable)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider("Nominatim", ProviderOptions{})
	require.NoError(t, err)
	assert.Equal(t, ProviderNominatim, p.Name())

	_, err = NewProvider("mapbox", ProviderOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}
