package geocode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/web-kovcheg/storefront/internal/address"
)

// ProviderNominatim is the OpenStreetMap Nominatim search API.
const ProviderNominatim = "nominatim"

// Place is one provider match. Coordinates stay string-encoded as the
// provider sends them; callers validate.
type Place struct {
	Lat         string
	Lon         string
	DisplayName string
	Address     map[string]string
}

// Provider searches an external geocoding service.
type Provider interface {
	Name() string
	// Search returns at most limit matches. It fails with ErrRateLimited,
	// ErrGeocoderUnavailable or ErrGeocoderFailed.
	Search(ctx context.Context, q address.Query, limit int) ([]Place, error)
}

// ProviderOptions configures NewProvider.
type ProviderOptions struct {
	BaseURL     string
	UserAgent   string
	Country     string
	CountryCode string
	Timeout     time.Duration
}

// NewProvider returns the adapter registered under name.
func NewProvider(name string, opts ProviderOptions) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProviderNominatim, "":
		return NewNominatim(opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
	}
}
