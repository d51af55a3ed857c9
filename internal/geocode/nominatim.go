package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/web-kovcheg/storefront/internal/address"
)

const (
	defaultNominatimURL = "https://nominatim.openstreetmap.org"
	maxErrorBody        = 512
)

// Nominatim queries the /search endpoint restricted to one country.
type Nominatim struct {
	baseURL     string
	userAgent   string
	country     string
	countryCode string
	client      *http.Client
}

// NewNominatim returns a Nominatim client. A zero Timeout means 5 seconds.
func NewNominatim(opts ProviderOptions) *Nominatim {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultNominatimURL
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "web-kovcheg/1.0"
	}
	country := opts.Country
	if country == "" {
		country = "Estonia"
	}
	code := strings.ToLower(opts.CountryCode)
	if code == "" {
		code = "ee"
	}
	return &Nominatim{
		baseURL:     base,
		userAgent:   ua,
		country:     country,
		countryCode: code,
		client:      &http.Client{Timeout: timeout},
	}
}

// Name implements Provider.
func (n *Nominatim) Name() string { return ProviderNominatim }

type nominatimPlace struct {
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
}

// Search implements Provider.
func (n *Nominatim) Search(ctx context.Context, q address.Query, limit int) ([]Place, error) {
	if limit <= 0 {
		limit = 1
	}
	params := url.Values{}
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("limit", strconv.Itoa(limit))
	if q.Structured {
		params.Set("country", n.country)
		if q.Street != "" {
			params.Set("street", q.Street)
		}
		if q.City != "" {
			params.Set("city", q.City)
		}
		if q.PostalCode != "" {
			params.Set("postalcode", q.PostalCode)
		}
	} else {
		params.Set("countrycodes", n.countryCode)
		params.Set("q", q.Text)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrGeocoderFailed, err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeocoderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: status %d: %s", ErrGeocoderFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var raw []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrGeocoderFailed, err)
	}
	places := make([]Place, 0, len(raw))
	for _, p := range raw {
		places = append(places, Place{Lat: p.Lat, Lon: p.Lon, DisplayName: p.DisplayName, Address: p.Address})
	}
	return places, nil
}
