package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/web-kovcheg/storefront/internal/geo"
)

// Config is the process configuration resolved from the environment.
type Config struct {
	AWSRegion   string
	AWSEndpoint string
	RunLocal    bool
	LogLevel    string

	// Warehouse is nil when WAREHOUSE_LAT/WAREHOUSE_LON are missing or invalid.
	Warehouse *geo.Coordinate

	Geocoder GeocoderConfig
	Tables   Tables

	OrdersQueueURL   string
	MetricsNamespace string
	IdempotencyTTL   time.Duration
}

// GeocoderConfig configures the external geocoding provider.
type GeocoderConfig struct {
	Provider    string
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	Country     string
	CountryCode string
}

// Tables maps document collections and stores to DynamoDB table names.
type Tables struct {
	ShippingConfig string
	GeoCache       string
	GeoSuggest     string
	Products       string
	Orders         string
	Idempotency    string
}

// Collections returns the collection -> table mapping used by the document store.
func (t Tables) Collections() map[string]string {
	return map[string]string{
		"shipping_config": t.ShippingConfig,
		"geocache":        t.GeoCache,
		"geosuggest":      t.GeoSuggest,
		"products":        t.Products,
	}
}

// Load reads the configuration using os.Getenv.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration through getenv.
func LoadFrom(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		AWSRegion:   get("AWS_REGION", "us-east-1"),
		AWSEndpoint: get("AWS_ENDPOINT_OVERRIDE", ""),
		RunLocal:    get("RUN_LOCAL", "") == "true",
		LogLevel:    get("LOG_LEVEL", "info"),
		Warehouse:   parseWarehouse(getenv("WAREHOUSE_LAT"), getenv("WAREHOUSE_LON")),
		Geocoder: GeocoderConfig{
			Provider:    strings.ToLower(get("GEOCODER_PROVIDER", "nominatim")),
			BaseURL:     strings.TrimRight(get("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"), "/"),
			Country:     get("GEOCODER_COUNTRY", "Estonia"),
			CountryCode: strings.ToLower(get("GEOCODER_COUNTRY_CODE", "ee")),
		},
		Tables: Tables{
			ShippingConfig: get("SHIPPING_CONFIG_TABLE", "shipping_config"),
			GeoCache:       get("GEOCACHE_TABLE", "geocache"),
			GeoSuggest:     get("GEOSUGGEST_TABLE", "geosuggest"),
			Products:       get("PRODUCTS_TABLE", "products"),
			Orders:         get("ORDERS_TABLE", "orders"),
			Idempotency:    get("IDEMPOTENCY_TABLE", "idempotency"),
		},
		OrdersQueueURL:   get("ORDERS_QUEUE_URL", ""),
		MetricsNamespace: get("METRICS_NAMESPACE", "Storefront"),
	}
	cfg.Geocoder.UserAgent = get("GEOCODER_UA", fmt.Sprintf("web-kovcheg/1.0 (%s)", get("ADMIN_EMAILS", "no-admin")))

	var err error
	if cfg.Geocoder.Timeout, err = parseDuration(get("GEOCODER_TIMEOUT", "5s")); err != nil {
		return Config{}, fmt.Errorf("GEOCODER_TIMEOUT: %w", err)
	}
	if cfg.IdempotencyTTL, err = parseDuration(get("IDEMPOTENCY_TTL", "48h")); err != nil {
		return Config{}, fmt.Errorf("IDEMPOTENCY_TTL: %w", err)
	}
	return cfg, nil
}

func parseWarehouse(latText, lonText string) *geo.Coordinate {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latText), 64)
	if err != nil {
		return nil
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonText), 64)
	if err != nil {
		return nil
	}
	c := geo.Coordinate{Lat: lat, Lon: lon}
	if !c.Valid() {
		return nil
	}
	return &c
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", s)
	}
	return d, nil
}
