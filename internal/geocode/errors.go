package geocode

import "errors"

var (
	// ErrAddressNotFound means no candidate or fallback query matched.
	ErrAddressNotFound = errors.New("geocode: address not found")
	// ErrRateLimited is returned when the provider answers HTTP 429.
	ErrRateLimited = errors.New("geocode: rate limited by provider")
	// ErrGeocoderUnavailable wraps transport failures talking to the provider.
	ErrGeocoderUnavailable = errors.New("geocode: provider unavailable")
	// ErrGeocoderFailed wraps non-success responses and undecodable bodies.
	ErrGeocoderFailed = errors.New("geocode: provider request failed")
	// ErrInvalidCoordinate is returned when the provider reports a non-finite
	// or out-of-range coordinate.
	ErrInvalidCoordinate = errors.New("geocode: invalid coordinate from provider")
	// ErrUnsupportedProvider is returned for a configured provider without an adapter.
	ErrUnsupportedProvider = errors.New("geocode: unsupported provider")
	// ErrQueryTooShort is returned by Suggest for queries under two characters.
	ErrQueryTooShort = errors.New("geocode: query too short")
)
