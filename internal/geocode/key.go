package geocode

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"

	"github.com/web-kovcheg/storefront/internal/address"
)

// MaxKeyLength bounds cache keys.
const MaxKeyLength = 300

var nonKeyChars = regexp.MustCompile(`[^a-z0-9]+`)

// CacheKey derives the stable storage key for a raw address: transliterated
// to ASCII, lowercased, with every run of non-alphanumerics collapsed to "_".
// "Aniisi 11, Saue" and "aniisi  11 saue" share a key.
func CacheKey(raw string) string {
	s := strings.ToLower(unidecode.Unidecode(address.Clean(raw)))
	s = strings.Trim(nonKeyChars.ReplaceAllString(s, "_"), "_")
	if len(s) > MaxKeyLength {
		s = strings.TrimRight(s[:MaxKeyLength], "_")
	}
	return s
}
