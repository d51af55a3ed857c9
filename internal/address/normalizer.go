package address

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Warning tags emitted while building candidates or choosing fallbacks.
const (
	WarnZipCityHeuristic = "address_zip_city_heuristic"
	WarnPostalFallback   = "address_postal_fallback"
	WarnCityFallback     = "address_city_fallback"
)

var (
	postalCodePattern   = regexp.MustCompile(`\b\d{5}\b`)
	abbreviationPattern = regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}])(tn|mnt|pst)(\.?)`)
	regionPattern       = regexp.MustCompile(`(?i),?\s*[\p{L}\- ]+\s+maakond`)
	regionWordPattern   = regexp.MustCompile(`(?i)maakond`)
	letterPattern       = regexp.MustCompile(`[\p{L}]`)
	digitPattern        = regexp.MustCompile(`\d`)
	spacePattern        = regexp.MustCompile(`\s+`)
)

// streetTypes maps Estonian street-type abbreviations to the full word.
var streetTypes = map[string]string{
	"tn":  "tänav",
	"mnt": "maantee",
	"pst": "puiestee",
}

// Query is one geocoder lookup. Free-text queries set Text; structured
// queries set Structured and any of Street, City and PostalCode.
type Query struct {
	Text       string
	Structured bool
	Street     string
	City       string
	PostalCode string
}

// Fallback is a last-resort query and the warning recorded when it matches.
type Fallback struct {
	Query   Query
	Warning string
}

// Candidates is the ordered lookup plan for one raw address.
type Candidates struct {
	Queries    []Query
	Street     string
	City       string
	PostalCode string
	Warnings   []string

	country string
}

// Fallbacks returns the postal-code-only and locality-only queries, in that
// order, for the components that are known.
func (c Candidates) Fallbacks() []Fallback {
	var out []Fallback
	if c.PostalCode != "" {
		out = append(out, Fallback{Query: Query{Text: qualify(c.PostalCode, c.country)}, Warning: WarnPostalFallback})
	}
	if c.City != "" {
		out = append(out, Fallback{Query: Query{Text: qualify(c.City, c.country)}, Warning: WarnCityFallback})
	}
	return out
}

// Normalizer rewrites free-text addresses into geocoder query candidates
// scoped to a single country.
type Normalizer struct {
	country string
}

// NewNormalizer returns a Normalizer that qualifies every query with country.
func NewNormalizer(country string) *Normalizer {
	country = strings.TrimSpace(country)
	if country == "" {
		country = "Estonia"
	}
	return &Normalizer{country: country}
}

// Country returns the qualifier appended to queries.
func (n *Normalizer) Country() string { return n.country }

// Candidates builds the lookup plan for raw, most specific query first.
func (n *Normalizer) Candidates(raw string) Candidates {
	raw = Clean(raw)
	parts := splitParts(raw)
	zip := postalCodePattern.FindString(raw)

	out := Candidates{PostalCode: zip, country: n.country}

	street := ""
	if len(parts) > 0 {
		street = parts[0]
	}
	city := n.findCity(parts)

	if city == "" && zip != "" && street != "" && len(parts) == 1 {
		if guessCity, guessStreet := n.splitTrailingCity(street, zip); guessCity != "" {
			city = guessCity
			if guessStreet != "" {
				street = guessStreet
				out.Warnings = append(out.Warnings, WarnZipCityHeuristic)
			}
		}
	}

	original := qualify(raw, n.country)
	add := func(q Query) {
		for _, existing := range out.Queries {
			if !existing.Structured && !q.Structured && strings.EqualFold(existing.Text, q.Text) {
				return
			}
		}
		out.Queries = append(out.Queries, q)
	}
	add(Query{Text: original})
	add(Query{Text: qualify(StripRegion(ExpandAbbreviations(raw)), n.country)})

	streetClean := ""
	if street != "" {
		streetClean = collapse(postalCodePattern.ReplaceAllString(ExpandAbbreviations(StripRegion(street)), " "))
	}
	cityClean := ""
	if city != "" {
		cityClean = ExpandAbbreviations(StripRegion(city))
	}

	if zip != "" && city != "" {
		locality := zip + " " + city
		text := locality
		if streetClean != "" {
			text = streetClean + ", " + locality
		}
		add(Query{Text: qualify(text, n.country)})
	}

	if streetClean != "" || cityClean != "" || zip != "" {
		add(Query{Structured: true, Street: streetClean, City: cityClean, PostalCode: zip})
	}

	out.Street = streetClean
	out.City = cityClean
	return out
}

// findCity picks the first comma-separated part after the street that names
// a locality: it has letters once the postal code is removed and is neither
// the country nor an administrative region.
func (n *Normalizer) findCity(parts []string) string {
	if len(parts) < 2 {
		return ""
	}
	for _, p := range parts[1:] {
		if n.mentionsCountry(p) || regionWordPattern.MatchString(p) {
			continue
		}
		candidate := collapse(postalCodePattern.ReplaceAllString(p, " "))
		if letterPattern.MatchString(candidate) {
			return candidate
		}
	}
	return ""
}

// splitTrailingCity handles single-part addresses such as "Aniisi 11 Saue 76505":
// the last purely alphabetic token becomes the locality, the text before it the street.
func (n *Normalizer) splitTrailingCity(street, zip string) (city, rest string) {
	cleaned := ExpandAbbreviations(StripRegion(street))
	noZip := collapse(strings.Replace(cleaned, zip, " ", 1))
	tokens := strings.Fields(noZip)
	for i := len(tokens) - 1; i >= 0; i-- {
		t := tokens[i]
		if !letterPattern.MatchString(t) || digitPattern.MatchString(t) || n.mentionsCountry(t) {
			continue
		}
		idx := strings.LastIndex(noZip, t)
		return t, strings.TrimSpace(strings.TrimRight(noZip[:idx], ", "))
	}
	return "", ""
}

func (n *Normalizer) mentionsCountry(s string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(n.country))
}

// Clean applies Unicode NFC normalisation, trims and collapses whitespace.
func Clean(s string) string {
	return collapse(norm.NFC.String(s))
}

// ExpandAbbreviations rewrites street-type abbreviations ("tn.", "mnt", "pst.")
// to full words. An abbreviation must stand alone: "Pärnu mnt" expands,
// "Kärtna" does not.
func ExpandAbbreviations(s string) string {
	var b strings.Builder
	last := 0
	for _, m := range abbreviationPattern.FindAllStringSubmatchIndex(s, -1) {
		wordStart, wordEnd, end := m[4], m[5], m[1]
		if end < len(s) && m[7] == m[6] {
			// no dot: the next rune must not continue the word
			r, _ := utf8.DecodeRuneInString(s[end:])
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				continue
			}
		}
		b.WriteString(s[last:wordStart])
		b.WriteString(" ")
		b.WriteString(streetTypes[strings.ToLower(s[wordStart:wordEnd])])
		b.WriteString(" ")
		last = end
	}
	b.WriteString(s[last:])
	return collapse(b.String())
}

// StripRegion removes "<name> maakond" county suffixes.
func StripRegion(s string) string {
	return collapse(regionPattern.ReplaceAllString(s, ""))
}

func qualify(s, country string) string {
	if strings.Contains(strings.ToLower(s), strings.ToLower(country)) {
		return s
	}
	return s + ", " + country
}

func splitParts(s string) []string {
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func collapse(s string) string {
	s = strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
	return strings.ReplaceAll(s, " ,", ",")
}
