package docstore

import (
	"math"
	"strconv"
	"strings"
)

// Number coerces a loosely typed document field to a finite float64. Numeric
// strings are accepted because admin tooling stores some fields as text.
func Number(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// NumberOr is Number with a default for absent or malformed values.
func NumberOr(v any, def float64) float64 {
	if f, ok := Number(v); ok {
		return f
	}
	return def
}
