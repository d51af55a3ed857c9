package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator that reports json field names and runs
// the checkout struct-level rules.
func New() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterTagNameFunc(jsonName)
	v.RegisterStructValidation(checkoutStructValidation, CheckoutRequest{})
	return v
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// checkoutStructValidation rejects blank addresses and repeated product ids.
func checkoutStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CheckoutRequest)

	if req.Address != "" && strings.TrimSpace(req.Address) == "" {
		sl.ReportError(req.Address, "address", "Address", "notblank", "")
	}

	seen := make(map[string]struct{}, len(req.Items))
	for _, it := range req.Items {
		if _, dup := seen[it.ID]; dup {
			sl.ReportError(req.Items, "items", "Items", "unique_ids", it.ID)
			return
		}
		seen[it.ID] = struct{}{}
	}
}
