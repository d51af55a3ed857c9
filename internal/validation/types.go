package validation

// CheckoutItem is one cart line submitted at checkout.
type CheckoutItem struct {
	ID     string   `json:"id" validate:"required,max=128"`
	Qty    int      `json:"qty" validate:"required,min=1,max=999"`
	Weight *float64 `json:"weight,omitempty" validate:"omitempty,gte=0"` // optional inline weight (kg)
}

// ShippingChoice is the option and price the buyer accepted from a quote.
type ShippingChoice struct {
	OptionID string   `json:"option_id" validate:"required,oneof=standard express pickup"`
	PriceEUR *float64 `json:"price_eur" validate:"required,gte=0"`
}

// CheckoutRequest is the payload for POST /checkout.
type CheckoutRequest struct {
	Email    string         `json:"email" validate:"required,email,max=254"`
	Address  string         `json:"address" validate:"required,max=500"`
	Items    []CheckoutItem `json:"items" validate:"required,min=1,max=100,dive"`
	Subtotal *float64       `json:"subtotal,omitempty" validate:"omitempty,gte=0"` // informational; the server recomputes it
	Shipping ShippingChoice `json:"shipping"`
}
