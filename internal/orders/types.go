package orders

import "time"

// Order statuses
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Item is one priced order line.
type Item struct {
	ProductID    string  `dynamodbav:"product_id" json:"id"`
	Name         string  `dynamodbav:"name,omitempty" json:"name,omitempty"`
	Qty          int     `dynamodbav:"qty" json:"qty"`
	UnitPriceEUR float64 `dynamodbav:"unit_price_eur" json:"unit_price_eur"`
}

// Shipping is the shipping option the buyer accepted, as recomputed by the server.
type Shipping struct {
	OptionID string  `dynamodbav:"option_id" json:"id"`
	Label    string  `dynamodbav:"label" json:"label"`
	PriceEUR float64 `dynamodbav:"price_eur" json:"price_eur"`
	EtaDays  int     `dynamodbav:"eta_days" json:"eta_days"`
}

// Order represents the item stored in the Orders DynamoDB table.
type Order struct {
	OrderID        string    `dynamodbav:"order_id"` // PK
	IdempotencyKey string    `dynamodbav:"idempotency_key"`
	Status         string    `dynamodbav:"status"` // PENDING | PROCESSING | COMPLETED | FAILED
	Email          string    `dynamodbav:"email"`
	Address        string    `dynamodbav:"address"`
	Items          []Item    `dynamodbav:"items"`
	Shipping       Shipping  `dynamodbav:"shipping"`
	SubtotalEUR    float64   `dynamodbav:"subtotal_eur"`
	TotalEUR       float64   `dynamodbav:"total_eur"`
	Currency       string    `dynamodbav:"currency"`
	DistanceKm     float64   `dynamodbav:"distance_km"`
	TotalWeightKg  float64   `dynamodbav:"total_weight_kg"`
	Warnings       []string  `dynamodbav:"warnings,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	Attempts       int       `dynamodbav:"attempts,omitempty"`
}

// Receipt is the checkout response for an order.
type Receipt struct {
	OrderID     string   `json:"order_id"`
	Status      string   `json:"status"`
	SubtotalEUR float64  `json:"subtotal_eur"`
	Shipping    Shipping `json:"shipping"`
	TotalEUR    float64  `json:"total_eur"`
	Currency    string   `json:"currency"`
}

// Receipt summarises o for the buyer.
func (o Order) Receipt() Receipt {
	return Receipt{
		OrderID:     o.OrderID,
		Status:      o.Status,
		SubtotalEUR: o.SubtotalEUR,
		Shipping:    o.Shipping,
		TotalEUR:    o.TotalEUR,
		Currency:    o.Currency,
	}
}
