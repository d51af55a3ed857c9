package idempotency

import "time"

// Record statuses. IN_PROGRESS is written with the order, DONE once the
// response is known, FAILED when the order could not be enqueued.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Record is one idempotency key, keyed by idempotency_key.
type Record struct {
	IdempotencyKey string `dynamodbav:"idempotency_key"`
	Status         string `dynamodbav:"status"`
	OrderID        string `dynamodbav:"order_id,omitempty"`
	// RequestHash fingerprints the first request that used the key.
	RequestHash    string    `dynamodbav:"request_hash,omitempty"`
	ResponseBody   string    `dynamodbav:"response_body,omitempty"`
	ResponseStatus int       `dynamodbav:"response_status,omitempty"`
	Note           string    `dynamodbav:"note,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // epoch seconds, table TTL attribute
}

// Matches reports whether a replayed request has the fingerprint the key was
// first used with. Records without a stored fingerprint match anything.
func (r *Record) Matches(requestHash string) bool {
	return r.RequestHash == "" || r.RequestHash == requestHash
}

// Expired reports whether the TTL has passed. DynamoDB removes expired
// items lazily, so reads must check.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt > 0 && now.Unix() >= r.ExpiresAt
}
