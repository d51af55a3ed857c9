package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/web-kovcheg/storefront/internal/aws"
)

// ErrNotFound is returned by the Mark methods when the key was never recorded.
var ErrNotFound = errors.New("idempotency record not found")

// Store encapsulates idempotency operations against DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration // default TTL window when creating entries
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
// ttlWindow is how long keys are remembered (e.g., 48*time.Hour).
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// Table returns the idempotency table name, for callers writing records
// inside their own transactions.
func (s *Store) Table() string { return s.tableName }

// NewRecord builds an IN_PROGRESS record for key that expires after the TTL window.
func (s *Store) NewRecord(key, orderID, requestHash string) Record {
	now := s.nowFunc().UTC()
	return Record{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		OrderID:        orderID,
		RequestHash:    requestHash,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttlWindow).Unix(),
	}
}

// Get retrieves an idempotency record by key. Missing and expired records
// are (nil, nil).
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            recordKey(key),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	if rec.Expired(s.nowFunc()) {
		return nil, nil
	}
	return &rec, nil
}

// MarkDone sets status to DONE and stores the response replayed to duplicates.
func (s *Store) MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error {
	err := s.update(ctx, key, "SET #s = :done, response_body = :rb, response_status = :rs, updated_at = :ua", map[string]types.AttributeValue{
		":done": &types.AttributeValueMemberS{Value: StatusDone},
		":rb":   &types.AttributeValueMemberS{Value: responseBody},
		":rs":   &types.AttributeValueMemberN{Value: strconv.Itoa(responseStatus)},
	})
	if err != nil {
		return fmt.Errorf("update item (mark done): %w", err)
	}
	return nil
}

// MarkFailed marks the record FAILED with a note so the client may retry with a new key.
func (s *Store) MarkFailed(ctx context.Context, key, note string) error {
	err := s.update(ctx, key, "SET #s = :failed, note = :n, updated_at = :ua", map[string]types.AttributeValue{
		":failed": &types.AttributeValueMemberS{Value: StatusFailed},
		":n":      &types.AttributeValueMemberS{Value: note},
	})
	if err != nil {
		return fmt.Errorf("update item (mark failed): %w", err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, key, expr string, values map[string]types.AttributeValue) error {
	values[":ua"] = &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339)}
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       recordKey(key),
		UpdateExpression:          &expr,
		ConditionExpression:       awsString("attribute_exists(idempotency_key)"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException" {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Fingerprint returns a stable hash of a request payload.
func Fingerprint(payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func recordKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"idempotency_key": &types.AttributeValueMemberS{Value: key},
	}
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
