package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/web-kovcheg/storefront/internal/aws"
)

var (
	// ErrStatusMismatch is returned by UpdateStatus when the order is not in the expected status.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrDuplicateKey is returned by CreateWithIdempotency when the idempotency key already exists.
	ErrDuplicateKey = errors.New("idempotency key already exists")
)

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// CreateWithIdempotency atomically writes the idempotency record (only if its
// key is new or expired) and the order. record must marshal with an idempotency_key
// attribute; an expires_at TTL is added when it has none and ttl > 0.
func (s *Store) CreateWithIdempotency(ctx context.Context, idempotencyTable string, record any, order Order, ttl time.Duration) error {
	idempMap, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshal idempotency item: %w", err)
	}
	now := s.nowFunc()
	if _, ok := idempMap["expires_at"]; !ok && ttl > 0 {
		idempMap["expires_at"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(ttl).Unix(), 10)}
	}

	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName: &idempotencyTable,
					Item:      idempMap,
					// expired keys linger until the TTL sweeper removes them
					ConditionExpression: awsString("attribute_not_exists(idempotency_key) OR expires_at <= :now"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
					},
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.tableName,
					Item:                orderMap,
					ConditionExpression: awsString("attribute_not_exists(order_id)"),
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) && len(tce.CancellationReasons) > 0 && reasonCode(tce.CancellationReasons[0]) == "ConditionalCheckFailed" {
			return ErrDuplicateKey
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

func reasonCode(r types.CancellationReason) string {
	if r.Code == nil {
		return ""
	}
	return *r.Code
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       orderKey(orderID),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// UpdateStatus conditionally moves the order from expected to next.
// Returns ErrStatusMismatch if the order is in any other status.
func (s *Store) UpdateStatus(ctx context.Context, orderID, expected, next string) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      orderKey(orderID),
		UpdateExpression:         awsString("SET #s = :new, updated_at = :ua"),
		ConditionExpression:      awsString("#s = :expected"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: next},
			":expected": &types.AttributeValueMemberS{Value: expected},
			":ua":       &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// IncrementAttempts increases the attempts counter by 1 and returns the new value.
func (s *Store) IncrementAttempts(ctx context.Context, orderID string) (int, error) {
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 orderKey(orderID),
		UpdateExpression:    awsString("SET attempts = if_not_exists(attempts, :zero) + :inc, updated_at = :ua"),
		ConditionExpression: awsString("attribute_exists(order_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":inc":  &types.AttributeValueMemberN{Value: "1"},
			":ua":   &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	var updated struct {
		Attempts int `dynamodbav:"attempts"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return 0, fmt.Errorf("unmarshal attempts: %w", err)
	}
	return updated.Attempts, nil
}

func orderKey(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
}

func awsString(s string) *string { return &s }
