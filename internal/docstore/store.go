// Package docstore is a small document-store abstraction ("collection/id"
// addressed records) backed by DynamoDB tables.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/web-kovcheg/storefront/internal/aws"
)

// KeyAttribute is the partition key attribute of every collection table.
const KeyAttribute = "id"

// ErrUnknownCollection is returned for a collection without a table mapping.
var ErrUnknownCollection = errors.New("docstore: unknown collection")

// Store reads and writes documents addressed by collection and id.
type Store interface {
	// Get decodes the document into out (a pointer to a struct or map) and
	// reports whether it exists.
	Get(ctx context.Context, collection, id string, out any) (bool, error)
	// Put replaces the document. Concurrent writers are last-write-wins.
	Put(ctx context.Context, collection, id string, doc any) error
}

// DynamoStore maps each collection to one DynamoDB table keyed by "id".
type DynamoStore struct {
	client aws.DynamoDBAPI
	tables map[string]string
}

// NewDynamoStore returns a store; tables maps collection names to table names.
func NewDynamoStore(client aws.DynamoDBAPI, tables map[string]string) *DynamoStore {
	copied := make(map[string]string, len(tables))
	for k, v := range tables {
		copied[k] = v
	}
	return &DynamoStore{client: client, tables: copied}
}

func (s *DynamoStore) table(collection string) (string, error) {
	t, ok := s.tables[collection]
	if !ok || t == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	return t, nil
}

// Get implements Store.
func (s *DynamoStore) Get(ctx context.Context, collection, id string, out any) (bool, error) {
	table, err := s.table(collection)
	if err != nil {
		return false, err
	}
	res, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &table,
		Key: map[string]types.AttributeValue{
			KeyAttribute: &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return false, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if len(res.Item) == 0 {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal %s/%s: %w", collection, id, err)
	}
	return true, nil
}

// Put implements Store.
func (s *DynamoStore) Put(ctx context.Context, collection, id string, doc any) error {
	table, err := s.table(collection)
	if err != nil {
		return err
	}
	item, err := marshalDocument(id, doc)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{TableName: &table, Item: item}); err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

func marshalDocument(id string, doc any) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return nil, err
	}
	item[KeyAttribute] = &types.AttributeValueMemberS{Value: id}
	return item, nil
}

// Memory is an in-process Store used for local runs and tests. Documents go
// through the same attributevalue encoding as DynamoStore.
type Memory struct {
	mu   sync.Mutex
	docs map[string]map[string]map[string]types.AttributeValue

	// Err, when set, is returned by every call.
	Err error
	// Gets and Puts count calls per collection.
	Gets map[string]int
	Puts map[string]int
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		docs: map[string]map[string]map[string]types.AttributeValue{},
		Gets: map[string]int{},
		Puts: map[string]int{},
	}
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, collection, id string, out any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets[collection]++
	if m.Err != nil {
		return false, m.Err
	}
	item, ok := m.docs[collection][id]
	if !ok {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(item, out); err != nil {
		return false, fmt.Errorf("unmarshal %s/%s: %w", collection, id, err)
	}
	return true, nil
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, collection, id string, doc any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Puts[collection]++
	if m.Err != nil {
		return m.Err
	}
	item, err := marshalDocument(id, doc)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}
	if m.docs[collection] == nil {
		m.docs[collection] = map[string]map[string]types.AttributeValue{}
	}
	m.docs[collection][id] = item
	return nil
}

// Len returns the number of documents in collection.
func (m *Memory) Len(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[collection])
}
