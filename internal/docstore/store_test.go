package docstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDynamo keeps items per table keyed by the "id" attribute.
type mockDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue
	err    error
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{tables: map[string]map[string]map[string]types.AttributeValue{}}
}

func (m *mockDynamo) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	k := in.Key[KeyAttribute].(*types.AttributeValueMemberS).Value
	item, ok := m.tables[*in.TableName][k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.tables[*in.TableName] == nil {
		m.tables[*in.TableName] = map[string]map[string]types.AttributeValue{}
	}
	k, ok := in.Item[KeyAttribute].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("no key attribute")
	}
	m.tables[*in.TableName][k.Value] = in.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	return nil, errors.New("not supported")
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	return nil, errors.New("not supported")
}

type record struct {
	ID     string  `dynamodbav:"id"`
	Name   string  `dynamodbav:"name"`
	Weight float64 `dynamodbav:"weight"`
}

func TestDynamoStore_PutGet(t *testing.T) {
	mock := newMockDynamo()
	s := NewDynamoStore(mock, map[string]string{"products": "prod-products"})
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "products", "mug", record{Name: "Camp mug", Weight: 0.4}))
	require.Contains(t, mock.tables["prod-products"], "mug")

	var got record
	found, err := s.Get(ctx, "products", "mug", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, record{ID: "mug", Name: "Camp mug", Weight: 0.4}, got)

	var generic map[string]any
	found, err = s.Get(ctx, "products", "mug", &generic)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 0.4, generic["weight"])
}

func TestDynamoStore_Missing(t *testing.T) {
	s := NewDynamoStore(newMockDynamo(), map[string]string{"products": "products"})

	var got record
	found, err := s.Get(context.Background(), "products", "nope", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDynamoStore_UnknownCollection(t *testing.T) {
	s := NewDynamoStore(newMockDynamo(), map[string]string{"products": ""})

	_, err := s.Get(context.Background(), "products", "x", &record{})
	assert.ErrorIs(t, err, ErrUnknownCollection)
	err = s.Put(context.Background(), "orders", "x", record{})
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestDynamoStore_ClientError(t *testing.T) {
	mock := newMockDynamo()
	mock.err = errors.New("unavailable")
	s := NewDynamoStore(mock, map[string]string{"geocache": "geocache"})

	_, err := s.Get(context.Background(), "geocache", "k", &record{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get geocache/k")
}

func TestMemory_RoundTripAndCounters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "geocache", "a", map[string]any{"lat": 59.3, "provider": "nominatim"}))
	var got map[string]any
	found, err := m.Get(ctx, "geocache", "a", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "a", got["id"])
	assert.Equal(t, 59.3, got["lat"])
	assert.Equal(t, 1, m.Gets["geocache"])
	assert.Equal(t, 1, m.Puts["geocache"])
	assert.Equal(t, 1, m.Len("geocache"))

	m.Err = errors.New("down")
	_, err = m.Get(ctx, "geocache", "a", &got)
	assert.Error(t, err)
}

func TestNumber(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{1.5, 1.5, true},
		{3, 3, true},
		{int64(7), 7, true},
		{" 2.25 ", 2.25, true},
		{"abc", 0, false},
		{"NaN", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, c := range cases {
		got, ok := Number(c.in)
		assert.Equal(t, c.ok, ok, "%v", c.in)
		assert.Equal(t, c.want, got, "%v", c.in)
	}
	assert.Equal(t, 9.0, NumberOr("x", 9))
}
