// Package dynamotest is an in-memory stand-in for the DynamoDB operations the
// stores use. It understands the handful of expressions they send: equality
// and attribute_(not_)exists conditions joined by AND/OR, numeric <=, SET of
// placeholders and if_not_exists counters.
package dynamotest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DB holds items per table, addressed by each table's partition key attribute.
type DB struct {
	mu     sync.Mutex
	keys   map[string]string
	tables map[string]map[string]map[string]types.AttributeValue

	// Err, when set, is returned by every call.
	Err error

	Puts, Gets, Updates, Transacts int
}

// New returns a DB; keys maps table name to partition key attribute.
func New(keys map[string]string) *DB {
	db := &DB{keys: keys, tables: map[string]map[string]map[string]types.AttributeValue{}}
	for t := range keys {
		db.tables[t] = map[string]map[string]types.AttributeValue{}
	}
	return db
}

// Item returns a copy of the stored item or nil.
func (db *DB) Item(table, id string) map[string]types.AttributeValue {
	db.mu.Lock()
	defer db.mu.Unlock()
	item, ok := db.tables[table][id]
	if !ok {
		return nil
	}
	return clone(item)
}

// Seed stores item as-is.
func (db *DB) Seed(table string, item map[string]types.AttributeValue) {
	db.mu.Lock()
	defer db.mu.Unlock()
	id, err := db.id(table, item)
	if err != nil {
		panic(err)
	}
	db.tables[table][id] = clone(item)
}

// Len returns the number of items in table.
func (db *DB) Len(table string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.tables[table])
}

func (db *DB) id(table string, item map[string]types.AttributeValue) (string, error) {
	attr, ok := db.keys[table]
	if !ok {
		return "", fmt.Errorf("dynamotest: unknown table %q", table)
	}
	s, ok := item[attr].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("dynamotest: %s: missing key %s", table, attr)
	}
	return s.Value, nil
}

// GetItem implements the DynamoDB client method.
func (db *DB) GetItem(ctx context.Context, in *dyn.GetItemInput, _ ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.Gets++
	if db.Err != nil {
		return nil, db.Err
	}
	id, err := db.id(*in.TableName, in.Key)
	if err != nil {
		return nil, err
	}
	item, ok := db.tables[*in.TableName][id]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: clone(item)}, nil
}

// PutItem implements the DynamoDB client method.
func (db *DB) PutItem(ctx context.Context, in *dyn.PutItemInput, _ ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.Puts++
	if db.Err != nil {
		return nil, db.Err
	}
	id, err := db.id(*in.TableName, in.Item)
	if err != nil {
		return nil, err
	}
	current := db.tables[*in.TableName][id]
	if in.ConditionExpression != nil && !check(*in.ConditionExpression, current, in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	db.tables[*in.TableName][id] = clone(in.Item)
	return &dyn.PutItemOutput{}, nil
}

// UpdateItem implements the DynamoDB client method. Missing items are created
// unless a condition rejects them.
func (db *DB) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, _ ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.Updates++
	if db.Err != nil {
		return nil, db.Err
	}
	table := *in.TableName
	id, err := db.id(table, in.Key)
	if err != nil {
		return nil, err
	}
	current := db.tables[table][id]
	if in.ConditionExpression != nil && !check(*in.ConditionExpression, current, in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	next := clone(current)
	if next == nil {
		next = clone(in.Key)
	}
	if in.UpdateExpression != nil {
		if err := apply(*in.UpdateExpression, next, in.ExpressionAttributeNames, in.ExpressionAttributeValues); err != nil {
			return nil, err
		}
	}
	db.tables[table][id] = next
	return &dyn.UpdateItemOutput{Attributes: clone(next)}, nil
}

// TransactWriteItems implements the DynamoDB client method for Put items.
func (db *DB) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, _ ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.Transacts++
	if db.Err != nil {
		return nil, db.Err
	}

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	cancelled := false
	for i, ti := range in.TransactItems {
		reasons[i] = types.CancellationReason{Code: str("None")}
		p := ti.Put
		if p == nil {
			return nil, errors.New("dynamotest: only Put is supported in transactions")
		}
		id, err := db.id(*p.TableName, p.Item)
		if err != nil {
			return nil, err
		}
		if p.ConditionExpression != nil && !check(*p.ConditionExpression, db.tables[*p.TableName][id], p.ExpressionAttributeNames, p.ExpressionAttributeValues) {
			reasons[i] = types.CancellationReason{Code: str("ConditionalCheckFailed")}
			cancelled = true
		}
	}
	if cancelled {
		return nil, &types.TransactionCanceledException{Message: str("Transaction cancelled"), CancellationReasons: reasons}
	}
	for _, ti := range in.TransactItems {
		id, _ := db.id(*ti.Put.TableName, ti.Put.Item)
		db.tables[*ti.Put.TableName][id] = clone(ti.Put.Item)
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func check(cond string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) bool {
	for _, alt := range strings.Split(cond, " OR ") {
		if checkAll(alt, item, names, values) {
			return true
		}
	}
	return false
}

func checkAll(cond string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) bool {
	for _, clause := range strings.Split(cond, " AND ") {
		clause = strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(clause, "attribute_not_exists("):
			_, ok := item[resolve(inside(clause), names)]
			if ok {
				return false
			}
		case strings.HasPrefix(clause, "attribute_exists("):
			if _, ok := item[resolve(inside(clause), names)]; !ok {
				return false
			}
		case strings.Contains(clause, " <= "):
			lhs, rhs, _ := strings.Cut(clause, " <= ")
			got, ok1 := number(item[resolve(strings.TrimSpace(lhs), names)])
			limit, ok2 := number(values[strings.TrimSpace(rhs)])
			if !ok1 || !ok2 || got > limit {
				return false
			}
		default:
			lhs, rhs, ok := strings.Cut(clause, " = ")
			if !ok || item == nil {
				return false
			}
			got, want := item[resolve(strings.TrimSpace(lhs), names)], values[strings.TrimSpace(rhs)]
			if !equal(got, want) {
				return false
			}
		}
	}
	return true
}

func apply(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) error {
	body, ok := strings.CutPrefix(strings.TrimSpace(expr), "SET ")
	if !ok {
		return fmt.Errorf("dynamotest: unsupported update %q", expr)
	}
	for _, assign := range splitTopLevel(body) {
		lhs, rhs, ok := strings.Cut(assign, " = ")
		if !ok {
			return fmt.Errorf("dynamotest: bad assignment %q", assign)
		}
		attr := resolve(strings.TrimSpace(lhs), names)
		rhs = strings.TrimSpace(rhs)
		if strings.HasPrefix(rhs, "if_not_exists(") {
			// if_not_exists(attr, :zero) + :inc
			fn, inc, _ := strings.Cut(rhs, " + ")
			args := strings.Split(inside(fn), ",")
			base := values[strings.TrimSpace(args[1])]
			if v, ok := item[resolve(strings.TrimSpace(args[0]), names)]; ok {
				base = v
			}
			item[attr] = addNumbers(base, values[strings.TrimSpace(inc)])
			continue
		}
		v, ok := values[rhs]
		if !ok {
			return fmt.Errorf("dynamotest: missing value %s", rhs)
		}
		item[attr] = v
	}
	return nil
}

func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

func inside(s string) string {
	open, closing := strings.Index(s, "("), strings.LastIndex(s, ")")
	if open < 0 || closing < open {
		return s
	}
	return strings.TrimSpace(s[open+1 : closing])
}

func resolve(name string, names map[string]string) string {
	if n, ok := names[name]; ok {
		return n
	}
	return name
}

func equal(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		return ok && av.Value == bv.Value
	}
	return false
}

func number(v types.AttributeValue) (float64, bool) {
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(n.Value, 64)
	return f, err == nil
}

func addNumbers(a, b types.AttributeValue) types.AttributeValue {
	x, _ := a.(*types.AttributeValueMemberN)
	y, _ := b.(*types.AttributeValueMemberN)
	var sum int64
	for _, n := range []*types.AttributeValueMemberN{x, y} {
		if n != nil {
			v, _ := strconv.ParseInt(n.Value, 10, 64)
			sum += v
		}
	}
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(sum, 10)}
}

func clone(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func str(s string) *string { return &s }
