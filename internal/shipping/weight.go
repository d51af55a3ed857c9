package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/web-kovcheg/storefront/internal/docstore"
	"github.com/web-kovcheg/storefront/internal/logging"
)

// ProductsCollection holds catalog products keyed by product id.
const ProductsCollection = "products"

const (
	MinQty = 1
	MaxQty = 999
)

// Warning tags recorded while resolving cart weight.
const (
	WarnItemsNotArray    = "items_not_array"
	WarnItemWithoutID    = "item_without_id"
	warnWeightMissing    = "weight_missing:"
	warnProductReadError = "product_read_error:"
)

// ErrInvalidItemsJSON is returned by DecodeCart for unparsable input.
var ErrInvalidItemsJSON = errors.New("shipping: invalid items json")

// CartItem is one cart line as submitted by the client.
type CartItem struct {
	ID     string   `json:"id"`
	Qty    int      `json:"qty"`
	Weight *float64 `json:"weight,omitempty"`
}

// Cart is a decoded item list plus the warnings raised while decoding it.
type Cart struct {
	Items    []CartItem
	Warnings []string
}

// ClampQty bounds a quantity to MinQty..MaxQty.
func ClampQty(qty int) int {
	return max(MinQty, min(MaxQty, qty))
}

// DecodeCart parses the loosely typed items parameter. Empty input is an empty
// cart, a JSON value that is not an array is an empty cart with
// WarnItemsNotArray, and malformed JSON is ErrInvalidItemsJSON.
func DecodeCart(raw string) (Cart, error) {
	if strings.TrimSpace(raw) == "" {
		return Cart{}, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Cart{}, fmt.Errorf("%w: %v", ErrInvalidItemsJSON, err)
	}
	list, ok := v.([]any)
	if !ok {
		return Cart{Warnings: []string{WarnItemsNotArray}}, nil
	}
	items := make([]CartItem, 0, len(list))
	for _, el := range list {
		m, _ := el.(map[string]any)
		items = append(items, decodeItem(m))
	}
	return Cart{Items: items}, nil
}

func decodeItem(m map[string]any) CartItem {
	item := CartItem{Qty: 1}
	switch id := m["id"].(type) {
	case string:
		item.ID = strings.TrimSpace(id)
	case float64:
		if id != 0 {
			item.ID = strconv.FormatFloat(id, 'f', -1, 64)
		}
	}
	if q, ok := docstore.Number(m["qty"]); ok && q != 0 {
		item.Qty = int(math.Max(MinQty, math.Min(MaxQty, math.Floor(q))))
	}
	if w, ok := docstore.Number(m["weight"]); ok && w >= 0 {
		item.Weight = &w
	}
	return item
}

// Product is the part of a catalog record used for shipping and checkout.
type Product struct {
	ID        string
	Name      string
	PriceEUR  float64
	HasPrice  bool
	WeightKg  float64
	HasWeight bool
}

// Catalog looks up products. A missing product is (nil, nil).
type Catalog interface {
	Product(ctx context.Context, id string) (*Product, error)
}

// DocCatalog reads products from the document store.
type DocCatalog struct {
	store docstore.Store
}

// NewCatalog returns a catalog over store.
func NewCatalog(store docstore.Store) *DocCatalog {
	return &DocCatalog{store: store}
}

// Product implements Catalog.
func (c *DocCatalog) Product(ctx context.Context, id string) (*Product, error) {
	doc := map[string]any{}
	found, err := c.store.Get(ctx, ProductsCollection, id, &doc)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	p := &Product{ID: id}
	p.Name, _ = doc["name"].(string)
	if v, ok := docstore.Number(doc["price"]); ok && v >= 0 {
		p.PriceEUR, p.HasPrice = v, true
	}
	if v, ok := docstore.Number(doc["weight"]); ok && v >= 0 {
		p.WeightKg, p.HasWeight = v, true
	}
	return p, nil
}

// WeightResolver totals cart weight from inline weights and the catalog.
type WeightResolver struct {
	catalog Catalog
}

// NewWeightResolver returns a resolver. A nil catalog treats every product as missing.
func NewWeightResolver(catalog Catalog) *WeightResolver {
	return &WeightResolver{catalog: catalog}
}

type lookup struct {
	product *Product
	err     error
}

// TotalWeight returns the cart weight in kg rounded to 3 decimals. Items that
// cannot be weighed contribute zero and add a warning.
func (r *WeightResolver) TotalWeight(ctx context.Context, items []CartItem) (float64, []string) {
	var (
		total    float64
		warnings []string
		seen     = map[string]lookup{}
	)
	for _, it := range items {
		qty := float64(ClampQty(it.Qty))
		if it.Weight != nil && *it.Weight >= 0 && !math.IsInf(*it.Weight, 0) && !math.IsNaN(*it.Weight) {
			total += *it.Weight * qty
			continue
		}
		if it.ID == "" {
			warnings = append(warnings, WarnItemWithoutID)
			continue
		}
		l, ok := seen[it.ID]
		if !ok {
			l = r.lookup(ctx, it.ID)
			seen[it.ID] = l
		}
		switch {
		case l.err != nil:
			warnings = append(warnings, warnProductReadError+it.ID)
		case l.product == nil || !l.product.HasWeight:
			warnings = append(warnings, warnWeightMissing+it.ID)
		default:
			total += l.product.WeightKg * qty
		}
	}
	return math.Round(total*1000) / 1000, warnings
}

func (r *WeightResolver) lookup(ctx context.Context, id string) lookup {
	if r.catalog == nil {
		return lookup{}
	}
	p, err := r.catalog.Product(ctx, id)
	if err != nil {
		logging.FromContext(ctx).Warn("product read failed", zap.String("product_id", id), zap.Error(err))
	}
	return lookup{product: p, err: err}
}
