// Package cart holds the shopping cart aggregate, the adapters that persist
// it, and the HTTP API in front of it.
package cart

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Catalog answers which of the given product ids still exist. One call covers
// the whole cart.
type Catalog interface {
	ExistingProducts(ctx context.Context, ids []string) (map[string]struct{}, error)
}

// Cart is the aggregate of lines for one session or user. It is not safe for
// concurrent use; a cart lives for a single request.
type Cart struct {
	cfg      Config
	items    map[string]*Item
	modified bool
}

func New(cfg Config) *Cart {
	return &Cart{
		cfg:   cfg.withDefaults(),
		items: make(map[string]*Item),
	}
}

// Add inserts a product or, if it is already in the cart, increases its
// quantity. The price of an existing line never changes, and no line grows
// past MaxQuantity.
func (c *Cart) Add(p Product, price decimal.NullDecimal, quantity int) error {
	if quantity < 1 || quantity > MaxQuantity {
		return fmt.Errorf("%w: must be between 1 and %d when adding, got %d", ErrInvalidQuantity, MaxQuantity, quantity)
	}

	if it, ok := c.items[p.ID]; ok {
		if it.Quantity > MaxQuantity-quantity {
			return fmt.Errorf("%w: line %s would exceed %d", ErrInvalidQuantity, p.ID, MaxQuantity)
		}
		it.Quantity += quantity
		c.modified = true
		return nil
	}

	if !price.Valid {
		return fmt.Errorf("%w: product %s", ErrMissingPrice, p.ID)
	}

	it := NewItem(p, quantity, price.Decimal)
	c.items[p.ID] = &it
	c.modified = true
	return nil
}

func (c *Cart) Remove(productID string) {
	if _, ok := c.items[productID]; !ok {
		return
	}
	delete(c.items, productID)
	c.modified = true
}

// RemoveSingle takes one unit off a line, dropping the line instead of
// leaving it at zero.
func (c *Cart) RemoveSingle(productID string) {
	it, ok := c.items[productID]
	if !ok {
		return
	}
	if it.Quantity <= 1 {
		delete(c.items, productID)
	} else {
		it.Quantity--
	}
	c.modified = true
}

// SetQuantity overwrites the quantity of a line already in the cart; zero
// removes it. Products not in the cart are ignored: only Add inserts.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	if quantity < 0 || quantity > MaxQuantity {
		return fmt.Errorf("%w: must be between 0 and %d, got %d", ErrInvalidQuantity, MaxQuantity, quantity)
	}

	it, ok := c.items[productID]
	if !ok {
		return nil
	}
	if quantity == 0 {
		delete(c.items, productID)
	} else {
		it.Quantity = quantity
	}
	c.modified = true
	return nil
}

func (c *Cart) Clear() {
	c.items = make(map[string]*Item)
	c.modified = true
}

// Annotate merges caller metadata into a line's extra attributes. It reports
// false when the product is not in the cart.
func (c *Cart) Annotate(productID string, extra map[string]any) bool {
	it, ok := c.items[productID]
	if !ok {
		return false
	}
	if len(extra) == 0 {
		return true
	}
	if it.Extra == nil {
		it.Extra = make(map[string]any, len(extra))
	}
	for k, v := range extra {
		it.Extra[k] = v
	}
	c.modified = true
	return true
}

// RemoveStaleItems drops every line whose product no longer exists in the
// catalog and returns how many were dropped.
func (c *Cart) RemoveStaleItems(ctx context.Context, catalog Catalog) (int, error) {
	if len(c.items) == 0 {
		return 0, nil
	}

	existing, err := catalog.ExistingProducts(ctx, c.ProductIDs())
	if err != nil {
		return 0, fmt.Errorf("check products: %w", err)
	}

	removed := 0
	for id := range c.items {
		if _, ok := existing[id]; ok {
			continue
		}
		delete(c.items, id)
		removed++
	}
	if removed > 0 {
		c.modified = true
	}
	return removed, nil
}

// Merge folds other into c as if every line of other were added to c:
// quantities are summed up to MaxQuantity and c's unit prices win.
func (c *Cart) Merge(other *Cart) {
	for id, it := range other.items {
		if own, ok := c.items[id]; ok {
			own.Quantity = min(own.Quantity+it.Quantity, MaxQuantity)
			for k, v := range it.Extra {
				if own.Extra == nil {
					own.Extra = make(map[string]any)
				}
				if _, set := own.Extra[k]; !set {
					own.Extra[k] = v
				}
			}
		} else {
			cp := it.clone()
			c.items[id] = &cp
		}
		c.modified = true
	}
}

func (c *Cart) Contains(productID string) bool {
	_, ok := c.items[productID]
	return ok
}

// Line returns the line for a product, if present.
func (c *Cart) Line(productID string) (Line, bool) {
	it, ok := c.items[productID]
	if !ok {
		return Line{}, false
	}
	return c.line(it), true
}

// Lines returns the cart content ordered by product id.
func (c *Cart) Lines() []Line {
	out := make([]Line, 0, len(c.items))
	for _, id := range c.ProductIDs() {
		out = append(out, c.line(c.items[id]))
	}
	return out
}

func (c *Cart) line(it *Item) Line {
	cp := it.clone()
	return Line{Item: cp, Subtotal: c.cfg.Pricing.Subtotal(cp)}
}

func (c *Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.items))
	for id := range c.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Cart) Count() int {
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) UniqueCount() int { return len(c.items) }

func (c *Cart) IsEmpty() bool { return len(c.items) == 0 }

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(c.cfg.Pricing.Subtotal(*it))
	}
	return total
}

// Modified reports whether the cart changed since it was created, restored
// or last marked clean.
func (c *Cart) Modified() bool { return c.modified }

func (c *Cart) markClean() { c.modified = false }
