package cart

import (
	"math"

	"github.com/shopspring/decimal"
)

// MaxQuantity caps a single line.
const MaxQuantity = math.MaxInt32

// Product is the cart's weak reference to a catalog product: its identity
// plus the title captured when it was first added.
type Product struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Item is one line of the cart. Price is the unit price locked in when the
// product was first added.
type Item struct {
	Product  Product
	Quantity int
	Price    decimal.Decimal
	Extra    map[string]any
}

func NewItem(p Product, quantity int, price decimal.Decimal) Item {
	return Item{Product: p, Quantity: quantity, Price: price}
}

func (it Item) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func (it Item) clone() Item {
	out := it
	if it.Extra != nil {
		out.Extra = make(map[string]any, len(it.Extra))
		for k, v := range it.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Line is a read-only view of an Item with the subtotal of the cart's
// pricing policy applied.
type Line struct {
	Item
	Subtotal decimal.Decimal
}
