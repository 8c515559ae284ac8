package cart

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// SchemaVersion is written into every snapshot. Restore refuses any other
// version instead of guessing at an older or newer layout.
const SchemaVersion = 1

// Snapshot is the persisted form of a cart shared by every Store.
//
//	{"v":1,"items":[{"product_id":"p1","title":"Keyboard","quantity":2,"price":"49.90","extra":{...}}]}
type Snapshot struct {
	Version int            `json:"v"`
	Items   []SnapshotItem `json:"items"`
}

type SnapshotItem struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Extra     map[string]any  `json:"extra,omitempty"`
}

// Snapshot captures the current lines in product id order.
func (c *Cart) Snapshot() Snapshot {
	s := Snapshot{Version: SchemaVersion, Items: make([]SnapshotItem, 0, len(c.items))}
	for _, id := range c.ProductIDs() {
		it := c.items[id].clone()
		s.Items = append(s.Items, SnapshotItem{
			ProductID: it.Product.ID,
			Title:     it.Product.Title,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Extra:     it.Extra,
		})
	}
	return s
}

// Restore rebuilds a cart from a snapshot. An empty snapshot (version 0, no
// items) is a brand-new cart. Every entry is validated; a snapshot breaking
// the cart invariants is rejected as a whole.
func Restore(cfg Config, s Snapshot) (*Cart, error) {
	c := New(cfg)
	if s.Version == 0 && len(s.Items) == 0 {
		return c, nil
	}
	if s.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSchema, s.Version)
	}

	for i, si := range s.Items {
		switch {
		case si.ProductID == "":
			return nil, fmt.Errorf("%w: item %d has no product id", ErrCorruptSnapshot, i)
		case si.Quantity < 1 || si.Quantity > MaxQuantity:
			return nil, fmt.Errorf("%w: item %s has quantity %d", ErrCorruptSnapshot, si.ProductID, si.Quantity)
		case si.Price.IsNegative():
			return nil, fmt.Errorf("%w: item %s has negative price", ErrCorruptSnapshot, si.ProductID)
		}
		if _, dup := c.items[si.ProductID]; dup {
			return nil, fmt.Errorf("%w: duplicate product %s", ErrCorruptSnapshot, si.ProductID)
		}

		it := NewItem(Product{ID: si.ProductID, Title: si.Title}, si.Quantity, si.Price)
		if len(si.Extra) > 0 {
			it.Extra = si.Extra
		}
		c.items[si.ProductID] = &it
	}
	return c, nil
}

func EncodeSnapshot(s Snapshot) ([]byte, error) {
	if s.Version == 0 {
		s.Version = SchemaVersion
	}
	return json.Marshal(s)
}

func DecodeSnapshot(raw []byte) (Snapshot, error) {
	if len(raw) == 0 {
		return Snapshot{}, nil
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return s, nil
}
