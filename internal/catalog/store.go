package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

type Store interface {
	Ping(ctx context.Context) error
	ListSortedByID(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id string) (Product, bool, error)
	// FindByIDs returns the products among ids that exist, sorted by id.
	// Unknown ids are skipped, not reported.
	FindByIDs(ctx context.Context, ids []string) ([]Product, error)
}

func seedProducts() []Product {
	return []Product{
		{ID: "p1", Title: "Keyboard", Price: decimal.RequireFromString("49.90")},
		{ID: "p2", Title: "Mouse", Price: decimal.RequireFromString("19.90")},
		{ID: "p3", Title: "USB cable", Price: decimal.RequireFromString("4.50")},
	}
}
