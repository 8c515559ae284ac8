package cart

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Carton/internal/catalog"
)

func TestCatalogClient_ExistingProductsBatches(t *testing.T) {
	products := catalog.NewMemStore()
	var ids []string
	for i := 0; i < 1200; i++ {
		id := fmt.Sprintf("bulk-%04d", i)
		ids = append(ids, id)
		if i%3 != 0 {
			products.Put(catalog.Product{ID: id, Price: decimal.NewFromInt(1)})
		}
	}
	ids = append(ids, "gone")

	h := catalog.NewHandler(
		&catalog.Server{Store: products, Log: zap.NewNop()},
		catalog.HTTPDeps{Log: zap.NewNop(), Service: "catalog"},
	)

	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if n := len(r.URL.Query()["id"]); n > maxLookupBatch {
			t.Errorf("request carried %d ids", n)
		}
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	got, err := NewCatalogClient(ts.URL).ExistingProducts(context.Background(), ids)
	require.NoError(t, err)

	assert.Equal(t, int32(3), requests.Load())
	assert.Len(t, got, 800)
	assert.Contains(t, got, "bulk-0001")
	assert.NotContains(t, got, "bulk-0000")
	assert.NotContains(t, got, "gone")
}

func TestCatalogClient_ExistingProductsEmpty(t *testing.T) {
	c := NewCatalogClient("http://127.0.0.1:0")
	got, err := c.ExistingProducts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
