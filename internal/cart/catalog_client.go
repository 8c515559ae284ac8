package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CatalogProduct struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

// maxLookupBatch matches the catalog's per-request id limit.
const maxLookupBatch = 500

var (
	ErrCatalogBadStatus   = errors.New("catalog bad status")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// ProductSource is what the HTTP layer needs from the catalog: single
// product lookups for pricing new lines, and the bulk existence check.
type ProductSource interface {
	Catalog
	GetProduct(ctx context.Context, id string) (CatalogProduct, error)
}

type CatalogClient struct {
	BaseURL string
	Client  *http.Client
}

func NewCatalogClient(baseURL string) *CatalogClient {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	return &CatalogClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 3 * time.Second},
	}
}

func (c *CatalogClient) GetProduct(ctx context.Context, id string) (CatalogProduct, error) {
	var p CatalogProduct
	err := c.getJSON(ctx, fmt.Sprintf("%s/products/%s", c.BaseURL, url.PathEscape(id)), &p)
	if err != nil {
		return CatalogProduct{}, err
	}
	return p, nil
}

// ExistingProducts asks the catalog which ids it still has, at most
// maxLookupBatch ids per request.
func (c *CatalogClient) ExistingProducts(ctx context.Context, ids []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(ids))

	for len(ids) > 0 {
		n := min(len(ids), maxLookupBatch)
		batch := ids[:n]
		ids = ids[n:]

		q := url.Values{}
		for _, id := range batch {
			q.Add("id", id)
		}

		var found []CatalogProduct
		if err := c.getJSON(ctx, c.BaseURL+"/products?"+q.Encode(), &found); err != nil {
			return nil, err
		}
		for _, p := range found {
			out[p.ID] = struct{}{}
		}
	}
	return out, nil
}

func (c *CatalogClient) getJSON(ctx context.Context, u string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return ErrProductNotFound
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status=%d", ErrCatalogBadStatus, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(dst)
}
