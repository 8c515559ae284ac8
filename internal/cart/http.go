package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"Carton/pkg/kit"
)

const moneyPlaces = 2

type Server struct {
	Manager  *Manager
	Products ProductSource
	Log      *zap.Logger

	// MinProductPrice hides cheaper products from the cart: adding one
	// behaves as if it did not exist.
	MinProductPrice decimal.NullDecimal
}

type lineView struct {
	ProductID string         `json:"product_id"`
	Title     string         `json:"title,omitempty"`
	Quantity  int            `json:"quantity"`
	Price     string         `json:"price"`
	Subtotal  string         `json:"subtotal"`
	Extra     map[string]any `json:"extra,omitempty"`
}

type cartView struct {
	Items       []lineView `json:"items"`
	Count       int        `json:"count"`
	UniqueCount int        `json:"unique_count"`
	Total       string     `json:"total"`
}

func newLineView(l Line) lineView {
	return lineView{
		ProductID: l.Product.ID,
		Title:     l.Product.Title,
		Quantity:  l.Quantity,
		Price:     l.Price.StringFixed(moneyPlaces),
		Subtotal:  l.Subtotal.StringFixed(moneyPlaces),
		Extra:     l.Extra,
	}
}

func newCartView(c *Cart) cartView {
	lines := c.Lines()
	v := cartView{
		Items:       make([]lineView, 0, len(lines)),
		Count:       c.Count(),
		UniqueCount: c.UniqueCount(),
		Total:       c.Total().StringFixed(moneyPlaces),
	}
	for _, l := range lines {
		v.Items = append(v.Items, newLineView(l))
	}
	return v
}

type addReq struct {
	ProductID string         `json:"product_id"`
	Quantity  json.Number    `json:"quantity"`
	Extra     map[string]any `json:"extra"`
}

type quantityReq struct {
	Quantity json.Number `json:"quantity"`
}

func (s *Server) show(w http.ResponseWriter, r *http.Request) {
	owner, ok := OwnerFromRequest(r)
	if !ok {
		kit.WriteError(w, r, http.StatusBadRequest, "no session", nil)
		return
	}

	c, err := s.Manager.Open(r.Context(), owner)
	if err != nil {
		s.writeCartError(w, r, err)
		return
	}
	// Opening may have dropped stale lines; persist that.
	if err := s.Manager.Commit(r.Context(), owner, c); err != nil {
		s.writeCartError(w, r, err)
		return
	}

	kit.WriteJSON(w, http.StatusOK, newCartView(c))
}

func (s *Server) showItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := OwnerFromRequest(r)
	if !ok {
		kit.WriteError(w, r, http.StatusBadRequest, "no session", nil)
		return
	}
	id := chi.URLParam(r, "id")

	c, err := s.Manager.Open(r.Context(), owner)
	if err != nil {
		s.writeCartError(w, r, err)
		return
	}
	if err := s.Manager.Commit(r.Context(), owner, c); err != nil {
		s.writeCartError(w, r, err)
		return
	}

	l, found := c.Line(id)
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "not in cart", map[string]any{"product_id": id})
		return
	}
	kit.WriteJSON(w, http.StatusOK, newLineView(l))
}

func (s *Server) add(w http.ResponseWriter, r *http.Request) {
	var req addReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	pid := strings.TrimSpace(req.ProductID)
	if pid == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "product_id required", nil)
		return
	}

	qty := 1
	if req.Quantity != "" {
		q, err := CoerceQuantity(req.Quantity)
		if err != nil {
			s.writeCartError(w, r, err)
			return
		}
		qty = q
	}
	if qty < 1 {
		s.writeCartError(w, r, ErrInvalidQuantity)
		return
	}

	p, err := s.Products.GetProduct(r.Context(), pid)
	if err != nil {
		s.writeCartError(w, r, err)
		return
	}
	if !s.allowed(p) {
		s.writeCartError(w, r, ErrProductNotFound)
		return
	}

	s.mutate(w, r, "add", func(c *Cart) error {
		if err := c.Add(Product{ID: p.ID, Title: p.Title}, decimal.NewNullDecimal(p.Price), qty); err != nil {
			return err
		}
		c.Annotate(p.ID, req.Extra)
		return nil
	})
}

func (s *Server) setQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	if req.Quantity == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "quantity required", nil)
		return
	}
	qty, err := CoerceQuantity(req.Quantity)
	if err != nil {
		s.writeCartError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	s.mutate(w, r, "set_quantity", func(c *Cart) error {
		return c.SetQuantity(id, qty)
	})
}

func (s *Server) removeSingle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mutate(w, r, "remove_single", func(c *Cart) error {
		c.RemoveSingle(id)
		return nil
	})
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mutate(w, r, "remove", func(c *Cart) error {
		c.Remove(id)
		return nil
	})
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, "clear", func(c *Cart) error {
		c.Clear()
		return nil
	})
}

func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op string, fn func(*Cart) error) {
	owner, ok := OwnerFromRequest(r)
	if !ok {
		kit.WriteError(w, r, http.StatusBadRequest, "no session", nil)
		return
	}

	c, err := s.Manager.Mutate(r.Context(), owner, op, fn)
	if err != nil {
		s.writeCartError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, newCartView(c))
}

func (s *Server) allowed(p CatalogProduct) bool {
	if !s.MinProductPrice.Valid {
		return true
	}
	return p.Price.GreaterThanOrEqual(s.MinProductPrice.Decimal)
}

func (s *Server) writeCartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		kit.WriteError(w, r, http.StatusBadRequest, "invalid quantity", map[string]any{"cause": err.Error()})
	case errors.Is(err, ErrMissingPrice):
		kit.WriteError(w, r, http.StatusUnprocessableEntity, "missing price", nil)
	case errors.Is(err, ErrProductNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "product not found", nil)
	case errors.Is(err, ErrNoOwner), errors.Is(err, ErrNoSessionKey):
		kit.WriteError(w, r, http.StatusBadRequest, "no session", nil)
	case errors.Is(err, ErrCatalogUnavailable):
		kit.WriteError(w, r, http.StatusServiceUnavailable, "catalog unavailable", nil)
	case errors.Is(err, ErrCatalogBadStatus):
		kit.WriteError(w, r, http.StatusBadGateway, "catalog error", nil)
	case isTimeoutErr(err):
		kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
	default:
		if s.Log != nil {
			s.Log.Error("cart operation failed", zap.Error(err), zap.String("path", r.URL.Path))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
