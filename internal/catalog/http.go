package catalog

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"Carton/pkg/kit"
)

// maxLookupIDs bounds a single ?id= lookup. Callers batch larger sets.
const maxLookupIDs = 500

type Server struct {
	Store Store
	Log   *zap.Logger
}

func (s *Server) productRoutes(r chi.Router) {
	r.Get("/", s.list)
	r.Get("/{id}", s.get)
}

// list returns every product, or with one or more ?id= parameters only the
// requested products that exist.
func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	ids, filtered := lookupIDs(r)
	if len(ids) > maxLookupIDs {
		kit.WriteError(w, r, http.StatusBadRequest, "too many ids", map[string]any{"max": maxLookupIDs})
		return
	}

	var (
		products []Product
		err      error
	)
	if filtered {
		products, err = s.Store.FindByIDs(r.Context(), ids)
	} else {
		products, err = s.Store.ListSortedByID(r.Context())
	}
	if err != nil {
		if s.Log != nil {
			s.Log.Error("list products failed", zap.Error(err), zap.Int("ids", len(ids)))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	kit.WriteJSON(w, http.StatusOK, products)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, ok, err := s.Store.Get(r.Context(), id)
	if err != nil {
		if s.Log != nil {
			s.Log.Error("get product failed", zap.Error(err), zap.String("id", id))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	if !ok {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func lookupIDs(r *http.Request) ([]string, bool) {
	raw, ok := r.URL.Query()["id"]
	if !ok {
		return nil, false
	}

	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, true
}
