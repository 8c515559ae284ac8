package catalog

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"Carton/pkg/kit"
)

const (
	defaultLookupTimeout = 2 * time.Second
	readyTimeout         = 1 * time.Second
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string

	// LookupTimeout bounds each /products request. Zero means 2s.
	LookupTimeout time.Duration
}

// NewHandler serves the read-only product API.
func NewHandler(s *Server, deps HTTPDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, kit.EchoRequestID, kit.Recoverer, kit.Logging(deps.Log))
	r.Use(chimw.StripSlashes)

	if deps.Registry != nil {
		r.Use(kit.NewMetrics(deps.Registry).Middleware(deps.Service, kit.ChiRoutePatternOrPath))
		if deps.MetricsEnabled {
			r.With(kit.MetricsAuth(deps.MetricsToken)).
				Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
		}
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", s.ready)

	timeout := deps.LookupTimeout
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	r.Route("/products", func(pr chi.Router) {
		pr.Use(chimw.Timeout(timeout))
		pr.Use(chimw.SetHeader("Cache-Control", "no-store"))
		s.productRoutes(pr)
	})

	return otelhttp.NewHandler(r, deps.Service)
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.Store.Ping(ctx); err != nil {
		if s.Log != nil {
			s.Log.Warn("catalog store not ready", zap.Error(err))
		}
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
		return
	}
	w.WriteHeader(http.StatusOK)
}
