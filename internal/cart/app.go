package cart

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

	"Carton/internal/auth"
	"Carton/internal/session"
	"Carton/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string

	// Tokens verifies optional bearer tokens. Nil keeps every cart anonymous.
	Tokens  *auth.TokenMaker
	Signer  *session.Signer
	Cookie  session.CookieOptions
	Limiter *kit.IPRateLimiter
}

func NewHandler(s *Server, deps HTTPDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(kit.EchoRequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(deps.Log))

	setupMetrics(r, deps)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()

		if err := s.Manager.Store.Ping(ctx); err != nil {
			if s.Log != nil {
				s.Log.Warn("readyz failed", zap.Error(err))
			}
			kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Group(func(cr chi.Router) {
		cr.Use(session.Middleware(deps.Signer, deps.Cookie))
		cr.Use(OptionalUser(deps.Tokens))

		cr.Get("/cart", s.show)
		cr.Get("/cart/items/{id}", s.showItem)

		cr.Group(func(mr chi.Router) {
			if deps.Limiter != nil {
				mr.Use(deps.Limiter.Middleware)
			}
			mr.Post("/cart/items", s.add)
			mr.Put("/cart/items/{id}", s.setQuantity)
			mr.Post("/cart/items/{id}/decrement", s.removeSingle)
			mr.Delete("/cart/items/{id}", s.remove)
			mr.Delete("/cart", s.clear)
		})
	})

	return otelhttp.NewHandler(r, deps.Service)
}

func setupMetrics(r *chi.Mux, deps HTTPDeps) {
	if deps.Registry == nil {
		return
	}

	metrics := kit.NewMetrics(deps.Registry)
	r.Use(metrics.Middleware(deps.Service, kit.ChiRoutePatternOrPath))

	if !deps.MetricsEnabled {
		return
	}

	r.With(kit.MetricsAuth(deps.MetricsToken)).
		Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
}
