package gateway

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"Carton/internal/auth"
	"Carton/pkg/kit"
)

const requestIDHeader = "X-Request-Id"

// RejectForgedTokens lets anonymous requests through and verifies bearer
// tokens at the edge, so a bad token never reaches a cart.
func RejectForgedTokens(tokens *auth.TokenMaker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := kit.BearerToken(r)
			if !ok || tokens == nil {
				next.ServeHTTP(w, r)
				return
			}
			if _, err := tokens.Parse(raw); err != nil {
				kit.WriteError(w, r, http.StatusUnauthorized, "invalid token", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func NewReverseProxy(target string, log *zap.Logger) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	p := httputil.NewSingleHostReverseProxy(u)

	// Upstreams log under the gateway's request id; the gateway echoes it.
	director := p.Director
	p.Director = func(req *http.Request) {
		director(req)
		if id := chimw.GetReqID(req.Context()); id != "" {
			req.Header.Set(requestIDHeader, id)
		}
	}
	p.ModifyResponse = func(resp *http.Response) error {
		resp.Header.Del(requestIDHeader)
		return nil
	}
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream failed",
			zap.Error(err),
			zap.String("upstream", u.Host),
			zap.String("path", r.URL.Path),
		)
		kit.WriteError(w, r, http.StatusBadGateway, "upstream unavailable", nil)
	}
	return p, nil
}
