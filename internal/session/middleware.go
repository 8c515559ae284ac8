package session

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

type CookieOptions struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// Middleware resolves the visitor's session key from a signed cookie,
// issuing a fresh key (and cookie) when none or a forged one is presented.
func Middleware(signer *Signer, opts CookieOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ""
			if c, err := r.Cookie(opts.Name); err == nil {
				if v, ok := signer.Verify(c.Value); ok {
					key = v
				}
			}

			if key == "" {
				key = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     opts.Name,
					Value:    signer.Sign(key),
					Path:     "/",
					MaxAge:   int(opts.TTL.Seconds()),
					HttpOnly: true,
					Secure:   opts.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(WithKey(r.Context(), key)))
		})
	}
}
