package cart

import (
	"context"
	"net/http"

	"Carton/internal/auth"
	"Carton/internal/session"
	"Carton/pkg/kit"
)

type ctxKey string

const userKey ctxKey = "user"

type User struct {
	ID string
}

func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}

// OptionalUser attaches the bearer token's user when one is sent. Requests
// without a token stay anonymous; a token that fails to verify is rejected
// rather than silently downgraded to an anonymous cart.
func OptionalUser(tokens *auth.TokenMaker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := kit.BearerToken(r)
			if !ok || tokens == nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tokens.Parse(raw)
			if err != nil || claims.UserID == "" {
				kit.WriteError(w, r, http.StatusUnauthorized, "invalid token", nil)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, User{ID: claims.UserID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerFromRequest combines the session key and optional user of a request.
func OwnerFromRequest(r *http.Request) (Owner, bool) {
	var o Owner
	if key, ok := session.KeyFromContext(r.Context()); ok {
		o.SessionKey = key
	}
	if u, ok := UserFromContext(r.Context()); ok {
		o.UserID = u.ID
	}
	return o, o.validate() == nil
}
