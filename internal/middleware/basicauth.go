// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/Azelphur/ownCloud-share-tools/internal/protocol"
)

type ctxKey string

const userKey ctxKey = "user"

// Authenticator verifies a login and password pair.
type Authenticator interface {
	Authenticate(ctx context.Context, login, password string) (bool, error)
}

// BasicAuth is a middleware that enforces HTTP basic authentication.
//
// Requests without credentials, or whose credentials the Authenticator
// rejects, get HTTP 401 with an OCS envelope carrying status 997, the way
// the sharing API reports failed logins. On success the login is stored in
// the request context for downstream handlers.
func BasicAuth(auth Authenticator, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			login, password, ok := r.BasicAuth()
			if ok {
				var err error
				ok, err = auth.Authenticate(r.Context(), login, password)
				if err != nil {
					log.Error("authentication failed", zap.String("login", login), zap.Error(err))
					ok = false
				}
			}
			if !ok {
				unauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), userKey, login)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="ocsd"`)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	env, err := protocol.NewEnvelope(protocol.StatusUnauthorized, "Unauthorised", nil)
	if err != nil {
		return
	}
	_ = json.NewEncoder(w).Encode(env)
}

// GetUserIDFromContext extracts the authenticated login from the request
// context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

// WithUser returns a copy of ctx carrying login, as BasicAuth would store it.
func WithUser(ctx context.Context, login string) context.Context {
	return context.WithValue(ctx, userKey, login)
}
