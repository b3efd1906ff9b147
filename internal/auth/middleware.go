package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/kamiapp/kami/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. With a plain string key, ANY
// package that knows the string could read or shadow the value. A
// package-private type means only this package can create the key, so only
// this package can read or write the authenticated user in the context.
type contextKey string

const userKey contextKey = "user"

// RequireAuth is the request gate: middleware that enforces authentication
// on every protected route.
//
// It extracts the bearer token from the Authorization header, resolves it
// through Sessions (registry lookup with fallback, or signature check in
// signed mode), loads the full account, and stores it in the request
// context. A missing credential and an invalid one get the same 401 — the
// response never reveals which check failed.
func RequireAuth(sessions *Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}

			user, err := sessions.Authenticate(r.Context(), token)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Returns ok=false if the header is absent or not a bearer scheme.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

// UserFromContext retrieves the authenticated user set by RequireAuth.
// On a protected route ok is always true; the second return exists so
// handlers can be defensive about being mounted without the middleware.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
}
