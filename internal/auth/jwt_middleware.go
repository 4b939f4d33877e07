package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// Caller identifies who submitted an operation. A zero Caller is anonymous.
type Caller struct {
	UserID string
}

// IsAnonymous reports whether the caller presented no identity.
func (c Caller) IsAnonymous() bool {
	return c.UserID == ""
}

type contextKey int

const (
	callerContextKey contextKey = iota
)

// WithCaller returns a context carrying the caller.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// CallerFromContext extracts the caller from the request context.
// Returns an anonymous caller if none is present.
func CallerFromContext(ctx context.Context) Caller {
	caller, _ := ctx.Value(callerContextKey).(Caller)
	return caller
}

// Middleware returns an HTTP middleware that resolves the caller from a
// bearer token. Requests without a token continue as anonymous so public
// operations stay reachable; the guard rejects them where a session is
// required. A token that fails verification is rejected outright.
func (v *TokenVerifier) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearerToken(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := v.Verify(tokenString)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to verify bearer token")
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := WithCaller(r.Context(), Caller{UserID: userID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken extracts the bearer token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}
