package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/escrowlabs/escrowd/internal/auth"
	"github.com/escrowlabs/escrowd/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// PrincipalKey is the context key for the authenticated principal.
	PrincipalKey contextKey = "principal"
	// EmailKey is the context key for the authenticated user's email.
	EmailKey contextKey = "email"
	// TokenKey is the context key for the raw bearer token (rate-limit keying).
	TokenKey contextKey = "token"
)

// GetPrincipal extracts the authenticated principal from the context.
// Returns the empty principal if the request carried no valid token.
func GetPrincipal(ctx context.Context) models.Principal {
	p, _ := ctx.Value(PrincipalKey).(models.Principal)
	return p
}

// GetEmail extracts the authenticated user's email from the context.
func GetEmail(ctx context.Context) string {
	email, _ := ctx.Value(EmailKey).(string)
	return email
}

// GetToken extracts the raw bearer token from the context.
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(TokenKey).(string)
	return token
}

// WithPrincipal returns a context carrying the given principal. Used by
// tests to bypass token validation.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// Identify returns a middleware that validates a Bearer token if one is
// present and enriches the request context with the principal. Requests
// without a token pass through unauthenticated; per-method authorization is
// the RPC layer's job, since register/login/health need no token.
func Identify(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				parts := strings.Split(authHeader, " ")
				if len(parts) == 2 && parts[0] == "Bearer" {
					tokenString := parts[1]
					claims, err := jwtManager.Validate(tokenString)
					if err == nil {
						ctx := r.Context()
						ctx = context.WithValue(ctx, PrincipalKey, claims.Principal())
						ctx = context.WithValue(ctx, EmailKey, claims.Email)
						ctx = context.WithValue(ctx, TokenKey, tokenString)
						r = r.WithContext(ctx)
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
