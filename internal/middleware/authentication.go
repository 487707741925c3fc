package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"integration-sync-platform/internal/config"
	"integration-sync-platform/internal/logger"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	// TenantContextKey is the context key for the authenticated tenant id
	TenantContextKey ContextKey = "tenant_id"
	// UserContextKey is the context key for the authenticated user id
	UserContextKey ContextKey = "user_id"
)

// Claims are the JWT claims the platform issues to API clients. Every token
// is bound to exactly one tenant.
type Claims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// AuthenticationMiddleware provides JWT authentication for the API surface
type AuthenticationMiddleware struct {
	logger *logger.Logger
	secret []byte
}

// NewAuthenticationMiddleware creates a new authentication middleware
func NewAuthenticationMiddleware(logger *logger.Logger, cfg *config.Config) *AuthenticationMiddleware {
	return &AuthenticationMiddleware{
		logger: logger,
		secret: []byte(cfg.Auth.JWTSecret),
	}
}

// RequireJWT middleware that requires a valid bearer token and places the
// tenant and user ids on the request context.
func (m *AuthenticationMiddleware) RequireJWT() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				http.Error(w, "Bearer token required", http.StatusUnauthorized)
				return
			}

			claims, err := m.validateToken(authHeader[len(bearerPrefix):])
			if err != nil {
				m.logger.WithError(err).Warn("JWT validation failed")
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), TenantContextKey, claims.TenantID)
			ctx = context.WithValue(ctx, UserContextKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateToken parses and verifies an HMAC-signed token.
func (m *AuthenticationMiddleware) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.TenantID == "" {
		return nil, fmt.Errorf("token carries no tenant")
	}
	return claims, nil
}

// GetTenantFromContext extracts the authenticated tenant id from the request context
func GetTenantFromContext(ctx context.Context) string {
	tenantID, _ := ctx.Value(TenantContextKey).(string)
	return tenantID
}

// GetUserFromContext extracts the authenticated user id from the request context
func GetUserFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(UserContextKey).(string)
	return userID
}
