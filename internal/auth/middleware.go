package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/connectcrm/auth-service/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SessionContextKey is the key for storing session claims in context
	SessionContextKey contextKey = "session"
)

// AccountFetcher fetches the current account record for role checks.
type AccountFetcher interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// SessionMiddleware validates the session cookie and injects claims into context
func SessionMiddleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := GetSessionCookie(r)
			if err != nil || tokenString == "" {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateSession(tokenString)
			if err != nil {
				http.Error(w, "invalid or expired session", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole creates a middleware that enforces role-based access control.
// The role is read from the database, not the token, so demotions take
// effect without waiting for session expiry.
func RequireRole(accounts AccountFetcher, role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetSessionFromContext(r)
			if claims == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			account, err := accounts.GetByID(r.Context(), claims.AccountID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					http.Error(w, "account not found", http.StatusUnauthorized)
					return
				}
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			if account.Role != role {
				http.Error(w, "forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetSessionFromContext extracts session claims from request context
func GetSessionFromContext(r *http.Request) *SessionClaims {
	claims, ok := r.Context().Value(SessionContextKey).(*SessionClaims)
	if !ok {
		return nil
	}
	return claims
}
