package auth

import (
	"fmt"
	"time"

	"github.com/connectcrm/auth-service/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeSession = "session"
	tokenTypePending = "pending_login"
)

// SessionClaims are the claims carried by an authenticated session token.
type SessionClaims struct {
	Type      string `json:"typ"`
	AccountID string `json:"sub_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// PendingLoginClaims are the claims of the short-lived token issued after a
// correct password when the account still owes a second factor. It records
// which challenge the holder must answer; it grants no access on its own.
type PendingLoginClaims struct {
	Type      string `json:"typ"`
	AccountID string `json:"sub_id"`
	Email     string `json:"email"`
	CodeID    string `json:"code_id,omitempty"`
	Method    string `json:"method"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates the session and pending-login tokens.
type TokenManager struct {
	secret        string
	sessionExpiry time.Duration
	pendingExpiry time.Duration
}

func NewTokenManager(secret string, sessionExpiry, pendingExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:        secret,
		sessionExpiry: sessionExpiry,
		pendingExpiry: pendingExpiry,
	}
}

// IssueSession creates a signed session token for a fully authenticated account.
func (tm *TokenManager) IssueSession(accountID, email, role string) (string, error) {
	now := time.Now()

	claims := &SessionClaims{
		Type:      tokenTypeSession,
		AccountID: accountID,
		Email:     email,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.sessionExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// IssuePendingLogin creates the token that bridges the password step and the
// two-factor step. codeID is empty for app-based challenges.
func (tm *TokenManager) IssuePendingLogin(accountID, email, codeID, method string) (string, error) {
	now := time.Now()

	claims := &PendingLoginClaims{
		Type:      tokenTypePending,
		AccountID: accountID,
		Email:     email,
		CodeID:    codeID,
		Method:    method,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.pendingExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign pending-login token: %w", err)
	}

	return tokenString, nil
}

// ValidateSession verifies a session token and returns its claims.
// Pending-login tokens are rejected here; they never grant access.
func (tm *TokenManager) ValidateSession(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, tm.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type != tokenTypeSession {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}

// ValidatePendingLogin verifies a pending-login token and returns its claims.
func (tm *TokenManager) ValidatePendingLogin(tokenString string) (*PendingLoginClaims, error) {
	claims := &PendingLoginClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, tm.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pending-login token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type != tokenTypePending {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}

func (tm *TokenManager) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return []byte(tm.secret), nil
}
