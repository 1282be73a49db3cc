package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/connectcrm/auth-service/internal/auth"
	"github.com/connectcrm/auth-service/internal/models"
	"github.com/connectcrm/auth-service/internal/services"
	pkghttp "github.com/connectcrm/auth-service/pkg/http"
)

// LoginServiceInterface defines the login business logic the handler needs
type LoginServiceInterface interface {
	Login(ctx context.Context, email, password, ipAddress, userAgent string) (*services.LoginResult, error)
	CompleteChallenge(ctx context.Context, claims *auth.PendingLoginClaims, submitted, ipAddress, userAgent string) (*services.LoginResult, error)
	ResendChallenge(ctx context.Context, claims *auth.PendingLoginClaims) (*services.LoginResult, error)
	Register(ctx context.Context, email, password, name string) (*models.Account, error)
	Logout(ctx context.Context, accountID, ipAddress, userAgent string)
}

// PasswordResetServiceInterface defines the reset flow the handler needs
type PasswordResetServiceInterface interface {
	RequestReset(ctx context.Context, email, ipAddress, userAgent string) error
	CompleteReset(ctx context.Context, token, newPassword, ipAddress, userAgent string) error
}

// AuthHandler handles the login, logout, registration, and reset endpoints
type AuthHandler struct {
	login         LoginServiceInterface
	reset         PasswordResetServiceInterface
	tokens        *auth.TokenManager
	cookieConfig  auth.CookieConfig
	sessionMaxAge int
	pendingMaxAge int
	ipConfig      *pkghttp.IPConfig
}

func NewAuthHandler(
	login LoginServiceInterface,
	reset PasswordResetServiceInterface,
	tokens *auth.TokenManager,
	cookieConfig auth.CookieConfig,
	sessionExpiry, pendingExpiry time.Duration,
	ipConfig *pkghttp.IPConfig,
) *AuthHandler {
	return &AuthHandler{
		login:         login,
		reset:         reset,
		tokens:        tokens,
		cookieConfig:  cookieConfig,
		sessionMaxAge: int(sessionExpiry.Seconds()),
		pendingMaxAge: int(pendingExpiry.Seconds()),
		ipConfig:      ipConfig,
	}
}

// loginOutcome is the JSON body returned for every non-redirect login response
type loginOutcome struct {
	Outcome     string     `json:"outcome"`
	Message     string     `json:"message"`
	CodeID      string     `json:"code_id,omitempty"`
	Method      string     `json:"method,omitempty"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required,min=1,max=200"`
}

// ForgotPasswordRequest represents the request body for a reset request
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents the request body completing a reset
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login handles the credential form POST. A submission carrying a
// two-factor code finishes a pending login; otherwise it starts one.
// Success responds with a 303 redirect and the session cookie; every other
// outcome is JSON with a stable outcome tag.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid form body")
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	if code := strings.TrimSpace(r.PostFormValue("two_factor_code")); code != "" {
		h.completeChallenge(w, r, code, ipAddress, userAgent)
		return
	}

	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		pkghttp.WriteBadRequest(w, "Email and password are required")
		return
	}

	result, err := h.login.Login(r.Context(), email, password, ipAddress, userAgent)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	switch result.Status {
	case services.LoginSucceeded:
		auth.SetSessionCookie(w, result.SessionToken, h.sessionMaxAge, h.cookieConfig)
		http.Redirect(w, r, "/", http.StatusSeeOther)

	case services.LoginChallengeRequired:
		auth.SetPendingLoginCookie(w, result.PendingToken, h.pendingMaxAge, h.cookieConfig)

		if result.Delivery != nil && result.Delivery.Status == services.DeliveryFailed {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, loginOutcome{
				Outcome: "delivery_failed",
				Message: "We could not send your verification code. Please try again.",
				CodeID:  result.CodeID,
				Method:  result.Method,
			})
			return
		}

		pkghttp.WriteJSON(w, http.StatusOK, loginOutcome{
			Outcome: "code_required",
			Message: "Enter the verification code to finish signing in.",
			CodeID:  result.CodeID,
			Method:  result.Method,
		})

	case services.LoginLocked:
		pkghttp.WriteJSON(w, http.StatusForbidden, loginOutcome{
			Outcome:     "locked",
			Message:     "Account temporarily locked due to repeated failed logins. Try again later.",
			LockedUntil: result.LockedUntil,
		})

	case services.LoginThrottled:
		pkghttp.WriteJSON(w, http.StatusTooManyRequests, loginOutcome{
			Outcome: "too_many_attempts",
			Message: "Too many failed login attempts. Please try again later.",
		})

	default:
		// Unknown email and wrong password produce the same response.
		pkghttp.WriteJSON(w, http.StatusUnauthorized, loginOutcome{
			Outcome: "invalid_credentials",
			Message: "Invalid email or password.",
		})
	}
}

func (h *AuthHandler) completeChallenge(w http.ResponseWriter, r *http.Request, code, ipAddress, userAgent string) {
	claims := h.pendingClaims(r)
	if claims == nil {
		pkghttp.WriteJSON(w, http.StatusUnauthorized, loginOutcome{
			Outcome: "try_again",
			Message: "Your sign-in session expired. Please log in again.",
		})
		return
	}

	result, err := h.login.CompleteChallenge(r.Context(), claims, code, ipAddress, userAgent)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrCodeExpired):
			pkghttp.WriteJSON(w, http.StatusUnauthorized, loginOutcome{
				Outcome: "code_expired",
				Message: "That code has expired. Request a new one.",
			})
		case errors.Is(err, models.ErrCodeExhausted):
			pkghttp.WriteJSON(w, http.StatusUnauthorized, loginOutcome{
				Outcome: "code_invalid",
				Message: "Too many incorrect codes. Request a new one.",
			})
		case errors.Is(err, models.ErrCodeInvalid):
			pkghttp.WriteJSON(w, http.StatusUnauthorized, loginOutcome{
				Outcome: "code_invalid",
				Message: "Incorrect verification code.",
			})
		case errors.Is(err, models.ErrUnauthorized):
			auth.ClearPendingLoginCookie(w, h.cookieConfig)
			pkghttp.WriteJSON(w, http.StatusUnauthorized, loginOutcome{
				Outcome: "try_again",
				Message: "Your sign-in session expired. Please log in again.",
			})
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	auth.ClearPendingLoginCookie(w, h.cookieConfig)
	auth.SetSessionCookie(w, result.SessionToken, h.sessionMaxAge, h.cookieConfig)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// SendLoginCode reissues the email code for a pending login. The pending
// cookie proves the password step; no email address is accepted here.
func (h *AuthHandler) SendLoginCode(w http.ResponseWriter, r *http.Request) {
	claims := h.pendingClaims(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "No pending login")
		return
	}

	result, err := h.login.ResendChallenge(r.Context(), claims)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrTooManyAttempts):
			pkghttp.WriteTooManyRequests(w, "A code was sent recently. Please wait before requesting another.")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "This account does not use email codes")
		case errors.Is(err, models.ErrUnauthorized):
			auth.ClearPendingLoginCookie(w, h.cookieConfig)
			pkghttp.WriteUnauthorized(w, "Your sign-in session expired. Please log in again.")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	// Rebind the cookie to the new code.
	auth.SetPendingLoginCookie(w, result.PendingToken, h.pendingMaxAge, h.cookieConfig)

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"code_id": result.CodeID,
	})
}

// Logout clears the session cookie and records the event
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if tokenString, err := auth.GetSessionCookie(r); err == nil {
		if claims, err := h.tokens.ValidateSession(tokenString); err == nil {
			ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
			h.login.Logout(r.Context(), claims.AccountID, ipAddress, r.Header.Get("User-Agent"))
		}
	}

	auth.ClearSessionCookie(w, h.cookieConfig)
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

// Register handles account registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Name = strings.TrimSpace(req.Name)

	account, err := h.login.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "An account with this email already exists")
		case strings.Contains(err.Error(), "invalid password"):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, map[string]string{
		"id":    account.ID,
		"email": account.Email,
	})
}

// ForgotPassword starts the reset flow. The response never reveals whether
// the address has an account.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	if err := h.reset.RequestReset(r.Context(), req.Email, ipAddress, r.Header.Get("User-Agent")); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "If that address has an account, a reset link is on its way.",
	})
}

// ResetPassword completes the reset flow
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	err := h.reset.CompleteReset(r.Context(), req.Token, req.Password, ipAddress, r.Header.Get("User-Agent"))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Invalid or expired reset link")
		case strings.Contains(err.Error(), "invalid password"):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Password updated. You can now log in.",
	})
}

func (h *AuthHandler) pendingClaims(r *http.Request) *auth.PendingLoginClaims {
	tokenString, err := auth.GetPendingLoginCookie(r)
	if err != nil || tokenString == "" {
		return nil
	}

	claims, err := h.tokens.ValidatePendingLogin(tokenString)
	if err != nil {
		return nil
	}
	return claims
}
