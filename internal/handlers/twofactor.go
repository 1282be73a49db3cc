package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/connectcrm/auth-service/internal/auth"
	"github.com/connectcrm/auth-service/internal/models"
	"github.com/connectcrm/auth-service/internal/services"
	pkghttp "github.com/connectcrm/auth-service/pkg/http"
)

// ChallengeServiceInterface defines the two-factor business logic the
// handler needs
type ChallengeServiceInterface interface {
	IssueCode(ctx context.Context, account *models.Account, purpose string) (*models.EmailTwoFactorCode, services.DeliveryOutcome, error)
	BeginEmailSetup(ctx context.Context, account *models.Account, ipAddress, userAgent string) (*models.EmailTwoFactorCode, services.DeliveryOutcome, error)
	ConfirmEmailSetup(ctx context.Context, account *models.Account, codeID, submitted, ipAddress, userAgent string) error
	BeginTOTPSetup(ctx context.Context, account *models.Account, ipAddress, userAgent string) (string, string, error)
	ConfirmTOTPSetup(ctx context.Context, account *models.Account, submitted, ipAddress, userAgent string) error
	Disable(ctx context.Context, account *models.Account, password, ipAddress, userAgent string) error
}

// AccountGetter fetches the authenticated account record
type AccountGetter interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// TwoFactorHandler handles the authenticated two-factor management endpoints
type TwoFactorHandler struct {
	challenge ChallengeServiceInterface
	accounts  AccountGetter
	ipConfig  *pkghttp.IPConfig
}

func NewTwoFactorHandler(challenge ChallengeServiceInterface, accounts AccountGetter, ipConfig *pkghttp.IPConfig) *TwoFactorHandler {
	return &TwoFactorHandler{
		challenge: challenge,
		accounts:  accounts,
		ipConfig:  ipConfig,
	}
}

// SetupRequest chooses the two-factor channel to enroll
type SetupRequest struct {
	Method string `json:"method" validate:"required,oneof=email totp"`
}

// VerifyRequest submits a code during enrollment. CodeID is present for
// email enrollment and absent for authenticator enrollment.
type VerifyRequest struct {
	Code   string `json:"code" validate:"required,numeric,min=6,max=6"`
	CodeID string `json:"code_id"`
}

// DisableRequest turns two-factor off. Code is accepted for backward
// compatibility with older clients but only the password is checked.
type DisableRequest struct {
	Password string `json:"password" validate:"required"`
	Code     string `json:"code"`
}

// Setup starts two-factor enrollment for the chosen method
func (h *TwoFactorHandler) Setup(w http.ResponseWriter, r *http.Request) {
	account := h.currentAccount(w, r)
	if account == nil {
		return
	}

	var req SetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	switch req.Method {
	case models.TwoFactorTypeTOTP:
		secret, qrDataURL, err := h.challenge.BeginTOTPSetup(r.Context(), account, ipAddress, userAgent)
		if err != nil {
			h.writeChallengeError(w, err)
			return
		}

		pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"method":  models.TwoFactorTypeTOTP,
			"secret":  secret,
			"qr_code": qrDataURL,
		})

	default:
		code, delivery, err := h.challenge.BeginEmailSetup(r.Context(), account, ipAddress, userAgent)
		if err != nil {
			h.writeChallengeError(w, err)
			return
		}

		pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"method":   models.TwoFactorTypeEmail,
			"code_id":  code.ID,
			"delivery": delivery.Status.String(),
		})
	}
}

// Verify completes enrollment with a submitted code
func (h *TwoFactorHandler) Verify(w http.ResponseWriter, r *http.Request) {
	account := h.currentAccount(w, r)
	if account == nil {
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	var err error
	if req.CodeID != "" {
		err = h.challenge.ConfirmEmailSetup(r.Context(), account, req.CodeID, req.Code, ipAddress, userAgent)
	} else {
		err = h.challenge.ConfirmTOTPSetup(r.Context(), account, req.Code, ipAddress, userAgent)
	}
	if err != nil {
		h.writeChallengeError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Two-factor authentication is now enabled.",
	})
}

// Disable turns two-factor off after password re-confirmation
func (h *TwoFactorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	account := h.currentAccount(w, r)
	if account == nil {
		return
	}

	var req DisableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	if err := h.challenge.Disable(r.Context(), account, req.Password, ipAddress, userAgent); err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Incorrect password")
		case errors.Is(err, models.ErrTwoFactorOff):
			pkghttp.WriteBadRequest(w, "Two-factor authentication is not enabled")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Two-factor authentication is now disabled.",
	})
}

// SendCode reissues a setup code during enrollment
func (h *TwoFactorHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	account := h.currentAccount(w, r)
	if account == nil {
		return
	}

	if account.TwoFactorEnabled {
		pkghttp.WriteBadRequest(w, "Two-factor authentication is already enabled")
		return
	}

	code, _, err := h.challenge.IssueCode(r.Context(), account, models.ChallengePurposeSetup)
	if err != nil {
		h.writeChallengeError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"code_id": code.ID,
	})
}

func (h *TwoFactorHandler) currentAccount(w http.ResponseWriter, r *http.Request) *models.Account {
	claims := auth.GetSessionFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return nil
	}

	account, err := h.accounts.GetByID(r.Context(), claims.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteUnauthorized(w, "Account not found")
		} else {
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return nil
	}

	return account
}

func (h *TwoFactorHandler) writeChallengeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrCodeExpired):
		pkghttp.WriteUnauthorized(w, "That code has expired. Request a new one.")
	case errors.Is(err, models.ErrCodeExhausted):
		pkghttp.WriteUnauthorized(w, "Too many incorrect codes. Request a new one.")
	case errors.Is(err, models.ErrCodeInvalid):
		pkghttp.WriteUnauthorized(w, "Incorrect verification code.")
	case errors.Is(err, models.ErrTooManyAttempts):
		pkghttp.WriteTooManyRequests(w, "A code was sent recently. Please wait before requesting another.")
	case errors.Is(err, models.ErrTwoFactorEnabled):
		pkghttp.WriteBadRequest(w, "Two-factor authentication is already enabled")
	case errors.Is(err, models.ErrTwoFactorOff):
		pkghttp.WriteBadRequest(w, "Two-factor authentication is not enabled")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
