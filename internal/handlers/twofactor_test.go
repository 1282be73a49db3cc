package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/connectcrm/auth-service/internal/auth"
	"github.com/connectcrm/auth-service/internal/models"
	"github.com/connectcrm/auth-service/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	claims := &auth.SessionClaims{AccountID: "acct_1", Email: "user@example.com", Role: models.RoleMember}
	ctx := context.WithValue(req.Context(), auth.SessionContextKey, claims)
	return req.WithContext(ctx)
}

func accountGetterReturning(account *models.Account) *MockAccountGetter {
	return &MockAccountGetter{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return account, nil
		},
	}
}

func TestTwoFactorHandler_Setup_Email(t *testing.T) {
	account := &models.Account{ID: "acct_1", Email: "user@example.com"}
	h := NewTwoFactorHandler(&MockChallengeService{}, accountGetterReturning(account), nil)

	req := authedRequest("POST", "/api/2fa/setup", `{"method":"email"}`)
	rec := httptest.NewRecorder()

	h.Setup(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "email", body["method"])
	assert.Equal(t, "code_123", body["code_id"])
	assert.Equal(t, "sent", body["delivery"])
}

func TestTwoFactorHandler_Setup_TOTP(t *testing.T) {
	account := &models.Account{ID: "acct_1", Email: "user@example.com"}
	h := NewTwoFactorHandler(&MockChallengeService{}, accountGetterReturning(account), nil)

	req := authedRequest("POST", "/api/2fa/setup", `{"method":"totp"}`)
	rec := httptest.NewRecorder()

	h.Setup(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "totp", body["method"])
	assert.Equal(t, "SECRET", body["secret"])
	assert.Contains(t, body["qr_code"], "data:image/png;base64,")
}

func TestTwoFactorHandler_Setup_InvalidMethod(t *testing.T) {
	account := &models.Account{ID: "acct_1", Email: "user@example.com"}
	h := NewTwoFactorHandler(&MockChallengeService{}, accountGetterReturning(account), nil)

	req := authedRequest("POST", "/api/2fa/setup", `{"method":"sms"}`)
	rec := httptest.NewRecorder()

	h.Setup(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTwoFactorHandler_Setup_Unauthenticated(t *testing.T) {
	h := NewTwoFactorHandler(&MockChallengeService{}, &MockAccountGetter{}, nil)

	req := httptest.NewRequest("POST", "/api/2fa/setup", strings.NewReader(`{"method":"email"}`))
	rec := httptest.NewRecorder()

	h.Setup(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTwoFactorHandler_Verify_EmailCode(t *testing.T) {
	account := &models.Account{ID: "acct_1", Email: "user@example.com"}

	var confirmedCodeID string
	challenge := &MockChallengeService{
		ConfirmEmailSetupFunc: func(ctx context.Context, a *models.Account, codeID, submitted, ip, ua string) error {
			confirmedCodeID = codeID
			return nil
		},
	}
	h := NewTwoFactorHandler(challenge, accountGetterReturning(account), nil)

	req := authedRequest("POST", "/api/2fa/verify", `{"code":"123456","code_id":"code_1"}`)
	rec := httptest.NewRecorder()

	h.Verify(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "code_1", confirmedCodeID)
}

func TestTwoFactorHandler_Verify_TOTPWithoutCodeID(t *testing.T) {
	account := &models.Account{ID: "acct_1", Email: "user@example.com"}

	totpConfirmed := false
	challenge := &MockChallengeService{
		ConfirmTOTPSetupFunc: func(ctx context.Context, a *models.Account, submitted, ip, ua string) error {
			totpConfirmed = true
			return nil
		},
	}
	h := NewTwoFactorHandler(challenge, accountGetterReturning(account), nil)

	req := authedRequest("POST", "/api/2fa/verify", `{"code":"123456"}`)
	rec := httptest.NewRecorder()

	h.Verify(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, totpConfirmed)
}

func TestTwoFactorHandler_Verify_WrongCode(t *testing.T) {
	account := &models.Account{ID: "acct_1", Email: "user@example.com"}

	challenge := &MockChallengeService{
		ConfirmEmailSetupFunc: func(ctx context.Context, a *models.Account, codeID, submitted, ip, ua string) error {
			return models.ErrCodeInvalid
		},
	}
	h := NewTwoFactorHandler(challenge, accountGetterReturning(account), nil)

	req := authedRequest("POST", "/api/2fa/verify", `{"code":"000000","code_id":"code_1"}`)
	rec := httptest.NewRecorder()

	h.Verify(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTwoFactorHandler_Verify_NonNumericCode(t *testing.T) {
	account := &models.Account{ID: "acct_1", Email: "user@example.com"}
	h := NewTwoFactorHandler(&MockChallengeService{}, accountGetterReturning(account), nil)

	req := authedRequest("POST", "/api/2fa/verify", `{"code":"abcdef","code_id":"code_1"}`)
	rec := httptest.NewRecorder()

	h.Verify(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTwoFactorHandler_Disable_WrongPassword(t *testing.T) {
	account := &models.Account{ID: "acct_1", Email: "user@example.com", TwoFactorEnabled: true}

	challenge := &MockChallengeService{
		DisableFunc: func(ctx context.Context, a *models.Account, password, ip, ua string) error {
			return models.ErrUnauthorized
		},
	}
	h := NewTwoFactorHandler(challenge, accountGetterReturning(account), nil)

	req := authedRequest("POST", "/api/2fa/disable", `{"password":"wrong"}`)
	rec := httptest.NewRecorder()

	h.Disable(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTwoFactorHandler_Disable_Success(t *testing.T) {
	account := &models.Account{ID: "acct_1", Email: "user@example.com", TwoFactorEnabled: true}
	h := NewTwoFactorHandler(&MockChallengeService{}, accountGetterReturning(account), nil)

	req := authedRequest("POST", "/api/2fa/disable", `{"password":"Correct-Horse-9"}`)
	rec := httptest.NewRecorder()

	h.Disable(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTwoFactorHandler_SendCode_AlreadyEnabled(t *testing.T) {
	account := &models.Account{ID: "acct_1", Email: "user@example.com", TwoFactorEnabled: true}
	h := NewTwoFactorHandler(&MockChallengeService{}, accountGetterReturning(account), nil)

	req := authedRequest("POST", "/api/2fa/send-code", "")
	rec := httptest.NewRecorder()

	h.SendCode(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTwoFactorHandler_SendCode_Cooldown(t *testing.T) {
	account := &models.Account{ID: "acct_1", Email: "user@example.com"}

	challenge := &MockChallengeService{
		IssueCodeFunc: func(ctx context.Context, a *models.Account, purpose string) (*models.EmailTwoFactorCode, services.DeliveryOutcome, error) {
			return nil, services.DeliveryOutcome{}, models.ErrTooManyAttempts
		},
	}
	h := NewTwoFactorHandler(challenge, accountGetterReturning(account), nil)

	req := authedRequest("POST", "/api/2fa/send-code", "")
	rec := httptest.NewRecorder()

	h.SendCode(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
