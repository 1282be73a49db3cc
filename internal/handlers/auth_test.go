package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/connectcrm/auth-service/internal/auth"
	"github.com/connectcrm/auth-service/internal/models"
	"github.com/connectcrm/auth-service/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthHandler(login *MockLoginService, reset *MockPasswordResetService) (*AuthHandler, *auth.TokenManager) {
	tokens := auth.NewTokenManager("test-secret-key-for-handler-tests", 1*time.Hour, 10*time.Minute)

	h := NewAuthHandler(
		login, reset, tokens,
		auth.CookieConfig{SameSite: "strict"},
		1*time.Hour, 10*time.Minute,
		nil,
	)
	return h, tokens
}

func postLoginForm(h *AuthHandler, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	h.Login(rec, req)
	return rec
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeOutcome(t *testing.T, rec *httptest.ResponseRecorder) loginOutcome {
	t.Helper()
	var out loginOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAuthHandler_Login_Success(t *testing.T) {
	login := &MockLoginService{
		LoginFunc: func(ctx context.Context, email, password, ipAddress, userAgent string) (*services.LoginResult, error) {
			return &services.LoginResult{Status: services.LoginSucceeded, SessionToken: "session-token"}, nil
		},
	}
	h, _ := newTestAuthHandler(login, &MockPasswordResetService{})

	rec := postLoginForm(h, url.Values{"email": {"user@example.com"}, "password": {"pw"}})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	cookie := findCookie(rec, auth.SessionCookieName)
	require.NotNil(t, cookie)
	assert.Equal(t, "session-token", cookie.Value)
	assert.True(t, cookie.HttpOnly)
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	h, _ := newTestAuthHandler(&MockLoginService{}, &MockPasswordResetService{})

	rec := postLoginForm(h, url.Values{"email": {"user@example.com"}, "password": {"bad"}})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", decodeOutcome(t, rec).Outcome)
	assert.Nil(t, findCookie(rec, auth.SessionCookieName))
}

func TestAuthHandler_Login_Locked(t *testing.T) {
	login := &MockLoginService{
		LoginFunc: func(ctx context.Context, email, password, ipAddress, userAgent string) (*services.LoginResult, error) {
			until := time.Now().Add(30 * time.Minute)
			return &services.LoginResult{Status: services.LoginLocked, LockedUntil: &until}, nil
		},
	}
	h, _ := newTestAuthHandler(login, &MockPasswordResetService{})

	rec := postLoginForm(h, url.Values{"email": {"user@example.com"}, "password": {"pw"}})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "locked", decodeOutcome(t, rec).Outcome)
}

func TestAuthHandler_Login_Throttled(t *testing.T) {
	login := &MockLoginService{
		LoginFunc: func(ctx context.Context, email, password, ipAddress, userAgent string) (*services.LoginResult, error) {
			return &services.LoginResult{Status: services.LoginThrottled}, nil
		},
	}
	h, _ := newTestAuthHandler(login, &MockPasswordResetService{})

	rec := postLoginForm(h, url.Values{"email": {"user@example.com"}, "password": {"pw"}})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "too_many_attempts", decodeOutcome(t, rec).Outcome)
}

func TestAuthHandler_Login_ChallengeRequired(t *testing.T) {
	delivery := services.DeliveryOutcome{Status: services.DeliverySent}
	login := &MockLoginService{
		LoginFunc: func(ctx context.Context, email, password, ipAddress, userAgent string) (*services.LoginResult, error) {
			return &services.LoginResult{
				Status:       services.LoginChallengeRequired,
				PendingToken: "pending-token",
				CodeID:       "code_1",
				Method:       models.TwoFactorTypeEmail,
				Delivery:     &delivery,
			}, nil
		},
	}
	h, _ := newTestAuthHandler(login, &MockPasswordResetService{})

	rec := postLoginForm(h, url.Values{"email": {"user@example.com"}, "password": {"pw"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	out := decodeOutcome(t, rec)
	assert.Equal(t, "code_required", out.Outcome)
	assert.Equal(t, "code_1", out.CodeID)

	cookie := findCookie(rec, auth.PendingLoginCookieName)
	require.NotNil(t, cookie)
	assert.Equal(t, "pending-token", cookie.Value)
	assert.Nil(t, findCookie(rec, auth.SessionCookieName))
}

func TestAuthHandler_Login_DeliveryFailed(t *testing.T) {
	delivery := services.DeliveryOutcome{Status: services.DeliveryFailed, Reason: "ses down"}
	login := &MockLoginService{
		LoginFunc: func(ctx context.Context, email, password, ipAddress, userAgent string) (*services.LoginResult, error) {
			return &services.LoginResult{
				Status:       services.LoginChallengeRequired,
				PendingToken: "pending-token",
				CodeID:       "code_1",
				Method:       models.TwoFactorTypeEmail,
				Delivery:     &delivery,
			}, nil
		},
	}
	h, _ := newTestAuthHandler(login, &MockPasswordResetService{})

	rec := postLoginForm(h, url.Values{"email": {"user@example.com"}, "password": {"pw"}})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "delivery_failed", decodeOutcome(t, rec).Outcome)
	// The pending cookie still lands so the user can request a resend.
	assert.NotNil(t, findCookie(rec, auth.PendingLoginCookieName))
}

func TestAuthHandler_Login_CompleteChallenge(t *testing.T) {
	login := &MockLoginService{
		CompleteChallengeFunc: func(ctx context.Context, claims *auth.PendingLoginClaims, submitted, ipAddress, userAgent string) (*services.LoginResult, error) {
			assert.Equal(t, "acct_1", claims.AccountID)
			assert.Equal(t, "123456", submitted)
			return &services.LoginResult{Status: services.LoginSucceeded, SessionToken: "session-token"}, nil
		},
	}
	h, tokens := newTestAuthHandler(login, &MockPasswordResetService{})

	pending, err := tokens.IssuePendingLogin("acct_1", "user@example.com", "code_1", models.TwoFactorTypeEmail)
	require.NoError(t, err)

	rec := postLoginForm(h,
		url.Values{"two_factor_code": {"123456"}},
		&http.Cookie{Name: auth.PendingLoginCookieName, Value: pending},
	)

	assert.Equal(t, http.StatusSeeOther, rec.Code)

	session := findCookie(rec, auth.SessionCookieName)
	require.NotNil(t, session)
	assert.Equal(t, "session-token", session.Value)

	// The pending cookie is cleared on completion.
	cleared := findCookie(rec, auth.PendingLoginCookieName)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}

func TestAuthHandler_Login_ChallengeWithoutPendingCookie(t *testing.T) {
	h, _ := newTestAuthHandler(&MockLoginService{}, &MockPasswordResetService{})

	rec := postLoginForm(h, url.Values{"two_factor_code": {"123456"}})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "try_again", decodeOutcome(t, rec).Outcome)
}

func TestAuthHandler_Login_WrongChallengeCode(t *testing.T) {
	login := &MockLoginService{
		CompleteChallengeFunc: func(ctx context.Context, claims *auth.PendingLoginClaims, submitted, ipAddress, userAgent string) (*services.LoginResult, error) {
			return nil, models.ErrCodeInvalid
		},
	}
	h, tokens := newTestAuthHandler(login, &MockPasswordResetService{})

	pending, err := tokens.IssuePendingLogin("acct_1", "user@example.com", "code_1", models.TwoFactorTypeEmail)
	require.NoError(t, err)

	rec := postLoginForm(h,
		url.Values{"two_factor_code": {"000000"}},
		&http.Cookie{Name: auth.PendingLoginCookieName, Value: pending},
	)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "code_invalid", decodeOutcome(t, rec).Outcome)
}

func TestAuthHandler_SendLoginCode_RebindsCookie(t *testing.T) {
	login := &MockLoginService{
		ResendChallengeFunc: func(ctx context.Context, claims *auth.PendingLoginClaims) (*services.LoginResult, error) {
			return &services.LoginResult{
				Status:       services.LoginChallengeRequired,
				PendingToken: "new-pending-token",
				CodeID:       "code_2",
				Method:       models.TwoFactorTypeEmail,
			}, nil
		},
	}
	h, tokens := newTestAuthHandler(login, &MockPasswordResetService{})

	pending, err := tokens.IssuePendingLogin("acct_1", "user@example.com", "code_1", models.TwoFactorTypeEmail)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/auth/login/send-code", nil)
	req.AddCookie(&http.Cookie{Name: auth.PendingLoginCookieName, Value: pending})
	rec := httptest.NewRecorder()

	h.SendLoginCode(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "code_2", body["code_id"])

	cookie := findCookie(rec, auth.PendingLoginCookieName)
	require.NotNil(t, cookie)
	assert.Equal(t, "new-pending-token", cookie.Value)
}

func TestAuthHandler_SendLoginCode_NoPendingLogin(t *testing.T) {
	h, _ := newTestAuthHandler(&MockLoginService{}, &MockPasswordResetService{})

	req := httptest.NewRequest("POST", "/auth/login/send-code", nil)
	rec := httptest.NewRecorder()

	h.SendLoginCode(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_Logout_ClearsCookieAndAudits(t *testing.T) {
	var loggedOut string
	login := &MockLoginService{
		LogoutFunc: func(ctx context.Context, accountID, ipAddress, userAgent string) {
			loggedOut = accountID
		},
	}
	h, tokens := newTestAuthHandler(login, &MockPasswordResetService{})

	session, err := tokens.IssueSession("acct_1", "user@example.com", models.RoleMember)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: session})
	rec := httptest.NewRecorder()

	h.Logout(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "acct_1", loggedOut)

	cookie := findCookie(rec, auth.SessionCookieName)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestAuthHandler_Register_Conflict(t *testing.T) {
	login := &MockLoginService{
		RegisterFunc: func(ctx context.Context, email, password, name string) (*models.Account, error) {
			return nil, models.ErrConflict
		},
	}
	h, _ := newTestAuthHandler(login, &MockPasswordResetService{})

	body := `{"email":"user@example.com","password":"Str0ng-Passw0rd!","name":"User"}`
	req := httptest.NewRequest("POST", "/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthHandler_Register_Success(t *testing.T) {
	login := &MockLoginService{
		RegisterFunc: func(ctx context.Context, email, password, name string) (*models.Account, error) {
			return &models.Account{ID: "acct_new", Email: email}, nil
		},
	}
	h, _ := newTestAuthHandler(login, &MockPasswordResetService{})

	body := `{"email":"user@example.com","password":"Str0ng-Passw0rd!","name":"User"}`
	req := httptest.NewRequest("POST", "/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAuthHandler_ForgotPassword_AlwaysAccepted(t *testing.T) {
	h, _ := newTestAuthHandler(&MockLoginService{}, &MockPasswordResetService{})

	body := `{"email":"nobody@example.com"}`
	req := httptest.NewRequest("POST", "/auth/forgot-password", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.ForgotPassword(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestAuthHandler_ResetPassword_InvalidToken(t *testing.T) {
	h, _ := newTestAuthHandler(&MockLoginService{}, &MockPasswordResetService{})

	body := `{"token":"bogus","password":"Str0ng-Passw0rd!"}`
	req := httptest.NewRequest("POST", "/auth/reset-password", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.ResetPassword(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
