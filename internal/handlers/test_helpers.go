package handlers

import (
	"context"

	"github.com/connectcrm/auth-service/internal/auth"
	"github.com/connectcrm/auth-service/internal/models"
	"github.com/connectcrm/auth-service/internal/repositories"
	"github.com/connectcrm/auth-service/internal/services"
)

// MockLoginService implements LoginServiceInterface for testing
type MockLoginService struct {
	LoginFunc             func(ctx context.Context, email, password, ipAddress, userAgent string) (*services.LoginResult, error)
	CompleteChallengeFunc func(ctx context.Context, claims *auth.PendingLoginClaims, submitted, ipAddress, userAgent string) (*services.LoginResult, error)
	ResendChallengeFunc   func(ctx context.Context, claims *auth.PendingLoginClaims) (*services.LoginResult, error)
	RegisterFunc          func(ctx context.Context, email, password, name string) (*models.Account, error)
	LogoutFunc            func(ctx context.Context, accountID, ipAddress, userAgent string)
}

func (m *MockLoginService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, ipAddress, userAgent)
	}
	return &services.LoginResult{Status: services.LoginFailed}, nil
}

func (m *MockLoginService) CompleteChallenge(ctx context.Context, claims *auth.PendingLoginClaims, submitted, ipAddress, userAgent string) (*services.LoginResult, error) {
	if m.CompleteChallengeFunc != nil {
		return m.CompleteChallengeFunc(ctx, claims, submitted, ipAddress, userAgent)
	}
	return nil, models.ErrCodeInvalid
}

func (m *MockLoginService) ResendChallenge(ctx context.Context, claims *auth.PendingLoginClaims) (*services.LoginResult, error) {
	if m.ResendChallengeFunc != nil {
		return m.ResendChallengeFunc(ctx, claims)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockLoginService) Register(ctx context.Context, email, password, name string) (*models.Account, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, password, name)
	}
	return nil, models.ErrInternalServer
}

func (m *MockLoginService) Logout(ctx context.Context, accountID, ipAddress, userAgent string) {
	if m.LogoutFunc != nil {
		m.LogoutFunc(ctx, accountID, ipAddress, userAgent)
	}
}

// MockPasswordResetService implements PasswordResetServiceInterface for testing
type MockPasswordResetService struct {
	RequestResetFunc  func(ctx context.Context, email, ipAddress, userAgent string) error
	CompleteResetFunc func(ctx context.Context, token, newPassword, ipAddress, userAgent string) error
}

func (m *MockPasswordResetService) RequestReset(ctx context.Context, email, ipAddress, userAgent string) error {
	if m.RequestResetFunc != nil {
		return m.RequestResetFunc(ctx, email, ipAddress, userAgent)
	}
	return nil
}

func (m *MockPasswordResetService) CompleteReset(ctx context.Context, token, newPassword, ipAddress, userAgent string) error {
	if m.CompleteResetFunc != nil {
		return m.CompleteResetFunc(ctx, token, newPassword, ipAddress, userAgent)
	}
	return models.ErrUnauthorized
}

// MockChallengeService implements ChallengeServiceInterface for testing
type MockChallengeService struct {
	IssueCodeFunc         func(ctx context.Context, account *models.Account, purpose string) (*models.EmailTwoFactorCode, services.DeliveryOutcome, error)
	BeginEmailSetupFunc   func(ctx context.Context, account *models.Account, ipAddress, userAgent string) (*models.EmailTwoFactorCode, services.DeliveryOutcome, error)
	ConfirmEmailSetupFunc func(ctx context.Context, account *models.Account, codeID, submitted, ipAddress, userAgent string) error
	BeginTOTPSetupFunc    func(ctx context.Context, account *models.Account, ipAddress, userAgent string) (string, string, error)
	ConfirmTOTPSetupFunc  func(ctx context.Context, account *models.Account, submitted, ipAddress, userAgent string) error
	DisableFunc           func(ctx context.Context, account *models.Account, password, ipAddress, userAgent string) error
}

func (m *MockChallengeService) IssueCode(ctx context.Context, account *models.Account, purpose string) (*models.EmailTwoFactorCode, services.DeliveryOutcome, error) {
	if m.IssueCodeFunc != nil {
		return m.IssueCodeFunc(ctx, account, purpose)
	}
	return &models.EmailTwoFactorCode{ID: "code_123", AccountID: account.ID, Purpose: purpose},
		services.DeliveryOutcome{Status: services.DeliverySent}, nil
}

func (m *MockChallengeService) BeginEmailSetup(ctx context.Context, account *models.Account, ipAddress, userAgent string) (*models.EmailTwoFactorCode, services.DeliveryOutcome, error) {
	if m.BeginEmailSetupFunc != nil {
		return m.BeginEmailSetupFunc(ctx, account, ipAddress, userAgent)
	}
	return &models.EmailTwoFactorCode{ID: "code_123", AccountID: account.ID, Purpose: models.ChallengePurposeSetup},
		services.DeliveryOutcome{Status: services.DeliverySent}, nil
}

func (m *MockChallengeService) ConfirmEmailSetup(ctx context.Context, account *models.Account, codeID, submitted, ipAddress, userAgent string) error {
	if m.ConfirmEmailSetupFunc != nil {
		return m.ConfirmEmailSetupFunc(ctx, account, codeID, submitted, ipAddress, userAgent)
	}
	return nil
}

func (m *MockChallengeService) BeginTOTPSetup(ctx context.Context, account *models.Account, ipAddress, userAgent string) (string, string, error) {
	if m.BeginTOTPSetupFunc != nil {
		return m.BeginTOTPSetupFunc(ctx, account, ipAddress, userAgent)
	}
	return "SECRET", "data:image/png;base64,abc", nil
}

func (m *MockChallengeService) ConfirmTOTPSetup(ctx context.Context, account *models.Account, submitted, ipAddress, userAgent string) error {
	if m.ConfirmTOTPSetupFunc != nil {
		return m.ConfirmTOTPSetupFunc(ctx, account, submitted, ipAddress, userAgent)
	}
	return nil
}

func (m *MockChallengeService) Disable(ctx context.Context, account *models.Account, password, ipAddress, userAgent string) error {
	if m.DisableFunc != nil {
		return m.DisableFunc(ctx, account, password, ipAddress, userAgent)
	}
	return nil
}

// MockAccountGetter implements AccountGetter for testing
type MockAccountGetter struct {
	GetByIDFunc func(ctx context.Context, id string) (*models.Account, error)
}

func (m *MockAccountGetter) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

// MockSecurityLogLister implements SecurityLogLister for testing
type MockSecurityLogLister struct {
	ListFunc func(ctx context.Context, filter repositories.SecurityLogFilter) ([]*models.SecurityLog, error)
}

func (m *MockSecurityLogLister) List(ctx context.Context, filter repositories.SecurityLogFilter) ([]*models.SecurityLog, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []*models.SecurityLog{}, nil
}
