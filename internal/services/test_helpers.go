package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/connectcrm/auth-service/internal/models"
	"github.com/connectcrm/auth-service/internal/repositories"
	"github.com/connectcrm/auth-service/pkg/logger"
)

// MockAccountStore implements AccountStore for testing
type MockAccountStore struct {
	GetByIDFunc               func(ctx context.Context, id string) (*models.Account, error)
	GetByEmailFunc            func(ctx context.Context, email string) (*models.Account, error)
	CreateFunc                func(ctx context.Context, account *models.Account) (*models.Account, error)
	RegisterFailedAttemptFunc func(ctx context.Context, id string, maxAttempts int, lockout time.Duration) (int, *time.Time, error)
	ClearLockoutFunc          func(ctx context.Context, id string) error
	SetTwoFactorFunc          func(ctx context.Context, id string, enabled bool, channelType string, secret *string) error
	StageTOTPSecretFunc       func(ctx context.Context, id, secret string) error
	UpdatePasswordFunc        func(ctx context.Context, id, passwordHash string) error
}

func (m *MockAccountStore) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountStore) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountStore) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountStore) RegisterFailedAttempt(ctx context.Context, id string, maxAttempts int, lockout time.Duration) (int, *time.Time, error) {
	if m.RegisterFailedAttemptFunc != nil {
		return m.RegisterFailedAttemptFunc(ctx, id, maxAttempts, lockout)
	}
	return 1, nil, nil
}

func (m *MockAccountStore) ClearLockout(ctx context.Context, id string) error {
	if m.ClearLockoutFunc != nil {
		return m.ClearLockoutFunc(ctx, id)
	}
	return nil
}

func (m *MockAccountStore) SetTwoFactor(ctx context.Context, id string, enabled bool, channelType string, secret *string) error {
	if m.SetTwoFactorFunc != nil {
		return m.SetTwoFactorFunc(ctx, id, enabled, channelType, secret)
	}
	return nil
}

func (m *MockAccountStore) StageTOTPSecret(ctx context.Context, id, secret string) error {
	if m.StageTOTPSecretFunc != nil {
		return m.StageTOTPSecretFunc(ctx, id, secret)
	}
	return nil
}

func (m *MockAccountStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

// MockEmailCodeStore implements EmailCodeStore for testing
type MockEmailCodeStore struct {
	IssueFunc                func(ctx context.Context, accountID, code, purpose string, expiresAt time.Time) (*models.EmailTwoFactorCode, error)
	GetForVerificationFunc   func(ctx context.Context, id, accountID string) (*models.EmailTwoFactorCode, error)
	GetLatestValidFunc       func(ctx context.Context, accountID string) (*models.EmailTwoFactorCode, error)
	IncrementAttemptsFunc    func(ctx context.Context, id string) (int, error)
	MarkUsedFunc             func(ctx context.Context, id string) error
	InvalidateForAccountFunc func(ctx context.Context, accountID string) error
}

func (m *MockEmailCodeStore) Issue(ctx context.Context, accountID, code, purpose string, expiresAt time.Time) (*models.EmailTwoFactorCode, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, accountID, code, purpose, expiresAt)
	}
	return &models.EmailTwoFactorCode{
		ID:        "code_123",
		AccountID: accountID,
		Code:      code,
		Purpose:   purpose,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}, nil
}

func (m *MockEmailCodeStore) GetForVerification(ctx context.Context, id, accountID string) (*models.EmailTwoFactorCode, error) {
	if m.GetForVerificationFunc != nil {
		return m.GetForVerificationFunc(ctx, id, accountID)
	}
	return nil, models.ErrNotFound
}

func (m *MockEmailCodeStore) GetLatestValid(ctx context.Context, accountID string) (*models.EmailTwoFactorCode, error) {
	if m.GetLatestValidFunc != nil {
		return m.GetLatestValidFunc(ctx, accountID)
	}
	return nil, models.ErrNotFound
}

func (m *MockEmailCodeStore) IncrementAttempts(ctx context.Context, id string) (int, error) {
	if m.IncrementAttemptsFunc != nil {
		return m.IncrementAttemptsFunc(ctx, id)
	}
	return 1, nil
}

func (m *MockEmailCodeStore) MarkUsed(ctx context.Context, id string) error {
	if m.MarkUsedFunc != nil {
		return m.MarkUsedFunc(ctx, id)
	}
	return nil
}

func (m *MockEmailCodeStore) InvalidateForAccount(ctx context.Context, accountID string) error {
	if m.InvalidateForAccountFunc != nil {
		return m.InvalidateForAccountFunc(ctx, accountID)
	}
	return nil
}

// MockLoginAttemptStore implements LoginAttemptStore for testing
type MockLoginAttemptStore struct {
	RecordFunc              func(ctx context.Context, attempt *models.LoginAttempt) error
	CountRecentFailuresFunc func(ctx context.Context, email string, since time.Time) (int, error)

	Recorded []*models.LoginAttempt
}

func (m *MockLoginAttemptStore) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	m.Recorded = append(m.Recorded, attempt)
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, attempt)
	}
	return nil
}

func (m *MockLoginAttemptStore) CountRecentFailures(ctx context.Context, email string, since time.Time) (int, error) {
	if m.CountRecentFailuresFunc != nil {
		return m.CountRecentFailuresFunc(ctx, email, since)
	}
	return 0, nil
}

// MockPasswordResetStore implements PasswordResetStore for testing
type MockPasswordResetStore struct {
	CreateFunc           func(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error)
	GetByTokenHashFunc   func(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	MarkUsedFunc         func(ctx context.Context, id string) error
	DeleteForAccountFunc func(ctx context.Context, accountID string) error
}

func (m *MockPasswordResetStore) Create(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, accountID, tokenHash, expiresAt)
	}
	return &models.PasswordResetToken{ID: "reset_123", AccountID: accountID, TokenHash: tokenHash, ExpiresAt: expiresAt}, nil
}

func (m *MockPasswordResetStore) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	if m.GetByTokenHashFunc != nil {
		return m.GetByTokenHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockPasswordResetStore) MarkUsed(ctx context.Context, id string) error {
	if m.MarkUsedFunc != nil {
		return m.MarkUsedFunc(ctx, id)
	}
	return nil
}

func (m *MockPasswordResetStore) DeleteForAccount(ctx context.Context, accountID string) error {
	if m.DeleteForAccountFunc != nil {
		return m.DeleteForAccountFunc(ctx, accountID)
	}
	return nil
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendTwoFactorCodeFunc func(ctx context.Context, email, code string, expiresAt time.Time) DeliveryOutcome
	SendPasswordResetFunc func(ctx context.Context, email, resetLink string, expiresAt time.Time) DeliveryOutcome

	SentCodes []string
	SentLinks []string
}

func (m *MockEmailService) SendTwoFactorCode(ctx context.Context, email, code string, expiresAt time.Time) DeliveryOutcome {
	m.SentCodes = append(m.SentCodes, code)
	if m.SendTwoFactorCodeFunc != nil {
		return m.SendTwoFactorCodeFunc(ctx, email, code, expiresAt)
	}
	return DeliveryOutcome{Status: DeliverySent, MessageID: "msg_123"}
}

func (m *MockEmailService) SendPasswordReset(ctx context.Context, email, resetLink string, expiresAt time.Time) DeliveryOutcome {
	m.SentLinks = append(m.SentLinks, resetLink)
	if m.SendPasswordResetFunc != nil {
		return m.SendPasswordResetFunc(ctx, email, resetLink, expiresAt)
	}
	return DeliveryOutcome{Status: DeliverySent, MessageID: "msg_123"}
}

// MockSecurityLogStore implements SecurityLogStore for testing
type MockSecurityLogStore struct {
	RecordFunc func(ctx context.Context, entry *models.SecurityLog) error
	ListFunc   func(ctx context.Context, filter repositories.SecurityLogFilter) ([]*models.SecurityLog, error)

	Recorded []*models.SecurityLog
}

func (m *MockSecurityLogStore) Record(ctx context.Context, entry *models.SecurityLog) error {
	m.Recorded = append(m.Recorded, entry)
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, entry)
	}
	return nil
}

func (m *MockSecurityLogStore) List(ctx context.Context, filter repositories.SecurityLogFilter) ([]*models.SecurityLog, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []*models.SecurityLog{}, nil
}

// discardLogger returns a logger that drops everything, for tests.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestAuditService wires an AuditService against the given store with a
// silent logger.
func newTestAuditService(store *MockSecurityLogStore) *AuditService {
	log := discardLogger()
	return NewAuditService(store, logger.NewAuditLogger(log), log)
}
