package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/connectcrm/auth-service/internal/auth"
	"github.com/connectcrm/auth-service/internal/config"
	"github.com/connectcrm/auth-service/internal/models"
	pkgauth "github.com/connectcrm/auth-service/pkg/auth"
	"github.com/connectcrm/auth-service/pkg/logger"
)

// resendCooldown is the minimum gap between consecutive code emails for the
// same account.
const resendCooldown = 60 * time.Second

// AccountStore is the account persistence surface the services need.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	RegisterFailedAttempt(ctx context.Context, id string, maxAttempts int, lockout time.Duration) (int, *time.Time, error)
	ClearLockout(ctx context.Context, id string) error
	SetTwoFactor(ctx context.Context, id string, enabled bool, channelType string, secret *string) error
	StageTOTPSecret(ctx context.Context, id, secret string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// EmailCodeStore is the code persistence surface the challenge service needs.
type EmailCodeStore interface {
	Issue(ctx context.Context, accountID, code, purpose string, expiresAt time.Time) (*models.EmailTwoFactorCode, error)
	GetForVerification(ctx context.Context, id, accountID string) (*models.EmailTwoFactorCode, error)
	GetLatestValid(ctx context.Context, accountID string) (*models.EmailTwoFactorCode, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
	MarkUsed(ctx context.Context, id string) error
	InvalidateForAccount(ctx context.Context, accountID string) error
}

// ChallengeService manages the second authentication factor: issuing and
// verifying emailed codes, authenticator-app setup, and disabling.
type ChallengeService struct {
	accounts AccountStore
	codes    EmailCodeStore
	email    EmailService
	totp     *auth.TOTPManager
	audit    *AuditService
	cfg      config.TwoFactorConfig
	logger   *slog.Logger
}

func NewChallengeService(
	accounts AccountStore,
	codes EmailCodeStore,
	email EmailService,
	totp *auth.TOTPManager,
	audit *AuditService,
	cfg config.TwoFactorConfig,
	log *slog.Logger,
) *ChallengeService {
	return &ChallengeService{
		accounts: accounts,
		codes:    codes,
		email:    email,
		totp:     totp,
		audit:    audit,
		cfg:      cfg,
		logger:   log,
	}
}

// IssueCode generates a fresh code for the account and emails it. Issuing
// retires every previously issued unused code, so at most one code can
// complete a challenge at any moment. Returns ErrTooManyAttempts when a code
// was already sent within the cooldown.
func (s *ChallengeService) IssueCode(ctx context.Context, account *models.Account, purpose string) (*models.EmailTwoFactorCode, DeliveryOutcome, error) {
	if latest, err := s.codes.GetLatestValid(ctx, account.ID); err == nil {
		if time.Since(latest.CreatedAt) < resendCooldown {
			return nil, DeliveryOutcome{}, models.ErrTooManyAttempts
		}
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, DeliveryOutcome{}, err
	}

	code, err := generateNumericCode(s.cfg.CodeLength)
	if err != nil {
		return nil, DeliveryOutcome{}, fmt.Errorf("failed to generate code: %w", err)
	}

	expiresAt := time.Now().Add(s.cfg.CodeExpiry)

	issued, err := s.codes.Issue(ctx, account.ID, code, purpose, expiresAt)
	if err != nil {
		return nil, DeliveryOutcome{}, err
	}

	outcome := s.email.SendTwoFactorCode(ctx, account.Email, code, expiresAt)

	switch outcome.Status {
	case DeliveryFailed:
		s.logger.Error("two-factor code delivery failed",
			slog.String("email", logger.SanitizedEmail(account.Email)),
			slog.String("reason", outcome.Reason))
	case DeliverySkipped:
		s.logger.Info("two-factor code delivery skipped",
			slog.String("email", logger.SanitizedEmail(account.Email)),
			slog.String("reason", outcome.Reason))
	}

	return issued, outcome, nil
}

// VerifyCode checks a submitted code against a specific issued code.
// Wrong submissions burn an attempt; the code is dead after MaxCodeAttempts
// misses, after expiry, or after one successful use.
func (s *ChallengeService) VerifyCode(ctx context.Context, accountID, codeID, submitted, purpose string) error {
	code, err := s.codes.GetForVerification(ctx, codeID, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrCodeInvalid
		}
		return err
	}

	if code.Purpose != purpose {
		return models.ErrCodeInvalid
	}
	if code.IsExpired(time.Now()) {
		return models.ErrCodeExpired
	}
	if code.IsExhausted(s.cfg.MaxCodeAttempts) {
		return models.ErrCodeExhausted
	}

	if subtle.ConstantTimeCompare([]byte(code.Code), []byte(submitted)) != 1 {
		attempts, err := s.codes.IncrementAttempts(ctx, code.ID)
		if err != nil {
			return err
		}
		if attempts >= s.cfg.MaxCodeAttempts {
			return models.ErrCodeExhausted
		}
		return models.ErrCodeInvalid
	}

	// MarkUsed only succeeds once; a concurrent verification of the same
	// code loses the race and reports the code as invalid.
	if err := s.codes.MarkUsed(ctx, code.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrCodeInvalid
		}
		return err
	}

	return nil
}

// VerifyTOTPCode checks an authenticator-app code for an account.
func (s *ChallengeService) VerifyTOTPCode(ctx context.Context, account *models.Account, submitted string) error {
	if account.TwoFactorSecret == nil || *account.TwoFactorSecret == "" {
		return models.ErrCodeInvalid
	}

	valid, err := s.totp.ValidateTOTP(*account.TwoFactorSecret, submitted)
	if err != nil {
		return err
	}
	if !valid {
		return models.ErrCodeInvalid
	}
	return nil
}

// BeginEmailSetup starts email-based two-factor enrollment by sending a
// setup-purpose code to the account's address.
func (s *ChallengeService) BeginEmailSetup(ctx context.Context, account *models.Account, ipAddress, userAgent string) (*models.EmailTwoFactorCode, DeliveryOutcome, error) {
	if account.TwoFactorEnabled {
		return nil, DeliveryOutcome{}, models.ErrTwoFactorEnabled
	}

	code, outcome, err := s.IssueCode(ctx, account, models.ChallengePurposeSetup)
	if err != nil {
		return nil, outcome, err
	}

	s.audit.RecordEvent(ctx, models.SecurityEventTwoFactorSetupStarted, account.ID,
		"email two-factor setup started", ipAddress, userAgent)

	return code, outcome, nil
}

// ConfirmEmailSetup completes email enrollment once the setup code checks out.
func (s *ChallengeService) ConfirmEmailSetup(ctx context.Context, account *models.Account, codeID, submitted, ipAddress, userAgent string) error {
	if account.TwoFactorEnabled {
		return models.ErrTwoFactorEnabled
	}

	if err := s.VerifyCode(ctx, account.ID, codeID, submitted, models.ChallengePurposeSetup); err != nil {
		return err
	}

	if err := s.accounts.SetTwoFactor(ctx, account.ID, true, models.TwoFactorTypeEmail, nil); err != nil {
		return err
	}

	s.audit.RecordEvent(ctx, models.SecurityEventTwoFactorEnabled, account.ID,
		"two-factor enabled (email)", ipAddress, userAgent)

	return nil
}

// BeginTOTPSetup generates an authenticator secret for the account and
// returns it with a provisioning QR code. The secret is staged on the
// account but two-factor stays off until ConfirmTOTPSetup.
func (s *ChallengeService) BeginTOTPSetup(ctx context.Context, account *models.Account, ipAddress, userAgent string) (string, string, error) {
	if account.TwoFactorEnabled {
		return "", "", models.ErrTwoFactorEnabled
	}

	secret, qrDataURL, err := s.totp.GenerateSecretWithQR(account.Email)
	if err != nil {
		return "", "", err
	}

	if err := s.accounts.StageTOTPSecret(ctx, account.ID, secret); err != nil {
		return "", "", err
	}

	s.audit.RecordEvent(ctx, models.SecurityEventTwoFactorSetupStarted, account.ID,
		"authenticator two-factor setup started", ipAddress, userAgent)

	return secret, qrDataURL, nil
}

// ConfirmTOTPSetup completes authenticator enrollment by validating one code
// against the staged secret.
func (s *ChallengeService) ConfirmTOTPSetup(ctx context.Context, account *models.Account, submitted, ipAddress, userAgent string) error {
	if account.TwoFactorEnabled {
		return models.ErrTwoFactorEnabled
	}

	if err := s.VerifyTOTPCode(ctx, account, submitted); err != nil {
		return err
	}

	if err := s.accounts.SetTwoFactor(ctx, account.ID, true, models.TwoFactorTypeTOTP, account.TwoFactorSecret); err != nil {
		return err
	}

	s.audit.RecordEvent(ctx, models.SecurityEventTwoFactorEnabled, account.ID,
		"two-factor enabled (authenticator)", ipAddress, userAgent)

	return nil
}

// Disable turns two-factor off after re-confirming the account password.
// Every outstanding code is retired so nothing issued before the disable can
// be redeemed afterwards.
func (s *ChallengeService) Disable(ctx context.Context, account *models.Account, password, ipAddress, userAgent string) error {
	if !account.TwoFactorEnabled {
		return models.ErrTwoFactorOff
	}

	if pkgauth.VerifyPassword(account.PasswordHash, password) != pkgauth.VerifyMatched {
		return models.ErrUnauthorized
	}

	if err := s.accounts.SetTwoFactor(ctx, account.ID, false, "", nil); err != nil {
		return err
	}

	if err := s.codes.InvalidateForAccount(ctx, account.ID); err != nil {
		return err
	}

	s.audit.RecordEvent(ctx, models.SecurityEventTwoFactorDisabled, account.ID,
		"two-factor disabled", ipAddress, userAgent)

	return nil
}

// generateNumericCode returns a random numeric string of the given length,
// left-padded with zeros. crypto/rand keeps codes unpredictable.
func generateNumericCode(length int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)

	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", length, n), nil
}
