package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/connectcrm/auth-service/internal/config"
	"github.com/connectcrm/auth-service/internal/models"
	pkgauth "github.com/connectcrm/auth-service/pkg/auth"
	"github.com/connectcrm/auth-service/pkg/logger"
)

// PasswordResetStore is the token persistence surface the reset flow needs.
type PasswordResetStore interface {
	Create(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	MarkUsed(ctx context.Context, id string) error
	DeleteForAccount(ctx context.Context, accountID string) error
}

// PasswordResetService handles the forgot-password flow. Tokens are random
// 256-bit values delivered by email; only their SHA-256 hash is stored, so a
// database leak does not expose usable reset links.
type PasswordResetService struct {
	accounts AccountStore
	tokens   PasswordResetStore
	codes    EmailCodeStore
	email    EmailService
	audit    *AuditService
	cfg      config.AuthConfig
	baseURL  string
	logger   *slog.Logger
}

func NewPasswordResetService(
	accounts AccountStore,
	tokens PasswordResetStore,
	codes EmailCodeStore,
	email EmailService,
	audit *AuditService,
	cfg config.AuthConfig,
	baseURL string,
	log *slog.Logger,
) *PasswordResetService {
	return &PasswordResetService{
		accounts: accounts,
		tokens:   tokens,
		codes:    codes,
		email:    email,
		audit:    audit,
		cfg:      cfg,
		baseURL:  baseURL,
		logger:   log,
	}
}

// RequestReset starts a reset for the given address. Unknown addresses are
// treated exactly like known ones from the caller's perspective so the
// endpoint cannot be used to probe which emails have accounts.
func (s *PasswordResetService) RequestReset(ctx context.Context, email, ipAddress, userAgent string) error {
	email = NormalizeEmail(email)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown address",
				slog.String("email", logger.SanitizedEmail(email)))
			return nil
		}
		return err
	}

	token, tokenHash, err := generateResetToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	// One active token per account.
	if err := s.tokens.DeleteForAccount(ctx, account.ID); err != nil {
		return err
	}

	expiresAt := time.Now().Add(s.cfg.ResetTokenExpiry)
	if _, err := s.tokens.Create(ctx, account.ID, tokenHash, expiresAt); err != nil {
		return err
	}

	resetLink := fmt.Sprintf("%s/auth/reset-password?token=%s", s.baseURL, token)

	outcome := s.email.SendPasswordReset(ctx, account.Email, resetLink, expiresAt)
	if outcome.Status == DeliveryFailed {
		s.logger.Error("password reset email delivery failed",
			slog.String("email", logger.SanitizedEmail(account.Email)),
			slog.String("reason", outcome.Reason))
	}

	s.audit.RecordEvent(ctx, models.SecurityEventPasswordResetRequested, account.ID,
		"password reset requested", ipAddress, userAgent)

	return nil
}

// CompleteReset sets a new password for the account the token belongs to.
// The token is single-use and any pending lockout is cleared, since proving
// mailbox control supersedes the failed-attempt counter.
func (s *PasswordResetService) CompleteReset(ctx context.Context, token, newPassword, ipAddress, userAgent string) error {
	hash := sha256.Sum256([]byte(token))
	tokenHash := hex.EncodeToString(hash[:])

	record, err := s.tokens.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		return err
	}

	if !record.IsValid() {
		return models.ErrUnauthorized
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	passwordHash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.accounts.UpdatePassword(ctx, record.AccountID, passwordHash); err != nil {
		return err
	}

	// Consume the token before the convenience steps; if MarkUsed reports
	// the token already spent, a concurrent reset won the race.
	if err := s.tokens.MarkUsed(ctx, record.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		return err
	}

	if err := s.accounts.ClearLockout(ctx, record.AccountID); err != nil {
		s.logger.Error("failed to clear lockout after password reset",
			slog.String("account_id", record.AccountID),
			slog.Any("error", err))
	}
	if err := s.codes.InvalidateForAccount(ctx, record.AccountID); err != nil {
		s.logger.Error("failed to retire codes after password reset",
			slog.String("account_id", record.AccountID),
			slog.Any("error", err))
	}

	s.audit.RecordEvent(ctx, models.SecurityEventPasswordResetCompleted, record.AccountID,
		"password reset completed", ipAddress, userAgent)

	return nil
}

// generateResetToken returns the url-safe token for the email link and the
// hex SHA-256 hash that goes to the database.
func generateResetToken() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}

	token := base64.RawURLEncoding.EncodeToString(raw)

	hash := sha256.Sum256([]byte(token))
	return token, hex.EncodeToString(hash[:]), nil
}
