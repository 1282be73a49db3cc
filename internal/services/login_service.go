package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/connectcrm/auth-service/internal/auth"
	"github.com/connectcrm/auth-service/internal/config"
	"github.com/connectcrm/auth-service/internal/models"
	pkgauth "github.com/connectcrm/auth-service/pkg/auth"
	"github.com/connectcrm/auth-service/pkg/logger"
)

// LoginStatus is the closed set of outcomes a login submission can have.
type LoginStatus int

const (
	// LoginFailed covers unknown email and wrong password alike; callers
	// must not distinguish the two in user-facing responses.
	LoginFailed LoginStatus = iota
	LoginLocked
	LoginThrottled
	LoginSucceeded
	LoginChallengeRequired
)

func (s LoginStatus) String() string {
	switch s {
	case LoginFailed:
		return "failed"
	case LoginLocked:
		return "locked"
	case LoginThrottled:
		return "throttled"
	case LoginSucceeded:
		return "succeeded"
	case LoginChallengeRequired:
		return "challenge_required"
	default:
		return "unknown"
	}
}

// LoginResult carries everything a handler needs to respond to a login
// submission. Only the fields matching Status are populated.
type LoginResult struct {
	Status       LoginStatus
	SessionToken string           // set when Status == LoginSucceeded
	PendingToken string           // set when Status == LoginChallengeRequired
	CodeID       string           // set for email challenges
	Method       string           // "email" or "totp" when a challenge is required
	Delivery     *DeliveryOutcome // set when a code email was attempted
	LockedUntil  *time.Time       // set when Status == LoginLocked
}

// LoginAttemptStore is the attempt-trail surface the login service needs.
type LoginAttemptStore interface {
	Record(ctx context.Context, attempt *models.LoginAttempt) error
	CountRecentFailures(ctx context.Context, email string, since time.Time) (int, error)
}

// LoginService verifies credentials and drives the login flow end to end:
// lockout, sliding-window throttle, password check, and handoff to the
// two-factor challenge when the account requires one.
type LoginService struct {
	accounts  AccountStore
	attempts  LoginAttemptStore
	challenge *ChallengeService
	tokens    *auth.TokenManager
	timing    *auth.TimingDelay
	audit     *AuditService
	cfg       config.AuthConfig
	logger    *slog.Logger
}

func NewLoginService(
	accounts AccountStore,
	attempts LoginAttemptStore,
	challenge *ChallengeService,
	tokens *auth.TokenManager,
	timing *auth.TimingDelay,
	audit *AuditService,
	cfg config.AuthConfig,
	log *slog.Logger,
) *LoginService {
	return &LoginService{
		accounts:  accounts,
		attempts:  attempts,
		challenge: challenge,
		tokens:    tokens,
		timing:    timing,
		audit:     audit,
		cfg:       cfg,
		logger:    log,
	}
}

// Login processes one credential submission. Exactly one login_attempts row
// is written per call, whatever the outcome. The row is marked successful
// only for a fully authenticated login; a password-verified submission that
// still owes a second factor stays a failed row until the code checks out.
func (s *LoginService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*LoginResult, error) {
	start := time.Now()
	email = NormalizeEmail(email)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if errors.Is(err, models.ErrNotFound) {
		account = nil
	}

	now := time.Now()

	if account != nil && account.IsLocked(now) {
		s.recordAttempt(ctx, email, &account.ID, ipAddress, userAgent, false)
		s.timing.WaitFrom(start, false)
		return &LoginResult{Status: LoginLocked, LockedUntil: account.LockedUntil}, nil
	}

	// The window is consulted whether or not the email maps to an account,
	// so hammering a nonexistent address is throttled like a real one.
	failures, err := s.attempts.CountRecentFailures(ctx, email, now.Add(-s.cfg.AttemptWindow))
	if err != nil {
		return nil, err
	}
	if failures >= s.cfg.MaxFailedAttempts {
		var accountID *string
		if account != nil {
			accountID = &account.ID
		}
		s.recordAttempt(ctx, email, accountID, ipAddress, userAgent, false)
		s.timing.WaitFrom(start, false)
		return &LoginResult{Status: LoginThrottled}, nil
	}

	if account == nil {
		// Record against the raw email so attempts on unknown addresses
		// keep feeding the sliding window.
		s.recordAttempt(ctx, email, nil, ipAddress, userAgent, false)
		s.timing.WaitFrom(start, false)
		return &LoginResult{Status: LoginFailed}, nil
	}

	verdict := pkgauth.VerifyPassword(account.PasswordHash, password)
	if verdict != pkgauth.VerifyMatched {
		if verdict == pkgauth.VerifyUnsupportedScheme {
			s.logger.Warn("stored password hash uses an unsupported scheme",
				slog.String("account_id", account.ID))
		}

		s.recordAttempt(ctx, email, &account.ID, ipAddress, userAgent, false)

		_, lockedUntil, err := s.accounts.RegisterFailedAttempt(ctx, account.ID, s.cfg.MaxFailedAttempts, s.cfg.LockoutDuration)
		if err != nil {
			return nil, err
		}

		if lockedUntil != nil && now.Before(*lockedUntil) {
			s.audit.RecordEvent(ctx, models.SecurityEventAccountLocked, account.ID,
				"account locked after repeated failed logins", ipAddress, userAgent)
			s.timing.WaitFrom(start, false)
			return &LoginResult{Status: LoginLocked, LockedUntil: lockedUntil}, nil
		}

		s.timing.WaitFrom(start, false)
		return &LoginResult{Status: LoginFailed}, nil
	}

	// Password is correct from here on. With a second factor pending the
	// attempt is still open: the counter reset, lockout clear, and the
	// successful row all wait for the code to verify.
	if account.TwoFactorEnabled {
		s.recordAttempt(ctx, email, &account.ID, ipAddress, userAgent, false)
		return s.beginChallenge(ctx, account)
	}

	if err := s.accounts.ClearLockout(ctx, account.ID); err != nil {
		return nil, err
	}
	s.recordAttempt(ctx, email, &account.ID, ipAddress, userAgent, true)

	sessionToken, err := s.tokens.IssueSession(account.ID, account.Email, account.Role)
	if err != nil {
		return nil, err
	}

	s.audit.RecordEvent(ctx, models.SecurityEventLogin, account.ID,
		"login successful", ipAddress, userAgent)

	return &LoginResult{Status: LoginSucceeded, SessionToken: sessionToken}, nil
}

// beginChallenge issues the second-factor challenge for the account's
// configured channel and returns the pending-login token.
func (s *LoginService) beginChallenge(ctx context.Context, account *models.Account) (*LoginResult, error) {
	switch account.TwoFactorType {
	case models.TwoFactorTypeTOTP:
		pendingToken, err := s.tokens.IssuePendingLogin(account.ID, account.Email, "", models.TwoFactorTypeTOTP)
		if err != nil {
			return nil, err
		}

		return &LoginResult{
			Status:       LoginChallengeRequired,
			PendingToken: pendingToken,
			Method:       models.TwoFactorTypeTOTP,
		}, nil

	default:
		code, outcome, err := s.challenge.IssueCode(ctx, account, models.ChallengePurposeLogin)
		if err != nil {
			if errors.Is(err, models.ErrTooManyAttempts) {
				// A fresh code exists from moments ago; reuse it so a
				// double submission does not burn the cooldown.
				latest, lookupErr := s.challenge.codes.GetLatestValid(ctx, account.ID)
				if lookupErr != nil {
					return nil, err
				}
				code, outcome = latest, DeliveryOutcome{Status: DeliverySkipped, Reason: "code recently sent"}
			} else {
				return nil, err
			}
		}

		pendingToken, err := s.tokens.IssuePendingLogin(account.ID, account.Email, code.ID, models.TwoFactorTypeEmail)
		if err != nil {
			return nil, err
		}

		return &LoginResult{
			Status:       LoginChallengeRequired,
			PendingToken: pendingToken,
			CodeID:       code.ID,
			Method:       models.TwoFactorTypeEmail,
			Delivery:     &outcome,
		}, nil
	}
}

// CompleteChallenge finishes a pending login by verifying the submitted
// second-factor code. On success it mints the session token.
func (s *LoginService) CompleteChallenge(ctx context.Context, claims *auth.PendingLoginClaims, submitted, ipAddress, userAgent string) (*LoginResult, error) {
	account, err := s.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, err
	}

	switch claims.Method {
	case models.TwoFactorTypeTOTP:
		err = s.challenge.VerifyTOTPCode(ctx, account, submitted)
	default:
		err = s.challenge.VerifyCode(ctx, account.ID, claims.CodeID, submitted, models.ChallengePurposeLogin)
	}
	if err != nil {
		if errors.Is(err, models.ErrCodeInvalid) || errors.Is(err, models.ErrCodeExhausted) {
			s.recordAttempt(ctx, claims.Email, &account.ID, ipAddress, userAgent, false)
		}
		return nil, err
	}

	// The code matched: the login is authenticated only now, so this is
	// where the counter reset and the successful attempt row land.
	if err := s.accounts.ClearLockout(ctx, account.ID); err != nil {
		return nil, err
	}
	s.recordAttempt(ctx, claims.Email, &account.ID, ipAddress, userAgent, true)

	sessionToken, err := s.tokens.IssueSession(account.ID, account.Email, account.Role)
	if err != nil {
		return nil, err
	}

	s.audit.RecordEvent(ctx, models.SecurityEventLogin, account.ID,
		"login successful (two-factor)", ipAddress, userAgent)

	return &LoginResult{Status: LoginSucceeded, SessionToken: sessionToken}, nil
}

// ResendChallenge issues a fresh code for a pending login and returns the
// new code together with a pending token bound to it. The previous code is
// retired by the issue itself.
func (s *LoginService) ResendChallenge(ctx context.Context, claims *auth.PendingLoginClaims) (*LoginResult, error) {
	if claims.Method != models.TwoFactorTypeEmail {
		return nil, models.ErrBadRequest
	}

	account, err := s.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, err
	}

	code, outcome, err := s.challenge.IssueCode(ctx, account, models.ChallengePurposeLogin)
	if err != nil {
		return nil, err
	}

	pendingToken, err := s.tokens.IssuePendingLogin(account.ID, account.Email, code.ID, models.TwoFactorTypeEmail)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Status:       LoginChallengeRequired,
		PendingToken: pendingToken,
		CodeID:       code.ID,
		Method:       models.TwoFactorTypeEmail,
		Delivery:     &outcome,
	}, nil
}

// Register creates a new account with the default role.
func (s *LoginService) Register(ctx context.Context, email, password, name string) (*models.Account, error) {
	email = NormalizeEmail(email)

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.Create(ctx, &models.Account{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account registered",
		slog.String("account_id", account.ID),
		slog.String("email", logger.SanitizedEmail(account.Email)))

	return account, nil
}

// Logout records the logout in the audit trail. Clearing the cookie is the
// handler's job; tokens themselves are not revocable server-side.
func (s *LoginService) Logout(ctx context.Context, accountID, ipAddress, userAgent string) {
	s.audit.RecordEvent(ctx, models.SecurityEventLogout, accountID,
		"logout", ipAddress, userAgent)
}

func (s *LoginService) recordAttempt(ctx context.Context, email string, accountID *string, ipAddress, userAgent string, success bool) {
	attempt := &models.LoginAttempt{
		Email:     email,
		AccountID: accountID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   success,
	}

	if err := s.attempts.Record(ctx, attempt); err != nil {
		s.logger.Error("failed to record login attempt",
			slog.String("email", logger.SanitizedEmail(email)),
			slog.Any("error", err))
	}
}

// NormalizeEmail lowercases and trims an address so lookups and the
// sliding-window throttle treat case variants as the same identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
