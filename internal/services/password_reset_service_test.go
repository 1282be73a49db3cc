package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/connectcrm/auth-service/internal/models"
	pkgauth "github.com/connectcrm/auth-service/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResetFixture(accounts *MockAccountStore, tokens *MockPasswordResetStore, codes *MockEmailCodeStore, email *MockEmailService) (*PasswordResetService, *MockSecurityLogStore) {
	logs := &MockSecurityLogStore{}
	svc := NewPasswordResetService(
		accounts, tokens, codes, email,
		newTestAuditService(logs),
		testAuthConfig(),
		"http://localhost:8080",
		discardLogger(),
	)
	return svc, logs
}

func TestPasswordResetService_RequestReset_SendsHashedToken(t *testing.T) {
	accounts := &MockAccountStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return &models.Account{ID: "acct_1", Email: email}, nil
		},
	}

	var storedHash string
	tokens := &MockPasswordResetStore{
		CreateFunc: func(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error) {
			storedHash = tokenHash
			assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, 2*time.Second)
			return &models.PasswordResetToken{ID: "reset_1", AccountID: accountID, TokenHash: tokenHash, ExpiresAt: expiresAt}, nil
		},
	}
	email := &MockEmailService{}

	svc, logs := newResetFixture(accounts, tokens, &MockEmailCodeStore{}, email)

	err := svc.RequestReset(context.Background(), "user@example.com", "1.2.3.4", "ua")
	require.NoError(t, err)

	// The emailed link carries the plain token; the store only sees its hash.
	require.Len(t, email.SentLinks, 1)
	link := email.SentLinks[0]
	idx := strings.Index(link, "token=")
	require.Greater(t, idx, 0)
	plainToken := link[idx+len("token="):]

	hash := sha256.Sum256([]byte(plainToken))
	assert.Equal(t, hex.EncodeToString(hash[:]), storedHash)

	require.Len(t, logs.Recorded, 1)
	assert.Equal(t, models.SecurityEventPasswordResetRequested, logs.Recorded[0].EventType)
}

func TestPasswordResetService_RequestReset_UnknownEmailIsSilent(t *testing.T) {
	email := &MockEmailService{}
	svc, logs := newResetFixture(&MockAccountStore{}, &MockPasswordResetStore{}, &MockEmailCodeStore{}, email)

	err := svc.RequestReset(context.Background(), "nobody@example.com", "1.2.3.4", "ua")

	// No error, no email, no audit row: indistinguishable from success.
	assert.NoError(t, err)
	assert.Empty(t, email.SentLinks)
	assert.Empty(t, logs.Recorded)
}

func TestPasswordResetService_RequestReset_ReplacesPriorToken(t *testing.T) {
	accounts := &MockAccountStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return &models.Account{ID: "acct_1", Email: email}, nil
		},
	}

	deleted := false
	tokens := &MockPasswordResetStore{
		DeleteForAccountFunc: func(ctx context.Context, accountID string) error {
			deleted = true
			return nil
		},
	}

	svc, _ := newResetFixture(accounts, tokens, &MockEmailCodeStore{}, &MockEmailService{})

	err := svc.RequestReset(context.Background(), "user@example.com", "1.2.3.4", "ua")

	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestPasswordResetService_CompleteReset_Success(t *testing.T) {
	token := "some-plain-token"
	hash := sha256.Sum256([]byte(token))

	var newHash string
	accounts := &MockAccountStore{
		UpdatePasswordFunc: func(ctx context.Context, id, passwordHash string) error {
			newHash = passwordHash
			return nil
		},
	}
	tokens := &MockPasswordResetStore{
		GetByTokenHashFunc: func(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
			assert.Equal(t, hex.EncodeToString(hash[:]), tokenHash)
			return &models.PasswordResetToken{
				ID:        "reset_1",
				AccountID: "acct_1",
				TokenHash: tokenHash,
				ExpiresAt: time.Now().Add(1 * time.Hour),
			}, nil
		},
	}
	codesInvalidated := false
	codes := &MockEmailCodeStore{
		InvalidateForAccountFunc: func(ctx context.Context, accountID string) error {
			codesInvalidated = true
			return nil
		},
	}

	svc, logs := newResetFixture(accounts, tokens, codes, &MockEmailService{})

	err := svc.CompleteReset(context.Background(), token, "Str0ng-Passw0rd!", "1.2.3.4", "ua")

	require.NoError(t, err)
	assert.Equal(t, pkgauth.VerifyMatched, pkgauth.VerifyPassword(newHash, "Str0ng-Passw0rd!"))
	assert.True(t, codesInvalidated)
	require.Len(t, logs.Recorded, 1)
	assert.Equal(t, models.SecurityEventPasswordResetCompleted, logs.Recorded[0].EventType)
}

func TestPasswordResetService_CompleteReset_ExpiredToken(t *testing.T) {
	tokens := &MockPasswordResetStore{
		GetByTokenHashFunc: func(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
			return &models.PasswordResetToken{
				ID:        "reset_1",
				AccountID: "acct_1",
				ExpiresAt: time.Now().Add(-1 * time.Minute),
			}, nil
		},
	}

	svc, _ := newResetFixture(&MockAccountStore{}, tokens, &MockEmailCodeStore{}, &MockEmailService{})

	err := svc.CompleteReset(context.Background(), "token", "Str0ng-Passw0rd!", "1.2.3.4", "ua")

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestPasswordResetService_CompleteReset_UsedToken(t *testing.T) {
	usedAt := time.Now().Add(-5 * time.Minute)
	tokens := &MockPasswordResetStore{
		GetByTokenHashFunc: func(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
			return &models.PasswordResetToken{
				ID:        "reset_1",
				AccountID: "acct_1",
				ExpiresAt: time.Now().Add(1 * time.Hour),
				UsedAt:    &usedAt,
			}, nil
		},
	}

	svc, _ := newResetFixture(&MockAccountStore{}, tokens, &MockEmailCodeStore{}, &MockEmailService{})

	err := svc.CompleteReset(context.Background(), "token", "Str0ng-Passw0rd!", "1.2.3.4", "ua")

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestPasswordResetService_CompleteReset_UnknownToken(t *testing.T) {
	svc, _ := newResetFixture(&MockAccountStore{}, &MockPasswordResetStore{}, &MockEmailCodeStore{}, &MockEmailService{})

	err := svc.CompleteReset(context.Background(), "bogus", "Str0ng-Passw0rd!", "1.2.3.4", "ua")

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestPasswordResetService_CompleteReset_WeakPasswordRejected(t *testing.T) {
	tokens := &MockPasswordResetStore{
		GetByTokenHashFunc: func(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
			return &models.PasswordResetToken{
				ID:        "reset_1",
				AccountID: "acct_1",
				ExpiresAt: time.Now().Add(1 * time.Hour),
			}, nil
		},
	}

	svc, _ := newResetFixture(&MockAccountStore{}, tokens, &MockEmailCodeStore{}, &MockEmailService{})

	err := svc.CompleteReset(context.Background(), "token", "weak", "1.2.3.4", "ua")

	assert.Error(t, err)
}
