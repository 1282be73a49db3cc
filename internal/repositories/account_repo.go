package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/connectcrm/auth-service/internal/database"
	"github.com/connectcrm/auth-service/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type AccountRepository struct {
	db *database.DB
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// rowScanner interface for scanning account rows (single row or rows iterator)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const accountColumns = `id, email, password_hash, name, role, two_factor_enabled, two_factor_type, two_factor_secret, failed_login_attempts, locked_until, created_at, updated_at`

// scanAccountRow handles nullable fields and populates an Account model
func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var passwordHash, twoFactorType *string

	err := scanner.Scan(
		&account.ID, &account.Email, &passwordHash, &account.Name, &account.Role,
		&account.TwoFactorEnabled, &twoFactorType, &account.TwoFactorSecret,
		&account.FailedLoginAttempts, &account.LockedUntil,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if passwordHash != nil {
		account.PasswordHash = *passwordHash
	}
	if twoFactorType != nil {
		account.TwoFactorType = *twoFactorType
	}

	return &account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	if account.Role == "" {
		account.Role = models.RoleMember
	}

	query := `
		INSERT INTO accounts (id, email, password_hash, name, role, two_factor_enabled, two_factor_type, two_factor_secret, failed_login_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + accountColumns

	var passwordHash, twoFactorType *string
	if account.PasswordHash != "" {
		passwordHash = &account.PasswordHash
	}
	if account.TwoFactorType != "" {
		twoFactorType = &account.TwoFactorType
	}

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query,
		account.ID, account.Email, passwordHash, account.Name, account.Role,
		account.TwoFactorEnabled, twoFactorType, account.TwoFactorSecret,
		account.FailedLoginAttempts, account.CreatedAt, account.UpdatedAt,
	))
}

// RegisterFailedAttempt increments the account's failed-attempt counter and,
// when the counter reaches maxAttempts, starts a lockout window and resets
// the counter to zero. The whole step is a single UPDATE so two concurrent
// wrong-password submissions cannot interleave an increment and a reset.
// Returns the new counter value and the lockout expiry, if one was set.
func (r *AccountRepository) RegisterFailedAttempt(ctx context.Context, id string, maxAttempts int, lockout time.Duration) (int, *time.Time, error) {
	query := `
		UPDATE accounts SET
			failed_login_attempts = CASE
				WHEN failed_login_attempts + 1 >= $2 THEN 0
				ELSE failed_login_attempts + 1
			END,
			locked_until = CASE
				WHEN failed_login_attempts + 1 >= $2 THEN NOW() + $3::interval
				ELSE locked_until
			END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING failed_login_attempts, locked_until
	`

	interval := fmt.Sprintf("%d seconds", int(lockout.Seconds()))

	var attempts int
	var lockedUntil *time.Time
	err := r.db.Pool.QueryRow(ctx, query, id, maxAttempts, interval).Scan(&attempts, &lockedUntil)
	if err != nil {
		return 0, nil, database.MapPostgresError(err)
	}

	return attempts, lockedUntil, nil
}

// ClearLockout resets the failed-attempt counter and removes any lockout.
// Called on every successful authentication.
func (r *AccountRepository) ClearLockout(ctx context.Context, id string) error {
	query := `
		UPDATE accounts SET failed_login_attempts = 0, locked_until = NULL, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetTwoFactor updates the two-factor state of an account. Passing
// enabled=false clears the channel type and secret as well.
func (r *AccountRepository) SetTwoFactor(ctx context.Context, id string, enabled bool, channelType string, secret *string) error {
	var typePtr *string
	if enabled && channelType != "" {
		typePtr = &channelType
	}
	if !enabled {
		secret = nil
	}

	query := `
		UPDATE accounts SET two_factor_enabled = $2, two_factor_type = $3, two_factor_secret = $4, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, id, enabled, typePtr, secret)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// StageTOTPSecret stores a generated authenticator secret without enabling
// two-factor. The secret only takes effect once setup is confirmed with a
// valid code and SetTwoFactor flips the enabled flag.
func (r *AccountRepository) StageTOTPSecret(ctx context.Context, id, secret string) error {
	query := `UPDATE accounts SET two_factor_secret = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id, secret)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the stored hash. Used by the reset flow.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE accounts SET password_hash = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	return scanAccountRows(rows)
}

func scanAccountRows(rows pgx.Rows) ([]*models.Account, error) {
	defer rows.Close()

	accounts := make([]*models.Account, 0)

	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return accounts, nil
}
