package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/connectcrm/auth-service/internal/database"
	"github.com/connectcrm/auth-service/internal/models"
	"github.com/jackc/pgx/v5"
)

// EmailCodeRepository handles email two-factor code data access
type EmailCodeRepository struct {
	db *database.DB
}

func NewEmailCodeRepository(db *database.DB) *EmailCodeRepository {
	return &EmailCodeRepository{db: db}
}

const emailCodeColumns = `id, account_id, code, purpose, created_at, expires_at, attempts, used`

func scanCodeRow(row rowScanner) (*models.EmailTwoFactorCode, error) {
	var code models.EmailTwoFactorCode

	err := row.Scan(
		&code.ID, &code.AccountID, &code.Code, &code.Purpose,
		&code.CreatedAt, &code.ExpiresAt, &code.Attempts, &code.Used,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &code, nil
}

// Issue marks every unused code for the account as used and inserts the new
// one, inside a single transaction. This keeps the at-most-one-valid-code
// invariant even when two issue requests race.
func (r *EmailCodeRepository) Issue(ctx context.Context, accountID, code, purpose string, expiresAt time.Time) (*models.EmailTwoFactorCode, error) {
	var issued *models.EmailTwoFactorCode

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE email_two_factor_codes SET used = TRUE WHERE account_id = $1 AND used = FALSE`,
			accountID,
		)
		if err != nil {
			return fmt.Errorf("failed to invalidate prior codes: %w", err)
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO email_two_factor_codes (account_id, code, purpose, expires_at)
			VALUES ($1, $2, $3, $4)
			RETURNING `+emailCodeColumns,
			accountID, code, purpose, expiresAt,
		)

		issued, err = scanCodeRow(row)
		if err != nil {
			return fmt.Errorf("failed to insert code: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return issued, nil
}

// GetForVerification fetches a specific unused code row belonging to the
// account. Used, missing, and foreign rows all come back as ErrNotFound so
// the caller treats them uniformly as "request a new code".
func (r *EmailCodeRepository) GetForVerification(ctx context.Context, id, accountID string) (*models.EmailTwoFactorCode, error) {
	query := `
		SELECT ` + emailCodeColumns + `
		FROM email_two_factor_codes
		WHERE id = $1 AND account_id = $2 AND used = FALSE
	`

	return scanCodeRow(r.db.Pool.QueryRow(ctx, query, id, accountID))
}

// GetLatestValid returns the most recent unused, unexpired code for an account.
func (r *EmailCodeRepository) GetLatestValid(ctx context.Context, accountID string) (*models.EmailTwoFactorCode, error) {
	query := `
		SELECT ` + emailCodeColumns + `
		FROM email_two_factor_codes
		WHERE account_id = $1 AND used = FALSE AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1
	`

	return scanCodeRow(r.db.Pool.QueryRow(ctx, query, accountID))
}

// IncrementAttempts bumps the attempt counter on a mismatch and returns the
// new count so the caller can tell the user when the code is exhausted.
func (r *EmailCodeRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE email_two_factor_codes SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`

	var attempts int
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(&attempts)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return attempts, nil
}

// MarkUsed consumes a code. The used = FALSE guard makes consumption
// idempotent: a second verification of the same code reports ErrNotFound.
func (r *EmailCodeRepository) MarkUsed(ctx context.Context, id string) error {
	query := `UPDATE email_two_factor_codes SET used = TRUE WHERE id = $1 AND used = FALSE`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// InvalidateForAccount retires every unused code for an account. Called when
// two-factor is disabled.
func (r *EmailCodeRepository) InvalidateForAccount(ctx context.Context, accountID string) error {
	query := `UPDATE email_two_factor_codes SET used = TRUE WHERE account_id = $1 AND used = FALSE`

	_, err := r.db.Pool.Exec(ctx, query, accountID)
	return err
}

// DeleteExpired prunes code rows past their expiry plus a retention margin.
func (r *EmailCodeRepository) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	interval := fmt.Sprintf("%d seconds", int(retention.Seconds()))
	query := `DELETE FROM email_two_factor_codes WHERE expires_at < NOW() - $1::interval`

	result, err := r.db.Pool.Exec(ctx, query, interval)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired codes: %w", err)
	}
	return result.RowsAffected(), nil
}
