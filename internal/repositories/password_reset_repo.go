package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/connectcrm/auth-service/internal/database"
	"github.com/connectcrm/auth-service/internal/models"
)

// PasswordResetRepository handles password reset token data access
type PasswordResetRepository struct {
	db *database.DB
}

func NewPasswordResetRepository(db *database.DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

const resetTokenColumns = `id, account_id, token_hash, expires_at, used_at, created_at`

func scanResetTokenRow(row rowScanner) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken

	err := row.Scan(
		&token.ID, &token.AccountID, &token.TokenHash,
		&token.ExpiresAt, &token.UsedAt, &token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &token, nil
}

func (r *PasswordResetRepository) Create(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	query := `
		INSERT INTO password_reset_tokens (account_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING ` + resetTokenColumns

	token, err := scanResetTokenRow(r.db.Pool.QueryRow(ctx, query, accountID, tokenHash, expiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create password reset token: %w", err)
	}

	return token, nil
}

func (r *PasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	query := `SELECT ` + resetTokenColumns + ` FROM password_reset_tokens WHERE token_hash = $1`

	return scanResetTokenRow(r.db.Pool.QueryRow(ctx, query, tokenHash))
}

// MarkUsed consumes a reset token; single-use is enforced by the used_at guard.
func (r *PasswordResetRepository) MarkUsed(ctx context.Context, id string) error {
	query := `UPDATE password_reset_tokens SET used_at = NOW() WHERE id = $1 AND used_at IS NULL`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark reset token as used: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *PasswordResetRepository) DeleteForAccount(ctx context.Context, accountID string) error {
	query := `DELETE FROM password_reset_tokens WHERE account_id = $1`

	_, err := r.db.Pool.Exec(ctx, query, accountID)
	return err
}

// DeleteExpired prunes tokens well past their expiry.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM password_reset_tokens WHERE expires_at < NOW() - INTERVAL '30 days'`

	result, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired reset tokens: %w", err)
	}
	return result.RowsAffected(), nil
}
