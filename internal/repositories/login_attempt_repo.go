package repositories

import (
	"context"
	"time"

	"github.com/connectcrm/auth-service/internal/database"
	"github.com/connectcrm/auth-service/internal/models"
)

// LoginAttemptRepository handles the append-only login attempt audit table
type LoginAttemptRepository struct {
	db *database.DB
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// Record inserts one attempt row. Rows are never updated or deleted by the
// auth flow; only the background cleanup prunes old ones.
func (r *LoginAttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (email, account_id, ip_address, user_agent, success)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.Email,
		attempt.AccountID,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.Success,
	)

	return err
}

// CountRecentFailures returns failed attempts for an email since the given
// time. This backs the sliding-window throttle, which runs against the raw
// email string so attempts on unknown addresses are counted too.
func (r *LoginAttemptRepository) CountRecentFailures(ctx context.Context, email string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE email = $1 AND success = false AND attempted_at >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, email, since).Scan(&count)
	return count, err
}

// DeleteOlderThan prunes attempts outside any throttle window.
func (r *LoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM login_attempts WHERE attempted_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
