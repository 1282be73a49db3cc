package repositories

import (
	"context"
	"fmt"

	"github.com/connectcrm/auth-service/internal/database"
	"github.com/connectcrm/auth-service/internal/models"
)

// SecurityLogRepository handles the append-only security audit table
type SecurityLogRepository struct {
	db *database.DB
}

func NewSecurityLogRepository(db *database.DB) *SecurityLogRepository {
	return &SecurityLogRepository{db: db}
}

func (r *SecurityLogRepository) Record(ctx context.Context, entry *models.SecurityLog) error {
	query := `
		INSERT INTO security_logs (account_id, event_type, description, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		entry.AccountID,
		entry.EventType,
		entry.Description,
		entry.IPAddress,
		entry.UserAgent,
	)

	return err
}

// SecurityLogFilter narrows the admin listing. Zero values mean no filter.
type SecurityLogFilter struct {
	EventType string
	AccountID string
	Limit     int
	Offset    int
}

// List returns audit entries newest-first, optionally filtered by event type
// and account.
func (r *SecurityLogRepository) List(ctx context.Context, filter SecurityLogFilter) ([]*models.SecurityLog, error) {
	query := `
		SELECT id, account_id, event_type, description, ip_address, user_agent, created_at
		FROM security_logs
		WHERE ($1 = '' OR event_type = $1)
		  AND ($2 = '' OR account_id = $2::uuid)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.db.Pool.Query(ctx, query, filter.EventType, filter.AccountID, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query security logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.SecurityLog, 0)

	for rows.Next() {
		var entry models.SecurityLog
		var description *string

		err := rows.Scan(
			&entry.ID, &entry.AccountID, &entry.EventType, &description,
			&entry.IPAddress, &entry.UserAgent, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security log: %w", err)
		}

		if description != nil {
			entry.Description = *description
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}
