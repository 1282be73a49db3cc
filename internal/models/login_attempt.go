package models

import "time"

// LoginAttempt is an append-only record of a single login POST.
// Email is captured as free text so attempts against unknown addresses
// are recorded without disclosing account existence.
type LoginAttempt struct {
	ID          string    `db:"id"`
	Email       string    `db:"email"`
	AccountID   *string   `db:"account_id"`
	IPAddress   string    `db:"ip_address"`
	UserAgent   string    `db:"user_agent"`
	Success     bool      `db:"success"`
	AttemptedAt time.Time `db:"attempted_at"`
}
