package models

import "time"

// Event types for the security audit log
const (
	SecurityEventLogin                  = "login"
	SecurityEventLogout                 = "logout"
	SecurityEventAccountLocked          = "account_locked"
	SecurityEventPasswordResetRequested = "password_reset_requested"
	SecurityEventPasswordResetCompleted = "password_reset_completed"
	SecurityEventTwoFactorEnabled       = "2fa_enabled"
	SecurityEventTwoFactorDisabled      = "2fa_disabled"
	SecurityEventTwoFactorSetupStarted  = "2fa_setup_initiated"
	SecurityEventBackupCompleted        = "backup_completed"
)

// SecurityLog is an immutable record of a security-relevant event.
// Rows are written once and never updated or deleted by the service.
type SecurityLog struct {
	ID          string    `db:"id" json:"id"`
	AccountID   *string   `db:"account_id" json:"account_id,omitempty"`
	EventType   string    `db:"event_type" json:"event_type"`
	Description string    `db:"description" json:"description"`
	IPAddress   *string   `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent   *string   `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
