package models

import (
	"time"
)

// Account roles
const (
	RoleAdmin  = "admin"
	RoleLead   = "lead"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// Two-factor channel types
const (
	TwoFactorTypeEmail = "email"
	TwoFactorTypeTOTP  = "totp"
)

type Account struct {
	ID                  string
	Email               string
	PasswordHash        string
	Name                string
	Role                string // admin, lead, member, viewer
	TwoFactorEnabled    bool
	TwoFactorType       string  // "email" or "totp"; empty when 2FA is off
	TwoFactorSecret     *string // TOTP secret, nil for email-based 2FA
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsLocked reports whether the account is inside a lockout window.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// ValidRole reports whether the given role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleLead, RoleMember, RoleViewer:
		return true
	}
	return false
}
