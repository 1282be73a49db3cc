package models

import (
	"time"
)

// Challenge purposes. A login-purpose code completes a pending login;
// a setup-purpose code enables two-factor for an authenticated account.
const (
	ChallengePurposeLogin = "login"
	ChallengePurposeSetup = "setup"
)

// EmailTwoFactorCode is an ephemeral numeric challenge delivered over email.
// Codes are strings, not integers, to preserve leading zeros.
type EmailTwoFactorCode struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Code      string    `json:"-"` // never serialized
	Purpose   string    `json:"purpose"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
	Used      bool      `json:"used"`
}

// IsExpired checks if the code has passed its expiry timestamp.
func (c *EmailTwoFactorCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// IsExhausted checks if the code has run out of verification attempts.
func (c *EmailTwoFactorCode) IsExhausted(maxAttempts int) bool {
	return c.Attempts >= maxAttempts
}

// IsValid checks if the code can still be consulted for verification.
func (c *EmailTwoFactorCode) IsValid(now time.Time, maxAttempts int) bool {
	return !c.Used && !c.IsExpired(now) && !c.IsExhausted(maxAttempts)
}
