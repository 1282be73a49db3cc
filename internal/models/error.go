package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authorization outcomes - ordinary negative results, never panics
	ErrAccountLocked    = errors.New("account is temporarily locked")
	ErrTooManyAttempts  = errors.New("too many failed login attempts")
	ErrCodeInvalid      = errors.New("verification code is incorrect")
	ErrCodeExpired      = errors.New("verification code is expired or missing")
	ErrCodeExhausted    = errors.New("verification code attempt limit reached")
	ErrDeliveryFailed   = errors.New("verification code could not be delivered")
	ErrTwoFactorEnabled = errors.New("two-factor authentication is already enabled")
	ErrTwoFactorOff     = errors.New("two-factor authentication is not enabled")
)
