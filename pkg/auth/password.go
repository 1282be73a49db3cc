package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12
	MinPasswordLen = 8
	MaxPasswordLen = 128
)

// VerifyResult is the outcome of comparing a password against a stored hash.
// UnsupportedScheme covers hashes written by a scheme this runtime cannot
// verify (legacy imports); callers treat it like Mismatched but it stays
// distinguishable for logging and migration.
type VerifyResult int

const (
	VerifyMismatched VerifyResult = iota
	VerifyMatched
	VerifyUnsupportedScheme
)

func (v VerifyResult) String() string {
	switch v {
	case VerifyMatched:
		return "matched"
	case VerifyMismatched:
		return "mismatched"
	case VerifyUnsupportedScheme:
		return "unsupported_scheme"
	default:
		return "unknown"
	}
}

// PasswordValidationError holds validation error details (internal use only)
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return "invalid password: " + strings.Join(e.Errors, "; ")
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// VerifyPassword compares a candidate password to the stored hash.
// A hash the runtime cannot parse never grants access and never produces
// an error - it is reported as VerifyUnsupportedScheme.
func VerifyPassword(storedHash, password string) VerifyResult {
	if storedHash == "" || password == "" {
		return VerifyMismatched
	}

	// bcrypt hashes carry a $2a/$2b/$2y prefix; anything else is a legacy
	// scheme this runtime does not verify.
	if !strings.HasPrefix(storedHash, "$2") {
		return VerifyUnsupportedScheme
	}

	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password))
	switch {
	case err == nil:
		return VerifyMatched
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return VerifyMismatched
	default:
		// Malformed hash, truncated hash, unknown cost - not verifiable.
		return VerifyUnsupportedScheme
	}
}

// ValidatePassword enforces the password policy: minimum length plus
// uppercase, lowercase, digit, and special character requirements.
func ValidatePassword(password string) error {
	problems := make([]string, 0)

	if len(password) < MinPasswordLen {
		problems = append(problems, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		problems = append(problems, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSpecial := false

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !hasUpper {
		problems = append(problems, "must contain at least one uppercase letter")
	}
	if !hasLower {
		problems = append(problems, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		problems = append(problems, "must contain at least one digit")
	}
	if !hasSpecial {
		problems = append(problems, "must contain at least one special character")
	}

	if len(problems) > 0 {
		return &PasswordValidationError{Errors: problems}
	}

	return nil
}
