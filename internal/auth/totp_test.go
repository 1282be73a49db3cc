package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTOTPManager_GenerateSecretWithQR_Success(t *testing.T) {
	tm := NewTOTPManager("CONNECT+ CRM")

	secret, qrCode, err := tm.GenerateSecretWithQR("user@example.com")

	assert.NoError(t, err)
	assert.NotEmpty(t, secret)
	assert.True(t, strings.HasPrefix(qrCode, "data:image/png;base64,"))
}

func TestTOTPManager_GenerateSecretWithQR_UniqueSecrets(t *testing.T) {
	tm := NewTOTPManager("CONNECT+ CRM")

	first, _, err := tm.GenerateSecretWithQR("user@example.com")
	require.NoError(t, err)
	second, _, err := tm.GenerateSecretWithQR("user@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTOTPManager_ValidateTOTP_CorrectCode(t *testing.T) {
	tm := NewTOTPManager("CONNECT+ CRM")

	secret, _, err := tm.GenerateSecretWithQR("user@example.com")
	require.NoError(t, err)

	code, err := totp.GenerateCodeCustom(secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)

	valid, err := tm.ValidateTOTP(secret, code)
	assert.NoError(t, err)
	assert.True(t, valid)
}

func TestTOTPManager_ValidateTOTP_WrongCode(t *testing.T) {
	tm := NewTOTPManager("CONNECT+ CRM")

	secret, _, err := tm.GenerateSecretWithQR("user@example.com")
	require.NoError(t, err)

	valid, err := tm.ValidateTOTP(secret, "000000")
	assert.NoError(t, err)
	assert.False(t, valid)
}

func TestTOTPManager_ValidateTOTP_ClockDrift(t *testing.T) {
	tm := NewTOTPManager("CONNECT+ CRM")

	secret, _, err := tm.GenerateSecretWithQR("user@example.com")
	require.NoError(t, err)

	// A code from the previous time step is still accepted (skew = 1)
	code, err := totp.GenerateCodeCustom(secret, time.Now().Add(-30*time.Second), totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)

	valid, err := tm.ValidateTOTP(secret, code)
	assert.NoError(t, err)
	assert.True(t, valid)
}
