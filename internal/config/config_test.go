package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_LockoutDefaults(t *testing.T) {
	os.Setenv("SESSION_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Auth.MaxFailedAttempts != 5 {
		t.Errorf("MaxFailedAttempts: got %d, want 5", cfg.Auth.MaxFailedAttempts)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"LockoutDuration", cfg.Auth.LockoutDuration, 30 * time.Minute},
		{"AttemptWindow", cfg.Auth.AttemptWindow, 15 * time.Minute},
		{"ResetTokenExpiry", cfg.Auth.ResetTokenExpiry, 24 * time.Hour},
		{"CodeExpiry", cfg.TwoFactor.CodeExpiry, 10 * time.Minute},
		{"PendingExpiry", cfg.TwoFactor.PendingExpiry, 10 * time.Minute},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.TwoFactor.CodeLength != 6 {
		t.Errorf("CodeLength: got %d, want 6", cfg.TwoFactor.CodeLength)
	}
	if cfg.TwoFactor.MaxCodeAttempts != 3 {
		t.Errorf("MaxCodeAttempts: got %d, want 3", cfg.TwoFactor.MaxCodeAttempts)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("SESSION_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("MAX_FAILED_ATTEMPTS", "3")
	os.Setenv("LOCKOUT_DURATION", "1h")
	os.Setenv("ATTEMPT_WINDOW", "5m")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Auth.MaxFailedAttempts != 3 {
		t.Errorf("MaxFailedAttempts: got %d, want 3", cfg.Auth.MaxFailedAttempts)
	}
	if cfg.Auth.LockoutDuration != time.Hour {
		t.Errorf("LockoutDuration: got %v, want 1h", cfg.Auth.LockoutDuration)
	}
	if cfg.Auth.AttemptWindow != 5*time.Minute {
		t.Errorf("AttemptWindow: got %v, want 5m", cfg.Auth.AttemptWindow)
	}
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	os.Setenv("SESSION_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("LOCKOUT_DURATION", "not-a-duration")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Auth.LockoutDuration != 30*time.Minute {
		t.Errorf("LockoutDuration with invalid value: got %v, want 30m", cfg.Auth.LockoutDuration)
	}
}

func TestLoad_RequiresSessionSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail without SESSION_SECRET")
	}
}

func TestLoad_RejectsShortSecretInProduction(t *testing.T) {
	os.Setenv("SESSION_SECRET", "short-but-over-16-chars")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("ENV", "production")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject a secret under 32 characters in production")
	}
}

func TestLoad_RejectsBadAttemptPolicy(t *testing.T) {
	os.Setenv("SESSION_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("MAX_FAILED_ATTEMPTS", "0")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject MAX_FAILED_ATTEMPTS below 1")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "auth",
		Password: "pw",
		Name:     "crm_auth",
		SSLMode:  "require",
	}

	want := "host=db.internal port=5433 user=auth password=pw dbname=crm_auth sslmode=require"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN(): got %q, want %q", got, want)
	}
}
