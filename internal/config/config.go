package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	TwoFactor TwoFactorConfig
	Email     EmailConfig
	Backup    BackupConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
	BaseURL  string
}

// AuthConfig holds credential verification and lockout policy.
// Defaults are 5 attempts / 30 minute lockout / 15 minute sliding window;
// all three are exposed as configuration.
type AuthConfig struct {
	SessionSecret     string
	SessionExpiry     time.Duration
	MaxFailedAttempts int
	LockoutDuration   time.Duration
	AttemptWindow     time.Duration
	ResetTokenExpiry  time.Duration
	CleanupInterval   time.Duration
}

// TwoFactorConfig holds email challenge policy.
type TwoFactorConfig struct {
	CodeLength      int
	CodeExpiry      time.Duration
	MaxCodeAttempts int
	PendingExpiry   time.Duration // lifetime of the pending-login token
	TOTPIssuer      string
}

type EmailConfig struct {
	AWSRegion   string
	FromAddress string
	FromName    string
}

type BackupConfig struct {
	Enabled   bool
	Directory string
	Interval  time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	sessionSecret := getEnv("SESSION_SECRET", "")
	if sessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "crm_auth"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			Env:      env,
			LogLevel: getEnv("LOG_LEVEL", "info"),
			BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),
		},
		Auth: AuthConfig{
			SessionSecret:     sessionSecret,
			SessionExpiry:     getEnvAsDuration("SESSION_EXPIRY", 12*time.Hour),
			MaxFailedAttempts: getEnvAsInt("MAX_FAILED_ATTEMPTS", 5),
			LockoutDuration:   getEnvAsDuration("LOCKOUT_DURATION", 30*time.Minute),
			AttemptWindow:     getEnvAsDuration("ATTEMPT_WINDOW", 15*time.Minute),
			ResetTokenExpiry:  getEnvAsDuration("RESET_TOKEN_EXPIRY", 24*time.Hour),
			CleanupInterval:   getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
		},
		TwoFactor: TwoFactorConfig{
			CodeLength:      getEnvAsInt("TWO_FACTOR_CODE_LENGTH", 6),
			CodeExpiry:      getEnvAsDuration("TWO_FACTOR_CODE_EXPIRY", 10*time.Minute),
			MaxCodeAttempts: getEnvAsInt("TWO_FACTOR_MAX_CODE_ATTEMPTS", 3),
			PendingExpiry:   getEnvAsDuration("TWO_FACTOR_PENDING_EXPIRY", 10*time.Minute),
			TOTPIssuer:      getEnv("TOTP_ISSUER", "CRM"),
		},
		Email: EmailConfig{
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
			FromName:    getEnv("EMAIL_FROM_NAME", "CRM Security"),
		},
		Backup: BackupConfig{
			Enabled:   getEnvAsBool("BACKUP_ENABLED", false),
			Directory: getEnv("BACKUP_DIR", "backups"),
			Interval:  getEnvAsDuration("BACKUP_INTERVAL", 24*time.Hour),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateSessionSecret(sessionSecret, env); err != nil {
		return nil, err
	}

	if cfg.Auth.MaxFailedAttempts < 1 {
		return nil, fmt.Errorf("MAX_FAILED_ATTEMPTS must be at least 1")
	}
	if cfg.TwoFactor.CodeLength < 4 || cfg.TwoFactor.CodeLength > 10 {
		return nil, fmt.Errorf("TWO_FACTOR_CODE_LENGTH must be between 4 and 10")
	}

	return cfg, nil
}

// validateSessionSecret enforces minimum security standards for the signing secret
func validateSessionSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32 // 256 bits
	}

	if len(secret) < minLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SESSION_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
