package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketbase/premium-service/internal/domain/models"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Gateway  GatewayConfig
	Worker   WorkerConfig
	Notifier NotifierConfig
	Secrets  SecretsConfig
	Admin    AdminConfig
	Logger   LoggerConfig
	Plans    []models.PremiumPlan
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int
	Host        string
	MetricsPort int
}

// DatabaseConfig holds PostgreSQL configuration. Password is resolved through
// the secret manager when PasswordSecretName is set.
type DatabaseConfig struct {
	Host               string
	Port               int
	User               string
	Password           string
	PasswordSecretName string
	Database           string
	SSLMode            string
	MaxConns           int32
	MinConns           int32
}

// GatewayConfig holds payment gateway configuration. APIKey is resolved
// through the secret manager when APIKeySecretName is set.
type GatewayConfig struct {
	BaseURL          string
	APIKey           string
	APIKeySecretName string
	Timeout          time.Duration
	RequestsPerSec   float64
	Burst            int
	FailureThreshold uint32
	BreakerCooldown  time.Duration
}

// WorkerConfig holds reconciliation worker configuration
type WorkerConfig struct {
	Interval  time.Duration
	Grace     time.Duration
	BatchSize int32
}

// NotifierConfig holds seller notification configuration
type NotifierConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// SecretsConfig selects the secret backend: "aws" or "env"
type SecretsConfig struct {
	Backend  string
	Region   string
	Profile  string
	Endpoint string
}

// AdminConfig holds admin API authentication
type AdminConfig struct {
	APIKey     string
	CronSecret string
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort: getEnvAsInt("METRICS_PORT", 9090),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvAsInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "postgres"),
			Password:           getEnv("DB_PASSWORD", ""),
			PasswordSecretName: getEnv("DB_PASSWORD_SECRET_NAME", ""),
			Database:           getEnv("DB_NAME", "premium_service"),
			SSLMode:            getEnv("DB_SSL_MODE", "disable"),
			MaxConns:           int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:           int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Gateway: GatewayConfig{
			BaseURL:          getEnv("GATEWAY_BASE_URL", "https://sandbox.paygate.example.com"),
			APIKey:           getEnv("GATEWAY_API_KEY", ""),
			APIKeySecretName: getEnv("GATEWAY_API_KEY_SECRET_NAME", ""),
			Timeout:          getEnvAsDuration("GATEWAY_TIMEOUT", 10*time.Second),
			RequestsPerSec:   float64(getEnvAsInt("GATEWAY_RATE_LIMIT", 50)),
			Burst:            getEnvAsInt("GATEWAY_RATE_BURST", 10),
			FailureThreshold: uint32(getEnvAsInt("GATEWAY_BREAKER_THRESHOLD", 5)),
			BreakerCooldown:  getEnvAsDuration("GATEWAY_BREAKER_COOLDOWN", 30*time.Second),
		},
		Worker: WorkerConfig{
			Interval:  getEnvAsDuration("RECONCILE_INTERVAL", 5*time.Minute),
			Grace:     getEnvAsDuration("RECONCILE_GRACE", 2*time.Minute),
			BatchSize: int32(getEnvAsInt("RECONCILE_BATCH_SIZE", 100)),
		},
		Notifier: NotifierConfig{
			Endpoint: getEnv("NOTIFY_ENDPOINT", ""),
			Timeout:  getEnvAsDuration("NOTIFY_TIMEOUT", 5*time.Second),
		},
		Secrets: SecretsConfig{
			Backend:  getEnv("SECRETS_BACKEND", "env"),
			Region:   getEnv("AWS_REGION", "us-east-1"),
			Profile:  getEnv("AWS_PROFILE", ""),
			Endpoint: getEnv("AWS_SECRETS_ENDPOINT", ""),
		},
		Admin: AdminConfig{
			APIKey:     getEnv("ADMIN_API_KEY", ""),
			CronSecret: getEnv("CRON_SECRET", ""),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	fee, err := decimal.NewFromString(getEnv("PREMIUM_MONTHLY_FEE", "49.99"))
	if err != nil {
		return nil, fmt.Errorf("invalid PREMIUM_MONTHLY_FEE: %w", err)
	}
	cfg.Plans = []models.PremiumPlan{
		{
			ID:         getEnv("PREMIUM_PLAN_ID", "premium-monthly"),
			MonthlyFee: fee,
			Currency:   getEnv("PREMIUM_CURRENCY", "USD"),
			Periodic:   true,
		},
	}

	if cfg.Admin.APIKey == "" {
		return nil, fmt.Errorf("ADMIN_API_KEY is required")
	}
	if cfg.Admin.CronSecret == "" {
		return nil, fmt.Errorf("CRON_SECRET is required")
	}
	if cfg.Secrets.Backend != "aws" && cfg.Secrets.Backend != "env" {
		return nil, fmt.Errorf("SECRETS_BACKEND must be aws or env, got %q", cfg.Secrets.Backend)
	}

	return cfg, nil
}

// ConnectionString returns the PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
