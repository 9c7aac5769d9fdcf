package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Payment      PaymentConfig
	Shipping     ShippingConfig
	Notification NotificationConfig
	RateLimit    RateLimitConfig
	Scheduler    SchedulerConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
	// TxMaxAttempts bounds serializable transaction retries on write conflicts.
	TxMaxAttempts int
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	APIKey string
}

// PaymentConfig holds payment gateway configuration.
type PaymentConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	SuccessURL    string
}

// ShippingConfig holds carrier configuration.
type ShippingConfig struct {
	BaseURL        string
	Token          string
	FromDistrictID int
}

// NotificationConfig holds Kafka notification configuration.
type NotificationConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// RateLimitConfig holds checkout throttling configuration. An empty
// RedisAddr selects the in-process counter store.
type RateLimitConfig struct {
	RedisAddr string
	Limit     int
	Window    time.Duration
}

// SchedulerConfig holds reconciliation job configuration. A zero
// interval disables the corresponding job.
type SchedulerConfig struct {
	Enabled                 bool
	StaleUnpaidInterval     time.Duration
	UnpaidExpiry            time.Duration
	StuckMonitorInterval    time.Duration
	StuckUnpaidAfter        time.Duration
	StuckProcessingAfter    time.Duration
	PaymentSweepInterval    time.Duration
	PaymentSweepLookback    time.Duration
	DuplicateRefundInterval time.Duration
	DuplicateLookback       time.Duration
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "ryxel"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
			TxMaxAttempts:   getEnvAsInt("DB_TX_MAX_ATTEMPTS", 3),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		Payment: PaymentConfig{
			BaseURL:       getEnv("PAYMENT_BASE_URL", ""),
			APIKey:        getEnv("PAYMENT_API_KEY", ""),
			WebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			SuccessURL:    getEnv("PAYMENT_SUCCESS_URL", ""),
		},
		Shipping: ShippingConfig{
			BaseURL:        getEnv("SHIPPING_BASE_URL", ""),
			Token:          getEnv("SHIPPING_TOKEN", ""),
			FromDistrictID: getEnvAsInt("SHIPPING_FROM_DISTRICT_ID", 0),
		},
		Notification: NotificationConfig{
			Enabled: getEnvAsBool("NOTIFICATION_ENABLED", false),
			Brokers: getEnvAsSlice("NOTIFICATION_BROKERS", nil),
			Topic:   getEnv("NOTIFICATION_TOPIC", "storefront.notifications"),
		},
		RateLimit: RateLimitConfig{
			RedisAddr: getEnv("RATE_LIMIT_REDIS_ADDR", ""),
			Limit:     getEnvAsInt("RATE_LIMIT_CHECKOUT_LIMIT", 3),
			Window:    getEnvAsDuration("RATE_LIMIT_CHECKOUT_WINDOW", 5*time.Minute),
		},
		Scheduler: SchedulerConfig{
			Enabled:                 getEnvAsBool("SCHEDULER_ENABLED", true),
			StaleUnpaidInterval:     getEnvAsDuration("SCHEDULER_STALE_UNPAID_INTERVAL", time.Hour),
			UnpaidExpiry:            getEnvAsDuration("SCHEDULER_UNPAID_EXPIRY", 24*time.Hour),
			StuckMonitorInterval:    getEnvAsDuration("SCHEDULER_STUCK_MONITOR_INTERVAL", 30*time.Minute),
			StuckUnpaidAfter:        getEnvAsDuration("SCHEDULER_STUCK_UNPAID_AFTER", 2*time.Hour),
			StuckProcessingAfter:    getEnvAsDuration("SCHEDULER_STUCK_PROCESSING_AFTER", 48*time.Hour),
			PaymentSweepInterval:    getEnvAsDuration("SCHEDULER_PAYMENT_SWEEP_INTERVAL", 15*time.Minute),
			PaymentSweepLookback:    getEnvAsDuration("SCHEDULER_PAYMENT_SWEEP_LOOKBACK", 24*time.Hour),
			DuplicateRefundInterval: getEnvAsDuration("SCHEDULER_DUPLICATE_REFUND_INTERVAL", time.Hour),
			DuplicateLookback:       getEnvAsDuration("SCHEDULER_DUPLICATE_LOOKBACK", 7*24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	if c.Database.TxMaxAttempts < 1 {
		return fmt.Errorf("transaction max attempts must be at least 1")
	}

	if c.Auth.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	if c.Payment.BaseURL == "" {
		return fmt.Errorf("payment gateway base URL is required")
	}

	if c.Payment.WebhookSecret == "" {
		return fmt.Errorf("payment webhook secret is required")
	}

	if c.Shipping.BaseURL == "" {
		return fmt.Errorf("shipping base URL is required")
	}

	if c.Notification.Enabled && len(c.Notification.Brokers) == 0 {
		return fmt.Errorf("notification brokers are required when notifications are enabled")
	}

	if c.RateLimit.Limit < 1 {
		return fmt.Errorf("rate limit must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a duration or returns a default value.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsSlice retrieves a comma-separated environment variable or returns a default value.
func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
