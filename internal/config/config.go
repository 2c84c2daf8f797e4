package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	App        AppConfig
	Attendance AttendanceConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
}

// AttendanceConfig holds pipeline defaults. Tenant rows override the civil
// time settings per tenant; these values apply when a tenant has none.
type AttendanceConfig struct {
	// DefaultTZOffsetMinutes is the fallback tenant UTC offset (+05:30).
	DefaultTZOffsetMinutes int
	// EarlyWindowEndHour ends the carry-back window, exclusive, local hours.
	EarlyWindowEndHour int
	// FullDayThresholdHours separates Present from Half Day.
	FullDayThresholdHours float64
	// LegacyCodePrefix and LegacyCodePadWidth reconstruct employee codes
	// from short numeric device tokens ("4" -> "HO004").
	LegacyCodePrefix   string
	LegacyCodePadWidth int
	// SweepInterval is the period of the background aggregation sweep.
	SweepInterval time.Duration
	// SweepBatchSize bounds unprocessed events picked up per sweep pass.
	SweepBatchSize int
	// ResolverCacheTTL bounds how long token resolutions are cached.
	ResolverCacheTTL time.Duration
	// CommandSentTimeout fails Sent commands that never report a result.
	CommandSentTimeout time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file loaded, using environment", "error", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "apextime"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:     appPort,
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	// Attendance pipeline configuration
	tzOffset, err := strconv.Atoi(getEnv("DEFAULT_TZ_OFFSET_MINUTES", "330"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TZ_OFFSET_MINUTES: %w", err)
	}

	earlyEnd, err := strconv.Atoi(getEnv("EARLY_WINDOW_END_HOUR", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid EARLY_WINDOW_END_HOUR: %w", err)
	}

	fullDay, err := strconv.ParseFloat(getEnv("FULL_DAY_THRESHOLD_HOURS", "4"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid FULL_DAY_THRESHOLD_HOURS: %w", err)
	}

	padWidth, err := strconv.Atoi(getEnv("LEGACY_CODE_PAD_WIDTH", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid LEGACY_CODE_PAD_WIDTH: %w", err)
	}

	sweepInterval, err := time.ParseDuration(getEnv("SWEEP_INTERVAL", "3m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
	}

	sweepBatch, err := strconv.Atoi(getEnv("SWEEP_BATCH_SIZE", "5000"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_BATCH_SIZE: %w", err)
	}

	cacheTTL, err := time.ParseDuration(getEnv("RESOLVER_CACHE_TTL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid RESOLVER_CACHE_TTL: %w", err)
	}

	sentTimeout, err := time.ParseDuration(getEnv("COMMAND_SENT_TIMEOUT", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid COMMAND_SENT_TIMEOUT: %w", err)
	}

	config.Attendance = AttendanceConfig{
		DefaultTZOffsetMinutes: tzOffset,
		EarlyWindowEndHour:     earlyEnd,
		FullDayThresholdHours:  fullDay,
		LegacyCodePrefix:       getEnv("LEGACY_CODE_PREFIX", "HO"),
		LegacyCodePadWidth:     padWidth,
		SweepInterval:          sweepInterval,
		SweepBatchSize:         sweepBatch,
		ResolverCacheTTL:       cacheTTL,
		CommandSentTimeout:     sentTimeout,
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Attendance.EarlyWindowEndHour < 0 || c.Attendance.EarlyWindowEndHour > 12 {
		return fmt.Errorf("EARLY_WINDOW_END_HOUR must be between 0 and 12")
	}
	if c.Attendance.FullDayThresholdHours <= 0 {
		return fmt.Errorf("FULL_DAY_THRESHOLD_HOURS must be positive")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
