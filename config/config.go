package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string

	// Revenue split
	AdminPercentage   decimal.Decimal
	PlatformSurcharge decimal.Decimal
	DistributionLease time.Duration

	// Refunds
	CancellationFeePercent decimal.Decimal

	// Ledger
	CurrencyPlaces   int32
	LedgerMaxRetries int

	// Sweep
	SweepSchedule    string
	SweepConcurrency int
	SweepLockTTL     time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string

	// Logging
	LogLevel  string
	LogFormat string
}

func LoadConfig() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUserID:       getEnv("PUBNUB_USER_ID", "revenue-engine"),

		// Revenue split
		AdminPercentage:   getEnvAsDecimal("ADMIN_PERCENTAGE", "10"),
		PlatformSurcharge: getEnvAsDecimal("PLATFORM_SURCHARGE", "40"),
		DistributionLease: getEnvAsDuration("DISTRIBUTION_LEASE", "2m"),

		// Refunds
		CancellationFeePercent: getEnvAsDecimal("CANCELLATION_FEE_PERCENT", "10"),

		// Ledger
		CurrencyPlaces:   int32(getEnvAsInt("CURRENCY_PLACES", 2)),
		LedgerMaxRetries: getEnvAsInt("LEDGER_MAX_RETRIES", 5),

		// Sweep
		SweepSchedule:    getEnv("SWEEP_SCHEDULE", "@every 1h"),
		SweepConcurrency: getEnvAsInt("SWEEP_CONCURRENCY", 4),
		SweepLockTTL:     getEnvAsDuration("SWEEP_LOCK_TTL", "30m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate rejects values the split and refund arithmetic cannot work with.
func (c *Config) Validate() error {
	hundred := decimal.NewFromInt(100)
	if c.AdminPercentage.IsNegative() || c.AdminPercentage.GreaterThan(hundred) {
		return fmt.Errorf("ADMIN_PERCENTAGE must be within [0,100], got %s", c.AdminPercentage)
	}
	if c.CancellationFeePercent.IsNegative() || c.CancellationFeePercent.GreaterThan(hundred) {
		return fmt.Errorf("CANCELLATION_FEE_PERCENT must be within [0,100], got %s", c.CancellationFeePercent)
	}
	if c.PlatformSurcharge.IsNegative() {
		return fmt.Errorf("PLATFORM_SURCHARGE must not be negative, got %s", c.PlatformSurcharge)
	}
	if c.CurrencyPlaces < 0 {
		return fmt.Errorf("CURRENCY_PLACES must not be negative, got %d", c.CurrencyPlaces)
	}
	if c.LedgerMaxRetries < 1 {
		return fmt.Errorf("LEDGER_MAX_RETRIES must be at least 1, got %d", c.LedgerMaxRetries)
	}
	if c.SweepConcurrency < 1 {
		return fmt.Errorf("SWEEP_CONCURRENCY must be at least 1, got %d", c.SweepConcurrency)
	}
	if c.DistributionLease <= 0 {
		return fmt.Errorf("DISTRIBUTION_LEASE must be positive, got %s", c.DistributionLease)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsDecimal(key string, defaultValue string) decimal.Decimal {
	valueStr := getEnv(key, defaultValue)
	if value, err := decimal.NewFromString(valueStr); err == nil {
		return value
	}
	return decimal.RequireFromString(defaultValue)
}
