package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	assert.True(t, cfg.AdminPercentage.Equal(decimal.NewFromInt(10)))
	assert.True(t, cfg.PlatformSurcharge.Equal(decimal.NewFromInt(40)))
	assert.True(t, cfg.CancellationFeePercent.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, int32(2), cfg.CurrencyPlaces)
	assert.Equal(t, "@every 1h", cfg.SweepSchedule)
	assert.Equal(t, 2*time.Minute, cfg.DistributionLease)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("ADMIN_PERCENTAGE", "12.5")
	t.Setenv("PLATFORM_SURCHARGE", "0")
	t.Setenv("SWEEP_CONCURRENCY", "8")
	t.Setenv("SWEEP_LOCK_TTL", "5m")

	cfg := LoadConfig()

	assert.True(t, cfg.AdminPercentage.Equal(decimal.RequireFromString("12.5")))
	assert.True(t, cfg.PlatformSurcharge.IsZero())
	assert.Equal(t, 8, cfg.SweepConcurrency)
	assert.Equal(t, 5*time.Minute, cfg.SweepLockTTL)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("ADMIN_PERCENTAGE", "ten")
	t.Setenv("DISTRIBUTION_LEASE", "soon")

	cfg := LoadConfig()

	assert.True(t, cfg.AdminPercentage.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 2*time.Minute, cfg.DistributionLease)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"admin percentage above 100", func(c *Config) { c.AdminPercentage = decimal.NewFromInt(101) }},
		{"negative admin percentage", func(c *Config) { c.AdminPercentage = decimal.NewFromInt(-1) }},
		{"negative surcharge", func(c *Config) { c.PlatformSurcharge = decimal.NewFromInt(-40) }},
		{"fee above 100", func(c *Config) { c.CancellationFeePercent = decimal.NewFromInt(150) }},
		{"zero retries", func(c *Config) { c.LedgerMaxRetries = 0 }},
		{"zero concurrency", func(c *Config) { c.SweepConcurrency = 0 }},
		{"zero lease", func(c *Config) { c.DistributionLease = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
