package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "COP", cfg.Payment.Currency)
	assert.Equal(t, "MST", cfg.Payment.ReferencePrefix)
	assert.Equal(t, 15*time.Minute, cfg.Payment.IntentTTL)
	assert.Equal(t, 5*time.Minute, cfg.Payment.IntentSweepInterval)
	assert.Equal(t, "memory", cfg.Payment.IntentBackend)
	assert.True(t, decimal.NewFromInt(5).Equal(cfg.Payment.PlatformCommissionPct))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("INTENT_TTL", "2m")
	t.Setenv("PAYMENT_CURRENCY", "usd")
	t.Setenv("INTENT_BACKEND", "REDIS")
	t.Setenv("GATEWAY_BASE_URL", "https://gw.example/v1/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Payment.IntentTTL)
	assert.Equal(t, "USD", cfg.Payment.Currency)
	assert.Equal(t, "redis", cfg.Payment.IntentBackend)
	assert.Equal(t, "https://gw.example/v1", cfg.Gateway.BaseURL)
}

func TestLoad_BadCommission(t *testing.T) {
	t.Setenv("PLATFORM_COMMISSION_PCT", "five")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_MissingSecrets(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GATEWAY_INTEGRITY_SECRET is required")
	assert.Contains(t, err.Error(), "GATEWAY_EVENTS_SECRET is required")
}

func TestValidate_OK(t *testing.T) {
	t.Setenv("GATEWAY_PUBLIC_KEY", "pub_test_x")
	t.Setenv("GATEWAY_PRIVATE_KEY", "prv_test_x")
	t.Setenv("GATEWAY_INTEGRITY_SECRET", "test_integrity_x")
	t.Setenv("GATEWAY_EVENTS_SECRET", "test_events_x")

	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}
