package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PROVIDER_MOCK_MODE", "true")

	cfg, err := Load("testdata/absent.env")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Failover.MaxRetries)
	assert.Equal(t, []time.Duration{
		1 * time.Second, 5 * time.Second, 15 * time.Second, 30 * time.Second, 60 * time.Second,
	}, cfg.Failover.BackoffSchedule)
	assert.Equal(t, 30*time.Second, cfg.Failover.AttemptTimeout)
	assert.Equal(t, 10, cfg.Failover.ErrorThreshold)
	assert.Equal(t, int64(1), cfg.Reconcile.ToleranceCents)
	assert.Equal(t, int64(1000), cfg.Reconcile.EscalationToleranceCents)
	assert.Equal(t, 0.5, cfg.Autopilot.CashoutFraction)
	assert.Equal(t, 3, cfg.Autopilot.MaxDailyCashouts)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PROVIDER_MOCK_MODE", "true")
	t.Setenv("FAILOVER_MAX_RETRIES", "2")
	t.Setenv("FAILOVER_BACKOFF_SCHEDULE", "100ms,1s")
	t.Setenv("AUTOPILOT_MIN_BALANCE_CENTS", "10000")

	cfg, err := Load("testdata/absent.env")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Failover.MaxRetries)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, time.Second}, cfg.Failover.BackoffSchedule)
	assert.Equal(t, int64(10000), cfg.Autopilot.MinBalanceCents)
}

func TestValidateRejectsMisconfiguration(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero retries", "FAILOVER_MAX_RETRIES", "0"},
		{"fraction above one", "AUTOPILOT_CASHOUT_FRACTION", "1.5"},
		{"fraction zero", "AUTOPILOT_CASHOUT_FRACTION", "0"},
		{"inverted tolerances", "RECONCILE_TOLERANCE_CENTS", "2000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PROVIDER_MOCK_MODE", "true")
			t.Setenv(tt.key, tt.value)
			_, err := Load("testdata/absent.env")
			assert.Error(t, err)
		})
	}
}

func TestValidateRequiresAProvider(t *testing.T) {
	t.Setenv("PROVIDER_MOCK_MODE", "false")
	t.Setenv("PROVIDER_STRIPE_ENABLED", "false")
	t.Setenv("PROVIDER_BANKWIRE_ENABLED", "false")
	_, err := Load("testdata/absent.env")
	assert.Error(t, err)
}
