package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("GREEN_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 2*time.Minute, cfg.WalletCacheTTL)
	require.Equal(t, 15*time.Minute, cfg.ReconcileInterval)
	require.Equal(t, 30*time.Second, cfg.StreamPingInterval)

	rate, ok := cfg.Rates.Rate("cycling")
	require.True(t, ok)
	require.Equal(t, 2.0, rate)
	rate, ok = cfg.Rates.Rate("workshops")
	require.True(t, ok)
	require.Equal(t, 3.0, rate)

	require.NotNil(t, cfg.Verification.Cycling)
	require.Equal(t, 30.0, cfg.Verification.Cycling.MaxSpeedKmh)
	require.NotNil(t, cfg.Verification.Energy)
	require.Equal(t, 0.5, cfg.Verification.Energy.MinSavingsKwh)
	require.InDelta(t, 0.1, cfg.Verification.Tolerance, 1e-9)
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("GREEN_JWT_SECRET", "secret")
	t.Setenv("GREEN_RATES_CYCLING", "3.5")
	t.Setenv("GREEN_VERIFICATION_CYCLING_MAX_SPEED_KMH", "25")
	t.Setenv("GREEN_WALLET_CACHE_TTL", "30s")
	t.Setenv("GREEN_APP_PORT", ":9090")
	t.Setenv("GREEN_STREAM_PING_INTERVAL", "10s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, 30*time.Second, cfg.WalletCacheTTL)
	require.Equal(t, 10*time.Second, cfg.StreamPingInterval)
	require.Equal(t, 3.5, cfg.Rates["cycling"])
	require.Equal(t, 25.0, cfg.Verification.Cycling.MaxSpeedKmh)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("GREEN_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestVerificationThresholdsValidate(t *testing.T) {
	thresholds := DefaultVerificationThresholds()
	require.NoError(t, thresholds.Validate())

	thresholds.Cycling = &CyclingThresholds{MinSpeedKmh: 40, MaxSpeedKmh: 30, MaxDurationHours: 1}
	require.Error(t, thresholds.Validate())

	thresholds = DefaultVerificationThresholds()
	thresholds.Tolerance = 1.5
	require.Error(t, thresholds.Validate())
}
