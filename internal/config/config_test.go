package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfig_DefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfig_ValidateRejectsZeroServers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Servers = 0
	require.Error(t, cfg.Validate())
}

func TestConfig_ValidateRejectsUndersizedPacket(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SizeBytes = 10
	require.Error(t, cfg.Validate())
}

func TestConfig_ValidateRejectsUnknownTraffic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Traffic = "unknown"
	require.Error(t, cfg.Validate())
}

func TestConfig_ValidateRejectsBadPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BasePort = 70000
	require.Error(t, cfg.Validate())
}

func TestConfig_ApplyEnvOverridesSeedAndPort(t *testing.T) {
	os.Setenv("FLOCKNET_SEED", "42")
	os.Setenv("FLOCKNET_BASE_PORT", "19999")
	defer os.Unsetenv("FLOCKNET_SEED")
	defer os.Unsetenv("FLOCKNET_BASE_PORT")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnvOverrides())
	require.Equal(t, int64(42), cfg.Seed)
	require.Equal(t, 19999, cfg.BasePort)
}

func TestConfig_ApplyEnvOverridesRejectsNonIntegerSeed(t *testing.T) {
	os.Setenv("FLOCKNET_SEED", "not-a-number")
	defer os.Unsetenv("FLOCKNET_SEED")

	cfg := DefaultConfig()
	require.Error(t, cfg.ApplyEnvOverrides())
}
