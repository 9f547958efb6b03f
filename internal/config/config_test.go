package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leynos/ghillie/internal/config"
	"github.com/leynos/ghillie/internal/faults"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, 7, cfg.ReportingWindowDays)
	assert.Equal(t, 500, cfg.MaxEventsPerKind)
	assert.Equal(t, "0.0.0.0:8080", cfg.ListenAddr())
	assert.True(t, cfg.HealthOnly())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("GHILLIE_PORT", "9090")
	t.Setenv("GHILLIE_DATABASE_URL", "/tmp/ghillie.db")
	t.Setenv("GHILLIE_STATUS_MODEL_BACKEND", "mock")
	t.Setenv("GHILLIE_OPENAI_TEMPERATURE", "0.4")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.False(t, cfg.HealthOnly())
	assert.Equal(t, "mock", cfg.StatusModelBackend)
	assert.InDelta(t, 0.4, cfg.OpenAITemperature, 1e-9)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("GHILLIE_PORT", "70000")

	_, err := config.Load()
	require.Error(t, err)
	assert.Equal(t, faults.CategoryConfig, faults.Categorize(err))
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("GHILLIE_STATUS_MODEL_BACKEND", "gemini")

	_, err := config.Load()
	require.Error(t, err)
	assert.Equal(t, faults.CategoryConfig, faults.Categorize(err))
}

func TestDerivedConfigs(t *testing.T) {
	t.Setenv("GHILLIE_INITIAL_LOOKBACK_DAYS", "3")
	t.Setenv("GHILLIE_OVERLAP_MINUTES", "10")
	t.Setenv("GHILLIE_STALLED_THRESHOLD_HOURS", "6")

	cfg, err := config.Load()
	require.NoError(t, err)

	ing := cfg.Ingest()
	assert.Equal(t, 72, int(ing.InitialLookback.Hours()))
	assert.Equal(t, 10, int(ing.Overlap.Minutes()))
	require.NoError(t, ing.Validate())

	assert.Equal(t, 6, int(cfg.Health().StalledThreshold.Hours()))
}
