package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.Optimization.Workers)
	assert.Equal(t, 100, cfg.Optimization.MaxRestarts)
	assert.Equal(t, 1e-10, cfg.Optimization.EpsilonInner)
	assert.Equal(t, 1e-6, cfg.Optimization.EpsilonOuter)
	assert.Equal(t, 2.0, cfg.Optimization.TrustRadius)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OPT_WORKERS", "16")
	t.Setenv("OPT_EPSILON_INNER", "1e-8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 16, cfg.Optimization.Workers)
	assert.Equal(t, 1e-8, cfg.Optimization.EpsilonInner)
}
