package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("PASKET_MODE replaces mode", func(t *testing.T) {
		t.Setenv("PASKET_MODE", "if_invoked")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "if_invoked", cfg.Mode)
	})

	t.Run("PASKET_SOLVER replaces command only", func(t *testing.T) {
		t.Setenv("PASKET_SOLVER", "/opt/sketch/bin/sketch")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/opt/sketch/bin/sketch", cfg.Solver.Command)
		assert.Equal(t, []string{"--fe-output-test", "--fe-keep-tmp"}, cfg.Solver.Args)
	})

	t.Run("PASKET_LOG_LEVEL replaces level", func(t *testing.T) {
		t.Setenv("PASKET_LOG_LEVEL", "debug")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("PASKET_JOURNAL enables the journal", func(t *testing.T) {
		t.Setenv("PASKET_JOURNAL", "/tmp/runs.db")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.True(t, cfg.Journal.Enabled)
		assert.Equal(t, "/tmp/runs.db", cfg.Journal.Path)
	})

	t.Run("empty variables change nothing", func(t *testing.T) {
		t.Setenv("PASKET_MODE", "")
		t.Setenv("PASKET_SOLVER", "")
		t.Setenv("PASKET_LOG_LEVEL", "")
		t.Setenv("PASKET_JOURNAL", "")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, DefaultConfig(), cfg)
	})
}

func TestLoggingConfig(t *testing.T) {
	c := LoggingConfig{Level: "warn", Categories: map[string]bool{"solver": false}}
	assert.False(t, c.IsCategoryEnabled("solver"))
	assert.True(t, c.IsCategoryEnabled("encode"))
	assert.Equal(t, "warn", c.LoggerConfig().Level)

	c.DebugMode = true
	lc := c.LoggerConfig()
	assert.Equal(t, "debug", lc.Level)
	require.NotNil(t, lc.Categories)
	assert.False(t, lc.Categories["solver"])
}
