package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, cats map[string]bool) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core), cats)
	t.Cleanup(func() { SetLogger(zap.NewNop(), nil) })
	return logs
}

func TestCategoryLoggersAreNamed(t *testing.T) {
	logs := observe(t, nil)

	EncodeDebug("roles=%d", 4)
	DecodeWarn("unresolved %s", "getter")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "encode", entries[0].LoggerName)
	assert.Equal(t, "roles=4", entries[0].Message)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "decode", entries[1].LoggerName)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	logs := observe(t, map[string]bool{"watch": false, "solver": true})

	assert.False(t, IsCategoryEnabled(CategoryWatch))
	assert.True(t, IsCategoryEnabled(CategorySolver))
	assert.True(t, IsCategoryEnabled(CategoryAudit), "unlisted categories default to enabled")

	Watch("ignored")
	Solver("kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}

func TestGetCachesPerCategory(t *testing.T) {
	observe(t, nil)
	assert.Same(t, Get(CategoryParse), Get(CategoryParse))
}

func TestTimer(t *testing.T) {
	logs := observe(t, nil)

	elapsed := StartTimer(CategoryPipeline, "run").StopWithThreshold(time.Hour)
	assert.GreaterOrEqual(t, elapsed, time.Duration(0))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "run completed", logs.All()[0].Message)

	StartTimer(CategoryPipeline, "slow").StopWithThreshold(-1)
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)
}

func TestInitializeWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pasket.log")
	require.NoError(t, Initialize(Config{Level: "debug", Format: "json", File: path}))
	t.Cleanup(func() { SetLogger(zap.NewNop(), nil) })

	Encode("hello %s", "file")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello file"`)
	assert.Contains(t, string(data), `"logger":"encode"`)
}

func TestInitializeRejectsBadLevel(t *testing.T) {
	err := Initialize(Config{Level: "chatty"})
	assert.Error(t, err)
}
