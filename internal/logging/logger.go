// Package logging provides config-driven categorized logging for pasket.
// Every subsystem logs through its own category; categories can be switched
// off individually, in which case their loggers are no-ops.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup, config resolution
	CategoryParse    Category = "parse"    // Template and snippet parsing
	CategoryAccessor Category = "accessor" // Accessor kind configuration
	CategoryEncode   Category = "encode"   // Encode pass
	CategoryDecode   Category = "decode"   // Decision log parsing, decode pass
	CategoryCleanup  Category = "cleanup"  // Cleanup pass
	CategoryAudit    Category = "audit"    // Datalog consistency audit
	CategorySolver   Category = "solver"   // External solver runs
	CategoryPipeline Category = "pipeline" // End-to-end runs
	CategoryJournal  Category = "journal"  // Run history store
	CategoryWatch    Category = "watch"    // Template file watcher
)

// Config selects level, encoding, destination and enabled categories.
type Config struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // console or json
	File       string          `yaml:"file"`   // empty means stderr
	Categories map[string]bool `yaml:"categories"`
}

var (
	mu         sync.RWMutex
	root       = zap.NewNop()
	categories map[string]bool
	loggers    = make(map[Category]*zap.SugaredLogger)
)

// Initialize builds the root logger from cfg. It may be called again to
// reconfigure; previously handed out category loggers keep the old core.
func Initialize(cfg Config) error {
	zc := zap.NewProductionConfig()
	if cfg.Format == "" || cfg.Format == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		zc.OutputPaths = []string{cfg.File}
	} else {
		zc.OutputPaths = []string{"stderr"}
	}

	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	SetLogger(logger, cfg.Categories)
	Get(CategoryBoot).Debugw("logging initialized", "level", level.String(), "file", cfg.File)
	return nil
}

// SetLogger installs l as the root logger. cats filters categories the
// same way Config.Categories does; nil enables everything.
func SetLogger(l *zap.Logger, cats map[string]bool) {
	mu.Lock()
	defer mu.Unlock()
	root = l
	categories = cats
	loggers = make(map[Category]*zap.SugaredLogger)
}

// Root returns the root logger.
func Root() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// IsCategoryEnabled returns whether a specific category is enabled.
// Categories not listed in the config are enabled.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	enabled, ok := categories[string(category)]
	return !ok || enabled
}

// Get returns (or creates) the logger for category.
func Get(category Category) *zap.SugaredLogger {
	if !IsCategoryEnabled(category) {
		return zap.NewNop().Sugar()
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := root.Named(string(category)).Sugar()
	loggers[category] = l
	return l
}

// Sync flushes buffered entries.
func Sync() {
	_ = Root().Sync()
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Infof(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debugf(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warnf(format, args...) }

func ParseDebug(format string, args ...interface{}) { Get(CategoryParse).Debugf(format, args...) }

func AccessorWarn(format string, args ...interface{}) { Get(CategoryAccessor).Warnf(format, args...) }

func Encode(format string, args ...interface{})      { Get(CategoryEncode).Infof(format, args...) }
func EncodeDebug(format string, args ...interface{}) { Get(CategoryEncode).Debugf(format, args...) }

func Decode(format string, args ...interface{})      { Get(CategoryDecode).Infof(format, args...) }
func DecodeDebug(format string, args ...interface{}) { Get(CategoryDecode).Debugf(format, args...) }
func DecodeWarn(format string, args ...interface{})  { Get(CategoryDecode).Warnf(format, args...) }

func CleanupDebug(format string, args ...interface{}) { Get(CategoryCleanup).Debugf(format, args...) }

func Audit(format string, args ...interface{})     { Get(CategoryAudit).Infof(format, args...) }
func AuditWarn(format string, args ...interface{}) { Get(CategoryAudit).Warnf(format, args...) }

func Solver(format string, args ...interface{})      { Get(CategorySolver).Infof(format, args...) }
func SolverDebug(format string, args ...interface{}) { Get(CategorySolver).Debugf(format, args...) }
func SolverError(format string, args ...interface{}) { Get(CategorySolver).Errorf(format, args...) }

func Pipeline(format string, args ...interface{})      { Get(CategoryPipeline).Infof(format, args...) }
func PipelineDebug(format string, args ...interface{}) { Get(CategoryPipeline).Debugf(format, args...) }

func JournalDebug(format string, args ...interface{}) { Get(CategoryJournal).Debugf(format, args...) }

func Watch(format string, args ...interface{})      { Get(CategoryWatch).Infof(format, args...) }
func WatchDebug(format string, args ...interface{}) { Get(CategoryWatch).Debugf(format, args...) }
func WatchError(format string, args ...interface{}) { Get(CategoryWatch).Errorf(format, args...) }

// =============================================================================
// TIMING HELPERS - For performance logging
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debugw(t.op+" completed", "elapsed", elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warnw(t.op+" slow", "elapsed", elapsed, "threshold", threshold)
	} else {
		Get(t.category).Debugw(t.op+" completed", "elapsed", elapsed)
	}
	return elapsed
}
