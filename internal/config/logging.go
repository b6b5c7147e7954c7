package config

import (
	"fmt"

	"go.uber.org/zap/zapcore"

	"pasket/internal/logging"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" json:"level,omitempty"`           // debug, info, warn, error
	Format     string          `yaml:"format" json:"format,omitempty"`         // console, json
	File       string          `yaml:"file" json:"file,omitempty"`             // empty means stderr
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode,omitempty"` // forces level debug
	Categories map[string]bool `yaml:"categories" json:"categories,omitempty"` // per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Categories not listed are enabled.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	enabled, exists := c.Categories[category]
	return !exists || enabled
}

// LoggerConfig converts c for logging.Initialize.
func (c *LoggingConfig) LoggerConfig() logging.Config {
	level := c.Level
	if c.DebugMode {
		level = "debug"
	}
	return logging.Config{
		Level:      level,
		Format:     c.Format,
		File:       c.File,
		Categories: c.Categories,
	}
}

func (c *LoggingConfig) validate() error {
	if c.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(c.Level)); err != nil {
			return fmt.Errorf("invalid logging.level %q", c.Level)
		}
	}
	switch c.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid logging.format %q (want console or json)", c.Format)
	}
	return nil
}
