package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"pasket/internal/accessor"
	"pasket/internal/encode"
	"pasket/internal/solver"
)

// DefaultPath is where the CLI looks for a config file.
const DefaultPath = "pasket.yaml"

// Config holds all pasket configuration.
type Config struct {
	// Mode selects when decoded accessors are materialized.
	Mode string `yaml:"mode"`

	// Templates lists template files or directories of .java files.
	Templates []string `yaml:"templates"`
	// Output is where decoded programs are written; empty means stdout.
	Output string `yaml:"output"`

	Accessors accessor.Config `yaml:"accessors"`
	Bounds    encode.Bounds   `yaml:"bounds"`
	Encode    EncodeConfig    `yaml:"encode"`
	Solver    SolverConfig    `yaml:"solver"`
	Audit     AuditConfig     `yaml:"audit"`
	Journal   JournalConfig   `yaml:"journal"`
	Watch     WatchConfig     `yaml:"watch"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EncodeConfig configures the encode pass.
type EncodeConfig struct {
	AuxPrefix     string   `yaml:"aux_prefix"`
	Exclude       []string `yaml:"exclude"`
	DelegateDepth int      `yaml:"delegate_depth"`
}

// SolverConfig configures the external solver.
type SolverConfig struct {
	Command     string   `yaml:"command"`
	Args        []string `yaml:"args"`
	Timeout     string   `yaml:"timeout"`
	WorkDir     string   `yaml:"work_dir"`
	MaxLogBytes int64    `yaml:"max_log_bytes"`
	KeepFiles   bool     `yaml:"keep_files"`

	// Replay, when set, reads this decision log instead of running Command.
	Replay string `yaml:"replay"`
}

// AuditConfig configures the Datalog audit of decoded roles.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
	Strict  bool `yaml:"strict"`
}

// JournalConfig configures the run history.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Mode:      accessor.AlwaysMaterialize.String(),
		Accessors: accessor.Config{},
		Bounds: encode.Bounds{
			MaxObjects: 4,
			MaxEvents:  4,
		},
		Encode: EncodeConfig{
			AuxPrefix:     encode.DefaultAuxPrefix,
			DelegateDepth: encode.DefaultDelegateDepth,
		},
		Solver: SolverConfig{
			Command: "sketch",
			Args:    []string{"--fe-output-test", "--fe-keep-tmp"},
			Timeout: "10m",
		},
		Audit: AuditConfig{
			Enabled: true,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(".pasket", "journal.db"),
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if mode := os.Getenv("PASKET_MODE"); mode != "" {
		c.Mode = mode
	}
	if cmd := os.Getenv("PASKET_SOLVER"); cmd != "" {
		c.Solver.Command = cmd
	}
	if level := os.Getenv("PASKET_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	// Journal path from environment also switches the journal on
	if path := os.Getenv("PASKET_JOURNAL"); path != "" {
		c.Journal.Path = path
		c.Journal.Enabled = true
	}
}

// GetMode returns the parsed materialization mode.
func (c *Config) GetMode() (accessor.Mode, error) {
	return accessor.ParseMode(c.Mode)
}

// GetSolverTimeout returns the solver timeout as a duration.
func (c *Config) GetSolverTimeout() time.Duration {
	d, err := time.ParseDuration(c.Solver.Timeout)
	if err != nil {
		return solver.DefaultTimeout
	}
	return d
}

// GetWatchDebounce returns the watch debounce as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// EncodeOptions assembles the encode pass options.
func (c *Config) EncodeOptions() encode.Options {
	return encode.Options{
		Accessors:     c.Accessors,
		Bounds:        c.Bounds,
		Exclude:       c.Encode.Exclude,
		AuxPrefix:     c.Encode.AuxPrefix,
		DelegateDepth: c.Encode.DelegateDepth,
	}
}

// CommandConfig assembles the solver process settings.
func (c *Config) CommandConfig() solver.CommandConfig {
	return solver.CommandConfig{
		Command:     c.Solver.Command,
		Args:        c.Solver.Args,
		Timeout:     c.GetSolverTimeout(),
		WorkDir:     c.Solver.WorkDir,
		MaxLogBytes: c.Solver.MaxLogBytes,
		KeepFiles:   c.Solver.KeepFiles,
	}
}

// NewSolver returns the replay solver when a replay log is configured and
// the command solver otherwise.
func (c *Config) NewSolver() (solver.Solver, error) {
	if c.Solver.Replay != "" {
		return &solver.ReplaySolver{Path: c.Solver.Replay}, nil
	}
	return solver.NewCommandSolver(c.CommandConfig())
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := c.GetMode(); err != nil {
		return err
	}
	if c.Bounds.MaxObjects < 0 || c.Bounds.MaxEvents < 0 {
		return fmt.Errorf("bounds must not be negative (max_objects=%d, max_events=%d)",
			c.Bounds.MaxObjects, c.Bounds.MaxEvents)
	}
	if c.Encode.DelegateDepth < 0 {
		return fmt.Errorf("encode.delegate_depth must not be negative: %d", c.Encode.DelegateDepth)
	}
	if c.Solver.Replay == "" && c.Solver.Command == "" {
		return fmt.Errorf("solver not configured (set solver.command, solver.replay or PASKET_SOLVER)")
	}
	if c.Solver.Timeout != "" {
		if _, err := time.ParseDuration(c.Solver.Timeout); err != nil {
			return fmt.Errorf("invalid solver.timeout %q: %w", c.Solver.Timeout, err)
		}
	}
	if c.Watch.Debounce != "" {
		if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
			return fmt.Errorf("invalid watch.debounce %q: %w", c.Watch.Debounce, err)
		}
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal enabled without a path")
	}
	return c.Logging.validate()
}
