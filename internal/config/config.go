// Package config loads agentd configuration from YAML, merging file
// values over defaults. A missing config file is not an error; a
// malformed one is.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Approval modes decide how destructive steps get signed off.
const (
	// ApprovalModeAuto approves every request without asking.
	ApprovalModeAuto = "auto"
	// ApprovalModeDeny rejects every request; destructive steps skip.
	ApprovalModeDeny = "deny"
	// ApprovalModeFile resolves requests from answer files in ResponseDir.
	ApprovalModeFile = "file"
)

// EngineConfig tunes step execution.
type EngineConfig struct {
	// StepTimeout bounds a single handler invocation.
	StepTimeout time.Duration `yaml:"step_timeout"`

	// MaxRetries is the default per-step retry budget.
	MaxRetries int `yaml:"max_retries"`

	// RetryBaseDelay seeds the exponential backoff.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`

	// RetryMaxDelay caps the backoff.
	RetryMaxDelay time.Duration `yaml:"retry_max_delay"`
}

// CorrectorConfig tunes AI-assisted self-correction.
type CorrectorConfig struct {
	// Enabled toggles self-correction between retries.
	Enabled bool `yaml:"enabled"`

	// MinConfidence is the lowest proposal confidence worth substituting.
	MinConfidence int `yaml:"min_confidence"`
}

// QueueConfig tunes the background task queue.
type QueueConfig struct {
	// Concurrency is the worker slot limit.
	Concurrency int `yaml:"concurrency"`

	// MaxRetries bounds re-attempts per item.
	MaxRetries int `yaml:"max_retries"`

	// HistorySize bounds the retained finished-item history.
	HistorySize int `yaml:"history_size"`

	// SnapshotPath is where queue state is persisted across restarts.
	SnapshotPath string `yaml:"snapshot_path"`
}

// PatternsConfig tunes the historical pattern store.
type PatternsConfig struct {
	// Enabled toggles pattern lookups and recording.
	Enabled bool `yaml:"enabled"`

	// DBPath is the SQLite database location.
	DBPath string `yaml:"db_path"`
}

// ApprovalConfig selects the approval channel.
type ApprovalConfig struct {
	// Mode is one of auto, deny, file.
	Mode string `yaml:"mode"`

	// ResponseDir holds answer files in file mode.
	ResponseDir string `yaml:"response_dir"`
}

// LoggingConfig tunes log output.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `yaml:"level"`

	// Dir is where per-run log files are written.
	Dir string `yaml:"dir"`
}

// Config is the full agentd configuration.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Corrector CorrectorConfig `yaml:"corrector"`
	Queue     QueueConfig     `yaml:"queue"`
	Patterns  PatternsConfig  `yaml:"patterns"`
	Approval  ApprovalConfig  `yaml:"approval"`
	Logging   LoggingConfig   `yaml:"logging"`

	// StateDir holds checkpoints and other run state.
	StateDir string `yaml:"state_dir"`
}

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() *Config {
	home := DefaultHome()
	return &Config{
		Engine: EngineConfig{
			StepTimeout:    5 * time.Minute,
			MaxRetries:     3,
			RetryBaseDelay: time.Second,
			RetryMaxDelay:  30 * time.Second,
		},
		Corrector: CorrectorConfig{
			Enabled:       true,
			MinConfidence: 40,
		},
		Queue: QueueConfig{
			Concurrency:  3,
			MaxRetries:   3,
			HistorySize:  100,
			SnapshotPath: filepath.Join(home, "queue.json"),
		},
		Patterns: PatternsConfig{
			Enabled: true,
			DBPath:  filepath.Join(home, "patterns.db"),
		},
		Approval: ApprovalConfig{
			Mode:        ApprovalModeAuto,
			ResponseDir: filepath.Join(home, "approvals"),
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   filepath.Join(home, "logs"),
		},
		StateDir: filepath.Join(home, "state"),
	}
}

// DefaultHome resolves the agentd home directory: $AGENTD_HOME if set,
// otherwise .agentd under the working directory.
func DefaultHome() string {
	if home := os.Getenv("AGENTD_HOME"); home != "" {
		return home
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ".agentd"
	}
	return filepath.Join(cwd, ".agentd")
}

// LoadConfig reads the YAML file at path and merges it over defaults.
// A missing file yields the defaults without error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the runtime cannot honor.
func (c *Config) Validate() error {
	if c.Engine.StepTimeout <= 0 {
		return fmt.Errorf("engine.step_timeout must be positive")
	}
	if c.Engine.MaxRetries < 1 {
		return fmt.Errorf("engine.max_retries must be at least 1")
	}
	if c.Engine.RetryBaseDelay <= 0 || c.Engine.RetryMaxDelay < c.Engine.RetryBaseDelay {
		return fmt.Errorf("engine retry delays must be positive with max >= base")
	}
	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("queue.concurrency must be at least 1")
	}
	if c.Queue.HistorySize < 1 {
		return fmt.Errorf("queue.history_size must be at least 1")
	}
	if c.Corrector.MinConfidence < 0 || c.Corrector.MinConfidence > 100 {
		return fmt.Errorf("corrector.min_confidence must be in [0,100]")
	}
	switch c.Approval.Mode {
	case ApprovalModeAuto, ApprovalModeDeny, ApprovalModeFile:
	default:
		return fmt.Errorf("approval.mode must be one of auto, deny, file (got %q)", c.Approval.Mode)
	}
	if c.Approval.Mode == ApprovalModeFile && c.Approval.ResponseDir == "" {
		return fmt.Errorf("approval.response_dir is required in file mode")
	}
	return nil
}
