package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5*time.Minute, cfg.Engine.StepTimeout)
	assert.Equal(t, 3, cfg.Engine.MaxRetries)
	assert.Equal(t, time.Second, cfg.Engine.RetryBaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Engine.RetryMaxDelay)
	assert.Equal(t, 3, cfg.Queue.Concurrency)
	assert.Equal(t, 100, cfg.Queue.HistorySize)
	assert.Equal(t, ApprovalModeAuto, cfg.Approval.Mode)
	assert.True(t, cfg.Corrector.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "no-such-file.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Queue.Concurrency, cfg.Queue.Concurrency)
}

func TestLoadConfigMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  step_timeout: 90s
  max_retries: 5
queue:
  concurrency: 8
approval:
  mode: deny
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Engine.StepTimeout)
	assert.Equal(t, 5, cfg.Engine.MaxRetries)
	assert.Equal(t, 8, cfg.Queue.Concurrency)
	assert.Equal(t, ApprovalModeDeny, cfg.Approval.Mode)

	// Untouched sections keep their defaults.
	assert.Equal(t, time.Second, cfg.Engine.RetryBaseDelay)
	assert.Equal(t, 100, cfg.Queue.HistorySize)
	assert.True(t, cfg.Patterns.Enabled)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: [not a mapping"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero step timeout",
			mutate:  func(c *Config) { c.Engine.StepTimeout = 0 },
			wantErr: "step_timeout",
		},
		{
			name:    "max retries below one",
			mutate:  func(c *Config) { c.Engine.MaxRetries = 0 },
			wantErr: "max_retries",
		},
		{
			name:    "max delay below base delay",
			mutate:  func(c *Config) { c.Engine.RetryMaxDelay = c.Engine.RetryBaseDelay / 2 },
			wantErr: "retry delays",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Queue.Concurrency = 0 },
			wantErr: "concurrency",
		},
		{
			name:    "zero history",
			mutate:  func(c *Config) { c.Queue.HistorySize = 0 },
			wantErr: "history_size",
		},
		{
			name:    "confidence out of range",
			mutate:  func(c *Config) { c.Corrector.MinConfidence = 101 },
			wantErr: "min_confidence",
		},
		{
			name:    "unknown approval mode",
			mutate:  func(c *Config) { c.Approval.Mode = "ask-nicely" },
			wantErr: "approval.mode",
		},
		{
			name: "file mode without response dir",
			mutate: func(c *Config) {
				c.Approval.Mode = ApprovalModeFile
				c.Approval.ResponseDir = ""
			},
			wantErr: "response_dir",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultHomeEnvOverride(t *testing.T) {
	t.Setenv("AGENTD_HOME", "/tmp/custom-agentd")
	assert.Equal(t, "/tmp/custom-agentd", DefaultHome())
}
