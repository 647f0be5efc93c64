package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/agentd/internal/models"
)

func TestFileLoggerCreatesRunLogAndSymlink(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "info")
	require.NoError(t, err)
	defer fl.Close()

	fl.LogInfo("first message")

	data, err := os.ReadFile(fl.RunFile())
	require.NoError(t, err)
	assert.Contains(t, string(data), "=== agentd Run Log ===")
	assert.Contains(t, string(data), "first message")

	// latest.log points at the current run file.
	target, err := os.Readlink(filepath.Join(dir, "latest.log"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(fl.RunFile()), target)
}

func TestFileLoggerLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "warn")
	require.NoError(t, err)
	defer fl.Close()

	fl.LogDebug("hidden")
	fl.LogInfo("also hidden")
	fl.LogError("visible")

	data, err := os.ReadFile(fl.RunFile())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "visible")
}

func TestFileLoggerSummaryWritesTaskDetail(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "info")
	require.NoError(t, err)
	defer fl.Close()

	task := sampleTask()
	task.Steps[1].Result.Error = "disk full"
	fl.LogSummary(models.TaskResult{
		Task:          task,
		Completed:     2,
		FallbacksUsed: 1,
		Duration:      3 * time.Second,
	})

	runData, err := os.ReadFile(fl.RunFile())
	require.NoError(t, err)
	assert.Contains(t, string(runData), "=== TASK SUMMARY ===")
	assert.Contains(t, string(runData), "task-1")

	detail, err := os.ReadFile(filepath.Join(dir, "tasks", "task-task-1.log"))
	require.NoError(t, err)
	assert.Contains(t, string(detail), "Goal: refactor the config loader")
	assert.Contains(t, string(detail), "Fallback used: fb-1")
	assert.Contains(t, string(detail), "disk full")
}

func TestFileLoggerStepResultAtDebug(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "debug")
	require.NoError(t, err)
	defer fl.Close()

	fl.LogStepResult(sampleTask().Steps[0])

	data, err := os.ReadFile(fl.RunFile())
	require.NoError(t, err)
	assert.Contains(t, string(data), "Read current config")
}

func TestFileLoggerCloseIsSafeToRepeat(t *testing.T) {
	fl, err := NewFileLogger(t.TempDir(), "info")
	require.NoError(t, err)

	require.NoError(t, fl.Close())
	require.NoError(t, fl.Close())

	// Writes after close are dropped, not panics.
	assert.NotPanics(t, func() { fl.LogInfo("after close") })
}
