package llm

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/agentd/internal/planner"
)

// fakeBinary writes a shell script that echoes its last -p argument, so
// tests can observe the prompt the client assembled.
func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-llm")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

func TestGenerateRequiresPrompt(t *testing.T) {
	c := NewClient()
	_, err := c.Generate(context.Background(), "")
	assert.Error(t, err)
}

func TestGenerateReturnsBinaryOutput(t *testing.T) {
	c := NewClient()
	c.BinaryPath = fakeBinary(t, `printf 'canned response'`)

	out, err := c.Generate(context.Background(), "say something")
	require.NoError(t, err)
	assert.Equal(t, "canned response", out)
}

func TestGenerateSurfacesFailureWithOutput(t *testing.T) {
	c := NewClient()
	c.BinaryPath = fakeBinary(t, `printf 'boom'; exit 1`)

	_, err := c.Generate(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm invocation failed")
	assert.Contains(t, err.Error(), "boom")
}

func TestGenerateHonorsTimeout(t *testing.T) {
	c := NewClient()
	c.BinaryPath = fakeBinary(t, `sleep 5`)
	c.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := c.Generate(context.Background(), "slow")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGeneratePlanIncludesGoalAndWorkspace(t *testing.T) {
	c := NewClient()
	// Echo every argument on its own line so the prompt is observable.
	c.BinaryPath = fakeBinary(t, `for a in "$@"; do printf '%s\n' "$a"; done`)

	out, err := c.GeneratePlan(context.Background(), "add request tracing", planner.WorkspaceContext{
		Root:  "/srv/app",
		Notes: "Go service",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Goal: add request tracing")
	assert.Contains(t, out, "Workspace root: /srv/app")
	assert.Contains(t, out, `"steps"`)
}

func TestProposeAlternativePassesPromptThrough(t *testing.T) {
	c := NewClient()
	c.BinaryPath = fakeBinary(t, `for a in "$@"; do printf '%s\n' "$a"; done`)

	out, err := c.ProposeAlternative(context.Background(), "previous attempt failed: timeout")
	require.NoError(t, err)
	assert.Contains(t, out, "previous attempt failed: timeout")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcde...", truncate("abcdefgh", 5))
}
