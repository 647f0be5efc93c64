// Package llm invokes an external AI CLI for planning, self-correction,
// and content generation. The binary is configurable; it defaults to
// "claude" found in PATH.
package llm

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrison/agentd/internal/planner"
)

// DefaultSystemPrompt enforces JSON-only output for structured requests.
// Prose, markdown fences, or XML tags around the payload break parsing
// downstream, so the prompt forbids them up front.
const DefaultSystemPrompt = "You are a developer assistant. Your ONLY output must be valid JSON matching the requested structure. No markdown, no code fences, no XML tags, no prose. Output raw JSON only."

// agentdTmpDir is a clean temp directory for CLI invocations. Editor
// socket files under the default TMPDIR are known to crash some CLIs.
var agentdTmpDir string

func init() {
	agentdTmpDir = filepath.Join(os.TempDir(), "agentd-llm")
	os.MkdirAll(agentdTmpDir, 0755)
}

// Client is a reusable CLI-backed text client. It follows the http.Client
// pattern: create once, use many times. Safe for concurrent use.
type Client struct {
	// BinaryPath is the CLI binary to invoke. Defaults to "claude".
	BinaryPath string

	// Timeout bounds each invocation. Zero means the caller's context
	// deadline applies alone.
	Timeout time.Duration

	// SystemPrompt is sent with every invocation. Defaults to
	// DefaultSystemPrompt if empty.
	SystemPrompt string
}

// NewClient creates a Client with default settings.
func NewClient() *Client {
	return &Client{
		BinaryPath:   "claude",
		SystemPrompt: DefaultSystemPrompt,
	}
}

// Generate sends the prompt and returns the raw text response.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	systemPrompt := c.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	args := []string{
		"--system-prompt", systemPrompt,
		"-p", prompt,
		"--output-format", "text",
		"--settings", `{"disableAllHooks": true}`,
	}

	binary := c.BinaryPath
	if binary == "" {
		binary = "claude"
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	// Killing the CLI does not kill children it spawned, and a surviving
	// child keeps the output pipe open. WaitDelay forces Wait to abandon
	// the pipe shortly after the context ends instead of blocking until
	// every descendant exits.
	cmd.WaitDelay = time.Second
	setCleanEnv(cmd)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("llm invocation failed: %w (output: %s)", err, truncate(string(output), 500))
	}

	return string(output), nil
}

// GeneratePlan implements planner.PlanningService: it asks the model to
// decompose the goal into the plan JSON contract.
func (c *Client) GeneratePlan(ctx context.Context, goal string, wsCtx planner.WorkspaceContext) (string, error) {
	var b strings.Builder
	b.WriteString("Decompose the following goal into an ordered plan.\n\n")
	fmt.Fprintf(&b, "Goal: %s\n", goal)
	if wsCtx.Root != "" {
		fmt.Fprintf(&b, "Workspace root: %s\n", wsCtx.Root)
	}
	if wsCtx.Notes != "" {
		fmt.Fprintf(&b, "Workspace notes: %s\n", wsCtx.Notes)
	}
	b.WriteString(`
Respond with a JSON object:
{
  "title": "short plan title",
  "steps": [
    {
      "title": "what this step does",
      "action": "one of: read, write, delete, search, execute-command, generate, refactor, commit, manual-approval, request-human-input",
      "params": {"path": "...", "content": "...", "command": "...", "query": "...", "prompt": "...", "message": "..."},
      "optional": false,
      "max_retries": 3
    }
  ]
}
Include only the params each action needs. Order steps so earlier steps
produce what later steps consume.`)

	return c.Generate(ctx, b.String())
}

// ProposeAlternative implements corrector.ReasoningService. The prompt is
// built by the corrector; the model's raw response is returned as-is.
func (c *Client) ProposeAlternative(ctx context.Context, prompt string) (string, error) {
	return c.Generate(ctx, prompt)
}

// setCleanEnv gives the command a private TMPDIR free of editor sockets.
func setCleanEnv(cmd *exec.Cmd) {
	cmd.Env = os.Environ()

	found := false
	for i, env := range cmd.Env {
		if strings.HasPrefix(env, "TMPDIR=") {
			cmd.Env[i] = "TMPDIR=" + agentdTmpDir
			found = true
			break
		}
	}
	if !found {
		cmd.Env = append(cmd.Env, "TMPDIR="+agentdTmpDir)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
