package actions

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/harrison/agentd/internal/models"
)

// CommitHandler stages and commits workspace changes. The commit hash is
// recorded so Undo can reset it away, but only while it is still HEAD.
type CommitHandler struct {
	Dir string
}

// Execute stages everything and commits with the "message" param.
func (h *CommitHandler) Execute(ctx context.Context, action models.Action) (*models.ActionResult, error) {
	message := action.Param("message")
	if message == "" {
		return nil, fmt.Errorf("message parameter is required")
	}

	if out, err := h.git(ctx, "add", "-A"); err != nil {
		return nil, fmt.Errorf("git add: %w: %s", err, out)
	}
	if out, err := h.git(ctx, "commit", "-m", message); err != nil {
		return nil, fmt.Errorf("git commit: %w: %s", err, out)
	}

	hash, err := h.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("git rev-parse: %w", err)
	}
	hash = strings.TrimSpace(hash)

	return &models.ActionResult{
		Output:   fmt.Sprintf("committed %s: %s", hash[:minInt(8, len(hash))], message),
		Metadata: map[string]string{"commit": hash},
	}, nil
}

// Undo resets the recorded commit away. It refuses to touch history when
// HEAD has moved past the commit it created.
func (h *CommitHandler) Undo(ctx context.Context, action models.Action, result *models.ActionResult) error {
	if result == nil || result.Metadata == nil || result.Metadata["commit"] == "" {
		return fmt.Errorf("commit undo requires the recorded commit hash")
	}
	recorded := result.Metadata["commit"]

	head, err := h.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return fmt.Errorf("git rev-parse: %w", err)
	}
	if strings.TrimSpace(head) != recorded {
		return fmt.Errorf("HEAD moved past commit %s, refusing to reset", recorded[:minInt(8, len(recorded))])
	}

	if out, err := h.git(ctx, "reset", "--hard", "HEAD~1"); err != nil {
		return fmt.Errorf("git reset: %w: %s", err, out)
	}
	return nil
}

func (h *CommitHandler) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = h.Dir
	output, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(output)), err
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
