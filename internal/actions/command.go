package actions

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/harrison/agentd/internal/models"
)

// CommandHandler runs a shell command in the workspace. Commands are not
// undoable; rollback of their effects is the plan's responsibility.
type CommandHandler struct {
	Dir string
}

// Execute runs the "command" param via sh -c. A non-zero exit is an
// error carrying the combined output for classification.
func (h *CommandHandler) Execute(ctx context.Context, action models.Action) (*models.ActionResult, error) {
	command := action.Param("command")
	if command == "" {
		return nil, fmt.Errorf("command parameter is required")
	}

	dir := h.Dir
	if sub := action.Param("dir"); sub != "" {
		full, err := resolvePath(h.Dir, sub)
		if err != nil {
			return nil, err
		}
		dir = full
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("command failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	return &models.ActionResult{
		Output:   string(output),
		Metadata: map[string]string{"command": command},
	}, nil
}
