package actions

import (
	"context"
	"fmt"
	"os"

	"github.com/harrison/agentd/internal/models"
)

// GenerateHandler produces text with the AI backend. It never writes
// files; a later write step consumes its output.
type GenerateHandler struct {
	LLM Generator
}

// Execute sends the "prompt" param to the backend.
func (h *GenerateHandler) Execute(ctx context.Context, action models.Action) (*models.ActionResult, error) {
	prompt := action.Param("prompt")
	if prompt == "" {
		return nil, fmt.Errorf("prompt parameter is required")
	}

	output, err := h.LLM.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	return &models.ActionResult{Output: output}, nil
}

// RefactorHandler asks the AI backend to rework an existing file. The
// proposal is returned as output, not applied; applying it is a separate
// write step that goes through the approval gate.
type RefactorHandler struct {
	Root string
	LLM  Generator
}

// Execute reads the file named by "path" and requests the change
// described by "prompt".
func (h *RefactorHandler) Execute(ctx context.Context, action models.Action) (*models.ActionResult, error) {
	full, err := resolvePath(h.Root, action.Param("path"))
	if err != nil {
		return nil, err
	}
	prompt := action.Param("prompt")
	if prompt == "" {
		return nil, fmt.Errorf("prompt parameter is required")
	}

	current, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", action.Param("path"), err)
	}

	request := fmt.Sprintf("Rework the following file.\n\nInstruction: %s\n\nFile %s:\n%s\n\nRespond with the complete reworked file content only.",
		prompt, action.Param("path"), string(current))

	output, err := h.LLM.Generate(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("refactor: %w", err)
	}

	return &models.ActionResult{
		Output:   output,
		Metadata: map[string]string{"path": action.Param("path")},
	}, nil
}
