// Package actions provides the built-in step handlers: file operations,
// shell commands, git commits, AI generation, and human gates. Handlers
// that change state implement Undo so the engine can roll them back.
package actions

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/harrison/agentd/internal/engine"
	"github.com/harrison/agentd/internal/models"
)

// Generator produces text from a prompt. Satisfied by llm.Client.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options configures the built-in handler set.
type Options struct {
	// Root is the workspace directory relative action paths resolve
	// against. Required.
	Root string

	// LLM backs the generate and refactor handlers. When nil those two
	// handlers are not registered.
	LLM Generator
}

// RegisterAll binds the built-in handlers into the registry. The returned
// error names the first missing requirement.
func RegisterAll(reg *engine.Registry, opts Options) error {
	if opts.Root == "" {
		return fmt.Errorf("workspace root is required")
	}

	reg.Register(models.ActionRead, &ReadHandler{Root: opts.Root})
	reg.Register(models.ActionWrite, &WriteHandler{Root: opts.Root})
	reg.Register(models.ActionDelete, &DeleteHandler{Root: opts.Root})
	reg.Register(models.ActionSearch, &SearchHandler{Root: opts.Root})
	reg.Register(models.ActionExecuteCommand, &CommandHandler{Dir: opts.Root})
	reg.Register(models.ActionCommit, &CommitHandler{Dir: opts.Root})
	reg.Register(models.ActionManualApproval, &ManualApprovalHandler{})
	reg.Register(models.ActionRequestHumanInput, &RequestHumanInputHandler{})

	if opts.LLM != nil {
		reg.Register(models.ActionGenerate, &GenerateHandler{LLM: opts.LLM})
		reg.Register(models.ActionRefactor, &RefactorHandler{Root: opts.Root, LLM: opts.LLM})
	}

	return nil
}

// resolvePath joins a relative action path with the workspace root and
// rejects escapes above it.
func resolvePath(root, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path parameter is required")
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("path must be relative to the workspace: %s", path)
	}
	full := filepath.Join(root, path)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
		return "", fmt.Errorf("path escapes the workspace: %s", path)
	}
	return full, nil
}
