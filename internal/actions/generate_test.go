package actions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/agentd/internal/models"
)

func TestGenerateHandler(t *testing.T) {
	gen := &stubGenerator{response: "generated body"}
	h := &GenerateHandler{LLM: gen}

	result, err := h.Execute(context.Background(), models.Action{
		Type:   models.ActionGenerate,
		Params: map[string]interface{}{"prompt": "write a changelog entry"},
	})
	require.NoError(t, err)
	assert.Equal(t, "generated body", result.Output)
	assert.Equal(t, []string{"write a changelog entry"}, gen.prompts)
}

func TestGenerateHandlerRequiresPrompt(t *testing.T) {
	h := &GenerateHandler{LLM: &stubGenerator{}}
	_, err := h.Execute(context.Background(), models.Action{Type: models.ActionGenerate})
	assert.Error(t, err)
}

func TestGenerateHandlerPropagatesBackendError(t *testing.T) {
	h := &GenerateHandler{LLM: &stubGenerator{err: errors.New("backend down")}}
	_, err := h.Execute(context.Background(), models.Action{
		Type:   models.ActionGenerate,
		Params: map[string]interface{}{"prompt": "x"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestRefactorHandlerIncludesFileContent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0644))

	gen := &stubGenerator{response: "package main // reworked"}
	h := &RefactorHandler{Root: root, LLM: gen}

	result, err := h.Execute(context.Background(), models.Action{
		Type:   models.ActionRefactor,
		Params: map[string]interface{}{"path": "main.go", "prompt": "add error handling"},
	})
	require.NoError(t, err)
	assert.Equal(t, "package main // reworked", result.Output)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "add error handling")
	assert.Contains(t, gen.prompts[0], "package main")
}

func TestRefactorHandlerMissingFile(t *testing.T) {
	h := &RefactorHandler{Root: t.TempDir(), LLM: &stubGenerator{}}
	_, err := h.Execute(context.Background(), models.Action{
		Type:   models.ActionRefactor,
		Params: map[string]interface{}{"path": "absent.go", "prompt": "x"},
	})
	assert.Error(t, err)
}
