package actions

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/agentd/internal/models"
)

func writeAction(path, content string) models.Action {
	return models.Action{
		Type:   models.ActionWrite,
		Params: map[string]interface{}{"path": path, "content": content},
	}
}

func TestReadHandler(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello"), 0644))

	h := &ReadHandler{Root: root}
	result, err := h.Execute(context.Background(), models.Action{
		Type:   models.ActionRead,
		Params: map[string]interface{}{"path": "notes.txt"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Output)
}

func TestReadHandlerMissingFile(t *testing.T) {
	h := &ReadHandler{Root: t.TempDir()}
	_, err := h.Execute(context.Background(), models.Action{
		Type:   models.ActionRead,
		Params: map[string]interface{}{"path": "absent.txt"},
	})
	assert.Error(t, err)
}

func TestResolvePathRejectsEscapes(t *testing.T) {
	root := t.TempDir()
	for _, path := range []string{"", "/etc/passwd", "../outside.txt", "a/../../outside.txt"} {
		_, err := resolvePath(root, path)
		assert.Error(t, err, "path %q should be rejected", path)
	}
}

func TestWriteHandlerCreatesAndUndoRemoves(t *testing.T) {
	root := t.TempDir()
	h := &WriteHandler{Root: root}
	action := writeAction("out/new.txt", "fresh content")

	result, err := h.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.Equal(t, "false", result.Metadata["existed"])

	data, err := os.ReadFile(filepath.Join(root, "out", "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "fresh content", string(data))

	require.NoError(t, h.Undo(context.Background(), action, result))
	_, err = os.Stat(filepath.Join(root, "out", "new.txt"))
	assert.True(t, os.IsNotExist(err), "undo removes a file the write created")
}

func TestWriteHandlerOverwriteAndUndoRestores(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "cfg.yaml"), []byte("old"), 0644))

	h := &WriteHandler{Root: root}
	action := writeAction("cfg.yaml", "new")

	result, err := h.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.Equal(t, "true", result.Metadata["existed"])
	assert.Equal(t, "old", result.Metadata["prior_content"])

	require.NoError(t, h.Undo(context.Background(), action, result))
	data, err := os.ReadFile(filepath.Join(root, "cfg.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestWriteHandlerRequiresContent(t *testing.T) {
	h := &WriteHandler{Root: t.TempDir()}
	_, err := h.Execute(context.Background(), models.Action{
		Type:   models.ActionWrite,
		Params: map[string]interface{}{"path": "x.txt"},
	})
	assert.Error(t, err)
}

func TestDeleteHandlerAndUndo(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "victim.txt"), []byte("keep me"), 0644))

	h := &DeleteHandler{Root: root}
	action := models.Action{
		Type:   models.ActionDelete,
		Params: map[string]interface{}{"path": "victim.txt"},
	}

	result, err := h.Execute(context.Background(), action)
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(root, "victim.txt"))
	assert.True(t, os.IsNotExist(statErr))

	require.NoError(t, h.Undo(context.Background(), action, result))
	data, err := os.ReadFile(filepath.Join(root, "victim.txt"))
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestDeleteHandlerMissingFileFails(t *testing.T) {
	h := &DeleteHandler{Root: t.TempDir()}
	_, err := h.Execute(context.Background(), models.Action{
		Type:   models.ActionDelete,
		Params: map[string]interface{}{"path": "absent.txt"},
	})
	assert.Error(t, err)
}

func TestSearchHandlerFindsMatches(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.go"), []byte("package main\nfunc target() {}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "b.go"), []byte("package main\n"), 0644))

	h := &SearchHandler{Root: root}
	result, err := h.Execute(context.Background(), models.Action{
		Type:   models.ActionSearch,
		Params: map[string]interface{}{"query": "target"},
	})
	require.NoError(t, err)
	assert.Contains(t, result.Output, filepath.Join("src", "a.go")+":2:")
	assert.Equal(t, "1", result.Metadata["matches"])
}

func TestSearchHandlerSkipsGitDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "config"), []byte("needle"), 0644))

	h := &SearchHandler{Root: root}
	result, err := h.Execute(context.Background(), models.Action{
		Type:   models.ActionSearch,
		Params: map[string]interface{}{"query": "needle"},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Output)
}

func TestSearchHandlerRequiresQuery(t *testing.T) {
	h := &SearchHandler{Root: t.TempDir()}
	_, err := h.Execute(context.Background(), models.Action{Type: models.ActionSearch})
	assert.Error(t, err)
}
