package actions

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/agentd/internal/models"
)

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "Test"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	// An initial commit so undo's HEAD~1 reset has a parent.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("init"), 0644))
	for _, args := range [][]string{{"add", "-A"}, {"commit", "-m", "initial"}} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	return dir
}

func commitAction(message string) models.Action {
	return models.Action{
		Type:   models.ActionCommit,
		Params: map[string]interface{}{"message": message},
	}
}

func TestCommitHandlerCommitsStagedChanges(t *testing.T) {
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feature.txt"), []byte("new"), 0644))

	h := &CommitHandler{Dir: dir}
	result, err := h.Execute(context.Background(), commitAction("add feature"))
	require.NoError(t, err)
	assert.Contains(t, result.Output, "add feature")
	assert.NotEmpty(t, result.Metadata["commit"])

	log, err := h.git(context.Background(), "log", "--oneline")
	require.NoError(t, err)
	assert.Contains(t, log, "add feature")
}

func TestCommitHandlerUndoResetsCommit(t *testing.T) {
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feature.txt"), []byte("new"), 0644))

	h := &CommitHandler{Dir: dir}
	action := commitAction("add feature")
	result, err := h.Execute(context.Background(), action)
	require.NoError(t, err)

	require.NoError(t, h.Undo(context.Background(), action, result))

	log, err := h.git(context.Background(), "log", "--oneline")
	require.NoError(t, err)
	assert.NotContains(t, log, "add feature")
	assert.Equal(t, 1, len(strings.Split(log, "\n")))
}

func TestCommitHandlerUndoRefusesWhenHeadMoved(t *testing.T) {
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0644))

	h := &CommitHandler{Dir: dir}
	action := commitAction("first")
	result, err := h.Execute(context.Background(), action)
	require.NoError(t, err)

	// A later commit makes the recorded one no longer HEAD.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0644))
	_, err = h.Execute(context.Background(), commitAction("second"))
	require.NoError(t, err)

	err = h.Undo(context.Background(), action, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing")
}

func TestCommitHandlerRequiresMessage(t *testing.T) {
	h := &CommitHandler{Dir: t.TempDir()}
	_, err := h.Execute(context.Background(), models.Action{Type: models.ActionCommit})
	assert.Error(t, err)
}
