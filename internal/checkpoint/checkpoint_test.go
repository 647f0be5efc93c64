package checkpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/agentd/internal/models"
)

func TestSaveAndLoadCheckpoint(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.SaveCheckpoint(ctx, "task-1", 2, []string{"s1", "s2", "s3"}))

	cp, err := store.LoadCheckpoint(ctx, "task-1")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "task-1", cp.TaskID)
	assert.Equal(t, 2, cp.StepIndex)
	assert.Equal(t, []string{"s1", "s2", "s3"}, cp.CompletedSteps)
	assert.False(t, cp.SavedAt.IsZero())
}

func TestSaveCheckpointOverwrites(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.SaveCheckpoint(ctx, "task-1", 0, []string{"s1"}))
	require.NoError(t, store.SaveCheckpoint(ctx, "task-1", 1, []string{"s1", "s2"}))

	cp, err := store.LoadCheckpoint(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cp.StepIndex)
	assert.Len(t, cp.CompletedSteps, 2)
}

func TestLoadMissingCheckpointReturnsNil(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	cp, err := store.LoadCheckpoint(context.Background(), "never-saved")
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestSaveCheckpointRequiresTaskID(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, store.SaveCheckpoint(context.Background(), "", 0, nil))
}

func TestDeleteCheckpoint(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.SaveCheckpoint(ctx, "task-1", 0, []string{"s1"}))
	require.NoError(t, store.Delete("task-1"))
	require.NoError(t, store.Delete("task-1"), "deleting an absent checkpoint is fine")

	cp, err := store.LoadCheckpoint(ctx, "task-1")
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func resumableTask() *models.Task {
	return &models.Task{
		ID:   "task-1",
		Goal: "restore demo",
		Steps: []*models.Step{
			{ID: "s1", Title: "first", Action: models.Action{Type: models.ActionRead}},
			{ID: "s2", Title: "second", Action: models.Action{Type: models.ActionWrite}},
			{ID: "s3", Title: "third", Action: models.Action{Type: models.ActionCommit}},
		},
	}
}

func TestSaveAndLoadPlan(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	task := resumableTask()
	require.NoError(t, store.SavePlan(task))

	loaded, err := store.LoadPlan("task-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, task.Goal, loaded.Goal)
	require.Len(t, loaded.Steps, 3)
	assert.Equal(t, "s2", loaded.Steps[1].ID)
}

func TestLoadMissingPlanReturnsNil(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	loaded, err := store.LoadPlan("never-saved")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRestoreMarksCheckpointedStepsCompleted(t *testing.T) {
	task := resumableTask()
	task.Steps[0].Status = models.StepCompleted
	task.Steps[1].Status = models.StepInProgress
	task.Steps[1].AttemptCount = 2
	task.Steps[1].Result = &models.StepResult{Error: "interrupted"}
	task.Status = models.TaskInProgress

	Restore(task, &Checkpoint{TaskID: "task-1", CompletedSteps: []string{"s1"}})

	assert.Equal(t, models.StepCompleted, task.Steps[0].Status)
	assert.Equal(t, models.StepPending, task.Steps[1].Status)
	assert.Zero(t, task.Steps[1].AttemptCount)
	assert.Nil(t, task.Steps[1].Result)
	assert.Equal(t, models.StepPending, task.Steps[2].Status)
	assert.Equal(t, models.TaskPlanning, task.Status)
}

func TestRestoreWithoutCheckpointResetsAllSteps(t *testing.T) {
	task := resumableTask()
	task.Steps[0].Status = models.StepCompleted

	Restore(task, nil)

	for _, step := range task.Steps {
		assert.Equal(t, models.StepPending, step.Status)
	}
}

func TestDeleteRemovesPlanToo(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.SavePlan(resumableTask()))
	require.NoError(t, store.Delete("task-1"))

	loaded, err := store.LoadPlan("task-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
