// Package checkpoint persists task progress snapshots at step boundaries
// so an interrupted run can resume instead of re-executing completed
// steps. One JSON file per task, written atomically under a file lock.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harrison/agentd/internal/filelock"
	"github.com/harrison/agentd/internal/models"
)

// Checkpoint is a persisted snapshot of task progress: enough to resume
// after interruption, never more. It is written only at step boundaries.
type Checkpoint struct {
	TaskID         string    `json:"task_id"`
	StepIndex      int       `json:"step_index"`
	CompletedSteps []string  `json:"completed_steps"`
	SavedAt        time.Time `json:"saved_at"`
}

// Store keeps one checkpoint file per task under a state directory. It
// satisfies engine.Checkpointer.
type Store struct {
	dir string
}

// NewStore creates the state directory if needed and returns a Store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// SaveCheckpoint atomically replaces the task's checkpoint.
func (s *Store) SaveCheckpoint(ctx context.Context, taskID string, stepIndex int, completedSteps []string) error {
	if taskID == "" {
		return fmt.Errorf("checkpoint requires a task id")
	}

	cp := Checkpoint{
		TaskID:         taskID,
		StepIndex:      stepIndex,
		CompletedSteps: completedSteps,
		SavedAt:        time.Now().UTC(),
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	if err := filelock.LockAndWrite(s.path(taskID), data); err != nil {
		return fmt.Errorf("write checkpoint for task %s: %w", taskID, err)
	}
	return nil
}

// LoadCheckpoint returns the task's checkpoint, or nil when none exists.
func (s *Store) LoadCheckpoint(ctx context.Context, taskID string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.path(taskID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint for task %s: %w", taskID, err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint for task %s: %w", taskID, err)
	}
	return &cp, nil
}

// SavePlan persists the planned task so a later process can resume it.
// Written once, right after planning, before execution mutates the task.
func (s *Store) SavePlan(task *models.Task) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("plan requires a task id")
	}
	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	if err := filelock.LockAndWrite(s.planPath(task.ID), data); err != nil {
		return fmt.Errorf("write plan for task %s: %w", task.ID, err)
	}
	return nil
}

// LoadPlan returns the persisted plan for the task, or nil when none
// exists.
func (s *Store) LoadPlan(taskID string) (*models.Task, error) {
	data, err := os.ReadFile(s.planPath(taskID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read plan for task %s: %w", taskID, err)
	}

	var task models.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("decode plan for task %s: %w", taskID, err)
	}
	return &task, nil
}

// Restore rewinds a loaded plan to a runnable state: steps recorded as
// completed in the checkpoint stay completed, everything else reverts to
// pending so an interrupted attempt re-executes. A nil checkpoint resets
// the whole task.
func Restore(task *models.Task, cp *Checkpoint) {
	done := map[string]bool{}
	if cp != nil {
		for _, id := range cp.CompletedSteps {
			done[id] = true
		}
	}

	for _, step := range task.Steps {
		if done[step.ID] {
			step.Status = models.StepCompleted
			continue
		}
		step.Status = models.StepPending
		step.AttemptCount = 0
		step.Result = nil
		step.SkipReason = ""
	}
	task.Status = models.TaskPlanning
}

// Delete removes the task's checkpoint and plan once the task reaches a
// terminal status. Deleting absent files is not an error.
func (s *Store) Delete(taskID string) error {
	for _, path := range []string{s.path(taskID), s.planPath(taskID)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete checkpoint for task %s: %w", taskID, err)
		}
	}
	return nil
}

func (s *Store) path(taskID string) string {
	return filepath.Join(s.dir, taskID+".json")
}

func (s *Store) planPath(taskID string) string {
	return filepath.Join(s.dir, taskID+".plan.json")
}
