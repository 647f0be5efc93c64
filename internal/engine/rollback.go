package engine

import (
	"context"
	"fmt"

	"github.com/harrison/agentd/internal/models"
)

// rollbackEntry pairs a completed step with the handler and action that
// produced its effects, so the effects can be undone later.
type rollbackEntry struct {
	step    *models.Step
	action  models.Action
	result  *models.ActionResult
	handler Handler
}

// RollbackHistory records completed steps for a single task in completion
// order. Each engine owns exactly one history; it is never shared across
// tasks, so engines stay independently testable.
type RollbackHistory struct {
	entries []rollbackEntry
}

// NewRollbackHistory creates an empty history.
func NewRollbackHistory() *RollbackHistory {
	return &RollbackHistory{}
}

// Record appends a completed step. The action recorded is the one that
// actually succeeded, which may be a self-correction or fallback rather
// than the step's original action.
func (h *RollbackHistory) Record(step *models.Step, action models.Action, result *models.ActionResult, handler Handler) {
	h.entries = append(h.entries, rollbackEntry{
		step:    step,
		action:  action,
		result:  result,
		handler: handler,
	})
}

// Len returns the number of recorded steps.
func (h *RollbackHistory) Len() int {
	return len(h.entries)
}

// CompletedStepIDs returns the recorded step IDs in completion order,
// suitable for checkpointing.
func (h *RollbackHistory) CompletedStepIDs() []string {
	ids := make([]string, 0, len(h.entries))
	for _, e := range h.entries {
		ids = append(ids, e.step.ID)
	}
	return ids
}

// Unwind undoes every recorded step exactly once, in reverse completion
// order, and clears the history. Rollback is best-effort: an undo failure
// is recorded on the step and collected, never hidden, and the remaining
// undos still run. A handler without an Undo is treated as having nothing
// to reverse.
func (h *RollbackHistory) Unwind(ctx context.Context) error {
	var failures []UndoFailure

	for i := len(h.entries) - 1; i >= 0; i-- {
		e := h.entries[i]

		if e.step.Result == nil {
			e.step.Result = &models.StepResult{}
		}

		undoable, ok := e.handler.(UndoableHandler)
		if !ok {
			e.step.Result.RolledBack = true
			continue
		}

		if err := undoable.Undo(ctx, e.action, e.result); err != nil {
			e.step.Result.RollbackError = err.Error()
			failures = append(failures, UndoFailure{
				StepID: e.step.ID,
				Title:  e.step.Title,
				Err:    fmt.Errorf("undo %s: %w", e.action.Type, err),
			})
			continue
		}
		e.step.Result.RolledBack = true
	}

	h.entries = nil

	if len(failures) > 0 {
		return &RollbackPartialError{Failures: failures}
	}
	return nil
}
