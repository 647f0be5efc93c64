package models

import (
	"errors"
	"time"
)

// Task is a planned unit of work: an ordered, immutable list of steps
// derived from a natural-language goal. A task is created by the planner
// and mutated only by the execution engine that owns it.
type Task struct {
	ID            string     `json:"id"`
	Goal          string     `json:"goal"`
	Status        TaskStatus `json:"status"`
	Steps         []*Step    `json:"steps"`
	WorkspaceRoot string     `json:"workspace_root,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`

	// ManualFallback marks a task produced because the planning response
	// could not be parsed; its single step requires human approval.
	ManualFallback bool `json:"manual_fallback,omitempty"`
}

// Validate checks that the task is well-formed before execution.
func (t *Task) Validate() error {
	if t.ID == "" {
		return errors.New("task id is required")
	}
	if t.Goal == "" {
		return errors.New("task goal is required")
	}
	if len(t.Steps) == 0 {
		return errors.New("task has no steps")
	}
	for _, s := range t.Steps {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Step is one unit of task execution bound to exactly one handler
// invocation per attempt.
type Step struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Action       Action         `json:"action"`
	Status       StepStatus     `json:"status"`
	AttemptCount int            `json:"attempt_count"`
	MaxRetries   int            `json:"max_retries"`
	Confidence   int            `json:"confidence"`
	Risk         RiskLevel      `json:"risk"`
	Optional     bool           `json:"optional,omitempty"`
	Fallbacks    []FallbackPlan `json:"fallbacks,omitempty"`
	Result       *StepResult    `json:"result,omitempty"`

	// SkipReason records why a SKIPPED step was not executed, e.g. an
	// approval rejection.
	SkipReason string `json:"skip_reason,omitempty"`
}

// Validate checks that the step is well-formed.
func (s *Step) Validate() error {
	if s.ID == "" {
		return errors.New("step id is required")
	}
	if s.Title == "" {
		return errors.New("step title is required")
	}
	if s.Action.Type == "" {
		return errors.New("step action type is required")
	}
	return nil
}

// StepResult records the outcome of a step so that skipped, failed and
// rolled-back steps remain individually inspectable after the run.
type StepResult struct {
	Output        string        `json:"output,omitempty"`
	Error         string        `json:"error,omitempty"`
	Attempts      int           `json:"attempts"`
	Duration      time.Duration `json:"duration"`
	UsedFallback  bool          `json:"used_fallback,omitempty"`
	FallbackID    string        `json:"fallback_id,omitempty"`
	SelfCorrected bool          `json:"self_corrected,omitempty"`
	RolledBack    bool          `json:"rolled_back,omitempty"`
	RollbackError string        `json:"rollback_error,omitempty"`
}

// FallbackPlan is a pre-computed alternative action tried, in order, after
// a step's primary retries are exhausted.
type FallbackPlan struct {
	ID               string `json:"id"`
	StepID           string `json:"step_id"`
	TriggerCondition string `json:"trigger_condition"`
	Action           Action `json:"action"`
	Confidence       int    `json:"confidence"`
	Reasoning        string `json:"reasoning,omitempty"`
}

// ApprovalRequest is the payload emitted when a destructive step needs
// external sign-off before it may proceed.
type ApprovalRequest struct {
	TaskID      string    `json:"task_id"`
	StepID      string    `json:"step_id"`
	RiskLevel   RiskLevel `json:"risk_level"`
	Reversible  bool      `json:"reversible"`
	Description string    `json:"description"`
}

// TaskResult aggregates a finished run for logging and archival.
type TaskResult struct {
	Task          *Task         `json:"task"`
	Completed     int           `json:"completed"`
	Failed        int           `json:"failed"`
	Skipped       int           `json:"skipped"`
	FallbacksUsed int           `json:"fallbacks_used"`
	RolledBack    int           `json:"rolled_back"`
	Duration      time.Duration `json:"duration"`
}
