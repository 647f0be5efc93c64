package models

import (
	"fmt"
	"strings"
)

// TaskStatus tracks a task through its state machine:
// PLANNING → AWAITING_APPROVAL → IN_PROGRESS → (PAUSED ⇄ IN_PROGRESS)
// → {COMPLETED | FAILED | CANCELLED}.
type TaskStatus string

const (
	TaskPlanning         TaskStatus = "PLANNING"
	TaskAwaitingApproval TaskStatus = "AWAITING_APPROVAL"
	TaskInProgress       TaskStatus = "IN_PROGRESS"
	TaskPaused           TaskStatus = "PAUSED"
	TaskCompleted        TaskStatus = "COMPLETED"
	TaskFailed           TaskStatus = "FAILED"
	TaskCancelled        TaskStatus = "CANCELLED"
)

// IsTerminal reports whether the task has reached a final state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// StepStatus tracks a step through its state machine:
// PENDING → (AWAITING_APPROVAL ⇄ APPROVED/REJECTED) → IN_PROGRESS
// → {COMPLETED | FAILED | SKIPPED}.
type StepStatus string

const (
	StepPending          StepStatus = "PENDING"
	StepAwaitingApproval StepStatus = "AWAITING_APPROVAL"
	StepApproved         StepStatus = "APPROVED"
	StepRejected         StepStatus = "REJECTED"
	StepInProgress       StepStatus = "IN_PROGRESS"
	StepCompleted        StepStatus = "COMPLETED"
	StepFailed           StepStatus = "FAILED"
	StepSkipped          StepStatus = "SKIPPED"
)

// IsTerminal reports whether the step has reached a final state.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepFailed || s == StepSkipped
}

// RiskLevel classifies a step's likelihood of failure from its confidence
// score: low ≥70, medium 40–69, high <40.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskForConfidence maps a clamped [0,100] confidence score to a risk level.
func RiskForConfidence(confidence int) RiskLevel {
	switch {
	case confidence >= 70:
		return RiskLow
	case confidence >= 40:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// NeedsFallbacks reports whether fallback plans are generated for this
// risk level. Fallback plans exist only for medium and high risk.
func (r RiskLevel) NeedsFallbacks() bool {
	return r == RiskMedium || r == RiskHigh
}

// Priority orders background queue items. Higher values dispatch first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String returns the queue priority name.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "CRITICAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityNormal:
		return "NORMAL"
	case PriorityLow:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// ParsePriority converts a priority name (any case) to its Priority.
// Unknown names report an error rather than defaulting silently.
func ParsePriority(name string) (Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "CRITICAL":
		return PriorityCritical, nil
	case "HIGH":
		return PriorityHigh, nil
	case "NORMAL", "":
		return PriorityNormal, nil
	case "LOW":
		return PriorityLow, nil
	default:
		return PriorityNormal, fmt.Errorf("unknown priority %q", name)
	}
}

// ItemStatus tracks a background queue item.
type ItemStatus string

const (
	ItemQueued    ItemStatus = "QUEUED"
	ItemRunning   ItemStatus = "RUNNING"
	ItemPaused    ItemStatus = "PAUSED"
	ItemCompleted ItemStatus = "COMPLETED"
	ItemFailed    ItemStatus = "FAILED"
	ItemCancelled ItemStatus = "CANCELLED"
)

// IsTerminal reports whether the item has reached a final state.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemCompleted || s == ItemFailed || s == ItemCancelled
}
