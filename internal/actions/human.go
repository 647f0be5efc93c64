package actions

import (
	"context"

	"github.com/harrison/agentd/internal/models"
)

// ManualApprovalHandler is the execution half of a manual-approval step.
// The approval itself happens at the engine's gate before execution;
// reaching this handler means a human signed off, so it only records
// that fact.
type ManualApprovalHandler struct{}

// Execute acknowledges the approved step.
func (h *ManualApprovalHandler) Execute(ctx context.Context, action models.Action) (*models.ActionResult, error) {
	return &models.ActionResult{
		Output:   "manually approved",
		Metadata: map[string]string{"reason": action.Param("reason")},
	}, nil
}

// RequestHumanInputHandler marks the point where an automated plan hands
// off to a human. Like manual-approval, the gate runs first; execution
// records the handoff and whatever context the plan attached.
type RequestHumanInputHandler struct{}

// Execute acknowledges the handoff.
func (h *RequestHumanInputHandler) Execute(ctx context.Context, action models.Action) (*models.ActionResult, error) {
	return &models.ActionResult{
		Output:   "handed off to human: " + action.Param("prompt"),
		Metadata: map[string]string{"prompt": action.Param("prompt")},
	}, nil
}
