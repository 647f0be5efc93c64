// Package corrector asks an external reasoning service for a
// structurally different action after a step attempt fails. A nil
// proposal means the engine should plainly retry the original action.
package corrector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harrison/agentd/internal/extract"
	"github.com/harrison/agentd/internal/models"
)

// DefaultMinConfidence is the lowest proposal confidence worth
// substituting for the original action.
const DefaultMinConfidence = 40

// ReasoningService answers self-correction prompts with free-form text
// expected to contain the proposal contract JSON.
type ReasoningService interface {
	ProposeAlternative(ctx context.Context, prompt string) (string, error)
}

// Corrector generates alternative strategies for failed steps.
type Corrector struct {
	service       ReasoningService
	minConfidence int
}

// New creates a Corrector. A non-positive minConfidence falls back to
// DefaultMinConfidence.
func New(service ReasoningService, minConfidence int) *Corrector {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Corrector{service: service, minConfidence: minConfidence}
}

// proposal is the constrained response contract.
type proposal struct {
	Analysis   string                 `json:"analysis"`
	Strategy   string                 `json:"strategy"`
	Action     string                 `json:"action"`
	Params     map[string]interface{} `json:"params"`
	Confidence int                    `json:"confidence"`
	Fallback   string                 `json:"fallback"`
}

// Propose returns an alternative action for the failed step, or nil when
// the engine should retry the original action unchanged. Nil is returned
// for non-recoverable errors (which should never reach the corrector),
// service failures, unparsable responses, proposals that merely repeat
// the failed action, and sub-threshold confidence.
func (c *Corrector) Propose(ctx context.Context, step *models.Step, stepErr error, attempt int) *models.Action {
	if c.service == nil || stepErr == nil {
		return nil
	}
	if models.Classify(stepErr) == models.ErrorNonRecoverable {
		return nil
	}

	text, err := c.service.ProposeAlternative(ctx, c.buildPrompt(step, stepErr, attempt))
	if err != nil {
		return nil
	}

	raw, err := extract.JSONObject(text)
	if err != nil {
		return nil
	}

	var prop proposal
	if err := json.Unmarshal(raw, &prop); err != nil {
		return nil
	}
	if prop.Action == "" || prop.Confidence < c.minConfidence {
		return nil
	}

	alt := models.Action{Type: models.ActionType(prop.Action), Params: prop.Params}
	if alt.Equal(step.Action) {
		// Not structurally different; a blind retry needs no proposal.
		return nil
	}
	return &alt
}

// buildPrompt frames the failure for the reasoning service and pins the
// response contract.
func (c *Corrector) buildPrompt(step *models.Step, stepErr error, attempt int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Step %q failed on attempt %d.\n", step.Title, attempt)
	fmt.Fprintf(&sb, "Action: %s\n", step.Action.Type)
	if len(step.Action.Params) > 0 {
		params, _ := json.Marshal(step.Action.Params)
		fmt.Fprintf(&sb, "Params: %s\n", params)
	}
	fmt.Fprintf(&sb, "Error: %s\n", stepErr.Error())
	if models.IsTransient(stepErr) {
		sb.WriteString("The error looks transient; consider whether a different approach avoids it entirely.\n")
	}

	sb.WriteString(`
Propose a STRUCTURALLY DIFFERENT action, not a retry of the same one.
Respond with only a JSON object:
{"analysis": "...", "strategy": "...", "action": "<action type>", "params": {...}, "confidence": 0-100, "fallback": "..."}
`)
	return sb.String()
}
