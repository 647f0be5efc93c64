package planner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/harrison/agentd/internal/confidence"
	"github.com/harrison/agentd/internal/models"
)

// Trigger conditions recorded on generated fallback plans.
const (
	TriggerRetriesExhausted = "primary action failed after retries"
	TriggerFallbackFailed   = "previous fallback failed"
)

// FallbackPlanner pre-computes ordered alternative actions for medium and
// high risk steps. High-risk chains always end in a last-resort
// request-human-input fallback.
type FallbackPlanner struct {
	estimator *confidence.Estimator
}

// NewFallbackPlanner creates a FallbackPlanner scoring alternatives with
// the given estimator.
func NewFallbackPlanner(estimator *confidence.Estimator) *FallbackPlanner {
	return &FallbackPlanner{estimator: estimator}
}

// PlansFor generates the fallback chain for a step. Steps whose risk does
// not call for fallbacks get none.
func (f *FallbackPlanner) PlansFor(ctx context.Context, step *models.Step, workspaceRoot string) []models.FallbackPlan {
	if !step.Risk.NeedsFallbacks() {
		return nil
	}

	var plans []models.FallbackPlan
	for _, alt := range f.alternatives(step) {
		plans = append(plans, models.FallbackPlan{
			ID:               uuid.NewString(),
			StepID:           step.ID,
			TriggerCondition: triggerFor(len(plans)),
			Action:           alt.action,
			Confidence:       f.estimator.Score(ctx, alt.reasoning, alt.action, workspaceRoot),
			Reasoning:        alt.reasoning,
		})
	}

	if step.Risk == models.RiskHigh {
		plans = append(plans, models.FallbackPlan{
			ID:               uuid.NewString(),
			StepID:           step.ID,
			TriggerCondition: triggerFor(len(plans)),
			Action: models.Action{
				Type: models.ActionRequestHumanInput,
				Params: map[string]interface{}{
					"step":   step.Title,
					"reason": "all automated alternatives exhausted",
				},
			},
			Confidence: 0,
			Reasoning:  "last resort: ask a human how to proceed",
		})
	}

	return plans
}

type alternative struct {
	action    models.Action
	reasoning string
}

// alternatives returns heuristic substitutes for the step's primary
// action, most promising first.
func (f *FallbackPlanner) alternatives(step *models.Step) []alternative {
	action := step.Action
	switch action.Type {
	case models.ActionRead:
		path := action.Param("path")
		if path == "" {
			return nil
		}
		return []alternative{{
			action: models.Action{
				Type:   models.ActionSearch,
				Params: map[string]interface{}{"query": filepath.Base(path)},
			},
			reasoning: fmt.Sprintf("search the workspace for %q in case it lives elsewhere", filepath.Base(path)),
		}}

	case models.ActionSearch:
		query := action.Param("query")
		fields := strings.Fields(query)
		if len(fields) < 2 {
			return nil
		}
		return []alternative{{
			action: models.Action{
				Type:   models.ActionSearch,
				Params: map[string]interface{}{"query": fields[0]},
			},
			reasoning: "broaden the search to its leading term",
		}}

	case models.ActionWrite:
		path := action.Param("path")
		if path == "" {
			return nil
		}
		params := map[string]interface{}{"path": path, "create_dirs": true}
		if content, ok := action.Params["content"]; ok {
			params["content"] = content
		}
		return []alternative{{
			action:    models.Action{Type: models.ActionWrite, Params: params},
			reasoning: "retry the write creating missing parent directories",
		}}

	case models.ActionExecuteCommand:
		cmd := action.Param("command")
		if cmd == "" {
			return nil
		}
		return []alternative{{
			action: models.Action{
				Type:   models.ActionGenerate,
				Params: map[string]interface{}{"prompt": fmt.Sprintf("the command %q failed; propose a corrected command", cmd)},
			},
			reasoning: "ask the reasoning service for a corrected command",
		}}

	case models.ActionGenerate, models.ActionRefactor:
		prompt := action.Param("prompt")
		return []alternative{{
			action: models.Action{
				Type:   models.ActionGenerate,
				Params: map[string]interface{}{"prompt": "simplify: " + prompt, "strategy": "minimal"},
			},
			reasoning: "retry generation with a minimal, more constrained prompt",
		}}

	case models.ActionCommit:
		return []alternative{{
			action: models.Action{
				Type:   models.ActionExecuteCommand,
				Params: map[string]interface{}{"command": "git status --short"},
			},
			reasoning: "inspect repository state before retrying the commit",
		}}
	}

	return nil
}

func triggerFor(position int) string {
	if position == 0 {
		return TriggerRetriesExhausted
	}
	return TriggerFallbackFailed
}
