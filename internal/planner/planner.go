// Package planner decomposes a natural-language goal into an ordered,
// confidence-annotated step list using an external planning service.
// Responses that cannot be parsed degrade to a single-step
// manual-approval task; callers never see a raw parse error.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/agentd/internal/confidence"
	"github.com/harrison/agentd/internal/extract"
	"github.com/harrison/agentd/internal/models"
)

// DefaultMaxRetries is the per-step retry budget when the plan does not
// specify one.
const DefaultMaxRetries = 3

// WorkspaceContext describes the workspace a plan targets.
type WorkspaceContext struct {
	Root  string
	Notes string
}

// PlanningService generates plan text for a goal. The text is expected to
// contain a JSON object {title, steps[]}, possibly wrapped in prose or a
// fenced code block.
type PlanningService interface {
	GeneratePlan(ctx context.Context, goal string, wsCtx WorkspaceContext) (string, error)
}

// ActionCoverage reports which action types have registered handlers.
type ActionCoverage interface {
	Supports(models.ActionType) bool
}

// Planner turns goals into executable tasks.
type Planner struct {
	service   PlanningService
	estimator *confidence.Estimator
	fallbacks *FallbackPlanner
	coverage  ActionCoverage
}

// New creates a Planner. coverage is consulted before planning proceeds;
// missing coverage of the required action set is fatal.
func New(service PlanningService, estimator *confidence.Estimator, fallbacks *FallbackPlanner, coverage ActionCoverage) *Planner {
	return &Planner{
		service:   service,
		estimator: estimator,
		fallbacks: fallbacks,
		coverage:  coverage,
	}
}

// planDocument is the JSON contract expected from the planning service.
type planDocument struct {
	Title string     `json:"title"`
	Steps []planStep `json:"steps"`
}

type planStep struct {
	Title      string                 `json:"title"`
	Action     string                 `json:"action"`
	Params     map[string]interface{} `json:"params"`
	Optional   bool                   `json:"optional"`
	MaxRetries int                    `json:"max_retries"`
}

// PlanTask plans the goal into a Task. The only error returned is
// *models.UnsupportedActionError for missing handler coverage; every
// planning or parse failure instead yields a manual-approval fallback
// task.
func (p *Planner) PlanTask(ctx context.Context, goal string, wsCtx WorkspaceContext) (*models.Task, error) {
	for _, required := range models.RequiredActionTypes {
		if !p.coverage.Supports(required) {
			return nil, &models.UnsupportedActionError{ActionType: required}
		}
	}

	text, err := p.service.GeneratePlan(ctx, goal, wsCtx)
	if err != nil {
		return p.manualFallbackTask(goal, wsCtx.Root, fmt.Sprintf("planning service unavailable: %v", err)), nil
	}

	doc, err := parsePlan(text)
	if err != nil {
		return p.manualFallbackTask(goal, wsCtx.Root, fmt.Sprintf("plan response unparsable: %v", err)), nil
	}

	task := &models.Task{
		ID:            uuid.NewString(),
		Goal:          goal,
		Status:        models.TaskPlanning,
		WorkspaceRoot: wsCtx.Root,
		CreatedAt:     time.Now().UTC(),
	}

	for _, ps := range doc.Steps {
		actionType := models.ActionType(ps.Action)
		if !p.coverage.Supports(actionType) {
			return nil, &models.UnsupportedActionError{ActionType: actionType}
		}

		step := &models.Step{
			ID:         uuid.NewString(),
			Title:      ps.Title,
			Action:     models.Action{Type: actionType, Params: ps.Params},
			Status:     models.StepPending,
			MaxRetries: ps.MaxRetries,
			Optional:   ps.Optional,
		}
		if step.MaxRetries <= 0 {
			step.MaxRetries = DefaultMaxRetries
		}

		step.Confidence = p.estimator.Score(ctx, ps.Title, step.Action, wsCtx.Root)
		step.Risk = models.RiskForConfidence(step.Confidence)
		step.Fallbacks = p.fallbacks.PlansFor(ctx, step, wsCtx.Root)

		task.Steps = append(task.Steps, step)
	}

	return task, nil
}

// parsePlan applies the layered extraction strategy and validates the
// resulting document.
func parsePlan(text string) (*planDocument, error) {
	raw, err := extract.JSONObject(text)
	if err != nil {
		return nil, err
	}

	var doc planDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if len(doc.Steps) == 0 {
		return nil, fmt.Errorf("plan contains no steps")
	}
	for i, s := range doc.Steps {
		if s.Title == "" {
			return nil, fmt.Errorf("step %d missing title", i+1)
		}
		if s.Action == "" {
			return nil, fmt.Errorf("step %d missing action", i+1)
		}
	}
	return &doc, nil
}

// manualFallbackTask is the degraded plan used when the planning call
// fails: one manual-approval step carrying the goal and failure reason.
func (p *Planner) manualFallbackTask(goal, workspaceRoot, reason string) *models.Task {
	task := &models.Task{
		ID:             uuid.NewString(),
		Goal:           goal,
		Status:         models.TaskPlanning,
		WorkspaceRoot:  workspaceRoot,
		CreatedAt:      time.Now().UTC(),
		ManualFallback: true,
	}

	step := &models.Step{
		ID:    uuid.NewString(),
		Title: "Review goal manually",
		Action: models.Action{
			Type: models.ActionManualApproval,
			Params: map[string]interface{}{
				"goal":   goal,
				"reason": reason,
			},
		},
		Status:     models.StepPending,
		MaxRetries: 1,
		Confidence: 0,
		Risk:       models.RiskHigh,
	}

	task.Steps = []*models.Step{step}
	return task
}
