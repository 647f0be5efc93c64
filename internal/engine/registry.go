package engine

import (
	"context"
	"sync"

	"github.com/harrison/agentd/internal/models"
)

// Handler executes one action attempt on behalf of a step.
type Handler interface {
	Execute(ctx context.Context, action models.Action) (*models.ActionResult, error)
}

// UndoableHandler is a Handler whose effects can be reversed. The engine
// records the (action, result) pair for every completed destructive step
// and replays them through Undo in reverse order on rollback.
type UndoableHandler interface {
	Handler
	Undo(ctx context.Context, action models.Action, result *models.ActionResult) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, action models.Action) (*models.ActionResult, error)

// Execute calls the function.
func (f HandlerFunc) Execute(ctx context.Context, action models.Action) (*models.ActionResult, error) {
	return f(ctx, action)
}

// Registry maps action types to their handlers. It is safe for concurrent
// use; registration normally finishes before planning begins.
type Registry struct {
	mu       sync.RWMutex
	handlers map[models.ActionType]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[models.ActionType]Handler)}
}

// Register binds a handler to an action type, replacing any previous
// binding.
func (r *Registry) Register(actionType models.ActionType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[actionType] = h
}

// Handler returns the handler for an action type.
func (r *Registry) Handler(actionType models.ActionType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[actionType]
	return h, ok
}

// Supports reports whether a handler is registered for the action type.
// Registry satisfies planner.ActionCoverage.
func (r *Registry) Supports(actionType models.ActionType) bool {
	_, ok := r.Handler(actionType)
	return ok
}

// VerifyCoverage fails fast with an UnsupportedActionError if any of the
// given action types lacks a handler. Called before planning proceeds.
func (r *Registry) VerifyCoverage(required ...models.ActionType) error {
	for _, t := range required {
		if !r.Supports(t) {
			return &models.UnsupportedActionError{ActionType: t}
		}
	}
	return nil
}
