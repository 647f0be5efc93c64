// Package approval routes approval requests for destructive steps to an
// external decider: a programmatic resolver, an answer-file directory
// watched with fsnotify, or a fixed auto policy.
package approval

import (
	"context"
	"fmt"
	"sync"

	"github.com/harrison/agentd/internal/models"
)

// Broker matches emitted approval requests with externally supplied
// decisions. Request blocks the calling step transition until Resolve is
// called for its step ID or the context ends. It satisfies
// engine.ApprovalGate.
type Broker struct {
	mu      sync.Mutex
	pending map[string]pendingRequest
	notify  func(models.ApprovalRequest)
}

type pendingRequest struct {
	req      models.ApprovalRequest
	decision chan bool
}

// NewBroker creates a Broker. notify, if non-nil, is called once per
// emitted request so a UI or watcher can surface it; it must not block.
func NewBroker(notify func(models.ApprovalRequest)) *Broker {
	return &Broker{
		pending: make(map[string]pendingRequest),
		notify:  notify,
	}
}

// Request emits the approval request and blocks until it is resolved or
// ctx ends. An abandoned request is withdrawn on the way out.
func (b *Broker) Request(ctx context.Context, req models.ApprovalRequest) (bool, error) {
	decision := make(chan bool, 1)

	b.mu.Lock()
	if _, exists := b.pending[req.StepID]; exists {
		b.mu.Unlock()
		return false, fmt.Errorf("approval for step %s already pending", req.StepID)
	}
	b.pending[req.StepID] = pendingRequest{req: req, decision: decision}
	b.mu.Unlock()

	if b.notify != nil {
		b.notify(req)
	}

	select {
	case approved := <-decision:
		return approved, nil
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, req.StepID)
		b.mu.Unlock()
		return false, fmt.Errorf("approval for step %s abandoned: %w", req.StepID, ctx.Err())
	}
}

// Resolve answers the pending request for a step. It reports whether a
// request was actually waiting; a second resolution of the same step is a
// no-op.
func (b *Broker) Resolve(stepID string, approved bool) bool {
	b.mu.Lock()
	p, ok := b.pending[stepID]
	if ok {
		delete(b.pending, stepID)
	}
	b.mu.Unlock()

	if !ok {
		return false
	}
	p.decision <- approved
	return true
}

// Pending returns the currently unresolved requests.
func (b *Broker) Pending() []models.ApprovalRequest {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.ApprovalRequest, 0, len(b.pending))
	for _, p := range b.pending {
		out = append(out, p.req)
	}
	return out
}

// Auto is a fixed approval policy: every request gets the same answer.
// Auto(true) suits unattended runs; Auto(false) makes every destructive
// step skip.
type Auto bool

// Request resolves immediately with the fixed answer.
func (a Auto) Request(ctx context.Context, req models.ApprovalRequest) (bool, error) {
	return bool(a), nil
}
