// Package engine executes a planned task as a strictly sequential step
// state machine: approval gates for destructive actions, handler
// invocation with timeout, retries with self-correction and backoff,
// ordered fallback plans, best-effort reverse-order rollback, and
// cooperative pause/resume/cancel at step boundaries.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harrison/agentd/internal/models"
	"github.com/harrison/agentd/internal/retry"
)

// DefaultStepTimeout bounds a single handler invocation.
const DefaultStepTimeout = 5 * time.Minute

// errCancelled is the internal sentinel for a cooperative cancel observed
// at a suspension point.
var errCancelled = errors.New("task cancelled")

// ApprovalGate resolves approval requests for destructive steps. Request
// blocks until the request is resolved externally or ctx ends.
type ApprovalGate interface {
	Request(ctx context.Context, req models.ApprovalRequest) (bool, error)
}

// Checkpointer persists task progress at step boundaries, never mid-step.
type Checkpointer interface {
	SaveCheckpoint(ctx context.Context, taskID string, stepIndex int, completedStepIDs []string) error
}

// Corrector proposes a structurally different action for a failed step,
// or nil when the engine should retry the original action unchanged.
type Corrector interface {
	Propose(ctx context.Context, step *models.Step, stepErr error, attempt int) *models.Action
}

// PatternRecorder records step outcomes so later planning confidence can
// learn from them.
type PatternRecorder interface {
	Save(ctx context.Context, description, actionType string, success bool) error
}

// Logger receives engine progress messages. *logger.ConsoleLogger and
// *logger.FileLogger satisfy it.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

// EventLogger is the optional structured-event surface a Logger may also
// implement: per-step outcomes, approval verdicts, and task progress.
// *logger.ConsoleLogger satisfies it.
type EventLogger interface {
	LogStepResult(step *models.Step)
	LogApproval(req models.ApprovalRequest, approved bool)
	LogProgress(task *models.Task)
}

// Options configures an Engine. Registry is required; every other
// collaborator may be nil and its concern is skipped.
type Options struct {
	Registry    *Registry
	Backoff     *retry.Policy
	Corrector   Corrector
	Approvals   ApprovalGate
	Checkpoints Checkpointer
	Patterns    PatternRecorder
	Logger      Logger
	StepTimeout time.Duration
}

// Engine owns exactly one task and runs its steps sequentially. At most
// one step is in progress at any instant. Pause and cancel are observed
// only at step boundaries and backoff waits; an in-flight handler call is
// never forcibly interrupted, its eventual result is discarded.
type Engine struct {
	task        *models.Task
	registry    *Registry
	backoff     *retry.Policy
	corrector   Corrector
	approvals   ApprovalGate
	checkpoints Checkpointer
	patterns    PatternRecorder
	log         Logger
	events      EventLogger
	stepTimeout time.Duration

	history *RollbackHistory

	mu               sync.Mutex
	paused           bool
	resumeCh         chan struct{}
	cancelled        bool
	rollbackOnCancel bool
	cancelCh         chan struct{}
}

// New creates an Engine owning the given task.
func New(task *models.Task, opts Options) (*Engine, error) {
	if task == nil {
		return nil, errors.New("engine requires a task")
	}
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}
	if opts.Registry == nil {
		return nil, errors.New("engine requires a handler registry")
	}

	backoff := opts.Backoff
	if backoff == nil {
		backoff = retry.NewPolicy(retry.DefaultBaseDelay, retry.DefaultMaxDelay)
	}
	stepTimeout := opts.StepTimeout
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}

	events, _ := opts.Logger.(EventLogger)

	return &Engine{
		task:        task,
		registry:    opts.Registry,
		backoff:     backoff,
		corrector:   opts.Corrector,
		approvals:   opts.Approvals,
		checkpoints: opts.Checkpoints,
		patterns:    opts.Patterns,
		log:         opts.Logger,
		events:      events,
		stepTimeout: stepTimeout,
		history:     NewRollbackHistory(),
		resumeCh:    make(chan struct{}),
		cancelCh:    make(chan struct{}),
	}, nil
}

// Task returns the engine's task. The engine mutates it while Run is in
// progress; read it concurrently only for terminal inspection.
func (e *Engine) Task() *models.Task {
	return e.task
}

// Status returns the task's current status. Safe to call concurrently
// with Run.
func (e *Engine) Status() models.TaskStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.task.Status
}

// setStatus transitions the task status under the engine lock so external
// observers see a consistent value.
func (e *Engine) setStatus(status models.TaskStatus) {
	e.mu.Lock()
	e.task.Status = status
	e.mu.Unlock()
}

// Pause requests suspension at the next step boundary, never mid-step.
// Idempotent.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused || e.cancelled {
		return
	}
	e.paused = true
}

// Resume lifts a pause. Idempotent; a no-op when not paused.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.paused {
		return
	}
	e.paused = false
	close(e.resumeCh)
	e.resumeCh = make(chan struct{})
}

// Cancel requests cooperative cancellation: the run aborts after the
// current step completes. Rollback of completed steps is explicit via the
// rollback argument, not automatic. Idempotent; the first call wins.
func (e *Engine) Cancel(rollback bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelled {
		return
	}
	e.cancelled = true
	e.rollbackOnCancel = rollback
	close(e.cancelCh)
}

// Run executes the task to a terminal status and returns its aggregate
// result. The returned error is non-nil only for task-level failures:
// a non-recoverable step, an exhausted required step, or a partial
// rollback; skipped steps and recovered failures resolve internally.
func (e *Engine) Run(ctx context.Context) (*models.TaskResult, error) {
	started := time.Now()
	e.setStatus(models.TaskInProgress)
	e.infof("task %s: executing %d steps for goal %q", e.task.ID, len(e.task.Steps), e.task.Goal)

	var runErr error

	for i, step := range e.task.Steps {
		// Steps already terminal were restored from a checkpoint.
		if step.Status.IsTerminal() {
			continue
		}

		if err := e.waitAtBoundary(ctx); err != nil {
			e.finishCancelled(ctx)
			return e.result(started), nil
		}

		err := e.runStep(ctx, step)
		e.logStepResult(step)
		e.logProgress()
		switch {
		case err == nil:
			e.saveCheckpoint(ctx, i)

		case errors.Is(err, errCancelled):
			e.finishCancelled(ctx)
			return e.result(started), nil

		case IsApprovalRejected(err):
			// Non-fatal: the step was skipped, the task continues.
			e.saveCheckpoint(ctx, i)

		case IsNonRecoverable(err):
			e.errorf("task %s: %v", e.task.ID, err)
			runErr = e.failTask(ctx, err)
			return e.result(started), runErr

		default:
			if step.Optional {
				e.warnf("task %s: optional step %q failed, continuing: %v", e.task.ID, step.Title, err)
				e.saveCheckpoint(ctx, i)
				continue
			}
			e.errorf("task %s: %v", e.task.ID, err)
			runErr = e.failTask(ctx, err)
			return e.result(started), runErr
		}
	}

	e.setStatus(models.TaskCompleted)
	e.infof("task %s: completed", e.task.ID)
	return e.result(started), nil
}

// runStep drives one step through its state machine and returns nil,
// errCancelled, *ApprovalRejectedError, *NonRecoverableError or
// *StepFailedError.
func (e *Engine) runStep(ctx context.Context, step *models.Step) error {
	started := time.Now()

	approved := false
	if needsApproval(step.Action) {
		ok, err := e.requestApproval(ctx, step, step.Action, describeStep(step))
		if err != nil {
			return &StepFailedError{StepID: step.ID, Title: step.Title, Err: fmt.Errorf("approval gate: %w", err)}
		}
		if !ok {
			step.Status = models.StepSkipped
			step.SkipReason = "user rejected"
			step.Result = &models.StepResult{Duration: time.Since(started)}
			e.warnf("step %q skipped: user rejected", step.Title)
			return &ApprovalRejectedError{StepID: step.ID, Title: step.Title}
		}
		step.Status = models.StepApproved
		approved = true
	}

	action := step.Action
	selfCorrected := false
	var lastErr error

	for attempt := 1; attempt <= step.MaxRetries; attempt++ {
		step.Status = models.StepInProgress
		step.AttemptCount = attempt
		e.debugf("step %q: attempt %d/%d (%s)", step.Title, attempt, step.MaxRetries, action.Type)

		res, err := e.invoke(ctx, action)
		if err == nil {
			e.completeStep(ctx, step, action, res, started, selfCorrected, "")
			return nil
		}
		lastErr = err
		e.recordPattern(ctx, step, false)

		if models.Classify(err) == models.ErrorNonRecoverable {
			step.Status = models.StepFailed
			step.Result = &models.StepResult{
				Error:    err.Error(),
				Attempts: attempt,
				Duration: time.Since(started),
			}
			return &NonRecoverableError{StepID: step.ID, Title: step.Title, Err: err}
		}

		e.warnf("step %q: attempt %d failed: %v", step.Title, attempt, err)

		if attempt < step.MaxRetries {
			if e.corrector != nil {
				if alt := e.corrector.Propose(ctx, step, err, attempt); alt != nil {
					e.infof("step %q: self-correction substitutes %s action", step.Title, alt.Type)
					action = *alt
					selfCorrected = true
				}
			}
			if !e.waitBackoff(ctx, attempt) {
				return errCancelled
			}
		}
	}

	// Retries exhausted: try each fallback plan in order. A fallback that
	// fails, even non-recoverably, escalates to the next fallback.
	for i := range step.Fallbacks {
		fb := &step.Fallbacks[i]

		if !approved && needsApproval(fb.Action) {
			ok, err := e.requestApproval(ctx, step, fb.Action, fb.Reasoning)
			if err != nil || !ok {
				e.warnf("step %q: fallback %s not approved, trying next", step.Title, fb.Action.Type)
				continue
			}
			approved = true
		}

		e.infof("step %q: trying fallback %s (%s)", step.Title, fb.Action.Type, fb.TriggerCondition)
		res, err := e.invoke(ctx, fb.Action)
		if err == nil {
			e.completeStep(ctx, step, fb.Action, res, started, selfCorrected, fb.ID)
			return nil
		}
		lastErr = err
		e.warnf("step %q: fallback %s failed: %v", step.Title, fb.Action.Type, err)
	}

	step.Status = models.StepFailed
	step.Result = &models.StepResult{
		Error:    lastErr.Error(),
		Attempts: step.AttemptCount,
		Duration: time.Since(started),
	}
	return &StepFailedError{StepID: step.ID, Title: step.Title, Attempts: step.AttemptCount, Err: lastErr}
}

// invoke runs the handler for the action, bounded by the step timeout.
// The handler call is not forcibly interrupted on timeout; its eventual
// result is discarded.
func (e *Engine) invoke(ctx context.Context, action models.Action) (*models.ActionResult, error) {
	handler, ok := e.registry.Handler(action.Type)
	if !ok {
		return nil, &models.UnsupportedActionError{ActionType: action.Type}
	}

	ictx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	type outcome struct {
		res *models.ActionResult
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := handler.Execute(ictx, action)
		ch <- outcome{res: res, err: err}
	}()

	select {
	case out := <-ch:
		return out.res, out.err
	case <-ictx.Done():
		return nil, fmt.Errorf("action %s timed out: %w", action.Type, ictx.Err())
	}
}

// completeStep marks the step completed and records it for rollback and
// pattern learning.
func (e *Engine) completeStep(ctx context.Context, step *models.Step, action models.Action, res *models.ActionResult, started time.Time, selfCorrected bool, fallbackID string) {
	if res == nil {
		res = &models.ActionResult{}
	}

	step.Status = models.StepCompleted
	step.Result = &models.StepResult{
		Output:        res.Output,
		Attempts:      step.AttemptCount,
		Duration:      time.Since(started),
		UsedFallback:  fallbackID != "",
		FallbackID:    fallbackID,
		SelfCorrected: selfCorrected,
	}

	if handler, ok := e.registry.Handler(action.Type); ok {
		e.history.Record(step, action, res, handler)
	}
	e.recordPattern(ctx, step, true)
	e.infof("step %q: completed in %s", step.Title, step.Result.Duration.Round(time.Millisecond))
}

// requestApproval blocks the step transition on the approval gate. A nil
// gate approves everything.
func (e *Engine) requestApproval(ctx context.Context, step *models.Step, action models.Action, description string) (bool, error) {
	if e.approvals == nil {
		return true, nil
	}

	step.Status = models.StepAwaitingApproval
	prev := e.Status()
	e.setStatus(models.TaskAwaitingApproval)
	defer e.setStatus(prev)

	e.infof("step %q: awaiting approval for %s action", step.Title, action.Type)
	req := models.ApprovalRequest{
		TaskID:      e.task.ID,
		StepID:      step.ID,
		RiskLevel:   step.Risk,
		Reversible:  e.isReversible(action),
		Description: description,
	}
	ok, err := e.approvals.Request(ctx, req)
	if err == nil {
		e.logApproval(req, ok)
	}
	return ok, err
}

// isReversible reports whether the action's handler registers an undo.
func (e *Engine) isReversible(action models.Action) bool {
	handler, ok := e.registry.Handler(action.Type)
	if !ok {
		return false
	}
	_, undoable := handler.(UndoableHandler)
	return undoable
}

// failTask rolls back every completed step in reverse order and marks the
// task failed. A partial rollback is joined with the step error so undo
// failures are surfaced, never swallowed.
func (e *Engine) failTask(ctx context.Context, stepErr error) error {
	e.warnf("task %s: rolling back %d completed steps", e.task.ID, e.history.Len())
	rbErr := e.history.Unwind(ctx)
	e.setStatus(models.TaskFailed)
	if rbErr != nil {
		e.errorf("task %s: %v", e.task.ID, rbErr)
		return errors.Join(stepErr, rbErr)
	}
	return stepErr
}

// finishCancelled finalizes a cooperative cancel. Rollback runs only when
// the cancel requested it.
func (e *Engine) finishCancelled(ctx context.Context) {
	e.mu.Lock()
	rollback := e.rollbackOnCancel
	e.mu.Unlock()

	if rollback {
		e.warnf("task %s: cancelled, rolling back %d completed steps", e.task.ID, e.history.Len())
		if err := e.history.Unwind(ctx); err != nil {
			e.errorf("task %s: %v", e.task.ID, err)
		}
	} else {
		e.infof("task %s: cancelled", e.task.ID)
	}
	e.setStatus(models.TaskCancelled)
}

// waitAtBoundary blocks while paused and reports cancellation. Called
// only between steps.
func (e *Engine) waitAtBoundary(ctx context.Context) error {
	for {
		e.mu.Lock()
		if e.cancelled {
			e.mu.Unlock()
			return errCancelled
		}
		if !e.paused {
			e.mu.Unlock()
			return nil
		}
		resume := e.resumeCh
		e.mu.Unlock()

		e.setStatus(models.TaskPaused)
		e.infof("task %s: paused", e.task.ID)

		select {
		case <-resume:
			e.setStatus(models.TaskInProgress)
			e.infof("task %s: resumed", e.task.ID)
		case <-e.cancelCh:
			return errCancelled
		case <-ctx.Done():
			return errCancelled
		}
	}
}

// waitBackoff sleeps for the attempt's backoff delay; false means the
// wait was interrupted by cancellation.
func (e *Engine) waitBackoff(ctx context.Context, attempt int) bool {
	done := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-e.cancelCh:
		case <-stop:
			return
		}
		close(done)
	}()
	return e.backoff.Wait(attempt, done)
}

// saveCheckpoint persists progress after a step boundary. Checkpoint
// failures are logged, not fatal.
func (e *Engine) saveCheckpoint(ctx context.Context, stepIndex int) {
	if e.checkpoints == nil {
		return
	}
	if err := e.checkpoints.SaveCheckpoint(ctx, e.task.ID, stepIndex, e.history.CompletedStepIDs()); err != nil {
		e.warnf("task %s: checkpoint failed: %v", e.task.ID, err)
	}
}

// recordPattern feeds a step outcome to the pattern store.
func (e *Engine) recordPattern(ctx context.Context, step *models.Step, success bool) {
	if e.patterns == nil {
		return
	}
	if err := e.patterns.Save(ctx, step.Title, string(step.Action.Type), success); err != nil {
		e.debugf("pattern save failed: %v", err)
	}
}

// result aggregates the task's per-step outcomes.
func (e *Engine) result(started time.Time) *models.TaskResult {
	res := &models.TaskResult{
		Task:     e.task,
		Duration: time.Since(started),
	}
	for _, step := range e.task.Steps {
		switch step.Status {
		case models.StepCompleted:
			res.Completed++
			if step.Result != nil && step.Result.UsedFallback {
				res.FallbacksUsed++
			}
		case models.StepFailed:
			res.Failed++
		case models.StepSkipped:
			res.Skipped++
		}
		if step.Result != nil && step.Result.RolledBack {
			res.RolledBack++
		}
	}
	return res
}

// needsApproval reports whether the action requires external sign-off:
// destructive actions plus the explicit human-input action types.
func needsApproval(action models.Action) bool {
	if action.Type.IsDestructive() {
		return true
	}
	return action.Type == models.ActionManualApproval || action.Type == models.ActionRequestHumanInput
}

func describeStep(step *models.Step) string {
	return fmt.Sprintf("%s (%s action, risk %s)", step.Title, step.Action.Type, step.Risk)
}

func (e *Engine) logStepResult(step *models.Step) {
	if e.events != nil {
		e.events.LogStepResult(step)
	}
}

func (e *Engine) logApproval(req models.ApprovalRequest, approved bool) {
	if e.events != nil {
		e.events.LogApproval(req, approved)
	}
}

func (e *Engine) logProgress() {
	if e.events != nil {
		e.events.LogProgress(e.task)
	}
}

func (e *Engine) debugf(format string, args ...interface{}) {
	if e.log != nil {
		e.log.LogDebug(fmt.Sprintf(format, args...))
	}
}

func (e *Engine) infof(format string, args ...interface{}) {
	if e.log != nil {
		e.log.LogInfo(fmt.Sprintf(format, args...))
	}
}

func (e *Engine) warnf(format string, args ...interface{}) {
	if e.log != nil {
		e.log.LogWarn(fmt.Sprintf(format, args...))
	}
}

func (e *Engine) errorf(format string, args ...interface{}) {
	if e.log != nil {
		e.log.LogError(fmt.Sprintf(format, args...))
	}
}
