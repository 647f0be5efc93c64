package engine

import (
	"errors"
	"fmt"
	"strings"
)

// StepFailedError reports a step that exhausted its retries and every
// fallback plan without succeeding.
type StepFailedError struct {
	StepID   string
	Title    string
	Attempts int
	Err      error
}

func (e *StepFailedError) Error() string {
	return fmt.Sprintf("step %q failed after %d attempts: %v", e.Title, e.Attempts, e.Err)
}

func (e *StepFailedError) Unwrap() error { return e.Err }

// NonRecoverableError reports a step failure whose error class forbids
// retrying: the task fails immediately and completed steps are rolled back.
type NonRecoverableError struct {
	StepID string
	Title  string
	Err    error
}

func (e *NonRecoverableError) Error() string {
	return fmt.Sprintf("step %q failed non-recoverably: %v", e.Title, e.Err)
}

func (e *NonRecoverableError) Unwrap() error { return e.Err }

// ApprovalRejectedError reports a destructive step whose approval request
// was rejected. It is non-fatal: the engine skips the step and continues.
type ApprovalRejectedError struct {
	StepID string
	Title  string
}

func (e *ApprovalRejectedError) Error() string {
	return fmt.Sprintf("step %q rejected by approver", e.Title)
}

// UndoFailure records one failed undo during rollback.
type UndoFailure struct {
	StepID string
	Title  string
	Err    error
}

// RollbackPartialError reports that one or more undo operations failed
// during rollback. It is surfaced to the caller, never swallowed; the
// remaining undos still ran.
type RollbackPartialError struct {
	Failures []UndoFailure
}

func (e *RollbackPartialError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "rollback partially failed (%d undo errors):", len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&sb, " step %q: %v;", f.Title, f.Err)
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// IsNonRecoverable reports whether err (or anything it wraps) is a
// NonRecoverableError.
func IsNonRecoverable(err error) bool {
	var target *NonRecoverableError
	return errors.As(err, &target)
}

// IsApprovalRejected reports whether err is an ApprovalRejectedError.
func IsApprovalRejected(err error) bool {
	var target *ApprovalRejectedError
	return errors.As(err, &target)
}

// IsRollbackPartial reports whether err is a RollbackPartialError.
func IsRollbackPartial(err error) bool {
	var target *RollbackPartialError
	return errors.As(err, &target)
}
