package models

import "strings"

// ErrorClass partitions step errors for retry policy. Anything that does
// not match a non-recoverable keyword is recoverable.
type ErrorClass int

const (
	// ErrorRecoverable errors are retried and may be self-corrected.
	ErrorRecoverable ErrorClass = iota
	// ErrorNonRecoverable errors fail the task immediately with rollback
	// and are never retried or sent to the self-corrector.
	ErrorNonRecoverable
)

// nonRecoverableKeywords mark errors that retrying cannot fix.
var nonRecoverableKeywords = []string{
	"permission",
	"access denied",
	"auth",
	"credentials",
}

// transientKeywords mark errors that typically clear on retry. Used to
// hint the self-corrector; membership here is not required for an error
// to be retried.
var transientKeywords = []string{
	"timeout",
	"timed out",
	"network",
	"not found",
	"no such file",
	"rate limit",
	"rate-limit",
}

// Classify inspects an error's message and returns its class.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorRecoverable
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range nonRecoverableKeywords {
		if strings.Contains(msg, kw) {
			return ErrorNonRecoverable
		}
	}
	return ErrorRecoverable
}

// IsTransient reports whether the error message matches a known transient
// pattern (timeout, network, not-found, rate-limit).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range transientKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// UnsupportedActionError reports a plan that needs an action type the
// handler registry does not cover. It is fatal at plan time.
type UnsupportedActionError struct {
	ActionType ActionType
}

func (e *UnsupportedActionError) Error() string {
	return "unsupported action type: " + string(e.ActionType)
}
