package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyNonRecoverable(t *testing.T) {
	nonRecoverable := []string{
		"permission denied",
		"EACCES: access denied opening file",
		"authentication failed",
		"invalid credentials for remote",
	}
	for _, msg := range nonRecoverable {
		if Classify(errors.New(msg)) != ErrorNonRecoverable {
			t.Errorf("%q should classify as non-recoverable", msg)
		}
	}
}

func TestClassifyEverythingElseRecoverable(t *testing.T) {
	recoverable := []string{
		"connection timeout",
		"file not found",
		"rate limit exceeded",
		"some completely unknown failure",
	}
	for _, msg := range recoverable {
		if Classify(errors.New(msg)) != ErrorRecoverable {
			t.Errorf("%q should classify as recoverable", msg)
		}
	}

	if Classify(nil) != ErrorRecoverable {
		t.Error("nil error should classify as recoverable")
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(errors.New("request timed out")) {
		t.Error("timeout should be transient")
	}
	if !IsTransient(fmt.Errorf("open config.json: no such file or directory")) {
		t.Error("ENOENT should be transient")
	}
	if IsTransient(errors.New("logic error")) {
		t.Error("unknown errors are not transient")
	}
}

func TestUnsupportedActionError(t *testing.T) {
	err := &UnsupportedActionError{ActionType: ActionCommit}
	var target *UnsupportedActionError
	if !errors.As(err, &target) {
		t.Fatal("errors.As should match UnsupportedActionError")
	}
	if target.ActionType != ActionCommit {
		t.Errorf("wrong action type: %s", target.ActionType)
	}
}
