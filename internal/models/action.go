package models

import "reflect"

// ActionType identifies which registered handler executes a step attempt.
type ActionType string

// Known action types. The handler registry must cover RequiredActionTypes
// before planning proceeds.
const (
	ActionRead           ActionType = "read"
	ActionWrite          ActionType = "write"
	ActionDelete         ActionType = "delete"
	ActionSearch         ActionType = "search"
	ActionExecuteCommand ActionType = "execute-command"
	ActionGenerate       ActionType = "generate"
	ActionRefactor       ActionType = "refactor"
	ActionCommit         ActionType = "commit"

	// ActionManualApproval is the single step of the fallback task produced
	// when a planning response cannot be parsed.
	ActionManualApproval ActionType = "manual-approval"

	// ActionRequestHumanInput is the last-resort fallback appended to
	// high-risk steps.
	ActionRequestHumanInput ActionType = "request-human-input"
)

// RequiredActionTypes lists the handler coverage required before planning.
var RequiredActionTypes = []ActionType{
	ActionRead,
	ActionWrite,
	ActionSearch,
	ActionExecuteCommand,
	ActionGenerate,
	ActionCommit,
}

// IsDestructive reports whether the action mutates external state and
// therefore requires approval before execution.
func (t ActionType) IsDestructive() bool {
	switch t {
	case ActionWrite, ActionDelete, ActionExecuteCommand, ActionCommit:
		return true
	}
	return false
}

// IsNondeterministic reports whether the action's outcome depends on a
// generative service rather than deterministic I/O.
func (t ActionType) IsNondeterministic() bool {
	return t == ActionGenerate || t == ActionRefactor
}

// TouchesFiles reports whether the action operates on a filesystem path,
// making path-plausibility heuristics applicable.
func (t ActionType) TouchesFiles() bool {
	switch t {
	case ActionRead, ActionWrite, ActionDelete, ActionRefactor:
		return true
	}
	return false
}

// Action binds an action type to its handler parameters.
type Action struct {
	Type   ActionType             `json:"type"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// Param returns the named string parameter, or "" if absent or non-string.
func (a Action) Param(name string) string {
	if a.Params == nil {
		return ""
	}
	s, _ := a.Params[name].(string)
	return s
}

// Equal reports whether two actions are structurally identical: same type
// and same parameter set. Params hold decoded JSON, so values may be
// nested maps and slices; comparison must be deep, not ==.
func (a Action) Equal(other Action) bool {
	if a.Type != other.Type {
		return false
	}
	if len(a.Params) != len(other.Params) {
		return false
	}
	for k, v := range a.Params {
		ov, ok := other.Params[k]
		if !ok || !reflect.DeepEqual(v, ov) {
			return false
		}
	}
	return true
}

// ActionResult is the outcome of a single handler invocation.
type ActionResult struct {
	Output   string            `json:"output,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
