package domain

import "errors"

// Result status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrorInfo is the wire representation of a failure inside a Result.
type ErrorInfo struct {
	Kind      Kind           `json:"kind"`
	Message   string         `json:"message"`
	Conflicts []ConflictInfo `json:"conflicts,omitempty"`
}

// Result is the envelope returned by every orchestrated request.
// Raw errors never reach the caller; failures are carried as ErrorInfo.
type Result struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
	Err    *ErrorInfo     `json:"error,omitempty"`

	// Event, if set by an agent on success, is the subject the
	// orchestrator publishes after persistence. Not serialized.
	Event        string `json:"-"`
	EventPayload any    `json:"-"`

	// Mutation, if set, is a proposed ProjectContext change that must
	// pass the conflict gate before it is applied. Not serialized.
	Mutation *MutationProposal `json:"-"`
}

// MutationProposal is an agent's request to change a ProjectContext.
// The orchestrator evaluates it against the current context under the
// per-project lock.
type MutationProposal struct {
	ProjectID string
	Delta     *ContextDelta
	Actor     string
}

// OK builds a success Result.
func OK(data map[string]any) *Result {
	return &Result{Status: StatusSuccess, Data: data}
}

// Fail builds an error Result from a typed error. Untyped errors are
// classified as storage errors with the original message preserved.
func Fail(err error) *Result {
	var typed *Error
	if !errors.As(err, &typed) {
		typed = &Error{Kind: KindStorage, Message: err.Error()}
	}
	return &Result{
		Status: StatusError,
		Err: &ErrorInfo{
			Kind:      typed.Kind,
			Message:   typed.Error(),
			Conflicts: typed.Conflicts,
		},
	}
}
