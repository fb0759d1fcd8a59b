package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure into the platform's error taxonomy.
// Every error that crosses an agent boundary carries exactly one Kind.
type Kind string

const (
	// KindValidation indicates the caller supplied invalid parameters.
	KindValidation Kind = "validation_error"

	// KindUnknownCapability indicates no agent is registered for the
	// requested capability.
	KindUnknownCapability Kind = "unknown_capability"

	// KindUnsupportedAction indicates the agent exists but does not
	// implement the requested action.
	KindUnsupportedAction Kind = "unsupported_action"

	// KindConflictBlocked indicates a mutation was rejected because the
	// conflict framework produced at least one blocking conflict.
	KindConflictBlocked Kind = "conflict_blocked"

	// KindUpstreamUnavailable indicates an external completion or
	// embedding call timed out or failed. Safe to retry.
	KindUpstreamUnavailable Kind = "upstream_unavailable"

	// KindStorage indicates a persistence failure. Never auto-retried
	// to avoid duplicate side effects.
	KindStorage Kind = "storage_error"

	// KindCancelled indicates the caller cancelled the request.
	KindCancelled Kind = "cancelled"
)

// Error is a typed error carrying a taxonomy Kind. ConflictBlocked
// errors additionally carry the complete conflict list so the caller
// can present it and decide whether to override.
type Error struct {
	Kind      Kind
	Message   string
	Conflicts []ConflictInfo
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error with the same Kind. This lets
// callers write errors.Is(err, domain.NewError(domain.KindStorage, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// NewError creates a typed error.
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates a typed error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a Kind to an underlying error, preserving the
// original message for diagnostics. If err is already typed it is
// returned unchanged - errors are never double-wrapped.
func WrapError(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return &Error{Kind: kind, Message: msg, cause: err}
}

// BlockedError creates a ConflictBlocked error carrying the full
// conflict list.
func BlockedError(conflicts []ConflictInfo) *Error {
	return &Error{
		Kind:      KindConflictBlocked,
		Message:   fmt.Sprintf("mutation blocked by %d conflict(s)", countBlocking(conflicts)),
		Conflicts: conflicts,
	}
}

func countBlocking(conflicts []ConflictInfo) int {
	n := 0
	for _, c := range conflicts {
		if c.Severity == SeverityBlocking {
			n++
		}
	}
	return n
}

// KindOf extracts the Kind from an error chain. Untyped errors report
// KindStorage with ok=false so callers can tell a genuine storage error
// from an unclassified one.
func KindOf(err error) (Kind, bool) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind, true
	}
	return KindStorage, false
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
