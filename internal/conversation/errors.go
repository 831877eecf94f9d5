package conversation

import "fmt"

// FailureClass buckets every handler failure by how the call recovers.
type FailureClass string

const (
	// FailureUserAmbiguity is recovered locally by re-prompting with the
	// exact set of valid options. Never a system error.
	FailureUserAmbiguity FailureClass = "user_ambiguity"

	// FailureConfiguration needs an administrator fix, not a retry.
	FailureConfiguration FailureClass = "configuration"

	// FailureConflict is the slot-taken race, recovered by reverting to
	// slot selection.
	FailureConflict FailureClass = "conflict"

	// FailureSystem covers timeouts, auth failures, and malformed
	// responses. Reported once, state reverted, staff follow up.
	FailureSystem FailureClass = "system"

	// FailureInvariant is a defect in this system, logged distinctly and
	// surfaced only as a generic apology.
	FailureInvariant FailureClass = "invariant"
)

// Stable codes for failures that name a specific configuration or
// invariant problem.
const (
	CodeNoAppointmentTypes = "NO_APPOINTMENT_TYPES_CONFIGURED"
	CodeNoProviderForType  = "NO_PROVIDER_FOR_APPOINTMENT_TYPE"
	CodeMissingProviderID  = "MISSING_PROVIDER_ID_FOR_CREATION"
	CodeToolNotAllowed     = "TOOL_NOT_ALLOWED_IN_STAGE"
	CodeUnknownTool        = "UNKNOWN_TOOL"
)

// HandlerError is a classified handler failure.
type HandlerError struct {
	Class FailureClass
	Code  string
	Err   error
}

func (e *HandlerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Class, e.Code, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Class, e.Code)
}

func (e *HandlerError) Unwrap() error { return e.Err }

func newHandlerError(class FailureClass, code string, err error) *HandlerError {
	return &HandlerError{Class: class, Code: code, Err: err}
}

func invariantErr(format string, args ...any) *HandlerError {
	return &HandlerError{Class: FailureInvariant, Err: fmt.Errorf(format, args...)}
}

func systemErr(err error) *HandlerError {
	return &HandlerError{Class: FailureSystem, Err: err}
}
