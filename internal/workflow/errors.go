package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrNotPermitted is the authorization error: this actor may never
	// perform this action on this job, regardless of state.
	ErrNotPermitted = errors.New("not permitted to perform this action")

	// ErrWrongState is the precondition error: the actor's role is fine but
	// the job is not in a status that allows the action.
	ErrWrongState = errors.New("job is not in the correct state")

	// ErrDuplicateQuote is returned when a resubmitted quote is byte-for-byte
	// identical to the stored one.
	ErrDuplicateQuote = errors.New("you must provide a new quote")

	// ErrValidation wraps malformed-input failures so handlers can map them
	// uniformly.
	ErrValidation = errors.New("invalid input")
)

// wrongStateError carries the action wording for the user-facing message.
func wrongStateError(action Action) error {
	return fmt.Errorf("%w for %s", ErrWrongState, action.label())
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Validationf builds an ErrValidation for malformed input detected outside
// this package, e.g. request parsing in the handlers.
func Validationf(format string, args ...any) error {
	return validationError(format, args...)
}
