package flow

import (
	"errors"
	"fmt"
)

// ErrUnknownFlow reports a flow id with no registered definition. Flow
// graphs are static, so this is a programming error, never user-facing.
var ErrUnknownFlow = errors.New("unknown flow")

// ErrUnknownStep reports a (flow, step) pair that does not exist in the
// registry. Like ErrUnknownFlow it indicates graph corruption and is fatal
// to the current interaction.
var ErrUnknownStep = errors.New("unknown step")

// InputError rejects user input at a single step. It never escapes the
// engine as a system error: the step is re-prompted with the hint.
type InputError struct {
	Hint string
}

func (e *InputError) Error() string {
	return e.Hint
}

// inputErrorf builds an InputError with a formatted hint.
func inputErrorf(format string, args ...any) *InputError {
	return &InputError{Hint: fmt.Sprintf(format, args...)}
}
