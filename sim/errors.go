package sim

import (
	"errors"
	"fmt"
)

// Setup failure reasons. A SetupError always wraps exactly one of these.
var (
	ErrNegativeCount      = errors.New("negative count")
	ErrNoPools            = errors.New("resources configured but no pools to hold them")
	ErrDuplicateResource  = errors.New("duplicate resource id")
	ErrDuplicateConsumer  = errors.New("duplicate consumer id")
	ErrUnknownActivation  = errors.New("unknown activation policy")
	ErrUnknownTraceLevel  = errors.New("unknown trace level")
	ErrAlreadyInitialized = errors.New("simulation already initialized")
	ErrSharedRandSource   = errors.New("random source shared by several consumers in parallel mode")
)

// SetupError reports an invalid configuration or starting distribution.
// It is surfaced before any round runs; the simulation does not start.
type SetupError struct {
	Field string
	Err   error
}

func (e *SetupError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("setup: %v", e.Err)
	}
	return fmt.Sprintf("setup: %s: %v", e.Field, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

func newSetupError(field string, err error, format string, args ...any) *SetupError {
	if format != "" {
		err = fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
	}
	return &SetupError{Field: field, Err: err}
}

// ProtocolError signals a violated phase-ordering or ownership contract.
// It is raised with panic: correct callers never trigger it.
type ProtocolError struct {
	Op     string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation in %s: %s", e.Op, e.Reason)
}

func protocolPanic(op, format string, args ...any) {
	panic(&ProtocolError{Op: op, Reason: fmt.Sprintf(format, args...)})
}
