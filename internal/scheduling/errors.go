package scheduling

import (
	"errors"
	"fmt"
)

// ValidationError reports a meeting intent that was rejected before any
// search ran. The reason is human-readable and surfaced to the caller as-is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InfraError marks a collaborator failure (calendar query, meeting commit).
// It is fatal for the current run and must never be conflated with a
// no-slots-found outcome.
type InfraError struct {
	Op  string
	Err error
}

func (e *InfraError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfraError) Unwrap() error { return e.Err }

// IsInfra reports whether err is an infrastructure failure.
func IsInfra(err error) bool {
	var ie *InfraError
	return errors.As(err, &ie)
}

func infraErr(op string, err error) error {
	return &InfraError{Op: op, Err: err}
}
