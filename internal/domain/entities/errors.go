package entities

import "fmt"

// ValidationError indicates a missing or invalid required field. It is
// rejected at the aggregate boundary and must never be retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InvalidTransitionError indicates an illegal state-machine transition.
// The saga treats it as a logic bug, not a retryable fault.
type InvalidTransitionError struct {
	Aggregate string
	From      string
	To        string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: invalid transition from %s to %s", e.Aggregate, e.From, e.To)
}
