package shared

import "fmt"

// ValidationError represents a rejected input to the structure pipeline.
type ValidationError struct {
	Field  string
	Reason string
}

// Error returns the validation error's message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
