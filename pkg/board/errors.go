package board

import "fmt"

// ValidationError reports a malformed create or update request.
// The request is rejected and no store mutation takes place.
type ValidationError struct {
	Field  string
	Reason string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("board: invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an operation that referenced an id not present in a
// store. Callers receive it as a non-fatal rejection; stale references from
// disconnected clients must never crash the board.
type NotFoundError struct {
	Kind string // "pin" or "user"
	ID   string
}

// Error returns the error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("board: %s %s not found", e.Kind, e.ID)
}
