package vm

import "fmt"

// RuntimeError indicates that unit code failed while executing. The stack
// records the unit.method entries that were active at the point of failure,
// innermost first.
type RuntimeError struct {
	message string
	stack   []string
	cause   error
}

func (e *RuntimeError) Error() string {
	if len(e.stack) > 0 {
		return fmt.Sprintf("runtime error: %s (at %s)", e.message, e.stack[0])
	}
	return fmt.Sprintf("runtime error: %s", e.message)
}

// Unwrap returns the underlying cause, if any.
func (e *RuntimeError) Unwrap() error {
	return e.cause
}

// Stack returns the unit.method entries that were active when the error
// occurred, innermost first.
func (e *RuntimeError) Stack() []string {
	stack := make([]string, len(e.stack))
	copy(stack, e.stack)
	return stack
}
