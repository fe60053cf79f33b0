package bytecode

import "fmt"

// FormatError indicates that a unit container held malformed or
// unverifiable data.
type FormatError struct {
	message string
	cause   error
}

// NewFormatError returns a new FormatError with a formatted message.
func NewFormatError(format string, args ...any) *FormatError {
	return &FormatError{message: fmt.Sprintf(format, args...)}
}

func (e *FormatError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("malformed unit: %s: %s", e.message, e.cause)
	}
	return fmt.Sprintf("malformed unit: %s", e.message)
}

func (e *FormatError) Unwrap() error {
	return e.cause
}
