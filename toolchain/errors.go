package toolchain

import "fmt"

// Error indicates that no usable toolchain could be discovered. The
// message distinguishes the causes: the install root is missing, no
// candidate installations exist, no candidate works, or the platform
// has no fallback search at all.
type Error struct {
	message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("toolchain unavailable: %s", e.message)
}

func (e *Error) Unwrap() error {
	return e.cause
}
