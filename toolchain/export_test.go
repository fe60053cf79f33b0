package toolchain

import "sync"

// ResetDefault clears the memoized system discovery so tests can force
// a fresh probe.
func ResetDefault() {
	defaultOnce = sync.Once{}
	defaultTC = nil
	defaultErr = nil
}
