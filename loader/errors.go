package loader

import "fmt"

// ResolveError indicates that a unit name matched no installed override
// and no resource known to the loader's resolver.
type ResolveError struct {
	Name string
	Path string // resource path that was checked, if any
}

func (e *ResolveError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("unit not found: %s (no resource %s)", e.Name, e.Path)
	}
	return fmt.Sprintf("unit not found: %s", e.Name)
}

// ResourceError indicates that a container for a unit was located but
// could not be fully read. Op identifies the stage that failed: "open",
// "read" or "close". Close failures are reported like any other, since
// a container that cannot be closed cleanly cannot be trusted.
type ResourceError struct {
	Op   string
	Name string
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("unit %s: %s %s: %v", e.Name, e.Op, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }
