package mocking

import "fmt"

// CompileError reports that a source unit did not produce a usable
// container. The underlying diagnostics were already written to the
// compiler's diagnostics writer.
type CompileError struct {
	// Name is the unit name the caller asked to compile.
	Name string

	// Declared is the unit name the source actually declared, when it
	// differs from Name.
	Declared string

	// Err is the parse or compile failure, if there was one.
	Err error
}

func (e *CompileError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("compiling unit %s: %s", e.Name, e.Err)
	case e.Declared != "" && e.Declared != e.Name:
		return fmt.Sprintf("compiling unit %s: source declares unit %s", e.Name, e.Declared)
	default:
		return fmt.Sprintf("compiling unit %s: no container produced", e.Name)
	}
}

func (e *CompileError) Unwrap() error {
	return e.Err
}
