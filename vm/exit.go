package vm

import "os"

// ExitHandler decides what happens when unit code calls the exit builtin.
// The stack holds the fully qualified names of the units with active
// frames, innermost first. A handler either terminates the process, or
// returns an error that propagates out of the machine, or returns nil to
// let execution resume after the exit call.
type ExitHandler interface {
	OnExit(stack []string, code int) error
}

// ExitHandlerFunc adapts a function to the ExitHandler interface.
type ExitHandlerFunc func(stack []string, code int) error

// OnExit calls the wrapped function.
func (f ExitHandlerFunc) OnExit(stack []string, code int) error {
	return f(stack, code)
}

// processExit terminates the process, which is what exit means when no
// other handler is installed.
type processExit struct{}

func (processExit) OnExit(stack []string, code int) error {
	os.Exit(code)
	return nil
}
