// Package trap intercepts exit attempts made by unit code. A Guard
// converts exits initiated by a protected unit into catchable errors
// while letting unrelated exits terminate the process as usual.
package trap

import (
	"fmt"
	"os"
)

// ExitError is returned when a guarded unit attempts to exit. The exit
// does not happen; callers observe the attempt and the status code it
// carried.
type ExitError struct {
	// Code is the status code passed to exit.
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit attempted with code %d", e.Code)
}

// Terminator ends the process with the given status code.
type Terminator interface {
	Terminate(code int)
}

// TerminatorFunc adapts a function to the Terminator interface.
type TerminatorFunc func(code int)

// Terminate calls the wrapped function.
func (f TerminatorFunc) Terminate(code int) { f(code) }

// ProcessTerminator terminates the current process via os.Exit.
type ProcessTerminator struct{}

// Terminate exits the process with the given status code.
func (ProcessTerminator) Terminate(code int) { os.Exit(code) }

// Guard decides what happens when unit code calls exit. If the protected
// target unit has a frame on the stack, the exit is converted into an
// *ExitError that propagates to the caller. Otherwise the exit proceeds
// through the configured Terminator, which defaults to terminating the
// process.
//
// Guard satisfies both the machine's ExitHandler and Policy interfaces,
// so one guard can be installed for both seams.
type Guard struct {
	// Target is the fully qualified name of the unit to protect.
	Target string

	// Terminator handles exits that do not involve the target. If nil,
	// ProcessTerminator is used.
	Terminator Terminator
}

// NewGuard creates a Guard protecting the named unit.
func NewGuard(target string) *Guard {
	return &Guard{Target: target}
}

// OnExit inspects the stack of unit names active at the point of the
// exit call, innermost first. The decision depends only on whether the
// target appears anywhere in the stack: a protected unit cannot delegate
// its way around the guard by exiting through an intermediary.
func (g *Guard) OnExit(stack []string, code int) error {
	for _, name := range stack {
		if name == g.Target {
			return &ExitError{Code: code}
		}
	}
	g.terminator().Terminate(code)
	return nil
}

// Check permits every operation. The guard's sole concern is exit
// interception, not sandboxing.
func (g *Guard) Check(op, name string) error {
	return nil
}

func (g *Guard) terminator() Terminator {
	if g.Terminator != nil {
		return g.Terminator
	}
	return ProcessTerminator{}
}
