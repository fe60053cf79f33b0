package vm

import (
	"context"
	"sort"

	"github.com/understudy-io/understudy/bytecode"
)

// Unit is an executable unit of code. A unit is either an Executable,
// produced by loading compiled bytecode, or a NativeUnit implemented
// directly in Go.
type Unit interface {
	// UnitName returns the fully qualified unit name, such as "core.Math".
	UnitName() string

	executableUnit()
}

// Executable wraps a compiled unit so it can run on a Machine.
type Executable struct {
	code *bytecode.Unit
}

// NewExecutable returns an executable view of the given compiled unit.
func NewExecutable(code *bytecode.Unit) *Executable {
	return &Executable{code: code}
}

func (e *Executable) executableUnit() {}

// UnitName returns the fully qualified name of the wrapped unit.
func (e *Executable) UnitName() string { return e.code.Name() }

// Bytecode returns the wrapped compiled unit.
func (e *Executable) Bytecode() *bytecode.Unit { return e.code }

// NativeMethod is a single unit method implemented in Go. Implementations
// are responsible for validating their own argument counts and types.
type NativeMethod func(ctx context.Context, args []Value) (Value, error)

// NativeUnit is a unit implemented in Go rather than in bytecode. Native
// units back the built-in core library.
type NativeUnit struct {
	name    string
	methods map[string]NativeMethod
}

// NewNativeUnit creates a native unit with the given fully qualified name
// and methods.
func NewNativeUnit(name string, methods map[string]NativeMethod) *NativeUnit {
	copied := make(map[string]NativeMethod, len(methods))
	for name, fn := range methods {
		copied[name] = fn
	}
	return &NativeUnit{name: name, methods: copied}
}

func (u *NativeUnit) executableUnit() {}

// UnitName returns the fully qualified unit name.
func (u *NativeUnit) UnitName() string { return u.name }

// Method returns the named method, if it exists.
func (u *NativeUnit) Method(name string) (NativeMethod, bool) {
	fn, ok := u.methods[name]
	return fn, ok
}

// MethodNames returns the names of all methods, sorted.
func (u *NativeUnit) MethodNames() []string {
	names := make([]string, 0, len(u.methods))
	for name := range u.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Linker resolves the fully qualified unit names that appear in uses
// declarations. The machine links lazily: a unit is resolved the first
// time one of its methods is called, and the result is memoized for the
// lifetime of the machine. Errors returned by Link are propagated to the
// caller unchanged.
type Linker interface {
	Link(ctx context.Context, name string) (Unit, error)
}

// LinkerFunc adapts a function to the Linker interface.
type LinkerFunc func(ctx context.Context, name string) (Unit, error)

// Link calls the wrapped function.
func (f LinkerFunc) Link(ctx context.Context, name string) (Unit, error) {
	return f(ctx, name)
}
