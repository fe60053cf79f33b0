// Package understudy substitutes compiled units at load time. The
// package-level functions cover the common journey: compile a
// substitute from in-memory source, install it as a process-wide
// override, and load units through fresh Loaders that prefer overrides
// over platform resources.
//
//	container, _ := understudy.CompileSource(ctx, "com.example.Foo", source)
//	understudy.Mock("com.example.Foo", container)
//	defer understudy.Forget("com.example.Foo")
//
//	result, _ := understudy.Call(ctx, "com.example.Foo", "value", nil)
package understudy

import (
	"context"

	"github.com/understudy-io/understudy/core"
	"github.com/understudy-io/understudy/loader"
	"github.com/understudy-io/understudy/mocking"
	"github.com/understudy-io/understudy/vm"
)

// Version is the platform version this library targets.
const Version = core.Version

// Mock installs a compiled container as the process-wide override for
// the named unit. Every Loader sharing the default registry serves it
// in place of the unit's resource definition until Forget is called.
func Mock(name string, container []byte) {
	loader.DefaultRegistry.Install(name, container)
}

// Forget removes the named override, reporting whether one was
// installed. Loaders that already resolved the unit keep their
// definition; only fresh loads observe the removal.
func Forget(name string) bool {
	return loader.DefaultRegistry.Remove(name)
}

// ForgetAll drops every installed override.
func ForgetAll() {
	loader.DefaultRegistry.Clear()
}

// NewLoader returns a Loader backed by the platform core library and
// the default override registry. Options may replace either.
func NewLoader(opts ...loader.Option) *loader.Loader {
	base := []loader.Option{loader.WithParent(core.NewLibrary())}
	return loader.New(append(base, opts...)...)
}

// CompileSource compiles an in-memory source text into a container for
// the named unit. The platform toolchain is discovered on first use;
// pass mocking options to override discovery or redirect diagnostics.
func CompileSource(ctx context.Context, name, source string, opts ...mocking.Option) ([]byte, error) {
	unit, err := mocking.NewCompiler(opts...).Compile(ctx, mocking.SourceUnit{
		Name:   name,
		Source: source,
	})
	if err != nil {
		return nil, err
	}
	return unit.Container, nil
}

// MockSource compiles source for the named unit and installs the
// result as its override in one step.
func MockSource(ctx context.Context, name, source string, opts ...mocking.Option) error {
	container, err := CompileSource(ctx, name, source, opts...)
	if err != nil {
		return err
	}
	Mock(name, container)
	return nil
}

// Call loads the named unit through a fresh Loader and invokes one of
// its methods on a new machine. Units referenced during execution link
// child-first through the same Loader.
func Call(ctx context.Context, name, method string, args []vm.Value, opts ...loader.Option) (vm.Value, error) {
	l := NewLoader(opts...)
	unit, err := l.Load(ctx, name)
	if err != nil {
		return vm.Nil, err
	}
	m := vm.New(vm.WithLinker(l))
	return m.Call(ctx, unit, method, args)
}
