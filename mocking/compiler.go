// Package mocking compiles substitute units from in-memory source so
// tests can install them as overrides. The Compiler drives the platform
// toolchain against a named source text and collects the container
// through a one-shot Store, the way a build would collect class files
// from an output sink.
package mocking

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/understudy-io/understudy/bytecode"
	"github.com/understudy-io/understudy/compiler"
	"github.com/understudy-io/understudy/parser"
	"github.com/understudy-io/understudy/toolchain"
	"github.com/understudy-io/understudy/vm"
)

// SourceUnit is a named in-memory source text. Name is the fully
// qualified unit name the source is expected to declare.
type SourceUnit struct {
	Name   string
	Source string
}

// CompiledUnit pairs a unit name with its compiled container bytes,
// ready for the loader's override registry.
type CompiledUnit struct {
	Name      string
	Container []byte
}

// Compiler invokes the platform toolchain against source units. Every
// call discovers the toolchain lazily through the configured discovery
// function, compiles against its core manifest and stamps its version
// into the container.
type Compiler struct {
	store       *Store
	diagnostics io.Writer
	discover    func() (*toolchain.Toolchain, error)
	log         zerolog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithStore supplies the store that collects compiled containers.
func WithStore(s *Store) Option {
	return func(c *Compiler) { c.store = s }
}

// WithDiagnostics sets the writer that receives compiler errors and
// warnings. The default is os.Stderr.
func WithDiagnostics(w io.Writer) Option {
	return func(c *Compiler) { c.diagnostics = w }
}

// WithToolchain replaces the toolchain discovery function. The default
// is the memoized system discovery.
func WithToolchain(fn func() (*toolchain.Toolchain, error)) Option {
	return func(c *Compiler) { c.discover = fn }
}

// WithLogger attaches a logger for compilation events.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Compiler) { c.log = log }
}

// NewCompiler returns a Compiler with a private store, diagnostics on
// os.Stderr and the system toolchain.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{
		store:       NewStore(),
		diagnostics: os.Stderr,
		discover:    toolchain.Default,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile turns a single source unit into its compiled container.
// Diagnostics go to the diagnostics writer as a side effect; a failed
// parse or compile, and a source declaring a different unit name than
// requested, yield a *CompileError rather than an empty result.
// Toolchain discovery failures propagate unchanged.
func (c *Compiler) Compile(ctx context.Context, src SourceUnit) (*CompiledUnit, error) {
	tc, err := c.discover()
	if err != nil {
		return nil, err
	}
	filename := src.Name + ".unit"
	node, err := parser.Parse(ctx, src.Source, parser.WithFilename(filename))
	if err != nil {
		fmt.Fprintln(c.diagnostics, err.Error())
		return nil, &CompileError{Name: src.Name, Err: err}
	}
	comp := compiler.New(&compiler.Config{
		Filename:        filename,
		CompilerVersion: tc.Version,
		Builtins:        vm.BuiltinArities(),
		Units:           tc.Manifest.Units,
	})
	unit, err := comp.Compile(node)
	for _, warning := range comp.Warnings() {
		fmt.Fprintln(c.diagnostics, warning)
	}
	if err != nil {
		fmt.Fprintln(c.diagnostics, err.Error())
		return nil, &CompileError{Name: src.Name, Err: err}
	}
	container, err := bytecode.Marshal(unit)
	if err != nil {
		return nil, fmt.Errorf("encoding unit %s: %w", unit.Name(), err)
	}

	// The container is stored under its declared name and polled back by
	// the requested one, so a source declaring the wrong unit surfaces
	// here instead of leaving a stray container behind.
	c.store.Put(unit.Name(), container)
	data, ok := c.store.Poll(src.Name)
	if !ok {
		c.store.Poll(unit.Name())
		return nil, &CompileError{Name: src.Name, Declared: unit.Name()}
	}
	c.log.Debug().
		Str("unit", src.Name).
		Int("bytes", len(data)).
		Str("toolchain", tc.Version).
		Msg("compiled unit")
	return &CompiledUnit{Name: src.Name, Container: data}, nil
}

// CompileAll compiles a batch of source units, continuing past per-unit
// failures and aggregating their errors. The returned slice holds the
// units that compiled.
func (c *Compiler) CompileAll(ctx context.Context, sources ...SourceUnit) ([]*CompiledUnit, error) {
	var errs *multierror.Error
	units := make([]*CompiledUnit, 0, len(sources))
	for _, src := range sources {
		unit, err := c.Compile(ctx, src)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		units = append(units, unit)
	}
	return units, errs.ErrorOrNil()
}
