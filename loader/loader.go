// Package loader resolves unit names to executable units, preferring
// installed overrides over resource lookup.
//
// Resolution is child-first. Each loader keeps its own set of resolved
// units, consults the override registry next and falls back to a
// resolver only when neither has the name. Names under a protected
// namespace bypass overrides entirely and are served by the parent
// library alone, so a test can never substitute the platform units the
// machine itself depends on.
package loader

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/understudy-io/understudy/bytecode"
	"github.com/understudy-io/understudy/vm"
)

// Parent serves units for protected namespaces. It is consulted instead
// of the registry and resolver for any name the loader treats as
// protected.
type Parent interface {
	Resolve(name string) (vm.Unit, bool)
}

// DefaultProtected lists the namespace prefixes loaders protect unless
// configured otherwise.
var DefaultProtected = []string{"core."}

// Loader resolves fully qualified unit names to units the machine can
// call. A single loader resolves each name at most once: repeated loads
// of the same name return the identical unit even if the registry was
// mutated in between, so every unit that links against the name sees
// one consistent definition.
type Loader struct {
	registry  *Registry
	resolver  Resolver
	parent    Parent
	protected []string
	log       zerolog.Logger

	mu        sync.Mutex
	instances map[string]vm.Unit
}

// Option configures a Loader.
type Option func(*Loader)

// WithRegistry directs the loader at a private override registry
// instead of DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(l *Loader) { l.registry = r }
}

// WithResolver supplies the fallback used for names that have no
// installed override.
func WithResolver(r Resolver) Option {
	return func(l *Loader) { l.resolver = r }
}

// WithParent supplies the library that serves protected namespaces.
func WithParent(p Parent) Option {
	return func(l *Loader) { l.parent = p }
}

// WithProtected replaces the namespace prefixes the loader refuses to
// serve from overrides.
func WithProtected(prefixes ...string) Option {
	return func(l *Loader) { l.protected = prefixes }
}

// WithLogger attaches a logger for resolution events.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// New returns a loader backed by DefaultRegistry, with no resolver and
// no parent.
func New(opts ...Option) *Loader {
	l := &Loader{
		registry:  DefaultRegistry,
		protected: DefaultProtected,
		log:       zerolog.Nop(),
		instances: map[string]vm.Unit{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves the named unit without linking its dependencies. The
// search order is fixed: protected names go straight to the parent,
// everything else is served from this loader's already-resolved units,
// then the override registry, then the resolver. Containers fetched
// from the resolver are cached into the registry on success, so later
// loaders skip the resource read and an installed override becomes the
// only way to change the definition again.
func (l *Loader) Load(ctx context.Context, name string) (vm.Unit, error) {
	if l.isProtected(name) {
		if l.parent != nil {
			if unit, ok := l.parent.Resolve(name); ok {
				return unit, nil
			}
		}
		return nil, &ResolveError{Name: name}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if unit, ok := l.instances[name]; ok {
		return unit, nil
	}
	if container, ok := l.registry.Lookup(name); ok {
		unit, err := l.define(name, container)
		if err != nil {
			return nil, err
		}
		l.instances[name] = unit
		l.log.Debug().Str("unit", name).Msg("loaded unit from override")
		return unit, nil
	}
	if l.resolver == nil {
		return nil, &ResolveError{Name: name}
	}
	container, err := l.resolver.ResolveUnit(ctx, name)
	if err != nil {
		return nil, err
	}
	unit, err := l.define(name, container)
	if err != nil {
		return nil, err
	}
	l.registry.Install(name, container)
	l.instances[name] = unit
	l.log.Debug().Str("unit", name).Msg("loaded unit from resources")
	return unit, nil
}

// LoadLinked resolves the named unit and then eagerly resolves every
// unit it uses, transitively. The machine links lazily on first call,
// so LoadLinked is for callers that want resolution failures up front
// instead of mid-run.
func (l *Loader) LoadLinked(ctx context.Context, name string) (vm.Unit, error) {
	unit, err := l.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{name: true}
	queue := unitUses(unit)
	for len(queue) > 0 {
		dep := queue[0]
		queue = queue[1:]
		if seen[dep] {
			continue
		}
		seen[dep] = true
		loaded, err := l.Load(ctx, dep)
		if err != nil {
			return nil, fmt.Errorf("linking %s: %w", name, err)
		}
		queue = append(queue, unitUses(loaded)...)
	}
	return unit, nil
}

// Link implements the machine's linker interface.
func (l *Loader) Link(ctx context.Context, name string) (vm.Unit, error) {
	return l.Load(ctx, name)
}

func (l *Loader) define(name string, container []byte) (vm.Unit, error) {
	code, err := bytecode.Unmarshal(container)
	if err != nil {
		return nil, fmt.Errorf("defining unit %s: %w", name, err)
	}
	if code.Name() != name {
		return nil, fmt.Errorf("unit %s resolved to a container declaring %s", name, code.Name())
	}
	return vm.NewExecutable(code), nil
}

func (l *Loader) isProtected(name string) bool {
	for _, prefix := range l.protected {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func unitUses(unit vm.Unit) []string {
	ex, ok := unit.(*vm.Executable)
	if !ok {
		return nil
	}
	return ex.Bytecode().Uses()
}
