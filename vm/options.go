package vm

import "io"

// Option is a configuration function for a Machine.
type Option func(*Machine)

// WithLinker sets the linker used to resolve units named in uses
// declarations. Without a linker, calls into other units fail.
func WithLinker(linker Linker) Option {
	return func(m *Machine) {
		m.linker = linker
	}
}

// WithExitHandler sets the handler consulted when unit code calls the
// exit builtin. The default handler terminates the process.
func WithExitHandler(handler ExitHandler) Option {
	return func(m *Machine) {
		m.exitHandler = handler
	}
}

// WithPolicy sets the policy consulted before sensitive builtins run.
// Without a policy every operation is allowed.
func WithPolicy(policy Policy) Option {
	return func(m *Machine) {
		m.policy = policy
	}
}

// WithOutput sets the writer that the print builtin writes to. The
// default is os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(m *Machine) {
		m.output = w
	}
}

// WithEnviron sets the lookup function backing the env builtin. The
// default is os.Getenv.
func WithEnviron(fn func(name string) string) Option {
	return func(m *Machine) {
		m.environ = fn
	}
}

// WithBuiltin adds or replaces a single builtin.
func WithBuiltin(name string, fn BuiltinFunc) Option {
	return func(m *Machine) {
		m.builtins[name] = fn
	}
}

// WithContextCheckInterval sets how often the machine checks ctx.Done()
// during execution. The interval is specified in number of instructions.
// A value of 0 disables the check. The default is
// DefaultContextCheckInterval (1000).
func WithContextCheckInterval(interval int) Option {
	return func(m *Machine) {
		m.contextCheckInterval = interval
	}
}
