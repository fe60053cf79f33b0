// Package vm provides a Machine that executes compiled units.
package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/understudy-io/understudy/bytecode"
	"github.com/understudy-io/understudy/op"
)

const (
	MaxArgs       = 255
	MaxFrameDepth = 1024
	MaxStackDepth = 1024
	StopSignal    = -1

	// DefaultContextCheckInterval is the number of instructions between
	// deterministic checks of ctx.Done(). Set to 0 to disable.
	DefaultContextCheckInterval = 1000
)

// Machine executes compiled units. A machine links lazily: units named in
// uses declarations are resolved through the configured Linker on first
// call and memoized for the machine's lifetime. A machine runs one call
// at a time; concurrent calls are serialized.
type Machine struct {
	ip          int // instruction pointer
	sp          int // stack pointer
	fp          int // frame pointer
	activeFrame *frame
	linker      Linker
	linked      map[string]Unit
	exitHandler ExitHandler
	policy      Policy
	output      io.Writer
	environ     func(string) string
	builtins    map[string]BuiltinFunc
	runMutex    sync.Mutex

	// contextCheckInterval is the number of instructions between
	// deterministic checks of ctx.Done(). A value of 0 disables the check.
	contextCheckInterval int

	stack  [MaxStackDepth]Value
	frames [MaxFrameDepth]frame
}

// New creates a new Machine.
func New(options ...Option) *Machine {
	m := &Machine{
		linked:               map[string]Unit{},
		builtins:             defaultBuiltins(),
		exitHandler:          processExit{},
		output:               os.Stdout,
		environ:              os.Getenv,
		contextCheckInterval: DefaultContextCheckInterval,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Call invokes a method on the given unit and returns its result.
func (m *Machine) Call(ctx context.Context, unit Unit, method string, args []Value) (result Value, err error) {
	m.runMutex.Lock()
	defer m.runMutex.Unlock()

	if len(args) > MaxArgs {
		return Nil, m.runtimeErrorf("max args limit of %d exceeded (got %d)",
			MaxArgs, len(args))
	}

	// Any panics are translated to errors. Hand-built bytecode can reach
	// states the compiler never produces, such as stack underflow.
	defer func() {
		if r := recover(); r != nil {
			result = Nil
			err = &RuntimeError{message: fmt.Sprintf("panic: %v", r)}
		}
	}()

	switch u := unit.(type) {
	case *Executable:
		target, ok := u.code.Method(method)
		if !ok {
			return Nil, m.runtimeErrorf("unit %s has no method %q",
				u.UnitName(), method)
		}
		if len(args) != target.NumParams() {
			return Nil, m.runtimeErrorf("method %s.%s expects %d args, got %d",
				u.UnitName(), method, target.NumParams(), len(args))
		}
		return m.run(ctx, u, target, args)
	case *NativeUnit:
		fn, ok := u.Method(method)
		if !ok {
			return Nil, m.runtimeErrorf("unit %s has no method %q",
				u.UnitName(), method)
		}
		result, err := fn(ctx, args)
		if err != nil {
			return Nil, m.wrapNativeError(err)
		}
		return result, nil
	default:
		return Nil, m.runtimeErrorf("unit %s is not executable", unit.UnitName())
	}
}

// run executes a bytecode method in frame zero until it returns.
func (m *Machine) run(ctx context.Context, unit *Executable, method *bytecode.Method, args []Value) (Value, error) {
	m.ip = 0
	m.sp = -1
	m.fp = 0
	f := &m.frames[0]
	f.activate(unit, method, StopSignal, -1)
	copy(f.locals, args)
	m.activeFrame = f
	defer func() { m.activeFrame = nil }()
	return m.eval(ctx)
}

func (m *Machine) eval(ctx context.Context) (Value, error) {
	// Instruction counter for deterministic context checking
	var instructionCount int
	checkInterval := m.contextCheckInterval
	doneChan := ctx.Done()

	for {
		frame := m.activeFrame
		method := frame.method

		if m.ip >= method.InstructionCount() {
			// Compiled methods always end with a return. Treat falling off
			// the end of hand-built bytecode as an implicit nil return.
			val, done := m.unwind(Nil)
			if done {
				return val, nil
			}
			continue
		}

		// Deterministic check of ctx.Done() every N instructions. This
		// guarantees responsiveness regardless of goroutine scheduling.
		if checkInterval > 0 && doneChan != nil {
			instructionCount++
			if instructionCount >= checkInterval {
				instructionCount = 0
				select {
				case <-doneChan:
					return Nil, ctx.Err()
				default:
				}
			}
		}

		opcode := method.InstructionAt(m.ip)

		// Advance the instruction pointer before executing, so relative
		// jumps measure from the opcode's own index via base = ip - 1.
		m.ip++

		switch opcode {
		case op.Nop:
		case op.LoadConst:
			c := frame.unit.code.ConstantAt(int(m.fetch()))
			val, err := constValue(c)
			if err != nil {
				return Nil, m.runtimeErrorFrom(err)
			}
			m.push(val)
		case op.LoadFast:
			m.push(frame.locals[m.fetch()])
		case op.StoreFast:
			idx := m.fetch()
			frame.locals[idx] = m.pop()
		case op.Nil:
			m.push(Nil)
		case op.True:
			m.push(True)
		case op.False:
			m.push(False)
		case op.PopTop:
			m.pop()
		case op.BinaryOp:
			opType := op.BinaryOpType(m.fetch())
			b := m.pop()
			a := m.pop()
			result, err := binaryOp(opType, a, b)
			if err != nil {
				return Nil, m.runtimeErrorFrom(err)
			}
			m.push(result)
		case op.CompareOp:
			opType := op.CompareOpType(m.fetch())
			b := m.pop()
			a := m.pop()
			result, err := compare(opType, a, b)
			if err != nil {
				return Nil, m.runtimeErrorFrom(err)
			}
			m.push(result)
		case op.UnaryNegative:
			val := m.pop()
			if val.Kind() != KindInt {
				return Nil, m.runtimeErrorf(
					"unsupported operand type for -: %s", val.Kind())
			}
			m.push(IntValue(-val.Int()))
		case op.UnaryNot:
			val := m.pop()
			if val.Kind() != KindBool {
				return Nil, m.runtimeErrorf(
					"unsupported operand type for !: %s", val.Kind())
			}
			m.push(BoolValue(!val.Bool()))
		case op.JumpForward:
			base := m.ip - 1
			delta := int(m.fetch())
			m.ip = base + delta
		case op.JumpBackward:
			base := m.ip - 1
			delta := int(m.fetch())
			m.ip = base - delta
		case op.PopJumpForwardIfFalse:
			tos := m.pop()
			delta := int(m.fetch()) - 2
			if tos.Kind() != KindBool {
				return Nil, m.runtimeErrorf(
					"expected a bool condition (got %s)", tos.Kind())
			}
			if !tos.Bool() {
				m.ip += delta
			}
		case op.PopJumpForwardIfTrue:
			tos := m.pop()
			delta := int(m.fetch()) - 2
			if tos.Kind() != KindBool {
				return Nil, m.runtimeErrorf(
					"expected a bool condition (got %s)", tos.Kind())
			}
			if tos.Bool() {
				m.ip += delta
			}
		case op.ReturnValue:
			val, done := m.unwind(m.pop())
			if done {
				return val, nil
			}
		case op.Call:
			if err := m.evalCall(ctx, frame); err != nil {
				return Nil, err
			}
		case op.CallUnit:
			if err := m.evalCallUnit(ctx, frame); err != nil {
				return Nil, err
			}
		default:
			return Nil, m.runtimeErrorf("unknown opcode: %d", opcode)
		}
	}
}

// evalCall dispatches an unqualified call: a method of the calling unit,
// or a builtin.
func (m *Machine) evalCall(ctx context.Context, caller *frame) error {
	nameIdx := int(m.fetch())
	argc := int(m.fetch())
	c := caller.unit.code.ConstantAt(nameIdx)
	if c.Kind != bytecode.ConstString {
		return m.runtimeErrorf("call target must be a string constant")
	}
	name := c.Str
	if target, ok := caller.unit.code.Method(name); ok {
		if argc != target.NumParams() {
			return m.runtimeErrorf("method %q expects %d args, got %d",
				name, target.NumParams(), argc)
		}
		return m.pushFrame(caller.unit, target, argc)
	}
	if builtin, ok := m.builtins[name]; ok {
		args := m.popArgs(argc)
		result, err := builtin(ctx, m, args)
		if err != nil {
			return err
		}
		m.push(result)
		return nil
	}
	return m.runtimeErrorf("undefined method %q", name)
}

// evalCallUnit dispatches a qualified call into another unit, linking the
// target on first use.
func (m *Machine) evalCallUnit(ctx context.Context, caller *frame) error {
	refIdx := int(m.fetch())
	argc := int(m.fetch())
	c := caller.unit.code.ConstantAt(refIdx)
	if c.Kind != bytecode.ConstMethodRef {
		return m.runtimeErrorf("unit call target must be a method reference")
	}
	target, err := m.link(ctx, c.Unit)
	if err != nil {
		return err
	}
	switch u := target.(type) {
	case *Executable:
		method, ok := u.code.Method(c.Method)
		if !ok {
			return m.runtimeErrorf("unit %s has no method %q", c.Unit, c.Method)
		}
		if argc != method.NumParams() {
			return m.runtimeErrorf("method %s.%s expects %d args, got %d",
				c.Unit, c.Method, method.NumParams(), argc)
		}
		return m.pushFrame(u, method, argc)
	case *NativeUnit:
		fn, ok := u.Method(c.Method)
		if !ok {
			return m.runtimeErrorf("unit %s has no method %q", c.Unit, c.Method)
		}
		args := m.popArgs(argc)
		result, err := fn(ctx, args)
		if err != nil {
			return m.wrapNativeError(err)
		}
		m.push(result)
		return nil
	default:
		return m.runtimeErrorf("unit %s is not executable", c.Unit)
	}
}

// link resolves a unit by name, memoizing the result. Linker errors pass
// through unchanged so callers can match on their types.
func (m *Machine) link(ctx context.Context, name string) (Unit, error) {
	if u, ok := m.linked[name]; ok {
		return u, nil
	}
	if m.linker == nil {
		return nil, m.runtimeErrorf("no linker is configured (resolving unit %q)", name)
	}
	u, err := m.linker.Link(ctx, name)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, m.runtimeErrorf("linker returned no unit for %q", name)
	}
	m.linked[name] = u
	return u, nil
}

// pushFrame activates a new frame for a bytecode method, moving the top
// argc stack values into its local slots.
func (m *Machine) pushFrame(unit *Executable, method *bytecode.Method, argc int) error {
	if m.fp+1 >= MaxFrameDepth {
		return m.runtimeErrorf("max frame depth of %d exceeded", MaxFrameDepth)
	}
	argBase := m.sp - argc + 1
	m.fp++
	f := &m.frames[m.fp]
	f.activate(unit, method, m.ip, argBase-1)
	copy(f.locals, m.stack[argBase:argBase+argc])
	for i := argBase; i <= m.sp; i++ {
		m.stack[i] = Value{}
	}
	m.sp = argBase - 1
	m.activeFrame = f
	m.ip = 0
	return nil
}

// unwind pops the active frame. It reports true when the entry frame
// returned, otherwise the value is pushed for the resumed caller.
func (m *Machine) unwind(val Value) (Value, bool) {
	f := m.activeFrame
	returnAddr := f.returnAddr
	m.sp = f.returnSp
	if returnAddr == StopSignal {
		return val, true
	}
	m.fp--
	m.activeFrame = &m.frames[m.fp]
	m.ip = returnAddr
	m.push(val)
	return Nil, false
}

// UnitStack returns the fully qualified names of the units with active
// frames, innermost first. Builtins use it to attribute actions such as
// exit attempts to the code that initiated them.
func (m *Machine) UnitStack() []string {
	if m.activeFrame == nil {
		return nil
	}
	stack := make([]string, 0, m.fp+1)
	for i := m.fp; i >= 0; i-- {
		stack = append(stack, m.frames[i].unit.UnitName())
	}
	return stack
}

// callStack returns unit.method entries for error reports, innermost first.
func (m *Machine) callStack() []string {
	if m.activeFrame == nil {
		return nil
	}
	stack := make([]string, 0, m.fp+1)
	for i := m.fp; i >= 0; i-- {
		f := &m.frames[i]
		stack = append(stack, f.unit.UnitName()+"."+f.method.Name())
	}
	return stack
}

func (m *Machine) pop() Value {
	val := m.stack[m.sp]
	m.stack[m.sp] = Value{}
	m.sp--
	return val
}

func (m *Machine) push(val Value) {
	m.sp++
	m.stack[m.sp] = val
}

func (m *Machine) popArgs(argc int) []Value {
	args := make([]Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = m.pop()
	}
	return args
}

func (m *Machine) fetch() uint16 {
	ip := m.ip
	m.ip++
	return uint16(m.activeFrame.method.InstructionAt(ip))
}

func (m *Machine) runtimeErrorf(format string, args ...any) *RuntimeError {
	return &RuntimeError{
		message: fmt.Sprintf(format, args...),
		stack:   m.callStack(),
	}
}

func (m *Machine) runtimeErrorFrom(err error) *RuntimeError {
	return &RuntimeError{
		message: err.Error(),
		stack:   m.callStack(),
		cause:   err,
	}
}

// wrapNativeError attaches machine context to an error from a native
// method, unless it already carries it.
func (m *Machine) wrapNativeError(err error) error {
	var rerr *RuntimeError
	if errors.As(err, &rerr) {
		return err
	}
	return m.runtimeErrorFrom(err)
}
