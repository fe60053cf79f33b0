package vm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/understudy-io/understudy/compiler"
	"github.com/understudy-io/understudy/parser"
)

func compileUnit(t *testing.T, src string) *Executable {
	t.Helper()
	node, err := parser.Parse(context.Background(), src)
	require.NoError(t, err)
	unit, err := compiler.Compile(node, &compiler.Config{
		Builtins: BuiltinArities(),
	})
	require.NoError(t, err)
	return NewExecutable(unit)
}

func TestValueReturn(t *testing.T) {
	unit := compileUnit(t, `unit com.example.Answer

method value() {
  return 42
}
`)
	m := New()
	result, err := m.Call(context.Background(), unit, "value", nil)
	require.NoError(t, err)
	require.Equal(t, IntValue(42), result)
}

func TestExpressions(t *testing.T) {
	tests := []struct {
		expr string
		want Value
	}{
		{"1 + 2", IntValue(3)},
		{"10 - 2 * 3", IntValue(4)},
		{"(10 - 2) * 3", IntValue(24)},
		{"7 / 2", IntValue(3)},
		{"-7 / 2", IntValue(-3)},
		{"7 % 3", IntValue(1)},
		{`"a" + "b"`, StringValue("ab")},
		{"1 < 2", True},
		{"2 <= 1", False},
		{"3 > 2", True},
		{"3 >= 4", False},
		{"1 == 1", True},
		{"1 != 1", False},
		{`"x" == "x"`, True},
		{`1 == "1"`, False},
		{"nil == nil", True},
		{"1 == nil", False},
		{"true && false", False},
		{"false || true", True},
		{"!true", False},
		{"-5", IntValue(-5)},
		{"str(42)", StringValue("42")},
		{`len("héllo")`, IntValue(5)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			src := "unit t.U\nmethod f() {\n  return " + tt.expr + "\n}\n"
			unit := compileUnit(t, src)
			m := New()
			got, err := m.Call(context.Background(), unit, "f", nil)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestShortCircuitSkipsRightOperand(t *testing.T) {
	// The right operand divides by zero, so it must not be evaluated.
	unit := compileUnit(t, `unit t.U

method f(x) {
  return false && 1 / x == 0
}

method g(x) {
  return true || 1 / x == 0
}
`)
	m := New()
	result, err := m.Call(context.Background(), unit, "f", []Value{IntValue(0)})
	require.NoError(t, err)
	require.Equal(t, False, result)

	result, err = m.Call(context.Background(), unit, "g", []Value{IntValue(0)})
	require.NoError(t, err)
	require.Equal(t, True, result)
}

func TestLocalsAndWhile(t *testing.T) {
	unit := compileUnit(t, `unit t.U

method sum(n) {
  let total = 0
  let i = 1
  while i <= n {
    total = total + i
    i = i + 1
  }
  return total
}
`)
	m := New()
	result, err := m.Call(context.Background(), unit, "sum", []Value{IntValue(5)})
	require.NoError(t, err)
	require.Equal(t, IntValue(15), result)
}

func TestIfElseChain(t *testing.T) {
	unit := compileUnit(t, `unit t.U

method classify(n) {
  if n < 0 {
    return "negative"
  } else if n == 0 {
    return "zero"
  } else {
    return "positive"
  }
}
`)
	m := New()
	for _, tt := range []struct {
		arg  int64
		want string
	}{
		{-5, "negative"},
		{0, "zero"},
		{5, "positive"},
	} {
		result, err := m.Call(context.Background(), unit, "classify",
			[]Value{IntValue(tt.arg)})
		require.NoError(t, err)
		require.Equal(t, StringValue(tt.want), result)
	}
}

func TestMethodCalls(t *testing.T) {
	unit := compileUnit(t, `unit t.U

method twice(x) {
  return double(x)
}

method double(x) {
  return x * 2
}

method fact(n) {
  if n <= 1 {
    return 1
  }
  return n * fact(n - 1)
}
`)
	m := New()
	result, err := m.Call(context.Background(), unit, "twice", []Value{IntValue(4)})
	require.NoError(t, err)
	require.Equal(t, IntValue(8), result)

	result, err = m.Call(context.Background(), unit, "fact", []Value{IntValue(5)})
	require.NoError(t, err)
	require.Equal(t, IntValue(120), result)
}

func TestMissingMethod(t *testing.T) {
	unit := compileUnit(t, `unit t.U

method f() {
  return 1
}
`)
	m := New()
	_, err := m.Call(context.Background(), unit, "missing", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), `unit t.U has no method "missing"`)
}

func TestCallArityChecked(t *testing.T) {
	unit := compileUnit(t, `unit t.U

method add(a, b) {
  return a + b
}
`)
	m := New()
	_, err := m.Call(context.Background(), unit, "add", []Value{IntValue(1)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "method t.U.add expects 2 args, got 1")
}

func TestPrintBuiltin(t *testing.T) {
	unit := compileUnit(t, `unit t.U

method f() {
  print("hello", 42, true)
}
`)
	var buf bytes.Buffer
	m := New(WithOutput(&buf))
	result, err := m.Call(context.Background(), unit, "f", nil)
	require.NoError(t, err)
	require.Equal(t, Nil, result)
	require.Equal(t, "hello 42 true\n", buf.String())
}

func TestEnvBuiltin(t *testing.T) {
	unit := compileUnit(t, `unit t.U

method home() {
  return env("HOME")
}
`)
	m := New(WithEnviron(func(name string) string {
		if name == "HOME" {
			return "/home/test"
		}
		return ""
	}))
	result, err := m.Call(context.Background(), unit, "home", nil)
	require.NoError(t, err)
	require.Equal(t, StringValue("/home/test"), result)
}

func TestPolicyScreensEnv(t *testing.T) {
	unit := compileUnit(t, `unit t.U

method home() {
  return env("HOME")
}
`)
	denied := errors.New("environment access denied")
	var checked []string
	m := New(
		WithEnviron(func(string) string { return "/home/test" }),
		WithPolicy(PolicyFunc(func(op, name string) error {
			checked = append(checked, op+":"+name)
			return denied
		})),
	)
	_, err := m.Call(context.Background(), unit, "home", nil)
	require.ErrorIs(t, err, denied)
	require.Equal(t, []string{"env:HOME"}, checked)

	// Without a policy the same call is allowed.
	open := New(WithEnviron(func(string) string { return "/home/test" }))
	result, err := open.Call(context.Background(), unit, "home", nil)
	require.NoError(t, err)
	require.Equal(t, StringValue("/home/test"), result)
}

func TestExitHandlerReceivesStack(t *testing.T) {
	main := compileUnit(t, `unit a.Main
uses b.Quitter

method run() {
  return Quitter.quit()
}
`)
	quitter := compileUnit(t, `unit b.Quitter

method quit() {
  exit(9)
  return 1
}
`)
	units := map[string]Unit{"b.Quitter": quitter}

	var gotStack []string
	var gotCode int
	m := New(
		WithLinker(LinkerFunc(func(ctx context.Context, name string) (Unit, error) {
			u, ok := units[name]
			if !ok {
				return nil, fmt.Errorf("unknown unit %q", name)
			}
			return u, nil
		})),
		WithExitHandler(ExitHandlerFunc(func(stack []string, code int) error {
			gotStack = append([]string{}, stack...)
			gotCode = code
			return nil
		})),
	)
	result, err := m.Call(context.Background(), main, "run", nil)
	require.NoError(t, err)
	// The handler allowed execution to resume past the exit call.
	require.Equal(t, IntValue(1), result)
	require.Equal(t, 9, gotCode)
	require.Equal(t, []string{"b.Quitter", "a.Main"}, gotStack)
}

func TestExitHandlerErrorPropagates(t *testing.T) {
	unit := compileUnit(t, `unit t.U

method f() {
  exit(3)
  return 7
}
`)
	denied := errors.New("exit denied")
	m := New(WithExitHandler(ExitHandlerFunc(func(stack []string, code int) error {
		return denied
	})))
	_, err := m.Call(context.Background(), unit, "f", nil)
	require.ErrorIs(t, err, denied)
}

func TestCrossUnitCalls(t *testing.T) {
	main := compileUnit(t, `unit a.Main
uses b.Calculator

method run() {
  return Calculator.add(1, 2) * 10
}
`)
	calc := compileUnit(t, `unit b.Calculator

method add(a, b) {
  return a + b
}
`)
	m := New(WithLinker(LinkerFunc(func(ctx context.Context, name string) (Unit, error) {
		if name == "b.Calculator" {
			return calc, nil
		}
		return nil, fmt.Errorf("unknown unit %q", name)
	})))
	result, err := m.Call(context.Background(), main, "run", nil)
	require.NoError(t, err)
	require.Equal(t, IntValue(30), result)
}

func TestNativeUnitCalls(t *testing.T) {
	echo := NewNativeUnit("x.Echo", map[string]NativeMethod{
		"echo": func(ctx context.Context, args []Value) (Value, error) {
			if len(args) != 1 {
				return Nil, fmt.Errorf("echo expects 1 arg, got %d", len(args))
			}
			return args[0], nil
		},
	})

	// Direct call on a native unit
	m := New()
	result, err := m.Call(context.Background(), echo, "echo", []Value{StringValue("hi")})
	require.NoError(t, err)
	require.Equal(t, StringValue("hi"), result)

	// Qualified call from unit code
	main := compileUnit(t, `unit a.Main
uses x.Echo

method run() {
  return Echo.echo(41) + 1
}
`)
	m = New(WithLinker(LinkerFunc(func(ctx context.Context, name string) (Unit, error) {
		if name == "x.Echo" {
			return echo, nil
		}
		return nil, fmt.Errorf("unknown unit %q", name)
	})))
	result, err = m.Call(context.Background(), main, "run", nil)
	require.NoError(t, err)
	require.Equal(t, IntValue(42), result)
}

func TestNativeErrorGainsContext(t *testing.T) {
	cause := errors.New("bad input")
	broken := NewNativeUnit("x.Broken", map[string]NativeMethod{
		"fail": func(ctx context.Context, args []Value) (Value, error) {
			return Nil, cause
		},
	})
	main := compileUnit(t, `unit a.Main
uses x.Broken

method run() {
  return Broken.fail()
}
`)
	m := New(WithLinker(LinkerFunc(func(ctx context.Context, name string) (Unit, error) {
		return broken, nil
	})))
	_, err := m.Call(context.Background(), main, "run", nil)
	require.Error(t, err)

	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, []string{"a.Main.run"}, rerr.Stack())
	require.ErrorIs(t, err, cause)
}

func TestLinkerErrorPassesThrough(t *testing.T) {
	main := compileUnit(t, `unit a.Main
uses does.not.Exist

method run() {
  return Exist.value()
}
`)
	notFound := errors.New("unit not found")
	m := New(WithLinker(LinkerFunc(func(ctx context.Context, name string) (Unit, error) {
		require.Equal(t, "does.not.Exist", name)
		return nil, notFound
	})))
	_, err := m.Call(context.Background(), main, "run", nil)
	require.ErrorIs(t, err, notFound)
}

func TestLinkingIsMemoized(t *testing.T) {
	helper := compileUnit(t, `unit b.Helper

method one() {
  return 1
}
`)
	var linkCalls int
	m := New(WithLinker(LinkerFunc(func(ctx context.Context, name string) (Unit, error) {
		linkCalls++
		return helper, nil
	})))
	main := compileUnit(t, `unit a.Main
uses b.Helper

method run() {
  return Helper.one() + Helper.one()
}
`)
	result, err := m.Call(context.Background(), main, "run", nil)
	require.NoError(t, err)
	require.Equal(t, IntValue(2), result)
	require.Equal(t, 1, linkCalls)

	// A second call reuses the linked unit too.
	_, err = m.Call(context.Background(), main, "run", nil)
	require.NoError(t, err)
	require.Equal(t, 1, linkCalls)
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{
			name:   "division by zero",
			body:   "return 1 / 0",
			errMsg: "runtime error: division by zero (at t.U.f)",
		},
		{
			name:   "modulo by zero",
			body:   "return 1 % 0",
			errMsg: "runtime error: division by zero (at t.U.f)",
		},
		{
			name:   "mixed operand types",
			body:   `return 1 + "x"`,
			errMsg: "runtime error: unsupported operand types for +: int and string (at t.U.f)",
		},
		{
			name:   "int condition",
			body:   "if 1 {\n    return 2\n  }\n  return 3",
			errMsg: "runtime error: expected a bool condition (got int) (at t.U.f)",
		},
		{
			name:   "negate a string",
			body:   `return -"x"`,
			errMsg: "runtime error: unsupported operand type for -: string (at t.U.f)",
		},
		{
			name:   "exit with a string code",
			body:   `exit("now")
  return 1`,
			errMsg: "runtime error: exit expects an int code (got string) (at t.U.f)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "unit t.U\nmethod f() {\n  " + tt.body + "\n}\n"
			unit := compileUnit(t, src)
			m := New()
			_, err := m.Call(context.Background(), unit, "f", nil)
			require.Error(t, err)
			require.Equal(t, tt.errMsg, err.Error())

			var rerr *RuntimeError
			require.ErrorAs(t, err, &rerr)
			require.Equal(t, []string{"t.U.f"}, rerr.Stack())
		})
	}
}

func TestErrorStackIsInnermostFirst(t *testing.T) {
	unit := compileUnit(t, `unit t.U

method outer() {
  return inner()
}

method inner() {
  return 1 / 0
}
`)
	m := New()
	_, err := m.Call(context.Background(), unit, "outer", nil)
	require.Error(t, err)

	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, []string{"t.U.inner", "t.U.outer"}, rerr.Stack())
}

func TestContextCancellation(t *testing.T) {
	unit := compileUnit(t, `unit t.U

method spin() {
  while true {
  }
  return 0
}
`)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	m := New(WithContextCheckInterval(10))
	_, err := m.Call(ctx, unit, "spin", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFrameDepthLimit(t *testing.T) {
	unit := compileUnit(t, `unit t.U

method f() {
  return f()
}
`)
	m := New()
	_, err := m.Call(context.Background(), unit, "f", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "max frame depth of 1024 exceeded")
}

func TestMaxArgsLimit(t *testing.T) {
	unit := compileUnit(t, `unit t.U

method f() {
  return 1
}
`)
	m := New()
	_, err := m.Call(context.Background(), unit, "f", make([]Value, MaxArgs+1))
	require.Error(t, err)
	require.Contains(t, err.Error(), "max args limit of 255 exceeded (got 256)")
}

func TestCustomBuiltin(t *testing.T) {
	unit := compileUnit(t, `unit t.U

method f() {
  return print("ignored")
}
`)
	m := New(WithBuiltin("print", func(ctx context.Context, m *Machine, args []Value) (Value, error) {
		return IntValue(int64(len(args))), nil
	}))
	result, err := m.Call(context.Background(), unit, "f", nil)
	require.NoError(t, err)
	require.Equal(t, IntValue(1), result)
}
