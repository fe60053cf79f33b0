package vm

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// BuiltinFunc is a function callable from unit code without qualification.
// Builtins construct their own errors, typically via the machine's error
// helpers, so the machine propagates what they return unchanged.
type BuiltinFunc func(ctx context.Context, m *Machine, args []Value) (Value, error)

// BuiltinArities returns the argument count of each default builtin, with
// -1 marking variadic builtins. The compiler uses this to check calls to
// builtins at compile time.
func BuiltinArities() map[string]int {
	return map[string]int{
		"print": -1,
		"len":   1,
		"str":   1,
		"env":   1,
		"exit":  1,
	}
}

func defaultBuiltins() map[string]BuiltinFunc {
	return map[string]BuiltinFunc{
		"print": builtinPrint,
		"len":   builtinLen,
		"str":   builtinStr,
		"env":   builtinEnv,
		"exit":  builtinExit,
	}
}

func builtinPrint(ctx context.Context, m *Machine, args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	if _, err := fmt.Fprintln(m.output, strings.Join(parts, " ")); err != nil {
		return Nil, m.runtimeErrorf("print: %s", err)
	}
	return Nil, nil
}

func builtinLen(ctx context.Context, m *Machine, args []Value) (Value, error) {
	if len(args) != 1 {
		return Nil, m.runtimeErrorf("len expects 1 arg, got %d", len(args))
	}
	if args[0].Kind() != KindString {
		return Nil, m.runtimeErrorf("len expects a string (got %s)", args[0].Kind())
	}
	return IntValue(int64(utf8.RuneCountInString(args[0].Str()))), nil
}

func builtinStr(ctx context.Context, m *Machine, args []Value) (Value, error) {
	if len(args) != 1 {
		return Nil, m.runtimeErrorf("str expects 1 arg, got %d", len(args))
	}
	return StringValue(args[0].String()), nil
}

func builtinEnv(ctx context.Context, m *Machine, args []Value) (Value, error) {
	if len(args) != 1 {
		return Nil, m.runtimeErrorf("env expects 1 arg, got %d", len(args))
	}
	if args[0].Kind() != KindString {
		return Nil, m.runtimeErrorf("env expects a string name (got %s)", args[0].Kind())
	}
	name := args[0].Str()
	if err := m.checkPolicy("env", name); err != nil {
		return Nil, err
	}
	return StringValue(m.environ(name)), nil
}

// builtinExit consults the machine's exit handler with the active unit
// stack. The handler's error, if any, propagates unchanged so callers can
// match on its type.
func builtinExit(ctx context.Context, m *Machine, args []Value) (Value, error) {
	if len(args) != 1 {
		return Nil, m.runtimeErrorf("exit expects 1 arg, got %d", len(args))
	}
	if args[0].Kind() != KindInt {
		return Nil, m.runtimeErrorf("exit expects an int code (got %s)", args[0].Kind())
	}
	if err := m.exitHandler.OnExit(m.UnitStack(), int(args[0].Int())); err != nil {
		return Nil, err
	}
	return Nil, nil
}
