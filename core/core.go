// Package core provides the native units served under the protected core
// namespace. Core units are implemented in Go and cannot be overridden by
// loaded bytecode.
package core

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/understudy-io/understudy/vm"
)

// Version is the version of the runtime library, reported by
// core.Runtime version().
const Version = "1.2.0"

// Library holds the native core units.
type Library struct {
	units map[string]*vm.NativeUnit
}

// NewLibrary builds the core library.
func NewLibrary() *Library {
	l := &Library{units: map[string]*vm.NativeUnit{}}
	l.add(runtimeUnit())
	l.add(mathUnit())
	l.add(stringsUnit())
	return l
}

func (l *Library) add(unit *vm.NativeUnit) {
	l.units[unit.UnitName()] = unit
}

// Resolve returns the named core unit, if it exists.
func (l *Library) Resolve(name string) (vm.Unit, bool) {
	unit, ok := l.units[name]
	return unit, ok
}

// Names returns the fully qualified names of all core units, sorted.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.units))
	for name := range l.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Manifest describes the callable interface of every core unit: unit name
// to method name to arity. The compiler uses this to check qualified calls
// into core units at compile time. Installations carry the same data in
// lib/core.manifest.
func Manifest() map[string]map[string]int {
	return map[string]map[string]int{
		"core.Runtime": {"version": 0, "platform": 0},
		"core.Math":    {"abs": 1, "max": 2, "min": 2},
		"core.Strings": {"upper": 1, "lower": 1, "length": 1, "contains": 2},
	}
}

func runtimeUnit() *vm.NativeUnit {
	return vm.NewNativeUnit("core.Runtime", map[string]vm.NativeMethod{
		"version": func(ctx context.Context, args []vm.Value) (vm.Value, error) {
			if err := arity("version", 0, args); err != nil {
				return vm.Nil, err
			}
			return vm.StringValue(Version), nil
		},
		"platform": func(ctx context.Context, args []vm.Value) (vm.Value, error) {
			if err := arity("platform", 0, args); err != nil {
				return vm.Nil, err
			}
			return vm.StringValue(runtime.GOOS), nil
		},
	})
}

func mathUnit() *vm.NativeUnit {
	return vm.NewNativeUnit("core.Math", map[string]vm.NativeMethod{
		"abs": func(ctx context.Context, args []vm.Value) (vm.Value, error) {
			if err := arity("abs", 1, args); err != nil {
				return vm.Nil, err
			}
			n, err := intArg("abs", args, 0)
			if err != nil {
				return vm.Nil, err
			}
			if n < 0 {
				n = -n
			}
			return vm.IntValue(n), nil
		},
		"max": func(ctx context.Context, args []vm.Value) (vm.Value, error) {
			if err := arity("max", 2, args); err != nil {
				return vm.Nil, err
			}
			a, err := intArg("max", args, 0)
			if err != nil {
				return vm.Nil, err
			}
			b, err := intArg("max", args, 1)
			if err != nil {
				return vm.Nil, err
			}
			if a > b {
				return vm.IntValue(a), nil
			}
			return vm.IntValue(b), nil
		},
		"min": func(ctx context.Context, args []vm.Value) (vm.Value, error) {
			if err := arity("min", 2, args); err != nil {
				return vm.Nil, err
			}
			a, err := intArg("min", args, 0)
			if err != nil {
				return vm.Nil, err
			}
			b, err := intArg("min", args, 1)
			if err != nil {
				return vm.Nil, err
			}
			if a < b {
				return vm.IntValue(a), nil
			}
			return vm.IntValue(b), nil
		},
	})
}

func stringsUnit() *vm.NativeUnit {
	return vm.NewNativeUnit("core.Strings", map[string]vm.NativeMethod{
		"upper": func(ctx context.Context, args []vm.Value) (vm.Value, error) {
			if err := arity("upper", 1, args); err != nil {
				return vm.Nil, err
			}
			s, err := stringArg("upper", args, 0)
			if err != nil {
				return vm.Nil, err
			}
			return vm.StringValue(strings.ToUpper(s)), nil
		},
		"lower": func(ctx context.Context, args []vm.Value) (vm.Value, error) {
			if err := arity("lower", 1, args); err != nil {
				return vm.Nil, err
			}
			s, err := stringArg("lower", args, 0)
			if err != nil {
				return vm.Nil, err
			}
			return vm.StringValue(strings.ToLower(s)), nil
		},
		"length": func(ctx context.Context, args []vm.Value) (vm.Value, error) {
			if err := arity("length", 1, args); err != nil {
				return vm.Nil, err
			}
			s, err := stringArg("length", args, 0)
			if err != nil {
				return vm.Nil, err
			}
			return vm.IntValue(int64(utf8.RuneCountInString(s))), nil
		},
		"contains": func(ctx context.Context, args []vm.Value) (vm.Value, error) {
			if err := arity("contains", 2, args); err != nil {
				return vm.Nil, err
			}
			s, err := stringArg("contains", args, 0)
			if err != nil {
				return vm.Nil, err
			}
			sub, err := stringArg("contains", args, 1)
			if err != nil {
				return vm.Nil, err
			}
			return vm.BoolValue(strings.Contains(s, sub)), nil
		},
	})
}

func arity(name string, want int, args []vm.Value) error {
	if len(args) != want {
		return fmt.Errorf("%s expects %d args, got %d", name, want, len(args))
	}
	return nil
}

func intArg(name string, args []vm.Value, i int) (int64, error) {
	if args[i].Kind() != vm.KindInt {
		return 0, fmt.Errorf("%s expects an int for arg %d (got %s)",
			name, i+1, args[i].Kind())
	}
	return args[i].Int(), nil
}

func stringArg(name string, args []vm.Value, i int) (string, error) {
	if args[i].Kind() != vm.KindString {
		return "", fmt.Errorf("%s expects a string for arg %d (got %s)",
			name, i+1, args[i].Kind())
	}
	return args[i].Str(), nil
}
