package vm

import (
	"fmt"
	"strconv"

	"github.com/understudy-io/understudy/bytecode"
	"github.com/understudy-io/understudy/op"
)

// Kind identifies the runtime type of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindInt
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a runtime value held on the machine stack or in a local slot.
// The zero value is nil. Values are comparable with ==, which implements
// the equality the language exposes.
type Value struct {
	kind Kind
	num  int64
	str  string
}

// Nil is the nil value.
var Nil = Value{}

// True is the boolean true value.
var True = Value{kind: KindBool, num: 1}

// False is the boolean false value.
var False = Value{kind: KindBool}

// IntValue returns an int value.
func IntValue(n int64) Value {
	return Value{kind: KindInt, num: n}
}

// StringValue returns a string value.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// BoolValue returns a bool value.
func BoolValue(b bool) Value {
	if b {
		return True
	}
	return False
}

// Kind returns the runtime type of this value.
func (v Value) Kind() Kind { return v.kind }

// IsNil returns true if this is the nil value.
func (v Value) IsNil() bool { return v.kind == KindNil }

// Int returns the integer held by this value. It returns 0 when the value
// is not an int.
func (v Value) Int() int64 {
	if v.kind != KindInt {
		return 0
	}
	return v.num
}

// Str returns the string held by this value. It returns "" when the value
// is not a string.
func (v Value) Str() string {
	if v.kind != KindString {
		return ""
	}
	return v.str
}

// Bool returns the boolean held by this value. It returns false when the
// value is not a bool.
func (v Value) Bool() bool {
	return v.kind == KindBool && v.num == 1
}

// String returns the display form of this value, as printed by the print
// builtin. Strings render without quotes.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindString:
		return v.str
	case KindBool:
		if v.num == 1 {
			return "true"
		}
		return "false"
	default:
		return "nil"
	}
}

// constValue converts a loaded constant pool entry to its runtime value.
func constValue(c bytecode.Constant) (Value, error) {
	switch c.Kind {
	case bytecode.ConstInt:
		return IntValue(c.Int), nil
	case bytecode.ConstString:
		return StringValue(c.Str), nil
	case bytecode.ConstBool:
		return BoolValue(c.Bool), nil
	case bytecode.ConstNil:
		return Nil, nil
	default:
		return Nil, fmt.Errorf("constant %s is not loadable", c)
	}
}

// binaryOp evaluates an arithmetic operation. Arithmetic is defined on int
// pairs, and + additionally concatenates string pairs.
func binaryOp(opType op.BinaryOpType, a, b Value) (Value, error) {
	if opType == op.Add && a.kind == KindString && b.kind == KindString {
		return StringValue(a.str + b.str), nil
	}
	if a.kind != KindInt || b.kind != KindInt {
		return Nil, fmt.Errorf("unsupported operand types for %s: %s and %s",
			opType, a.kind, b.kind)
	}
	switch opType {
	case op.Add:
		return IntValue(a.num + b.num), nil
	case op.Subtract:
		return IntValue(a.num - b.num), nil
	case op.Multiply:
		return IntValue(a.num * b.num), nil
	case op.Divide:
		if b.num == 0 {
			return Nil, fmt.Errorf("division by zero")
		}
		return IntValue(a.num / b.num), nil
	case op.Modulo:
		if b.num == 0 {
			return Nil, fmt.Errorf("division by zero")
		}
		return IntValue(a.num % b.num), nil
	default:
		return Nil, fmt.Errorf("unknown binary operation %d", opType)
	}
}

// compare evaluates a comparison. Equality is defined for all value pairs;
// values of different types are never equal. Ordering is defined on int
// pairs only.
func compare(opType op.CompareOpType, a, b Value) (Value, error) {
	switch opType {
	case op.Equal:
		return BoolValue(a == b), nil
	case op.NotEqual:
		return BoolValue(a != b), nil
	}
	if a.kind != KindInt || b.kind != KindInt {
		return Nil, fmt.Errorf("unsupported operand types for %s: %s and %s",
			opType, a.kind, b.kind)
	}
	switch opType {
	case op.LessThan:
		return BoolValue(a.num < b.num), nil
	case op.LessThanOrEqual:
		return BoolValue(a.num <= b.num), nil
	case op.GreaterThan:
		return BoolValue(a.num > b.num), nil
	case op.GreaterThanOrEqual:
		return BoolValue(a.num >= b.num), nil
	default:
		return Nil, fmt.Errorf("unknown comparison operation %d", opType)
	}
}
