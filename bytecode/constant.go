package bytecode

import (
	"fmt"
	"strconv"
)

// ConstKind identifies the type of a constant pool entry.
type ConstKind uint8

const (
	ConstInt       ConstKind = 1
	ConstString    ConstKind = 2
	ConstBool      ConstKind = 3
	ConstNil       ConstKind = 4
	ConstMethodRef ConstKind = 5
)

// Constant is one entry in a unit's constant pool. Only the fields relevant
// to the entry's Kind are populated.
type Constant struct {
	Kind   ConstKind
	Int    int64
	Str    string
	Bool   bool
	Unit   string // method ref: target unit name
	Method string // method ref: method name within the target unit
}

// IntConstant returns a constant pool entry holding an integer.
func IntConstant(value int64) Constant {
	return Constant{Kind: ConstInt, Int: value}
}

// StringConstant returns a constant pool entry holding a string.
func StringConstant(value string) Constant {
	return Constant{Kind: ConstString, Str: value}
}

// BoolConstant returns a constant pool entry holding a boolean.
func BoolConstant(value bool) Constant {
	return Constant{Kind: ConstBool, Bool: value}
}

// NilConstant returns a constant pool entry holding nil.
func NilConstant() Constant {
	return Constant{Kind: ConstNil}
}

// MethodRefConstant returns a constant pool entry referencing a method in
// another unit.
func MethodRefConstant(unit, method string) Constant {
	return Constant{Kind: ConstMethodRef, Unit: unit, Method: method}
}

// String returns a human friendly representation of the constant, as it
// appears in disassembly output.
func (c Constant) String() string {
	switch c.Kind {
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstString:
		return strconv.Quote(c.Str)
	case ConstBool:
		return strconv.FormatBool(c.Bool)
	case ConstNil:
		return "nil"
	case ConstMethodRef:
		return c.Unit + "." + c.Method
	default:
		return fmt.Sprintf("<unknown constant kind %d>", c.Kind)
	}
}
