package ast

import (
	"strings"

	"github.com/understudy-io/understudy/internal/token"
)

// Ident is an expression node that refers to a variable by name.
type Ident struct {
	NamePos token.Position // position of identifier
	Name    string         // identifier name
}

func (x *Ident) exprNode() {}

func (x *Ident) Pos() token.Position { return x.NamePos }
func (x *Ident) End() token.Position { return x.NamePos.Advance(len(x.Name)) }

func (x *Ident) String() string { return x.Name }

// Int is an expression node that holds an integer literal.
type Int struct {
	ValuePos token.Position // position of the literal
	Literal  string         // the literal text (e.g., "42")
	Value    int64          // the parsed value
}

func (x *Int) exprNode() {}

func (x *Int) Pos() token.Position { return x.ValuePos }
func (x *Int) End() token.Position { return x.ValuePos.Advance(len(x.Literal)) }

func (x *Int) String() string { return x.Literal }

// String is an expression node that holds a string literal.
type String struct {
	ValuePos token.Position // position of the opening quote
	Literal  string         // the literal text, without quotes, escapes resolved
}

func (x *String) exprNode() {}

func (x *String) Pos() token.Position { return x.ValuePos }
func (x *String) End() token.Position { return x.ValuePos.Advance(len(x.Literal) + 2) }

func (x *String) String() string { return `"` + x.Literal + `"` }

// Bool is an expression node that holds a boolean literal.
type Bool struct {
	ValuePos token.Position // position of "true" or "false"
	Value    bool           // the boolean value
}

func (x *Bool) exprNode() {}

func (x *Bool) Pos() token.Position { return x.ValuePos }

func (x *Bool) End() token.Position {
	if x.Value {
		return x.ValuePos.Advance(4) // len("true")
	}
	return x.ValuePos.Advance(5) // len("false")
}

func (x *Bool) String() string {
	if x.Value {
		return "true"
	}
	return "false"
}

// Nil is an expression node that holds a nil literal.
type Nil struct {
	NilPos token.Position // position of "nil" keyword
}

func (x *Nil) exprNode() {}

func (x *Nil) Pos() token.Position { return x.NilPos }
func (x *Nil) End() token.Position { return x.NilPos.Advance(3) } // len("nil")

func (x *Nil) String() string { return "nil" }

// Prefix is an operator expression where the operator precedes the operand.
// Examples include "!ready" and "-x".
type Prefix struct {
	OpPos token.Position // position of operator
	Op    string         // operator: "!" or "-"
	X     Expr           // operand
}

func (x *Prefix) exprNode() {}

func (x *Prefix) Pos() token.Position { return x.OpPos }
func (x *Prefix) End() token.Position { return x.X.End() }

func (x *Prefix) String() string {
	return "(" + x.Op + x.X.String() + ")"
}

// Infix is an operator expression where the operator is between the operands.
// Examples include "x + y" and "5 - 1".
type Infix struct {
	X     Expr           // left operand
	OpPos token.Position // position of operator
	Op    string         // operator: "+", "-", "*", "/", etc.
	Y     Expr           // right operand
}

func (x *Infix) exprNode() {}

func (x *Infix) Pos() token.Position { return x.X.Pos() }
func (x *Infix) End() token.Position { return x.Y.End() }

func (x *Infix) String() string {
	return "(" + x.X.String() + " " + x.Op + " " + x.Y.String() + ")"
}

// Call is an unqualified call expression. The callee is either a method of
// the enclosing unit or a builtin.
type Call struct {
	Fun    *Ident         // method or builtin name
	Lparen token.Position // position of "("
	Args   []Expr         // call arguments
	Rparen token.Position // position of ")"
}

func (x *Call) exprNode() {}

func (x *Call) Pos() token.Position { return x.Fun.Pos() }
func (x *Call) End() token.Position { return x.Rparen.Advance(1) }

func (x *Call) String() string {
	args := make([]string, 0, len(x.Args))
	for _, a := range x.Args {
		args = append(args, a.String())
	}
	return x.Fun.String() + "(" + strings.Join(args, ", ") + ")"
}

// UnitCall is a qualified call expression such as "Calculator.add(1, 2)".
// The receiver names an imported unit by its alias.
type UnitCall struct {
	Unit   *Ident         // alias of the imported unit
	Method *Ident         // method name within that unit
	Lparen token.Position // position of "("
	Args   []Expr         // call arguments
	Rparen token.Position // position of ")"
}

func (x *UnitCall) exprNode() {}

func (x *UnitCall) Pos() token.Position { return x.Unit.Pos() }
func (x *UnitCall) End() token.Position { return x.Rparen.Advance(1) }

func (x *UnitCall) String() string {
	args := make([]string, 0, len(x.Args))
	for _, a := range x.Args {
		args = append(args, a.String())
	}
	return x.Unit.String() + "." + x.Method.String() + "(" + strings.Join(args, ", ") + ")"
}
