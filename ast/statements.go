package ast

import (
	"strings"

	"github.com/understudy-io/understudy/internal/token"
)

// Block is a braced sequence of statements.
type Block struct {
	Lbrace token.Position // position of "{"
	Stmts  []Stmt         // statements, in source order
	Rbrace token.Position // position of "}"
}

func (x *Block) stmtNode() {}

func (x *Block) Pos() token.Position { return x.Lbrace }
func (x *Block) End() token.Position { return x.Rbrace.Advance(1) }

func (x *Block) String() string {
	var out strings.Builder
	out.WriteString("{ ")
	for i, s := range x.Stmts {
		if i > 0 {
			out.WriteString("; ")
		}
		out.WriteString(s.String())
	}
	out.WriteString(" }")
	return out.String()
}

// Let is a statement declaring a new local variable with an initial value.
type Let struct {
	LetPos token.Position // position of "let" keyword
	Name   *Ident         // variable being declared
	Value  Expr           // initial value
}

func (x *Let) stmtNode() {}

func (x *Let) Pos() token.Position { return x.LetPos }
func (x *Let) End() token.Position { return x.Value.End() }

func (x *Let) String() string {
	return "let " + x.Name.String() + " = " + x.Value.String()
}

// Assign is a statement storing a new value in an existing local variable.
type Assign struct {
	Name      *Ident         // variable being assigned
	AssignPos token.Position // position of "="
	Value     Expr           // value to store
}

func (x *Assign) stmtNode() {}

func (x *Assign) Pos() token.Position { return x.Name.Pos() }
func (x *Assign) End() token.Position { return x.Value.End() }

func (x *Assign) String() string {
	return x.Name.String() + " = " + x.Value.String()
}

// Return is a statement that exits the enclosing method. Value may be nil
// for a bare "return", in which case the method evaluates to nil.
type Return struct {
	ReturnPos token.Position // position of "return" keyword
	Value     Expr           // returned value; may be nil
}

func (x *Return) stmtNode() {}

func (x *Return) Pos() token.Position { return x.ReturnPos }

func (x *Return) End() token.Position {
	if x.Value != nil {
		return x.Value.End()
	}
	return x.ReturnPos.Advance(6) // len("return")
}

func (x *Return) String() string {
	if x.Value == nil {
		return "return"
	}
	return "return " + x.Value.String()
}

// If is a conditional statement with an optional else branch.
type If struct {
	IfPos token.Position // position of "if" keyword
	Cond  Expr           // condition
	Cons  *Block         // consequence, run when the condition is truthy
	Else  Stmt           // *Block, or *If for "else if" chains; may be nil
}

func (x *If) stmtNode() {}

func (x *If) Pos() token.Position { return x.IfPos }

func (x *If) End() token.Position {
	if x.Else != nil {
		return x.Else.End()
	}
	return x.Cons.End()
}

func (x *If) String() string {
	var out strings.Builder
	out.WriteString("if ")
	out.WriteString(x.Cond.String())
	out.WriteString(" ")
	out.WriteString(x.Cons.String())
	if x.Else != nil {
		out.WriteString(" else ")
		out.WriteString(x.Else.String())
	}
	return out.String()
}

// While is a loop statement that runs its body while the condition is truthy.
type While struct {
	WhilePos token.Position // position of "while" keyword
	Cond     Expr           // condition
	Body     *Block         // loop body
}

func (x *While) stmtNode() {}

func (x *While) Pos() token.Position { return x.WhilePos }
func (x *While) End() token.Position { return x.Body.End() }

func (x *While) String() string {
	return "while " + x.Cond.String() + " " + x.Body.String()
}

// ExprStmt is a statement consisting of a single expression evaluated for
// its side effects, such as a bare call.
type ExprStmt struct {
	X Expr // the expression
}

func (x *ExprStmt) stmtNode() {}

func (x *ExprStmt) Pos() token.Position { return x.X.Pos() }
func (x *ExprStmt) End() token.Position { return x.X.End() }

func (x *ExprStmt) String() string { return x.X.String() }
