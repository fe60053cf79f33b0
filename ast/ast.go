// Package ast defines the abstract syntax tree representation of unit source.
package ast

import (
	"strings"

	"github.com/understudy-io/understudy/internal/token"
)

// Node represents a portion of the syntax tree. All nodes have position
// information indicating where they appear in the source code.
type Node interface {
	// Pos returns the position of the first character belonging to the node.
	Pos() token.Position

	// End returns the position of the first character immediately after the node.
	End() token.Position

	// String returns a human friendly representation of the Node. This should
	// be similar to the original source code, but not necessarily identical.
	String() string
}

// Stmt represents a statement node. Statements cause side effects but
// do not evaluate to a value.
type Stmt interface {
	Node
	stmtNode()
}

// Expr represents an expression node. Expressions evaluate to a value
// and may be embedded within other expressions.
type Expr interface {
	Node
	exprNode()
}

// DottedName is a dot-separated name such as "com.example.Calculator". It
// appears in unit and uses declarations.
type DottedName struct {
	NamePos token.Position // position of the first segment
	Parts   []string       // name segments, always at least one
}

func (x *DottedName) Pos() token.Position { return x.NamePos }
func (x *DottedName) End() token.Position { return x.NamePos.Advance(len(x.String())) }

func (x *DottedName) String() string { return strings.Join(x.Parts, ".") }

// Last returns the final segment of the name, e.g. "Calculator" for
// "com.example.Calculator".
func (x *DottedName) Last() string { return x.Parts[len(x.Parts)-1] }

// Use is a declaration importing another unit. The imported unit is
// referenced in the body by the last segment of its name.
type Use struct {
	UsePos token.Position // position of "uses" keyword
	Name   *DottedName    // full name of the imported unit
}

func (x *Use) Pos() token.Position { return x.UsePos }
func (x *Use) End() token.Position { return x.Name.End() }

func (x *Use) String() string { return "uses " + x.Name.String() }

// Alias returns the local name the imported unit is referenced by.
func (x *Use) Alias() string { return x.Name.Last() }

// Method is a named method declaration within a unit.
type Method struct {
	MethodPos token.Position // position of "method" keyword
	Name      *Ident         // method name
	Params    []*Ident       // parameter names
	Body      *Block         // method body
}

func (x *Method) Pos() token.Position { return x.MethodPos }
func (x *Method) End() token.Position { return x.Body.End() }

func (x *Method) String() string {
	params := make([]string, 0, len(x.Params))
	for _, p := range x.Params {
		params = append(params, p.String())
	}
	var out strings.Builder
	out.WriteString("method ")
	out.WriteString(x.Name.String())
	out.WriteString("(")
	out.WriteString(strings.Join(params, ", "))
	out.WriteString(") ")
	out.WriteString(x.Body.String())
	return out.String()
}

// Unit is the root node of a parsed source file: one unit declaration
// followed by its uses declarations and methods.
type Unit struct {
	UnitPos token.Position // position of "unit" keyword
	Name    *DottedName    // declared unit name
	Uses    []*Use         // uses declarations, in source order
	Methods []*Method      // method declarations, in source order
}

func (x *Unit) Pos() token.Position { return x.UnitPos }

func (x *Unit) End() token.Position {
	if n := len(x.Methods); n > 0 {
		return x.Methods[n-1].End()
	}
	if n := len(x.Uses); n > 0 {
		return x.Uses[n-1].End()
	}
	return x.Name.End()
}

func (x *Unit) String() string {
	var out strings.Builder
	out.WriteString("unit ")
	out.WriteString(x.Name.String())
	out.WriteString("\n")
	for _, use := range x.Uses {
		out.WriteString(use.String())
		out.WriteString("\n")
	}
	for _, method := range x.Methods {
		out.WriteString("\n")
		out.WriteString(method.String())
		out.WriteString("\n")
	}
	return out.String()
}

// Method returns the named method declaration, or nil if the unit does not
// declare it.
func (x *Unit) Method(name string) *Method {
	for _, m := range x.Methods {
		if m.Name.Name == name {
			return m
		}
	}
	return nil
}
