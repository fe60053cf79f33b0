// Package token defines the keywords and tokens used when lexing unit source.
package token

// Type describes the type of a token as a string.
type Type string

// Position points to a particular location in an input string.
type Position struct {
	Char   int    // byte offset within the file
	Line   int    // 0-indexed line number
	Column int    // 0-indexed column number
	File   string // filename
}

// LineNumber returns the 1-indexed line number for this position.
func (p Position) LineNumber() int {
	return p.Line + 1
}

// ColumnNumber returns the 1-indexed column number for this position.
func (p Position) ColumnNumber() int {
	return p.Column + 1
}

// IsValid returns true if this position has been set.
func (p Position) IsValid() bool {
	return p.File != "" || p.Line > 0 || p.Column > 0 || p.Char > 0
}

// Advance returns a copy of this position moved n characters to the right on
// the same line.
func (p Position) Advance(n int) Position {
	return Position{
		Char:   p.Char + n,
		Line:   p.Line,
		Column: p.Column + n,
		File:   p.File,
	}
}

// NoPos is the zero value Position, representing an invalid/unset position.
var NoPos = Position{}

// Token represents one token lexed from the input source code.
type Token struct {
	Type     Type
	Literal  string
	Position Position
}

// Token types
const (
	ILLEGAL Type = "ILLEGAL"
	EOF     Type = "EOF"
	NEWLINE Type = "NEWLINE"

	IDENT  Type = "IDENT"
	INT    Type = "INT"
	STRING Type = "STRING"

	ASSIGN   Type = "="
	PLUS     Type = "+"
	MINUS    Type = "-"
	ASTERISK Type = "*"
	SLASH    Type = "/"
	PERCENT  Type = "%"
	BANG     Type = "!"

	EQ        Type = "=="
	NOT_EQ    Type = "!="
	LT        Type = "<"
	LT_EQ     Type = "<="
	GT        Type = ">"
	GT_EQ     Type = ">="
	AND       Type = "&&"
	OR        Type = "||"
	PERIOD    Type = "."
	COMMA     Type = ","
	SEMICOLON Type = ";"
	LPAREN    Type = "("
	RPAREN    Type = ")"
	LBRACE    Type = "{"
	RBRACE    Type = "}"

	UNIT   Type = "UNIT"
	USES   Type = "USES"
	METHOD Type = "METHOD"
	LET    Type = "LET"
	RETURN Type = "RETURN"
	IF     Type = "IF"
	ELSE   Type = "ELSE"
	WHILE  Type = "WHILE"
	TRUE   Type = "TRUE"
	FALSE  Type = "FALSE"
	NIL    Type = "NIL"
)

var keywords = map[string]Type{
	"unit":   UNIT,
	"uses":   USES,
	"method": METHOD,
	"let":    LET,
	"return": RETURN,
	"if":     IF,
	"else":   ELSE,
	"while":  WHILE,
	"true":   TRUE,
	"false":  FALSE,
	"nil":    NIL,
}

// LookupIdentifier returns the token type for the given identifier, which is
// a keyword type if the identifier is a reserved word.
func LookupIdentifier(identifier string) Type {
	if t, ok := keywords[identifier]; ok {
		return t
	}
	return IDENT
}
