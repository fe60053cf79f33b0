package parser

import (
	"fmt"

	"github.com/understudy-io/understudy/internal/token"
)

// SyntaxError indicates that unit source could not be parsed.
type SyntaxError struct {
	message string
	file    string
	pos     token.Position
	cause   error
}

func (e *SyntaxError) Error() string {
	msg := e.message
	if e.cause != nil {
		msg = e.cause.Error()
	}
	if e.file != "" {
		return fmt.Sprintf("syntax error: %s (%s, line %d, column %d)",
			msg, e.file, e.pos.LineNumber(), e.pos.ColumnNumber())
	}
	return fmt.Sprintf("syntax error: %s (line %d, column %d)",
		msg, e.pos.LineNumber(), e.pos.ColumnNumber())
}

func (e *SyntaxError) Unwrap() error {
	return e.cause
}

// Position returns the location in the source where parsing failed.
func (e *SyntaxError) Position() token.Position {
	return e.pos
}

// File returns the source filename, if one was set on the lexer.
func (e *SyntaxError) File() string {
	return e.file
}
