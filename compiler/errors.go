package compiler

import (
	"fmt"

	"github.com/understudy-io/understudy/internal/token"
)

// Error indicates that unit source was parsed but could not be compiled.
type Error struct {
	message string
	file    string
	pos     token.Position
}

func (e *Error) Error() string {
	if !e.pos.IsValid() {
		return fmt.Sprintf("compile error: %s", e.message)
	}
	if e.file != "" {
		return fmt.Sprintf("compile error: %s (%s, line %d, column %d)",
			e.message, e.file, e.pos.LineNumber(), e.pos.ColumnNumber())
	}
	return fmt.Sprintf("compile error: %s (line %d, column %d)",
		e.message, e.pos.LineNumber(), e.pos.ColumnNumber())
}

// Position returns the location in the source that failed to compile.
func (e *Error) Position() token.Position {
	return e.pos
}

// File returns the source filename, if one was configured.
func (e *Error) File() string {
	return e.file
}
