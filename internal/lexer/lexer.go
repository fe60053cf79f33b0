// Package lexer transforms unit source text into a stream of tokens.
package lexer

import (
	"fmt"
	"strings"

	"github.com/understudy-io/understudy/internal/token"
)

// Lexer is used to tokenize unit source code. Create one with New and then
// call Next repeatedly until an EOF token is returned.
type Lexer struct {
	input        string
	position     int  // byte offset of the current byte
	readPosition int  // byte offset after the current byte
	ch           byte // current byte under examination
	line         int  // 0-indexed line of the current byte
	column       int  // 0-indexed column of the current byte
	file         string
}

// New returns a Lexer for the given input.
func New(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// SetFilename sets the filename used in token positions.
func (l *Lexer) SetFilename(file string) {
	l.file = file
}

// Filename returns the filename used in token positions, if one was set.
func (l *Lexer) Filename() string {
	return l.file
}

// Next returns the next token in the input. Once EOF is reached, Next keeps
// returning EOF tokens.
func (l *Lexer) Next() (token.Token, error) {
	l.skipSpace()

	pos := l.pos()
	switch l.ch {
	case 0:
		return token.Token{Type: token.EOF, Position: pos}, nil
	case '\n':
		l.readChar()
		return token.Token{Type: token.NEWLINE, Literal: "\n", Position: pos}, nil
	case '/':
		if l.peek() == '/' {
			l.skipComment()
			return l.Next()
		}
		l.readChar()
		return token.Token{Type: token.SLASH, Literal: "/", Position: pos}, nil
	case '"':
		lit, err := l.readString()
		if err != nil {
			return token.Token{Type: token.ILLEGAL, Literal: lit, Position: pos}, err
		}
		return token.Token{Type: token.STRING, Literal: lit, Position: pos}, nil
	case '=':
		if l.peek() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.EQ, Literal: "==", Position: pos}, nil
		}
		l.readChar()
		return token.Token{Type: token.ASSIGN, Literal: "=", Position: pos}, nil
	case '!':
		if l.peek() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.NOT_EQ, Literal: "!=", Position: pos}, nil
		}
		l.readChar()
		return token.Token{Type: token.BANG, Literal: "!", Position: pos}, nil
	case '<':
		if l.peek() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.LT_EQ, Literal: "<=", Position: pos}, nil
		}
		l.readChar()
		return token.Token{Type: token.LT, Literal: "<", Position: pos}, nil
	case '>':
		if l.peek() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.GT_EQ, Literal: ">=", Position: pos}, nil
		}
		l.readChar()
		return token.Token{Type: token.GT, Literal: ">", Position: pos}, nil
	case '&':
		if l.peek() == '&' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.AND, Literal: "&&", Position: pos}, nil
		}
		l.readChar()
		return token.Token{Type: token.ILLEGAL, Literal: "&", Position: pos},
			fmt.Errorf("unexpected character %q (line %d)", "&", pos.LineNumber())
	case '|':
		if l.peek() == '|' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.OR, Literal: "||", Position: pos}, nil
		}
		l.readChar()
		return token.Token{Type: token.ILLEGAL, Literal: "|", Position: pos},
			fmt.Errorf("unexpected character %q (line %d)", "|", pos.LineNumber())
	case '+':
		l.readChar()
		return token.Token{Type: token.PLUS, Literal: "+", Position: pos}, nil
	case '-':
		l.readChar()
		return token.Token{Type: token.MINUS, Literal: "-", Position: pos}, nil
	case '*':
		l.readChar()
		return token.Token{Type: token.ASTERISK, Literal: "*", Position: pos}, nil
	case '%':
		l.readChar()
		return token.Token{Type: token.PERCENT, Literal: "%", Position: pos}, nil
	case '.':
		l.readChar()
		return token.Token{Type: token.PERIOD, Literal: ".", Position: pos}, nil
	case ',':
		l.readChar()
		return token.Token{Type: token.COMMA, Literal: ",", Position: pos}, nil
	case ';':
		l.readChar()
		return token.Token{Type: token.SEMICOLON, Literal: ";", Position: pos}, nil
	case '(':
		l.readChar()
		return token.Token{Type: token.LPAREN, Literal: "(", Position: pos}, nil
	case ')':
		l.readChar()
		return token.Token{Type: token.RPAREN, Literal: ")", Position: pos}, nil
	case '{':
		l.readChar()
		return token.Token{Type: token.LBRACE, Literal: "{", Position: pos}, nil
	case '}':
		l.readChar()
		return token.Token{Type: token.RBRACE, Literal: "}", Position: pos}, nil
	}

	if isDigit(l.ch) {
		return token.Token{Type: token.INT, Literal: l.readNumber(), Position: pos}, nil
	}
	if isLetter(l.ch) {
		lit := l.readIdentifier()
		return token.Token{Type: token.LookupIdentifier(lit), Literal: lit, Position: pos}, nil
	}

	ch := string(l.ch)
	l.readChar()
	return token.Token{Type: token.ILLEGAL, Literal: ch, Position: pos},
		fmt.Errorf("unexpected character %q (line %d)", ch, pos.LineNumber())
}

func (l *Lexer) pos() token.Position {
	return token.Position{
		Char:   l.position,
		Line:   l.line,
		Column: l.column,
		File:   l.file,
	}
}

// readChar moves to the next byte of input, updating line and column tracking.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else if l.readPosition > 0 {
		l.column++
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

func (l *Lexer) peek() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) skipSpace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) skipComment() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) readNumber() string {
	start := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

// readString reads a double-quoted string literal, processing escapes. The
// opening quote is the current byte when called.
func (l *Lexer) readString() (string, error) {
	var sb strings.Builder
	openLine := l.line + 1
	l.readChar() // consume the opening quote
	for {
		switch l.ch {
		case '"':
			l.readChar()
			return sb.String(), nil
		case 0, '\n':
			return sb.String(), fmt.Errorf("unterminated string literal (line %d)", openLine)
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\':
				sb.WriteByte('\\')
			case '"':
				sb.WriteByte('"')
			default:
				return sb.String(), fmt.Errorf("invalid escape sequence \\%s (line %d)",
					string(l.ch), l.line+1)
			}
			l.readChar()
		default:
			sb.WriteByte(l.ch)
			l.readChar()
		}
	}
}

func isLetter(ch byte) bool {
	return ch == '_' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
