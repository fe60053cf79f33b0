package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/understudy-io/understudy/internal/token"
)

func TestUnitHeader(t *testing.T) {
	input := "unit com.example.Foo\n"
	tests := []struct {
		expectedType    token.Type
		expectedLiteral string
	}{
		{token.UNIT, "unit"},
		{token.IDENT, "com"},
		{token.PERIOD, "."},
		{token.IDENT, "example"},
		{token.PERIOD, "."},
		{token.IDENT, "Foo"},
		{token.NEWLINE, "\n"},
		{token.EOF, ""},
	}
	l := New(input)
	for i, tt := range tests {
		tok, err := l.Next()
		require.Nil(t, err)
		require.Equal(t, tt.expectedType, tok.Type, "tests[%d]", i)
		require.Equal(t, tt.expectedLiteral, tok.Literal, "tests[%d]", i)
	}
}

func TestOperators(t *testing.T) {
	input := "= == != < <= > >= + - * / % ! && || ( ) { } , ; ."
	expected := []token.Type{
		token.ASSIGN, token.EQ, token.NOT_EQ, token.LT, token.LT_EQ,
		token.GT, token.GT_EQ, token.PLUS, token.MINUS, token.ASTERISK,
		token.SLASH, token.PERCENT, token.BANG, token.AND, token.OR,
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE,
		token.COMMA, token.SEMICOLON, token.PERIOD, token.EOF,
	}
	l := New(input)
	for i, want := range expected {
		tok, err := l.Next()
		require.Nil(t, err)
		require.Equal(t, want, tok.Type, "tokens[%d]", i)
	}
}

func TestKeywords(t *testing.T) {
	input := "unit uses method let return if else while true false nil value"
	expected := []token.Type{
		token.UNIT, token.USES, token.METHOD, token.LET, token.RETURN,
		token.IF, token.ELSE, token.WHILE, token.TRUE, token.FALSE,
		token.NIL, token.IDENT,
	}
	l := New(input)
	for i, want := range expected {
		tok, err := l.Next()
		require.Nil(t, err)
		require.Equal(t, want, tok.Type, "tokens[%d]", i)
	}
}

func TestStringLiteral(t *testing.T) {
	l := New(`"hello \"world\"\n"`)
	tok, err := l.Next()
	require.Nil(t, err)
	require.Equal(t, token.STRING, tok.Type)
	require.Equal(t, "hello \"world\"\n", tok.Literal)
}

func TestUnterminatedString(t *testing.T) {
	l := New("\"oops")
	_, err := l.Next()
	require.NotNil(t, err)
	require.Equal(t, "unterminated string literal (line 1)", err.Error())
}

func TestInvalidEscape(t *testing.T) {
	l := New(`"bad \q escape"`)
	_, err := l.Next()
	require.NotNil(t, err)
	require.Equal(t, "invalid escape sequence \\q (line 1)", err.Error())
}

func TestComments(t *testing.T) {
	input := "// header comment\nlet x = 5 // trailing\n"
	expected := []struct {
		typ token.Type
		lit string
	}{
		{token.NEWLINE, "\n"},
		{token.LET, "let"},
		{token.IDENT, "x"},
		{token.ASSIGN, "="},
		{token.INT, "5"},
		{token.NEWLINE, "\n"},
		{token.EOF, ""},
	}
	l := New(input)
	for i, want := range expected {
		tok, err := l.Next()
		require.Nil(t, err)
		require.Equal(t, want.typ, tok.Type, "tokens[%d]", i)
		require.Equal(t, want.lit, tok.Literal, "tokens[%d]", i)
	}
}

func TestPositions(t *testing.T) {
	l := New("method value() {\n  return 42\n}")
	l.SetFilename("Foo.unit")

	var tokens []token.Token
	for {
		tok, err := l.Next()
		require.Nil(t, err)
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			break
		}
	}

	// "return" starts line 2, column 3 (1-indexed)
	var ret token.Token
	for _, tok := range tokens {
		if tok.Type == token.RETURN {
			ret = tok
		}
	}
	require.Equal(t, 2, ret.Position.LineNumber())
	require.Equal(t, 3, ret.Position.ColumnNumber())
	require.Equal(t, "Foo.unit", ret.Position.File)
}

func TestIllegalCharacter(t *testing.T) {
	l := New("let x = @")
	var err error
	for i := 0; i < 3; i++ {
		_, err = l.Next()
		require.Nil(t, err)
	}
	tok, err := l.Next()
	require.NotNil(t, err)
	require.Equal(t, token.ILLEGAL, tok.Type)
	require.Equal(t, "@", tok.Literal)
}
