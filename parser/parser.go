// Package parser is used to parse unit source code into an abstract syntax
// tree. Work with this package directly only if the surrounding token
// positions matter; most callers should use the compiler package instead.
package parser

import (
	"context"
	"fmt"

	"github.com/understudy-io/understudy/ast"
	"github.com/understudy-io/understudy/internal/lexer"
	"github.com/understudy-io/understudy/internal/token"
)

type (
	prefixParseFn func() ast.Expr
	infixParseFn  func(ast.Expr) ast.Expr
)

// Parse the given unit source and return the AST. This is a shorthand for
// creating a lexer and parser and then calling Parse on the parser.
func Parse(ctx context.Context, input string, options ...Option) (*ast.Unit, error) {
	l := lexer.New(input)
	p := New(l, options...)
	return p.Parse(ctx)
}

// Option is a configuration function for a Parser.
type Option func(*Parser)

// WithFilename sets the filename used in token positions and error messages.
func WithFilename(filename string) Option {
	return func(p *Parser) {
		p.filename = filename
	}
}

// WithMaxDepth sets the maximum expression nesting depth for the parser.
// This prevents stack overflow on deeply nested input. The default is 500.
func WithMaxDepth(depth int) Option {
	return func(p *Parser) {
		p.maxDepth = depth
	}
}

// DefaultMaxDepth is the default maximum nesting depth for parsing.
const DefaultMaxDepth = 500

// Parser transforms a token stream into an *ast.Unit. Parsing stops at the
// first syntax error.
type Parser struct {
	// l is our lexer
	l *lexer.Lexer

	// curToken holds the current token from the lexer.
	curToken token.Token

	// peekToken holds the next token from the lexer.
	peekToken token.Token

	// err is the first error encountered during parsing, if any. Once set,
	// all parsing methods become no-ops.
	err *SyntaxError

	// prefixParseFns holds a map of parsing methods for
	// prefix-based syntax.
	prefixParseFns map[token.Type]prefixParseFn

	// infixParseFns holds a map of parsing methods for
	// infix-based syntax.
	infixParseFns map[token.Type]infixParseFn

	// The filename of the input
	filename string

	// Current expression nesting depth
	depth int

	// Maximum allowed expression nesting depth
	maxDepth int
}

// New returns a Parser for the unit source provided by the given Lexer.
func New(l *lexer.Lexer, options ...Option) *Parser {
	p := &Parser{
		l:              l,
		prefixParseFns: map[token.Type]prefixParseFn{},
		infixParseFns:  map[token.Type]infixParseFn{},
		maxDepth:       DefaultMaxDepth,
	}
	for _, opt := range options {
		opt(p)
	}
	if p.filename != "" {
		l.SetFilename(p.filename)
	} else {
		p.filename = l.Filename()
	}

	// Prime the token pump
	p.nextToken() // makes curToken=<empty>, peekToken=token[0]
	p.nextToken() // makes curToken=token[0], peekToken=token[1]

	// Register prefix-functions
	p.registerPrefix(token.IDENT, p.parseIdent)
	p.registerPrefix(token.INT, p.parseInt)
	p.registerPrefix(token.STRING, p.parseString)
	p.registerPrefix(token.TRUE, p.parseBool)
	p.registerPrefix(token.FALSE, p.parseBool)
	p.registerPrefix(token.NIL, p.parseNil)
	p.registerPrefix(token.BANG, p.parsePrefixExpr)
	p.registerPrefix(token.MINUS, p.parsePrefixExpr)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpr)

	// Register infix functions
	p.registerInfix(token.PLUS, p.parseInfixExpr)
	p.registerInfix(token.MINUS, p.parseInfixExpr)
	p.registerInfix(token.ASTERISK, p.parseInfixExpr)
	p.registerInfix(token.SLASH, p.parseInfixExpr)
	p.registerInfix(token.PERCENT, p.parseInfixExpr)
	p.registerInfix(token.EQ, p.parseInfixExpr)
	p.registerInfix(token.NOT_EQ, p.parseInfixExpr)
	p.registerInfix(token.LT, p.parseInfixExpr)
	p.registerInfix(token.LT_EQ, p.parseInfixExpr)
	p.registerInfix(token.GT, p.parseInfixExpr)
	p.registerInfix(token.GT_EQ, p.parseInfixExpr)
	p.registerInfix(token.AND, p.parseInfixExpr)
	p.registerInfix(token.OR, p.parseInfixExpr)
	p.registerInfix(token.LPAREN, p.parseCall)
	p.registerInfix(token.PERIOD, p.parseUnitCall)

	return p
}

// registerPrefix registers a function for handling a prefix-based expression.
func (p *Parser) registerPrefix(tokenType token.Type, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

// registerInfix registers a function for handling an infix-based expression.
func (p *Parser) registerInfix(tokenType token.Type, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

// nextToken moves to the next token from the lexer, updating both curToken
// and peekToken. A lexer error marks the whole parse as failed.
func (p *Parser) nextToken() {
	if p.err != nil {
		return
	}
	var err error
	p.curToken = p.peekToken
	p.peekToken, err = p.l.Next()
	if err != nil {
		p.err = &SyntaxError{
			cause: err,
			file:  p.filename,
			pos:   p.peekToken.Position,
		}
	}
}

func (p *Parser) curTokenIs(t token.Type) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t token.Type) bool {
	return p.peekToken.Type == t
}

// expectPeek validates the next token is of the given type and advances to
// it if so. Otherwise a syntax error is recorded.
func (p *Parser) expectPeek(t token.Type) bool {
	if p.err != nil {
		return false
	}
	if !p.peekTokenIs(t) {
		p.errorf(p.peekToken.Position, "expected %s, got %s",
			describeType(t), describe(p.peekToken))
		return false
	}
	p.nextToken()
	return true
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) skipTerminators() {
	for p.curTokenIs(token.NEWLINE) || p.curTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
}

func (p *Parser) errorf(pos token.Position, format string, args ...any) *SyntaxError {
	if p.err == nil {
		p.err = &SyntaxError{
			message: fmt.Sprintf(format, args...),
			file:    p.filename,
			pos:     pos,
		}
	}
	return p.err
}

// Parse the unit source that is provided via the lexer. The returned AST is
// nil whenever an error is returned.
func (p *Parser) Parse(ctx context.Context) (*ast.Unit, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.skipTerminators()
	if !p.curTokenIs(token.UNIT) {
		return nil, p.errorf(p.curToken.Position,
			"expected unit declaration, got %s", describe(p.curToken))
	}
	unit := &ast.Unit{UnitPos: p.curToken.Position}
	if !p.expectPeek(token.IDENT) {
		return nil, p.err
	}
	unit.Name = p.parseDottedName()
	if p.err != nil {
		return nil, p.err
	}
	p.nextToken()
	for !p.curTokenIs(token.EOF) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		switch p.curToken.Type {
		case token.NEWLINE, token.SEMICOLON:
			// separators between declarations
		case token.USES:
			use := p.parseUse()
			if p.err != nil {
				return nil, p.err
			}
			unit.Uses = append(unit.Uses, use)
		case token.METHOD:
			method := p.parseMethod()
			if p.err != nil {
				return nil, p.err
			}
			unit.Methods = append(unit.Methods, method)
		default:
			return nil, p.errorf(p.curToken.Position,
				"expected a uses or method declaration, got %s", describe(p.curToken))
		}
		p.nextToken()
		if p.err != nil {
			return nil, p.err
		}
	}
	return unit, nil
}

// parseDottedName parses a dot-separated name such as "com.example.Foo".
// The current token must be the first (IDENT) segment.
func (p *Parser) parseDottedName() *ast.DottedName {
	name := &ast.DottedName{
		NamePos: p.curToken.Position,
		Parts:   []string{p.curToken.Literal},
	}
	for p.peekTokenIs(token.PERIOD) {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		name.Parts = append(name.Parts, p.curToken.Literal)
	}
	return name
}

func (p *Parser) parseUse() *ast.Use {
	use := &ast.Use{UsePos: p.curToken.Position}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	use.Name = p.parseDottedName()
	return use
}

func (p *Parser) parseMethod() *ast.Method {
	method := &ast.Method{MethodPos: p.curToken.Position}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	method.Name = &ast.Ident{NamePos: p.curToken.Position, Name: p.curToken.Literal}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	if !p.peekTokenIs(token.RPAREN) {
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		method.Params = append(method.Params, &ast.Ident{
			NamePos: p.curToken.Position, Name: p.curToken.Literal,
		})
		for p.peekTokenIs(token.COMMA) {
			p.nextToken()
			if !p.expectPeek(token.IDENT) {
				return nil
			}
			method.Params = append(method.Params, &ast.Ident{
				NamePos: p.curToken.Position, Name: p.curToken.Literal,
			})
		}
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	method.Body = p.parseBlock()
	return method
}

// parseBlock parses a braced statement sequence. The current token must be
// the opening brace, and on success the current token is the closing brace.
func (p *Parser) parseBlock() *ast.Block {
	block := &ast.Block{Lbrace: p.curToken.Position}
	p.nextToken()
	for !p.curTokenIs(token.RBRACE) {
		if p.err != nil {
			return nil
		}
		if p.curTokenIs(token.EOF) {
			p.errorf(block.Lbrace, "block was never closed")
			return nil
		}
		if p.curTokenIs(token.NEWLINE) || p.curTokenIs(token.SEMICOLON) {
			p.nextToken()
			continue
		}
		stmt := p.parseStatement()
		if p.err != nil {
			return nil
		}
		block.Stmts = append(block.Stmts, stmt)
		p.nextToken()
	}
	block.Rbrace = p.curToken.Position
	return block
}

// parseStatement parses one statement, leaving the current token on the
// statement's final token.
func (p *Parser) parseStatement() ast.Stmt {
	switch p.curToken.Type {
	case token.LET:
		return p.parseLet()
	case token.RETURN:
		return p.parseReturn()
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.IDENT:
		if p.peekTokenIs(token.ASSIGN) {
			return p.parseAssign()
		}
	}
	expr := p.parseExpr(LOWEST)
	if expr == nil {
		return nil
	}
	return &ast.ExprStmt{X: expr}
}

func (p *Parser) parseLet() *ast.Let {
	stmt := &ast.Let{LetPos: p.curToken.Position}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = &ast.Ident{NamePos: p.curToken.Position, Name: p.curToken.Literal}
	if !p.expectPeek(token.ASSIGN) {
		return nil
	}
	p.nextToken()
	stmt.Value = p.parseExpr(LOWEST)
	return stmt
}

func (p *Parser) parseAssign() *ast.Assign {
	stmt := &ast.Assign{
		Name: &ast.Ident{NamePos: p.curToken.Position, Name: p.curToken.Literal},
	}
	p.nextToken()
	stmt.AssignPos = p.curToken.Position
	p.nextToken()
	stmt.Value = p.parseExpr(LOWEST)
	return stmt
}

func (p *Parser) parseReturn() *ast.Return {
	stmt := &ast.Return{ReturnPos: p.curToken.Position}
	if p.peekTokenIs(token.NEWLINE) || p.peekTokenIs(token.SEMICOLON) ||
		p.peekTokenIs(token.RBRACE) || p.peekTokenIs(token.EOF) {
		return stmt
	}
	p.nextToken()
	stmt.Value = p.parseExpr(LOWEST)
	return stmt
}

func (p *Parser) parseIf() *ast.If {
	stmt := &ast.If{IfPos: p.curToken.Position}
	p.nextToken()
	stmt.Cond = p.parseExpr(LOWEST)
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Cons = p.parseBlock()
	if p.err != nil {
		return nil
	}
	// "else" must follow the closing brace on the same line
	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		if p.peekTokenIs(token.IF) {
			p.nextToken()
			stmt.Else = p.parseIf()
		} else {
			if !p.expectPeek(token.LBRACE) {
				return nil
			}
			stmt.Else = p.parseBlock()
		}
	}
	if p.err != nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseWhile() *ast.While {
	stmt := &ast.While{WhilePos: p.curToken.Position}
	p.nextToken()
	stmt.Cond = p.parseExpr(LOWEST)
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlock()
	if p.err != nil {
		return nil
	}
	return stmt
}

func describe(tok token.Token) string {
	switch tok.Type {
	case token.EOF:
		return "end of input"
	case token.NEWLINE:
		return "newline"
	default:
		return fmt.Sprintf("token '%s'", tok.Literal)
	}
}

func describeType(t token.Type) string {
	if t == token.IDENT {
		return "an identifier"
	}
	// Operator and delimiter token types carry their literal text
	return fmt.Sprintf("'%s'", string(t))
}
