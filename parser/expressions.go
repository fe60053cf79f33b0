package parser

import (
	"strconv"

	"github.com/understudy-io/understudy/ast"
	"github.com/understudy-io/understudy/internal/token"
)

// parseExpr parses an expression using Pratt parsing, leaving the current
// token on the expression's final token.
func (p *Parser) parseExpr(precedence int) ast.Expr {
	if p.err != nil {
		return nil
	}
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > p.maxDepth {
		p.errorf(p.curToken.Position, "exceeded maximum expression depth")
		return nil
	}
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.errorf(p.curToken.Position, "unexpected %s", describe(p.curToken))
		return nil
	}
	left := prefix()
	for p.err == nil && left != nil && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
	}
	if p.err != nil {
		return nil
	}
	return left
}

func (p *Parser) parseIdent() ast.Expr {
	return &ast.Ident{NamePos: p.curToken.Position, Name: p.curToken.Literal}
}

func (p *Parser) parseInt() ast.Expr {
	value, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
	if err != nil {
		p.errorf(p.curToken.Position, "could not parse %q as an integer",
			p.curToken.Literal)
		return nil
	}
	return &ast.Int{
		ValuePos: p.curToken.Position,
		Literal:  p.curToken.Literal,
		Value:    value,
	}
}

func (p *Parser) parseString() ast.Expr {
	return &ast.String{ValuePos: p.curToken.Position, Literal: p.curToken.Literal}
}

func (p *Parser) parseBool() ast.Expr {
	return &ast.Bool{
		ValuePos: p.curToken.Position,
		Value:    p.curTokenIs(token.TRUE),
	}
}

func (p *Parser) parseNil() ast.Expr {
	return &ast.Nil{NilPos: p.curToken.Position}
}

func (p *Parser) parsePrefixExpr() ast.Expr {
	expr := &ast.Prefix{OpPos: p.curToken.Position, Op: p.curToken.Literal}
	p.nextToken()
	expr.X = p.parseExpr(PREFIX)
	if expr.X == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseInfixExpr(left ast.Expr) ast.Expr {
	expr := &ast.Infix{
		X:     left,
		OpPos: p.curToken.Position,
		Op:    p.curToken.Literal,
	}
	precedence := precedences[p.curToken.Type]
	p.nextToken()
	expr.Y = p.parseExpr(precedence)
	if expr.Y == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseGroupedExpr() ast.Expr {
	p.nextToken()
	expr := p.parseExpr(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return expr
}

// parseCall parses an unqualified call such as "value()" or "add(1, 2)".
// The current token is the opening paren and the callee has been parsed.
func (p *Parser) parseCall(left ast.Expr) ast.Expr {
	fn, ok := left.(*ast.Ident)
	if !ok {
		p.errorf(p.curToken.Position, "expected a method name before '('")
		return nil
	}
	call := &ast.Call{Fun: fn, Lparen: p.curToken.Position}
	call.Args = p.parseExprList(token.RPAREN)
	if p.err != nil {
		return nil
	}
	call.Rparen = p.curToken.Position
	return call
}

// parseUnitCall parses a qualified call such as "Calculator.add(1, 2)".
// The current token is the period and the unit alias has been parsed.
func (p *Parser) parseUnitCall(left ast.Expr) ast.Expr {
	alias, ok := left.(*ast.Ident)
	if !ok {
		p.errorf(p.curToken.Position, "expected a unit alias before '.'")
		return nil
	}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	call := &ast.UnitCall{
		Unit:   alias,
		Method: &ast.Ident{NamePos: p.curToken.Position, Name: p.curToken.Literal},
	}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	call.Lparen = p.curToken.Position
	call.Args = p.parseExprList(token.RPAREN)
	if p.err != nil {
		return nil
	}
	call.Rparen = p.curToken.Position
	return call
}

// parseExprList parses a comma-separated expression list, stopping at the
// given end token. The current token ends up on the end token.
func (p *Parser) parseExprList(end token.Type) []ast.Expr {
	var list []ast.Expr
	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}
	p.nextToken()
	list = append(list, p.parseExpr(LOWEST))
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		list = append(list, p.parseExpr(LOWEST))
	}
	if !p.expectPeek(end) {
		return nil
	}
	return list
}
