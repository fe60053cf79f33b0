package parser

import "github.com/understudy-io/understudy/internal/token"

// Precedence order for operators
const (
	_ int = iota
	LOWEST
	COND        // || or &&
	EQUALS      // == or !=
	LESSGREATER // > or <
	SUM         // + or -
	PRODUCT     // *, / or %
	PREFIX      // -x or !x
	CALL        // value(x) or Math.abs(x)
)

// Precedences for each token type
var precedences = map[token.Type]int{
	token.OR:       COND,
	token.AND:      COND,
	token.EQ:       EQUALS,
	token.NOT_EQ:   EQUALS,
	token.LT:       LESSGREATER,
	token.LT_EQ:    LESSGREATER,
	token.GT:       LESSGREATER,
	token.GT_EQ:    LESSGREATER,
	token.PLUS:     SUM,
	token.MINUS:    SUM,
	token.ASTERISK: PRODUCT,
	token.SLASH:    PRODUCT,
	token.PERCENT:  PRODUCT,
	token.LPAREN:   CALL,
	token.PERIOD:   CALL,
}
