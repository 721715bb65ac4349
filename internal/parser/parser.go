package parser

import (
	"fmt"

	"github.com/funvibe/formula/internal/ast"
	"github.com/funvibe/formula/internal/diagnostics"
	"github.com/funvibe/formula/internal/pipeline"
	"github.com/funvibe/formula/internal/token"
)

// MaxRecursionDepth bounds expression nesting.
const MaxRecursionDepth = 256

const (
	_ int = iota
	LOWEST
	OR          // or
	AND         // and
	NOT         // not x
	EQUALS      // = == !=
	LESSGREATER // < > <= >=
	IN          // in, not in
	SUM         // + -
	PRODUCT     // * / %
	POWER       // ^
	PREFIX      // -x
	CALL        // f(x) a.b a[i]
)

var precedences = map[token.TokenType]int{
	token.OR:       OR,
	token.AND:      AND,
	token.ASSIGN:   EQUALS,
	token.EQ:       EQUALS,
	token.NOT_EQ:   EQUALS,
	token.LT:       LESSGREATER,
	token.LTE:      LESSGREATER,
	token.GT:       LESSGREATER,
	token.GTE:      LESSGREATER,
	token.IN:       IN,
	token.NOT:      IN,
	token.PLUS:     SUM,
	token.MINUS:    SUM,
	token.ASTERISK: PRODUCT,
	token.SLASH:    PRODUCT,
	token.PERCENT:  PRODUCT,
	token.CARET:    POWER,
	token.LPAREN:   CALL,
	token.LBRACKET: CALL,
	token.DOT:      CALL,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

type Parser struct {
	tokens []token.Token
	pos    int
	ctx    *pipeline.PipelineContext

	curToken  token.Token
	peekToken token.Token

	prefixParseFns map[token.TokenType]prefixParseFn
	infixParseFns  map[token.TokenType]infixParseFn

	depth int
}

func New(tokens []token.Token, ctx *pipeline.PipelineContext) *Parser {
	p := &Parser{tokens: tokens, ctx: ctx}

	p.prefixParseFns = map[token.TokenType]prefixParseFn{
		token.IDENT:    p.parseIdentifier,
		token.INT:      p.parseIntegerLiteral,
		token.DECIMAL:  p.parseDecimalLiteral,
		token.STRING:   p.parseStringLiteral,
		token.TRUE:     p.parseBoolean,
		token.FALSE:    p.parseBoolean,
		token.NULL:     p.parseNull,
		token.LBRACKET: p.parseListLiteral,
		token.LBRACE:   p.parseMapLiteral,
		token.LPAREN:   p.parseGroupedExpression,
		token.MINUS:    p.parsePrefixExpression,
		token.NOT:      p.parsePrefixExpression,
		token.IF:       p.parseIfExpression,
		token.DEF:      p.parseFunctionLiteral,
	}

	p.infixParseFns = make(map[token.TokenType]infixParseFn)
	for _, t := range []token.TokenType{
		token.PLUS, token.MINUS, token.ASTERISK, token.SLASH, token.PERCENT,
		token.ASSIGN, token.EQ, token.NOT_EQ,
		token.LT, token.LTE, token.GT, token.GTE,
		token.AND, token.OR, token.IN,
	} {
		p.infixParseFns[t] = p.parseInfixExpression
	}
	p.infixParseFns[token.CARET] = p.parseRightAssocInfixExpression
	p.infixParseFns[token.NOT] = p.parseNotInExpression
	p.infixParseFns[token.DOT] = p.parseDotExpression
	p.infixParseFns[token.LBRACKET] = p.parseIndexExpression
	p.infixParseFns[token.LPAREN] = p.parseCallExpression

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	if p.pos < len(p.tokens) {
		p.peekToken = p.tokens[p.pos]
		p.pos++
	} else {
		p.peekToken = token.Token{Type: token.EOF}
	}
}

func (p *Parser) curTokenIs(t token.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t token.TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t token.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekError(t token.TokenType) {
	msg := fmt.Sprintf("expected next token to be %s, got %s instead", t, p.peekToken.Type)
	p.ctx.AddError(diagnostics.NewError(diagnostics.ErrP001, p.peekToken, msg))
}

func (p *Parser) noPrefixParseFnError(t token.TokenType) {
	msg := fmt.Sprintf("no prefix parse function for %s found", t)
	p.ctx.AddError(diagnostics.NewError(diagnostics.ErrP002, p.curToken, msg))
}

func (p *Parser) peekPrecedence() int {
	if p, ok := precedences[p.peekToken.Type]; ok {
		return p
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if p, ok := precedences[p.curToken.Type]; ok {
		return p
	}
	return LOWEST
}

// ParseFormula parses a whole formula: optional named function
// definitions and command expressions separated by ';'.
func (p *Parser) ParseFormula() *ast.Formula {
	root := &ast.Formula{Source: p.ctx.SourceCode}
	start := p.curToken

	var names []string
	var funcs []ast.Expression
	var exprs []ast.Expression

	for !p.curTokenIs(token.EOF) {
		if p.curTokenIs(token.DEF) && p.peekTokenIs(token.IDENT) {
			fn, ok := p.parseFunctionLiteral().(*ast.FunctionLiteral)
			if !ok || fn == nil {
				return root
			}
			names = append(names, fn.Name)
			funcs = append(funcs, fn)
		} else {
			expr := p.parseWhereExpression()
			if expr == nil {
				return root
			}
			exprs = append(exprs, expr)
		}

		p.nextToken()
		if p.curTokenIs(token.SEMICOLON) {
			p.nextToken()
			continue
		}
		if !p.curTokenIs(token.EOF) {
			p.ctx.AddError(diagnostics.NewError(diagnostics.ErrP005, p.curToken,
				fmt.Sprintf("unexpected %s after expression", p.curToken.Type)))
			return root
		}
	}

	var body ast.Expression
	switch len(exprs) {
	case 0:
		p.ctx.AddError(diagnostics.NewError(diagnostics.ErrP001, start, "empty formula"))
		return root
	case 1:
		body = exprs[0]
	default:
		body = &ast.SequenceExpression{Token: exprs[0].GetToken(), Expressions: exprs}
	}

	if len(funcs) > 0 {
		body = &ast.WhereExpression{Token: start, Body: body, Names: names, Values: funcs, Base: ast.NoSlot}
	}
	root.Body = body
	return root
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	p.depth++
	defer func() { p.depth-- }()

	if p.depth > MaxRecursionDepth {
		p.ctx.AddError(diagnostics.NewError(diagnostics.ErrP006, p.curToken,
			"expression too complex: recursion depth limit exceeded"))
		return nil
	}

	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curToken.Type)
		return nil
	}
	leftExp := prefix()
	if leftExp == nil {
		return nil
	}

	for precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
		if leftExp == nil {
			return nil
		}
	}

	return leftExp
}

// parseWhereExpression parses an expression with optional trailing
// where-bindings.
func (p *Parser) parseWhereExpression() ast.Expression {
	body := p.parseExpression(LOWEST)
	if body == nil || !p.peekTokenIs(token.WHERE) {
		return body
	}
	p.nextToken()
	where := &ast.WhereExpression{Token: p.curToken, Body: body, Base: ast.NoSlot}

	for {
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		name := p.curToken.Literal.(string)
		if !p.expectPeek(token.ASSIGN) {
			return nil
		}
		p.nextToken()
		value := p.parseExpression(LOWEST)
		if value == nil {
			return nil
		}
		where.Names = append(where.Names, name)
		where.Values = append(where.Values, value)

		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}

	return where
}
