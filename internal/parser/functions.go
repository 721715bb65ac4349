package parser

import (
	"strings"

	"github.com/funvibe/formula/internal/ast"
	"github.com/funvibe/formula/internal/diagnostics"
	"github.com/funvibe/formula/internal/token"
	"github.com/funvibe/formula/internal/typesystem"
)

// parseIfExpression parses if(cond, then[, cond2, then2...][, else]).
func (p *Parser) parseIfExpression() ast.Expression {
	exp := &ast.IfExpression{Token: p.curToken}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	args, ok := p.parseExpressionList(token.RPAREN)
	if !ok {
		return nil
	}
	if len(args) < 2 {
		p.ctx.AddError(diagnostics.NewError(diagnostics.ErrA004, exp.Token, "if() needs at least a condition and a result"))
		return nil
	}
	for len(args) >= 2 {
		exp.Conditions = append(exp.Conditions, args[0])
		exp.Results = append(exp.Results, args[1])
		args = args[2:]
	}
	if len(args) == 1 {
		exp.Else = args[0]
	}
	return exp
}

// parseFunctionLiteral parses
//
//	def [name](params) [-> type] body
//	def [name](params) [-> type] base cond: value ... recursive: body
//
// A named function's body may end in a where clause.
func (p *Parser) parseFunctionLiteral() ast.Expression {
	fn := &ast.FunctionLiteral{Token: p.curToken, Base: ast.NoSlot}

	if p.peekTokenIs(token.IDENT) {
		p.nextToken()
		fn.Name = p.curToken.Literal.(string)
	}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	params, ok := p.parseParameters()
	if !ok {
		return nil
	}
	fn.Parameters = params

	if p.peekTokenIs(token.ARROW) {
		p.nextToken()
		t, ok := p.parseTypeName()
		if !ok {
			return nil
		}
		fn.ReturnType = t
	}

	for p.peekTokenIs(token.BASE) {
		p.nextToken()
		p.nextToken()
		cond := p.parseExpression(LOWEST)
		if cond == nil || !p.expectPeek(token.COLON) {
			return nil
		}
		p.nextToken()
		value := p.parseExpression(LOWEST)
		if value == nil {
			return nil
		}
		fn.Guards = append(fn.Guards, &ast.Guard{Condition: cond, Value: value})
	}
	if len(fn.Guards) > 0 {
		if fn.Name == "" {
			p.ctx.AddError(diagnostics.NewError(diagnostics.ErrP004, fn.Token, "a function with base cases needs a name"))
			return nil
		}
		if !p.expectPeek(token.RECURSIVE) || !p.expectPeek(token.COLON) {
			return nil
		}
	}

	p.nextToken()
	// Only named functions take a where clause of their own; in a lambda
	// it belongs to the enclosing expression.
	if fn.Name != "" {
		fn.Body = p.parseWhereExpression()
	} else {
		fn.Body = p.parseExpression(LOWEST)
	}
	if fn.Body == nil {
		return nil
	}
	return fn
}

// parseParameters parses (a, b) or (int a, Point|null b).
func (p *Parser) parseParameters() ([]*ast.Parameter, bool) {
	var params []*ast.Parameter
	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return params, true
	}
	for {
		if !p.expectPeek(token.IDENT) {
			return nil, false
		}
		param := &ast.Parameter{Name: p.curToken.Literal.(string)}
		if p.peekTokenIs(token.PIPE) || p.peekTokenIs(token.IDENT) {
			typeName := param.Name
			for p.peekTokenIs(token.PIPE) {
				p.nextToken()
				if !p.peekTokenIs(token.IDENT) && !p.peekTokenIs(token.NULL) {
					p.peekError(token.IDENT)
					return nil, false
				}
				p.nextToken()
				typeName += "|" + p.curToken.Lexeme
			}
			t, err := typesystem.Parse(typeName)
			if err != nil {
				p.ctx.AddError(diagnostics.NewError(diagnostics.ErrP004, p.curToken, err.Error()))
				return nil, false
			}
			if !p.expectPeek(token.IDENT) {
				return nil, false
			}
			param = &ast.Parameter{Name: p.curToken.Literal.(string), Type: t}
		}
		params = append(params, param)
		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}
	if !p.expectPeek(token.RPAREN) {
		return nil, false
	}
	return params, true
}

// parseTypeName parses a return type written as names joined by '|'.
func (p *Parser) parseTypeName() (typesystem.Type, bool) {
	var parts []string
	for {
		p.nextToken()
		if !p.curTokenIs(token.IDENT) && !p.curTokenIs(token.NULL) {
			p.ctx.AddError(diagnostics.NewError(diagnostics.ErrP004, p.curToken, "expected type name"))
			return nil, false
		}
		parts = append(parts, p.curToken.Lexeme)
		if !p.peekTokenIs(token.PIPE) {
			break
		}
		p.nextToken()
	}
	t, err := typesystem.Parse(strings.Join(parts, "|"))
	if err != nil {
		p.ctx.AddError(diagnostics.NewError(diagnostics.ErrP004, p.curToken, err.Error()))
		return nil, false
	}
	return t, true
}
