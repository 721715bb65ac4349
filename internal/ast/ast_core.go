package ast

import (
	"github.com/funvibe/formula/internal/token"
	"github.com/funvibe/formula/internal/typesystem"
)

// Node is the base interface for all AST nodes.
type Node interface {
	TokenLiteral() string
	String() string
}

// Expression is a Node that represents an expression. Formulas are
// expressions all the way down.
type Expression interface {
	Node
	expressionNode()
	GetToken() token.Token
}

// NoSlot marks an identifier or member resolved by name at runtime.
const NoSlot = -1

// Formula is the root node produced by the parser.
type Formula struct {
	Source string
	Body   Expression
}

func (f *Formula) TokenLiteral() string {
	if f.Body == nil {
		return ""
	}
	return f.Body.TokenLiteral()
}

func (f *Formula) String() string {
	if f.Body == nil {
		return ""
	}
	return f.Body.String()
}

// CompiledExpression replaces a subtree the optimizer translated to
// bytecode. Program holds the executable; the evaluator dispatches to it
// instead of walking Original.
type CompiledExpression struct {
	Token      token.Token
	Original   Expression
	Program    interface{}
	ReturnType typesystem.Type
}

func (ce *CompiledExpression) expressionNode()       {}
func (ce *CompiledExpression) TokenLiteral() string  { return ce.Token.Lexeme }
func (ce *CompiledExpression) GetToken() token.Token { return ce.Token }
func (ce *CompiledExpression) String() string        { return ce.Original.String() }

// LazyArgument wraps an argument a builtin receives unevaluated, together
// with the slot index its private scope starts at.
type LazyArgument struct {
	Expr Expression
	Base int
}
