package ast

import (
	"strconv"
	"strings"

	"github.com/funvibe/formula/internal/token"
	"github.com/funvibe/formula/internal/typesystem"
)

type Identifier struct {
	Token token.Token
	Value string
	Slot  int // resolved slot in the enclosing definition, or NoSlot
}

func (i *Identifier) expressionNode()       {}
func (i *Identifier) TokenLiteral() string  { return i.Token.Lexeme }
func (i *Identifier) GetToken() token.Token { return i.Token }
func (i *Identifier) String() string        { return i.Value }

type IntegerLiteral struct {
	Token token.Token
	Value int64
}

func (il *IntegerLiteral) expressionNode()       {}
func (il *IntegerLiteral) TokenLiteral() string  { return il.Token.Lexeme }
func (il *IntegerLiteral) GetToken() token.Token { return il.Token }
func (il *IntegerLiteral) String() string        { return strconv.FormatInt(il.Value, 10) }

type DecimalLiteral struct {
	Token token.Token
	Value float64
}

func (dl *DecimalLiteral) expressionNode()       {}
func (dl *DecimalLiteral) TokenLiteral() string  { return dl.Token.Lexeme }
func (dl *DecimalLiteral) GetToken() token.Token { return dl.Token }
func (dl *DecimalLiteral) String() string        { return dl.Token.Lexeme }

type StringLiteral struct {
	Token token.Token
	Value string
}

func (sl *StringLiteral) expressionNode()       {}
func (sl *StringLiteral) TokenLiteral() string  { return sl.Token.Lexeme }
func (sl *StringLiteral) GetToken() token.Token { return sl.Token }
func (sl *StringLiteral) String() string        { return strconv.Quote(sl.Value) }

type BooleanLiteral struct {
	Token token.Token
	Value bool
}

func (b *BooleanLiteral) expressionNode()       {}
func (b *BooleanLiteral) TokenLiteral() string  { return b.Token.Lexeme }
func (b *BooleanLiteral) GetToken() token.Token { return b.Token }
func (b *BooleanLiteral) String() string        { return strconv.FormatBool(b.Value) }

type NullLiteral struct {
	Token token.Token
}

func (n *NullLiteral) expressionNode()       {}
func (n *NullLiteral) TokenLiteral() string  { return n.Token.Lexeme }
func (n *NullLiteral) GetToken() token.Token { return n.Token }
func (n *NullLiteral) String() string        { return "null" }

type ListLiteral struct {
	Token    token.Token // the '[' token
	Elements []Expression
}

func (ll *ListLiteral) expressionNode()       {}
func (ll *ListLiteral) TokenLiteral() string  { return ll.Token.Lexeme }
func (ll *ListLiteral) GetToken() token.Token { return ll.Token }
func (ll *ListLiteral) String() string        { return "[" + joinExprs(ll.Elements) + "]" }

// MapLiteral keeps keys in source order.
type MapLiteral struct {
	Token  token.Token // the '{' token
	Keys   []Expression
	Values []Expression
}

func (ml *MapLiteral) expressionNode()       {}
func (ml *MapLiteral) TokenLiteral() string  { return ml.Token.Lexeme }
func (ml *MapLiteral) GetToken() token.Token { return ml.Token }
func (ml *MapLiteral) String() string {
	parts := make([]string, len(ml.Keys))
	for i := range ml.Keys {
		parts[i] = ml.Keys[i].String() + ": " + ml.Values[i].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

type PrefixExpression struct {
	Token    token.Token // the prefix token, e.g. - or not
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()       {}
func (pe *PrefixExpression) TokenLiteral() string  { return pe.Token.Lexeme }
func (pe *PrefixExpression) GetToken() token.Token { return pe.Token }
func (pe *PrefixExpression) String() string {
	if pe.Operator == "not" {
		return "(not " + pe.Right.String() + ")"
	}
	return "(" + pe.Operator + pe.Right.String() + ")"
}

type InfixExpression struct {
	Token    token.Token // the operator token, e.g. +
	Left     Expression
	Operator string
	Right    Expression
}

func (ie *InfixExpression) expressionNode()       {}
func (ie *InfixExpression) TokenLiteral() string  { return ie.Token.Lexeme }
func (ie *InfixExpression) GetToken() token.Token { return ie.Token }
func (ie *InfixExpression) String() string {
	return "(" + ie.Left.String() + " " + ie.Operator + " " + ie.Right.String() + ")"
}

// DotExpression is member access: obj.name
type DotExpression struct {
	Token token.Token // the '.' token
	Left  Expression
	Name  string
	Slot  int // slot of Name in Left's definition, or NoSlot
}

func (de *DotExpression) expressionNode()       {}
func (de *DotExpression) TokenLiteral() string  { return de.Token.Lexeme }
func (de *DotExpression) GetToken() token.Token { return de.Token }
func (de *DotExpression) String() string        { return de.Left.String() + "." + de.Name }

type IndexExpression struct {
	Token token.Token // the '[' token
	Left  Expression
	Index Expression
}

func (ie *IndexExpression) expressionNode()       {}
func (ie *IndexExpression) TokenLiteral() string  { return ie.Token.Lexeme }
func (ie *IndexExpression) GetToken() token.Token { return ie.Token }
func (ie *IndexExpression) String() string {
	return ie.Left.String() + "[" + ie.Index.String() + "]"
}

type CallExpression struct {
	Token     token.Token // the '(' token
	Function  Expression
	Arguments []Expression

	// ScopeBase is the first slot of the scope a builtin binds around its
	// lazy arguments.
	ScopeBase int
}

func (ce *CallExpression) expressionNode()       {}
func (ce *CallExpression) TokenLiteral() string  { return ce.Token.Lexeme }
func (ce *CallExpression) GetToken() token.Token { return ce.Token }
func (ce *CallExpression) String() string {
	return ce.Function.String() + "(" + joinExprs(ce.Arguments) + ")"
}

// CalleeName returns the called identifier, if the callee is one.
func (ce *CallExpression) CalleeName() (string, bool) {
	id, ok := ce.Function.(*Identifier)
	if !ok {
		return "", false
	}
	return id.Value, true
}

// IfExpression is if(c1, r1, c2, r2, ..., else).
type IfExpression struct {
	Token      token.Token
	Conditions []Expression
	Results    []Expression
	Else       Expression // nil means null
}

func (ie *IfExpression) expressionNode()       {}
func (ie *IfExpression) TokenLiteral() string  { return ie.Token.Lexeme }
func (ie *IfExpression) GetToken() token.Token { return ie.Token }
func (ie *IfExpression) String() string {
	var parts []string
	for i := range ie.Conditions {
		parts = append(parts, ie.Conditions[i].String(), ie.Results[i].String())
	}
	if ie.Else != nil {
		parts = append(parts, ie.Else.String())
	}
	return "if(" + strings.Join(parts, ", ") + ")"
}

// WhereExpression binds names visible in Body and in each other.
// Bindings are evaluated lazily, at most once per evaluation of Body.
type WhereExpression struct {
	Token  token.Token
	Body   Expression
	Names  []string
	Values []Expression
	Base   int
}

func (we *WhereExpression) expressionNode()       {}
func (we *WhereExpression) TokenLiteral() string  { return we.Token.Lexeme }
func (we *WhereExpression) GetToken() token.Token { return we.Token }
func (we *WhereExpression) String() string {
	parts := make([]string, len(we.Names))
	for i := range we.Names {
		parts[i] = we.Names[i] + " = " + we.Values[i].String()
	}
	return we.Body.String() + " where " + strings.Join(parts, ", ")
}

type Parameter struct {
	Name string
	Type typesystem.Type // nil when undeclared
}

// Guard is a base case of a recursive function.
type Guard struct {
	Condition Expression
	Value     Expression
}

// FunctionLiteral is def(params) body or the guarded recursive form
// def name(params) base cond: value ... recursive: body
type FunctionLiteral struct {
	Token      token.Token
	Name       string
	Parameters []*Parameter
	Guards     []*Guard
	Body       Expression
	ReturnType typesystem.Type
	Base       int
}

func (fl *FunctionLiteral) expressionNode()       {}
func (fl *FunctionLiteral) TokenLiteral() string  { return fl.Token.Lexeme }
func (fl *FunctionLiteral) GetToken() token.Token { return fl.Token }
func (fl *FunctionLiteral) String() string {
	params := make([]string, len(fl.Parameters))
	for i, p := range fl.Parameters {
		params[i] = p.Name
		if p.Type != nil {
			params[i] = p.Type.String() + " " + p.Name
		}
	}
	var sb strings.Builder
	sb.WriteString("def ")
	sb.WriteString(fl.Name)
	sb.WriteString("(" + strings.Join(params, ", ") + ") ")
	for _, g := range fl.Guards {
		sb.WriteString("base " + g.Condition.String() + ": " + g.Value.String() + " ")
	}
	if len(fl.Guards) > 0 {
		sb.WriteString("recursive: ")
	}
	sb.WriteString(fl.Body.String())
	return sb.String()
}

// SlotNames lists the names a call of this function binds, in slot order:
// the parameters, then the function's own name when it has one.
func (fl *FunctionLiteral) SlotNames() []string {
	names := make([]string, 0, len(fl.Parameters)+1)
	for _, p := range fl.Parameters {
		names = append(names, p.Name)
	}
	if fl.Name != "" {
		names = append(names, fl.Name)
	}
	return names
}

// SequenceExpression is a ';'-separated list of command expressions.
type SequenceExpression struct {
	Token       token.Token
	Expressions []Expression
}

func (se *SequenceExpression) expressionNode()       {}
func (se *SequenceExpression) TokenLiteral() string  { return se.Token.Lexeme }
func (se *SequenceExpression) GetToken() token.Token { return se.Token }
func (se *SequenceExpression) String() string {
	parts := make([]string, len(se.Expressions))
	for i, e := range se.Expressions {
		parts[i] = e.String()
	}
	return strings.Join(parts, "; ")
}

func joinExprs(exprs []Expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
