package evaluator

import (
	"io"
	"os"

	"github.com/funvibe/formula/internal/ast"
	"github.com/funvibe/formula/internal/utils"
)

// Program is an executable produced by the bytecode compiler. A
// CompiledExpression node carries one and the evaluator runs it instead
// of walking the original subtree.
type Program interface {
	Run(e *Evaluator, scope Callable) Object
}

// Evaluator walks formula ASTs. All state is per logical thread of
// control; the process-wide instance is returned by Shared.
type Evaluator struct {
	// recursion holds the call sites whose function bodies are running.
	recursion utils.Stack[*ast.CallExpression]

	// calculating is set while a trampoline unrolls a recursive call.
	calculating bool

	// fed holds the result a trampoline hands to the next evaluation of
	// a call site.
	fed map[*ast.CallExpression]fedResult

	depth  int
	direct map[*ast.CallExpression]bool

	// Out receives debug() output.
	Out io.Writer
}

func New() *Evaluator {
	return &Evaluator{
		fed:    make(map[*ast.CallExpression]fedResult),
		direct: make(map[*ast.CallExpression]bool),
		Out:    os.Stderr,
	}
}

var shared = New()

// Shared returns the process-wide evaluator.
func Shared() *Evaluator {
	return shared
}

func (e *Evaluator) Eval(node ast.Expression, scope Callable) Object {
	switch node := node.(type) {
	case *ast.IntegerLiteral:
		return NewInteger(node.Value)
	case *ast.DecimalLiteral:
		return NewFloat(node.Value)
	case *ast.StringLiteral:
		return NewString(node.Value)
	case *ast.BooleanLiteral:
		return nativeBoolToBooleanObject(node.Value)
	case *ast.NullLiteral:
		return NULL
	case *ast.Identifier:
		return locate(e.evalIdentifier(node, scope), node.Token)
	case *ast.ListLiteral:
		elems := e.evalExpressions(node.Elements, scope)
		if len(elems) == 1 && isError(elems[0]) {
			return elems[0]
		}
		return &List{Elements: elems}
	case *ast.MapLiteral:
		return e.evalMapLiteral(node, scope)
	case *ast.PrefixExpression:
		right := e.Eval(node.Right, scope)
		return locate(UnaryOp(node.Operator, right), node.Token)
	case *ast.InfixExpression:
		return e.evalInfix(node, scope)
	case *ast.DotExpression:
		return e.evalDot(node, scope)
	case *ast.IndexExpression:
		left := e.Eval(node.Left, scope)
		if isError(left) {
			return left
		}
		return locate(Index(left, e.Eval(node.Index, scope)), node.Token)
	case *ast.IfExpression:
		return e.evalIf(node, scope)
	case *ast.WhereExpression:
		return e.Eval(node.Body, newWhereScope(e, scope, node))
	case *ast.FunctionLiteral:
		retain(scope)
		return &Function{Literal: node, Env: scope}
	case *ast.CallExpression:
		return locate(e.evalCall(node, scope), node.Token)
	case *ast.SequenceExpression:
		elems := e.evalExpressions(node.Expressions, scope)
		if len(elems) == 1 && isError(elems[0]) {
			return elems[0]
		}
		return &List{Elements: elems}
	case *ast.CompiledExpression:
		prog, ok := node.Program.(Program)
		if !ok {
			return e.Eval(node.Original, scope)
		}
		return locate(prog.Run(e, scope), node.Token)
	}
	return newError("unknown node type: %T", node)
}

// evalExpressions returns the values of exps, or a single error.
func (e *Evaluator) evalExpressions(exps []ast.Expression, scope Callable) []Object {
	result := make([]Object, 0, len(exps))
	for _, exp := range exps {
		v := e.Eval(exp, scope)
		if isError(v) {
			return []Object{v}
		}
		result = append(result, v)
	}
	return result
}

func (e *Evaluator) evalIdentifier(node *ast.Identifier, scope Callable) Object {
	if node.Slot != ast.NoSlot {
		return scope.QueryValueBySlot(node.Slot)
	}
	return LookupName(scope, node.Value)
}

// LookupName resolves a name without a slot. Names bound in scope
// shadow builtins of the same name.
func LookupName(scope Callable, name string) Object {
	if !boundName(scope, name) {
		if b, ok := LookupBuiltin(name); ok {
			return b
		}
	}
	v := scope.QueryValue(name)
	if v == nil {
		return NULL
	}
	return v
}

// boundName reports whether name resolves to a local binding or a
// property of scope's definition.
func boundName(scope Callable, name string) bool {
	for scope != nil {
		s, ok := scope.(*SlotScope)
		if !ok {
			def := scope.Definition()
			return def != nil && def.Slot(name) >= 0
		}
		if s.indexOf(name) >= 0 {
			return true
		}
		if s.parent == nil {
			return false
		}
		scope = s.parent
	}
	return false
}

func (e *Evaluator) evalMapLiteral(node *ast.MapLiteral, scope Callable) Object {
	m := NewMap()
	for i := range node.Keys {
		k := e.Eval(node.Keys[i], scope)
		if isError(k) {
			return k
		}
		v := e.Eval(node.Values[i], scope)
		if isError(v) {
			return v
		}
		m.Set(k, v)
	}
	return m
}

func (e *Evaluator) evalInfix(node *ast.InfixExpression, scope Callable) Object {
	left := e.Eval(node.Left, scope)
	if isError(left) {
		return left
	}
	switch node.Operator {
	case "and":
		if !Truthy(left) {
			return left
		}
		return e.Eval(node.Right, scope)
	case "or":
		if Truthy(left) {
			return left
		}
		return e.Eval(node.Right, scope)
	}
	right := e.Eval(node.Right, scope)
	return locate(BinaryOp(node.Operator, left, right), node.Token)
}

// Member reads name (or slot, when known) from obj.
func Member(obj Object, name string, slot int) Object {
	switch o := obj.(type) {
	case *Error:
		return o
	case Callable:
		if slot != ast.NoSlot {
			return o.QueryValueBySlot(slot)
		}
		return o.QueryValue(name)
	case *Map:
		if v, ok := o.GetString(name); ok {
			return v
		}
		return NULL
	case *Nil:
		return newError("cannot read %s of null", name)
	}
	return newError("type %s has no member %s", obj.Type(), name)
}

func (e *Evaluator) evalDot(node *ast.DotExpression, scope Callable) Object {
	left := e.Eval(node.Left, scope)
	return locate(Member(left, node.Name, node.Slot), node.Token)
}

func (e *Evaluator) evalIf(node *ast.IfExpression, scope Callable) Object {
	for i, cond := range node.Conditions {
		c := e.Eval(cond, scope)
		if isError(c) {
			return c
		}
		if Truthy(c) {
			return e.Eval(node.Results[i], scope)
		}
	}
	if node.Else == nil {
		return NULL
	}
	return e.Eval(node.Else, scope)
}
