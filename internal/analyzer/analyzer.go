// Package analyzer infers the static types of formula expressions and
// resolves names to slots of the definition a formula runs against.
package analyzer

import (
	"fmt"
	"sort"

	"github.com/funvibe/formula/internal/ast"
	"github.com/funvibe/formula/internal/definition"
	"github.com/funvibe/formula/internal/diagnostics"
	"github.com/funvibe/formula/internal/typesystem"
)

// Analyzer walks one formula. Slot indices and scope bases are written
// into the AST as a side effect.
type Analyzer struct {
	errorSet map[string]*diagnostics.DiagnosticError
	TypeMap  map[ast.Expression]typesystem.Type
	File     string
}

func New() *Analyzer {
	return &Analyzer{
		errorSet: make(map[string]*diagnostics.DiagnosticError),
		TypeMap:  make(map[ast.Expression]typesystem.Type),
	}
}

// Analyze resolves expr against def and returns its type.
func (a *Analyzer) Analyze(expr ast.Expression, def definition.Definition) typesystem.Type {
	if def == nil {
		def = definition.NewSimple(nil)
	}
	return a.infer(expr, def)
}

// QueryType analyzes expr against def and returns its type and any
// diagnostics.
func QueryType(expr ast.Expression, def definition.Definition) (typesystem.Type, []*diagnostics.DiagnosticError) {
	a := New()
	t := a.Analyze(expr, def)
	return t, a.Errors()
}

// addError records err, deduplicating by position and code.
func (a *Analyzer) addError(err *diagnostics.DiagnosticError) {
	if err.File == "" && a.File != "" {
		err.File = a.File
	}
	key := fmt.Sprintf("%d:%d:%s", err.Token.Line, err.Token.Column, err.Code)
	a.errorSet[key] = err
}

func (a *Analyzer) errorf(code diagnostics.ErrorCode, node ast.Expression, format string, args ...interface{}) {
	a.addError(diagnostics.NewError(code, node.GetToken(), fmt.Sprintf(format, args...)))
}

// Errors returns the unique errors sorted by position.
func (a *Analyzer) Errors() []*diagnostics.DiagnosticError {
	result := make([]*diagnostics.DiagnosticError, 0, len(a.errorSet))
	for _, err := range a.errorSet {
		result = append(result, err)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Token.Line != result[j].Token.Line {
			return result[i].Token.Line < result[j].Token.Line
		}
		return result[i].Token.Column < result[j].Token.Column
	})
	return result
}

func (a *Analyzer) infer(node ast.Expression, def definition.Definition) typesystem.Type {
	t := a.inferNode(node, def)
	if t == nil {
		t = typesystem.Any
	}
	a.TypeMap[node] = t
	return t
}

func (a *Analyzer) inferNode(node ast.Expression, def definition.Definition) typesystem.Type {
	switch n := node.(type) {
	case *ast.IntegerLiteral:
		return typesystem.Int
	case *ast.DecimalLiteral:
		return typesystem.Decimal
	case *ast.StringLiteral:
		return typesystem.String
	case *ast.BooleanLiteral:
		return typesystem.Bool
	case *ast.NullLiteral:
		return typesystem.Null
	case *ast.Identifier:
		return a.inferIdentifier(n, def)
	case *ast.ListLiteral:
		elems := make([]typesystem.Type, len(n.Elements))
		for i, el := range n.Elements {
			elems[i] = a.infer(el, def)
		}
		if len(elems) == 0 {
			return typesystem.List
		}
		return typesystem.TList{Elem: typesystem.Union(elems...)}
	case *ast.MapLiteral:
		if len(n.Keys) == 0 {
			return typesystem.Map
		}
		keys := make([]typesystem.Type, len(n.Keys))
		values := make([]typesystem.Type, len(n.Values))
		for i := range n.Keys {
			keys[i] = a.infer(n.Keys[i], def)
			values[i] = a.infer(n.Values[i], def)
		}
		return typesystem.TMap{Key: typesystem.Union(keys...), Value: typesystem.Union(values...)}
	case *ast.PrefixExpression:
		rt := a.infer(n.Right, def)
		if n.Operator == "not" {
			return typesystem.Bool
		}
		return rt
	case *ast.InfixExpression:
		return a.inferInfix(n, def)
	case *ast.DotExpression:
		return a.inferDot(n, def)
	case *ast.IndexExpression:
		lt := a.infer(n.Left, def)
		a.infer(n.Index, def)
		switch t := lt.(type) {
		case typesystem.TList:
			return t.Elem
		case typesystem.TMap:
			return typesystem.Union(t.Value, typesystem.Null)
		}
		if typesystem.Equal(lt, typesystem.String) {
			return typesystem.String
		}
		return typesystem.Any
	case *ast.IfExpression:
		return a.inferIf(n, def)
	case *ast.WhereExpression:
		return a.inferWhere(n, def)
	case *ast.FunctionLiteral:
		return a.inferFunction(n, def)
	case *ast.CallExpression:
		return a.inferCall(n, def)
	case *ast.SequenceExpression:
		for _, e := range n.Expressions {
			a.infer(e, def)
		}
		return typesystem.Commands
	case *ast.CompiledExpression:
		return n.ReturnType
	}
	return typesystem.Any
}
