package ast

// MapChildren replaces every direct child expression of node with fn(child).
// Leaves are left alone.
func MapChildren(node Expression, fn func(Expression) Expression) {
	switch n := node.(type) {
	case *ListLiteral:
		for i := range n.Elements {
			n.Elements[i] = fn(n.Elements[i])
		}
	case *MapLiteral:
		for i := range n.Keys {
			n.Keys[i] = fn(n.Keys[i])
			n.Values[i] = fn(n.Values[i])
		}
	case *PrefixExpression:
		n.Right = fn(n.Right)
	case *InfixExpression:
		n.Left = fn(n.Left)
		n.Right = fn(n.Right)
	case *DotExpression:
		n.Left = fn(n.Left)
	case *IndexExpression:
		n.Left = fn(n.Left)
		n.Index = fn(n.Index)
	case *CallExpression:
		if _, isName := n.Function.(*Identifier); !isName {
			n.Function = fn(n.Function)
		}
		for i := range n.Arguments {
			n.Arguments[i] = fn(n.Arguments[i])
		}
	case *IfExpression:
		for i := range n.Conditions {
			n.Conditions[i] = fn(n.Conditions[i])
			n.Results[i] = fn(n.Results[i])
		}
		if n.Else != nil {
			n.Else = fn(n.Else)
		}
	case *WhereExpression:
		n.Body = fn(n.Body)
		for i := range n.Values {
			n.Values[i] = fn(n.Values[i])
		}
	case *FunctionLiteral:
		for _, g := range n.Guards {
			g.Condition = fn(g.Condition)
			g.Value = fn(g.Value)
		}
		n.Body = fn(n.Body)
	case *SequenceExpression:
		for i := range n.Expressions {
			n.Expressions[i] = fn(n.Expressions[i])
		}
	}
}

// Inspect calls fn for node and, while fn returns true, for its descendants.
func Inspect(node Expression, fn func(Expression) bool) {
	if node == nil || !fn(node) {
		return
	}
	if ce, ok := node.(*CompiledExpression); ok {
		Inspect(ce.Original, fn)
		return
	}
	MapChildren(node, func(child Expression) Expression {
		Inspect(child, fn)
		return child
	})
}
