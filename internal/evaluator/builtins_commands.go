package evaluator

import (
	"github.com/funvibe/formula/internal/asserts"
	"github.com/funvibe/formula/internal/ast"
	"github.com/funvibe/formula/internal/typesystem"
)

func init() {
	target := map[int]ScopeKind{0: ScopeNone}
	Register(&Builtin{Name: "set", MinArgs: 2, MaxArgs: 2, Lazy: target, Return: returns(typesystem.Commands),
		Fn: func(c *CallContext) Object { return assignCommand(c, "set", false) }})
	Register(&Builtin{Name: "add", MinArgs: 2, MaxArgs: 2, Lazy: target, Return: returns(typesystem.Commands),
		Fn: func(c *CallContext) Object { return assignCommand(c, "add", true) }})
}

// assignCommand builds the command for set and add. A bare name is
// written on whatever callable executes the command; a member or index
// target is resolved now and written when the command runs.
func assignCommand(c *CallContext, name string, accumulate bool) Object {
	value := c.Arg(1)
	combine := func(cur Object) Object {
		if !accumulate {
			return value
		}
		res := BinaryOp("+", cur, value)
		if err, ok := res.(*Error); ok {
			asserts.Validation(c.Call.String(), "%s", err.Message)
		}
		return res
	}

	switch t := unwrapCompiled(c.Lazy[0].Expr).(type) {
	case *ast.Identifier:
		key := t.Value
		return &Command{Name: name, Execute: func(receiver Callable) {
			receiver.MutateValue(key, combine(receiver.QueryValue(key)))
		}}
	case *ast.DotExpression:
		obj := c.Eval.Eval(t.Left, c.Scope)
		if isError(obj) {
			return obj
		}
		key, slot := t.Name, t.Slot
		switch o := obj.(type) {
		case Callable:
			return &Command{Name: name, Execute: func(Callable) {
				if slot != ast.NoSlot {
					o.MutateValueBySlot(slot, combine(o.QueryValueBySlot(slot)))
					return
				}
				o.MutateValue(key, combine(o.QueryValue(key)))
			}}
		case *Map:
			k := NewString(key)
			return &Command{Name: name, Execute: func(Callable) {
				cur, _ := o.Get(k)
				if cur == nil {
					cur = NULL
				}
				o.Set(k, combine(cur))
			}}
		}
		return c.Errorf("cannot assign member %s of %s", key, TypeName(obj))
	case *ast.IndexExpression:
		obj := c.Eval.Eval(t.Left, c.Scope)
		if isError(obj) {
			return obj
		}
		idx := c.Eval.Eval(t.Index, c.Scope)
		if isError(idx) {
			return idx
		}
		switch o := obj.(type) {
		case *Map:
			return &Command{Name: name, Execute: func(Callable) {
				cur, _ := o.Get(idx)
				if cur == nil {
					cur = NULL
				}
				o.Set(idx, combine(cur))
			}}
		case *List:
			i, ok := idx.(*Integer)
			if !ok || i.Value < 0 || i.Value >= int64(len(o.Elements)) {
				return c.Errorf("invalid list index %s", idx.Inspect())
			}
			return &Command{Name: name, Execute: func(Callable) {
				o.Elements[i.Value] = combine(o.Elements[i.Value])
			}}
		}
		return c.Errorf("cannot assign into %s", TypeName(obj))
	}
	return c.Errorf("invalid assignment target %s", c.Lazy[0].Expr.String())
}

func unwrapCompiled(e ast.Expression) ast.Expression {
	if ce, ok := e.(*ast.CompiledExpression); ok {
		return ce.Original
	}
	return e
}
