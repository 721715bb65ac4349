package evaluator

import (
	"github.com/funvibe/formula/internal/ast"
	"github.com/funvibe/formula/internal/config"
	"github.com/funvibe/formula/internal/utils"
)

func (e *Evaluator) evalCall(node *ast.CallExpression, scope Callable) Object {
	if id, ok := node.Function.(*ast.Identifier); ok && id.Slot == ast.NoSlot && !boundName(scope, id.Value) {
		if b, ok := LookupBuiltin(id.Value); ok {
			return e.callBuiltinNode(b, node, scope)
		}
	}

	callee := e.Eval(node.Function, scope)
	if isError(callee) {
		return callee
	}
	switch fn := callee.(type) {
	case *Function:
		return e.callFunction(node, fn, scope)
	case *Builtin:
		return e.callBuiltinNode(fn, node, scope)
	}
	return newError("%s is not a function", node.Function.String())
}

func (e *Evaluator) callBuiltinNode(b *Builtin, node *ast.CallExpression, scope Callable) Object {
	args := make([]Object, len(node.Arguments))
	for i, a := range node.Arguments {
		if b.IsLazy(i) {
			args[i] = &LazyValue{Arg: &ast.LazyArgument{Expr: a, Base: node.ScopeBase}}
			continue
		}
		v := e.Eval(a, scope)
		if isError(v) {
			return v
		}
		args[i] = v
	}
	return e.CallBuiltin(b, node, scope, args)
}

// CallBuiltin invokes b. Lazy positions of args hold *LazyValue.
func (e *Evaluator) CallBuiltin(b *Builtin, call *ast.CallExpression, scope Callable, args []Object) Object {
	if len(args) < b.MinArgs || (b.MaxArgs >= 0 && len(args) > b.MaxArgs) {
		return newError("%s: wrong number of arguments: got %d", b.Name, len(args))
	}
	ctx := &CallContext{
		Eval:  e,
		Scope: scope,
		Call:  call,
		Args:  make([]Object, len(args)),
		Lazy:  make([]*ast.LazyArgument, len(args)),
	}
	for i, a := range args {
		if lv, ok := a.(*LazyValue); ok {
			ctx.Lazy[i] = lv.Arg
			continue
		}
		ctx.Args[i] = a
	}
	return b.Fn(ctx)
}

// callFunction runs a user function from a call site. A guarded
// function recursing through the call site it is already running from
// is unrolled into a loop instead of nesting Go calls.
func (e *Evaluator) callFunction(call *ast.CallExpression, fn *Function, scope Callable) Object {
	if f, ok := e.fed[call]; ok && f.depth == e.depth {
		delete(e.fed, call)
		return f.value
	}

	args, errObj := e.bindArgs(call, fn, scope)
	if errObj != nil {
		return errObj
	}

	lit := fn.Literal
	if !e.calculating && len(lit.Guards) > 0 {
		if top, ok := e.recursion.Top(); ok && top == call && e.isDirect(lit, call) {
			if res, done := e.trampoline(call, fn, args); done {
				return res
			}
		}
	}

	if e.depth >= config.MaxRecursionDepth {
		return newError("maximum recursion depth %d exceeded calling %s", config.MaxRecursionDepth, call.Function.String())
	}
	e.depth++
	defer func() { e.depth-- }()
	defer e.recursion.Push(call)()

	return e.runBody(fn, args)
}

// CallFunction calls fn with already evaluated arguments.
func (e *Evaluator) CallFunction(fn *Function, args ...Object) Object {
	lit := fn.Literal
	if len(args) != len(lit.Parameters) {
		return newError("function %s expects %d arguments, got %d", lit.Name, len(lit.Parameters), len(args))
	}
	values := make([]Object, len(lit.SlotNames()))
	for i, a := range args {
		if p := lit.Parameters[i]; p.Type != nil && !Matches(p.Type, a) {
			return newError("function argument %d expected type %s but found %s", i+1, p.Type, TypeName(a))
		}
		values[i] = a
	}
	if lit.Name != "" {
		values[len(values)-1] = fn
	}
	if e.depth >= config.MaxRecursionDepth {
		return newError("maximum recursion depth %d exceeded calling %s", config.MaxRecursionDepth, lit.Name)
	}
	e.depth++
	defer func() { e.depth-- }()
	return e.runBody(fn, NewSlotScope(fn.Env, lit.Base, lit.SlotNames(), values))
}

func (e *Evaluator) bindArgs(call *ast.CallExpression, fn *Function, scope Callable) (*SlotScope, Object) {
	lit := fn.Literal
	if len(call.Arguments) != len(lit.Parameters) {
		return nil, newError("function %s expects %d arguments, got %d", lit.Name, len(lit.Parameters), len(call.Arguments))
	}
	names := lit.SlotNames()
	values := make([]Object, len(names))
	for i, a := range call.Arguments {
		v := e.Eval(a, scope)
		if isError(v) {
			return nil, v
		}
		if p := lit.Parameters[i]; p.Type != nil && !Matches(p.Type, v) {
			return nil, newError("function argument %d expected type %s but found %s", i+1, p.Type, TypeName(v))
		}
		values[i] = v
	}
	if lit.Name != "" {
		values[len(values)-1] = fn
	}
	return NewSlotScope(fn.Env, lit.Base, names, values), nil
}

// matchGuard returns the index of the first base case whose condition
// holds, or -1.
func (e *Evaluator) matchGuard(lit *ast.FunctionLiteral, args Callable) (int, Object) {
	for i, g := range lit.Guards {
		c := e.Eval(g.Condition, args)
		if isError(c) {
			return -1, c
		}
		if Truthy(c) {
			return i, nil
		}
	}
	return -1, nil
}

func (e *Evaluator) runBody(fn *Function, args *SlotScope) Object {
	lit := fn.Literal
	g, errObj := e.matchGuard(lit, args)
	if errObj != nil {
		return errObj
	}
	var res Object
	if g >= 0 {
		res = e.Eval(lit.Guards[g].Value, args)
	} else {
		res = e.Eval(lit.Body, args)
	}
	return e.checkReturn(lit, res)
}

func (e *Evaluator) checkReturn(lit *ast.FunctionLiteral, res Object) Object {
	if lit.ReturnType != nil && !isError(res) && !Matches(lit.ReturnType, res) {
		return newError("function %s returned %s, declared %s", lit.Name, TypeName(res), lit.ReturnType)
	}
	return res
}

// fedResult is a value handed to a call site by the trampoline. Only an
// evaluation at the same call depth takes it; a nested call of the same
// site computes its own value.
type fedResult struct {
	value Object
	depth int
}

// trampoline unrolls the recursion of call. It first walks down the chain
// of invocations, evaluating the call's arguments in each previous
// invocation's scope until a base case matches, then evaluates the body
// from the bottom up, feeding every result to the call site of the
// invocation above. Chains of two or fewer invocations are left to the
// ordinary path and done is false.
func (e *Evaluator) trampoline(call *ast.CallExpression, fn *Function, first *SlotScope) (res Object, done bool) {
	defer utils.Swap(&e.calculating, true)()
	lit := fn.Literal

	invocations := []*SlotScope{first}
	for {
		g, errObj := e.matchGuard(lit, invocations[len(invocations)-1])
		if errObj != nil {
			return errObj, true
		}
		if g >= 0 {
			break
		}
		if len(invocations) >= config.MaxUnrolledCalls {
			return newError("recursion of %s did not reach a base case after %d calls", lit.Name, len(invocations)), true
		}
		next, errObj := e.bindArgs(call, fn, e.bodyScope(lit, invocations[len(invocations)-1]))
		if errObj != nil {
			return errObj, true
		}
		invocations = append(invocations, next)
	}
	invocations = invocations[:len(invocations)-1]
	if len(invocations) <= 2 {
		return nil, false
	}

	defer delete(e.fed, call)
	var result Object
	for i := len(invocations) - 1; i >= 0; i-- {
		result = e.Eval(lit.Body, invocations[i])
		if isError(result) {
			return result, true
		}
		e.fed[call] = fedResult{value: result, depth: e.depth}
	}
	return e.checkReturn(lit, result), true
}

// bodyScope is the scope the body's own call sites see for a given
// invocation.
func (e *Evaluator) bodyScope(lit *ast.FunctionLiteral, args *SlotScope) Callable {
	if where, ok := lit.Body.(*ast.WhereExpression); ok {
		return newWhereScope(e, args, where)
	}
	return args
}

// isDirect reports whether call is reached from lit's body without
// crossing a nested function, a nested where clause or a lazy builtin
// argument, so its arguments can be evaluated in the body scope.
func (e *Evaluator) isDirect(lit *ast.FunctionLiteral, call *ast.CallExpression) bool {
	if d, ok := e.direct[call]; ok {
		return d
	}
	found := false
	var visit func(n ast.Expression) bool
	visit = func(n ast.Expression) bool {
		if found {
			return false
		}
		switch x := n.(type) {
		case *ast.CallExpression:
			if x == call {
				found = true
				return false
			}
			if name, ok := x.CalleeName(); ok {
				if b, ok := LookupBuiltin(name); ok && len(b.Lazy) > 0 {
					for i, a := range x.Arguments {
						if !b.IsLazy(i) {
							ast.Inspect(a, visit)
						}
					}
					return false
				}
			}
		case *ast.FunctionLiteral:
			return false
		case *ast.WhereExpression:
			return x == lit.Body
		}
		return true
	}
	ast.Inspect(lit.Body, visit)
	e.direct[call] = found
	return found
}
