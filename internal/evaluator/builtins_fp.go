package evaluator

import (
	"sort"

	"github.com/funvibe/formula/internal/asserts"
	"github.com/funvibe/formula/internal/typesystem"
)

func init() {
	iter := map[int]ScopeKind{1: ScopeIteration}
	cmp := map[int]ScopeKind{1: ScopeCompare}

	Register(&Builtin{Name: "map", MinArgs: 2, MaxArgs: 2, Lazy: iter, ScopeTypes: iterationTypes, Fn: builtinMap,
		Return: func(args []typesystem.Type) typesystem.Type {
			if m, ok := argType(args, 0).(typesystem.TMap); ok {
				return typesystem.TMap{Key: m.Key, Value: argType(args, 1)}
			}
			return typesystem.TList{Elem: argType(args, 1)}
		}})
	Register(&Builtin{Name: "filter", MinArgs: 2, MaxArgs: 2, Lazy: iter, ScopeTypes: iterationTypes, Fn: builtinFilter,
		Return: func(args []typesystem.Type) typesystem.Type { return argType(args, 0) }})
	Register(&Builtin{Name: "find", MinArgs: 2, MaxArgs: 2, Lazy: iter, ScopeTypes: iterationTypes, Fn: builtinFind,
		Return: func(args []typesystem.Type) typesystem.Type {
			return typesystem.Union(elemType(argType(args, 0)), typesystem.Null)
		}})
	Register(&Builtin{Name: "find_index", MinArgs: 2, MaxArgs: 2, Lazy: iter, ScopeTypes: iterationTypes, Fn: builtinFindIndex,
		Return: returns(typesystem.Int)})
	Register(&Builtin{Name: "count", MinArgs: 2, MaxArgs: 2, Lazy: iter, ScopeTypes: iterationTypes, Fn: builtinCount,
		Return: returns(typesystem.Int)})
	Register(&Builtin{Name: "any", MinArgs: 1, MaxArgs: 2, Lazy: iter, ScopeTypes: iterationTypes, Fn: builtinAny,
		Return: returns(typesystem.Bool)})
	Register(&Builtin{Name: "all", MinArgs: 1, MaxArgs: 2, Lazy: iter, ScopeTypes: iterationTypes, Fn: builtinAll,
		Return: returns(typesystem.Bool)})
	Register(&Builtin{Name: "choose", MinArgs: 1, MaxArgs: 2, Lazy: iter, ScopeTypes: iterationTypes, Fn: builtinChoose,
		Return: func(args []typesystem.Type) typesystem.Type {
			return typesystem.Union(elemType(argType(args, 0)), typesystem.Null)
		}})

	fold := &Builtin{Name: "fold", MinArgs: 2, MaxArgs: 3, Lazy: cmp, Fn: builtinFold,
		ScopeTypes: func(i int, args []typesystem.Type) []typesystem.Type {
			e := elemType(argType(args, 0))
			acc := e
			if len(args) > 2 {
				acc = typesystem.Union(argType(args, 2), e)
			}
			return []typesystem.Type{acc, e}
		},
		Return: func(args []typesystem.Type) typesystem.Type {
			if len(args) > 2 {
				return typesystem.Union(argType(args, 1), argType(args, 2))
			}
			return typesystem.Union(argType(args, 1), elemType(argType(args, 0)), typesystem.Null)
		}}
	Register(fold)
	reduce := *fold
	reduce.Name = "reduce"
	Register(&reduce)

	Register(&Builtin{Name: "sort", MinArgs: 1, MaxArgs: 2, Lazy: cmp, ScopeTypes: compareTypes, Fn: builtinSort,
		Return: func(args []typesystem.Type) typesystem.Type { return argType(args, 0) }})
	Register(&Builtin{Name: "zip", MinArgs: 3, MaxArgs: 3, Lazy: map[int]ScopeKind{2: ScopeCompare}, Fn: builtinZip,
		ScopeTypes: func(i int, args []typesystem.Type) []typesystem.Type {
			return []typesystem.Type{elemType(argType(args, 0)), elemType(argType(args, 1))}
		},
		Return: func(args []typesystem.Type) typesystem.Type {
			if m, ok := argType(args, 0).(typesystem.TMap); ok {
				return typesystem.TMap{Key: m.Key, Value: typesystem.Union(m.Value, argType(args, 2))}
			}
			return typesystem.TList{Elem: argType(args, 2)}
		}})
	Register(&Builtin{Name: "sum", MinArgs: 1, MaxArgs: 2, Fn: builtinSum,
		Return: func(args []typesystem.Type) typesystem.Type {
			e := elemType(argType(args, 0))
			if typesystem.Equal(e, typesystem.Int) {
				return typesystem.Int
			}
			return typesystem.Union(typesystem.Int, typesystem.Decimal)
		}})
	Register(&Builtin{Name: "handle_errors", MinArgs: 2, MaxArgs: 2,
		Lazy: map[int]ScopeKind{0: ScopeNone, 1: ScopeError}, Fn: builtinHandleErrors,
		ScopeTypes: func(i int, args []typesystem.Type) []typesystem.Type {
			return []typesystem.Type{typesystem.String}
		},
		Return: func(args []typesystem.Type) typesystem.Type {
			return typesystem.Union(argType(args, 0), argType(args, 1))
		}})
}

// each calls fn for every element of a list or map, stopping early when
// fn returns a non-nil object.
func (c *CallContext) each(lazy int, coll Object, fn func(s *SlotScope, value Object) Object) Object {
	pool := c.pool(lazy, ScopeIteration)
	switch col := coll.(type) {
	case *List:
		for i, el := range col.Elements {
			if res := fn(pool.iteration(el, i, nil), el); res != nil {
				return res
			}
		}
	case *Map:
		for i, k := range col.keys {
			if res := fn(pool.iteration(col.values[i], i, k), col.values[i]); res != nil {
				return res
			}
		}
	case *Nil:
	default:
		return c.Errorf("expected list or map, got %s", TypeName(coll))
	}
	return nil
}

func builtinMap(c *CallContext) Object {
	coll := c.Arg(0)
	if m, ok := coll.(*Map); ok {
		out := NewMap()
		i := 0
		if errObj := c.each(1, m, func(s *SlotScope, _ Object) Object {
			v := c.EvalLazy(1, s)
			if isError(v) {
				return v
			}
			out.Set(m.keys[i], v)
			i++
			return nil
		}); errObj != nil {
			return errObj
		}
		return out
	}
	var out []Object
	if errObj := c.each(1, coll, func(s *SlotScope, _ Object) Object {
		v := c.EvalLazy(1, s)
		if isError(v) {
			return v
		}
		out = append(out, v)
		return nil
	}); errObj != nil {
		return errObj
	}
	return &List{Elements: out}
}

func builtinFilter(c *CallContext) Object {
	coll := c.Arg(0)
	if m, ok := coll.(*Map); ok {
		out := NewMap()
		i := 0
		if errObj := c.each(1, m, func(s *SlotScope, v Object) Object {
			keep := c.EvalLazy(1, s)
			if isError(keep) {
				return keep
			}
			if Truthy(keep) {
				out.Set(m.keys[i], v)
			}
			i++
			return nil
		}); errObj != nil {
			return errObj
		}
		return out
	}
	out := []Object{}
	if errObj := c.each(1, coll, func(s *SlotScope, v Object) Object {
		keep := c.EvalLazy(1, s)
		if isError(keep) {
			return keep
		}
		if Truthy(keep) {
			out = append(out, v)
		}
		return nil
	}); errObj != nil {
		return errObj
	}
	return &List{Elements: out}
}

func (c *CallContext) findFirst(coll Object) (Object, int, Object) {
	i := 0
	var hit Object
	res := c.each(1, coll, func(s *SlotScope, v Object) Object {
		match := c.EvalLazy(1, s)
		if isError(match) {
			return match
		}
		if Truthy(match) {
			hit = v
			return TRUE
		}
		i++
		return nil
	})
	if isError(res) {
		return nil, -1, res
	}
	if hit == nil {
		return nil, -1, nil
	}
	return hit, i, nil
}

func builtinFind(c *CallContext) Object {
	v, _, errObj := c.findFirst(c.Arg(0))
	if errObj != nil {
		return errObj
	}
	if v == nil {
		return NULL
	}
	return v
}

func builtinFindIndex(c *CallContext) Object {
	_, i, errObj := c.findFirst(c.Arg(0))
	if errObj != nil {
		return errObj
	}
	return NewInteger(int64(i))
}

func builtinCount(c *CallContext) Object {
	n := 0
	if errObj := c.each(1, c.Arg(0), func(s *SlotScope, _ Object) Object {
		match := c.EvalLazy(1, s)
		if isError(match) {
			return match
		}
		if Truthy(match) {
			n++
		}
		return nil
	}); errObj != nil {
		return errObj
	}
	return NewInteger(int64(n))
}

func (c *CallContext) predicate(s *SlotScope, v Object) Object {
	if c.Len() < 2 {
		return v
	}
	return c.EvalLazy(1, s)
}

func builtinAny(c *CallContext) Object {
	res := c.each(1, c.Arg(0), func(s *SlotScope, v Object) Object {
		p := c.predicate(s, v)
		if isError(p) || Truthy(p) {
			return p
		}
		return nil
	})
	if res == nil {
		return FALSE
	}
	if isError(res) {
		return res
	}
	return TRUE
}

func builtinAll(c *CallContext) Object {
	res := c.each(1, c.Arg(0), func(s *SlotScope, v Object) Object {
		p := c.predicate(s, v)
		if isError(p) || !Truthy(p) {
			return p
		}
		return nil
	})
	if res == nil {
		return TRUE
	}
	if isError(res) {
		return res
	}
	return FALSE
}

// choose returns the element for which the expression is greatest.
func builtinChoose(c *CallContext) Object {
	var best, bestScore Object
	if errObj := c.each(1, c.Arg(0), func(s *SlotScope, v Object) Object {
		score := c.predicate(s, v)
		if isError(score) {
			return score
		}
		if best == nil {
			best, bestScore = v, score
			return nil
		}
		cmp, ok := Compare(score, bestScore)
		if !ok {
			return c.Errorf("cannot compare %s and %s", TypeName(score), TypeName(bestScore))
		}
		if cmp > 0 {
			best, bestScore = v, score
		}
		return nil
	}); errObj != nil {
		return errObj
	}
	if best == nil {
		return NULL
	}
	return best
}

func listArg(c *CallContext, i int) (*List, Object) {
	switch v := c.Arg(i).(type) {
	case *List:
		return v, nil
	case *Map:
		return &List{Elements: v.Values()}, nil
	case *Nil:
		return &List{}, nil
	}
	return nil, c.Errorf("argument %d must be a list, got %s", i+1, TypeName(c.Arg(i)))
}

// fold binds the accumulator to a and each element to b.
func builtinFold(c *CallContext) Object {
	list, errObj := listArg(c, 0)
	if errObj != nil {
		return errObj
	}
	elems := list.Elements
	var acc Object
	if c.HasArg(2) {
		acc = c.Arg(2)
	} else {
		if len(elems) == 0 {
			return NULL
		}
		acc, elems = elems[0], elems[1:]
	}
	pool := c.pool(1, ScopeCompare)
	for _, el := range elems {
		acc = c.EvalLazy(1, pool.next(acc, el))
		if isError(acc) {
			return acc
		}
	}
	return acc
}

// sort orders a list ascending, or by a comparator that holds when a
// belongs before b.
func builtinSort(c *CallContext) Object {
	list, errObj := listArg(c, 0)
	if errObj != nil {
		return errObj
	}
	elems := append([]Object(nil), list.Elements...)
	var failure Object
	if c.Len() < 2 {
		sort.SliceStable(elems, func(i, j int) bool {
			cmp, ok := Compare(elems[i], elems[j])
			if !ok && failure == nil {
				failure = c.Errorf("cannot compare %s and %s", TypeName(elems[i]), TypeName(elems[j]))
			}
			return cmp < 0
		})
	} else {
		pool := c.pool(1, ScopeCompare)
		sort.SliceStable(elems, func(i, j int) bool {
			if failure != nil {
				return false
			}
			res := c.EvalLazy(1, pool.next(elems[i], elems[j]))
			if isError(res) {
				failure = res
				return false
			}
			return Truthy(res)
		})
	}
	if failure != nil {
		return failure
	}
	return &List{Elements: elems}
}

// zip combines two lists pairwise. Two maps are merged, combining the
// values of shared keys.
func builtinZip(c *CallContext) Object {
	pool := c.pool(2, ScopeCompare)
	if m1, ok := c.Arg(0).(*Map); ok {
		m2, ok := c.Arg(1).(*Map)
		if !ok {
			return c.Errorf("cannot zip map with %s", TypeName(c.Arg(1)))
		}
		out := m1.Copy()
		for i, k := range m2.keys {
			if prev, ok := m1.Get(k); ok {
				v := c.EvalLazy(2, pool.next(prev, m2.values[i]))
				if isError(v) {
					return v
				}
				out.Set(k, v)
				continue
			}
			out.Set(k, m2.values[i])
		}
		return out
	}
	l1, errObj := listArg(c, 0)
	if errObj != nil {
		return errObj
	}
	l2, errObj := listArg(c, 1)
	if errObj != nil {
		return errObj
	}
	n := len(l1.Elements)
	if len(l2.Elements) < n {
		n = len(l2.Elements)
	}
	out := make([]Object, 0, n)
	for i := 0; i < n; i++ {
		v := c.EvalLazy(2, pool.next(l1.Elements[i], l2.Elements[i]))
		if isError(v) {
			return v
		}
		out = append(out, v)
	}
	return &List{Elements: out}
}

func builtinSum(c *CallContext) Object {
	list, errObj := listArg(c, 0)
	if errObj != nil {
		return errObj
	}
	var acc Object = NewInteger(0)
	if c.HasArg(1) {
		acc = c.Arg(1)
	}
	for _, el := range list.Elements {
		acc = BinaryOp("+", acc, el)
		if isError(acc) {
			return acc
		}
	}
	return acc
}

// handle_errors evaluates its first argument and, if that fails, the
// second with the error message bound to error.
func builtinHandleErrors(c *CallContext) Object {
	var res Object
	err := asserts.Recover(func() {
		res = c.EvalLazy(0, c.Scope)
	})
	msg := ""
	switch {
	case err != nil:
		msg = err.Error()
	case isError(res):
		msg = res.(*Error).Message
	default:
		return res
	}
	pool := newScopePool(c.Scope, c.Lazy[1].Base, ErrorNames)
	return c.EvalLazy(1, pool.next(NewString(msg)))
}
