package analyzer

import (
	"github.com/funvibe/formula/internal/ast"
	"github.com/funvibe/formula/internal/definition"
	"github.com/funvibe/formula/internal/diagnostics"
	"github.com/funvibe/formula/internal/evaluator"
	"github.com/funvibe/formula/internal/typesystem"
)

func (a *Analyzer) inferIdentifier(n *ast.Identifier, def definition.Definition) typesystem.Type {
	slot := def.Slot(n.Value)
	if slot < 0 {
		n.Slot = ast.NoSlot
		if _, ok := evaluator.LookupBuiltin(n.Value); ok {
			return typesystem.Function
		}
		if def.IsStrict() {
			a.errorf(diagnostics.ErrA001, n, "unknown identifier %s", n.Value)
		}
		return typesystem.Any
	}
	e := def.Entry(slot)
	if e.IsPrivate() {
		a.errorf(diagnostics.ErrA002, n, "%s is private", n.Value)
	}
	n.Slot = slot
	return e.GetType()
}

// memberDefinition finds the definition describing the value of left.
func (a *Analyzer) memberDefinition(left ast.Expression, lt typesystem.Type, def definition.Definition) definition.Definition {
	if name, ok := typesystem.ClassName(lt); ok {
		if d, ok := definition.Lookup(name); ok {
			return d
		}
	}
	if id, ok := left.(*ast.Identifier); ok && id.Slot != ast.NoSlot {
		if e := def.Entry(id.Slot); e != nil && e.TypeDefinition != nil {
			return e.TypeDefinition
		}
	}
	return nil
}

func (a *Analyzer) inferDot(n *ast.DotExpression, def definition.Definition) typesystem.Type {
	lt := a.infer(n.Left, def)
	n.Slot = ast.NoSlot
	md := a.memberDefinition(n.Left, lt, def)
	if md == nil {
		if m, ok := lt.(typesystem.TMap); ok {
			return typesystem.Union(m.Value, typesystem.Null)
		}
		return typesystem.Any
	}
	slot := md.Slot(n.Name)
	if slot < 0 {
		if md.IsStrict() {
			a.errorf(diagnostics.ErrA001, n, "%s has no member %s", lt, n.Name)
		}
		return typesystem.Any
	}
	e := md.Entry(slot)
	if e.IsPrivate() {
		a.errorf(diagnostics.ErrA002, n, "%s.%s is private", lt, n.Name)
	}
	n.Slot = slot
	return e.GetType()
}

func isInt(t typesystem.Type) bool { return typesystem.Equal(t, typesystem.Int) }

func isNumeric(t typesystem.Type) bool {
	return !typesystem.IsAny(t) && typesystem.Compatible(typesystem.Decimal, t)
}

func numericResult(lt, rt typesystem.Type) typesystem.Type {
	switch {
	case isInt(lt) && isInt(rt):
		return typesystem.Int
	case typesystem.Equal(lt, typesystem.Decimal) && isNumeric(rt),
		typesystem.Equal(rt, typesystem.Decimal) && isNumeric(lt):
		return typesystem.Decimal
	case isNumeric(lt) && isNumeric(rt):
		return typesystem.Union(typesystem.Int, typesystem.Decimal)
	}
	return typesystem.Any
}

func (a *Analyzer) inferInfix(n *ast.InfixExpression, def definition.Definition) typesystem.Type {
	lt := a.infer(n.Left, def)
	switch n.Operator {
	case "and":
		rt := a.infer(n.Right, narrow(n.Left, def, true))
		return typesystem.Union(lt, rt)
	case "or":
		rt := a.infer(n.Right, narrow(n.Left, def, false))
		return typesystem.Union(lt, rt)
	}
	rt := a.infer(n.Right, def)

	switch n.Operator {
	case "=", "!=", "<", "<=", ">", ">=", "in", "not in":
		return typesystem.Bool
	case "+":
		if typesystem.Equal(lt, typesystem.Null) {
			return rt
		}
		if typesystem.Equal(rt, typesystem.Null) {
			return lt
		}
		if typesystem.Equal(lt, typesystem.String) || typesystem.Equal(rt, typesystem.String) {
			return typesystem.String
		}
		if l, ok := lt.(typesystem.TList); ok {
			if r, ok := rt.(typesystem.TList); ok {
				return typesystem.TList{Elem: typesystem.Union(l.Elem, r.Elem)}
			}
		}
		if _, ok := lt.(typesystem.TMap); ok {
			return typesystem.Map
		}
	}
	return numericResult(lt, rt)
}

// narrow returns def with the slots cond constrains when it evaluates to
// holds.
func narrow(cond ast.Expression, def definition.Definition, holds bool) definition.Definition {
	switch c := cond.(type) {
	case *ast.Identifier:
		if holds {
			return dropNull(c, def)
		}
	case *ast.PrefixExpression:
		if c.Operator == "not" {
			return narrow(c.Right, def, !holds)
		}
	case *ast.InfixExpression:
		switch c.Operator {
		case "!=", "=":
			if holds != (c.Operator == "!=") {
				return def
			}
			if _, ok := c.Right.(*ast.NullLiteral); ok {
				if id, ok := c.Left.(*ast.Identifier); ok {
					return dropNull(id, def)
				}
			}
			if _, ok := c.Left.(*ast.NullLiteral); ok {
				if id, ok := c.Right.(*ast.Identifier); ok {
					return dropNull(id, def)
				}
			}
		case "and":
			if holds {
				return narrow(c.Right, narrow(c.Left, def, true), true)
			}
		case "or":
			if !holds {
				return narrow(c.Right, narrow(c.Left, def, false), false)
			}
		}
	}
	return def
}

func dropNull(id *ast.Identifier, def definition.Definition) definition.Definition {
	if id.Slot == ast.NoSlot {
		return def
	}
	e := def.Entry(id.Slot)
	if e == nil || !typesystem.IsNullable(e.GetType()) || typesystem.IsAny(e.GetType()) {
		return def
	}
	if m := definition.Modify(def, id.Slot, typesystem.Without(e.GetType(), typesystem.Null), nil); m != nil {
		return m
	}
	return def
}

func (a *Analyzer) inferIf(n *ast.IfExpression, def definition.Definition) typesystem.Type {
	var results []typesystem.Type
	cur := def
	for i, cond := range n.Conditions {
		a.infer(cond, cur)
		results = append(results, a.infer(n.Results[i], narrow(cond, cur, true)))
		cur = narrow(cond, cur, false)
	}
	if n.Else != nil {
		results = append(results, a.infer(n.Else, cur))
	} else {
		results = append(results, typesystem.Null)
	}
	return typesystem.Union(results...)
}

func (a *Analyzer) inferWhere(n *ast.WhereExpression, def definition.Definition) typesystem.Type {
	n.Base = def.NumSlots()
	wd := definition.NewSimple(def)
	entries := make([]*definition.Entry, len(n.Names))
	for i, name := range n.Names {
		entries[i] = &definition.Entry{ID: name}
		if fl, ok := n.Values[i].(*ast.FunctionLiteral); ok {
			entries[i].Type = signature(fl)
		}
		wd.Add(entries[i])
	}
	for i, v := range n.Values {
		entries[i].Type = a.infer(v, wd)
	}
	return a.infer(n.Body, wd)
}

func signature(fl *ast.FunctionLiteral) typesystem.TFunc {
	params := make([]typesystem.Type, len(fl.Parameters))
	for i, p := range fl.Parameters {
		params[i] = p.Type
		if params[i] == nil {
			params[i] = typesystem.Any
		}
	}
	ret := fl.ReturnType
	if ret == nil {
		ret = typesystem.Any
	}
	return typesystem.TFunc{Params: params, Return: ret}
}

func (a *Analyzer) inferFunction(n *ast.FunctionLiteral, def definition.Definition) typesystem.Type {
	n.Base = def.NumSlots()
	fd := definition.NewSimple(def)
	for _, p := range n.Parameters {
		fd.Add(&definition.Entry{ID: p.Name, Type: p.Type})
	}
	sig := signature(n)
	if n.Name != "" {
		fd.AddTyped(n.Name, sig)
	}

	var results []typesystem.Type
	for _, g := range n.Guards {
		a.infer(g.Condition, fd)
		results = append(results, a.infer(g.Value, fd))
	}
	results = append(results, a.infer(n.Body, fd))
	if n.ReturnType == nil {
		sig.Return = typesystem.Union(results...)
	}
	return sig
}

func (a *Analyzer) inferCall(n *ast.CallExpression, def definition.Definition) typesystem.Type {
	n.ScopeBase = def.NumSlots()
	if id, ok := n.Function.(*ast.Identifier); ok && def.Slot(id.Value) < 0 {
		id.Slot = ast.NoSlot
		a.TypeMap[id] = typesystem.Function
		if b, ok := evaluator.LookupBuiltin(id.Value); ok {
			return a.inferBuiltinCall(n, b, def)
		}
		if def.IsStrict() {
			a.errorf(diagnostics.ErrA001, n.Function, "unknown function %s", id.Value)
		}
		for _, arg := range n.Arguments {
			a.infer(arg, def)
		}
		return typesystem.Any
	}

	ft := a.infer(n.Function, def)
	argTypes := make([]typesystem.Type, len(n.Arguments))
	for i, arg := range n.Arguments {
		argTypes[i] = a.infer(arg, def)
	}
	f, ok := ft.(typesystem.TFunc)
	if !ok {
		return typesystem.Any
	}
	if len(f.Params) != len(argTypes) {
		a.errorf(diagnostics.ErrA004, n, "%s expects %d arguments, got %d", n.Function, len(f.Params), len(argTypes))
		return f.Return
	}
	for i, pt := range f.Params {
		if !typesystem.Compatible(pt, argTypes[i]) {
			a.errorf(diagnostics.ErrA003, n.Arguments[i], "argument %d of %s: expected %s, found %s", i+1, n.Function, pt, argTypes[i])
		}
	}
	return f.Return
}

func (a *Analyzer) inferBuiltinCall(n *ast.CallExpression, b *evaluator.Builtin, def definition.Definition) typesystem.Type {
	if len(n.Arguments) < b.MinArgs || (b.MaxArgs >= 0 && len(n.Arguments) > b.MaxArgs) {
		a.errorf(diagnostics.ErrA004, n, "%s: wrong number of arguments: got %d", b.Name, len(n.Arguments))
	}

	types := make([]typesystem.Type, len(n.Arguments))
	for i, arg := range n.Arguments {
		if !b.IsLazy(i) {
			types[i] = a.infer(arg, def)
		}
	}
	for i, arg := range n.Arguments {
		if !b.IsLazy(i) {
			continue
		}
		names := b.ScopeKindOf(i).Names()
		if len(names) == 0 {
			types[i] = a.infer(arg, def)
			continue
		}
		var scopeTypes []typesystem.Type
		if b.ScopeTypes != nil {
			scopeTypes = b.ScopeTypes(i, types)
		}
		sd := definition.NewSimple(def)
		for j, name := range names {
			t := typesystem.Any
			if j < len(scopeTypes) && scopeTypes[j] != nil {
				t = scopeTypes[j]
			}
			sd.AddTyped(name, t)
		}
		types[i] = a.infer(arg, sd)
	}

	if (b.Name == "set" || b.Name == "add") && len(n.Arguments) == 2 {
		if e := a.targetEntry(n.Arguments[0], def); e != nil {
			wt := e.GetWriteType()
			if !typesystem.Compatible(wt, types[1]) {
				a.errorf(diagnostics.ErrA003, n.Arguments[1], "cannot assign %s to %s of type %s", types[1], e.ID, wt)
			}
		}
	}

	for i := range types {
		if types[i] == nil {
			types[i] = typesystem.Any
		}
	}
	if b.Return == nil {
		return typesystem.Any
	}
	return b.Return(types)
}

// targetEntry returns the entry an assignment target writes, when it is
// statically known.
func (a *Analyzer) targetEntry(target ast.Expression, def definition.Definition) *definition.Entry {
	switch t := target.(type) {
	case *ast.Identifier:
		if t.Slot != ast.NoSlot {
			return def.Entry(t.Slot)
		}
	case *ast.DotExpression:
		if t.Slot == ast.NoSlot {
			return nil
		}
		if md := a.memberDefinition(t.Left, a.TypeMap[t.Left], def); md != nil {
			return md.Entry(t.Slot)
		}
	}
	return nil
}
