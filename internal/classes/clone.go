package classes

import (
	"github.com/google/uuid"

	"github.com/funvibe/formula/internal/evaluator"
)

// DeepClone copies a value graph. Every instance reached is copied once,
// keeping its identity, so shared and cyclic references stay shared in
// the copy. Lists and maps are rebuilt; other values are shared.
func DeepClone(v evaluator.Object) evaluator.Object {
	return deepClone(v, make(map[*Instance]*Instance), false)
}

// Duplicate is DeepClone giving every copied instance a fresh identity.
func Duplicate(v evaluator.Object) evaluator.Object {
	return deepClone(v, make(map[*Instance]*Instance), true)
}

func deepClone(v evaluator.Object, mapping map[*Instance]*Instance, fresh bool) evaluator.Object {
	switch o := v.(type) {
	case *Instance:
		if cp, ok := mapping[o]; ok {
			return cp
		}
		cp := copyInstance(o)
		if fresh {
			cp.id = uuid.New()
		}
		mapping[o] = cp
		for i := range cp.variables {
			cp.variables[i] = deepClone(cp.variables[i], mapping, fresh)
		}
		return cp
	case *evaluator.List:
		elems := make([]evaluator.Object, len(o.Elements))
		for i, el := range o.Elements {
			elems[i] = deepClone(el, mapping, fresh)
		}
		return evaluator.NewList(elems...)
	case *evaluator.Map:
		m := evaluator.NewMap()
		vals := o.Values()
		for i, k := range o.Keys() {
			m.Set(deepClone(k, mapping, fresh), deepClone(vals[i], mapping, fresh))
		}
		return m
	}
	return v
}

// deepCopyValue copies plain container values, leaving instances shared.
func deepCopyValue(v evaluator.Object) evaluator.Object {
	switch o := v.(type) {
	case *evaluator.List:
		elems := make([]evaluator.Object, len(o.Elements))
		for i, el := range o.Elements {
			elems[i] = deepCopyValue(el)
		}
		return evaluator.NewList(elems...)
	case *evaluator.Map:
		m := evaluator.NewMap()
		vals := o.Values()
		for i, k := range o.Keys() {
			m.Set(k, deepCopyValue(vals[i]))
		}
		return m
	}
	return v
}

// VisitValues calls fn for v and every value reachable from it through
// instance state, lists and maps. Each instance is entered once.
func VisitValues(v evaluator.Object, fn func(evaluator.Object)) {
	visitValues(v, fn, make(map[*Instance]bool))
}

func visitValues(v evaluator.Object, fn func(evaluator.Object), seen map[*Instance]bool) {
	switch o := v.(type) {
	case *Instance:
		if seen[o] {
			return
		}
		seen[o] = true
		fn(v)
		for _, sv := range o.variables {
			visitValues(sv, fn, seen)
		}
		return
	case *evaluator.List:
		fn(v)
		for _, el := range o.Elements {
			visitValues(el, fn, seen)
		}
		return
	case *evaluator.Map:
		fn(v)
		for _, mv := range o.Values() {
			visitValues(mv, fn, seen)
		}
		return
	}
	fn(v)
}

// instancesOf collects the instances reachable from v keyed by identity,
// in visiting order.
func instancesOf(v evaluator.Object) ([]*Instance, map[uuid.UUID]*Instance) {
	var order []*Instance
	byID := make(map[uuid.UUID]*Instance)
	VisitValues(v, func(o evaluator.Object) {
		if inst, ok := o.(*Instance); ok {
			if _, dup := byID[inst.id]; !dup {
				order = append(order, inst)
			}
			byID[inst.id] = inst
		}
	})
	return order, byID
}
