package classes

import (
	"github.com/funvibe/formula/internal/evaluator"
)

// Update overwrites the graph rooted at inst with the graph rooted at
// from, in place. Instances matched by identity keep their address and
// take the content of their counterpart; references inside from's graph
// are redirected onto the matched instances.
//
// Afterwards every instance of the old graph missing from the new one is
// marked orphaned, and every instance of the new graph is marked new in
// update unless it had a counterpart. Each old instance keeps a snapshot
// of its content from before the update in previous.
func (inst *Instance) Update(from *Instance) {
	dstOrder, dst := instancesOf(inst)
	for _, o := range dstOrder {
		o.previous = nil
		o.previous = copyInstance(o)
	}
	srcOrder, src := instancesOf(from)

	mapping := make(map[*Instance]*Instance)
	for id, s := range src {
		if d, ok := dst[id]; ok {
			mapping[s] = d
		}
	}

	seen := make(map[*Instance]bool)
	for _, s := range srcOrder {
		var v evaluator.Object = s
		remapInto(&v, mapping, seen)
	}

	for s, d := range mapping {
		prev := d.previous
		*d = *copyInstance(s)
		d.previous = prev
	}

	for id, d := range dst {
		if _, ok := src[id]; !ok {
			d.orphaned = true
			d.newInUpdate = false
		}
	}
	for id, s := range src {
		_, existed := dst[id]
		if d, ok := mapping[s]; ok {
			d.newInUpdate = false
			d.orphaned = false
		}
		s.newInUpdate = !existed
	}
}

// remapInto replaces every instance in *v found in mapping, rebuilding
// lists and maps along the way.
func remapInto(v *evaluator.Object, mapping map[*Instance]*Instance, seen map[*Instance]bool) {
	switch o := (*v).(type) {
	case *Instance:
		if to, ok := mapping[o]; ok {
			*v = to
		}
		if seen[o] {
			return
		}
		seen[o] = true
		for i := range o.variables {
			remapInto(&o.variables[i], mapping, seen)
		}
	case *evaluator.List:
		elems := make([]evaluator.Object, len(o.Elements))
		copy(elems, o.Elements)
		for i := range elems {
			remapInto(&elems[i], mapping, seen)
		}
		*v = evaluator.NewList(elems...)
	case *evaluator.Map:
		m := evaluator.NewMap()
		vals := o.Values()
		for i, k := range o.Keys() {
			key, val := k, vals[i]
			remapInto(&key, mapping, seen)
			remapInto(&val, mapping, seen)
			m.Set(key, val)
		}
		*v = m
	}
}
