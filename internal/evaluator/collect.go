package evaluator

import "github.com/funvibe/formula/internal/gc"

// SurrenderObject surrenders every collectible reachable from *slot
// without crossing another collectible. Containers are walked in place.
func SurrenderObject(c gc.Collector, slot *Object, desc string) {
	switch o := (*slot).(type) {
	case *List:
		for i := range o.Elements {
			SurrenderObject(c, &o.Elements[i], desc)
		}
	case *Map:
		for i := range o.values {
			SurrenderObject(c, &o.values[i], desc)
		}
	case gc.Collectible:
		c.SurrenderPointer(o, func() { *slot = NULL }, desc)
	}
}

func (f *Function) SurrenderReferences(c gc.Collector) {
	if env, ok := f.Env.(gc.Collectible); ok {
		c.SurrenderPointer(env, func() { f.Env = nil }, "closure")
	}
}

func (m *MapCallable) SurrenderReferences(c gc.Collector) {
	for i := range m.values {
		SurrenderObject(c, &m.values[i], m.names[i])
	}
}
