package classes

import (
	"github.com/funvibe/formula/internal/asserts"
	"github.com/funvibe/formula/internal/definition"
	"github.com/funvibe/formula/internal/evaluator"
	"github.com/funvibe/formula/internal/gc"
	"github.com/funvibe/formula/internal/typesystem"
)

// Library is the object behind every instance's lib field. It exposes
// one instance per known class, created on first access.
type Library struct {
	r     *Registry
	def   *definition.SimpleDefinition
	items []evaluator.Object
}

// Library returns the registry's library object.
func (r *Registry) Library() *Library {
	if r.lib == nil {
		names := r.loader.Names()
		def := definition.NewSimple(nil)
		for _, n := range names {
			def.AddTyped(n, typesystem.TClass{Name: n})
		}
		def.SetTypeName("lib")
		def.SetStrict(true)
		r.lib = &Library{r: r, def: def, items: make([]evaluator.Object, len(names))}
	}
	return r.lib
}

func (l *Library) Type() evaluator.ObjectType   { return evaluator.SCOPE_OBJ }
func (l *Library) Inspect() string              { return "lib" }
func (l *Library) RuntimeType() typesystem.Type { return typesystem.Object }

func (l *Library) Definition() definition.Definition { return l.def }

func (l *Library) QueryValue(key string) evaluator.Object {
	slot := l.def.Slot(key)
	asserts.Check(slot >= 0, "unknown library class: %s", key)
	return l.QueryValueBySlot(slot)
}

func (l *Library) QueryValueBySlot(slot int) evaluator.Object {
	asserts.Check(slot >= 0 && slot < len(l.items), "illegal library slot %d", slot)
	if l.items[slot] == nil {
		l.items[slot] = l.r.Create(l.def.Entry(slot).ID, nil)
	}
	return l.items[slot]
}

func (l *Library) MutateValue(key string, value evaluator.Object) {
	asserts.Fatalf("cannot write library entry %s", key)
}

func (l *Library) MutateValueBySlot(slot int, value evaluator.Object) {
	asserts.Fatalf("cannot write library slot %d", slot)
}

func (l *Library) Inputs() []evaluator.Input {
	inputs := make([]evaluator.Input, len(l.items))
	for i := range l.items {
		inputs[i] = evaluator.Input{Name: l.def.Entry(i).ID, Access: evaluator.AccessReadOnly}
	}
	return inputs
}

func (l *Library) ExecuteCommand(cmd evaluator.Object) bool {
	return evaluator.ExecuteCommand(l, cmd)
}

func (l *Library) SurrenderReferences(c gc.Collector) {
	for i := range l.items {
		if l.items[i] != nil {
			evaluator.SurrenderObject(c, &l.items[i], l.def.Entry(i).ID)
		}
	}
}
