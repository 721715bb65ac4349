package evaluator

import (
	"github.com/funvibe/formula/internal/asserts"
	"github.com/funvibe/formula/internal/ast"
	"github.com/funvibe/formula/internal/definition"
	"github.com/funvibe/formula/internal/gc"
	"github.com/funvibe/formula/internal/typesystem"
)

// Names bound by the scopes builtins open around their lazy arguments.
var (
	IterationNames = []string{"value", "index", "key", "context"}
	CompareNames   = []string{"a", "b"}
	ErrorNames     = []string{"error"}
)

type bindState uint8

const (
	unbound bindState = iota
	binding
	bound
)

// SlotScope appends named slots after the slots of its parent. Slots at
// or above base are local; everything below is delegated.
//
// A scope built for a where clause evaluates each binding on first use,
// at most once.
type SlotScope struct {
	parent Callable
	base   int
	names  []string
	values []Object

	exprs []ast.Expression
	state []bindState
	ev    *Evaluator

	retained bool
	def      definition.Definition
}

// NewSlotScope binds names to values over parent starting at slot base.
func NewSlotScope(parent Callable, base int, names []string, values []Object) *SlotScope {
	return &SlotScope{parent: parent, base: base, names: names, values: values}
}

func newWhereScope(ev *Evaluator, parent Callable, node *ast.WhereExpression) *SlotScope {
	return &SlotScope{
		parent: parent,
		base:   node.Base,
		names:  node.Names,
		values: make([]Object, len(node.Names)),
		exprs:  node.Values,
		state:  make([]bindState, len(node.Names)),
		ev:     ev,
	}
}

func (s *SlotScope) Type() ObjectType             { return SCOPE_OBJ }
func (s *SlotScope) RuntimeType() typesystem.Type { return typesystem.Object }
func (s *SlotScope) Inspect() string {
	m := NewMap()
	for i, n := range s.names {
		if s.exprs == nil || s.state[i] == bound {
			m.Set(NewString(n), s.values[i])
		}
	}
	return m.Inspect()
}

// Parent returns the enclosing scope.
func (s *SlotScope) Parent() Callable { return s.parent }

func (s *SlotScope) local(i int) Object {
	if s.exprs == nil {
		return s.values[i]
	}
	switch s.state[i] {
	case bound:
		return s.values[i]
	case binding:
		return newError("circular reference in where clause: %s", s.names[i])
	}
	s.state[i] = binding
	v := s.ev.Eval(s.exprs[i], s)
	s.values[i] = v
	s.state[i] = bound
	return v
}

func (s *SlotScope) indexOf(key string) int {
	for i := len(s.names) - 1; i >= 0; i-- {
		if s.names[i] == key {
			return i
		}
	}
	return -1
}

func (s *SlotScope) QueryValue(key string) Object {
	if i := s.indexOf(key); i >= 0 {
		return s.local(i)
	}
	if s.parent == nil {
		return NULL
	}
	return s.parent.QueryValue(key)
}

func (s *SlotScope) QueryValueBySlot(slot int) Object {
	if slot >= s.base && slot < s.base+len(s.names) {
		return s.local(slot - s.base)
	}
	if s.parent == nil {
		return NULL
	}
	return s.parent.QueryValueBySlot(slot)
}

func (s *SlotScope) MutateValue(key string, value Object) {
	if i := s.indexOf(key); i >= 0 {
		asserts.Fatalf("cannot assign to local binding %s", key)
	}
	asserts.Check(s.parent != nil, "unknown property %s", key)
	s.parent.MutateValue(key, value)
}

func (s *SlotScope) MutateValueBySlot(slot int, value Object) {
	if slot >= s.base && slot < s.base+len(s.names) {
		asserts.Fatalf("cannot assign to local binding %s", s.names[slot-s.base])
	}
	asserts.Check(s.parent != nil, "illegal slot %d", slot)
	s.parent.MutateValueBySlot(slot, value)
}

func (s *SlotScope) Inputs() []Input {
	inputs := make([]Input, len(s.names))
	for i, n := range s.names {
		inputs[i] = Input{Name: n, Access: AccessReadOnly}
	}
	return inputs
}

func (s *SlotScope) ExecuteCommand(cmd Object) bool {
	if s.parent == nil {
		return ExecuteCommand(s, cmd)
	}
	return s.parent.ExecuteCommand(cmd)
}

func (s *SlotScope) Definition() definition.Definition {
	if s.def == nil {
		var parentDef definition.Definition
		if s.parent != nil {
			parentDef = s.parent.Definition()
		}
		s.def = definition.FromNames(parentDef, s.names...)
	}
	return s.def
}

func (s *SlotScope) SurrenderReferences(c gc.Collector) {
	if p, ok := s.parent.(gc.Collectible); ok {
		c.SurrenderPointer(p, func() { s.parent = nil }, "parent scope")
	}
	for i := range s.values {
		SurrenderObject(c, &s.values[i], s.names[i])
	}
}

// retain marks this scope and its ancestors as captured, so pooled
// scopes are not reused while something still observes them.
func retain(scope Callable) {
	for scope != nil {
		s, ok := scope.(*SlotScope)
		if !ok {
			return
		}
		s.retained = true
		scope = s.parent
	}
}

// scopePool hands out a scope per iteration, reusing the previous one
// unless it was retained.
type scopePool struct {
	parent Callable
	base   int
	names  []string
	cur    *SlotScope
}

func newScopePool(parent Callable, base int, names []string) *scopePool {
	return &scopePool{parent: parent, base: base, names: names}
}

func (p *scopePool) next(values ...Object) *SlotScope {
	if p.cur == nil || p.cur.retained {
		p.cur = NewSlotScope(p.parent, p.base, p.names, make([]Object, len(p.names)))
	}
	copy(p.cur.values, values)
	return p.cur
}

// iteration binds value, index, key and context.
func (p *scopePool) iteration(value Object, index int, key Object) *SlotScope {
	if key == nil {
		key = NULL
	}
	return p.next(value, NewInteger(int64(index)), key, p.parent)
}
