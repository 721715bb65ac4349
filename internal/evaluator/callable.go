package evaluator

import (
	"github.com/funvibe/formula/internal/definition"
	"github.com/funvibe/formula/internal/typesystem"
)

type AccessMode int

const (
	AccessReadOnly AccessMode = iota
	AccessWriteOnly
	AccessReadWrite
)

func (a AccessMode) String() string {
	switch a {
	case AccessReadOnly:
		return "read"
	case AccessWriteOnly:
		return "write"
	}
	return "read/write"
}

type Input struct {
	Name   string
	Access AccessMode
}

// Callable is the generic value interface: an object with named and
// slotted properties that can receive commands.
type Callable interface {
	Object
	QueryValue(key string) Object
	QueryValueBySlot(slot int) Object
	MutateValue(key string, value Object)
	MutateValueBySlot(slot int, value Object)
	Inputs() []Input
	// ExecuteCommand runs a command value against the callable and
	// reports whether it was understood.
	ExecuteCommand(cmd Object) bool
	Definition() definition.Definition
}

// ClassInstance is a Callable created from a class.
type ClassInstance interface {
	Callable
	ClassName() string
}

// ExecuteCommand runs cmd against target. Lists run element by element,
// null is a no-op.
func ExecuteCommand(target Callable, cmd Object) bool {
	switch c := cmd.(type) {
	case *Nil:
		return true
	case *List:
		for _, el := range c.Elements {
			if !ExecuteCommand(target, el) {
				return false
			}
		}
		return true
	case *Command:
		c.Execute(target)
		return true
	}
	return false
}

// MapCallable is a Callable over named variables, used for formula
// scopes supplied by the host. Unknown names read as null.
type MapCallable struct {
	names  []string
	values []Object
	def    *definition.SimpleDefinition
}

func NewMapCallable() *MapCallable {
	return &MapCallable{def: definition.NewSimple(nil)}
}

// MapCallableFrom builds a scope holding vars in the given order.
func MapCallableFrom(names []string, values []Object) *MapCallable {
	m := NewMapCallable()
	for i, n := range names {
		m.MutateValue(n, values[i])
	}
	return m
}

func (m *MapCallable) Type() ObjectType             { return SCOPE_OBJ }
func (m *MapCallable) RuntimeType() typesystem.Type { return typesystem.Object }
func (m *MapCallable) Inspect() string {
	mp := NewMap()
	for i, n := range m.names {
		mp.Set(NewString(n), m.values[i])
	}
	return mp.Inspect()
}

func (m *MapCallable) QueryValue(key string) Object {
	if slot := m.def.Slot(key); slot >= 0 {
		return m.values[slot]
	}
	return NULL
}

func (m *MapCallable) QueryValueBySlot(slot int) Object {
	if slot < 0 || slot >= len(m.values) {
		return NULL
	}
	return m.values[slot]
}

func (m *MapCallable) MutateValue(key string, value Object) {
	if slot := m.def.Slot(key); slot >= 0 {
		m.values[slot] = value
		return
	}
	m.def.Add(&definition.Entry{ID: key})
	m.names = append(m.names, key)
	m.values = append(m.values, value)
}

func (m *MapCallable) MutateValueBySlot(slot int, value Object) {
	if slot < 0 || slot >= len(m.values) {
		return
	}
	m.values[slot] = value
}

func (m *MapCallable) Inputs() []Input {
	inputs := make([]Input, len(m.names))
	for i, n := range m.names {
		inputs[i] = Input{Name: n, Access: AccessReadWrite}
	}
	return inputs
}

func (m *MapCallable) ExecuteCommand(cmd Object) bool {
	return ExecuteCommand(m, cmd)
}

func (m *MapCallable) Definition() definition.Definition { return m.def }

// Names returns the variable names in insertion order.
func (m *MapCallable) Names() []string { return m.names }

// Get returns a variable and whether it is set.
func (m *MapCallable) Get(key string) (Object, bool) {
	slot := m.def.Slot(key)
	if slot < 0 {
		return nil, false
	}
	return m.values[slot], true
}
