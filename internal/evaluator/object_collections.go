package evaluator

import (
	"strings"

	"github.com/funvibe/formula/internal/typesystem"
)

type List struct {
	Elements []Object
}

func (l *List) Type() ObjectType { return LIST_OBJ }
func (l *List) Inspect() string {
	parts := make([]string, len(l.Elements))
	for i, e := range l.Elements {
		parts[i] = Repr(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
func (l *List) RuntimeType() typesystem.Type {
	types := make([]typesystem.Type, len(l.Elements))
	for i, e := range l.Elements {
		types[i] = e.RuntimeType()
	}
	return typesystem.TList{Elem: typesystem.Union(types...)}
}

func (l *List) Len() int { return len(l.Elements) }

// Map keeps insertion order. Keys compare by value.
type Map struct {
	keys   []Object
	values []Object
	index  map[string]int
}

func NewMap() *Map {
	return &Map{index: make(map[string]int)}
}

func (m *Map) Type() ObjectType { return MAP_OBJ }
func (m *Map) Inspect() string {
	parts := make([]string, len(m.keys))
	for i := range m.keys {
		parts[i] = Repr(m.keys[i]) + ": " + Repr(m.values[i])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
func (m *Map) RuntimeType() typesystem.Type {
	keys := make([]typesystem.Type, len(m.keys))
	values := make([]typesystem.Type, len(m.values))
	for i := range m.keys {
		keys[i] = m.keys[i].RuntimeType()
		values[i] = m.values[i].RuntimeType()
	}
	return typesystem.TMap{Key: typesystem.Union(keys...), Value: typesystem.Union(values...)}
}

func hashKey(k Object) string {
	switch key := k.(type) {
	case *Integer:
		return "i" + key.Inspect()
	case *Float:
		if key.Value == float64(int64(key.Value)) {
			return "i" + NewInteger(int64(key.Value)).Inspect()
		}
		return "f" + key.Inspect()
	case *String:
		return "s" + key.Value
	}
	return string(k.Type()) + ":" + k.Inspect()
}

// Set stores v under k, replacing any previous value.
func (m *Map) Set(k, v Object) {
	h := hashKey(k)
	if i, ok := m.index[h]; ok {
		m.values[i] = v
		return
	}
	m.index[h] = len(m.keys)
	m.keys = append(m.keys, k)
	m.values = append(m.values, v)
}

func (m *Map) Get(k Object) (Object, bool) {
	i, ok := m.index[hashKey(k)]
	if !ok {
		return nil, false
	}
	return m.values[i], true
}

// GetString is Get for string keys.
func (m *Map) GetString(k string) (Object, bool) {
	return m.Get(NewString(k))
}

func (m *Map) Len() int         { return len(m.keys) }
func (m *Map) Keys() []Object   { return m.keys }
func (m *Map) Values() []Object { return m.values }

// Copy returns a shallow copy.
func (m *Map) Copy() *Map {
	cp := &Map{
		keys:   append([]Object(nil), m.keys...),
		values: append([]Object(nil), m.values...),
		index:  make(map[string]int, len(m.index)),
	}
	for k, v := range m.index {
		cp.index[k] = v
	}
	return cp
}

// MapFromPairs builds a map from alternating keys and values.
func MapFromPairs(kv ...Object) *Map {
	m := NewMap()
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i], kv[i+1])
	}
	return m
}
