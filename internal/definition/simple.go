package definition

import "github.com/funvibe/formula/internal/typesystem"

// SimpleDefinition appends entries after an optional base.
// Lookups consult local entries first, then the base.
type SimpleDefinition struct {
	base     Definition
	baseLen  int
	entries  []*Entry
	index    map[string]int
	typeName string
	strict   bool
}

// NewSimple builds a definition extending base with entries.
func NewSimple(base Definition, entries ...*Entry) *SimpleDefinition {
	d := &SimpleDefinition{base: base, index: make(map[string]int)}
	if base != nil {
		d.baseLen = base.NumSlots()
		d.strict = base.IsStrict()
	}
	for _, e := range entries {
		d.Add(e)
	}
	return d
}

// FromNames builds a definition of untyped entries.
func FromNames(base Definition, names ...string) *SimpleDefinition {
	d := NewSimple(base)
	for _, n := range names {
		d.Add(&Entry{ID: n})
	}
	return d
}

// Add appends an entry and returns its slot.
func (d *SimpleDefinition) Add(e *Entry) int {
	d.index[e.ID] = len(d.entries)
	d.entries = append(d.entries, e)
	return d.baseLen + len(d.entries) - 1
}

// AddTyped appends an entry with a read type.
func (d *SimpleDefinition) AddTyped(id string, t typesystem.Type) int {
	return d.Add(&Entry{ID: id, Type: t})
}

func (d *SimpleDefinition) SetTypeName(name string) { d.typeName = name }
func (d *SimpleDefinition) SetStrict(strict bool)    { d.strict = strict }

func (d *SimpleDefinition) Slot(name string) int {
	if i, ok := d.index[name]; ok {
		return d.baseLen + i
	}
	if d.base != nil {
		return d.base.Slot(name)
	}
	return -1
}

func (d *SimpleDefinition) Entry(slot int) *Entry {
	if d.base != nil && slot < d.baseLen {
		return d.base.Entry(slot)
	}
	slot -= d.baseLen
	if slot < 0 || slot >= len(d.entries) {
		return nil
	}
	return d.entries[slot]
}

func (d *SimpleDefinition) NumSlots() int    { return d.baseLen + len(d.entries) }
func (d *SimpleDefinition) Base() Definition { return d.base }
func (d *SimpleDefinition) TypeName() string { return d.typeName }
func (d *SimpleDefinition) IsStrict() bool   { return d.strict }
