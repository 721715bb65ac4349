package definition

import (
	"strings"

	"github.com/funvibe/formula/internal/config"
	"github.com/funvibe/formula/internal/typesystem"
)

// ClassDefinition is the slot table of a class. Its first slots are the
// base fields, then every slot of the base class, then its own properties.
// Entries are copied from the base so private exposure of one class does
// not leak into its ancestors.
type ClassDefinition struct {
	name    string
	base    *ClassDefinition
	entries []*Entry
	index   map[string]int
}

// NewClass starts a class definition. A nil base gets the base fields.
func NewClass(name string, base *ClassDefinition) *ClassDefinition {
	d := &ClassDefinition{name: name, base: base, index: make(map[string]int)}
	if base == nil {
		for _, f := range config.BaseFields {
			d.append(&Entry{ID: f})
		}
		d.entries[0].PrivateCounter = 1
		d.entries[0].Type = typesystem.Any
		d.entries[2].Type = typesystem.TClass{Name: name}
		d.entries[3].Type = typesystem.TClass{Name: name}
		d.entries[4].Type = typesystem.Bool
		d.entries[5].Type = typesystem.Bool
		d.entries[6].Type = typesystem.Union(typesystem.TClass{Name: name}, typesystem.Null)
		d.entries[7].Type = typesystem.String
		return d
	}
	for _, e := range base.entries {
		cp := *e
		d.append(&cp)
	}
	d.entries[2].Type = typesystem.TClass{Name: name}
	d.entries[3].Type = typesystem.TClass{Name: name}
	d.entries[6].Type = typesystem.Union(typesystem.TClass{Name: name}, typesystem.Null)
	return d
}

func (d *ClassDefinition) append(e *Entry) int {
	d.index[e.ID] = len(d.entries)
	d.entries = append(d.entries, e)
	return len(d.entries) - 1
}

// AddProperty declares a property. Redeclaring an inherited property
// reuses its slot. Names starting with '_' start out private.
func (d *ClassDefinition) AddProperty(id string, readType, writeType typesystem.Type) int {
	e := &Entry{ID: id, Type: readType, WriteType: writeType}
	if strings.HasPrefix(id, "_") {
		e.PrivateCounter = 1
	}
	if slot, ok := d.index[id]; ok {
		d.entries[slot] = e
		return slot
	}
	return d.append(e)
}

func (d *ClassDefinition) Slot(name string) int {
	if i, ok := d.index[name]; ok {
		return i
	}
	return -1
}

func (d *ClassDefinition) Entry(slot int) *Entry {
	if slot < 0 || slot >= len(d.entries) {
		return nil
	}
	return d.entries[slot]
}

func (d *ClassDefinition) NumSlots() int   { return len(d.entries) }
func (d *ClassDefinition) TypeName() string { return d.name }
func (d *ClassDefinition) IsStrict() bool   { return true }

func (d *ClassDefinition) Base() Definition {
	if d.base == nil {
		return nil
	}
	return d.base
}

// ClassBase returns the base class definition, or nil.
func (d *ClassDefinition) ClassBase() *ClassDefinition { return d.base }

// PushPrivateAccess exposes every entry. Calls nest.
func (d *ClassDefinition) PushPrivateAccess() {
	for _, e := range d.entries {
		e.PrivateCounter--
	}
}

// PopPrivateAccess undoes one PushPrivateAccess.
func (d *ClassDefinition) PopPrivateAccess() {
	for _, e := range d.entries {
		e.PrivateCounter++
	}
}

// ExposePrivate opens a private-access scope on def if it is a class
// definition and returns the function that closes it.
func ExposePrivate(def Definition) func() {
	cd, ok := def.(*ClassDefinition)
	if !ok {
		return func() {}
	}
	cd.PushPrivateAccess()
	released := false
	return func() {
		if !released {
			released = true
			cd.PopPrivateAccess()
		}
	}
}
