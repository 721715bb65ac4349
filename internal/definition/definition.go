// Package definition describes the slot layout of callables: which
// properties an object exposes, at which index, and with which types.
//
// Base slots always occupy the lowest indices. A derived definition
// appends its own entries after every base slot, so slot numbers stay
// stable along an inheritance chain.
package definition

import (
	"github.com/funvibe/formula/internal/typesystem"
)

// Entry is one property of a definition.
type Entry struct {
	ID string

	// Type is the read type; nil means any.
	Type typesystem.Type

	// WriteType is what the property accepts; nil means the same as Type.
	WriteType typesystem.Type

	// PrivateCounter > 0 hides the entry from code outside the class.
	PrivateCounter int

	// TypeDefinition describes the property's own value for further
	// member lookup, when known.
	TypeDefinition Definition
}

// GetType returns the read type, defaulting to any.
func (e *Entry) GetType() typesystem.Type {
	if e.Type == nil {
		return typesystem.Any
	}
	return e.Type
}

// GetWriteType returns the write type, defaulting to the read type.
func (e *Entry) GetWriteType() typesystem.Type {
	if e.WriteType != nil {
		return e.WriteType
	}
	return e.GetType()
}

func (e *Entry) IsPrivate() bool {
	return e.PrivateCounter > 0
}

// Definition is the slot table of a callable.
type Definition interface {
	// Slot resolves a name to its slot index, or -1.
	Slot(name string) int
	// Entry returns the entry at slot, or nil when out of range.
	Entry(slot int) *Entry
	NumSlots() int
	// Base returns the definition this one extends, or nil.
	Base() Definition
	// TypeName is the registered name of the definition, if any.
	TypeName() string
	// IsStrict definitions reject unknown names at analysis time.
	IsStrict() bool
}

// QuerySubsetBase returns the slot offset at which every entry of other
// appears, in order, inside d; -1 if other is not a subset of d.
// An ancestor of d is always found at offset 0.
func QuerySubsetBase(d, other Definition) int {
	if d == nil || other == nil {
		return -1
	}
	for b := d; b != nil; b = b.Base() {
		if b == other {
			return 0
		}
	}

	n := other.NumSlots()
	total := d.NumSlots()
	if n == 0 {
		return 0
	}
	first := other.Entry(0)
	start := d.Slot(first.ID)
	if start < 0 || start+n > total {
		return -1
	}
	for i := 0; i < n; i++ {
		mine, theirs := d.Entry(start+i), other.Entry(i)
		if mine == nil || theirs == nil || mine.ID != theirs.ID {
			return -1
		}
		if !typesystem.Compatible(theirs.GetType(), mine.GetType()) {
			return -1
		}
	}
	return start
}

// Names lists every slot name of d in slot order.
func Names(d Definition) []string {
	names := make([]string, 0, d.NumSlots())
	for i := 0; i < d.NumSlots(); i++ {
		if e := d.Entry(i); e != nil {
			names = append(names, e.ID)
		}
	}
	return names
}
