package definition

import "github.com/funvibe/formula/internal/typesystem"

// ModifiedDefinition patches the type of a single slot of a base
// definition. All other slots delegate to the base unchanged.
type ModifiedDefinition struct {
	base  Definition
	slot  int
	entry Entry
}

// Modify returns base with slot's read type replaced by newType.
// The write type keeps what the slot accepted before, so narrowing a
// property never narrows what may be assigned to it.
func Modify(base Definition, slot int, newType typesystem.Type, newDef Definition) *ModifiedDefinition {
	old := base.Entry(slot)
	if old == nil {
		return nil
	}
	e := *old
	if e.WriteType == nil {
		e.WriteType = old.GetType()
	}
	e.Type = newType
	if newDef != nil {
		e.TypeDefinition = newDef
	}
	return &ModifiedDefinition{base: base, slot: slot, entry: e}
}

func (d *ModifiedDefinition) Slot(name string) int { return d.base.Slot(name) }

func (d *ModifiedDefinition) Entry(slot int) *Entry {
	if slot == d.slot {
		return &d.entry
	}
	return d.base.Entry(slot)
}

func (d *ModifiedDefinition) NumSlots() int    { return d.base.NumSlots() }
func (d *ModifiedDefinition) Base() Definition { return d.base }
func (d *ModifiedDefinition) TypeName() string { return d.base.TypeName() }
func (d *ModifiedDefinition) IsStrict() bool   { return d.base.IsStrict() }
