package classes

import (
	"strings"

	"github.com/google/uuid"

	"github.com/funvibe/formula/internal/asserts"
	"github.com/funvibe/formula/internal/config"
	"github.com/funvibe/formula/internal/definition"
	"github.com/funvibe/formula/internal/evaluator"
	"github.com/funvibe/formula/internal/formula"
	"github.com/funvibe/formula/internal/gc"
	"github.com/funvibe/formula/internal/typesystem"
	"github.com/funvibe/formula/internal/utils"
)

// Slots of the base fields every class starts with.
const (
	dataSlot = iota
	valueSlot
	selfSlot
	meSlot
	newInUpdateSlot
	orphanedSlot
	previousSlot
	classSlot
	libSlot
)

// Instance is an object created from a class.
type Instance struct {
	id    uuid.UUID
	class *Class

	variables []evaluator.Object
	// overrides replace the getter of read-only properties fixed at
	// construction time, indexed like Class.properties.
	overrides []*formula.Formula

	previous    *Instance
	newInUpdate bool
	orphaned    bool

	// privateData is the state slot _data refers to while a getter or
	// setter runs, or -1.
	privateData int
	// tmpValue is what value reads inside a setter.
	tmpValue evaluator.Object
}

func newInstance(c *Class) *Instance {
	inst := &Instance{
		id:          uuid.New(),
		class:       c,
		variables:   make([]evaluator.Object, c.nstate),
		newInUpdate: true,
		privateData: -1,
	}
	for i := range inst.variables {
		inst.variables[i] = evaluator.NULL
	}
	for _, p := range c.properties {
		if p == nil || p.VariableSlot < 0 {
			continue
		}
		if p.Initializer != nil {
			inst.variables[p.VariableSlot] = inst.mustEval(p.Initializer)
		} else if p.Default != nil {
			inst.variables[p.VariableSlot] = deepCopyValue(p.Default)
		}
	}
	return inst
}

// construct applies constructor arguments and runs the constructors of
// the class chain, base first.
func (inst *Instance) construct(args evaluator.Object) {
	c := inst.class
	if m, ok := args.(*evaluator.Map); ok {
		for i, k := range m.Keys() {
			key, ok := k.(*evaluator.String)
			asserts.Check(ok, "constructor argument keys of class %s must be strings, got %s", c.name, evaluator.TypeName(k))
			v := m.Values()[i]
			p := c.Property(key.Value)
			asserts.Check(p != nil, "unknown property %s.%s in constructor arguments", c.name, key.Value)
			if !p.Writable() {
				inst.override(p, v)
				continue
			}
			inst.MutateValueBySlot(p.Slot, v)
		}
	} else if args != nil && args != evaluator.NULL {
		asserts.Fatalf("constructor arguments of class %s must be a map, got %s", c.name, evaluator.TypeName(args))
	}

	var chain []*Class
	for k := c; k != nil; k = k.base {
		chain = append(chain, k)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for _, f := range chain[i].constructor {
			inst.runCommands(f)
		}
	}
}

// override fixes a read-only property to a formula given as source text.
func (inst *Instance) override(p *Property, v evaluator.Object) {
	c := inst.class
	src, ok := v.(*evaluator.String)
	asserts.Check(ok, "read-only property %s.%s can only be overridden by a formula string", c.name, p.Name)
	f, err := formula.New(src.Value, c.def)
	if err != nil {
		asserts.Fatalf("property override %s.%s: %v", c.name, p.Name, err)
	}
	if p.GetType != nil {
		asserts.Check(typesystem.Compatible(p.GetType, f.QueryType()),
			"property override in instance of class %s has mis-matched type for property %s: %s doesn't match %s",
			c.name, p.Name, f.QueryType(), p.GetType)
	}
	idx := p.Slot - config.NumBaseFields
	for len(inst.overrides) <= idx {
		inst.overrides = append(inst.overrides, nil)
	}
	inst.overrides[idx] = f
}

func (inst *Instance) mustEval(f *formula.Formula) evaluator.Object {
	res, err := f.Execute(inst)
	if err != nil {
		panic(err)
	}
	return res
}

func (inst *Instance) runCommands(f *formula.Formula) {
	res := inst.mustEval(f)
	asserts.Check(inst.ExecuteCommand(res), "%s in class %s did not produce commands", f.String(), inst.class.name)
}

func (inst *Instance) ID() uuid.UUID                     { return inst.id }
func (inst *Instance) Class() *Class                     { return inst.class }
func (inst *Instance) ClassName() string                 { return inst.class.name }
func (inst *Instance) Definition() definition.Definition { return inst.class.def }
func (inst *Instance) IsA(name string) bool              { return inst.class.IsA(name) }

// NewInUpdate reports whether the last Update brought the instance in.
func (inst *Instance) NewInUpdate() bool { return inst.newInUpdate }

// Orphaned reports whether the last Update dropped the instance.
func (inst *Instance) Orphaned() bool { return inst.orphaned }

// Previous returns the snapshot taken by the last Update, or nil.
func (inst *Instance) Previous() *Instance { return inst.previous }

func (inst *Instance) Type() evaluator.ObjectType { return evaluator.INSTANCE_OBJ }

func (inst *Instance) RuntimeType() typesystem.Type {
	return typesystem.TClass{Name: inst.class.name}
}

var inspecting utils.Stack[*Instance]

func (inst *Instance) Inspect() string {
	if inspecting.Contains(inst) {
		return "<" + inst.class.name + " " + inst.id.String()[:8] + ">"
	}
	defer inspecting.Push(inst)()

	var parts []string
	for _, p := range inst.class.properties {
		if p == nil || p.VariableSlot < 0 {
			continue
		}
		parts = append(parts, p.Name+": "+evaluator.Repr(inst.variables[p.VariableSlot]))
	}
	return inst.class.name + "{" + strings.Join(parts, ", ") + "}"
}

func (inst *Instance) property(slot int) *Property {
	idx := slot - config.NumBaseFields
	if idx < 0 || idx >= len(inst.class.properties) || inst.class.properties[idx] == nil {
		asserts.Fatalf("illegal slot %d for object of class %s", slot, inst.class.name)
	}
	return inst.class.properties[idx]
}

func (inst *Instance) slotOf(key string) int {
	slot := inst.class.def.Slot(key)
	asserts.Check(slot >= 0, "unknown property accessed in object: %s.%s", inst.class.name, key)
	return slot
}

func (inst *Instance) QueryValue(key string) evaluator.Object {
	return inst.QueryValueBySlot(inst.slotOf(key))
}

func (inst *Instance) QueryValueBySlot(slot int) evaluator.Object {
	switch slot {
	case dataSlot:
		asserts.Check(inst.privateData >= 0, "illegal access of private data in %s", inst.class.name)
		return inst.variables[inst.privateData]
	case valueSlot:
		asserts.Check(inst.tmpValue != nil, "value is only available in setters of %s", inst.class.name)
		return inst.tmpValue
	case selfSlot, meSlot:
		return inst
	case newInUpdateSlot:
		return evaluator.NewBoolean(inst.newInUpdate)
	case orphanedSlot:
		return evaluator.NewBoolean(inst.orphaned)
	case previousSlot:
		if inst.previous == nil {
			return inst
		}
		return inst.previous
	case classSlot:
		return evaluator.NewString(inst.class.name)
	case libSlot:
		return inst.class.registry.Library()
	}

	p := inst.property(slot)
	idx := slot - config.NumBaseFields
	if idx < len(inst.overrides) && inst.overrides[idx] != nil {
		return inst.overrides[idx].Eval(inst)
	}
	if p.Getter != nil {
		defer utils.Swap(&inst.privateData, p.VariableSlot)()
		return p.Getter.Eval(inst)
	}
	if p.VariableSlot >= 0 {
		return inst.variables[p.VariableSlot]
	}
	return evaluator.NULL
}

func (inst *Instance) MutateValue(key string, value evaluator.Object) {
	inst.MutateValueBySlot(inst.slotOf(key), value)
}

func (inst *Instance) MutateValueBySlot(slot int, value evaluator.Object) {
	if slot < config.NumBaseFields {
		asserts.Check(slot == dataSlot, "cannot write base field %s of %s", config.BaseFields[max(slot, 0)], inst.class.name)
		asserts.Check(inst.privateData >= 0, "illegal access of private data in %s", inst.class.name)
		inst.variables[inst.privateData] = value
		return
	}

	p := inst.property(slot)
	asserts.Check(p.Writable(), "illegal write to read-only property %s.%s", inst.class.name, p.Name)
	if p.SetType != nil && !evaluator.Matches(p.SetType, value) {
		asserts.Fatalf("illegal write property access: setting %s.%s to invalid type %s: %s",
			inst.class.name, p.Name, evaluator.TypeName(value), evaluator.Repr(value))
	}

	if p.Setter == nil {
		inst.variables[p.VariableSlot] = value
		return
	}

	inst.runSetter(p, value)
	if config.TypeSafetyChecks && p.GetType != nil && (p.Getter != nil || p.VariableSlot >= 0) {
		got := inst.QueryValueBySlot(slot)
		asserts.Check(evaluator.Matches(p.GetType, got),
			"set of %s.%s left it holding %s, which does not match %s",
			inst.class.name, p.Name, evaluator.Repr(got), p.GetType)
	}
}

func (inst *Instance) runSetter(p *Property, value evaluator.Object) {
	defer utils.Swap(&inst.tmpValue, value)()
	defer utils.Swap(&inst.privateData, p.VariableSlot)()
	inst.runCommands(p.Setter)
}

func (inst *Instance) Inputs() []evaluator.Input {
	var inputs []evaluator.Input
	for _, p := range inst.class.properties {
		if p == nil {
			continue
		}
		if e := inst.class.def.Entry(p.Slot); e != nil && e.IsPrivate() {
			continue
		}
		access := evaluator.AccessReadOnly
		if p.Writable() {
			access = evaluator.AccessReadWrite
		}
		inputs = append(inputs, evaluator.Input{Name: p.Name, Access: access})
	}
	return inputs
}

func (inst *Instance) ExecuteCommand(cmd evaluator.Object) bool {
	return evaluator.ExecuteCommand(inst, cmd)
}

// Validate checks every typed state-backed property against its type.
func (inst *Instance) Validate() {
	for _, p := range inst.class.properties {
		if p == nil || p.GetType == nil || p.VariableSlot < 0 {
			continue
		}
		v := inst.QueryValueBySlot(p.Slot)
		asserts.Check(evaluator.Matches(p.GetType, v),
			"object property %s.%s does not match type %s: %s", inst.class.name, p.Name, p.GetType, evaluator.Repr(v))
	}
}

func (inst *Instance) SurrenderReferences(c gc.Collector) {
	for i := range inst.variables {
		evaluator.SurrenderObject(c, &inst.variables[i], inst.class.stateName(i))
	}
	if inst.previous != nil {
		c.SurrenderPointer(inst.previous, func() { inst.previous = nil }, "previous")
	}
}

// copyInstance copies inst keeping its identity. State vectors are
// copied shallowly.
func copyInstance(inst *Instance) *Instance {
	cp := *inst
	cp.variables = append([]evaluator.Object(nil), inst.variables...)
	cp.overrides = append([]*formula.Formula(nil), inst.overrides...)
	cp.previous = nil
	cp.privateData = -1
	cp.tmpValue = nil
	return &cp
}
