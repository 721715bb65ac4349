package classes

import (
	"sort"

	"github.com/funvibe/formula/internal/asserts"
	"github.com/funvibe/formula/internal/config"
	"github.com/funvibe/formula/internal/definition"
	"github.com/funvibe/formula/internal/evaluator"
	"github.com/funvibe/formula/internal/formula"
	"github.com/funvibe/formula/internal/typesystem"
	"github.com/funvibe/formula/internal/utils"
)

// Property is one declared property of a class.
type Property struct {
	Name string
	// Slot is the property's slot in the class definition.
	Slot int

	Getter      *formula.Formula
	Setter      *formula.Formula
	Initializer *formula.Formula

	// GetType is what reads return; SetType is what writes accept.
	// Either may be nil for untyped properties.
	GetType typesystem.Type
	SetType typesystem.Type

	// VariableSlot indexes the instance state, or -1 for purely
	// computed properties.
	VariableSlot int
	Default      evaluator.Object
}

// Writable reports whether the property accepts writes.
func (p *Property) Writable() bool {
	return p.Setter != nil || p.VariableSlot >= 0
}

// Class is a built class: its definition plus the formulas and state
// layout instances are created from.
type Class struct {
	name     string
	def      *definition.ClassDefinition
	base     *Class
	registry *Registry

	properties []*Property
	byName     map[string]int
	nstate     int

	constructor []*formula.Formula
	tests       []interface{}

	nested      map[string]*Class
	nestedNames []string
}

func (c *Class) Name() string                           { return c.name }
func (c *Class) Definition() *definition.ClassDefinition { return c.def }
func (c *Class) Base() *Class                           { return c.base }
func (c *Class) Properties() []*Property                { return c.properties }

// NumStateSlots is the length of every instance's state vector.
func (c *Class) NumStateSlots() int { return c.nstate }

// Property returns the named property, or nil.
func (c *Class) Property(name string) *Property {
	if i, ok := c.byName[name]; ok {
		return c.properties[i]
	}
	return nil
}

// Nested returns a nested class by its short name.
func (c *Class) Nested(name string) (*Class, bool) {
	n, ok := c.nested[name]
	return n, ok
}

// IsA reports whether c is name or derives from it.
func (c *Class) IsA(name string) bool {
	for k := c; k != nil; k = k.base {
		if k.name == name {
			return true
		}
	}
	return false
}

// stateName names the property backed by state slot i.
func (c *Class) stateName(i int) string {
	for _, p := range c.properties {
		if p.VariableSlot == i {
			return p.Name
		}
	}
	return ""
}

func (c *Class) setProperty(p *Property) {
	idx := p.Slot - config.NumBaseFields
	for len(c.properties) <= idx {
		c.properties = append(c.properties, nil)
	}
	c.properties[idx] = p
	c.byName[p.Name] = idx
}

// propertiesDoc returns the property table of a class document: the
// properties key, or the document itself when absent.
func propertiesDoc(doc *Doc) *Doc {
	if v := flattenDocs(doc.Get("properties")); v != nil {
		d, ok := v.(*Doc)
		asserts.Check(ok, "class properties must be a map")
		return d
	}
	return doc
}

// isClassKey reports keys a document uses for the class itself when
// properties sit at the top level.
func isClassKey(key string) bool {
	switch key {
	case "bases", "properties", "constructor", "test", "classes", "name":
		return true
	}
	return false
}

func propertyKeys(doc *Doc, props *Doc) []string {
	if props != doc {
		return props.Keys
	}
	var keys []string
	for _, k := range doc.Keys {
		if !isClassKey(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// coarseType is the declared type of a property given only by its value.
func coarseType(v evaluator.Object) typesystem.Type {
	switch v.(type) {
	case *evaluator.List:
		return typesystem.List
	case *evaluator.Map:
		return typesystem.Map
	case *evaluator.Nil:
		return nil
	}
	return v.RuntimeType()
}

func parseType(s string, owner, prop string) typesystem.Type {
	t, err := typesystem.Parse(s)
	asserts.Check(err == nil, "invalid type %q for %s.%s: %v", s, owner, prop, err)
	return t
}

// declaredTypes returns the read and write types a property node declares.
func declaredTypes(node interface{}, owner, prop string) (typesystem.Type, typesystem.Type) {
	switch n := node.(type) {
	case string:
		return nil, nil
	case *Doc:
		var read, write typesystem.Type
		if s, ok := n.String("type"); ok {
			read = parseType(s, owner, prop)
		} else if n.Has("default") && isVariable(n) {
			v, err := toObject(n.Get("default"))
			asserts.Check(err == nil, "default of %s.%s: %v", owner, prop, err)
			read = coarseType(v)
		}
		if s, ok := n.String("set_type"); ok {
			write = parseType(s, owner, prop)
		}
		return read, write
	}
	v, err := toObject(node)
	asserts.Check(err == nil, "property %s.%s: %v", owner, prop, err)
	return coarseType(v), nil
}

func isVariable(n *Doc) bool {
	if v, ok := n.Get("variable").(bool); ok {
		return v
	}
	return true
}

func initializerSource(n *Doc) (string, bool) {
	if s, ok := n.String("initialize"); ok {
		return s, true
	}
	return n.String("init")
}

// formulaList accepts a single formula string or a list of them.
func formulaList(v interface{}) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return []string{x}
	case []interface{}:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			asserts.Check(ok, "expected formula string, got %T", item)
			out = append(out, s)
		}
		return out
	}
	asserts.Fatalf("expected formula string or list, got %T", v)
	return nil
}

func mustFile(src, path string, def definition.Definition) *formula.Formula {
	f, err := formula.NewFile(src, path, def)
	if err != nil {
		asserts.Fatalf("error in %s: %v", path, err)
	}
	return f
}

// buildClass builds the class from its document. The definition is
// registered first so formulas may refer to the class itself.
func (r *Registry) buildClass(name string, doc *Doc) *Class {
	def := r.Definition(name)
	c := &Class{
		name:     name,
		def:      def,
		registry: r,
		byName:   make(map[string]int),
		nested:   make(map[string]*Class),
	}
	if base := def.ClassBase(); base != nil {
		c.base = r.Class(base.TypeName())
		c.nstate = c.base.nstate
		for _, p := range c.base.properties {
			if p != nil {
				cp := *p
				c.setProperty(&cp)
			}
		}
	}

	defer definition.ExposePrivate(def)()

	props := propertiesDoc(doc)
	for _, key := range propertyKeys(doc, props) {
		slot := def.Slot(key)
		entry := def.Entry(slot)
		node := props.Values[key]
		p := &Property{Name: key, Slot: slot, VariableSlot: -1, GetType: entry.Type, SetType: entry.WriteType}
		if p.SetType == nil {
			p.SetType = entry.Type
		}
		path := name + "." + key

		switch n := node.(type) {
		case string:
			p.Getter = mustFile(n, path, def)
			t := p.Getter.QueryType()
			asserts.Check(!typesystem.IsAny(t), "could not infer type of property %s from %q; declare it", path, n)
			p.GetType = t
			entry.Type = t
		case *Doc:
			r.buildProperty(c, p, n, path)
		default:
			v, err := toObject(node)
			asserts.Check(err == nil, "property %s: %v", path, err)
			p.Default = v
			p.VariableSlot = c.nstate
			c.nstate++
		}
		c.setProperty(p)
	}

	for _, src := range formulaList(doc.Get("constructor")) {
		c.constructor = append(c.constructor, mustFile(src, name+".constructor", def))
	}

	if tests, ok := doc.Get("test").([]interface{}); ok {
		c.tests = tests
	}

	if nested, ok := flattenDocs(doc.Get("classes")).(*Doc); ok {
		c.nestedNames = append(c.nestedNames, nested.Keys...)
		sort.Strings(c.nestedNames)
	}
	return c
}

func (r *Registry) buildProperty(c *Class, p *Property, n *Doc, path string) {
	def := c.def
	if n.Has("default") {
		v, err := toObject(n.Get("default"))
		asserts.Check(err == nil, "default of %s: %v", path, err)
		p.Default = v
	}

	_, hasGet := n.String("get")
	_, hasSet := n.String("set")
	// A lone getter is computed unless variable is given explicitly.
	stored := isVariable(n)
	if _, explicit := n.Get("variable").(bool); !explicit && hasGet && !hasSet && p.Default == nil {
		stored = false
	}
	if stored || !hasGet && !hasSet {
		p.VariableSlot = c.nstate
		c.nstate++
	}

	dataType := p.GetType
	if dataType == nil {
		dataType = typesystem.Any
	}
	restoreData := utils.Swap(&def.Entry(0).Type, dataType)
	defer restoreData()

	if src, ok := n.String("get"); ok {
		p.Getter = mustFile(src, path+".get", def)
		if p.GetType == nil {
			t := p.Getter.QueryType()
			asserts.Check(!typesystem.IsAny(t), "could not infer type of property %s; declare it", path)
			p.GetType = t
			def.Entry(p.Slot).Type = t
		} else {
			asserts.Check(typesystem.Compatible(p.GetType, p.Getter.QueryType()),
				"getter of %s returns %s, declared %s", path, p.Getter.QueryType(), p.GetType)
		}
	}

	if src, ok := n.String("set"); ok {
		valueType := p.SetType
		if valueType == nil {
			valueType = typesystem.Any
		}
		restoreValue := utils.Swap(&def.Entry(1).Type, valueType)
		p.Setter = mustFile(src, path+".set", def)
		restoreValue()
	}

	if src, ok := initializerSource(n); ok {
		asserts.Check(p.VariableSlot >= 0, "property %s has an initializer but no state", path)
		p.Initializer = mustFile(src, path+".initialize", nil)
	}
}

// buildNested builds every nested class once the enclosing class is
// registered.
func (r *Registry) buildNested(c *Class) {
	for _, n := range c.nestedNames {
		full := c.name + "." + n
		sub := r.buildClass(full, r.doc(full))
		c.nested[n] = sub
		r.buildNested(sub)
	}
}

// Create builds an instance of class name. args is a map of property
// values, or null.
func (r *Registry) Create(name string, args evaluator.Object) *Instance {
	c := r.Class(name)
	inst := newInstance(c)
	inst.construct(args)
	if config.TypeSafetyChecks {
		inst.Validate()
	}
	if r.Heap != nil {
		r.Heap.Register(inst)
	}
	return inst
}
