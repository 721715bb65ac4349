package classes

import (
	"bytes"
	"encoding/json"
	"log"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/funvibe/formula/internal/asserts"
	"github.com/funvibe/formula/internal/config"
	"github.com/funvibe/formula/internal/evaluator"
)

// encoder turns values holding instances into plain Go data. Each
// instance is written in full once and referenced by address after that.
type encoder struct {
	addrs map[*Instance]string

	// inline writes an instance in full where it is first met; otherwise
	// it is queued on objects and referenced.
	inline  bool
	objects []interface{}

	// known instances are referenced by identity and never written.
	known func(*Instance) bool
}

func newEncoder(inline bool, known func(*Instance) bool) *encoder {
	return &encoder{addrs: make(map[*Instance]string), inline: inline, known: known}
}

func (e *encoder) value(v evaluator.Object) (interface{}, error) {
	return evaluator.ToWire(v, e.callable)
}

func (e *encoder) callable(c evaluator.Callable) (interface{}, error) {
	inst, ok := c.(*Instance)
	if !ok {
		return nil, errors.Errorf("cannot serialize %s", evaluator.TypeName(c))
	}
	if e.known != nil && e.known(inst) {
		return map[string]interface{}{config.IDRefKey: inst.id.String()}, nil
	}
	if addr, ok := e.addrs[inst]; ok {
		return map[string]interface{}{config.RefKey: addr}, nil
	}
	addr := strconv.Itoa(len(e.addrs) + 1)
	e.addrs[inst] = addr
	obj, err := e.object(inst, addr)
	if err != nil {
		return nil, err
	}
	if e.inline {
		return obj, nil
	}
	e.objects = append(e.objects, obj)
	return map[string]interface{}{config.RefKey: addr}, nil
}

func (e *encoder) object(inst *Instance, addr string) (map[string]interface{}, error) {
	state := make(map[string]interface{})
	for _, p := range inst.class.properties {
		if p == nil || p.VariableSlot < 0 {
			continue
		}
		v, err := e.value(inst.variables[p.VariableSlot])
		if err != nil {
			return nil, errors.Wrapf(err, "%s.%s", inst.class.name, p.Name)
		}
		state[p.Name] = v
	}
	obj := map[string]interface{}{
		config.ClassKey: inst.class.name,
		config.IDKey:    inst.id.String(),
		config.AddrKey:  addr,
		config.StateKey: state,
	}
	overrides := make(map[string]interface{})
	for i, f := range inst.overrides {
		if f != nil {
			overrides[inst.class.properties[i].Name] = f.String()
		}
	}
	if len(overrides) > 0 {
		obj[config.OverridesKey] = overrides
	}
	return obj, nil
}

// Serialize writes inst and every instance reachable from it as JSON.
// Nested instances are written in full where first met and referenced by
// address afterwards.
func Serialize(inst *Instance) ([]byte, error) {
	v, err := newEncoder(true, nil).callable(inst)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// decoder rebuilds instances written by an encoder. All objects of a
// document are created before any state is decoded, so references may
// point forward.
type decoder struct {
	r       *Registry
	byAddr  map[string]*Instance
	byID    map[uuid.UUID]*Instance
	pending []pendingObject
}

type pendingObject struct {
	inst *Instance
	doc  map[string]interface{}
}

func newDecoder(r *Registry, known map[uuid.UUID]*Instance) *decoder {
	byID := make(map[uuid.UUID]*Instance, len(known))
	for id, inst := range known {
		byID[id] = inst
	}
	return &decoder{r: r, byAddr: make(map[string]*Instance), byID: byID}
}

// collect creates an empty instance for every object in data.
func (d *decoder) collect(data interface{}) error {
	switch v := data.(type) {
	case []interface{}:
		for _, item := range v {
			if err := d.collect(item); err != nil {
				return err
			}
		}
	case map[string]interface{}:
		if name, ok := v[config.ClassKey].(string); ok {
			if err := d.create(name, v); err != nil {
				return err
			}
			state, _ := v[config.StateKey].(map[string]interface{})
			for _, sv := range state {
				if err := d.collect(sv); err != nil {
					return err
				}
			}
			return nil
		}
		for _, item := range v {
			if err := d.collect(item); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *decoder) create(name string, doc map[string]interface{}) error {
	idText, _ := doc[config.IDKey].(string)
	id, err := uuid.Parse(idText)
	if err != nil {
		return errors.Wrapf(err, "object of class %s has invalid id %q", name, idText)
	}
	addr, _ := doc[config.AddrKey].(string)
	if addr == "" {
		return errors.Errorf("object %s of class %s has no address", idText, name)
	}
	if _, dup := d.byAddr[addr]; dup {
		return errors.Errorf("duplicate object address %s", addr)
	}

	var c *Class
	if err := asserts.Recover(func() { c = d.r.Class(name) }); err != nil {
		return errors.Wrapf(err, "object %s", idText)
	}
	inst := &Instance{
		id:          id,
		class:       c,
		variables:   make([]evaluator.Object, c.nstate),
		newInUpdate: true,
		privateData: -1,
	}
	for i := range inst.variables {
		inst.variables[i] = evaluator.NULL
	}
	d.byAddr[addr] = inst
	d.byID[id] = inst
	d.pending = append(d.pending, pendingObject{inst: inst, doc: doc})
	return nil
}

// fill decodes the state of every collected object.
func (d *decoder) fill() error {
	for _, p := range d.pending {
		inst, c := p.inst, p.inst.class
		state, _ := p.doc[config.StateKey].(map[string]interface{})
		for name, raw := range state {
			prop := c.Property(name)
			if prop == nil || prop.VariableSlot < 0 {
				log.Printf("deserialize: %s has no stored property %s, skipped", c.name, name)
				continue
			}
			v, err := evaluator.FromGo(raw, d.object)
			if err != nil {
				return errors.Wrapf(err, "%s.%s", c.name, name)
			}
			inst.variables[prop.VariableSlot] = v
		}
		overrides, _ := p.doc[config.OverridesKey].(map[string]interface{})
		for name, raw := range overrides {
			prop := c.Property(name)
			src, ok := raw.(string)
			if prop == nil || !ok {
				log.Printf("deserialize: invalid override %s.%s, skipped", c.name, name)
				continue
			}
			if err := asserts.Recover(func() { inst.override(prop, evaluator.NewString(src)) }); err != nil {
				return errors.Wrapf(err, "override %s.%s", c.name, name)
			}
		}
	}
	d.pending = nil
	return nil
}

// object resolves the object maps met while decoding values.
func (d *decoder) object(m map[string]interface{}) (evaluator.Object, bool, error) {
	if _, ok := m[config.ClassKey]; ok {
		addr, _ := m[config.AddrKey].(string)
		inst, ok := d.byAddr[addr]
		if !ok {
			return nil, false, errors.Errorf("object at %s was not collected", addr)
		}
		return inst, true, nil
	}
	if addr, ok := m[config.RefKey].(string); ok && len(m) == 1 {
		inst, ok := d.byAddr[addr]
		if !ok {
			return nil, false, errors.Errorf("reference to unknown object address %s", addr)
		}
		return inst, true, nil
	}
	if idText, ok := m[config.IDRefKey].(string); ok && len(m) == 1 {
		id, err := uuid.Parse(idText)
		if err != nil {
			return nil, false, errors.Wrapf(err, "invalid object id %q", idText)
		}
		inst, ok := d.byID[id]
		if !ok {
			return nil, false, errors.Errorf("reference to unknown object %s", idText)
		}
		return inst, true, nil
	}
	return nil, false, nil
}

func decodeJSON(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(err, "decoding JSON")
	}
	return v, nil
}

// Deserialize rebuilds an instance graph written by Serialize.
func (r *Registry) Deserialize(data []byte) (*Instance, error) {
	v, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	root, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.New("serialized object must be a JSON object")
	}
	d := newDecoder(r, nil)
	if err := d.collect(root); err != nil {
		return nil, err
	}
	if err := d.fill(); err != nil {
		return nil, err
	}
	obj, ok, err := d.object(root)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("serialized document is not an object")
	}
	return obj.(*Instance), nil
}
