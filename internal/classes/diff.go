package classes

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"reflect"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/funvibe/formula/internal/config"
	"github.com/funvibe/formula/internal/evaluator"
)

// Diff is an encoded change set between two snapshots of an object
// graph. Data is gzip compressed JSON in base64; Size is the length of
// the JSON before compression.
type Diff struct {
	Data string
	Size int
}

// Delta is one decoded change: the identity of the changed object and
// the new values of its changed properties.
type Delta struct {
	ID     uuid.UUID
	Values map[string]interface{}
}

// identityValue encodes v with every instance reduced to its identity,
// so values compare by content and reference identity only.
func identityValue(v evaluator.Object) interface{} {
	enc := newEncoder(false, func(*Instance) bool { return true })
	out, err := enc.value(v)
	if err != nil {
		return err.Error()
	}
	return out
}

// GenerateDiff computes the changes turning before into after. Objects
// are matched by identity: for every object present in both graphs the
// changed state slots are emitted as a delta, and objects only present
// in after are written in full.
func GenerateDiff(before, after evaluator.Object) (*Diff, error) {
	_, old := instancesOf(before)
	order, _ := instancesOf(after)

	enc := newEncoder(false, func(inst *Instance) bool {
		_, ok := old[inst.id]
		return ok
	})

	deltas := []interface{}{}
	for _, a := range order {
		b, ok := old[a.id]
		if !ok {
			if _, err := enc.callable(a); err != nil {
				return nil, err
			}
			continue
		}
		delta := map[string]interface{}{config.DeltaIDKey: a.id.String()}
		for _, p := range a.class.properties {
			if p == nil || p.VariableSlot < 0 {
				continue
			}
			now := a.variables[p.VariableSlot]
			was := evaluator.Object(evaluator.NULL)
			if bp := b.class.Property(p.Name); bp != nil && bp.VariableSlot >= 0 {
				was = b.variables[bp.VariableSlot]
			}
			if reflect.DeepEqual(identityValue(now), identityValue(was)) {
				continue
			}
			v, err := enc.value(now)
			if err != nil {
				return nil, errors.Wrapf(err, "%s.%s", a.class.name, p.Name)
			}
			delta[p.Name] = v
		}
		if len(delta) > 1 {
			deltas = append(deltas, delta)
		}
	}

	objects := enc.objects
	if objects == nil {
		objects = []interface{}{}
	}
	doc := map[string]interface{}{
		config.DeltasKey:  deltas,
		config.ObjectsKey: objects,
	}
	return encodeDiff(doc)
}

func encodeDiff(doc map[string]interface{}) (*Diff, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "encoding diff")
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, errors.Wrap(err, "compressing diff")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "compressing diff")
	}
	return &Diff{Data: base64.StdEncoding.EncodeToString(buf.Bytes()), Size: len(raw)}, nil
}

// JSON returns the uncompressed diff document.
func (d *Diff) JSON() ([]byte, error) {
	packed, err := base64.StdEncoding.DecodeString(d.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decoding diff")
	}
	zr, err := gzip.NewReader(bytes.NewReader(packed))
	if err != nil {
		return nil, errors.Wrap(err, "decompressing diff")
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrap(err, "decompressing diff")
	}
	if d.Size > 0 && len(raw) != d.Size {
		log.Printf("diff: size mismatch, header says %d, got %d", d.Size, len(raw))
	}
	return raw, nil
}

// Deltas decodes the change list of d without applying it.
func (d *Diff) Deltas() ([]Delta, error) {
	doc, err := d.document()
	if err != nil {
		return nil, err
	}
	var out []Delta
	for _, item := range listOf(doc[config.DeltasKey]) {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		idText, _ := m[config.DeltaIDKey].(string)
		id, err := uuid.Parse(idText)
		if err != nil {
			continue
		}
		delta := Delta{ID: id, Values: make(map[string]interface{})}
		for k, v := range m {
			if k != config.DeltaIDKey {
				delta.Values[k] = v
			}
		}
		out = append(out, delta)
	}
	return out, nil
}

func (d *Diff) document() (map[string]interface{}, error) {
	raw, err := d.JSON()
	if err != nil {
		return nil, err
	}
	v, err := decodeJSON(raw)
	if err != nil {
		return nil, err
	}
	doc, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.New("diff document must be a JSON object")
	}
	return doc, nil
}

func listOf(v interface{}) []interface{} {
	l, _ := v.([]interface{})
	return l
}

// ApplyDiff writes the changes of d into the graph rooted at root. New
// objects are created first so deltas may refer to them. Deltas naming
// an object missing from root, or a property the object does not store,
// are logged and skipped; a malformed document is logged and rejected.
func (r *Registry) ApplyDiff(root evaluator.Object, d *Diff) error {
	doc, err := d.document()
	if err != nil {
		log.Printf("apply diff: %v", err)
		return err
	}
	_, known := instancesOf(root)
	dec := newDecoder(r, known)
	if err := dec.collect(listOf(doc[config.ObjectsKey])); err != nil {
		log.Printf("apply diff: %v", err)
		return err
	}
	if err := dec.fill(); err != nil {
		log.Printf("apply diff: %v", err)
		return err
	}

	for _, item := range listOf(doc[config.DeltasKey]) {
		m, ok := item.(map[string]interface{})
		if !ok {
			log.Printf("apply diff: delta is not an object, skipped")
			continue
		}
		idText, _ := m[config.DeltaIDKey].(string)
		id, err := uuid.Parse(idText)
		if err != nil {
			log.Printf("apply diff: invalid delta id %q, skipped", idText)
			continue
		}
		target, ok := dec.byID[id]
		if !ok {
			log.Printf("apply diff: object %s not found, skipped", idText)
			continue
		}
		for name, raw := range m {
			if name == config.DeltaIDKey {
				continue
			}
			p := target.class.Property(name)
			if p == nil || p.VariableSlot < 0 {
				log.Printf("apply diff: %s has no stored property %s, skipped", target.class.name, name)
				continue
			}
			v, err := evaluator.FromGo(raw, dec.object)
			if err != nil {
				log.Printf("apply diff: %s.%s: %v, skipped", target.class.name, name, err)
				continue
			}
			target.variables[p.VariableSlot] = v
		}
	}
	return nil
}
