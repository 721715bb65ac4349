package classes

import (
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/funvibe/formula/internal/evaluator"
)

// Doc is a mapping node of a class document. Keys keep document order,
// which fixes the slot order of the properties declared in it.
type Doc struct {
	Keys   []string
	Values map[string]interface{}
}

func newDoc() *Doc {
	return &Doc{Values: make(map[string]interface{})}
}

// Get returns the value under key, or nil.
func (d *Doc) Get(key string) interface{} {
	if d == nil {
		return nil
	}
	return d.Values[key]
}

func (d *Doc) Has(key string) bool {
	if d == nil {
		return false
	}
	_, ok := d.Values[key]
	return ok
}

func (d *Doc) set(key string, v interface{}) {
	if _, ok := d.Values[key]; !ok {
		d.Keys = append(d.Keys, key)
	}
	d.Values[key] = v
}

// String returns the value under key if it is a string.
func (d *Doc) String(key string) (string, bool) {
	s, ok := d.Get(key).(string)
	return s, ok
}

// ParseDoc decodes a YAML or JSON class document. The top level must be
// a mapping.
func ParseDoc(data []byte) (*Doc, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrap(err, "parsing class document")
	}
	if len(root.Content) == 0 {
		return newDoc(), nil
	}
	v, err := decodeNode(root.Content[0])
	if err != nil {
		return nil, err
	}
	d, ok := v.(*Doc)
	if !ok {
		return nil, errors.Errorf("class document must be a mapping, got %T", v)
	}
	return d, nil
}

func decodeNode(n *yaml.Node) (interface{}, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return decodeNode(n.Alias)
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return decodeNode(n.Content[0])
	case yaml.SequenceNode:
		items := make([]interface{}, len(n.Content))
		for i, c := range n.Content {
			v, err := decodeNode(c)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil
	case yaml.MappingNode:
		d := newDoc()
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind == yaml.ScalarNode && k.Tag == "!!merge" {
				merged, err := decodeNode(v)
				if err != nil {
					return nil, err
				}
				if md, ok := merged.(*Doc); ok {
					for _, mk := range md.Keys {
						d.set(mk, md.Values[mk])
					}
				}
				continue
			}
			val, err := decodeNode(v)
			if err != nil {
				return nil, err
			}
			d.set(k.Value, val)
		}
		return d, nil
	}
	var v interface{}
	if err := n.Decode(&v); err != nil {
		return nil, errors.Wrapf(err, "line %d", n.Line)
	}
	return v, nil
}

// flattenDocs merges a list of mappings into one; other values pass
// through unchanged.
func flattenDocs(v interface{}) interface{} {
	list, ok := v.([]interface{})
	if !ok || len(list) == 0 {
		return v
	}
	out := newDoc()
	for _, item := range list {
		if d, ok := flattenDocs(item).(*Doc); ok {
			for _, k := range d.Keys {
				out.set(k, d.Values[k])
			}
		}
	}
	return out
}

// toObject converts a document value to a runtime value. Mappings keep
// their key order.
func toObject(v interface{}) (evaluator.Object, error) {
	switch val := v.(type) {
	case *Doc:
		m := evaluator.NewMap()
		for _, k := range val.Keys {
			obj, err := toObject(val.Values[k])
			if err != nil {
				return nil, err
			}
			m.Set(evaluator.NewString(k), obj)
		}
		return m, nil
	case []interface{}:
		elems := make([]evaluator.Object, len(val))
		for i, item := range val {
			obj, err := toObject(item)
			if err != nil {
				return nil, err
			}
			elems[i] = obj
		}
		return evaluator.NewList(elems...), nil
	case float64:
		return evaluator.NewFloat(val), nil
	}
	obj, err := evaluator.FromGo(v, nil)
	if err != nil {
		return nil, fmt.Errorf("class document value: %w", err)
	}
	return obj, nil
}
