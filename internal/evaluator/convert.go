package evaluator

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/funvibe/formula/internal/config"
)

// ObjectEncoder converts a callable nested in a value to its Go form.
type ObjectEncoder func(c Callable) (interface{}, error)

// ObjectDecoder recognizes a decoded map standing for a callable. ok is
// false when the map is plain data.
type ObjectDecoder func(m map[string]interface{}) (obj Object, ok bool, err error)

// ToGo converts obj to plain Go values suitable for encoding/json and
// yaml.v3: int64, float64, bool, nil, string, []interface{} and
// map[string]interface{}. Callables go through enc.
func ToGo(obj Object, enc ObjectEncoder) (interface{}, error) {
	return toGo(obj, enc, false)
}

// ToWire is ToGo for documents that must decode back to equal values.
// Decimals always carry a fraction or exponent, and maps a JSON object
// cannot reproduce (non-string keys, keys starting with "@", keys out of
// sorted order) are written as {"@map": [[key, value], ...]}.
func ToWire(obj Object, enc ObjectEncoder) (interface{}, error) {
	return toGo(obj, enc, true)
}

func toGo(obj Object, enc ObjectEncoder, exact bool) (interface{}, error) {
	switch o := obj.(type) {
	case *Integer:
		return o.Value, nil
	case *Float:
		if exact {
			return decimalNumber(o.Value)
		}
		return o.Value, nil
	case *Boolean:
		return o.Value, nil
	case *Nil:
		return nil, nil
	case *String:
		return o.Value, nil
	case *List:
		arr := make([]interface{}, len(o.Elements))
		for i, el := range o.Elements {
			v, err := toGo(el, enc, exact)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil
	case *Map:
		if exact && !plainKeys(o) {
			pairs := make([]interface{}, len(o.keys))
			for i, k := range o.keys {
				kv, err := toGo(k, enc, exact)
				if err != nil {
					return nil, err
				}
				v, err := toGo(o.values[i], enc, exact)
				if err != nil {
					return nil, err
				}
				pairs[i] = []interface{}{kv, v}
			}
			return map[string]interface{}{config.MapKey: pairs}, nil
		}
		m := make(map[string]interface{}, o.Len())
		for i, k := range o.keys {
			v, err := toGo(o.values[i], enc, exact)
			if err != nil {
				return nil, err
			}
			m[stringOf(k)] = v
		}
		return m, nil
	case Callable:
		if enc == nil {
			return nil, fmt.Errorf("cannot serialize object %s", TypeName(o))
		}
		return enc(o)
	}
	return nil, fmt.Errorf("cannot serialize value of type %s", TypeName(obj))
}

func decimalNumber(f float64) (json.Number, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "", fmt.Errorf("cannot serialize decimal %v", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return json.Number(s), nil
}

// plainKeys reports whether m survives a trip through a JSON object:
// FromGo rebuilds such objects with string keys in sorted order.
func plainKeys(m *Map) bool {
	prev := ""
	for i, k := range m.keys {
		s, ok := k.(*String)
		if !ok || strings.HasPrefix(s.Value, "@") || (i > 0 && s.Value <= prev) {
			return false
		}
		prev = s.Value
	}
	return true
}

// FromGo converts values produced by encoding/json (with UseNumber or
// not) or yaml.v3 into objects. Maps are passed to dec first.
func FromGo(data interface{}, dec ObjectDecoder) (Object, error) {
	switch v := data.(type) {
	case nil:
		return NULL, nil
	case bool:
		return nativeBoolToBooleanObject(v), nil
	case int:
		return NewInteger(int64(v)), nil
	case int64:
		return NewInteger(v), nil
	case uint64:
		return NewInteger(int64(v)), nil
	case float64:
		if v == float64(int64(v)) {
			return NewInteger(int64(v)), nil
		}
		return NewFloat(v), nil
	case json.Number:
		if n, err := strconv.ParseInt(string(v), 10, 64); err == nil {
			return NewInteger(n), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", string(v))
		}
		return NewFloat(f), nil
	case string:
		return NewString(v), nil
	case []interface{}:
		elems := make([]Object, len(v))
		for i, item := range v {
			obj, err := FromGo(item, dec)
			if err != nil {
				return nil, err
			}
			elems[i] = obj
		}
		return &List{Elements: elems}, nil
	case map[string]interface{}:
		if pairs, ok := v[config.MapKey]; ok && len(v) == 1 {
			return pairsToMap(pairs, dec)
		}
		if dec != nil {
			obj, ok, err := dec(v)
			if err != nil {
				return nil, err
			}
			if ok {
				return obj, nil
			}
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			obj, err := FromGo(v[k], dec)
			if err != nil {
				return nil, err
			}
			m.Set(NewString(k), obj)
		}
		return m, nil
	case map[interface{}]interface{}:
		conv := make(map[string]interface{}, len(v))
		for k, val := range v {
			conv[fmt.Sprintf("%v", k)] = val
		}
		return FromGo(conv, dec)
	}
	return nil, fmt.Errorf("unsupported value type: %T", data)
}

func pairsToMap(data interface{}, dec ObjectDecoder) (Object, error) {
	pairs, ok := data.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s must hold a list of pairs", config.MapKey)
	}
	m := NewMap()
	for _, item := range pairs {
		pair, ok := item.([]interface{})
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("%s entry must be a [key, value] pair", config.MapKey)
		}
		k, err := FromGo(pair[0], dec)
		if err != nil {
			return nil, err
		}
		v, err := FromGo(pair[1], dec)
		if err != nil {
			return nil, err
		}
		m.Set(k, v)
	}
	return m, nil
}

// ToJSON encodes obj as JSON text.
func ToJSON(obj Object, enc ObjectEncoder) (string, error) {
	v, err := ToGo(obj, enc)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FromJSON decodes JSON text into an object.
func FromJSON(text string, dec ObjectDecoder) (Object, error) {
	var data interface{}
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("JSON parse error: %v", err)
	}
	return FromGo(data, dec)
}
