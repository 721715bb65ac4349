package formula

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/funvibe/formula/internal/classes"
	"github.com/funvibe/formula/internal/evaluator"
	"github.com/funvibe/formula/internal/typesystem"
)

var (
	errorType  = reflect.TypeOf((*error)(nil)).Elem()
	objectType = reflect.TypeOf((*evaluator.Object)(nil)).Elem()
)

// Marshaller handles conversion between Go and formula values.
type Marshaller struct {
	// e owns the Objects exported for class instances.
	e *Engine
}

func NewMarshaller(e *Engine) *Marshaller {
	return &Marshaller{e: e}
}

// ToValue converts a Go value to a formula Object.
func (m *Marshaller) ToValue(val interface{}) (evaluator.Object, error) {
	switch v := val.(type) {
	case nil:
		return evaluator.NULL, nil
	case evaluator.Object:
		return v, nil
	case *Object:
		return v.inst, nil
	}

	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return evaluator.NewInteger(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return evaluator.NewInteger(int64(v.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return evaluator.NewFloat(v.Float()), nil
	case reflect.Bool:
		return evaluator.NewBoolean(v.Bool()), nil
	case reflect.String:
		return evaluator.NewString(v.String()), nil
	case reflect.Slice, reflect.Array:
		elements := make([]evaluator.Object, v.Len())
		for i := 0; i < v.Len(); i++ {
			el, err := m.ToValue(v.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			elements[i] = el
		}
		return evaluator.NewList(elements...), nil
	case reflect.Map:
		return m.goMapToMap(v)
	case reflect.Ptr:
		if v.IsNil() {
			return evaluator.NULL, nil
		}
		return m.ToValue(v.Elem().Interface())
	}
	return nil, fmt.Errorf("unsupported Go type %T", val)
}

// goMapToMap converts a Go map. Keys are sorted by their printed form so
// the resulting map iterates deterministically.
func (m *Marshaller) goMapToMap(v reflect.Value) (*evaluator.Map, error) {
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	result := evaluator.NewMap()
	for _, k := range keys {
		key, err := m.ToValue(k.Interface())
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		val, err := m.ToValue(v.MapIndex(k).Interface())
		if err != nil {
			return nil, fmt.Errorf("map value: %w", err)
		}
		result.Set(key, val)
	}
	return result, nil
}

// Export converts an Object to its natural Go form: int64, float64,
// bool, string, nil, []interface{}, map[string]interface{} or *Object
// for class instances.
func (m *Marshaller) Export(obj evaluator.Object) (interface{}, error) {
	switch o := obj.(type) {
	case nil, *evaluator.Nil:
		return nil, nil
	case *evaluator.Error:
		return nil, fmt.Errorf("%s", o.Message)
	case *evaluator.List:
		out := make([]interface{}, len(o.Elements))
		for i, el := range o.Elements {
			v, err := m.Export(el)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *evaluator.Map:
		out := make(map[string]interface{}, o.Len())
		for i, k := range o.Keys() {
			v, err := m.Export(o.Values()[i])
			if err != nil {
				return nil, err
			}
			if ks, ok := k.(*evaluator.String); ok {
				out[ks.Value] = v
			} else {
				out[k.Inspect()] = v
			}
		}
		return out, nil
	case *classes.Instance:
		return m.e.wrap(o), nil
	}
	return evaluator.ToGo(obj, nil)
}

// FromValue converts an Object to a Go value of type target.
func (m *Marshaller) FromValue(obj evaluator.Object, target reflect.Type) (reflect.Value, error) {
	if target == objectType || target.Kind() == reflect.Interface && reflect.TypeOf(obj).Implements(target) && target != anyType {
		return reflect.ValueOf(obj), nil
	}
	if _, isNull := obj.(*evaluator.Nil); isNull {
		return reflect.Zero(target), nil
	}

	switch o := obj.(type) {
	case *evaluator.List:
		if target.Kind() == reflect.Slice {
			slice := reflect.MakeSlice(target, len(o.Elements), len(o.Elements))
			for i, el := range o.Elements {
				v, err := m.FromValue(el, target.Elem())
				if err != nil {
					return reflect.Value{}, err
				}
				slice.Index(i).Set(v)
			}
			return slice, nil
		}
	case *evaluator.Map:
		if target.Kind() == reflect.Map {
			result := reflect.MakeMapWithSize(target, o.Len())
			for i, k := range o.Keys() {
				kv, err := m.FromValue(k, target.Key())
				if err != nil {
					return reflect.Value{}, fmt.Errorf("map key: %w", err)
				}
				vv, err := m.FromValue(o.Values()[i], target.Elem())
				if err != nil {
					return reflect.Value{}, fmt.Errorf("map value: %w", err)
				}
				result.SetMapIndex(kv, vv)
			}
			return result, nil
		}
	}

	v, err := m.Export(obj)
	if err != nil {
		return reflect.Value{}, err
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(target):
		out := reflect.New(target).Elem()
		out.Set(rv)
		return out, nil
	case isNumber(rv.Kind()) && isNumber(target.Kind()):
		return rv.Convert(target), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %s to %s", evaluator.TypeName(obj), target)
}

var anyType = reflect.TypeOf((*interface{})(nil)).Elem()

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// inferType gives the static type of a bound Go function.
func inferType(t reflect.Type) typesystem.Type {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return typesystem.Int
	case reflect.Float32, reflect.Float64:
		return typesystem.Decimal
	case reflect.Bool:
		return typesystem.Bool
	case reflect.String:
		return typesystem.String
	case reflect.Slice, reflect.Array:
		return typesystem.TList{Elem: inferType(t.Elem())}
	case reflect.Map:
		return typesystem.TMap{Key: inferType(t.Key()), Value: inferType(t.Elem())}
	case reflect.Func:
		var results []reflect.Type
		for i := 0; i < t.NumOut(); i++ {
			if t.Out(i) != errorType {
				results = append(results, t.Out(i))
			}
		}
		switch len(results) {
		case 0:
			return typesystem.Null
		case 1:
			return inferType(results[0])
		}
		return typesystem.List
	}
	return typesystem.Any
}
