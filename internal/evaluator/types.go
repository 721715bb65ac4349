package evaluator

import (
	"github.com/funvibe/formula/internal/typesystem"
)

// Matches reports whether obj is a value of type t.
func Matches(t typesystem.Type, obj Object) bool {
	if t == nil || typesystem.IsAny(t) {
		return true
	}
	switch typ := t.(type) {
	case typesystem.TUnion:
		for _, m := range typ.Types {
			if Matches(m, obj) {
				return true
			}
		}
		return false
	case typesystem.TCon:
		return matchesCon(typ.Name, obj)
	case typesystem.TList:
		l, ok := obj.(*List)
		if !ok {
			return false
		}
		for _, el := range l.Elements {
			if !Matches(typ.Elem, el) {
				return false
			}
		}
		return true
	case typesystem.TMap:
		m, ok := obj.(*Map)
		if !ok {
			return false
		}
		for i, k := range m.keys {
			if !Matches(typ.Key, k) || !Matches(typ.Value, m.values[i]) {
				return false
			}
		}
		return true
	case typesystem.TClass:
		inst, ok := obj.(ClassInstance)
		return ok && typesystem.ClassIsA(inst.ClassName(), typ.Name)
	case typesystem.TFunc:
		f, ok := obj.(*Function)
		return ok && len(f.Literal.Parameters) == len(typ.Params)
	}
	return false
}

func matchesCon(name string, obj Object) bool {
	switch name {
	case "null":
		return obj.Type() == NIL_OBJ
	case "bool":
		return obj.Type() == BOOLEAN_OBJ
	case "int":
		return obj.Type() == INTEGER_OBJ
	case "decimal":
		return obj.Type() == FLOAT_OBJ || obj.Type() == INTEGER_OBJ
	case "string":
		return obj.Type() == STRING_OBJ
	case "list":
		return obj.Type() == LIST_OBJ
	case "map":
		return obj.Type() == MAP_OBJ
	case "object":
		_, ok := obj.(Callable)
		return ok
	case "function":
		return obj.Type() == FUNCTION_OBJ || obj.Type() == BUILTIN_OBJ
	case "commands":
		switch o := obj.(type) {
		case *Command, *Nil:
			return true
		case *List:
			for _, el := range o.Elements {
				if !matchesCon("commands", el) {
					return false
				}
			}
			return true
		}
		return false
	}
	return false
}

// TypeName names obj's runtime type the way type() reports it.
func TypeName(obj Object) string {
	switch o := obj.(type) {
	case ClassInstance:
		return "class " + o.ClassName()
	case *Integer:
		return "int"
	case *Float:
		return "decimal"
	case *Boolean:
		return "bool"
	case *Nil:
		return "null"
	case *String:
		return "string"
	case *List:
		return "list"
	case *Map:
		return "map"
	case *Function, *Builtin:
		return "function"
	case *Command:
		return "commands"
	case Callable:
		return "object"
	}
	return string(obj.Type())
}
