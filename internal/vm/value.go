package vm

import (
	"math"
	"strconv"

	"github.com/funvibe/formula/internal/evaluator"
)

// ValueType identifies the type of value stored in the Value struct
type ValueType uint8

const (
	ValNil ValueType = iota
	ValInt
	ValFloat
	ValBool
	ValObj // Everything else: strings, lists, maps, instances, functions
)

// Value is a stack-allocated tagged union.
// It avoids heap allocation for ints, decimals, booleans and null.
type Value struct {
	Type ValueType
	Data uint64           // Stores int64 bits, float64 bits, or bool (0/1)
	Obj  evaluator.Object // Holds heap objects
}

func NilVal() Value {
	return Value{Type: ValNil}
}

func IntVal(v int64) Value {
	return Value{Type: ValInt, Data: uint64(v)}
}

func FloatVal(v float64) Value {
	return Value{Type: ValFloat, Data: math.Float64bits(v)}
}

func BoolVal(v bool) Value {
	var data uint64
	if v {
		data = 1
	}
	return Value{Type: ValBool, Data: data}
}

func ObjVal(o evaluator.Object) Value {
	return Value{Type: ValObj, Obj: o}
}

func (v Value) AsInt() int64 {
	return int64(v.Data)
}

func (v Value) AsFloat() float64 {
	return math.Float64frombits(v.Data)
}

func (v Value) AsBool() bool {
	return v.Data == 1
}

// AsObject boxes v for the evaluator.
func (v Value) AsObject() evaluator.Object {
	switch v.Type {
	case ValInt:
		return evaluator.NewInteger(v.AsInt())
	case ValFloat:
		return evaluator.NewFloat(v.AsFloat())
	case ValBool:
		return evaluator.NewBoolean(v.AsBool())
	case ValObj:
		return v.Obj
	}
	return evaluator.NULL
}

// ObjectToValue unboxes obj.
func ObjectToValue(obj evaluator.Object) Value {
	switch o := obj.(type) {
	case *evaluator.Integer:
		return IntVal(o.Value)
	case *evaluator.Float:
		return FloatVal(o.Value)
	case *evaluator.Boolean:
		return BoolVal(o.Value)
	case *evaluator.Nil, nil:
		return NilVal()
	}
	return ObjVal(obj)
}

func (v Value) IsInt() bool   { return v.Type == ValInt }
func (v Value) IsFloat() bool { return v.Type == ValFloat }
func (v Value) IsBool() bool  { return v.Type == ValBool }
func (v Value) IsNil() bool   { return v.Type == ValNil }
func (v Value) IsObj() bool   { return v.Type == ValObj }

// IsError reports whether v holds an evaluation error.
func (v Value) IsError() bool {
	return v.Type == ValObj && evaluator.IsError(v.Obj)
}

// Truthy mirrors evaluator.Truthy without boxing primitives.
func (v Value) Truthy() bool {
	switch v.Type {
	case ValNil:
		return false
	case ValInt, ValBool:
		return v.Data != 0
	case ValFloat:
		return v.AsFloat() != 0
	}
	return evaluator.Truthy(v.Obj)
}

// Equals compares values; ints and decimals compare numerically.
func (v Value) Equals(other Value) bool {
	switch {
	case v.Type == ValInt && other.Type == ValInt:
		return v.Data == other.Data
	case v.IsFloat() && other.IsFloat():
		return v.AsFloat() == other.AsFloat()
	case v.IsInt() && other.IsFloat():
		return float64(v.AsInt()) == other.AsFloat()
	case v.IsFloat() && other.IsInt():
		return v.AsFloat() == float64(other.AsInt())
	case v.IsBool() && other.IsBool():
		return v.Data == other.Data
	case v.IsNil() && other.IsNil():
		return true
	}
	return evaluator.Equals(v.AsObject(), other.AsObject())
}

// Inspect returns string representation
func (v Value) Inspect() string {
	switch v.Type {
	case ValInt:
		return strconv.FormatInt(v.AsInt(), 10)
	case ValObj:
		if v.Obj != nil {
			return v.Obj.Inspect()
		}
	}
	return v.AsObject().Inspect()
}
