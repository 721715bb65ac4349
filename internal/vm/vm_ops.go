package vm

import (
	"github.com/funvibe/formula/internal/evaluator"
)

// binaryOp applies an infix opcode. Ints and decimals take a fast path;
// everything else is boxed and handed to evaluator.BinaryOp so both
// backends share one definition of the operators.
func binaryOp(op Opcode, a, b Value) (Value, evaluator.Object) {
	switch op {
	case OP_EQ:
		return BoolVal(a.Equals(b)), nil
	case OP_NE:
		return BoolVal(!a.Equals(b)), nil
	}

	// Fast path for integers
	if a.IsInt() && b.IsInt() {
		aVal, bVal := a.AsInt(), b.AsInt()
		switch op {
		case OP_ADD:
			return IntVal(aVal + bVal), nil
		case OP_SUB:
			return IntVal(aVal - bVal), nil
		case OP_MUL:
			return IntVal(aVal * bVal), nil
		case OP_DIV:
			if bVal != 0 {
				return IntVal(aVal / bVal), nil
			}
		case OP_MOD:
			if bVal != 0 {
				return IntVal(aVal % bVal), nil
			}
		case OP_LT:
			return BoolVal(aVal < bVal), nil
		case OP_LE:
			return BoolVal(aVal <= bVal), nil
		case OP_GT:
			return BoolVal(aVal > bVal), nil
		case OP_GE:
			return BoolVal(aVal >= bVal), nil
		}
	}

	// Fast path for decimals, with ints promoted
	if (a.IsFloat() || a.IsInt()) && (b.IsFloat() || b.IsInt()) && (a.IsFloat() || b.IsFloat()) {
		aVal, bVal := toFloat(a), toFloat(b)
		switch op {
		case OP_ADD:
			return FloatVal(aVal + bVal), nil
		case OP_SUB:
			return FloatVal(aVal - bVal), nil
		case OP_MUL:
			return FloatVal(aVal * bVal), nil
		case OP_DIV:
			if bVal != 0 {
				return FloatVal(aVal / bVal), nil
			}
		case OP_LT:
			return BoolVal(aVal < bVal), nil
		case OP_LE:
			return BoolVal(aVal <= bVal), nil
		case OP_GT:
			return BoolVal(aVal > bVal), nil
		case OP_GE:
			return BoolVal(aVal >= bVal), nil
		}
	}

	// Slow path: strings, lists, maps, membership, errors
	res := evaluator.BinaryOp(operatorNames[op], a.AsObject(), b.AsObject())
	if evaluator.IsError(res) {
		return Value{}, res
	}
	return ObjectToValue(res), nil
}

func toFloat(v Value) float64 {
	if v.IsInt() {
		return float64(v.AsInt())
	}
	return v.AsFloat()
}
