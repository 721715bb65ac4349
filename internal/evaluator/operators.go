package evaluator

import (
	"math"
	"strings"
)

// Truthy reports the boolean value of obj: null, false, zero and empty
// containers are false.
func Truthy(obj Object) bool {
	switch o := obj.(type) {
	case *Boolean:
		return o.Value
	case *Nil:
		return false
	case *Integer:
		return o.Value != 0
	case *Float:
		return o.Value != 0
	case *String:
		return o.Value != ""
	case *List:
		return len(o.Elements) > 0
	case *Map:
		return o.Len() > 0
	}
	return obj != nil
}

// Equals compares values deeply; ints and decimals compare numerically.
func Equals(a, b Object) bool {
	if a == b {
		return true
	}
	switch x := a.(type) {
	case *Integer:
		switch y := b.(type) {
		case *Integer:
			return x.Value == y.Value
		case *Float:
			return float64(x.Value) == y.Value
		}
	case *Float:
		switch y := b.(type) {
		case *Integer:
			return x.Value == float64(y.Value)
		case *Float:
			return x.Value == y.Value
		}
	case *String:
		if y, ok := b.(*String); ok {
			return x.Value == y.Value
		}
	case *Boolean:
		if y, ok := b.(*Boolean); ok {
			return x.Value == y.Value
		}
	case *Nil:
		_, ok := b.(*Nil)
		return ok
	case *List:
		y, ok := b.(*List)
		if !ok || len(x.Elements) != len(y.Elements) {
			return false
		}
		for i := range x.Elements {
			if !Equals(x.Elements[i], y.Elements[i]) {
				return false
			}
		}
		return true
	case *Map:
		y, ok := b.(*Map)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for i, k := range x.keys {
			v, found := y.Get(k)
			if !found || !Equals(x.values[i], v) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders a and b: -1, 0 or 1. ok is false for unordered pairs.
func Compare(a, b Object) (int, bool) {
	if isNumber(a) && isNumber(b) {
		if ai, ok := a.(*Integer); ok {
			if bi, ok := b.(*Integer); ok {
				return cmpInt(ai.Value, bi.Value), true
			}
		}
		x, y := toFloat(a), toFloat(b)
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	switch x := a.(type) {
	case *String:
		if y, ok := b.(*String); ok {
			return strings.Compare(x.Value, y.Value), true
		}
	case *Boolean:
		if y, ok := b.(*Boolean); ok {
			return cmpInt(boolInt(x.Value), boolInt(y.Value)), true
		}
	case *Nil:
		if _, ok := b.(*Nil); ok {
			return 0, true
		}
		return -1, true
	case *List:
		y, ok := b.(*List)
		if !ok {
			return 0, false
		}
		for i := 0; i < len(x.Elements) && i < len(y.Elements); i++ {
			c, ok := Compare(x.Elements[i], y.Elements[i])
			if !ok {
				return 0, false
			}
			if c != 0 {
				return c, true
			}
		}
		return cmpInt(int64(len(x.Elements)), int64(len(y.Elements))), true
	}
	if _, ok := b.(*Nil); ok {
		return 1, true
	}
	return 0, false
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func isNumber(o Object) bool {
	switch o.(type) {
	case *Integer, *Float:
		return true
	}
	return false
}

func toFloat(o Object) float64 {
	switch n := o.(type) {
	case *Integer:
		return float64(n.Value)
	case *Float:
		return n.Value
	}
	return 0
}

// UnaryOp applies a prefix operator.
func UnaryOp(op string, right Object) Object {
	if isError(right) {
		return right
	}
	switch op {
	case "not":
		return nativeBoolToBooleanObject(!Truthy(right))
	case "-":
		switch r := right.(type) {
		case *Integer:
			return NewInteger(-r.Value)
		case *Float:
			return NewFloat(-r.Value)
		}
		return newError("unknown operator: -%s", right.Type())
	}
	return newError("unknown operator: %s%s", op, right.Type())
}

// BinaryOp applies an infix operator. "and" and "or" are not handled
// here since they short-circuit.
func BinaryOp(op string, left, right Object) Object {
	if isError(left) {
		return left
	}
	if isError(right) {
		return right
	}

	switch op {
	case "=":
		return nativeBoolToBooleanObject(Equals(left, right))
	case "!=":
		return nativeBoolToBooleanObject(!Equals(left, right))
	case "<", "<=", ">", ">=":
		c, ok := Compare(left, right)
		if !ok {
			return newError("cannot compare %s and %s", left.Type(), right.Type())
		}
		switch op {
		case "<":
			return nativeBoolToBooleanObject(c < 0)
		case "<=":
			return nativeBoolToBooleanObject(c <= 0)
		case ">":
			return nativeBoolToBooleanObject(c > 0)
		}
		return nativeBoolToBooleanObject(c >= 0)
	case "in":
		return evalIn(left, right)
	case "not in":
		res := evalIn(left, right)
		if isError(res) {
			return res
		}
		return nativeBoolToBooleanObject(!Truthy(res))
	}

	if op == "+" {
		if _, ok := left.(*Nil); ok {
			return right
		}
		if _, ok := right.(*Nil); ok {
			return left
		}
	}

	if isNumber(left) && isNumber(right) {
		return numberOp(op, left, right)
	}

	switch l := left.(type) {
	case *String:
		switch op {
		case "+":
			return NewString(l.Value + stringOf(right))
		case "*":
			if n, ok := right.(*Integer); ok {
				if n.Value < 0 {
					return NewString("")
				}
				return NewString(strings.Repeat(l.Value, int(n.Value)))
			}
		}
	case *List:
		switch op {
		case "+":
			if r, ok := right.(*List); ok {
				elems := make([]Object, 0, len(l.Elements)+len(r.Elements))
				elems = append(elems, l.Elements...)
				return &List{Elements: append(elems, r.Elements...)}
			}
		case "*":
			if n, ok := right.(*Integer); ok {
				var elems []Object
				for i := int64(0); i < n.Value; i++ {
					elems = append(elems, l.Elements...)
				}
				return &List{Elements: elems}
			}
		}
	case *Map:
		if r, ok := right.(*Map); ok && op == "+" {
			m := l.Copy()
			for i, k := range r.keys {
				m.Set(k, r.values[i])
			}
			return m
		}
	}
	if r, ok := right.(*String); ok && op == "+" {
		return NewString(stringOf(left) + r.Value)
	}
	return newError("unsupported operand types for %s: %s and %s", op, left.Type(), right.Type())
}

func stringOf(o Object) string {
	if s, ok := o.(*String); ok {
		return s.Value
	}
	return o.Inspect()
}

func numberOp(op string, left, right Object) Object {
	li, lok := left.(*Integer)
	ri, rok := right.(*Integer)
	if lok && rok {
		a, b := li.Value, ri.Value
		switch op {
		case "+":
			return NewInteger(a + b)
		case "-":
			return NewInteger(a - b)
		case "*":
			return NewInteger(a * b)
		case "/":
			if b == 0 {
				return newError("division by zero")
			}
			return NewInteger(a / b)
		case "%":
			if b == 0 {
				return newError("division by zero")
			}
			return NewInteger(a % b)
		case "^":
			if b >= 0 {
				return NewInteger(intPow(a, b))
			}
			return NewFloat(math.Pow(float64(a), float64(b)))
		}
		return newError("unknown operator: INTEGER %s INTEGER", op)
	}

	a, b := toFloat(left), toFloat(right)
	switch op {
	case "+":
		return NewFloat(a + b)
	case "-":
		return NewFloat(a - b)
	case "*":
		return NewFloat(a * b)
	case "/":
		if b == 0 {
			return newError("division by zero")
		}
		return NewFloat(a / b)
	case "%":
		if b == 0 {
			return newError("division by zero")
		}
		return NewFloat(math.Mod(a, b))
	case "^":
		return NewFloat(math.Pow(a, b))
	}
	return newError("unknown operator: %s %s %s", left.Type(), op, right.Type())
}

func intPow(base, exp int64) int64 {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

func evalIn(left, right Object) Object {
	switch r := right.(type) {
	case *List:
		for _, el := range r.Elements {
			if Equals(left, el) {
				return TRUE
			}
		}
		return FALSE
	case *Map:
		_, ok := r.Get(left)
		return nativeBoolToBooleanObject(ok)
	case *String:
		l, ok := left.(*String)
		if !ok {
			return newError("'in <string>' requires string as left operand, not %s", left.Type())
		}
		return nativeBoolToBooleanObject(strings.Contains(r.Value, l.Value))
	case *Nil:
		return FALSE
	}
	return newError("argument of type %s is not iterable", right.Type())
}

// Index reads left[index] for lists, maps and strings. Negative list
// indices count from the end.
func Index(left, index Object) Object {
	if isError(left) {
		return left
	}
	if isError(index) {
		return index
	}
	switch l := left.(type) {
	case *List:
		i, ok := index.(*Integer)
		if !ok {
			return newError("list index must be int, got %s", index.Type())
		}
		n := int64(len(l.Elements))
		idx := i.Value
		if idx < 0 {
			idx += n
		}
		if idx < 0 || idx >= n {
			return newError("list index %d out of range (size %d)", i.Value, n)
		}
		return l.Elements[idx]
	case *Map:
		if v, ok := l.Get(index); ok {
			return v
		}
		return NULL
	case *String:
		i, ok := index.(*Integer)
		if !ok {
			return newError("string index must be int, got %s", index.Type())
		}
		runes := []rune(l.Value)
		idx := i.Value
		if idx < 0 {
			idx += int64(len(runes))
		}
		if idx < 0 || idx >= int64(len(runes)) {
			return newError("string index %d out of range", i.Value)
		}
		return NewString(string(runes[idx]))
	case Callable:
		if k, ok := index.(*String); ok {
			return l.QueryValue(k.Value)
		}
	case *Nil:
		return NULL
	}
	return newError("index operator not supported: %s[%s]", left.Type(), index.Type())
}
