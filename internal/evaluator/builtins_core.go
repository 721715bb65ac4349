package evaluator

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/funvibe/formula/internal/asserts"
	"github.com/funvibe/formula/internal/typesystem"
)

func init() {
	same := func(args []typesystem.Type) typesystem.Type { return argType(args, 0) }
	elem := func(args []typesystem.Type) typesystem.Type {
		return typesystem.Union(elemType(argType(args, 0)), typesystem.Null)
	}

	for _, b := range []*Builtin{
		{Name: "size", MinArgs: 1, MaxArgs: 1, Return: returns(typesystem.Int), Fn: builtinSize},
		{Name: "keys", MinArgs: 1, MaxArgs: 1, Fn: builtinKeys,
			Return: func(args []typesystem.Type) typesystem.Type {
				return typesystem.TList{Elem: keyType(argType(args, 0))}
			}},
		{Name: "values", MinArgs: 1, MaxArgs: 1, Fn: builtinValues,
			Return: func(args []typesystem.Type) typesystem.Type {
				return typesystem.TList{Elem: elemType(argType(args, 0))}
			}},
		{Name: "range", MinArgs: 1, MaxArgs: 3, Return: returns(typesystem.TList{Elem: typesystem.Int}), Fn: builtinRange},
		{Name: "str", MinArgs: 1, MaxArgs: 1, Return: returns(typesystem.String), Fn: builtinStr},
		{Name: "int", MinArgs: 1, MaxArgs: 1, Return: returns(typesystem.Int), Fn: builtinInt},
		{Name: "decimal", MinArgs: 1, MaxArgs: 1, Return: returns(typesystem.Decimal), Fn: builtinDecimal},
		{Name: "abs", MinArgs: 1, MaxArgs: 1, Return: same, Fn: builtinAbs},
		{Name: "min", MinArgs: 1, MaxArgs: -1, Return: extremeType, Fn: func(c *CallContext) Object { return extreme(c, -1) }},
		{Name: "max", MinArgs: 1, MaxArgs: -1, Return: extremeType, Fn: func(c *CallContext) Object { return extreme(c, 1) }},
		{Name: "sqrt", MinArgs: 1, MaxArgs: 1, Return: returns(typesystem.Decimal), Fn: mathFn(math.Sqrt, false)},
		{Name: "floor", MinArgs: 1, MaxArgs: 1, Return: returns(typesystem.Int), Fn: mathFn(math.Floor, true)},
		{Name: "ceil", MinArgs: 1, MaxArgs: 1, Return: returns(typesystem.Int), Fn: mathFn(math.Ceil, true)},
		{Name: "round", MinArgs: 1, MaxArgs: 1, Return: returns(typesystem.Int), Fn: mathFn(math.Round, true)},
		{Name: "head", MinArgs: 1, MaxArgs: 1, Return: elem, Fn: builtinHead},
		{Name: "tail", MinArgs: 1, MaxArgs: 1, Return: same, Fn: builtinTail},
		{Name: "reverse", MinArgs: 1, MaxArgs: 1, Return: same, Fn: builtinReverse},
		{Name: "unique", MinArgs: 1, MaxArgs: 1, Return: same, Fn: builtinUnique},
		{Name: "concat", MinArgs: 0, MaxArgs: -1, Fn: builtinConcat,
			Return: func(args []typesystem.Type) typesystem.Type {
				elems := make([]typesystem.Type, len(args))
				for i, a := range args {
					elems[i] = elemType(a)
				}
				return typesystem.TList{Elem: typesystem.Union(elems...)}
			}},
		{Name: "join", MinArgs: 1, MaxArgs: 2, Return: returns(typesystem.String), Fn: builtinJoin},
		{Name: "split", MinArgs: 1, MaxArgs: 2, Return: returns(typesystem.TList{Elem: typesystem.String}), Fn: builtinSplit},
		{Name: "upper", MinArgs: 1, MaxArgs: 1, Return: returns(typesystem.String), Fn: stringFn(strings.ToUpper)},
		{Name: "lower", MinArgs: 1, MaxArgs: 1, Return: returns(typesystem.String), Fn: stringFn(strings.ToLower)},
		{Name: "contains", MinArgs: 2, MaxArgs: 2, Return: returns(typesystem.Bool),
			Fn: func(c *CallContext) Object { return evalIn(c.Arg(1), c.Arg(0)) }},
		{Name: "type", MinArgs: 1, MaxArgs: 1, Return: returns(typesystem.String),
			Fn: func(c *CallContext) Object { return NewString(TypeName(c.Arg(0))) }},
		{Name: "null_or", MinArgs: 2, MaxArgs: 2, Fn: builtinNullOr,
			Return: func(args []typesystem.Type) typesystem.Type {
				return typesystem.Union(typesystem.Without(argType(args, 0), typesystem.Null), argType(args, 1))
			}},
		{Name: "debug", MinArgs: 0, MaxArgs: -1, Return: returns(typesystem.Commands), Fn: builtinDebug},
		{Name: "assert", MinArgs: 1, MaxArgs: 2, Return: returns(typesystem.Bool), Fn: builtinAssert},
	} {
		Register(b)
	}
}

func builtinSize(c *CallContext) Object {
	switch v := c.Arg(0).(type) {
	case *List:
		return NewInteger(int64(len(v.Elements)))
	case *Map:
		return NewInteger(int64(v.Len()))
	case *String:
		return NewInteger(int64(len([]rune(v.Value))))
	case *Nil:
		return NewInteger(0)
	case Callable:
		return NewInteger(int64(len(v.Inputs())))
	}
	return c.Errorf("unsupported argument %s", TypeName(c.Arg(0)))
}

func builtinKeys(c *CallContext) Object {
	switch v := c.Arg(0).(type) {
	case *Map:
		return &List{Elements: append([]Object(nil), v.keys...)}
	case Callable:
		var out []Object
		for _, in := range v.Inputs() {
			out = append(out, NewString(in.Name))
		}
		return &List{Elements: out}
	case *Nil:
		return &List{}
	}
	return c.Errorf("expected map, got %s", TypeName(c.Arg(0)))
}

func builtinValues(c *CallContext) Object {
	switch v := c.Arg(0).(type) {
	case *Map:
		return &List{Elements: append([]Object(nil), v.values...)}
	case *List:
		return v
	case *Nil:
		return &List{}
	}
	return c.Errorf("expected map, got %s", TypeName(c.Arg(0)))
}

// range(n), range(start, end) and range(start, end, step); end is
// exclusive.
func builtinRange(c *CallContext) Object {
	ints := make([]int64, c.Len())
	for i := range ints {
		n, ok := c.Arg(i).(*Integer)
		if !ok {
			return c.Errorf("argument %d must be int, got %s", i+1, TypeName(c.Arg(i)))
		}
		ints[i] = n.Value
	}
	start, end, step := int64(0), ints[0], int64(1)
	if len(ints) > 1 {
		start, end = ints[0], ints[1]
	}
	if len(ints) > 2 {
		step = ints[2]
	}
	if step == 0 {
		return c.Errorf("step must not be zero")
	}
	out := []Object{}
	for i := start; (step > 0 && i < end) || (step < 0 && i > end); i += step {
		out = append(out, NewInteger(i))
	}
	return &List{Elements: out}
}

func builtinStr(c *CallContext) Object {
	return NewString(stringOf(c.Arg(0)))
}

func builtinInt(c *CallContext) Object {
	switch v := c.Arg(0).(type) {
	case *Integer:
		return v
	case *Float:
		return NewInteger(int64(v.Value))
	case *Boolean:
		return NewInteger(boolInt(v.Value))
	case *String:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Value), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
			if ferr != nil {
				return c.Errorf("cannot convert %q to int", v.Value)
			}
			n = int64(f)
		}
		return NewInteger(n)
	case *Nil:
		return NewInteger(0)
	}
	return c.Errorf("cannot convert %s to int", TypeName(c.Arg(0)))
}

func builtinDecimal(c *CallContext) Object {
	switch v := c.Arg(0).(type) {
	case *Integer:
		return NewFloat(float64(v.Value))
	case *Float:
		return v
	case *String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
		if err != nil {
			return c.Errorf("cannot convert %q to decimal", v.Value)
		}
		return NewFloat(f)
	case *Nil:
		return NewFloat(0)
	}
	return c.Errorf("cannot convert %s to decimal", TypeName(c.Arg(0)))
}

func builtinAbs(c *CallContext) Object {
	switch v := c.Arg(0).(type) {
	case *Integer:
		if v.Value < 0 {
			return NewInteger(-v.Value)
		}
		return v
	case *Float:
		return NewFloat(math.Abs(v.Value))
	}
	return c.Errorf("expected number, got %s", TypeName(c.Arg(0)))
}

func extremeType(args []typesystem.Type) typesystem.Type {
	if len(args) == 1 {
		return typesystem.Union(elemType(args[0]), typesystem.Null)
	}
	return typesystem.Union(args...)
}

// extreme implements min (sign -1) and max (sign 1) over either the
// arguments or a single list argument.
func extreme(c *CallContext, sign int) Object {
	items := c.Args
	if c.Len() == 1 {
		switch v := c.Arg(0).(type) {
		case *List:
			items = v.Elements
		case *Map:
			items = v.values
		}
	}
	if len(items) == 0 {
		return NULL
	}
	best := items[0]
	for _, it := range items[1:] {
		cmp, ok := Compare(it, best)
		if !ok {
			return c.Errorf("cannot compare %s and %s", TypeName(it), TypeName(best))
		}
		if cmp*sign > 0 {
			best = it
		}
	}
	return best
}

func mathFn(fn func(float64) float64, toInt bool) func(*CallContext) Object {
	return func(c *CallContext) Object {
		if !isNumber(c.Arg(0)) {
			return c.Errorf("expected number, got %s", TypeName(c.Arg(0)))
		}
		r := fn(toFloat(c.Arg(0)))
		if math.IsNaN(r) {
			return c.Errorf("result is not a number")
		}
		if toInt {
			return NewInteger(int64(r))
		}
		return NewFloat(r)
	}
}

func builtinHead(c *CallContext) Object {
	switch v := c.Arg(0).(type) {
	case *List:
		if len(v.Elements) == 0 {
			return NULL
		}
		return v.Elements[0]
	case *String:
		if v.Value == "" {
			return NULL
		}
		return NewString(string([]rune(v.Value)[0]))
	case *Nil:
		return NULL
	}
	return c.Errorf("expected list, got %s", TypeName(c.Arg(0)))
}

func builtinTail(c *CallContext) Object {
	switch v := c.Arg(0).(type) {
	case *List:
		if len(v.Elements) == 0 {
			return &List{}
		}
		return &List{Elements: append([]Object(nil), v.Elements[1:]...)}
	case *String:
		r := []rune(v.Value)
		if len(r) == 0 {
			return v
		}
		return NewString(string(r[1:]))
	case *Nil:
		return &List{}
	}
	return c.Errorf("expected list, got %s", TypeName(c.Arg(0)))
}

func builtinReverse(c *CallContext) Object {
	switch v := c.Arg(0).(type) {
	case *List:
		n := len(v.Elements)
		out := make([]Object, n)
		for i, el := range v.Elements {
			out[n-1-i] = el
		}
		return &List{Elements: out}
	case *String:
		r := []rune(v.Value)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return NewString(string(r))
	}
	return c.Errorf("expected list or string, got %s", TypeName(c.Arg(0)))
}

func builtinUnique(c *CallContext) Object {
	list, errObj := listArg(c, 0)
	if errObj != nil {
		return errObj
	}
	seen := NewMap()
	out := []Object{}
	for _, el := range list.Elements {
		if _, dup := seen.Get(el); dup {
			continue
		}
		seen.Set(el, TRUE)
		out = append(out, el)
	}
	return &List{Elements: out}
}

func builtinConcat(c *CallContext) Object {
	out := []Object{}
	for i := range c.Args {
		list, errObj := listArg(c, i)
		if errObj != nil {
			return errObj
		}
		out = append(out, list.Elements...)
	}
	return &List{Elements: out}
}

func builtinJoin(c *CallContext) Object {
	list, errObj := listArg(c, 0)
	if errObj != nil {
		return errObj
	}
	sep := ""
	if c.HasArg(1) {
		sep = stringOf(c.Arg(1))
	}
	parts := make([]string, len(list.Elements))
	for i, el := range list.Elements {
		parts[i] = stringOf(el)
	}
	return NewString(strings.Join(parts, sep))
}

func builtinSplit(c *CallContext) Object {
	s, ok := c.Arg(0).(*String)
	if !ok {
		return c.Errorf("expected string, got %s", TypeName(c.Arg(0)))
	}
	var parts []string
	if c.HasArg(1) {
		parts = strings.Split(s.Value, stringOf(c.Arg(1)))
	} else {
		parts = strings.Fields(s.Value)
	}
	out := make([]Object, len(parts))
	for i, p := range parts {
		out[i] = NewString(p)
	}
	return &List{Elements: out}
}

func stringFn(fn func(string) string) func(*CallContext) Object {
	return func(c *CallContext) Object {
		s, ok := c.Arg(0).(*String)
		if !ok {
			return c.Errorf("expected string, got %s", TypeName(c.Arg(0)))
		}
		return NewString(fn(s.Value))
	}
}

func builtinNullOr(c *CallContext) Object {
	if c.Arg(0) == NULL {
		return c.Arg(1)
	}
	return c.Arg(0)
}

// debug prints its arguments when the command executes.
func builtinDebug(c *CallContext) Object {
	parts := make([]string, c.Len())
	for i := range c.Args {
		parts[i] = stringOf(c.Arg(i))
	}
	out := c.Eval.Out
	msg := strings.Join(parts, " ")
	return &Command{Name: "debug", Execute: func(Callable) {
		if out != nil {
			fmt.Fprintln(out, msg)
		}
	}}
}

// assert raises a validation failure when its condition is false.
func builtinAssert(c *CallContext) Object {
	if Truthy(c.Arg(0)) {
		return TRUE
	}
	msg := "assertion failed"
	if c.HasArg(1) {
		msg = stringOf(c.Arg(1))
	}
	src := ""
	if c.Call != nil {
		src = c.Call.String()
	}
	asserts.Validation(src, "%s", msg)
	return FALSE
}
