package evaluator

import (
	"strconv"
	"strings"

	"github.com/funvibe/formula/internal/ast"
	"github.com/funvibe/formula/internal/typesystem"
)

type ObjectType string

const (
	INTEGER_OBJ  = "INTEGER"
	FLOAT_OBJ    = "FLOAT"
	BOOLEAN_OBJ  = "BOOLEAN"
	NIL_OBJ      = "NIL"
	STRING_OBJ   = "STRING"
	LIST_OBJ     = "LIST"
	MAP_OBJ      = "MAP"
	FUNCTION_OBJ = "FUNCTION"
	BUILTIN_OBJ  = "BUILTIN"
	COMMAND_OBJ  = "COMMAND"
	ERROR_OBJ    = "ERROR"
	LAZY_OBJ     = "LAZY"
	SCOPE_OBJ    = "SCOPE"
	INSTANCE_OBJ = "INSTANCE"
)

type Object interface {
	Type() ObjectType
	Inspect() string
	RuntimeType() typesystem.Type
}

type Integer struct {
	Value int64
}

func (i *Integer) Type() ObjectType             { return INTEGER_OBJ }
func (i *Integer) Inspect() string              { return strconv.FormatInt(i.Value, 10) }
func (i *Integer) RuntimeType() typesystem.Type { return typesystem.Int }

// Float is the decimal type of the formula language.
type Float struct {
	Value float64
}

func (f *Float) Type() ObjectType { return FLOAT_OBJ }
func (f *Float) Inspect() string {
	s := strconv.FormatFloat(f.Value, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
func (f *Float) RuntimeType() typesystem.Type { return typesystem.Decimal }

type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ObjectType             { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string              { return strconv.FormatBool(b.Value) }
func (b *Boolean) RuntimeType() typesystem.Type { return typesystem.Bool }

type Nil struct{}

func (n *Nil) Type() ObjectType             { return NIL_OBJ }
func (n *Nil) Inspect() string              { return "null" }
func (n *Nil) RuntimeType() typesystem.Type { return typesystem.Null }

type String struct {
	Value string
}

func (s *String) Type() ObjectType             { return STRING_OBJ }
func (s *String) Inspect() string              { return s.Value }
func (s *String) RuntimeType() typesystem.Type { return typesystem.String }

var (
	NULL  = &Nil{}
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
)

func nativeBoolToBooleanObject(b bool) *Boolean {
	if b {
		return TRUE
	}
	return FALSE
}

// NewInteger, NewFloat and NewString wrap Go values.
func NewInteger(v int64) *Integer  { return &Integer{Value: v} }
func NewFloat(v float64) *Float    { return &Float{Value: v} }
func NewString(v string) *String   { return &String{Value: v} }
func NewBoolean(v bool) *Boolean   { return nativeBoolToBooleanObject(v) }
func NewList(elems ...Object) *List { return &List{Elements: elems} }

// Error is an evaluation error. It propagates through Eval as a value.
type Error struct {
	Message string
	Line    int
	Column  int
}

func (e *Error) Type() ObjectType { return ERROR_OBJ }
func (e *Error) Inspect() string {
	if e.Line > 0 {
		return "ERROR at " + strconv.Itoa(e.Line) + ":" + strconv.Itoa(e.Column) + ": " + e.Message
	}
	return "ERROR: " + e.Message
}
func (e *Error) RuntimeType() typesystem.Type { return typesystem.Any }

// Function is a closure over the scope its literal was evaluated in.
type Function struct {
	Literal *ast.FunctionLiteral
	Env     Callable
}

func (f *Function) Type() ObjectType { return FUNCTION_OBJ }
func (f *Function) Inspect() string  { return f.Literal.String() }
func (f *Function) RuntimeType() typesystem.Type {
	params := make([]typesystem.Type, len(f.Literal.Parameters))
	for i, p := range f.Literal.Parameters {
		params[i] = p.Type
		if params[i] == nil {
			params[i] = typesystem.Any
		}
	}
	ret := f.Literal.ReturnType
	if ret == nil {
		ret = typesystem.Any
	}
	return typesystem.TFunc{Params: params, Return: ret}
}

// Command is a deferred side effect, executed by the callable that
// receives it.
type Command struct {
	Name    string
	Execute func(target Callable)
}

func (c *Command) Type() ObjectType             { return COMMAND_OBJ }
func (c *Command) Inspect() string              { return "(command " + c.Name + ")" }
func (c *Command) RuntimeType() typesystem.Type { return typesystem.Commands }

// LazyValue carries an unevaluated builtin argument on the VM stack.
type LazyValue struct {
	Arg *ast.LazyArgument
}

func (l *LazyValue) Type() ObjectType             { return LAZY_OBJ }
func (l *LazyValue) Inspect() string              { return "(lazy " + l.Arg.Expr.String() + ")" }
func (l *LazyValue) RuntimeType() typesystem.Type { return typesystem.Any }

func isError(obj Object) bool {
	return obj != nil && obj.Type() == ERROR_OBJ
}

// IsError reports whether obj is an evaluation error.
func IsError(obj Object) bool { return isError(obj) }

// Repr formats obj for display inside containers: strings are quoted.
func Repr(obj Object) string {
	if s, ok := obj.(*String); ok {
		return "'" + strings.ReplaceAll(s.Value, "'", "\\'") + "'"
	}
	return obj.Inspect()
}
