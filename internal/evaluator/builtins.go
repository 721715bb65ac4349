package evaluator

import (
	"sort"

	"github.com/funvibe/formula/internal/ast"
	"github.com/funvibe/formula/internal/typesystem"
)

// ScopeKind selects the names a builtin binds around a lazy argument.
type ScopeKind int

const (
	ScopeNone ScopeKind = iota
	ScopeIteration
	ScopeCompare
	ScopeError
)

// Names returns the names bound by a scope of kind k.
func (k ScopeKind) Names() []string {
	switch k {
	case ScopeIteration:
		return IterationNames
	case ScopeCompare:
		return CompareNames
	case ScopeError:
		return ErrorNames
	}
	return nil
}

// Builtin is an entry of the function dispatch table.
type Builtin struct {
	Name    string
	MinArgs int
	MaxArgs int // -1 for variadic

	// Lazy lists the argument positions passed unevaluated, with the
	// scope the builtin evaluates them in.
	Lazy map[int]ScopeKind

	// Return infers the static result type from the argument types.
	// Lazy positions carry the type of the expression in its scope.
	Return func(args []typesystem.Type) typesystem.Type

	// ScopeTypes gives the types of the names bound for lazy argument i,
	// given the eager argument types.
	ScopeTypes func(i int, args []typesystem.Type) []typesystem.Type

	Fn func(c *CallContext) Object
}

func (b *Builtin) Type() ObjectType             { return BUILTIN_OBJ }
func (b *Builtin) Inspect() string              { return "builtin " + b.Name }
func (b *Builtin) RuntimeType() typesystem.Type { return typesystem.Function }

// IsLazy reports whether argument i is passed unevaluated.
func (b *Builtin) IsLazy(i int) bool {
	_, ok := b.Lazy[i]
	return ok
}

// ScopeKindOf returns the scope of lazy argument i.
func (b *Builtin) ScopeKindOf(i int) ScopeKind {
	return b.Lazy[i]
}

var builtins = map[string]*Builtin{}

// Register adds b to the dispatch table, replacing any builtin of the
// same name. Host packages register their own functions this way.
func Register(b *Builtin) {
	builtins[b.Name] = b
}

func LookupBuiltin(name string) (*Builtin, bool) {
	b, ok := builtins[name]
	return b, ok
}

// BuiltinNames lists the dispatch table in sorted order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CallContext is what a builtin sees of its call.
type CallContext struct {
	Eval  *Evaluator
	Scope Callable
	Call  *ast.CallExpression

	// Args holds evaluated arguments; lazy positions are nil.
	Args []Object
	// Lazy holds the unevaluated arguments; eager positions are nil.
	Lazy []*ast.LazyArgument
}

func (c *CallContext) Len() int { return len(c.Args) }

// Arg returns argument i, or null when absent.
func (c *CallContext) Arg(i int) Object {
	if i >= len(c.Args) || c.Args[i] == nil {
		return NULL
	}
	return c.Args[i]
}

// HasArg reports whether argument i was passed.
func (c *CallContext) HasArg(i int) bool {
	return i < len(c.Args)
}

// EvalLazy evaluates lazy argument i in scope.
func (c *CallContext) EvalLazy(i int, scope Callable) Object {
	return c.Eval.Eval(c.Lazy[i].Expr, scope)
}

func (c *CallContext) pool(i int, kind ScopeKind) *scopePool {
	base := 0
	if i < len(c.Lazy) && c.Lazy[i] != nil {
		base = c.Lazy[i].Base
	}
	return newScopePool(c.Scope, base, kind.Names())
}

// Errorf builds an error naming the builtin.
func (c *CallContext) Errorf(format string, a ...interface{}) *Error {
	name := "builtin"
	if c.Call != nil {
		if n, ok := c.Call.CalleeName(); ok {
			name = n
		}
	}
	err := newError(format, a...)
	err.Message = name + ": " + err.Message
	return err
}

func returns(t typesystem.Type) func([]typesystem.Type) typesystem.Type {
	return func([]typesystem.Type) typesystem.Type { return t }
}

func argType(args []typesystem.Type, i int) typesystem.Type {
	if i < len(args) && args[i] != nil {
		return args[i]
	}
	return typesystem.Any
}

// elemType is the element type of a list or the value type of a map.
func elemType(t typesystem.Type) typesystem.Type {
	switch typ := t.(type) {
	case typesystem.TList:
		return typ.Elem
	case typesystem.TMap:
		return typ.Value
	}
	return typesystem.Any
}

func keyType(t typesystem.Type) typesystem.Type {
	if m, ok := t.(typesystem.TMap); ok {
		return m.Key
	}
	return typesystem.Null
}

// iterationTypes types value, index, key and context for iterating the
// collection in argument 0.
func iterationTypes(i int, args []typesystem.Type) []typesystem.Type {
	coll := argType(args, 0)
	return []typesystem.Type{elemType(coll), typesystem.Int, keyType(coll), typesystem.Object}
}

func compareTypes(i int, args []typesystem.Type) []typesystem.Type {
	e := elemType(argType(args, 0))
	return []typesystem.Type{e, e}
}
