package formula

import (
	"context"
	"fmt"
	"reflect"

	"github.com/funvibe/formula/internal/asserts"
	"github.com/funvibe/formula/internal/classes"
	"github.com/funvibe/formula/internal/config"
	"github.com/funvibe/formula/internal/evaluator"
	engine "github.com/funvibe/formula/internal/formula"
	"github.com/funvibe/formula/internal/gc"
	"github.com/funvibe/formula/internal/journal"
	"github.com/funvibe/formula/internal/typesystem"
)

// Engine wraps a class registry and a global scope and provides a
// high-level embedding API. Like the registry it is not safe for
// concurrent use.
type Engine struct {
	registry   *classes.Registry
	globals    *evaluator.MapCallable
	marshaller *Marshaller
	journal    *journal.Journal

	heap  *gc.Heap
	queue gc.WorkQueue
	// pinned holds the instances of Objects handed to the host until
	// they are released.
	pinned map[*classes.Instance]struct{}
}

// New creates an engine serving classes from sources, a map of class
// name to YAML or JSON document.
func New(sources map[string]string) *Engine {
	l := classes.NewMemoryLoader()
	for name, src := range sources {
		l.Add(name, src)
	}
	return newEngine(classes.Init(l))
}

// Open creates an engine configured by settings: classes are read from
// settings.ClassDir and, when settings.Journal is set, diffs are
// journaled there.
func Open(settings *config.Settings) (*Engine, error) {
	engine.Configure(settings)
	e := newEngine(classes.Init(classes.NewDirLoader(settings.ClassDir)))
	if settings.Journal != "" {
		j, err := journal.Open(settings.Journal)
		if err != nil {
			return nil, err
		}
		e.journal = j
	}
	return e, nil
}

func newEngine(r *classes.Registry) *Engine {
	e := &Engine{
		registry: r,
		globals:  evaluator.NewMapCallable(),
		heap:     gc.NewHeap(),
		pinned:   make(map[*classes.Instance]struct{}),
	}
	r.Heap = e.heap
	e.marshaller = NewMarshaller(e)
	e.globals.MutateValue(config.LibField, r.Library())
	return e
}

// Close releases the journal, if any.
func (e *Engine) Close() error {
	if e.journal == nil {
		return nil
	}
	return e.journal.Close()
}

// Registry exposes the underlying class registry.
func (e *Engine) Registry() *classes.Registry { return e.registry }

// Bind makes a Go function callable from formulas under name. Arguments
// are converted to the parameter types; a trailing error result becomes
// an evaluation error.
func (e *Engine) Bind(name string, fn interface{}) error {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return fmt.Errorf("bind %s: %T is not a function", name, fn)
	}
	t := rv.Type()
	max := t.NumIn()
	if t.IsVariadic() {
		max = -1
	}
	min := t.NumIn()
	if t.IsVariadic() {
		min--
	}
	e.globals.MutateValue(name, &evaluator.Builtin{
		Name:    name,
		MinArgs: min,
		MaxArgs: max,
		Return:  func([]typesystem.Type) typesystem.Type { return inferType(t) },
		Fn: func(c *evaluator.CallContext) evaluator.Object {
			res, err := e.hostCall(rv, c.Args)
			if err != nil {
				return c.Errorf("%v", err)
			}
			return res
		},
	})
	return nil
}

func (e *Engine) hostCall(fn reflect.Value, args []evaluator.Object) (evaluator.Object, error) {
	fnType := fn.Type()
	numIn := fnType.NumIn()

	goArgs := make([]reflect.Value, len(args))
	for i, arg := range args {
		var targetType reflect.Type
		if fnType.IsVariadic() && i >= numIn-1 {
			targetType = fnType.In(numIn - 1).Elem()
		} else {
			targetType = fnType.In(i)
		}
		val, err := e.marshaller.FromValue(arg, targetType)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		goArgs[i] = val
	}

	results := fn.Call(goArgs)
	if n := len(results); n > 0 && fnType.Out(n-1) == errorType {
		if err, _ := results[n-1].Interface().(error); err != nil {
			return nil, err
		}
		results = results[:n-1]
	}
	switch len(results) {
	case 0:
		return evaluator.NULL, nil
	case 1:
		return e.marshaller.ToValue(results[0].Interface())
	}
	elements := make([]evaluator.Object, len(results))
	for i, res := range results {
		val, err := e.marshaller.ToValue(res.Interface())
		if err != nil {
			return nil, err
		}
		elements[i] = val
	}
	return evaluator.NewList(elements...), nil
}

// Set sets a global variable visible to formulas run by Eval.
func (e *Engine) Set(name string, val interface{}) error {
	obj, err := e.marshaller.ToValue(val)
	if err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	e.globals.MutateValue(name, obj)
	return nil
}

// Get retrieves a global variable.
func (e *Engine) Get(name string) (interface{}, error) {
	if e.globals.Definition().Slot(name) < 0 {
		return nil, fmt.Errorf("variable '%s' not found", name)
	}
	return e.marshaller.Export(e.globals.QueryValue(name))
}

// Names lists the globals in the order they were first set.
func (e *Engine) Names() []string {
	inputs := e.globals.Inputs()
	names := make([]string, len(inputs))
	for i, in := range inputs {
		names[i] = in.Name
	}
	return names
}

// Eval evaluates src against the globals. Failures of any kind are
// returned as errors.
func (e *Engine) Eval(src string) (interface{}, error) {
	obj, err := e.eval(src, e.globals)
	if err != nil {
		return nil, err
	}
	return e.marshaller.Export(obj)
}

func (e *Engine) eval(src string, scope evaluator.Callable) (evaluator.Object, error) {
	var result evaluator.Object
	err := asserts.Recover(func() {
		f, err := engine.New(src, scope.Definition())
		if err == nil {
			result, err = f.Execute(scope)
		}
		raise(err)
	})
	return result, err
}

// raise rethrows err inside a recovery scope so Recover returns it.
func raise(err error) {
	switch err.(type) {
	case nil:
	case *asserts.ValidationFailure, *asserts.Failure:
		panic(err)
	default:
		panic(&asserts.Failure{Message: err.Error()})
	}
}

// Create instantiates class with constructor arguments.
func (e *Engine) Create(class string, args map[string]interface{}) (obj *Object, err error) {
	var ctorArgs evaluator.Object = evaluator.NULL
	if args != nil {
		if ctorArgs, err = e.marshaller.ToValue(args); err != nil {
			return nil, err
		}
	}
	err = asserts.Recover(func() {
		obj = e.wrap(e.registry.Create(class, ctorArgs))
	})
	return obj, err
}

// Clone deep-copies the object graph of o, keeping identities, for use
// as the "before" side of a diff.
func (e *Engine) Clone(o *Object) *Object {
	return e.wrap(classes.DeepClone(o.inst).(*classes.Instance))
}

// Diff encodes the changes from before to after.
func (e *Engine) Diff(before, after *Object) (*classes.Diff, error) {
	return classes.GenerateDiff(before.inst, after.inst)
}

// Apply writes d into the graph rooted at o.
func (e *Engine) Apply(o *Object, d *classes.Diff) error {
	return e.registry.ApplyDiff(o.inst, d)
}

// Snapshot starts a journal for o. Later Record calls append to it.
func (e *Engine) Snapshot(ctx context.Context, o *Object) error {
	if e.journal == nil {
		return fmt.Errorf("no journal configured")
	}
	return e.journal.Snapshot(ctx, o.inst)
}

// Record journals the changes from before to after.
func (e *Engine) Record(ctx context.Context, before, after *Object) error {
	if e.journal == nil {
		return fmt.Errorf("no journal configured")
	}
	_, err := e.journal.Record(ctx, before.inst, after.inst)
	return err
}

// Marshal serializes the object graph of o.
func (e *Engine) Marshal(o *Object) ([]byte, error) {
	return classes.Serialize(o.inst)
}

// Unmarshal rebuilds an object graph serialized by Marshal.
func (e *Engine) Unmarshal(data []byte) (*Object, error) {
	inst, err := e.registry.Deserialize(data)
	if err != nil {
		return nil, err
	}
	return e.wrap(inst), nil
}

func (e *Engine) wrap(inst *classes.Instance) *Object {
	e.pinned[inst] = struct{}{}
	return &Object{e: e, inst: inst}
}

// Collect queues a collection of the instances created by the engine.
// Objects held by the host stay alive until released, as does anything
// reachable from them or from the globals; the rest have their
// references broken when the queued work runs. done, when not nil,
// receives the statistics.
func (e *Engine) Collect(done func(gc.Stats)) {
	e.queue.ScheduleCollect(e.heap, e.roots, done)
}

// RunPending runs the queued work and returns the first failure.
func (e *Engine) RunPending() error {
	var first error
	for _, res := range e.queue.RunPending() {
		if res.Err != nil && first == nil {
			first = fmt.Errorf("%s: %w", res.Name, res.Err)
		}
	}
	return first
}

// Pending reports how many work items are queued.
func (e *Engine) Pending() int { return e.queue.Pending() }

// Live reports how many created instances the engine still tracks.
func (e *Engine) Live() int { return e.heap.Len() }

func (e *Engine) roots() []gc.Collectible {
	roots := make([]gc.Collectible, 0, len(e.pinned)+1)
	roots = append(roots, e.globals)
	for inst := range e.pinned {
		roots = append(roots, inst)
	}
	return roots
}

// Object is a class instance handed out by an Engine.
type Object struct {
	e    *Engine
	inst *classes.Instance
}

// Release lets the next collection sweep o unless it is still
// reachable from the globals or another held object.
func (o *Object) Release() { delete(o.e.pinned, o.inst) }

func (o *Object) ID() string    { return o.inst.ID().String() }
func (o *Object) Class() string { return o.inst.ClassName() }
func (o *Object) String() string {
	return o.inst.Inspect()
}

// Get reads property name.
func (o *Object) Get(name string) (v interface{}, err error) {
	err = asserts.Recover(func() {
		obj := o.inst.QueryValue(name)
		if errObj, ok := obj.(*evaluator.Error); ok {
			panic(&asserts.ValidationFailure{Message: errObj.Inspect()})
		}
		v, err = o.e.marshaller.Export(obj)
		raise(err)
	})
	return v, err
}

// Set writes property name, through its setter if it has one.
func (o *Object) Set(name string, val interface{}) error {
	obj, err := o.e.marshaller.ToValue(val)
	if err != nil {
		return err
	}
	return asserts.Recover(func() { o.inst.MutateValue(name, obj) })
}

// Eval evaluates src with the object as scope.
func (o *Object) Eval(src string) (interface{}, error) {
	obj, err := o.e.eval(src, o.inst)
	if err != nil {
		return nil, err
	}
	return o.e.marshaller.Export(obj)
}

// Run evaluates src with the object as scope and executes the commands
// it yields against the object.
func (o *Object) Run(src string) error {
	return asserts.Recover(func() {
		f, err := engine.New(src, o.inst.Definition())
		if err == nil {
			err = f.ExecuteCommands(o.inst)
		}
		raise(err)
	})
}
