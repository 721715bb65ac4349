package classes

import (
	"log"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/funvibe/formula/internal/asserts"
	"github.com/funvibe/formula/internal/config"
	"github.com/funvibe/formula/internal/definition"
	"github.com/funvibe/formula/internal/evaluator"
	"github.com/funvibe/formula/internal/formula"
	"github.com/funvibe/formula/internal/gc"
	"github.com/funvibe/formula/internal/typesystem"
	"github.com/funvibe/formula/internal/utils"
)

// Registry loads class documents on demand and owns the classes built
// from them. It is not safe for concurrent use.
type Registry struct {
	loader Loader

	docs    map[string]*Doc
	defs    map[string]*definition.ClassDefinition
	classes map[string]*Class
	backup  map[string]*Class

	defining utils.Stack[string]

	testing   bool
	testQueue []*Class

	lib *Library

	// Heap, when set, tracks every instance created through the registry.
	Heap *gc.Heap
}

func NewRegistry(loader Loader) *Registry {
	return &Registry{
		loader:  loader,
		docs:    make(map[string]*Doc),
		defs:    make(map[string]*definition.ClassDefinition),
		classes: make(map[string]*Class),
		backup:  make(map[string]*Class),
	}
}

var defaultRegistry *Registry

// Init installs a process-wide registry over loader. Class names used in
// formula types resolve through it from then on.
func Init(loader Loader) *Registry {
	r := NewRegistry(loader)
	defaultRegistry = r
	definition.Resolver = func(id string) (definition.Definition, bool) {
		if !r.Exists(id) {
			return nil, false
		}
		return r.Definition(id), true
	}
	typesystem.ClassIsA = r.IsDerivedFrom
	return r
}

// Default returns the registry installed by Init.
func Default() *Registry {
	asserts.Check(defaultRegistry != nil, "class registry used before classes.Init")
	return defaultRegistry
}

func (r *Registry) Loader() Loader { return r.loader }

// Names lists the top-level classes the loader knows.
func (r *Registry) Names() []string {
	return r.loader.Names()
}

func (r *Registry) recordDocs(name string, d *Doc) {
	r.docs[name] = d
	if nested, ok := flattenDocs(d.Get("classes")).(*Doc); ok {
		for _, k := range nested.Keys {
			sub, ok := nested.Values[k].(*Doc)
			asserts.Check(ok, "nested class %s.%s must be a map", name, k)
			r.recordDocs(name+"."+k, sub)
		}
	}
}

func (r *Registry) doc(name string) *Doc {
	if d, ok := r.docs[name]; ok {
		return d
	}
	top := utils.RootClassName(name)
	d, err := r.loader.Load(top)
	if err != nil {
		asserts.Fatalf("could not load class %s: %v", name, err)
	}
	r.recordDocs(top, d)
	d, ok := r.docs[name]
	asserts.Check(ok, "could not find class %s", name)
	return d
}

// Exists reports whether a document for name can be found.
func (r *Registry) Exists(name string) bool {
	if _, ok := r.docs[name]; ok {
		return true
	}
	if name == "" {
		return false
	}
	return asserts.Recover(func() { r.doc(name) }) == nil
}

// Definition returns the slot table of class name, building and
// registering it on first use.
func (r *Registry) Definition(name string) *definition.ClassDefinition {
	if d, ok := r.defs[name]; ok {
		return d
	}
	asserts.Check(name != "", "empty class name")
	asserts.Check(!r.defining.Contains(name), "recursive class definition: %s", name)
	defer r.defining.Push(name)()

	doc := r.doc(name)
	var base *definition.ClassDefinition
	baseName := ""
	if bases := doc.Get("bases"); bases != nil {
		list, ok := bases.([]interface{})
		asserts.Check(ok, "bases of class %s must be a list", name)
		asserts.Check(len(list) <= 1, "class %s: multiple inheritance not supported", name)
		if len(list) == 1 {
			baseName, ok = list[0].(string)
			asserts.Check(ok && baseName != "", "class %s: invalid base %v", name, list[0])
			asserts.Check(r.Exists(baseName), "class %s: unknown base class %s", name, baseName)
			base = r.Definition(baseName)
		}
	}

	d := definition.NewClass(name, base)
	d.Entry(config.NumBaseFields - 1).TypeDefinition = r.Library().Definition()

	props := propertiesDoc(doc)
	for _, key := range propertyKeys(doc, props) {
		asserts.Check(key != "", "class %s declares an empty property name", name)
		asserts.Check(!config.IsBaseField(key), "class %s declares reserved property %s", name, key)
		node := props.Values[key]
		read, write := declaredTypes(node, name, key)
		slot := d.AddProperty(key, read, write)
		if n, ok := node.(*Doc); ok {
			if access, ok := n.String("access"); ok {
				switch access {
				case "public":
					d.Entry(slot).PrivateCounter = 0
				case "private":
					d.Entry(slot).PrivateCounter = 1
				default:
					asserts.Fatalf("class %s: unknown access %q for property %s", name, access, key)
				}
			}
		}
	}

	r.defs[name] = d
	definition.Replace(name, baseName, d)
	return d
}

// Class returns the built class name. Nested classes are addressed as
// Outer.Inner.
func (r *Registry) Class(name string) *Class {
	if strings.Contains(name, ".") {
		parts := strings.Split(name, ".")
		c := r.Class(parts[0])
		for _, p := range parts[1:] {
			sub, ok := c.nested[p]
			asserts.Check(ok, "could not find class %s", name)
			c = sub
		}
		return c
	}
	if c, ok := r.classes[name]; ok {
		return c
	}

	var c *Class
	if old, ok := r.backup[name]; ok {
		err := asserts.Recover(func() {
			c = r.buildClass(name, r.doc(name))
			r.buildNested(c)
		})
		if err != nil {
			log.Printf("error reloading class %s, keeping the previous version: %v", name, err)
			for n := range r.docs {
				if utils.RootClassName(n) == name {
					delete(r.docs, n)
				}
			}
			c = old
			r.restore(old)
		}
		delete(r.backup, name)
	} else {
		c = r.buildClass(name, r.doc(name))
		r.buildNested(c)
	}

	r.classes[name] = c
	r.runTests(c)
	return c
}

// restore re-registers the definitions of a backup class and its nested
// classes.
func (r *Registry) restore(c *Class) {
	baseName := ""
	if c.base != nil {
		baseName = c.base.name
	}
	r.defs[c.name] = c.def
	definition.Replace(c.name, baseName, c.def)
	for _, n := range c.nestedNames {
		if sub, ok := c.nested[n]; ok {
			r.restore(sub)
		}
	}
}

// IsDerivedFrom reports whether derived is base or inherits from it.
// Unknown classes derive from nothing.
func (r *Registry) IsDerivedFrom(derived, base string) bool {
	seen := map[string]bool{}
	for derived != "" && !seen[derived] {
		if derived == base {
			return true
		}
		seen[derived] = true
		if !r.Exists(derived) {
			return false
		}
		bases, _ := r.doc(derived).Get("bases").([]interface{})
		if len(bases) == 0 {
			return false
		}
		derived, _ = bases[0].(string)
	}
	return false
}

// Invalidate drops class name, its nested classes and every loaded
// class deriving from one of them, so derived layouts are rebuilt over
// the new base. Built classes are kept as backups for when the next
// build fails.
func (r *Registry) Invalidate(name string) {
	dependents := r.dependents(name)
	r.invalidate(name)
	for _, d := range dependents {
		r.invalidate(d)
	}
}

// dependents returns the root names of loaded classes, other than name,
// with a class whose base chain reaches name or one of its nested
// classes.
func (r *Registry) dependents(name string) []string {
	found := map[string]bool{}
	var visit func(c *Class)
	visit = func(c *Class) {
		root := utils.RootClassName(c.name)
		for b := c.base; b != nil && root != name; b = b.base {
			if utils.RootClassName(b.name) == name {
				found[root] = true
				break
			}
		}
		for _, n := range c.nestedNames {
			if sub, ok := c.nested[n]; ok {
				visit(sub)
			}
		}
	}
	for _, c := range r.classes {
		visit(c)
	}
	out := make([]string, 0, len(found))
	for n := range found {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) invalidate(name string) {
	log.Printf("invalidate class: %s", name)
	matches := func(n string) bool { return utils.RootClassName(n) == name }
	for n := range r.docs {
		if matches(n) {
			delete(r.docs, n)
		}
	}
	for n := range r.defs {
		if matches(n) {
			delete(r.defs, n)
			definition.Unregister(n)
		}
	}
	if c, ok := r.classes[name]; ok {
		r.backup[name] = c
		delete(r.classes, name)
	}
	r.lib = nil
}

// Reload invalidates every loaded class.
func (r *Registry) Reload() {
	seen := map[string]bool{}
	for n := range r.docs {
		seen[utils.RootClassName(n)] = true
	}
	for n := range r.classes {
		seen[n] = true
	}
	for n := range seen {
		r.Invalidate(n)
	}
}

// LoadAll builds every class the loader knows, returning the first
// failure.
func (r *Registry) LoadAll() error {
	for _, name := range r.loader.Names() {
		if err := asserts.Recover(func() { r.Class(name) }); err != nil {
			return errors.Wrapf(err, "loading class %s", name)
		}
	}
	return nil
}

// runTests runs the embedded self-tests of c and its nested classes.
// Tests of classes built while another class is under test wait until
// that run finishes.
func (r *Registry) runTests(c *Class) {
	if r.testing {
		r.testQueue = append(r.testQueue, c)
		return
	}
	func() {
		defer utils.Swap(&r.testing, true)()
		r.runClassTests(c)
	}()

	for len(r.testQueue) > 0 {
		next := r.testQueue[0]
		r.testQueue = r.testQueue[1:]
		r.runTests(next)
	}
}

func (r *Registry) runClassTests(c *Class) {
	tests := c.tests
	c.tests = nil
	if len(tests) > 0 {
		vars := evaluator.NewMap()
		scope := evaluator.MapCallableFrom(
			[]string{"vars", config.LibField},
			[]evaluator.Object{vars, r.Library()},
		)
		for i, t := range tests {
			test, ok := t.(*Doc)
			asserts.Check(ok, "class %s: test %d must be a map", c.name, i)
			if src, ok := test.String("command"); ok {
				res := r.testEval(c, i, src, scope)
				asserts.Check(scope.ExecuteCommand(res), "class %s test %d: %s did not produce commands", c.name, i, src)
			}
			if src, ok := test.String("assert"); ok {
				res := r.testEval(c, i, src, scope)
				if !evaluator.Truthy(res) {
					msg := ""
					if m, ok := test.String("message"); ok {
						msg = ": " + evaluator.Repr(r.testEval(c, i, m, scope))
					}
					asserts.Fatalf("unit test %d for class %s failed: %s%s", i, c.name, src, msg)
				}
			}
		}
	}
	for _, n := range c.nestedNames {
		if sub, ok := c.nested[n]; ok {
			r.runClassTests(sub)
		}
	}
}

func (r *Registry) testEval(c *Class, i int, src string, scope evaluator.Callable) evaluator.Object {
	f, err := formula.New(src, nil)
	if err != nil {
		asserts.Fatalf("class %s test %d: %v", c.name, i, err)
	}
	res, err := f.Execute(scope)
	if err != nil {
		asserts.Fatalf("class %s test %d: %v", c.name, i, err)
	}
	return res
}
