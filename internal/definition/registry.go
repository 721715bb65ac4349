package definition

import (
	"sort"

	"github.com/funvibe/formula/internal/asserts"
)

type registered struct {
	def  Definition
	base string
}

var (
	registry  = map[string]registered{}
	initFuncs []func()
)

// Resolver is consulted by Lookup for names not registered yet. The class
// registry installs one that loads class files on demand.
var Resolver func(id string) (Definition, bool)

// Register records a named definition and the name of its base.
// Registering the same name twice is a configuration error.
func Register(id, baseID string, def Definition) {
	_, exists := registry[id]
	asserts.Check(!exists, "definition %q registered twice", id)
	registry[id] = registered{def: def, base: baseID}
}

// Replace records def under id, overwriting any previous registration.
func Replace(id, baseID string, def Definition) {
	registry[id] = registered{def: def, base: baseID}
}

// Unregister drops a named definition.
func Unregister(id string) {
	delete(registry, id)
}

// Lookup returns a registered definition.
func Lookup(id string) (Definition, bool) {
	r, ok := registry[id]
	if !ok {
		if Resolver != nil {
			return Resolver(id)
		}
		return nil, false
	}
	return r.def, true
}

// IsA reports whether derived is base or inherits from it.
func IsA(derived, base string) bool {
	seen := map[string]bool{}
	for derived != "" && !seen[derived] {
		if derived == base {
			return true
		}
		seen[derived] = true
		r, ok := registry[derived]
		if !ok {
			return false
		}
		derived = r.base
	}
	return false
}

// RegisteredNames lists registered definitions in sorted order.
func RegisteredNames() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AddInit queues a routine that registers builtin definitions.
func AddInit(fn func()) {
	initFuncs = append(initFuncs, fn)
}

// InitAll runs queued init routines once.
func InitAll() {
	fns := initFuncs
	initFuncs = nil
	for _, fn := range fns {
		fn()
	}
}
