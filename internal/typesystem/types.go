package typesystem

import (
	"sort"
	"strings"
)

// Type is the interface for all value types of the formula language.
type Type interface {
	String() string
}

// TCon is a primitive or otherwise unparameterized type (int, string, any...).
type TCon struct {
	Name string
}

func (t TCon) String() string { return t.Name }

// TList is a list whose elements all have type Elem.
type TList struct {
	Elem Type
}

func (t TList) String() string { return "[" + t.Elem.String() + "]" }

// TMap is a keyed collection.
type TMap struct {
	Key   Type
	Value Type
}

func (t TMap) String() string { return "{" + t.Key.String() + " -> " + t.Value.String() + "}" }

// TClass is an instance of a named class.
type TClass struct {
	Name string
}

func (t TClass) String() string { return "class " + t.Name }

// TFunc is a callable with known parameter and return types.
type TFunc struct {
	Params []Type
	Return Type
}

func (t TFunc) String() string {
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.String()
	}
	ret := Any
	if t.Return != nil {
		ret = t.Return
	}
	return "function(" + strings.Join(parts, ",") + ")->" + ret.String()
}

// TUnion is one of several types. Build it with Union so members stay flat
// and unique.
type TUnion struct {
	Types []Type
}

func (t TUnion) String() string {
	parts := make([]string, len(t.Types))
	for i, m := range t.Types {
		parts[i] = m.String()
	}
	return strings.Join(parts, "|")
}

var (
	Any      Type = TCon{Name: "any"}
	Null     Type = TCon{Name: "null"}
	Bool     Type = TCon{Name: "bool"}
	Int      Type = TCon{Name: "int"}
	Decimal  Type = TCon{Name: "decimal"}
	String   Type = TCon{Name: "string"}
	List     Type = TCon{Name: "list"}
	Map      Type = TCon{Name: "map"}
	Object   Type = TCon{Name: "object"}
	Function Type = TCon{Name: "function"}
	Commands Type = TCon{Name: "commands"}
)

var primitives = map[string]Type{
	"any":      Any,
	"null":     Null,
	"bool":     Bool,
	"int":      Int,
	"decimal":  Decimal,
	"string":   String,
	"list":     List,
	"map":      Map,
	"object":   Object,
	"function": Function,
	"commands": Commands,
}

// Union builds a union of ts, flattening nested unions and dropping
// duplicates. A union containing any is any; a single member is returned
// as is.
func Union(ts ...Type) Type {
	seen := make(map[string]bool)
	var members []Type
	var add func(t Type)
	add = func(t Type) {
		if t == nil {
			return
		}
		if u, ok := t.(TUnion); ok {
			for _, m := range u.Types {
				add(m)
			}
			return
		}
		key := t.String()
		if seen[key] {
			return
		}
		seen[key] = true
		members = append(members, t)
	}
	for _, t := range ts {
		add(t)
	}
	for _, m := range members {
		if IsAny(m) {
			return Any
		}
	}
	switch len(members) {
	case 0:
		return Any
	case 1:
		return members[0]
	}
	return TUnion{Types: members}
}

// Without removes drop from a union; a type equal to drop becomes any.
func Without(t Type, drop Type) Type {
	u, ok := t.(TUnion)
	if !ok {
		if Equal(t, drop) {
			return Any
		}
		return t
	}
	var kept []Type
	for _, m := range u.Types {
		if !Equal(m, drop) {
			kept = append(kept, m)
		}
	}
	return Union(kept...)
}

// Equal compares types structurally. Union members compare as sets.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ua, aok := a.(TUnion)
	ub, bok := b.(TUnion)
	if aok && bok {
		return sortedKey(ua) == sortedKey(ub)
	}
	return a.String() == b.String()
}

func sortedKey(u TUnion) string {
	parts := make([]string, len(u.Types))
	for i, m := range u.Types {
		parts[i] = m.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// IsAny reports whether t accepts every value.
func IsAny(t Type) bool {
	c, ok := t.(TCon)
	return ok && c.Name == "any"
}

// IsNullable reports whether null is a member of t.
func IsNullable(t Type) bool {
	if IsAny(t) || Equal(t, Null) {
		return true
	}
	if u, ok := t.(TUnion); ok {
		for _, m := range u.Types {
			if Equal(m, Null) {
				return true
			}
		}
	}
	return false
}

// ClassName returns the class of t when t is a class type or a nullable
// class type.
func ClassName(t Type) (string, bool) {
	switch typ := t.(type) {
	case TClass:
		return typ.Name, true
	case TUnion:
		name := ""
		for _, m := range typ.Types {
			if Equal(m, Null) {
				continue
			}
			c, ok := m.(TClass)
			if !ok || (name != "" && name != c.Name) {
				return "", false
			}
			name = c.Name
		}
		return name, name != ""
	}
	return "", false
}
