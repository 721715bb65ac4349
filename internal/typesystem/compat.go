package typesystem

// ClassIsA answers class inheritance questions for Compatible. It is wired
// by the class registry; until then only identical class names match.
var ClassIsA = func(derived, base string) bool { return derived == base }

// Compatible reports whether a value statically typed from may be stored
// where to is expected. An unknown (any) source is accepted; the runtime
// check in the evaluator catches what static inference could not.
func Compatible(to, from Type) bool {
	if to == nil || from == nil {
		return true
	}
	if IsAny(to) || IsAny(from) {
		return true
	}

	if u, ok := from.(TUnion); ok {
		for _, m := range u.Types {
			if !Compatible(to, m) {
				return false
			}
		}
		return true
	}
	if u, ok := to.(TUnion); ok {
		for _, m := range u.Types {
			if Compatible(m, from) {
				return true
			}
		}
		return false
	}

	switch t := to.(type) {
	case TCon:
		return conAccepts(t, from)
	case TList:
		switch f := from.(type) {
		case TList:
			return Compatible(t.Elem, f.Elem)
		case TCon:
			return f.Name == "list"
		}
	case TMap:
		switch f := from.(type) {
		case TMap:
			return Compatible(t.Key, f.Key) && Compatible(t.Value, f.Value)
		case TCon:
			return f.Name == "map"
		}
	case TClass:
		if f, ok := from.(TClass); ok {
			return ClassIsA(f.Name, t.Name)
		}
		if f, ok := from.(TCon); ok {
			return f.Name == "object"
		}
	case TFunc:
		switch f := from.(type) {
		case TFunc:
			if len(f.Params) != len(t.Params) {
				return false
			}
			for i := range t.Params {
				if !Compatible(f.Params[i], t.Params[i]) {
					return false
				}
			}
			return Compatible(t.Return, f.Return)
		case TCon:
			return f.Name == "function"
		}
	}
	return false
}

func conAccepts(to TCon, from Type) bool {
	switch f := from.(type) {
	case TCon:
		if to.Name == f.Name {
			return true
		}
		// ints widen to decimals
		return to.Name == "decimal" && f.Name == "int"
	case TList:
		return to.Name == "list"
	case TMap:
		return to.Name == "map"
	case TClass:
		return to.Name == "object"
	case TFunc:
		return to.Name == "function"
	}
	return false
}
