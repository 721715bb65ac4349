package typesystem

import (
	"fmt"
	"strings"
	"unicode"
)

// Parse reads a type expression such as "int|null", "[string]",
// "{string -> int}", "class Point" or "function(int,int)->bool".
func Parse(src string) (Type, error) {
	p := &typeParser{input: src}
	p.next()
	t, err := p.parseUnion()
	if err != nil {
		return nil, err
	}
	if p.tok != "" {
		return nil, fmt.Errorf("unexpected %q in type %q", p.tok, src)
	}
	return t, nil
}

// MustParse is Parse for type literals known to be valid.
func MustParse(src string) Type {
	t, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return t
}

type typeParser struct {
	input string
	pos   int
	tok   string
}

func (p *typeParser) next() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
	if p.pos >= len(p.input) {
		p.tok = ""
		return
	}
	start := p.pos
	ch := p.input[p.pos]
	switch {
	case ch == '-' && p.pos+1 < len(p.input) && p.input[p.pos+1] == '>':
		p.pos += 2
	case strings.ContainsRune("|[]{}(),", rune(ch)):
		p.pos++
	case isTypeIdentChar(ch):
		for p.pos < len(p.input) && isTypeIdentChar(p.input[p.pos]) {
			p.pos++
		}
	default:
		p.pos++
	}
	p.tok = p.input[start:p.pos]
}

func isTypeIdentChar(ch byte) bool {
	return ch == '_' || ch == '.' || ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func (p *typeParser) expect(tok string) error {
	if p.tok != tok {
		return fmt.Errorf("expected %q in type %q, got %q", tok, p.input, p.tok)
	}
	p.next()
	return nil
}

func (p *typeParser) parseUnion() (Type, error) {
	first, err := p.parseSingle()
	if err != nil {
		return nil, err
	}
	members := []Type{first}
	for p.tok == "|" {
		p.next()
		t, err := p.parseSingle()
		if err != nil {
			return nil, err
		}
		members = append(members, t)
	}
	return Union(members...), nil
}

func (p *typeParser) parseSingle() (Type, error) {
	switch p.tok {
	case "":
		return nil, fmt.Errorf("unexpected end of type %q", p.input)
	case "(":
		p.next()
		t, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		return t, p.expect(")")
	case "[":
		p.next()
		elem, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		return TList{Elem: elem}, p.expect("]")
	case "{":
		p.next()
		key, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		if err := p.expect("->"); err != nil {
			return nil, err
		}
		value, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		return TMap{Key: key, Value: value}, p.expect("}")
	case "class", "obj":
		p.next()
		name := p.tok
		if name == "" || !isTypeIdentChar(name[0]) {
			return nil, fmt.Errorf("expected class name in type %q", p.input)
		}
		p.next()
		return TClass{Name: name}, nil
	case "function":
		p.next()
		if p.tok != "(" {
			return Function, nil
		}
		p.next()
		var params []Type
		for p.tok != ")" {
			t, err := p.parseUnion()
			if err != nil {
				return nil, err
			}
			params = append(params, t)
			if p.tok == "," {
				p.next()
			} else if p.tok != ")" {
				return nil, fmt.Errorf("expected ',' or ')' in type %q", p.input)
			}
		}
		p.next()
		ret := Any
		if p.tok == "->" {
			p.next()
			r, err := p.parseSingle()
			if err != nil {
				return nil, err
			}
			ret = r
		}
		return TFunc{Params: params, Return: ret}, nil
	}

	name := p.tok
	if t, ok := primitives[name]; ok {
		p.next()
		return t, nil
	}
	if name[0] >= 'A' && name[0] <= 'Z' {
		p.next()
		return TClass{Name: name}, nil
	}
	return nil, fmt.Errorf("unknown type %q in %q", name, p.input)
}
