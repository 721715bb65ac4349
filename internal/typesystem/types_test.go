package typesystem

import "testing"

func TestParseAndString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"int", "int"},
		{"int|null", "int|null"},
		{"int | int | null", "int|null"},
		{"[string]", "[string]"},
		{"{string -> [int]}", "{string -> [int]}"},
		{"class Point", "class Point"},
		{"Point|null", "class Point|null"},
		{"class Outer.Inner", "class Outer.Inner"},
		{"function(int,decimal)->bool", "function(int,decimal)->bool"},
		{"function", "function"},
		{"(int|string)|any", "any"},
	}

	for _, tt := range tests {
		got, err := Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tt.input, err)
			continue
		}
		if got.String() != tt.expected {
			t.Errorf("Parse(%q) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{"", "[int", "{int}", "intx", "int|", "function(int"} {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) expected error", input)
		}
	}
}

func TestCompatible(t *testing.T) {
	old := ClassIsA
	defer func() { ClassIsA = old }()
	ClassIsA = func(derived, base string) bool {
		return derived == base || derived == "Dog" && base == "Animal"
	}

	tests := []struct {
		to, from string
		want     bool
	}{
		{"int", "int", true},
		{"decimal", "int", true},
		{"int", "decimal", false},
		{"int|null", "null", true},
		{"int", "int|null", false},
		{"int|string", "int|string", true},
		{"any", "[int]", true},
		{"[decimal]", "[int]", true},
		{"[int]", "[string]", false},
		{"list", "[int]", true},
		{"{string -> int}", "{string -> int}", true},
		{"map", "{string -> int}", true},
		{"class Animal", "class Dog", true},
		{"class Dog", "class Animal", false},
		{"object", "class Dog", true},
		{"function(int)->int", "function(int)->int", true},
		{"function(int)->int", "function(int,int)->int", false},
		{"string", "any", true},
	}

	for _, tt := range tests {
		got := Compatible(MustParse(tt.to), MustParse(tt.from))
		if got != tt.want {
			t.Errorf("Compatible(%s, %s) = %v, want %v", tt.to, tt.from, got, tt.want)
		}
	}
}

func TestWithoutAndNullable(t *testing.T) {
	ty := MustParse("class Point|null")
	if !IsNullable(ty) {
		t.Fatal("expected nullable")
	}
	narrowed := Without(ty, Null)
	if narrowed.String() != "class Point" {
		t.Errorf("Without = %s", narrowed)
	}
	if name, ok := ClassName(ty); !ok || name != "Point" {
		t.Errorf("ClassName = %q, %v", name, ok)
	}
	if !Equal(MustParse("int|string"), MustParse("string|int")) {
		t.Error("unions should compare as sets")
	}
}
