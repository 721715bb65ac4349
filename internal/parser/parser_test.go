package parser

import (
	"testing"

	"github.com/funvibe/formula/internal/ast"
	"github.com/funvibe/formula/internal/lexer"
	"github.com/funvibe/formula/internal/pipeline"
)

func parse(t *testing.T, input string) (*ast.Formula, *pipeline.PipelineContext) {
	t.Helper()
	ctx := &pipeline.PipelineContext{SourceCode: input}
	p := New(lexer.New(input).Tokens(), ctx)
	return p.ParseFormula(), ctx
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"-a ^ 2", "((-a) ^ 2)"},
		{"2 ^ 3 ^ 2", "(2 ^ (3 ^ 2))"},
		{"not a = b", "(not (a = b))"},
		{"a == b", "(a = b)"},
		{"x not in xs and y", "((x not in xs) and y)"},
		{"a + 1 in xs or b", "(((a + 1) in xs) or b)"},
		{"a < b = true", "((a < b) = true)"},
		{"a.b[0](c)", "a.b[0](c)"},
		{"10 % 3 - 1", "((10 % 3) - 1)"},
	}

	for _, tt := range tests {
		f, ctx := parse(t, tt.input)
		if len(ctx.Errors) > 0 {
			t.Errorf("%q: unexpected errors: %v", tt.input, ctx.Errors)
			continue
		}
		if got := f.String(); got != tt.expected {
			t.Errorf("%q: expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}

func TestLiteralsAndControl(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"{a: 1, 'b': [2, 3.5]}", `{"a": 1, "b": [2, 3.5]}`},
		{"{}", "{}"},
		{"[1, 2,]", "[1, 2]"},
		{"if(a, 1, 2)", "if(a, 1, 2)"},
		{"if(a, 1, b, 2)", "if(a, 1, b, 2)"},
		{"x + y where x = 1, y = x", "(x + y) where x = 1, y = x"},
		{"(v where v = 2) * 3", "(v where v = 2 * 3)"},
		{"set(x, 1); set(y, 2)", "set(x, 1); set(y, 2)"},
		{"null", "null"},
		{"def(int a, b) a + b", "def (int a, b) (a + b)"},
	}

	for _, tt := range tests {
		f, ctx := parse(t, tt.input)
		if len(ctx.Errors) > 0 {
			t.Errorf("%q: unexpected errors: %v", tt.input, ctx.Errors)
			continue
		}
		if got := f.String(); got != tt.expected {
			t.Errorf("%q: expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}

func TestNamedRecursiveFunction(t *testing.T) {
	f, ctx := parse(t, "def fact(n) base n <= 1: 1 recursive: n * fact(n - 1); fact(5)")
	if len(ctx.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", ctx.Errors)
	}
	where, ok := f.Body.(*ast.WhereExpression)
	if !ok {
		t.Fatalf("expected WhereExpression, got %T", f.Body)
	}
	if len(where.Names) != 1 || where.Names[0] != "fact" {
		t.Fatalf("names = %v", where.Names)
	}
	fn := where.Values[0].(*ast.FunctionLiteral)
	if len(fn.Guards) != 1 {
		t.Fatalf("guards = %d", len(fn.Guards))
	}
	if fn.Guards[0].Condition.String() != "(n <= 1)" {
		t.Errorf("guard = %s", fn.Guards[0].Condition)
	}
	if fn.Body.String() != "(n * fact((n - 1)))" {
		t.Errorf("body = %s", fn.Body)
	}
	if names := fn.SlotNames(); len(names) != 2 || names[1] != "fact" {
		t.Errorf("slot names = %v", names)
	}
	if where.Body.String() != "fact(5)" {
		t.Errorf("body = %s", where.Body)
	}
}

func TestNamedFunctionWhereBody(t *testing.T) {
	f, ctx := parse(t, "def down(n) base n <= 0: 0 recursive: down(m) where m = n - 1; down(3)")
	if len(ctx.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", ctx.Errors)
	}
	fn := f.Body.(*ast.WhereExpression).Values[0].(*ast.FunctionLiteral)
	body, ok := fn.Body.(*ast.WhereExpression)
	if !ok {
		t.Fatalf("expected the where clause to bind to the function body, got %T", fn.Body)
	}
	if body.Names[0] != "m" {
		t.Errorf("names = %v", body.Names)
	}
}

func TestTypedParameters(t *testing.T) {
	f, ctx := parse(t, "def(Point|null p, int n) -> int|null n")
	if len(ctx.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", ctx.Errors)
	}
	fn := f.Body.(*ast.FunctionLiteral)
	if fn.Parameters[0].Type.String() != "class Point|null" {
		t.Errorf("param type = %s", fn.Parameters[0].Type)
	}
	if fn.ReturnType.String() != "int|null" {
		t.Errorf("return type = %s", fn.ReturnType)
	}
}

func TestParserErrors(t *testing.T) {
	for _, input := range []string{
		"1 +",
		"(1",
		"f(1,",
		"{a 1}",
		"1 2",
		"",
		"def(x)",
		"def f(n) base n: 1 n",
		"if(a)",
		"a.",
	} {
		_, ctx := parse(t, input)
		if len(ctx.Errors) == 0 {
			t.Errorf("%q: expected a parse error", input)
		}
	}
}
