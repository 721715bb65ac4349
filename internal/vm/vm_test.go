package vm

import (
	"strings"
	"testing"

	"github.com/funvibe/formula/internal/analyzer"
	"github.com/funvibe/formula/internal/ast"
	"github.com/funvibe/formula/internal/config"
	"github.com/funvibe/formula/internal/evaluator"
	"github.com/funvibe/formula/internal/lexer"
	"github.com/funvibe/formula/internal/parser"
	"github.com/funvibe/formula/internal/pipeline"
)

func parse(t *testing.T, input string) *ast.Formula {
	t.Helper()
	ctx := pipeline.NewPipelineContext(input)

	l := lexer.LexerProcessor{}
	ctx = l.Process(ctx)
	if len(ctx.Errors) > 0 {
		t.Fatalf("lexer error: %s", ctx.Errors[0].Error())
	}

	p := parser.ParserProcessor{}
	ctx = p.Process(ctx)
	if len(ctx.Errors) > 0 {
		t.Fatalf("parser error: %s", ctx.Errors[0].Error())
	}
	return ctx.AstRoot
}

func testScope() *evaluator.MapCallable {
	return evaluator.MapCallableFrom(
		[]string{"x", "name", "xs", "m", "nothing"},
		[]evaluator.Object{
			evaluator.NewInteger(5),
			evaluator.NewString("bob"),
			evaluator.NewList(evaluator.NewInteger(1), evaluator.NewInteger(2), evaluator.NewInteger(3)),
			evaluator.MapFromPairs(evaluator.NewString("a"), evaluator.NewInteger(1)),
			evaluator.NULL,
		})
}

// compile analyzes and optimizes input against scope's definition.
func compile(t *testing.T, input string, scope *evaluator.MapCallable) ast.Expression {
	t.Helper()
	f := parse(t, input)
	a := analyzer.New()
	a.Analyze(f.Body, scope.Definition())
	return NewCompiler(a.TypeMap).Optimize(f.Body)
}

func runVM(t *testing.T, input string) evaluator.Object {
	t.Helper()
	scope := testScope()
	return evaluator.New().Eval(compile(t, input, scope), scope)
}

func runTree(t *testing.T, input string) evaluator.Object {
	t.Helper()
	scope := testScope()
	f := parse(t, input)
	analyzer.New().Analyze(f.Body, scope.Definition())
	return evaluator.New().Eval(f.Body, scope)
}

func testIntegerObject(t *testing.T, obj evaluator.Object, expected int64) {
	t.Helper()
	result, ok := obj.(*evaluator.Integer)
	if !ok {
		t.Fatalf("object is not Integer. got=%T (%+v)", obj, obj)
	}
	if result.Value != expected {
		t.Errorf("object has wrong value. got=%d, want=%d", result.Value, expected)
	}
}

func TestCompileArithmetic(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"x * x - 1", 24},
		{"7 / 2", 3},
		{"-x + 10", 5},
		{"2 ^ 10", 1024},
		{"if(x > 3, 1, 2)", 1},
		{"if(x > 10, 1, x > 4, 2, 3)", 2},
		{"xs[1] + xs[-1]", 5},
		{"size(xs) + m.a", 4},
		{"sum(map(xs, value * x))", 30},
	}

	for _, tt := range tests {
		scope := testScope()
		expr := compile(t, tt.input, scope)
		if _, ok := expr.(*ast.CompiledExpression); !ok {
			t.Errorf("%q: expected the root to be compiled, got %T", tt.input, expr)
			continue
		}
		testIntegerObject(t, evaluator.New().Eval(expr, scope), tt.expected)
	}
}

// TestDifferential runs every expression on both backends; results and
// errors must agree exactly.
func TestDifferential(t *testing.T) {
	inputs := []string{
		"1 + 2.5",
		"10 / 4.0",
		"7 % 3",
		"7.5 % 2",
		"2 ^ -1",
		"1 / 0",
		"1.0 / 0",
		"x = 5.0",
		"x != 5",
		"1 < 2.5",
		"'a' < 'b'",
		"nothing < 1",
		"name + '!'",
		"name * 2",
		"'x' + 1",
		"[1, 2] + [3]",
		"{'a': 1} + {'b': 2}",
		"2 in xs",
		"4 not in xs",
		"'o' in name",
		"'a' in m",
		"not x",
		"not nothing",
		"-name",
		"nothing and x",
		"x and name",
		"nothing or 'fallback'",
		"x or undefined_thing",
		"xs[5]",
		"xs['a']",
		"nothing.field",
		"m.a",
		"m.b",
		"unknown",
		"if(nothing, 1)",
		"[x, [name, nothing], {'k': x}]",
		"filter(xs, value > 1)",
		"fold(xs, a + b, 0)",
		"sort(xs, a > b)",
		"handle_errors(1 / 0, 'err: ' + error)",
		"size(1)",
		"range(x)",
		"str(x) + name",
		"x * 2 where y = 1",
		"f(x) + 1 where f = def(n) n * 2",
		"head(map(xs, g(value))) where g = def(v) v + x",
		"if(x > 1, xs[0] / 0, 1)",
	}

	for _, input := range inputs {
		tree := runTree(t, input)
		vm := runVM(t, input)
		if tree.Type() != vm.Type() || tree.Inspect() != vm.Inspect() {
			t.Errorf("%q: tree=%s (%s), vm=%s (%s)", input, tree.Inspect(), tree.Type(), vm.Inspect(), vm.Type())
			continue
		}
		if te, ok := tree.(*evaluator.Error); ok {
			ve := vm.(*evaluator.Error)
			if te.Line != ve.Line || te.Column != ve.Column {
				t.Errorf("%q: error position tree=%d:%d vm=%d:%d", input, te.Line, te.Column, ve.Line, ve.Column)
			}
		}
	}
}

func TestFallbackSubtrees(t *testing.T) {
	scope := testScope()
	expr := compile(t, "size(xs) + f(2) where f = def(n) n * 2", scope)
	where, ok := expr.(*ast.WhereExpression)
	if !ok {
		t.Fatalf("expected where clause to stay in the tree, got %T", expr)
	}
	compiled, ok := where.Body.(*ast.CompiledExpression)
	if !ok {
		t.Fatalf("expected compiled body, got %T", where.Body)
	}
	asm := compiled.Program.(*Program).Disassemble()
	for _, want := range []string{"CALL_BUILTIN", "EVAL_EXPR", "ADD", "RETURN"} {
		if !strings.Contains(asm, want) {
			t.Errorf("disassembly lacks %s:\n%s", want, asm)
		}
	}
	if _, ok := where.Values[0].(*ast.FunctionLiteral).Body.(*ast.CompiledExpression); !ok {
		t.Errorf("expected the function body to be compiled")
	}
	testIntegerObject(t, evaluator.New().Eval(expr, scope), 7)
}

func TestGuardedRecursionThroughBytecode(t *testing.T) {
	old := config.MaxRecursionDepth
	config.MaxRecursionDepth = 50
	defer func() { config.MaxRecursionDepth = old }()

	testIntegerObject(t, runVM(t, "def fact(n) base n <= 1: 1 recursive: n * fact(n - 1); fact(20)"), 2432902008176640000)
	testIntegerObject(t, runVM(t, "def total(n) base n <= 0: 0 recursive: n + total(n - 1); total(5000)"), 12502500)
	testIntegerObject(t, runVM(t, "def fib(n) base n < 2: n recursive: fib(n - 1) + fib(n - 2); fib(15)"), 610)
}

func TestCommandsThroughBytecode(t *testing.T) {
	scope := testScope()
	expr := compile(t, "set(x, x + 1); add(m.a, 10)", scope)
	res := evaluator.New().Eval(expr, scope)
	if evaluator.IsError(res) {
		t.Fatalf("unexpected error: %s", res.Inspect())
	}
	if !scope.ExecuteCommand(res) {
		t.Fatalf("commands were not executed: %s", res.Inspect())
	}
	v, _ := scope.Get("x")
	testIntegerObject(t, v, 6)
	mv, _ := scope.Get("m")
	a, _ := mv.(*evaluator.Map).GetString("a")
	testIntegerObject(t, a, 11)
}

func TestValueEquality(t *testing.T) {
	tests := []struct {
		a, b Value
		want bool
	}{
		{IntVal(1), FloatVal(1), true},
		{IntVal(1), IntVal(2), false},
		{NilVal(), NilVal(), true},
		{NilVal(), BoolVal(false), false},
		{ObjVal(evaluator.NewString("a")), ObjVal(evaluator.NewString("a")), true},
		{ObjVal(evaluator.NewList(evaluator.NewInteger(1))), ObjVal(evaluator.NewList(evaluator.NewFloat(1))), true},
	}
	for i, tt := range tests {
		if got := tt.a.Equals(tt.b); got != tt.want {
			t.Errorf("case %d: %s = %s: got %v, want %v", i, tt.a.Inspect(), tt.b.Inspect(), got, tt.want)
		}
	}
}
