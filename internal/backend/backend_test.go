package backend

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

func scope() *evaluator.MapCallable {
	return evaluator.MapCallableFrom(
		[]string{"x", "xs"},
		[]evaluator.Object{
			evaluator.NewInteger(4),
			evaluator.NewList(evaluator.NewInteger(1), evaluator.NewInteger(2)),
		})
}

func run(t *testing.T, b Backend, input string) (*pipeline.PipelineContext, *ExecutionProcessor) {
	t.Helper()
	s := scope()
	exec := NewExecutionProcessor(b, s)
	ctx := pipeline.NewPipelineContext(input)
	ctx.Definition = s.Definition()
	ctx = pipeline.New(
		&lexer.LexerProcessor{},
		&parser.ParserProcessor{},
		&analyzer.AnalyzerProcessor{},
		&OptimizeProcessor{Backend: b},
		exec,
	).Run(ctx)
	return ctx, exec
}

func TestForName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", "vm"},
		{config.BackendVM, "vm"},
		{config.BackendTree, "tree"},
	}
	for _, tt := range tests {
		b, err := ForName(tt.name)
		if err != nil {
			t.Fatalf("ForName(%q): %v", tt.name, err)
		}
		if b.Name() != tt.want {
			t.Errorf("ForName(%q) = %s, want %s", tt.name, b.Name(), tt.want)
		}
	}
	if _, err := ForName("jit"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestBackendsAgree(t *testing.T) {
	inputs := []string{
		"x * 2 + 1",
		"sum(map(xs, value * x))",
		"if(x > 3, 'big', 'small')",
		"f(x) where f = def(n) n + 1",
		"size(filter(xs, value > 1)) + x",
	}
	for _, input := range inputs {
		_, tree := run(t, NewTreeWalk(), input)
		_, bc := run(t, NewVM(), input)
		if tree.Result == nil || bc.Result == nil {
			t.Fatalf("%s: missing result", input)
		}
		if tree.Result.Inspect() != bc.Result.Inspect() {
			t.Errorf("%s: tree=%s vm=%s", input, tree.Result.Inspect(), bc.Result.Inspect())
		}
	}
}

func TestOptimizeProcessorCompiles(t *testing.T) {
	ctx, _ := run(t, NewVM(), "x * 2 + 1")
	if _, ok := ctx.AstRoot.Body.(*ast.CompiledExpression); !ok {
		t.Errorf("expected compiled root, got %T", ctx.AstRoot.Body)
	}
	ctx, _ = run(t, NewTreeWalk(), "x * 2 + 1")
	if _, ok := ctx.AstRoot.Body.(*ast.CompiledExpression); ok {
		t.Error("tree backend should not compile")
	}
}

func TestOptimizeProcessorBackendByName(t *testing.T) {
	ctx := pipeline.NewPipelineContext("1 + x")
	ctx.Backend = "jit"
	ctx = pipeline.New(&lexer.LexerProcessor{}, &parser.ParserProcessor{}, &OptimizeProcessor{}).Run(ctx)
	if !ctx.Failed() || !strings.Contains(ctx.Errors[0].Message, "unknown backend") {
		t.Errorf("expected unknown backend error, got %v", ctx.Errors)
	}
}

func TestExecutionErrorIsPositioned(t *testing.T) {
	for _, b := range []Backend{NewTreeWalk(), NewVM()} {
		ctx, exec := run(t, b, "x +\n  xs[5]")
		if !ctx.Failed() {
			t.Fatalf("%s: expected runtime error", b.Name())
		}
		err := ctx.Errors[0]
		if err.Code != "R001" {
			t.Errorf("%s: code = %s", b.Name(), err.Code)
		}
		if err.Token.Line != 2 {
			t.Errorf("%s: line = %d, want 2", b.Name(), err.Token.Line)
		}
		if exec.Result != nil {
			t.Errorf("%s: result should stay unset", b.Name())
		}
	}
}
