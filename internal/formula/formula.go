// Package formula turns formula source into executable objects. Parsed
// formulas are cached per source text and scope definition.
package formula

import (
	"log"
	"strings"

	"github.com/funvibe/formula/internal/analyzer"
	"github.com/funvibe/formula/internal/asserts"
	"github.com/funvibe/formula/internal/ast"
	"github.com/funvibe/formula/internal/backend"
	"github.com/funvibe/formula/internal/cache"
	"github.com/funvibe/formula/internal/config"
	"github.com/funvibe/formula/internal/definition"
	"github.com/funvibe/formula/internal/evaluator"
	"github.com/funvibe/formula/internal/lexer"
	"github.com/funvibe/formula/internal/parser"
	"github.com/funvibe/formula/internal/pipeline"
	"github.com/funvibe/formula/internal/typesystem"
	"github.com/funvibe/formula/internal/vm"
)

// Formula is a parsed, analyzed and prepared expression bound to the
// definition it was resolved against.
type Formula struct {
	src        string
	def        definition.Definition
	expr       ast.Expression
	returnType typesystem.Type
	backend    backend.Backend
}

type cacheKey struct {
	src     string
	def     definition.Definition
	backend string
}

var (
	// Backend names the execution strategy for newly parsed formulas.
	Backend = config.BackendVM

	parsed = newCache(config.DefaultCacheCapacity)
)

func newCache(capacity int) *cache.LRU[cacheKey, Formula] {
	c := cache.New[cacheKey, Formula](capacity)
	c.Name = "formula"
	return c
}

// Configure applies settings to the package: backend, cache capacity and
// the process-wide switches. The cache is emptied.
func Configure(s *config.Settings) {
	s.Apply()
	Backend = s.Backend
	parsed = newCache(s.CacheCapacity)
}

// ClearCache drops every cached formula.
func ClearCache() {
	parsed.Clear()
}

// CacheStats returns the number of cached formulas and how many of them
// are held strongly.
func CacheStats() (entries, live int) {
	return parsed.Len(), parsed.LiveLen()
}

// New parses src and resolves it against def, which may be nil for a
// formula that looks every name up at run time. Malformed source yields
// a *asserts.ValidationFailure.
func New(src string, def definition.Definition) (*Formula, error) {
	key := cacheKey{src: src, def: def, backend: Backend}
	if f, ok := parsed.Get(key); ok {
		return f, nil
	}
	f, err := build(src, def, "")
	if err != nil {
		return nil, err
	}
	parsed.Store(key, f)
	return f, nil
}

// NewFile is New for source read from a file; diagnostics carry the path
// and the result is not cached.
func NewFile(src, path string, def definition.Definition) (*Formula, error) {
	return build(src, def, path)
}

func build(src string, def definition.Definition, path string) (*Formula, error) {
	b, err := backend.ForName(Backend)
	if err != nil {
		return nil, err
	}
	ctx := pipeline.NewPipelineContext(src)
	ctx.FilePath = path
	ctx.Definition = def
	ctx = pipeline.New(
		&lexer.LexerProcessor{},
		&parser.ParserProcessor{},
		&analyzer.AnalyzerProcessor{},
		&backend.OptimizeProcessor{Backend: b},
	).Run(ctx)
	if ctx.Failed() {
		msgs := make([]string, len(ctx.Errors))
		for i, e := range ctx.Errors {
			msgs[i] = e.Error()
		}
		return nil, &asserts.ValidationFailure{Message: strings.Join(msgs, "\n"), Source: src}
	}
	return &Formula{
		src:        src,
		def:        def,
		expr:       ctx.AstRoot.Body,
		returnType: ctx.ReturnType,
		backend:    b,
	}, nil
}

// Must is New for formulas that are part of the program, such as class
// getters. A malformed formula is fatal.
func Must(src string, def definition.Definition) *Formula {
	f, err := New(src, def)
	if err != nil {
		asserts.Fatalf("invalid formula: %v", err)
	}
	return f
}

// Eval evaluates the formula in scope and returns the raw result, which
// may be an *evaluator.Error. A scope whose definition does not contain
// the formula's definition at slot 0 gets a re-resolved copy.
func (f *Formula) Eval(scope evaluator.Callable) evaluator.Object {
	if f.def != nil {
		if d := scope.Definition(); d != f.def && definition.QuerySubsetBase(d, f.def) != 0 {
			g, err := New(f.src, d)
			if err != nil {
				return evaluator.NewError("%s", err.Error())
			}
			f = g
		}
	}
	return f.backend.Run(evaluator.Shared(), f.expr, scope)
}

// Execute is Eval with evaluation errors returned as
// *asserts.ValidationFailure.
func (f *Formula) Execute(scope evaluator.Callable) (evaluator.Object, error) {
	result := f.Eval(scope)
	if errObj, ok := result.(*evaluator.Error); ok {
		return nil, &asserts.ValidationFailure{Message: errObj.Inspect(), Source: f.src}
	}
	return result, nil
}

// ExecuteCommands evaluates the formula and runs the resulting commands
// against scope.
func (f *Formula) ExecuteCommands(scope evaluator.Callable) error {
	result, err := f.Execute(scope)
	if err != nil {
		return err
	}
	if !scope.ExecuteCommand(result) {
		return &asserts.ValidationFailure{
			Message: "result " + evaluator.TypeName(result) + " is not a command",
			Source:  f.src,
		}
	}
	return nil
}

// QueryType returns the static type of the formula's result.
func (f *Formula) QueryType() typesystem.Type { return f.returnType }

// String returns the source text.
func (f *Formula) String() string { return f.src }

func (f *Formula) Definition() definition.Definition { return f.def }

// Expr returns the prepared expression tree.
func (f *Formula) Expr() ast.Expression { return f.expr }

// Disassemble lists the bytecode of every compiled subtree.
func (f *Formula) Disassemble() string {
	var sb strings.Builder
	ast.Inspect(f.expr, func(e ast.Expression) bool {
		ce, ok := e.(*ast.CompiledExpression)
		if !ok {
			return true
		}
		if prog, ok := ce.Program.(*vm.Program); ok {
			sb.WriteString(prog.Disassemble())
		}
		return true
	})
	return sb.String()
}

// SafeEval parses and evaluates src in scope inside a recovery scope.
// Any failure, fatal ones included, is logged and replaced by fallback.
func SafeEval(src string, scope evaluator.Callable, fallback evaluator.Object) (evaluator.Object, error) {
	var result evaluator.Object
	err := asserts.Recover(func() {
		var def definition.Definition
		if scope != nil {
			def = scope.Definition()
		} else {
			scope = evaluator.NewMapCallable()
		}
		f, err := New(src, def)
		if err == nil {
			result, err = f.Execute(scope)
		}
		if vf, ok := err.(*asserts.ValidationFailure); ok {
			panic(vf)
		} else if err != nil {
			asserts.Fatalf("%v", err)
		}
	})
	if err != nil {
		log.Printf("safe eval of %q failed: %v", src, err)
		return fallback, err
	}
	return result, nil
}
