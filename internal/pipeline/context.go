package pipeline

import (
	"github.com/funvibe/formula/internal/ast"
	"github.com/funvibe/formula/internal/definition"
	"github.com/funvibe/formula/internal/diagnostics"
	"github.com/funvibe/formula/internal/token"
	"github.com/funvibe/formula/internal/typesystem"
)

// Processor is one stage of the pipeline.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// PipelineContext carries a formula through lexing, parsing, analysis
// and optimization.
type PipelineContext struct {
	SourceCode string
	FilePath   string

	Tokens  []token.Token
	AstRoot *ast.Formula

	// Definition describes the scope the formula will run in. Nil means
	// every name is looked up dynamically.
	Definition definition.Definition

	// ReturnType is the static type inferred by the analyzer.
	ReturnType typesystem.Type

	// TypeMap holds the type the analyzer inferred for every node.
	TypeMap map[ast.Expression]typesystem.Type

	// Backend is the execution strategy chosen for the optimize stage.
	Backend string

	Errors []*diagnostics.DiagnosticError
}

func NewPipelineContext(source string) *PipelineContext {
	return &PipelineContext{SourceCode: source}
}

// Failed reports whether any stage recorded an error.
func (ctx *PipelineContext) Failed() bool {
	return len(ctx.Errors) > 0
}

// AddError records a diagnostic for the current file.
func (ctx *PipelineContext) AddError(err *diagnostics.DiagnosticError) {
	if err.File == "" {
		err.File = ctx.FilePath
	}
	ctx.Errors = append(ctx.Errors, err)
}
