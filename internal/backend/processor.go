package backend

import (
	"strings"

	"github.com/funvibe/formula/internal/diagnostics"
	"github.com/funvibe/formula/internal/evaluator"
	"github.com/funvibe/formula/internal/pipeline"
	"github.com/funvibe/formula/internal/token"
)

// OptimizeProcessor implements pipeline.Processor. It prepares the
// analyzed formula for its backend; with no Backend set it picks one from
// ctx.Backend.
type OptimizeProcessor struct {
	Backend Backend
}

func (p *OptimizeProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.AstRoot == nil || ctx.AstRoot.Body == nil {
		return ctx
	}
	b := p.Backend
	if b == nil {
		var err error
		if b, err = ForName(ctx.Backend); err != nil {
			ctx.AddError(diagnostics.NewError(diagnostics.ErrR001, token.Token{}, err.Error()))
			return ctx
		}
	}
	ctx.AstRoot.Body = b.Prepare(ctx.AstRoot.Body, ctx.TypeMap)
	return ctx
}

// ExecutionProcessor implements pipeline.Processor to run a Backend
type ExecutionProcessor struct {
	Backend   Backend
	Evaluator *evaluator.Evaluator
	Scope     evaluator.Callable

	// Result holds the value of the last successful run.
	Result evaluator.Object
}

// NewExecutionProcessor creates a new pipeline step for the given backend
func NewExecutionProcessor(b Backend, scope evaluator.Callable) *ExecutionProcessor {
	return &ExecutionProcessor{Backend: b, Evaluator: evaluator.Shared(), Scope: scope}
}

func (p *ExecutionProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	// If previous steps failed, don't run execution
	if ctx.AstRoot == nil || len(ctx.Errors) > 0 {
		return ctx
	}
	scope := p.Scope
	if scope == nil {
		scope = evaluator.NewMapCallable()
	}

	result := p.Backend.Run(p.Evaluator, ctx.AstRoot.Body, scope)
	if errObj, ok := result.(*evaluator.Error); ok {
		p.handleEvaluatorError(ctx, errObj)
		return ctx
	}
	p.Result = result
	return ctx
}

func (p *ExecutionProcessor) handleEvaluatorError(ctx *pipeline.PipelineContext, err *evaluator.Error) {
	tok := token.Token{Line: err.Line, Column: err.Column}
	// ErrR001 already reads as a runtime error
	msg := strings.TrimPrefix(err.Message, "runtime error: ")
	ctx.AddError(diagnostics.NewError(diagnostics.ErrR001, tok, msg))
}
