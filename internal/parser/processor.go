package parser

import (
	"github.com/funvibe/formula/internal/diagnostics"
	"github.com/funvibe/formula/internal/pipeline"
	"github.com/funvibe/formula/internal/token"
)

type ParserProcessor struct{}

func (pp *ParserProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Tokens == nil {
		// This case should not be hit if the lexer runs first, but as a safeguard:
		ctx.AddError(diagnostics.NewError(diagnostics.ErrP001, token.Token{}, "parser: token stream is nil"))
		return ctx
	}

	p := New(ctx.Tokens, ctx)
	ctx.AstRoot = p.ParseFormula()
	return ctx
}
