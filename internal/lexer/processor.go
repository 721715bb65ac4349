package lexer

import (
	"fmt"

	"github.com/funvibe/formula/internal/diagnostics"
	"github.com/funvibe/formula/internal/pipeline"
	"github.com/funvibe/formula/internal/token"
)

type LexerProcessor struct{}

func (lp *LexerProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	ctx.Tokens = New(ctx.SourceCode).Tokens()
	for _, tok := range ctx.Tokens {
		if tok.Type == token.ILLEGAL {
			ctx.AddError(diagnostics.NewError(diagnostics.ErrP003, tok,
				fmt.Sprintf("illegal token %q: %v", tok.Lexeme, tok.Literal)))
		}
	}
	return ctx
}
