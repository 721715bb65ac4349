package analyzer

import (
	"github.com/funvibe/formula/internal/pipeline"
)

type AnalyzerProcessor struct{}

func (ap *AnalyzerProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.AstRoot == nil || ctx.AstRoot.Body == nil {
		return ctx
	}
	a := New()
	a.File = ctx.FilePath
	ctx.ReturnType = a.Analyze(ctx.AstRoot.Body, ctx.Definition)
	ctx.TypeMap = a.TypeMap
	for _, err := range a.Errors() {
		ctx.AddError(err)
	}
	return ctx
}
