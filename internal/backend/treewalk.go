package backend

import (
	"github.com/funvibe/formula/internal/ast"
	"github.com/funvibe/formula/internal/evaluator"
	"github.com/funvibe/formula/internal/typesystem"
)

// TreeWalkBackend wraps the tree-walk interpreter
type TreeWalkBackend struct{}

// NewTreeWalk creates a new tree-walk backend
func NewTreeWalk() *TreeWalkBackend {
	return &TreeWalkBackend{}
}

// Prepare returns expr unchanged.
func (b *TreeWalkBackend) Prepare(expr ast.Expression, _ map[ast.Expression]typesystem.Type) ast.Expression {
	return expr
}

func (b *TreeWalkBackend) Run(e *evaluator.Evaluator, expr ast.Expression, scope evaluator.Callable) evaluator.Object {
	return e.Eval(expr, scope)
}

func (b *TreeWalkBackend) Name() string { return "tree" }
