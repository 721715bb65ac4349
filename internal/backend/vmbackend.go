package backend

import (
	"github.com/funvibe/formula/internal/ast"
	"github.com/funvibe/formula/internal/evaluator"
	"github.com/funvibe/formula/internal/typesystem"
	"github.com/funvibe/formula/internal/vm"
)

// VMBackend executes compilable subtrees as bytecode and walks the rest
type VMBackend struct{}

// NewVM creates a new VM backend
func NewVM() *VMBackend {
	return &VMBackend{}
}

// Prepare replaces compilable subtrees of expr with CompiledExpression
// nodes. The result still evaluates through the tree walker, which hands
// compiled nodes to the VM.
func (b *VMBackend) Prepare(expr ast.Expression, typeMap map[ast.Expression]typesystem.Type) ast.Expression {
	return vm.NewCompiler(typeMap).Optimize(expr)
}

func (b *VMBackend) Run(e *evaluator.Evaluator, expr ast.Expression, scope evaluator.Callable) evaluator.Object {
	return e.Eval(expr, scope)
}

func (b *VMBackend) Name() string { return "vm" }
