// Package backend provides an interface for different execution backends.
// This allows switching between tree-walk interpretation and bytecode.
package backend

import (
	"fmt"

	"github.com/funvibe/formula/internal/ast"
	"github.com/funvibe/formula/internal/config"
	"github.com/funvibe/formula/internal/evaluator"
	"github.com/funvibe/formula/internal/typesystem"
)

// Backend is the interface for execution backends
type Backend interface {
	// Prepare rewrites an analyzed expression into the form Run expects.
	Prepare(expr ast.Expression, typeMap map[ast.Expression]typesystem.Type) ast.Expression

	// Run evaluates a prepared expression against scope
	Run(e *evaluator.Evaluator, expr ast.Expression, scope evaluator.Callable) evaluator.Object

	// Name returns the backend name for display
	Name() string
}

// ForName returns the backend registered under a config.Backend* name.
// The empty name selects the default.
func ForName(name string) (Backend, error) {
	switch name {
	case "", config.BackendVM:
		return NewVM(), nil
	case config.BackendTree:
		return NewTreeWalk(), nil
	}
	return nil, fmt.Errorf("unknown backend %q", name)
}
