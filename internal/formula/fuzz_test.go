package formula

import (
	"fmt"
	"strings"
	"testing"

	"github.com/funvibe/formula/internal/asserts"
	"github.com/funvibe/formula/internal/config"
	"github.com/funvibe/formula/internal/evaluator"
)

// exprGen builds well-formed integer formulas from fuzzer bytes.
type exprGen struct {
	data []byte
	pos  int
}

func (g *exprGen) next(n int) int {
	if g.pos >= len(g.data) {
		return 0
	}
	b := g.data[g.pos]
	g.pos++
	return int(b) % n
}

func (g *exprGen) intExpr(depth int) string {
	if depth <= 0 {
		return g.leaf()
	}
	switch g.next(9) {
	case 0, 1:
		return g.leaf()
	case 2:
		op := []string{"+", "-", "*"}[g.next(3)]
		return "(" + g.intExpr(depth-1) + " " + op + " " + g.intExpr(depth-1) + ")"
	case 3:
		return "if(" + g.boolExpr(depth-1) + ", " + g.intExpr(depth-1) + ", " + g.intExpr(depth-1) + ")"
	case 4:
		return "sum(" + g.listExpr(depth-1) + ")"
	case 5:
		return "size(" + g.listExpr(depth-1) + ")"
	case 6:
		return "(n * 2 + x where n = " + g.intExpr(depth-1) + ")"
	case 7:
		return "fold(" + g.listExpr(depth-1) + ", a + b, " + g.intExpr(depth-1) + ")"
	default:
		return "count(" + g.listExpr(depth-1) + ", value > " + g.leaf() + ")"
	}
}

func (g *exprGen) boolExpr(depth int) string {
	switch g.next(4) {
	case 0:
		op := []string{"<", ">", "==", "!=", "<=", ">="}[g.next(6)]
		return g.intExpr(depth-1) + " " + op + " " + g.intExpr(depth-1)
	case 1:
		return "not (" + g.boolExpr(depth-1) + ")"
	case 2:
		op := []string{"and", "or"}[g.next(2)]
		return "(" + g.boolExpr(depth-1) + ") " + op + " (" + g.boolExpr(depth-1) + ")"
	default:
		return []string{"true", "false"}[g.next(2)]
	}
}

func (g *exprGen) listExpr(depth int) string {
	switch g.next(4) {
	case 0:
		return "xs"
	case 1:
		return "map(xs, value * " + g.leaf() + ")"
	case 2:
		return "filter(xs, value > " + g.leaf() + ")"
	default:
		n := g.next(4)
		items := make([]string, n)
		for i := range items {
			items[i] = g.intExpr(depth - 1)
		}
		return "[" + strings.Join(items, ", ") + "]"
	}
}

func (g *exprGen) leaf() string {
	if g.next(3) == 0 {
		return "x"
	}
	return fmt.Sprint(g.next(20))
}

func runWith(backend, src string) (string, error) {
	old := Backend
	Backend = backend
	defer func() { Backend = old }()

	s := scope()
	var out string
	err := asserts.Recover(func() {
		f, err := New(src, s.Definition())
		if err != nil {
			panic(err)
		}
		res := f.Eval(s)
		if evaluator.IsError(res) {
			out = "error"
			return
		}
		out = evaluator.Repr(res)
	})
	return out, err
}

func FuzzDifferential(f *testing.F) {
	f.Add([]byte{2, 4, 0, 3, 1})
	f.Add([]byte{3, 0, 0, 5, 6, 2, 7, 1})
	f.Add([]byte{8, 1, 2, 3, 4, 5, 6, 7, 8, 9})

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) > 512 {
			return
		}
		src := (&exprGen{data: data}).intExpr(4)

		tree, treeErr := runWith(config.BackendTree, src)
		vm, vmErr := runWith(config.BackendVM, src)
		if (treeErr == nil) != (vmErr == nil) {
			t.Fatalf("%s: tree error %v, vm error %v", src, treeErr, vmErr)
		}
		if tree != vm {
			t.Fatalf("%s: tree=%s vm=%s", src, tree, vm)
		}
	})
}

func FuzzNew(f *testing.F) {
	for _, seed := range []string{"x * x + 1", "f(x) where f = def(n) n * 10", "[1, 2", "{a: 1}", "if(", "'unterminated"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, src string) {
		if len(src) > 1000 {
			return
		}
		// Malformed input must come back as an error, never as a crash.
		asserts.Recover(func() {
			if fm, err := New(src, scope().Definition()); err == nil {
				fm.Eval(scope())
			}
		})
	})
}

func TestGeneratedFormulasAgree(t *testing.T) {
	seeds := [][]byte{
		{2, 4, 0, 3, 1},
		{3, 0, 0, 5, 6, 2, 7, 1},
		{8, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{6, 2, 1, 4, 2, 2, 2, 2, 0, 1},
		{7, 3, 3, 3, 1, 4, 5, 9, 2, 6},
	}
	for _, data := range seeds {
		src := (&exprGen{data: data}).intExpr(4)
		tree, err := runWith(config.BackendTree, src)
		if err != nil {
			t.Fatalf("%s [tree]: %v", src, err)
		}
		vm, err := runWith(config.BackendVM, src)
		if err != nil {
			t.Fatalf("%s [vm]: %v", src, err)
		}
		if tree != vm {
			t.Errorf("%s: tree=%s vm=%s", src, tree, vm)
		}
	}
}
