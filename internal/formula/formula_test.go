package formula

import (
	"bytes"
	"errors"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/funvibe/formula/internal/asserts"
	"github.com/funvibe/formula/internal/config"
	"github.com/funvibe/formula/internal/definition"
	"github.com/funvibe/formula/internal/evaluator"
	"github.com/funvibe/formula/internal/typesystem"
)

func TestMain(m *testing.M) {
	log.SetOutput(new(bytes.Buffer))
	os.Exit(m.Run())
}

func scope() *evaluator.MapCallable {
	return evaluator.MapCallableFrom(
		[]string{"x", "xs"},
		[]evaluator.Object{
			evaluator.NewInteger(3),
			evaluator.NewList(evaluator.NewInteger(1), evaluator.NewInteger(2), evaluator.NewInteger(3)),
		})
}

func testIntegerObject(t *testing.T, obj evaluator.Object, expected int64) bool {
	t.Helper()
	result, ok := obj.(*evaluator.Integer)
	if !ok {
		t.Errorf("object is not Integer. got=%T (%+v)", obj, obj)
		return false
	}
	if result.Value != expected {
		t.Errorf("object has wrong value. got=%d, want=%d", result.Value, expected)
		return false
	}
	return true
}

func TestExecute(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"x * x + 1", 10},
		{"sum(xs) + x", 9},
		{"fold(xs, a + b * x, 0)", 18},
		{"n * 2 where n = x + 1", 8},
		{"f(x) where f = def(n) n * 10", 30},
	}
	for _, backend := range []string{config.BackendVM, config.BackendTree} {
		Backend = backend
		for _, tt := range tests {
			s := scope()
			f, err := New(tt.input, s.Definition())
			if err != nil {
				t.Fatalf("%s: %v", tt.input, err)
			}
			res, err := f.Execute(s)
			if err != nil {
				t.Fatalf("%s [%s]: %v", tt.input, backend, err)
			}
			testIntegerObject(t, res, tt.expected)
		}
	}
	Backend = config.BackendVM
}

func TestNewCachesPerDefinition(t *testing.T) {
	ClearCache()
	s := scope()
	a, _ := New("x + 1", s.Definition())
	b, _ := New("x + 1", s.Definition())
	if a != b {
		t.Error("same source and definition should hit the cache")
	}
	other := scope()
	c, _ := New("x + 1", other.Definition())
	if c == a {
		t.Error("a different definition needs its own resolution")
	}
	if entries, _ := CacheStats(); entries != 2 {
		t.Errorf("cache entries = %d, want 2", entries)
	}
}

func TestExecuteReresolvesForOtherScope(t *testing.T) {
	def := definition.NewSimple(nil)
	def.AddTyped("pad", typesystem.Int)
	def.AddTyped("x", typesystem.Int)
	f, err := New("x * 2", def)
	if err != nil {
		t.Fatal(err)
	}
	// x sits in slot 0 here, not slot 1.
	s := evaluator.MapCallableFrom([]string{"x"}, []evaluator.Object{evaluator.NewInteger(21)})
	res, err := f.Execute(s)
	if err != nil {
		t.Fatal(err)
	}
	testIntegerObject(t, res, 42)
}

func TestDynamicFormulaRunsAnywhere(t *testing.T) {
	f := Must("x - 1", nil)
	res, err := f.Execute(scope())
	if err != nil {
		t.Fatal(err)
	}
	testIntegerObject(t, res, 2)
}

func TestParseErrorIsValidationFailure(t *testing.T) {
	_, err := New("1 +", nil)
	var vf *asserts.ValidationFailure
	if !errors.As(err, &vf) {
		t.Fatalf("expected ValidationFailure, got %T (%v)", err, err)
	}
	if vf.Source != "1 +" {
		t.Errorf("source = %q", vf.Source)
	}
}

func TestEvaluationErrorIsValidationFailure(t *testing.T) {
	s := scope()
	f := Must("xs[10]", s.Definition())
	_, err := f.Execute(s)
	var vf *asserts.ValidationFailure
	if !errors.As(err, &vf) {
		t.Fatalf("expected ValidationFailure, got %v", err)
	}
	if !strings.Contains(vf.Message, "out of range") {
		t.Errorf("message = %q", vf.Message)
	}
}

func TestMustPanicsOnBadSource(t *testing.T) {
	err := asserts.Recover(func() { Must("(", nil) })
	var f *asserts.Failure
	if !errors.As(err, &f) {
		t.Fatalf("expected Failure, got %v", err)
	}
}

func TestQueryTypeAndString(t *testing.T) {
	def := definition.NewSimple(nil)
	def.AddTyped("x", typesystem.Int)
	f := Must("x + 1", def)
	if f.QueryType() != typesystem.Int {
		t.Errorf("QueryType = %s, want int", f.QueryType())
	}
	if f.String() != "x + 1" {
		t.Errorf("String = %q", f.String())
	}
}

func TestExecuteCommands(t *testing.T) {
	s := scope()
	f := Must("set(x, x + 4); add(x, 1)", s.Definition())
	if err := f.ExecuteCommands(s); err != nil {
		t.Fatal(err)
	}
	v, _ := s.Get("x")
	testIntegerObject(t, v, 8)

	if err := Must("x", s.Definition()).ExecuteCommands(s); err == nil {
		t.Error("an integer is not a command")
	}
}

func TestSafeEval(t *testing.T) {
	fallback := evaluator.NewString("fallback")
	res, err := SafeEval("x * 2", scope(), fallback)
	if err != nil {
		t.Fatal(err)
	}
	testIntegerObject(t, res, 6)

	tests := []string{"1 +", "xs[7]", "assert(false, 'boom')"}
	for _, src := range tests {
		res, err := SafeEval(src, scope(), fallback)
		if err == nil {
			t.Errorf("%s: expected error", src)
		}
		if res != fallback {
			t.Errorf("%s: got %v, want fallback", src, res)
		}
	}
	if asserts.InScope() {
		t.Error("recovery scope leaked")
	}
}

func TestDisassemble(t *testing.T) {
	Backend = config.BackendVM
	f, err := NewFile("x * 2 + 1", "inline.f", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(f.Disassemble(), "MUL") {
		t.Errorf("disassembly missing MUL:\n%s", f.Disassemble())
	}
}

func TestConfigure(t *testing.T) {
	defer Configure(config.DefaultSettings())
	s := config.DefaultSettings()
	s.Backend = config.BackendTree
	s.CacheCapacity = 2
	Configure(s)
	if Backend != config.BackendTree {
		t.Errorf("Backend = %s", Backend)
	}
	for _, src := range []string{"1", "2", "3", "4"} {
		Must(src, nil)
	}
	if _, live := CacheStats(); live > 2 {
		t.Errorf("live entries = %d, want <= 2", live)
	}
}
