package classes

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/funvibe/formula/internal/evaluator"
)

func TestParseDocKeepsOrderAndMerges(t *testing.T) {
	doc, err := ParseDoc([]byte(`
defaults: &defaults
  type: int
  default: 1
properties:
  b: {<<: *defaults}
  a: {<<: *defaults, default: 2}
  ratio: 1.0
`))
	if err != nil {
		t.Fatalf("ParseDoc: %v", err)
	}
	props := doc.Get("properties").(*Doc)
	if !reflect.DeepEqual(props.Keys, []string{"b", "a", "ratio"}) {
		t.Errorf("keys = %v", props.Keys)
	}
	a := props.Get("a").(*Doc)
	if a.Get("default") != 2 || a.Get("type") != "int" {
		t.Errorf("merged a = %+v", a.Values)
	}
	v, err := toObject(props.Get("ratio"))
	if _, ok := v.(*evaluator.Float); err != nil || !ok {
		t.Errorf("ratio = %v (%v), want a float", v, err)
	}

	if _, err := ParseDoc([]byte("- 1\n- 2\n")); err == nil {
		t.Error("a list document must be rejected")
	}
}

func TestDirLoader(t *testing.T) {
	dir := t.TempDir()
	for name, src := range map[string]string{
		"Point.yaml": pointSrc,
		"Node.json":  `{"properties": {"v": {"type": "int", "default": 0}}}`,
		"notes.txt":  "ignored",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	l := NewDirLoader(dir)
	if got := l.Names(); !reflect.DeepEqual(got, []string{"Node", "Point"}) {
		t.Errorf("Names = %v", got)
	}
	if _, err := l.Load("Missing"); errors.Cause(err) != ErrNotFound {
		t.Errorf("Load(Missing) = %v", err)
	}

	r := Init(l)
	testIntegerObject(t, r.Create("Node", nil).QueryValue("v"), 0)
	if err := r.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
}

func TestWatchReportsChangedClasses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Point.yaml")
	if err := os.WriteFile(path, []byte(pointSrc), 0o644); err != nil {
		t.Fatal(err)
	}
	r := Init(NewDirLoader(dir))
	first := r.Class("Point")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := r.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(path, []byte("properties:\n  x: 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case name := <-w.Changes():
		if name != "Point" {
			t.Fatalf("changed = %q", name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	r.Invalidate("Point")
	w.Apply()
	if r.Class("Point") == first {
		t.Error("class not rebuilt after change")
	}
	testIntegerObject(t, r.Create("Point", nil).QueryValue("x"), 9)

	if _, err := Init(NewMemoryLoader()).Watch(ctx); err == nil {
		t.Error("watching a memory loader must fail")
	}
}
