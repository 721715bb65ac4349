package classes

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/funvibe/formula/internal/asserts"
	"github.com/funvibe/formula/internal/config"
	"github.com/funvibe/formula/internal/evaluator"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

const pointSrc = `
properties:
  x: {type: int, default: 0}
  y: {type: int, default: 0}
  sum: "x + y"
`

const nodeSrc = `
properties:
  v: {type: int, default: 0}
  child: {type: "class Node|null", default: null}
  other: {type: "class Node|null", default: null}
`

func newTestRegistry(t *testing.T, docs map[string]string) (*Registry, *MemoryLoader) {
	t.Helper()
	l := NewMemoryLoader()
	for name, src := range docs {
		l.Add(name, src)
	}
	return Init(l), l
}

func args(kv ...interface{}) *evaluator.Map {
	m := evaluator.NewMap()
	for i := 0; i+1 < len(kv); i += 2 {
		var v evaluator.Object
		switch x := kv[i+1].(type) {
		case int:
			v = evaluator.NewInteger(int64(x))
		case string:
			v = evaluator.NewString(x)
		case evaluator.Object:
			v = x
		}
		m.Set(evaluator.NewString(kv[i].(string)), v)
	}
	return m
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

func mustFail(t *testing.T, fn func(), want string) {
	t.Helper()
	err := asserts.Recover(fn)
	if err == nil {
		t.Fatalf("expected failure containing %q", want)
	}
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("error %q does not contain %q", err.Error(), want)
	}
}

func TestCreatePoint(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{"Point": pointSrc})
	p := r.Create("Point", args("x", 3))

	testIntegerObject(t, p.QueryValue("x"), 3)
	testIntegerObject(t, p.QueryValue("y"), 0)
	testIntegerObject(t, p.QueryValue("sum"), 3)
	if p.ClassName() != "Point" || !p.IsA("Point") {
		t.Errorf("unexpected class %s", p.ClassName())
	}
	if s, ok := p.QueryValue("_class").(*evaluator.String); !ok || s.Value != "Point" {
		t.Errorf("_class = %v", p.QueryValue("_class"))
	}
	if p.QueryValue("self") != p {
		t.Error("self does not refer to the instance")
	}
}

func TestDerivedSlotsAreStable(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{
		"Base":    "properties:\n  a: 1\n  b: 2\n",
		"Derived": "bases: [Base]\nproperties:\n  c: 3\n",
	})
	base := r.Definition("Base")
	d := r.Definition("Derived")
	n := config.NumBaseFields

	if d.NumSlots() != n+3 {
		t.Errorf("NumSlots = %d, want %d", d.NumSlots(), n+3)
	}
	if d.Slot("a") != n || d.Slot("c") != n+2 {
		t.Errorf("slots a=%d c=%d", d.Slot("a"), d.Slot("c"))
	}
	if d.Slot("b") != base.Slot("b") {
		t.Error("base slot moved in derived class")
	}

	inst := r.Create("Derived", args("a", 10))
	testIntegerObject(t, inst.QueryValue("a"), 10)
	testIntegerObject(t, inst.QueryValue("c"), 3)
	if !inst.IsA("Base") || !r.IsDerivedFrom("Derived", "Base") || r.IsDerivedFrom("Base", "Derived") {
		t.Error("inheritance misreported")
	}
}

func TestWriteOfWrongTypeLeavesValue(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{"Point": pointSrc})
	p := r.Create("Point", args("x", 3))

	mustFail(t, func() { p.MutateValue("x", evaluator.NewString("three")) }, "invalid type")
	testIntegerObject(t, p.QueryValue("x"), 3)

	mustFail(t, func() { p.MutateValue("sum", evaluator.NewInteger(1)) }, "read-only")
	mustFail(t, func() { p.QueryValue("z") }, "unknown property")
	mustFail(t, func() { p.MutateValue("self", p) }, "base field")
}

func TestSettersSeeValueAndData(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{"Temp": `
properties:
  celsius:
    type: decimal
    default: 0.0
    get: "_data"
    set: "set(_data, value)"
  fahrenheit:
    type: decimal
    get: "celsius * 1.8 + 32"
    set: "set(celsius, (value - 32) / 1.8)"
`})
	temp := r.Create("Temp", nil)
	temp.MutateValue("fahrenheit", evaluator.NewFloat(212))

	c, ok := temp.QueryValue("celsius").(*evaluator.Float)
	if !ok || c.Value < 99.999 || c.Value > 100.001 {
		t.Fatalf("celsius = %v", temp.QueryValue("celsius"))
	}
	mustFail(t, func() { temp.QueryValue("_data") }, "private data")
}

func TestReadOnlyPropertyOverride(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{"Rect": `
properties:
  w: 2
  h: 3
  area: "w * h"
`})
	plain := r.Create("Rect", nil)
	testIntegerObject(t, plain.QueryValue("area"), 6)

	doubled := r.Create("Rect", args("area", "w * h * 2"))
	testIntegerObject(t, doubled.QueryValue("area"), 12)

	mustFail(t, func() { r.Create("Rect", args("area", "'big'")) }, "mis-matched type")
}

func TestConstructorsRunBaseFirst(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{
		"Counter": "properties:\n  n: 0\nconstructor: \"add(n, 1)\"\n",
		"Double":  "bases: [Counter]\nconstructor: [\"set(n, n * 10)\"]\nproperties: {}\n",
	})
	testIntegerObject(t, r.Create("Double", nil).QueryValue("n"), 10)
}

func TestValidationAfterConstruction(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{"Strict": "properties:\n  n: {type: int}\n"})
	mustFail(t, func() { r.Create("Strict", nil) }, "does not match type")

	old := config.TypeSafetyChecks
	config.TypeSafetyChecks = false
	defer func() { config.TypeSafetyChecks = old }()
	inst := r.Create("Strict", nil)
	if inst.QueryValue("n") != evaluator.NULL {
		t.Errorf("n = %v", inst.QueryValue("n"))
	}
}

func TestConfigurationErrors(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{
		"A":        "properties:\n  a: 1\n",
		"B":        "properties:\n  b: 1\n",
		"Multi":    "bases: [A, B]\nproperties: {}\n",
		"Reserved": "properties:\n  self: 1\n",
		"Loop":     "bases: [Loop]\nproperties: {}\n",
		"Orphan":   "bases: [Missing]\nproperties: {}\n",
	})
	tests := []struct {
		class string
		want  string
	}{
		{"Multi", "multiple inheritance"},
		{"Reserved", "reserved property"},
		{"Loop", "recursive class"},
		{"Orphan", "unknown base"},
		{"Nope", "could not load"},
	}
	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			mustFail(t, func() { r.Class(tt.class) }, tt.want)
		})
	}
}

func TestDeepCloneKeepsSharing(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{"Node": nodeSrc})
	shared := r.Create("Node", args("v", 5))
	root := r.Create("Node", args("child", shared, "other", shared))
	shared.MutateValue("child", root)

	clone := DeepClone(root).(*Instance)
	if clone == root || clone.ID() != root.ID() {
		t.Fatal("clone must be a new object with the same identity")
	}
	left := clone.QueryValue("child").(*Instance)
	right := clone.QueryValue("other").(*Instance)
	if left != right {
		t.Fatal("shared child was cloned twice")
	}
	if left == shared || left.ID() != shared.ID() {
		t.Error("child not cloned with its identity")
	}
	if left.QueryValue("child") != clone {
		t.Error("cycle not re-linked to the clone")
	}

	dup := Duplicate(root).(*Instance)
	if dup.ID() == root.ID() {
		t.Error("Duplicate kept the identity")
	}
	if dup.QueryValue("child") != dup.QueryValue("other") {
		t.Error("Duplicate broke sharing")
	}
}

func TestDiffPointExample(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{"Point": pointSrc})
	p := r.Create("Point", args("x", 3))
	before := DeepClone(p).(*Instance)

	p.MutateValue("y", evaluator.NewInteger(5))
	diff, err := GenerateDiff(before, p)
	if err != nil {
		t.Fatalf("GenerateDiff: %v", err)
	}
	deltas, err := diff.Deltas()
	if err != nil {
		t.Fatalf("Deltas: %v", err)
	}
	if len(deltas) != 1 {
		t.Fatalf("got %d deltas, want 1", len(deltas))
	}
	if deltas[0].ID != p.ID() || len(deltas[0].Values) != 1 {
		t.Fatalf("unexpected delta %+v", deltas[0])
	}
	if n, ok := deltas[0].Values["y"].(json.Number); !ok || n.String() != "5" {
		t.Fatalf("delta y = %v", deltas[0].Values["y"])
	}

	if err := r.ApplyDiff(before, diff); err != nil {
		t.Fatalf("ApplyDiff: %v", err)
	}
	testIntegerObject(t, before.QueryValue("x"), 3)
	testIntegerObject(t, before.QueryValue("y"), 5)
}

func TestDiffCarriesNewObjects(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{"Node": nodeSrc})
	root := r.Create("Node", nil)
	target := DeepClone(root).(*Instance)

	fresh := r.Create("Node", args("v", 7))
	fresh.MutateValue("child", root)
	root.MutateValue("child", fresh)
	root.MutateValue("v", evaluator.NewInteger(1))

	diff, err := GenerateDiff(target, root)
	if err != nil {
		t.Fatalf("GenerateDiff: %v", err)
	}
	if diff.Size == 0 || diff.Data == "" {
		t.Fatal("empty diff")
	}
	if err := r.ApplyDiff(target, diff); err != nil {
		t.Fatalf("ApplyDiff: %v", err)
	}

	testIntegerObject(t, target.QueryValue("v"), 1)
	child, ok := target.QueryValue("child").(*Instance)
	if !ok {
		t.Fatalf("child = %v", target.QueryValue("child"))
	}
	if child.ID() != fresh.ID() || child == fresh {
		t.Error("new object not rebuilt with its identity")
	}
	testIntegerObject(t, child.QueryValue("v"), 7)
	if child.QueryValue("child") != target {
		t.Error("reference from new object to existing one not resolved")
	}
}

func TestApplyDiffSkipsUnknownTargets(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{"Point": pointSrc})
	p := r.Create("Point", nil)
	before := DeepClone(p)
	p.MutateValue("x", evaluator.NewInteger(9))
	diff, err := GenerateDiff(before, p)
	if err != nil {
		t.Fatal(err)
	}

	stranger := r.Create("Point", nil)
	if err := r.ApplyDiff(stranger, diff); err != nil {
		t.Fatalf("missing identity must be skipped, got %v", err)
	}
	testIntegerObject(t, stranger.QueryValue("x"), 0)

	if err := r.ApplyDiff(stranger, &Diff{Data: "not base64!"}); err == nil {
		t.Error("malformed diff accepted")
	}
}

const bagSrc = `
properties:
  m: {type: "{int -> string}", default: {}}
  d: {type: decimal, default: 0.5}
  l: {type: "[decimal]", default: []}
  tags: {type: map, default: {}}
  loose: {type: any, default: 2}
`

// exactly compares values by their wire form, which keeps int and
// decimal apart and records map key types and order.
func exactly(t *testing.T, got, want evaluator.Object) {
	t.Helper()
	g, err := evaluator.ToWire(got, nil)
	if err != nil {
		t.Fatal(err)
	}
	w, err := evaluator.ToWire(want, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(g, w) {
		t.Errorf("got %#v, want %#v", g, w)
	}
}

func TestDiffRoundTripsExactValues(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{"Bag": bagSrc})
	b := r.Create("Bag", nil)
	before := DeepClone(b).(*Instance)

	m := evaluator.NewMap()
	m.Set(evaluator.NewInteger(1), evaluator.NewString("one"))
	tags := evaluator.NewMap()
	tags.Set(evaluator.NewString("z"), evaluator.NewInteger(1))
	tags.Set(evaluator.NewString("a"), evaluator.NewFloat(3))
	tags.Set(evaluator.NewString(config.RefKey), evaluator.NewString("plain"))
	b.MutateValue("m", m)
	b.MutateValue("d", evaluator.NewFloat(2))
	b.MutateValue("l", evaluator.NewList(evaluator.NewFloat(1), evaluator.NewFloat(0.25)))
	b.MutateValue("tags", tags)
	b.MutateValue("loose", evaluator.NewFloat(2))

	diff, err := GenerateDiff(before, b)
	if err != nil {
		t.Fatalf("GenerateDiff: %v", err)
	}
	deltas, err := diff.Deltas()
	if err != nil || len(deltas) != 1 {
		t.Fatalf("deltas = %v, %v", deltas, err)
	}
	if _, ok := deltas[0].Values["loose"]; !ok {
		t.Error("2 -> 2.0 not emitted as a change")
	}

	if err := r.ApplyDiff(before, diff); err != nil {
		t.Fatalf("ApplyDiff: %v", err)
	}
	for _, name := range []string{"m", "d", "l", "tags", "loose"} {
		exactly(t, before.QueryValue(name), b.QueryValue(name))
	}
	key := before.QueryValue("m").(*evaluator.Map).Keys()[0]
	if _, ok := key.(*evaluator.Integer); !ok {
		t.Errorf("map key decoded as %T", key)
	}
	if err := asserts.Recover(before.Validate); err != nil {
		t.Errorf("applied state fails validation: %v", err)
	}

	data, err := Serialize(b)
	if err != nil {
		t.Fatal(err)
	}
	back, err := r.Deserialize(data)
	if err != nil {
		t.Fatal(err)
	}
	exactly(t, back.QueryValue("tags"), tags)
	exactly(t, back.QueryValue("d"), evaluator.NewFloat(2))
}

func TestUpdateInPlace(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{"Node": nodeSrc})
	kept := r.Create("Node", args("v", 1))
	dropped := r.Create("Node", args("v", 2))
	old := r.Create("Node", args("child", kept, "other", dropped))

	next := DeepClone(old).(*Instance)
	next.QueryValue("child").(*Instance).MutateValue("v", evaluator.NewInteger(10))
	added := r.Create("Node", args("v", 3))
	next.MutateValue("other", added)

	old.Update(next)

	if old.QueryValue("child") != kept {
		t.Fatal("matched object was replaced instead of updated")
	}
	testIntegerObject(t, kept.QueryValue("v"), 10)
	testIntegerObject(t, kept.Previous().QueryValue("v"), 1)
	if kept.NewInUpdate() || kept.Orphaned() {
		t.Error("matched object flags wrong")
	}
	if old.QueryValue("other") != added || !added.NewInUpdate() {
		t.Error("new object not linked or not flagged")
	}
	if !dropped.Orphaned() {
		t.Error("dropped object not orphaned")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{"Node": nodeSrc, "Rect": "properties:\n  w: 2\n  area: \"w * 2\"\n"})
	root := r.Create("Node", args("v", 4))
	child := r.Create("Node", args("child", root))
	root.MutateValue("child", child)
	root.MutateValue("other", child)

	data, err := Serialize(root)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	back, err := r.Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if back.ID() != root.ID() {
		t.Error("identity lost")
	}
	testIntegerObject(t, back.QueryValue("v"), 4)
	c := back.QueryValue("child").(*Instance)
	if c.QueryValue("child") != back || back.QueryValue("other") != c {
		t.Error("references not restored")
	}

	rect := r.Create("Rect", args("area", "w * 5"))
	data, err = Serialize(rect)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), config.OverridesKey) {
		t.Errorf("override not serialized: %s", data)
	}
	back, err = r.Deserialize(data)
	if err != nil {
		t.Fatal(err)
	}
	testIntegerObject(t, back.QueryValue("area"), 10)
}

func TestNestedClasses(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{"Outer": `
properties:
  inner: {type: "class Outer.Inner|null", default: null}
classes:
  Inner:
    properties:
      v: 7
`})
	inner := r.Create("Outer.Inner", nil)
	testIntegerObject(t, inner.QueryValue("v"), 7)
	if _, ok := r.Class("Outer").Nested("Inner"); !ok {
		t.Error("nested class not built")
	}
	outer := r.Create("Outer", args("inner", inner))
	if outer.QueryValue("inner") != inner {
		t.Error("nested class instance not accepted")
	}

	r.Invalidate("Outer")
	if _, ok := r.defs["Outer.Inner"]; ok {
		t.Error("nested definition survived invalidation")
	}
}

func TestSelfTests(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{
		"Point": pointSrc,
		"Checked": `
properties:
  n: 1
test:
  - command: "set(vars.p, construct('Point', {x: 2}))"
  - assert: "vars.p.x + vars.p.y == 2"
`,
		"Broken": `
properties:
  n: 1
test:
  - assert: "1 == 2"
    message: "'one is not two'"
`,
	})
	r.Class("Checked")
	mustFail(t, func() { r.Class("Broken") }, "one is not two")
}

func TestInvalidateFallsBackToBackup(t *testing.T) {
	r, l := newTestRegistry(t, map[string]string{"Point": pointSrc})
	first := r.Class("Point")

	l.Add("Point", "bases: [Missing]\nproperties: {}\n")
	r.Invalidate("Point")
	if got := r.Class("Point"); got != first {
		t.Fatal("failed rebuild did not fall back to the previous class")
	}
	testIntegerObject(t, r.Create("Point", args("x", 1)).QueryValue("x"), 1)

	l.Add("Point", "properties:\n  x: 5\n")
	r.Invalidate("Point")
	second := r.Class("Point")
	if second == first {
		t.Fatal("fixed class not rebuilt")
	}
	testIntegerObject(t, r.Create("Point", nil).QueryValue("x"), 5)
}

func TestInvalidateRebuildsDerivedClasses(t *testing.T) {
	r, l := newTestRegistry(t, map[string]string{
		"Base":    "properties:\n  a: 1\n  b: 2\n",
		"Derived": "bases: [Base]\nproperties:\n  c: 3\n",
		"Other":   "properties:\n  o: 1\n",
	})
	oldDerived := r.Class("Derived")
	other := r.Class("Other")

	l.Add("Base", "properties:\n  z: 0\n  a: 1\n  b: 2\n")
	r.Invalidate("Base")

	base, d := r.Definition("Base"), r.Definition("Derived")
	for _, p := range []string{"z", "a", "b"} {
		if d.Slot(p) < 0 || d.Slot(p) != base.Slot(p) {
			t.Errorf("Derived.Slot(%s) = %d, Base.Slot(%s) = %d", p, d.Slot(p), p, base.Slot(p))
		}
	}
	if r.Class("Derived") == oldDerived {
		t.Error("derived class not rebuilt")
	}
	if r.Class("Other") != other {
		t.Error("unrelated class rebuilt")
	}
	inst := r.Create("Derived", args("z", 4))
	testIntegerObject(t, inst.QueryValue("z"), 4)
	testIntegerObject(t, inst.QueryValue("c"), 3)
}

func TestLibraryAndInputs(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{"Point": pointSrc, "Node": nodeSrc})
	p := r.Create("Point", nil)
	lib, ok := p.QueryValue("lib").(*Library)
	if !ok {
		t.Fatalf("lib = %T", p.QueryValue("lib"))
	}
	n1 := lib.QueryValue("Node")
	if n1 != lib.QueryValue("Node") {
		t.Error("library instance not reused")
	}
	if _, ok := n1.(*Instance); !ok {
		t.Errorf("lib.Node = %T", n1)
	}

	var names []string
	for _, in := range p.Inputs() {
		names = append(names, in.Name+":"+in.Access.String())
	}
	if got := strings.Join(names, ","); got != "x:read/write,y:read/write,sum:read" {
		t.Errorf("Inputs = %s", got)
	}
}

func TestLoadAll(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{"Point": pointSrc, "Bad": "bases: [A, B]\n"})
	err := r.LoadAll()
	if err == nil || !strings.Contains(err.Error(), "Bad") {
		t.Fatalf("LoadAll = %v", err)
	}
}
