package definition

import (
	"errors"
	"testing"

	"github.com/funvibe/formula/internal/asserts"
	"github.com/funvibe/formula/internal/config"
	"github.com/funvibe/formula/internal/typesystem"
)

func TestSimpleDefinitionSlots(t *testing.T) {
	base := FromNames(nil, "a", "b")
	derived := FromNames(base, "c")

	if derived.NumSlots() != 3 {
		t.Fatalf("NumSlots = %d, want 3", derived.NumSlots())
	}
	if derived.Slot("a") != 0 {
		t.Errorf("Slot(a) = %d, want 0", derived.Slot("a"))
	}
	if derived.Slot("c") != 2 {
		t.Errorf("Slot(c) = %d, want 2", derived.Slot("c"))
	}
	if derived.Slot("missing") != -1 {
		t.Errorf("Slot(missing) = %d, want -1", derived.Slot("missing"))
	}
	if derived.Entry(5) != nil || derived.Entry(-1) != nil {
		t.Error("out-of-range Entry should be nil")
	}
	for _, name := range []string{"a", "b"} {
		if derived.Slot(name) != base.Slot(name) {
			t.Errorf("slot of %s differs between base and derived", name)
		}
	}
}

func TestSimpleDefinitionShadowsLocally(t *testing.T) {
	base := FromNames(nil, "x")
	derived := FromNames(base, "x")
	if derived.Slot("x") != 1 {
		t.Errorf("local entry should win, got slot %d", derived.Slot("x"))
	}
}

func TestQuerySubsetBase(t *testing.T) {
	base := FromNames(nil, "a", "b")
	derived := FromNames(base, "c")
	if got := QuerySubsetBase(derived, base); got != 0 {
		t.Errorf("ancestor offset = %d, want 0", got)
	}
	if got := QuerySubsetBase(base, derived); got != -1 {
		t.Errorf("derived is not a subset of base, got %d", got)
	}

	tail := FromNames(nil, "b", "c")
	if got := QuerySubsetBase(derived, tail); got != 1 {
		t.Errorf("structural offset = %d, want 1", got)
	}
	unrelated := FromNames(nil, "z")
	if got := QuerySubsetBase(derived, unrelated); got != -1 {
		t.Errorf("unrelated offset = %d, want -1", got)
	}

	typed := NewSimple(nil, &Entry{ID: "a", Type: typesystem.String})
	if got := QuerySubsetBase(NewSimple(nil, &Entry{ID: "a", Type: typesystem.Int}), typed); got != -1 {
		t.Errorf("type mismatch should not be a subset, got %d", got)
	}
}

func TestModifyPatchesOneSlot(t *testing.T) {
	base := NewSimple(nil,
		&Entry{ID: "p", Type: typesystem.MustParse("class Point|null")},
		&Entry{ID: "q", Type: typesystem.Int},
	)
	mod := Modify(base, 0, typesystem.TClass{Name: "Point"}, nil)

	if got := mod.Entry(0).GetType().String(); got != "class Point" {
		t.Errorf("modified type = %s", got)
	}
	if got := mod.Entry(0).GetWriteType().String(); got != "class Point|null" {
		t.Errorf("write type = %s, want the old read type", got)
	}
	if got := base.Entry(0).GetType().String(); got != "class Point|null" {
		t.Errorf("base was mutated: %s", got)
	}
	if mod.Entry(1) != base.Entry(1) {
		t.Error("untouched slots must delegate to the base")
	}
	if mod.Slot("q") != 1 || mod.NumSlots() != 2 {
		t.Error("slot layout changed")
	}
	if Modify(base, 9, typesystem.Int, nil) != nil {
		t.Error("modifying a missing slot should return nil")
	}
}

func TestClassDefinitionInheritance(t *testing.T) {
	base := NewClass("Shape", nil)
	base.AddProperty("a", typesystem.Int, nil)
	base.AddProperty("b", typesystem.Int, nil)
	derived := NewClass("Square", base)
	derived.AddProperty("c", typesystem.Int, nil)
	derived.AddProperty("a", typesystem.Int, nil)

	if derived.NumSlots() != config.NumBaseFields+3 {
		t.Fatalf("NumSlots = %d", derived.NumSlots())
	}
	for _, name := range []string{"a", "b", "self", "lib"} {
		if derived.Slot(name) != base.Slot(name) {
			t.Errorf("slot of %s differs: %d vs %d", name, derived.Slot(name), base.Slot(name))
		}
	}
	if derived.Slot("c") != config.NumBaseFields+2 {
		t.Errorf("Slot(c) = %d", derived.Slot("c"))
	}
	if got := derived.Entry(derived.Slot("self")).GetType().String(); got != "class Square" {
		t.Errorf("self type = %s", got)
	}
	if QuerySubsetBase(derived, base) != 0 {
		t.Error("base class should be a subset at offset 0")
	}
}

func TestPrivateAccessNests(t *testing.T) {
	d := NewClass("Secret", nil)
	slot := d.AddProperty("_hidden", typesystem.Int, nil)
	e := d.Entry(slot)
	if !e.IsPrivate() {
		t.Fatal("underscore property should start private")
	}

	outer := ExposePrivate(d)
	inner := ExposePrivate(d)
	if e.IsPrivate() {
		t.Error("exposed inside scope")
	}
	inner()
	if e.IsPrivate() {
		t.Error("still inside the outer scope")
	}
	outer()
	outer()
	if !e.IsPrivate() {
		t.Error("private again after all scopes closed")
	}
	if e.PrivateCounter != 1 {
		t.Errorf("counter = %d, want 1", e.PrivateCounter)
	}
}

func TestRegistry(t *testing.T) {
	Replace("TestAnimal", "", FromNames(nil, "legs"))
	Replace("TestDog", "TestAnimal", FromNames(nil, "bark"))
	defer Unregister("TestAnimal")
	defer Unregister("TestDog")

	if !IsA("TestDog", "TestAnimal") || IsA("TestAnimal", "TestDog") {
		t.Error("IsA misreports")
	}
	if _, ok := Lookup("TestDog"); !ok {
		t.Error("Lookup failed")
	}

	err := asserts.Recover(func() { Register("TestDog", "", FromNames(nil)) })
	var f *asserts.Failure
	if !errors.As(err, &f) {
		t.Errorf("duplicate registration should fail, got %v", err)
	}

	ran := 0
	AddInit(func() { ran++ })
	InitAll()
	InitAll()
	if ran != 1 {
		t.Errorf("init ran %d times", ran)
	}
}
