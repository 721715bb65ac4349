package asserts

import (
	"errors"
	"testing"
)

func TestRecoverReturnsFailure(t *testing.T) {
	err := Recover(func() {
		Fatalf("unknown property %q", "z")
	})
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("expected *Failure, got %T (%v)", err, err)
	}
	if f.Message != `unknown property "z"` {
		t.Errorf("message = %q", f.Message)
	}
	if InScope() {
		t.Error("scope leaked after Recover returned")
	}
}

func TestRecoverNested(t *testing.T) {
	var inner error
	outer := Recover(func() {
		inner = Recover(func() {
			if !InScope() {
				t.Error("expected to be inside a scope")
			}
			Validation("1/0", "division by zero")
		})
		if !InScope() {
			t.Error("outer scope lost after inner failure")
		}
	})
	if outer != nil {
		t.Errorf("outer scope should succeed, got %v", outer)
	}
	var v *ValidationFailure
	if !errors.As(inner, &v) {
		t.Fatalf("expected *ValidationFailure, got %T", inner)
	}
	if v.Error() != `division by zero (in "1/0")` {
		t.Errorf("Error() = %q", v.Error())
	}
}

func TestRecoverPropagatesForeignPanics(t *testing.T) {
	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("expected foreign panic to propagate, got %v", r)
		}
		if InScope() {
			t.Error("scope leaked after foreign panic")
		}
	}()
	_ = Recover(func() { panic("boom") })
}

func TestCheck(t *testing.T) {
	if err := Recover(func() { Check(true, "never") }); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Recover(func() { Check(false, "slot %d", 3) }); err == nil || err.Error() != "slot 3" {
		t.Errorf("unexpected error: %v", err)
	}
}
