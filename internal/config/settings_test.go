package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseSettings_Defaults(t *testing.T) {
	s, err := ParseSettings([]byte("class_dir: data/classes\n"), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ClassDir != "data/classes" {
		t.Errorf("class_dir = %q, want data/classes", s.ClassDir)
	}
	if s.Backend != BackendVM {
		t.Errorf("backend = %q, want %q", s.Backend, BackendVM)
	}
	if s.CacheCapacity != DefaultCacheCapacity {
		t.Errorf("cache_capacity = %d, want %d", s.CacheCapacity, DefaultCacheCapacity)
	}
	if s.TypeSafetyChecks != nil {
		t.Errorf("type_safety_checks should stay unset")
	}
}

func TestParseSettings_UnknownBackend(t *testing.T) {
	_, err := ParseSettings([]byte("backend: jit\n"), "test.yaml")
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestParseSettings_NegativeCapacity(t *testing.T) {
	_, err := ParseSettings([]byte("cache_capacity: -1\n"), "test.yaml")
	if err == nil {
		t.Fatal("expected error for negative capacity")
	}
}

func TestSettingsApply(t *testing.T) {
	oldChecks, oldDepth := TypeSafetyChecks, MaxRecursionDepth
	defer func() { TypeSafetyChecks, MaxRecursionDepth = oldChecks, oldDepth }()

	s, err := ParseSettings([]byte("type_safety_checks: false\nmax_recursion_depth: 7\n"), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Apply()
	if TypeSafetyChecks {
		t.Error("expected TypeSafetyChecks to be switched off")
	}
	if MaxRecursionDepth != 7 {
		t.Errorf("MaxRecursionDepth = %d, want 7", MaxRecursionDepth)
	}
}

func TestLoadSettings_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "formula.yaml")
	if err := os.WriteFile(path, []byte("class_dir: classes\njournal: run.db\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ClassDir != filepath.Join(dir, "classes") {
		t.Errorf("class_dir = %q", s.ClassDir)
	}
	if s.Journal != filepath.Join(dir, "run.db") {
		t.Errorf("journal = %q", s.Journal)
	}

	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	found, err := FindSettings(sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != path {
		t.Errorf("FindSettings = %q, want %q", found, path)
	}
}

func TestBaseFields(t *testing.T) {
	if NumBaseFields != 9 {
		t.Fatalf("NumBaseFields = %d, want 9", NumBaseFields)
	}
	if BaseFields[0] != DataField || BaseFields[NumBaseFields-1] != LibField {
		t.Errorf("unexpected base field order: %v", BaseFields)
	}
	if !IsBaseField("self") || IsBaseField("x") {
		t.Error("IsBaseField misreports")
	}
	if !HasClassExt("a/Point.YAML") || HasClassExt("a/Point.txt") {
		t.Error("HasClassExt misreports")
	}
	if TrimClassExt("Point.json") != "Point" {
		t.Errorf("TrimClassExt = %q", TrimClassExt("Point.json"))
	}
}
