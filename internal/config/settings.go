package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Backend names accepted by Settings.Backend.
const (
	BackendVM   = "vm"
	BackendTree = "tree"
)

// Settings represents the top-level formula.yaml configuration.
type Settings struct {
	// ClassDir is the directory class documents are loaded from.
	// Relative paths are resolved against the settings file.
	ClassDir string `yaml:"class_dir"`

	// Backend selects how formulas execute: "vm" compiles what it can to
	// bytecode, "tree" always walks the AST.
	Backend string `yaml:"backend,omitempty"`

	// TypeSafetyChecks toggles post-construction validation.
	// Defaults to true.
	TypeSafetyChecks *bool `yaml:"type_safety_checks,omitempty"`

	// CacheCapacity bounds the parsed formula cache.
	CacheCapacity int `yaml:"cache_capacity,omitempty"`

	// MaxRecursionDepth bounds non-trampolined recursion.
	MaxRecursionDepth int `yaml:"max_recursion_depth,omitempty"`

	// Journal is the path of the sqlite diff journal. Empty disables it.
	Journal string `yaml:"journal,omitempty"`

	// Watch enables file-system invalidation of loaded classes.
	Watch bool `yaml:"watch,omitempty"`
}

// DefaultSettings returns settings used when no formula.yaml is found.
func DefaultSettings() *Settings {
	s := &Settings{ClassDir: "classes"}
	s.setDefaults()
	return s
}

// LoadSettings reads and parses a formula.yaml file.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}
	s, err := ParseSettings(data, path)
	if err != nil {
		return nil, err
	}
	if s.ClassDir != "" && !filepath.IsAbs(s.ClassDir) {
		s.ClassDir = filepath.Join(filepath.Dir(path), s.ClassDir)
	}
	if s.Journal != "" && !filepath.IsAbs(s.Journal) {
		s.Journal = filepath.Join(filepath.Dir(path), s.Journal)
	}
	return s, nil
}

// ParseSettings parses formula.yaml content from bytes.
// The path argument is used only for error messages.
func ParseSettings(data []byte, path string) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := s.validate(path); err != nil {
		return nil, err
	}
	s.setDefaults()
	return &s, nil
}

// FindSettings searches for formula.yaml starting from dir and walking up
// to parent directories. Returns "" and nil error if none is found.
func FindSettings(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range SettingsFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Apply copies the process-wide switches into the package globals.
func (s *Settings) Apply() {
	if s.TypeSafetyChecks != nil {
		TypeSafetyChecks = *s.TypeSafetyChecks
	}
	if s.MaxRecursionDepth > 0 {
		MaxRecursionDepth = s.MaxRecursionDepth
	}
}

func (s *Settings) validate(path string) error {
	switch s.Backend {
	case "", BackendVM, BackendTree:
	default:
		return fmt.Errorf("%s: unknown backend %q (want %q or %q)", path, s.Backend, BackendVM, BackendTree)
	}
	if s.CacheCapacity < 0 {
		return fmt.Errorf("%s: cache_capacity must not be negative", path)
	}
	if s.MaxRecursionDepth < 0 {
		return fmt.Errorf("%s: max_recursion_depth must not be negative", path)
	}
	return nil
}

func (s *Settings) setDefaults() {
	if s.Backend == "" {
		s.Backend = BackendVM
	}
	if s.CacheCapacity == 0 {
		s.CacheCapacity = DefaultCacheCapacity
	}
	if s.MaxRecursionDepth == 0 {
		s.MaxRecursionDepth = MaxRecursionDepth
	}
}
