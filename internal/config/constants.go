package config

import (
	"path/filepath"
	"strings"
)

// ClassFileExtensions are all recognized class document file extensions
var ClassFileExtensions = []string{".yaml", ".yml", ".json", ".cfg"}

// SettingsFileNames are searched, in order, when no settings path is given
var SettingsFileNames = []string{"formula.yaml", "formula.yml"}

// TypeSafetyChecks enables the validation pass that runs after construction
// and the read-back type assertion after computed writes.
// Release builds that need the speed may switch it off.
var TypeSafetyChecks = true

// IsTestMode indicates if the program is running in test mode.
// This is set once at startup in main.go when handling the check command.
var IsTestMode = false

// MaxRecursionDepth bounds non-trampolined user function recursion.
var MaxRecursionDepth = 100

// MaxUnrolledCalls bounds the invocation chain a trampolined recursive
// call may build before a base case matches.
var MaxUnrolledCalls = 1000000

// DefaultCacheCapacity is the number of parsed formulas kept strongly.
const DefaultCacheCapacity = 4096

// Base fields every class exposes before its own properties, in slot order.
const (
	DataField             = "_data"
	ValueField            = "value"
	SelfField             = "self"
	MeField               = "me"
	NewInUpdateField      = "new_in_update"
	OrphanedByUpdateField = "orphaned_by_update"
	PreviousField         = "previous"
	ClassField            = "_class"
	LibField              = "lib"
)

// BaseFields lists the reserved base fields in slot order.
var BaseFields = []string{
	DataField,
	ValueField,
	SelfField,
	MeField,
	NewInUpdateField,
	OrphanedByUpdateField,
	PreviousField,
	ClassField,
	LibField,
}

// NumBaseFields is the slot index of the first class-declared property.
var NumBaseFields = len(BaseFields)

// IsBaseField reports whether name is reserved by the class model.
func IsBaseField(name string) bool {
	for _, f := range BaseFields {
		if f == name {
			return true
		}
	}
	return false
}

// Iteration scope slot names bound by higher-order builtins.
const (
	IterValueName    = "value"
	IterIndexName    = "index"
	IterKeyName      = "key"
	IterContextName  = "context"
	CompareLeftName  = "a"
	CompareRightName = "b"
	ErrorName        = "error"
)

// Serialization keys of the diff wire format.
const (
	ClassKey     = "@class"
	IDKey        = "id"
	StateKey     = "state"
	OverridesKey = "property_overrides"
	AddrKey      = "_addr"
	RefKey       = "@ref"
	IDRefKey     = "@id"
	DeltaIDKey   = "_id"
	DeltasKey    = "deltas"
	ObjectsKey   = "objects"
	MapKey       = "@map"
)

// HasClassExt checks if path has a recognized class file extension
func HasClassExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range ClassFileExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// TrimClassExt removes a recognized class file extension from path
func TrimClassExt(path string) string {
	if HasClassExt(path) {
		return strings.TrimSuffix(path, filepath.Ext(path))
	}
	return path
}
