package utils

import (
	"path/filepath"
	"strings"

	"github.com/funvibe/formula/internal/config"
)

// ExtractClassName derives a class name from a class file path.
// It takes the base filename and removes any recognized class extension.
func ExtractClassName(path string) string {
	name := filepath.Base(path)
	return config.TrimClassExt(name)
}

// RootClassName returns the outermost class of a dotted nested class name.
func RootClassName(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// ResolvePath resolves path relative to baseDir unless it is absolute.
func ResolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" || baseDir == "." {
		return path
	}
	return filepath.Join(baseDir, path)
}
