package classes

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/funvibe/formula/internal/config"
)

// Loader finds class documents by top-level class name. Nested classes
// live inside their outer class's document.
type Loader interface {
	Load(name string) (*Doc, error)
	// Names lists every class the loader can provide.
	Names() []string
}

// ErrNotFound is returned by loaders for unknown class names.
var ErrNotFound = errors.New("class not found")

// DirLoader reads <Class>.yaml|.yml|.json|.cfg files from a directory.
type DirLoader struct {
	Dir string
}

func NewDirLoader(dir string) *DirLoader {
	return &DirLoader{Dir: dir}
}

// Path returns the file defining name and whether it exists.
func (l *DirLoader) Path(name string) (string, bool) {
	for _, ext := range config.ClassFileExtensions {
		p := filepath.Join(l.Dir, name+ext)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

func (l *DirLoader) Load(name string) (*Doc, error) {
	path, ok := l.Path(name)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%s in %s", name, l.Dir)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading class %s", name)
	}
	doc, err := ParseDoc(data)
	if err != nil {
		return nil, errors.Wrapf(err, "class %s (%s)", name, path)
	}
	return doc, nil
}

func (l *DirLoader) Names() []string {
	files, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, f := range files {
		if f.IsDir() || !config.HasClassExt(f.Name()) {
			continue
		}
		name := config.TrimClassExt(f.Name())
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// MemoryLoader serves class documents held in memory, for embedding and
// tests.
type MemoryLoader struct {
	sources map[string]string
}

func NewMemoryLoader() *MemoryLoader {
	return &MemoryLoader{sources: make(map[string]string)}
}

// Add stores the YAML or JSON source of class name, replacing any
// previous source.
func (l *MemoryLoader) Add(name, src string) {
	l.sources[name] = src
}

func (l *MemoryLoader) Remove(name string) {
	delete(l.sources, name)
}

func (l *MemoryLoader) Load(name string) (*Doc, error) {
	src, ok := l.sources[name]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	doc, err := ParseDoc([]byte(src))
	if err != nil {
		return nil, errors.Wrapf(err, "class %s", name)
	}
	return doc, nil
}

func (l *MemoryLoader) Names() []string {
	names := make([]string, 0, len(l.sources))
	for n := range l.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
