package mapping

import (
	"slices"
	"sort"
	"sync"

	"github.com/juju/errors"
	"github.com/spf13/afero"
)

// Registry holds metadata declared in code or in registered files. Each
// container owns one; nothing here is process-wide.
type Registry struct {
	fs afero.Fs

	mu         sync.RWMutex
	classes    map[string]*ClassMetadata
	namespaces map[string][]string
	loaded     map[string]bool
}

func NewRegistry(fs afero.Fs) *Registry {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Registry{
		fs:         fs,
		classes:    make(map[string]*ClassMetadata),
		namespaces: make(map[string][]string),
		loaded:     make(map[string]bool),
	}
}

// Register adds or replaces metadata.
func (r *Registry) Register(md *ClassMetadata) error {
	if md == nil || md.Name == "" {
		return errors.NotValidf("metadata without name")
	}
	cp := *md
	cp.Fields = append([]FieldMapping(nil), md.Fields...)
	r.mu.Lock()
	r.classes[md.Name] = &cp
	r.mu.Unlock()
	return nil
}

// RegisterFile parses a YAML mapping file and registers everything in it.
func (r *Registry) RegisterFile(file string) error {
	classes, err := readFile(r.fs, file, nil)
	if err != nil {
		return errors.Trace(err)
	}
	for _, md := range classes {
		if err := r.Register(md); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// RegisterNamespace makes namespace loadable on demand: the first lookup of
// a name in it reads the mapping files in its include paths. An empty
// includePath only declares the namespace.
func (r *Registry) RegisterNamespace(namespace, includePath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	paths := r.namespaces[namespace]
	if includePath != "" && !slices.Contains(paths, includePath) {
		paths = append(paths, includePath)
	}
	r.namespaces[namespace] = paths
	delete(r.loaded, namespace)
}

// Namespaces returns the registered namespaces in sorted order.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.namespaces))
	for ns := range r.namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the metadata of name, loading its namespace's include
// path first if that has not happened yet.
func (r *Registry) Lookup(name string) (*ClassMetadata, error) {
	if md, ok := r.get(name); ok {
		return md, nil
	}
	if err := r.autoload(name); err != nil {
		return nil, errors.Trace(err)
	}
	if md, ok := r.get(name); ok {
		return md, nil
	}
	return nil, errors.NotFoundf("metadata for %q", name)
}

func (r *Registry) get(name string) (*ClassMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	md, ok := r.classes[name]
	if !ok {
		return nil, false
	}
	cp := *md
	return &cp, true
}

func (r *Registry) autoload(name string) error {
	r.mu.RLock()
	var pending, dirs []string
	for ns, paths := range r.namespaces {
		if len(paths) > 0 && InNamespace(name, ns) && !r.loaded[ns] {
			pending = append(pending, ns)
			dirs = append(dirs, paths...)
		}
	}
	r.mu.RUnlock()
	if len(dirs) == 0 {
		return nil
	}
	sort.Strings(dirs)
	dirs = slices.Compact(dirs)
	classes, err := readDirs(r.fs, dirs, nil)
	if err != nil {
		return errors.Trace(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ns := range pending {
		r.loaded[ns] = true
	}
	for n, md := range classes {
		if _, exists := r.classes[n]; !exists {
			r.classes[n] = md
		}
	}
	return nil
}

// Names returns every registered name in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.classes))
	for n := range r.classes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
