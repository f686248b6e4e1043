package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Module is the interface that all function modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Namespace is a module-like export that re-exports another value as its
// default. Namespaces may nest.
type Namespace struct {
	Default any
}

// Registry holds all exports for a single application instance.
type Registry struct {
	mu      sync.RWMutex
	exports map[string]any
}

// New creates and initializes a new Registry instance.
func New(modules ...Module) *Registry {
	r := &Registry{exports: make(map[string]any)}
	for _, mod := range modules {
		mod.Register(r)
	}
	return r
}

// Export registers a value under name. Registering a name twice is a
// programmer error and panics.
func (r *Registry) Export(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.exports[name]; exists {
		panic(fmt.Sprintf("export with name '%s' already registered", name))
	}
	slog.Debug("Registering export.", "name", name, "type", fmt.Sprintf("%T", value))
	r.exports[name] = value
}

// Lookup returns the export registered under name.
func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.exports[name]
	return v, ok
}

// Names returns all export names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.exports))
	for name := range r.exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
