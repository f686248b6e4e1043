package handlers

import (
	"context"
	"fmt"

	"github.com/vk/devfn/internal/ctxlog"
	"github.com/vk/devfn/internal/hcl"
	"github.com/vk/devfn/internal/registry"
)

// Module is a freshly imported compiled file.
type Module struct {
	// Exports is the module value to unwrap.
	Exports any
	// Headers are static response headers declared by the module.
	Headers map[string]string
}

// Importer loads a compiled output file. Every call must return a fresh
// Module reflecting the file's current contents.
type Importer interface {
	Import(ctx context.Context, file string) (*Module, error)
}

// ManifestImporter imports compiled function manifests, resolving their
// handler names through a registry.
type ManifestImporter struct {
	registry *registry.Registry
}

// NewManifestImporter creates an importer backed by reg.
func NewManifestImporter(reg *registry.Registry) *ManifestImporter {
	return &ManifestImporter{registry: reg}
}

// Import implements Importer.
func (i *ManifestImporter) Import(ctx context.Context, file string) (*Module, error) {
	logger := ctxlog.FromContext(ctx)

	manifest, err := hcl.ParseManifest(file)
	if err != nil {
		return nil, err
	}
	exports, ok := i.registry.Lookup(manifest.Handler)
	if !ok {
		return nil, fmt.Errorf("handler %q is not registered", manifest.Handler)
	}
	logger.Debug("Imported function manifest.", "file", file, "handler", manifest.Handler)
	return &Module{Exports: exports, Headers: manifest.Headers}, nil
}
