package config

import (
	"fmt"
	"path/filepath"
)

// DefaultConcurrency is the per-function limit used when neither a global
// nor a per-function value is configured.
const DefaultConcurrency = 5

// AdapterKind selects how resolved handlers are exposed to the dev server.
type AdapterKind string

const (
	// AdapterNone serves handlers that already have the net/http signature.
	AdapterNone AdapterKind = "none"
	// AdapterWrapping wraps platform-agnostic fetch-style handlers.
	AdapterWrapping AdapterKind = "wrapping"
)

// Model is the unified, format-agnostic representation of a project's
// dev server configuration.
type Model struct {
	// Root is the directory searched for function entry files. When relative,
	// it is resolved against ConfigDir.
	Root        string
	Globs       []string
	Extensions  []string
	EntrySuffix string
	Adapter     AdapterKind

	MaxInstanceConcurrency Concurrency

	// ReloadURL is an optional socket.io endpoint notified about builds.
	ReloadURL string

	// ConfigDir is the directory holding the config file, or "" when none
	// was found.
	ConfigDir string
}

// Concurrency holds either a global limit, per-function limits, or both.
type Concurrency struct {
	Global  *int
	PerTask map[string]int
}

// Limit returns the effective concurrency limit for the given task name:
// the per-task override if present, else the global value, else
// DefaultConcurrency.
func (c Concurrency) Limit(task string) int {
	if n, ok := c.PerTask[task]; ok {
		return n
	}
	if c.Global != nil {
		return *c.Global
	}
	return DefaultConcurrency
}

// RootDir resolves the entry point search directory. searchDir is used when
// no config file was found.
func (m *Model) RootDir(searchDir string) string {
	if m.ConfigDir == "" {
		return searchDir
	}
	if filepath.IsAbs(m.Root) {
		return m.Root
	}
	return filepath.Join(m.ConfigDir, m.Root)
}

// Validate checks the semantic constraints the schema cannot express.
func (m *Model) Validate() error {
	switch m.Adapter {
	case "", AdapterNone, AdapterWrapping:
	default:
		return fmt.Errorf("invalid adapter %q: must be %q or %q", m.Adapter, AdapterNone, AdapterWrapping)
	}
	if g := m.MaxInstanceConcurrency.Global; g != nil && *g < 1 {
		return fmt.Errorf("max_instance_concurrency must be at least 1, got %d", *g)
	}
	for task, n := range m.MaxInstanceConcurrency.PerTask {
		if n < 1 {
			return fmt.Errorf("max_instance_concurrency for %q must be at least 1, got %d", task, n)
		}
	}
	return nil
}

// Manifest is the format-agnostic representation of a function entry file.
type Manifest struct {
	// Handler is the name of the registered Go export serving the function.
	Handler string
	// Headers are static response headers applied before the handler runs.
	Headers map[string]string
}
