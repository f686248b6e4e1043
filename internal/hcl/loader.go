package hcl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/devfn/internal/config"
	"github.com/vk/devfn/internal/ctxlog"
	"github.com/vk/devfn/internal/schema"
)

// ConfigFileName is the project configuration file searched for by Loader.
const ConfigFileName = "devfn.hcl"

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	fileName string
}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{fileName: ConfigFileName}
}

// Load finds the nearest config file at or above searchDir and translates it
// into the agnostic model.
func (l *Loader) Load(ctx context.Context, searchDir string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "search_dir", searchDir)

	path, err := findUp(searchDir, l.fileName)
	if err != nil {
		return nil, err
	}
	if path == "" {
		logger.Debug("No config file found, using defaults.", "file", l.fileName)
		return &config.Model{Adapter: config.AdapterNone}, nil
	}

	model, err := l.LoadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	logger.Info("Config loaded.", "path", path)
	return model, nil
}

// LoadFile parses a single config file.
func (l *Loader) LoadFile(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var root schema.Project
	diags = gohcl.DecodeBody(file.Body, nil, &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}
	if root.Remain != nil {
		attrs, _ := root.Remain.JustAttributes()
		for name := range attrs {
			logger.Warn("Ignoring unknown config attribute.", "path", path, "name", name)
		}
	}

	model, err := translateProject(&root)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	model.ConfigDir = filepath.Dir(path)
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	logger.Debug("HCL loading complete.", "root", model.Root, "globs", model.Globs, "adapter", model.Adapter)
	return model, nil
}

// findUp walks from dir towards the filesystem root looking for name. It
// returns "" when no such file exists.
func findUp(dir, name string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		switch {
		case err == nil && !info.IsDir():
			return candidate, nil
		case err != nil && !errors.Is(err, os.ErrNotExist):
			return "", fmt.Errorf("error accessing path %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// ParseManifest reads a function entry manifest.
func ParseManifest(path string) (*config.Manifest, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseManifestSource(src, path)
}

// ParseManifestSource parses manifest bytes; filename is used in diagnostics.
func ParseManifestSource(src []byte, filename string) (*config.Manifest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filename, diags)
	}

	var m schema.Manifest
	diags = gohcl.DecodeBody(file.Body, nil, &m)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", filename, diags)
	}
	return translateManifest(&m, filename)
}
