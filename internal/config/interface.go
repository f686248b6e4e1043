package config

import "context"

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load searches for a project configuration file starting at searchDir
	// and walking up, and translates it into the format-agnostic model. A
	// missing file is not an error; the returned model then holds defaults
	// with ConfigDir left empty.
	Load(ctx context.Context, searchDir string) (*Model, error)
}
