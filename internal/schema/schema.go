// Package schema holds the HCL decoding targets for the files devfn reads:
// the project configuration and function entry manifests.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// --- Project Configuration ---

// Project represents the top-level structure of a `devfn.hcl` file.
type Project struct {
	Root        string   `hcl:"root,optional"`
	Globs       []string `hcl:"globs,optional"`
	Extensions  []string `hcl:"extensions,optional"`
	EntrySuffix *string  `hcl:"entry_suffix,optional"`
	Adapter     string   `hcl:"adapter,optional"`
	ReloadURL   string   `hcl:"reload_url,optional"`

	// MaxInstanceConcurrency is either a number or an object mapping task
	// names to numbers, so it is kept as a raw expression and evaluated later.
	MaxInstanceConcurrency hcl.Expression `hcl:"max_instance_concurrency,optional"`

	Remain hcl.Body `hcl:",remain"`
}

// --- Function Manifests ---

// Manifest represents a function entry file. It names the Go export that
// serves the function and optional static response headers.
type Manifest struct {
	Handler string         `hcl:"handler"`
	Headers hcl.Expression `hcl:"headers,optional"`
	Remain  hcl.Body       `hcl:",remain"`
}
