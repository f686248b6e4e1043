// Package hcl provides the concrete HCL implementation of the configuration
// loading interface defined in the `config` package, and the parser for
// function entry manifests. It is responsible for file discovery, parsing,
// and translating cty values into the format-agnostic model.
package hcl
