// Package config defines the format-agnostic configuration model for the dev
// server, along with the Loader interface used to read it from disk.
//
// The `config.Model` is the single source of truth for the naming rules, the
// admission controller and the handler loader. Concrete implementations of
// the Loader interface, such as for HCL, are provided in separate packages.
package config
