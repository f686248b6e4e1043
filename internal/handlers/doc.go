// Package handlers resolves compiled function files to invocable handlers
// and caches them per build generation.
//
// # Resolution
//
// An Importer turns a compiled output file into a fresh Module. The loader
// then unwraps default-export indirection (registry.Namespace values) until
// it reaches something callable, bounded by a maximum depth so circular
// re-exports fail instead of looping forever. Fetch-style functions are
// callable only when the wrapping adapter is enabled.
//
// # Caching
//
// The cache holds one entry per task name tagged with the generation that
// produced it. A lookup for a newer generation always re-imports, because
// the compiled file behind a task may change between builds even when its
// path does not. Concurrent loads of the same task and generation share one
// import.
package handlers
