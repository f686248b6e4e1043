// Package registry provides the central "glue" for the module system.
//
// The Registry stores mappings between the string identifiers used in
// function manifests (e.g. `handler = "greet"`) and the compiled Go values
// that implement them. Modules add their exports at startup through the
// Module interface; the handler loader looks exports up again for every build
// generation.
//
// An export is any of:
//   - an http.Handler or a func(http.ResponseWriter, *http.Request)
//   - an adapter.Fetch, served only when the adapter is enabled
//   - a *Namespace whose Default field holds another export
package registry
