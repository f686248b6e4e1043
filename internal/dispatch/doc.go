// Package dispatch routes incoming requests to function handlers.
//
// For every request the Dispatcher waits for a usable build, resolves the
// path to a task, acquires an admission slot for it, loads the handler for
// the build generation it observed and invokes it. Once a slot is acquired
// it is released exactly once on every exit path, including handler panics.
//
// Status codes produced by the dispatcher itself carry no body:
//   - 404 when no function matches the path
//   - 429 when no admission slot frees up in time
//   - 500 when the handler can not be resolved or fails
//   - 503 when the latest build failed
package dispatch
