// Package watcher is the incremental compiler behind the dev server. It
// polls the project root for function entry files, and whenever their set or
// contents change it "compiles" them: each manifest is parsed and validated,
// then written to the cache directory. Start and end of every build are
// reported to a build.Observer.
package watcher
