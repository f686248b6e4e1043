// Package build models the output of the incremental compiler and tracks
// the lifecycle of "the current build".
//
// # Build Generations
//
// Every completed build is stamped with a strictly increasing generation id
// by the Tracker. Handlers are scoped to the generation that produced them,
// so anything cached per task must be keyed by generation as well.
//
// # Waiting for Builds
//
// The Tracker starts with a build pending, because the compiler always runs
// once at startup. Callers of Current block while a build is in flight and
// return immediately otherwise:
//
//	result, err := tracker.Current(ctx)
//	if errors.Is(err, build.ErrBuildFailed) {
//	    // no usable build until the next successful one
//	}
//
// # Thread-Safety
//
// Result values are immutable once published and may be read concurrently
// without locking. The Tracker guards its own state with a mutex.
package build
