package build

import (
	"context"
	"sync"
)

// pendingBuild is a single-resolution future for an in-flight build.
type pendingBuild struct {
	done   chan struct{}
	result *Result
}

// Tracker owns the "current build" state: the latest completed result and
// at most one pending build.
type Tracker struct {
	mu         sync.Mutex
	pending    *pendingBuild
	latest     *Result
	generation uint64
}

// NewTracker returns a tracker with the initial build already pending.
func NewTracker() *Tracker {
	return &Tracker{pending: newPendingBuild()}
}

func newPendingBuild() *pendingBuild {
	return &pendingBuild{done: make(chan struct{})}
}

// Start marks a build as in flight. It is a no-op if one already is.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		t.pending = newPendingBuild()
	}
}

// End publishes a completed build, stamping it with the next generation id
// and releasing everyone waiting on the pending build.
func (t *Tracker) End(result *Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.generation++
	result.Generation = t.generation
	t.latest = result

	if t.pending != nil {
		t.pending.result = result
		close(t.pending.done)
		t.pending = nil
	}
}

// BuildStarted implements Observer.
func (t *Tracker) BuildStarted() { t.Start() }

// BuildFinished implements Observer.
func (t *Tracker) BuildFinished(result *Result) { t.End(result) }

// Current returns the pending build's result once it completes, or the
// latest result immediately when no build is in flight. It returns
// ErrBuildFailed (with the failed result) when that build has errors, and
// ctx.Err() if ctx ends first.
func (t *Tracker) Current(ctx context.Context) (*Result, error) {
	t.mu.Lock()
	pending, latest := t.pending, t.latest
	t.mu.Unlock()

	result := latest
	if pending != nil {
		select {
		case <-pending.done:
			result = pending.result
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if result.Err() != nil {
		return result, ErrBuildFailed
	}
	return result, nil
}

// Latest returns the most recently completed result without waiting, or nil
// before the first build finishes.
func (t *Tracker) Latest() *Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest
}

// Pending reports whether a build is in flight.
func (t *Tracker) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}
