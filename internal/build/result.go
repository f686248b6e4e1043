package build

import (
	"errors"
	"sort"
)

// ErrBuildFailed is returned by Tracker.Current when the latest build
// finished with errors.
var ErrBuildFailed = errors.New("build failed")

// Output describes a single file produced by the compiler.
type Output struct {
	// EntryPoint is the slash-separated source entry file, relative to the
	// project root, that produced this output. Empty means the output is
	// not an entry point (e.g. a shared chunk).
	EntryPoint string
}

// Result is an immutable snapshot produced by the compiler.
type Result struct {
	// Generation is assigned by the Tracker when the result is published.
	Generation uint64
	// Outputs maps absolute output file paths to their descriptors.
	Outputs map[string]Output
	// Errors holds compile errors. A result with errors is not servable.
	Errors []error
}

// Err joins the result's compile errors, or returns nil.
func (r *Result) Err() error {
	if r == nil || len(r.Errors) == 0 {
		return nil
	}
	return errors.Join(r.Errors...)
}

// OutputFiles returns the output paths in sorted order.
func (r *Result) OutputFiles() []string {
	files := make([]string, 0, len(r.Outputs))
	for f := range r.Outputs {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Observer receives compiler lifecycle notifications.
type Observer interface {
	BuildStarted()
	BuildFinished(result *Result)
}

// Observers fans notifications out to several observers, in order.
type Observers []Observer

// BuildStarted implements Observer.
func (o Observers) BuildStarted() {
	for _, obs := range o {
		obs.BuildStarted()
	}
}

// BuildFinished implements Observer.
func (o Observers) BuildFinished(result *Result) {
	for _, obs := range o {
		obs.BuildFinished(result)
	}
}
