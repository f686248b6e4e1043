package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/devfn/internal/build"
	"github.com/vk/devfn/internal/metrics"
	"github.com/vk/devfn/internal/naming"
)

// recorder is a build.Observer capturing every notification.
type recorder struct {
	mu      sync.Mutex
	started int
	results []*build.Result
}

func (r *recorder) BuildStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *recorder) BuildFinished(result *build.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *recorder) last() *build.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.results) == 0 {
		return nil
	}
	return r.results[len(r.results)-1]
}

type exports map[string]bool

func (e exports) Lookup(name string) (any, bool) { return nil, e[name] }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newCompiler(t *testing.T, opts ...Option) (*Compiler, *recorder, string, string) {
	t.Helper()
	root := t.TempDir()
	cache := t.TempDir()
	rec := &recorder{}
	rules := naming.New(naming.Options{EntrySuffix: "task"})
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(root, cache, rules, rec, opts...), rec, root, cache
}

func TestRebuild_CompilesEntries(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	c, rec, root, cache := newCompiler(t, WithExports(exports{"greet": true}))
	writeFile(t, filepath.Join(root, "api", "greet.task.hcl"), `handler = "greet"`)
	writeFile(t, filepath.Join(root, "api", "helper.hcl"), `not = "an entry"`)

	// --- Act ---
	result := c.Rebuild()

	// --- Assert ---
	require.NoError(t, result.Err())
	out := filepath.Join(cache, "api", "greet.task.hcl")
	assert.Equal(t, map[string]build.Output{out: {EntryPoint: "api/greet.task.hcl"}}, result.Outputs)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, `handler = "greet"`, string(data))
	assert.Equal(t, 1, rec.started)
	assert.Same(t, result, rec.last())
}

func TestRebuild_InvalidManifestFails(t *testing.T) {
	t.Parallel()

	c, _, root, _ := newCompiler(t, WithExports(exports{"greet": true}))
	writeFile(t, filepath.Join(root, "ok.task.hcl"), `handler = "greet"`)
	writeFile(t, filepath.Join(root, "broken.task.hcl"), `handler = `)
	writeFile(t, filepath.Join(root, "unknown.task.hcl"), `handler = "nope"`)

	result := c.Rebuild()

	require.ErrorIs(t, result.Err(), build.ErrBuildFailed)
	assert.Len(t, result.Errors, 2)
	assert.Len(t, result.Outputs, 1)
}

func TestPoll_RebuildsOnlyOnChange(t *testing.T) {
	t.Parallel()

	c, rec, root, cache := newCompiler(t)
	entry := filepath.Join(root, "a.task.hcl")
	writeFile(t, entry, `handler = "a"`)
	c.Rebuild()

	ran, err := c.Poll()
	require.NoError(t, err)
	assert.False(t, ran, "unchanged tree must not rebuild")

	writeFile(t, entry, `handler = "b"`)
	ran, err = c.Poll()
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, rec.started)

	require.NoError(t, os.Remove(entry))
	ran, err = c.Poll()
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Empty(t, rec.last().Outputs)
	assert.NoFileExists(t, filepath.Join(cache, "a.task.hcl"))
}

func TestPoll_RecoversAfterFailedBuild(t *testing.T) {
	t.Parallel()

	c, _, root, _ := newCompiler(t)
	entry := filepath.Join(root, "a.task.hcl")
	writeFile(t, entry, `handler = `)
	require.Error(t, c.Rebuild().Err())

	writeFile(t, entry, `handler = "a"`)
	ran, err := c.Poll()
	require.NoError(t, err)
	require.True(t, ran)
}

func TestRun_FeedsTracker(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "hello.task.hcl"), `handler = "hello"`)
	tracker := build.NewTracker()
	m := metrics.New()
	c := New(root, t.TempDir(), naming.New(naming.Options{EntrySuffix: "task"}), tracker,
		WithPollInterval(10*time.Millisecond),
		WithMetrics(m),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	// --- Act ---
	go func() { done <- c.Run(ctx) }()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	result, err := tracker.Current(waitCtx)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Generation)
	assert.Len(t, result.Outputs, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Builds.WithLabelValues("success")))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestCacheDir(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir, err := CacheDir(root)
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	assert.Contains(t, filepath.Base(dir), "devfn-")

	writeFile(t, filepath.Join(dir, "stale.hcl"), "x")
	again, err := CacheDir(root)
	require.NoError(t, err)
	assert.Equal(t, dir, again)
	assert.NoFileExists(t, filepath.Join(dir, "stale.hcl"))
}

func TestRebuild_IgnoresConfigFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "devfn.hcl"), `adapter = "wrapping"`)
	writeFile(t, filepath.Join(root, "hello.hcl"), `handler = "hello"`)
	c := New(root, t.TempDir(), naming.New(naming.Options{}), &recorder{},
		WithIgnore(filepath.Join(root, "devfn.hcl")),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	result := c.Rebuild()

	require.NoError(t, result.Err())
	require.Len(t, result.Outputs, 1)
}
