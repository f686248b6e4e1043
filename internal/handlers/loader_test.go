package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/devfn/internal/adapter"
	"github.com/vk/devfn/internal/config"
	"github.com/vk/devfn/internal/registry"
	"github.com/vk/devfn/internal/routes"
)

// fakeImporter returns a fixed module value and counts imports.
type fakeImporter struct {
	exports any
	headers map[string]string
	err     error
	imports atomic.Int64
}

func (f *fakeImporter) Import(ctx context.Context, file string) (*Module, error) {
	f.imports.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &Module{Exports: f.exports, Headers: f.headers}, nil
}

var greetRoute = routes.Route{TaskName: "greet", OutputFile: "/cache/greet.hcl"}

func teapot(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
}

func serve(t *testing.T, h *Handler) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, h.Serve(rec, httptest.NewRequest(http.MethodGet, "/greet", nil)))
	return rec
}

func TestLoad_Callables(t *testing.T) {
	t.Parallel()

	fetch := adapter.Fetch(func(ctx context.Context, req *http.Request) (*adapter.Response, error) {
		return &adapter.Response{Status: http.StatusTeapot}, nil
	})

	tests := []struct {
		name    string
		exports any
	}{
		{name: "func", exports: teapot},
		{name: "http.HandlerFunc", exports: http.HandlerFunc(teapot)},
		{name: "error returning", exports: func(w http.ResponseWriter, r *http.Request) error { teapot(w, r); return nil }},
		{name: "namespace", exports: &registry.Namespace{Default: teapot}},
		{name: "nested namespaces", exports: &registry.Namespace{Default: registry.Namespace{Default: &registry.Namespace{Default: teapot}}}},
		{name: "fetch with adapter", exports: &registry.Namespace{Default: fetch}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader(&fakeImporter{exports: tt.exports}, config.AdapterWrapping)
			h, err := l.Load(context.Background(), greetRoute, 1)
			require.NoError(t, err)
			assert.Equal(t, "greet", h.Task)
			assert.Equal(t, uint64(1), h.Generation)
			assert.Equal(t, http.StatusTeapot, serve(t, h).Code)
		})
	}
}

func TestLoad_NotAFunction(t *testing.T) {
	t.Parallel()

	circular := &registry.Namespace{}
	circular.Default = circular

	tests := []struct {
		name    string
		exports any
	}{
		{name: "nil", exports: nil},
		{name: "string", exports: "hello"},
		{name: "empty namespace", exports: &registry.Namespace{}},
		{name: "circular re-export", exports: circular},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader(&fakeImporter{exports: tt.exports}, config.AdapterNone)
			h, err := l.Load(context.Background(), greetRoute, 1)
			assert.Nil(t, h)
			require.ErrorIs(t, err, ErrNotAFunction)

			var resErr *ResolutionError
			require.True(t, errors.As(err, &resErr))
			assert.Equal(t, "greet", resErr.Task)
			assert.Contains(t, err.Error(), "task greet is not a function")
			assert.Equal(t, 0, l.Len(), "failed loads are not cached")
		})
	}
}

func TestLoad_UnwrapDepthOption(t *testing.T) {
	t.Parallel()

	exports := &registry.Namespace{Default: &registry.Namespace{Default: teapot}}

	_, err := NewLoader(&fakeImporter{exports: exports}, config.AdapterNone, WithMaxUnwrapDepth(1)).
		Load(context.Background(), greetRoute, 1)
	require.ErrorIs(t, err, ErrNotAFunction)

	_, err = NewLoader(&fakeImporter{exports: exports}, config.AdapterNone, WithMaxUnwrapDepth(2)).
		Load(context.Background(), greetRoute, 1)
	require.NoError(t, err)
}

func TestLoad_FetchWithoutAdapter(t *testing.T) {
	t.Parallel()

	fetch := func(ctx context.Context, req *http.Request) (*adapter.Response, error) { return nil, nil }
	l := NewLoader(&fakeImporter{exports: fetch}, config.AdapterNone)
	_, err := l.Load(context.Background(), greetRoute, 1)
	require.ErrorIs(t, err, ErrAdapterRequired)
}

func TestLoad_ImportFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("file vanished")
	l := NewLoader(&fakeImporter{err: boom}, config.AdapterNone)
	_, err := l.Load(context.Background(), greetRoute, 1)
	require.ErrorIs(t, err, boom)
	var resErr *ResolutionError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, "/cache/greet.hcl", resErr.File)
}

func TestLoad_CachePerGeneration(t *testing.T) {
	t.Parallel()
	imp := &fakeImporter{exports: teapot}
	l := NewLoader(imp, config.AdapterNone)
	ctx := context.Background()

	first, err := l.Load(ctx, greetRoute, 1)
	require.NoError(t, err)
	again, err := l.Load(ctx, greetRoute, 1)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, int64(1), imp.imports.Load())

	// After a rebuild the pre-rebuild handler is never returned.
	rebuilt, err := l.Load(ctx, greetRoute, 2)
	require.NoError(t, err)
	assert.NotSame(t, first, rebuilt)
	assert.Equal(t, uint64(2), rebuilt.Generation)
	assert.Equal(t, int64(2), imp.imports.Load())
	assert.Equal(t, 1, l.Len(), "the older entry is evicted")

	// A request that observed the older generation still gets a handler
	// for that generation, without evicting the newer entry.
	old, err := l.Load(ctx, greetRoute, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), old.Generation)
	latest, err := l.Load(ctx, greetRoute, 2)
	require.NoError(t, err)
	assert.Same(t, rebuilt, latest)
}

func TestLoad_ConcurrentLoadsShareImport(t *testing.T) {
	t.Parallel()
	imp := &fakeImporter{exports: teapot}
	l := NewLoader(imp, config.AdapterNone)

	const callers = 50
	var wg sync.WaitGroup
	got := make([]*Handler, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := l.Load(context.Background(), greetRoute, 7)
			assert.NoError(t, err)
			got[i] = h
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), imp.imports.Load())
	for _, h := range got {
		assert.Same(t, got[0], h)
	}
}

func TestLoad_StaticHeaders(t *testing.T) {
	t.Parallel()
	l := NewLoader(&fakeImporter{exports: teapot, headers: map[string]string{"X-Function": "greet"}}, config.AdapterNone)

	h, err := l.Load(context.Background(), greetRoute, 1)
	require.NoError(t, err)
	rec := serve(t, h)
	assert.Equal(t, "greet", rec.Header().Get("X-Function"))
}

func TestManifestImporter(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	reg.Export("greet", &registry.Namespace{Default: teapot})

	dir := t.TempDir()
	good := filepath.Join(dir, "greet.hcl")
	require.NoError(t, os.WriteFile(good, []byte(`
handler = "greet"
headers = { "Cache-Control" = "no-store" }
`), 0o600))
	missing := filepath.Join(dir, "missing.hcl")
	require.NoError(t, os.WriteFile(missing, []byte(`handler = "nope"`), 0o600))

	imp := NewManifestImporter(reg)
	mod, err := imp.Import(context.Background(), good)
	require.NoError(t, err)
	assert.IsType(t, &registry.Namespace{}, mod.Exports)
	assert.Equal(t, map[string]string{"Cache-Control": "no-store"}, mod.Headers)

	_, err = imp.Import(context.Background(), missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `handler "nope" is not registered`)

	_, err = imp.Import(context.Background(), filepath.Join(dir, "absent.hcl"))
	require.ErrorIs(t, err, os.ErrNotExist)

	// End to end through the loader.
	l := NewLoader(imp, config.AdapterNone)
	h, err := l.Load(context.Background(), routes.Route{TaskName: "greet", OutputFile: good}, 1)
	require.NoError(t, err)
	rec := serve(t, h)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
