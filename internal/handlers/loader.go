package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/vk/devfn/internal/adapter"
	"github.com/vk/devfn/internal/config"
	"github.com/vk/devfn/internal/ctxlog"
	"github.com/vk/devfn/internal/registry"
	"github.com/vk/devfn/internal/routes"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxUnwrapDepth bounds default-export unwrapping.
const DefaultMaxUnwrapDepth = 16

var (
	// ErrNotAFunction is matched when unwrapping found nothing callable.
	ErrNotAFunction = errors.New("is not a function")
	// ErrAdapterRequired is matched when a fetch-style function is found but
	// the wrapping adapter is disabled.
	ErrAdapterRequired = errors.New("fetch-style function requires adapter \"wrapping\"")
)

// ResolutionError reports a failure to turn a compiled file into a handler.
type ResolutionError struct {
	Task string
	File string
	Err  error
}

func (e *ResolutionError) Error() string {
	if errors.Is(e.Err, ErrNotAFunction) {
		return fmt.Sprintf("task %s %v", e.Task, e.Err)
	}
	return fmt.Sprintf("task %s: resolving %s: %v", e.Task, e.File, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Handler is an invocable function scoped to one build generation.
type Handler struct {
	Task       string
	File       string
	Generation uint64

	serve adapter.Handler
}

// Serve invokes the function. A returned error means the invocation failed;
// panics raised by the function are not recovered here.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) error {
	return h.serve(w, r)
}

// Option configures a Loader.
type Option func(*Loader)

// WithMaxUnwrapDepth overrides DefaultMaxUnwrapDepth.
func WithMaxUnwrapDepth(n int) Option {
	return func(l *Loader) { l.maxDepth = n }
}

// Loader resolves and caches handlers. It is safe for concurrent use.
type Loader struct {
	importer    Importer
	adapterKind config.AdapterKind
	maxDepth    int

	mu    sync.Mutex
	cache map[string]*Handler
	group singleflight.Group
}

// NewLoader creates a loader importing through importer.
func NewLoader(importer Importer, adapterKind config.AdapterKind, opts ...Option) *Loader {
	l := &Loader{
		importer:    importer,
		adapterKind: adapterKind,
		maxDepth:    DefaultMaxUnwrapDepth,
		cache:       make(map[string]*Handler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the handler for route as built by generation, importing it
// if the cache holds no entry for that generation.
func (l *Loader) Load(ctx context.Context, route routes.Route, generation uint64) (*Handler, error) {
	if h := l.cached(route.TaskName, generation); h != nil {
		return h, nil
	}

	key := route.TaskName + "@" + strconv.FormatUint(generation, 10)
	v, err, shared := l.group.Do(key, func() (any, error) {
		return l.load(ctx, route, generation)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		ctxlog.FromContext(ctx).Debug("Shared concurrent handler load.", "task", route.TaskName, "generation", generation)
	}
	return v.(*Handler), nil
}

func (l *Loader) cached(task string, generation uint64) *Handler {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.cache[task]; ok && h.Generation == generation {
		return h
	}
	return nil
}

func (l *Loader) load(ctx context.Context, route routes.Route, generation uint64) (*Handler, error) {
	logger := ctxlog.FromContext(ctx).With("task", route.TaskName, "generation", generation)
	if h := l.cached(route.TaskName, generation); h != nil {
		return h, nil
	}

	mod, err := l.importer.Import(ctx, route.OutputFile)
	if err != nil {
		return nil, &ResolutionError{Task: route.TaskName, File: route.OutputFile, Err: err}
	}
	serve, err := l.unwrap(mod.Exports)
	if err != nil {
		return nil, &ResolutionError{Task: route.TaskName, File: route.OutputFile, Err: err}
	}
	if len(mod.Headers) > 0 {
		serve = withHeaders(serve, mod.Headers)
	}

	h := &Handler{
		Task:       route.TaskName,
		File:       route.OutputFile,
		Generation: generation,
		serve:      serve,
	}

	l.mu.Lock()
	prev, ok := l.cache[route.TaskName]
	switch {
	case ok && prev.Generation == generation:
		h = prev
	case !ok || prev.Generation < generation:
		l.cache[route.TaskName] = h
	}
	l.mu.Unlock()

	logger.Debug("Handler loaded.", "file", route.OutputFile)
	return h, nil
}

// unwrap follows Namespace indirection until a callable is found.
func (l *Loader) unwrap(v any) (adapter.Handler, error) {
	for depth := 0; depth <= l.maxDepth; depth++ {
		switch fn := v.(type) {
		case *registry.Namespace:
			if fn == nil {
				return nil, ErrNotAFunction
			}
			v = fn.Default
		case registry.Namespace:
			v = fn.Default
		case adapter.Handler:
			return fn, nil
		case func(http.ResponseWriter, *http.Request) error:
			return fn, nil
		case http.Handler:
			return adapter.Lift(fn), nil
		case func(http.ResponseWriter, *http.Request):
			return adapter.Lift(http.HandlerFunc(fn)), nil
		case adapter.Fetch:
			return l.adapt(fn)
		case func(context.Context, *http.Request) (*adapter.Response, error):
			return l.adapt(fn)
		default:
			return nil, ErrNotAFunction
		}
	}
	return nil, fmt.Errorf("%w (default export chain deeper than %d)", ErrNotAFunction, l.maxDepth)
}

func (l *Loader) adapt(fn adapter.Fetch) (adapter.Handler, error) {
	if l.adapterKind != config.AdapterWrapping {
		return nil, ErrAdapterRequired
	}
	return adapter.Wrap(fn), nil
}

func withHeaders(next adapter.Handler, headers map[string]string) adapter.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		return next(w, r)
	}
}

// Len returns the number of cached handlers.
func (l *Loader) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cache)
}
