package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/vk/devfn/internal/admission"
	"github.com/vk/devfn/internal/build"
	"github.com/vk/devfn/internal/ctxlog"
	"github.com/vk/devfn/internal/handlers"
	"github.com/vk/devfn/internal/metrics"
	"github.com/vk/devfn/internal/naming"
	"github.com/vk/devfn/internal/routes"
)

// RequestIDHeader is set on every dispatched response.
const RequestIDHeader = "X-Request-Id"

// Builds provides the build result a request is served from.
type Builds interface {
	Current(ctx context.Context) (*build.Result, error)
}

// Admitter hands out admission slots per task.
type Admitter interface {
	Acquire(ctx context.Context, task string) (*admission.Slot, error)
}

// HandlerLoader resolves a route to a handler for one build generation.
type HandlerLoader interface {
	Load(ctx context.Context, route routes.Route, generation uint64) (*handlers.Handler, error)
}

// ExecutionError reports a handler that failed or panicked.
type ExecutionError struct {
	Task string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.Task, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the base logger for requests. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics counts dispatched requests by status code.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher is the http.Handler serving all function routes.
type Dispatcher struct {
	builds    Builds
	rules     naming.Rules
	admission Admitter
	loader    HandlerLoader
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New wires a Dispatcher.
func New(builds Builds, rules naming.Rules, adm Admitter, loader HandlerLoader, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		builds:    builds,
		rules:     rules,
		admission: adm,
		loader:    loader,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ServeHTTP implements http.Handler.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set(RequestIDHeader, requestID)

	logger := d.logger.With("request_id", requestID, "method", r.Method, "path", r.URL.Path)
	r = r.WithContext(ctxlog.WithLogger(r.Context(), logger))

	rw := &responseWriter{ResponseWriter: w}
	d.dispatch(rw, r)

	if d.metrics != nil && rw.status != 0 {
		d.metrics.Requests.WithLabelValues(strconv.Itoa(rw.status)).Inc()
	}
}

func (d *Dispatcher) dispatch(w *responseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.FromContext(ctx)

	result, err := d.builds.Current(ctx)
	switch {
	case errors.Is(err, build.ErrBuildFailed):
		logger.Error("No build available, the latest build failed.", "error", result.Err())
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	case err != nil:
		logger.Debug("Request abandoned while waiting for a build.", "error", err)
		return
	}

	route, ok := routes.Resolve(result, d.rules, r.URL.Path)
	if !ok {
		logger.Debug("No function matches path.", "generation", result.Generation)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	logger = logger.With("task", route.TaskName)
	ctx = ctxlog.WithLogger(ctx, logger)

	slot, err := d.admission.Acquire(ctx, route.TaskName)
	if err != nil {
		if errors.Is(err, admission.ErrTimeout) {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		logger.Debug("Request abandoned while waiting for admission.", "error", err)
		return
	}
	defer slot.Release()

	h, err := d.loader.Load(ctx, route, result.Generation)
	if err != nil {
		logger.Error("Failed to resolve handler.", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if err := invoke(w, r.WithContext(ctx), h); err != nil {
		logger.Error("Function invocation failed.", "error", err)
		if !w.wroteHeader() {
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}
	logger.Debug("Function invocation finished.", "generation", h.Generation, "status", w.status)
}

// invoke runs the handler, converting a panic into an ExecutionError.
// http.ErrAbortHandler is re-raised so net/http aborts the response.
func invoke(w http.ResponseWriter, r *http.Request, h *handlers.Handler) (err error) {
	defer func() {
		if p := recover(); p != nil {
			if p == http.ErrAbortHandler {
				panic(p)
			}
			pErr, ok := p.(error)
			if !ok {
				pErr = fmt.Errorf("%v", p)
			}
			err = &ExecutionError{Task: h.Task, Err: fmt.Errorf("panic: %w", pErr)}
		}
	}()
	if err := h.Serve(w, r); err != nil {
		return &ExecutionError{Task: h.Task, Err: err}
	}
	return nil
}
