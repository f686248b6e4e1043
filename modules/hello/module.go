// Package hello provides sample functions covering every export shape the
// dev server accepts.
package hello

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/devfn/internal/adapter"
	"github.com/vk/devfn/internal/ctxlog"
	"github.com/vk/devfn/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Greet is a plain net/http handler.
func Greet(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "world"
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Hello, %s!\n", name)
}

// Slow holds its admission slot for the requested duration, which makes the
// per-function concurrency limit observable.
func Slow(w http.ResponseWriter, r *http.Request) error {
	d, err := time.ParseDuration(r.URL.Query().Get("for"))
	if err != nil {
		d = time.Second
	}
	ctxlog.FromContext(r.Context()).Debug("Slow handler sleeping.", "duration", d)
	select {
	case <-time.After(d):
	case <-r.Context().Done():
		return r.Context().Err()
	}
	_, err = fmt.Fprintf(w, "slept %s\n", d)
	return err
}

// Time is a platform-agnostic fetch-style function; it needs the wrapping
// adapter.
func Time(ctx context.Context, req *http.Request) (*adapter.Response, error) {
	return adapter.JSON(http.StatusOK, map[string]string{
		"time":   time.Now().UTC().Format(time.RFC3339),
		"method": req.Method,
	})
}

// Register registers the sample exports.
func (m *Module) Register(r *registry.Registry) {
	r.Export("env", adapter.Fetch(Env))
	r.Export("greet", http.HandlerFunc(Greet))
	r.Export("greet_default", &registry.Namespace{Default: registry.Namespace{Default: Greet}})
	r.Export("slow", adapter.Handler(Slow))
	r.Export("time", adapter.Fetch(Time))
	r.Export("version", "devfn sample module v1")
}
