package app

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vk/devfn/internal/routes"
)

// reservedPrefix holds the dev server's own endpoints; it never reaches
// functions.
const reservedPrefix = "/_devfn"

// routeInfo describes one servable function in the routes listing.
type routeInfo struct {
	Path    string `json:"path"`
	Task    string `json:"task"`
	File    string `json:"file"`
	Limit   int    `json:"limit"`
	Running int    `json:"running"`
	Queued  int    `json:"queued"`
}

// Router builds the dev server's HTTP handler.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Route(reservedPrefix, func(r chi.Router) {
		r.Use(middleware.Recoverer)
		r.Get("/health", a.healthHandler)
		r.Method(http.MethodGet, "/metrics", a.metrics.Handler())
		r.Get("/routes", a.routesHandler)
	})
	r.Handle("/*", a.dispatcher)
	return r
}

// healthHandler reports liveness.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// routesHandler lists the functions of the latest build without waiting for
// a pending one.
func (a *App) routesHandler(w http.ResponseWriter, r *http.Request) {
	list := []routeInfo{}
	for _, rt := range routes.List(a.tracker.Latest(), a.rules) {
		running, queued := a.admission.Stats(rt.TaskName)
		list = append(list, routeInfo{
			Path:    "/" + rt.TaskName,
			Task:    rt.TaskName,
			File:    rt.OutputFile,
			Limit:   a.admission.Limit(rt.TaskName),
			Running: running,
			Queued:  queued,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(list); err != nil {
		a.logger.Warn("Failed to write routes listing.", "error", err)
	}
}
