package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"sync"

	"github.com/vk/devfn/internal/admission"
	"github.com/vk/devfn/internal/build"
	"github.com/vk/devfn/internal/config"
	"github.com/vk/devfn/internal/ctxlog"
	"github.com/vk/devfn/internal/dispatch"
	"github.com/vk/devfn/internal/handlers"
	"github.com/vk/devfn/internal/metrics"
	"github.com/vk/devfn/internal/naming"
	"github.com/vk/devfn/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	cfg        *Config
	model      *config.Model
	root       string
	rules      naming.Rules
	registry   *registry.Registry
	metrics    *metrics.Metrics
	tracker    *build.Tracker
	admission  *admission.Controller
	dispatcher *dispatch.Dispatcher

	ready    chan struct{}
	addrOnce sync.Once
	addr     net.Addr
}

// NewApp is the constructor for the main application. It loads the project
// configuration and wires every component; nothing runs until Run.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	searchDir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", cfg.Dir, err)
	}
	model, err := loader.Load(ctx, searchDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	root := model.RootDir(searchDir)
	logger.Debug("Configuration loaded.", "root", root, "adapter", model.Adapter)

	if len(modules) == 0 {
		modules = coreModules
	}
	reg := registry.New(modules...)
	logger.Debug("All Go modules registered.", "count", len(modules), "exports", reg.Names())

	rules := naming.New(naming.Options{
		EntrySuffix: model.EntrySuffix,
		Globs:       model.Globs,
		Extensions:  model.Extensions,
	})
	m := metrics.New()
	tracker := build.NewTracker()
	controller := admission.New(model.MaxInstanceConcurrency, admission.WithMetrics(m))
	handlerLoader := handlers.NewLoader(handlers.NewManifestImporter(reg), model.Adapter)

	return &App{
		outW:      outW,
		logger:    logger,
		cfg:       cfg,
		model:     model,
		root:      root,
		rules:     rules,
		registry:  reg,
		metrics:   m,
		tracker:   tracker,
		admission: controller,
		dispatcher: dispatch.New(tracker, rules, controller, handlerLoader,
			dispatch.WithLogger(logger),
			dispatch.WithMetrics(m),
		),
		ready: make(chan struct{}),
	}, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Root returns the directory searched for function entry files.
func (a *App) Root() string {
	return a.root
}

// Ready is closed once the server is listening.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// Addr returns the listening address; it is nil before Ready is closed.
func (a *App) Addr() net.Addr {
	select {
	case <-a.ready:
		return a.addr
	default:
		return nil
	}
}

func (a *App) markReady(addr net.Addr) {
	a.addrOnce.Do(func() {
		a.addr = addr
		close(a.ready)
	})
}
