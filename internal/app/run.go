package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/vk/devfn/internal/build"
	"github.com/vk/devfn/internal/ctxlog"
	"github.com/vk/devfn/internal/hcl"
	"github.com/vk/devfn/internal/relay"
	"github.com/vk/devfn/internal/watcher"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 5 * time.Second

// Run starts the incremental compiler and the dev server and blocks until
// ctx is cancelled or either of them fails.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	cacheDir, err := watcher.CacheDir(a.root)
	if err != nil {
		return fmt.Errorf("failed to prepare cache directory: %w", err)
	}
	a.logger.Debug("Cache directory ready.", "dir", cacheDir)

	observers := build.Observers{a.tracker}
	if a.model.ReloadURL != "" {
		rl, err := relay.Dial(ctx, a.model.ReloadURL, a.logger)
		if err != nil {
			a.logger.Warn("Build relay disabled.", "url", a.model.ReloadURL, "error", err)
		} else {
			defer rl.Close()
			observers = append(observers, rl)
		}
	}

	var ignore []string
	if a.model.ConfigDir != "" {
		ignore = append(ignore, filepath.Join(a.model.ConfigDir, hcl.ConfigFileName))
	}
	compiler := watcher.New(a.root, cacheDir, a.rules, observers,
		watcher.WithIgnore(ignore...),
		watcher.WithPollInterval(a.cfg.PollInterval),
		watcher.WithExports(a.registry),
		watcher.WithLogger(a.logger),
		watcher.WithMetrics(a.metrics),
	)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	server := &http.Server{
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return compiler.Run(gctx)
	})
	g.Go(func() error {
		a.logger.Info("🚀 Dev server listening", "address", fmt.Sprintf("http://localhost:%d", ln.Addr().(*net.TCPAddr).Port))
		a.markReady(ln.Addr())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dev server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		a.logger.Info("Shutting down dev server...")
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Dev server shutdown failed", "error", err)
			return err
		}
		a.logger.Debug("Dev server shut down gracefully.")
		return nil
	})

	err = g.Wait()
	a.logger.Debug("App.Run method finished.")
	return err
}
