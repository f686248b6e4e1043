package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/devfn/internal/build"
	"github.com/vk/devfn/internal/fsutil"
	"github.com/vk/devfn/internal/hcl"
	"github.com/vk/devfn/internal/metrics"
	"github.com/vk/devfn/internal/naming"
)

// DefaultPollInterval is how often the source tree is scanned for changes.
const DefaultPollInterval = 500 * time.Millisecond

// ExportLookup checks that a manifest's handler exists at compile time.
// *registry.Registry implements it.
type ExportLookup interface {
	Lookup(name string) (any, bool)
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Compiler) { c.interval = d }
}

// WithExports makes builds fail for manifests naming unknown handlers.
func WithExports(e ExportLookup) Option {
	return func(c *Compiler) { c.exports = e }
}

// WithIgnore excludes the given files, such as the project config, from
// the build even when they match the naming rules.
func WithIgnore(paths ...string) Option {
	return func(c *Compiler) {
		for _, p := range paths {
			c.ignore[filepath.Clean(p)] = struct{}{}
		}
	}
}

// WithLogger sets the compiler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// WithMetrics records build counts and durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Compiler) { c.metrics = m }
}

// Compiler watches root and compiles entry files into cacheDir.
type Compiler struct {
	root     string
	cacheDir string
	rules    naming.Rules
	observer build.Observer
	interval time.Duration
	exports  ExportLookup
	logger   *slog.Logger
	metrics  *metrics.Metrics
	ignore   map[string]struct{}

	// sources maps entry paths to the content hash of the last build.
	sources map[string]string
	// scanErr is the scan error of the last build, if any.
	scanErr string
}

// New creates a compiler. cacheDir must exist.
func New(root, cacheDir string, rules naming.Rules, observer build.Observer, opts ...Option) *Compiler {
	c := &Compiler{
		root:     root,
		cacheDir: cacheDir,
		rules:    rules,
		observer: observer,
		interval: DefaultPollInterval,
		logger:   slog.Default(),
		ignore:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CacheDir returns the per-root cache directory under the system temp dir,
// emptied and ready for use.
func CacheDir(root string) (string, error) {
	tmp, err := filepath.EvalSymlinks(os.TempDir())
	if err != nil {
		return "", err
	}
	return fsutil.EmptyDir(filepath.Join(tmp, "devfn-"+fsutil.Hash([]byte(root), 8)))
}

// Run performs the initial build and then rebuilds on every detected change
// until ctx is cancelled.
func (c *Compiler) Run(ctx context.Context) error {
	c.logger.Info("👀 Watching for changes...", "root", c.root, "globs", c.rules.Globs())
	c.Rebuild()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Watcher stopped.")
			return nil
		case <-ticker.C:
			if _, err := c.Poll(); err != nil {
				c.logger.Debug("Scan failed.", "error", err)
			}
		}
	}
}

// Poll scans the source tree and rebuilds when it changed since the last
// build. It reports whether a build ran.
func (c *Compiler) Poll() (bool, error) {
	sources, err := c.scan()
	if err != nil {
		if err.Error() == c.scanErr {
			return false, err
		}
		c.publishFailure(err)
		return true, err
	}
	if c.scanErr == "" && c.sources != nil && maps.Equal(sources, c.sources) {
		return false, nil
	}
	c.build(sources)
	return true, nil
}

// Rebuild scans and builds unconditionally.
func (c *Compiler) Rebuild() *build.Result {
	sources, err := c.scan()
	if err != nil {
		return c.publishFailure(err)
	}
	return c.build(sources)
}

// scan hashes every entry file under root.
func (c *Compiler) scan() (map[string]string, error) {
	files, err := fsutil.FindFiles(c.root, c.match, c.cacheDir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", c.root, err)
	}
	sources := make(map[string]string, len(files))
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(c.root, filepath.FromSlash(rel)))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue // removed mid-scan, picked up next poll
			}
			return nil, err
		}
		sources[rel] = fsutil.Hash(data, 0)
	}
	return sources, nil
}

func (c *Compiler) match(rel string) bool {
	if _, ok := c.ignore[filepath.Join(c.root, filepath.FromSlash(rel))]; ok {
		return false
	}
	return c.rules.Match(rel)
}

func (c *Compiler) publishFailure(err error) *build.Result {
	c.observer.BuildStarted()
	c.scanErr = err.Error()
	c.sources = nil
	result := &build.Result{Outputs: map[string]build.Output{}, Errors: []error{err}}
	c.logger.Error("❌ Build failed.", "error", err)
	c.count(result, 0)
	c.observer.BuildFinished(result)
	return result
}

// build compiles sources into the cache directory and publishes the result.
func (c *Compiler) build(sources map[string]string) *build.Result {
	c.observer.BuildStarted()
	start := time.Now()

	result := &build.Result{Outputs: make(map[string]build.Output, len(sources))}
	for rel := range sources {
		out, err := c.compile(rel)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Outputs[out] = build.Output{EntryPoint: rel}
	}
	c.prune(sources)

	c.sources = sources
	c.scanErr = ""
	elapsed := time.Since(start)
	if err := result.Err(); err != nil {
		c.logger.Error("❌ Build failed.", "errors", len(result.Errors), "error", err)
	} else {
		c.logger.Info("🔨 Build finished.", "entries", len(result.Outputs), "duration", elapsed)
	}
	c.count(result, elapsed)
	c.observer.BuildFinished(result)
	return result
}

// compile validates one manifest and writes it to the cache directory,
// returning the output path.
func (c *Compiler) compile(rel string) (string, error) {
	src := filepath.Join(c.root, filepath.FromSlash(rel))
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	manifest, err := hcl.ParseManifestSource(data, src)
	if err != nil {
		return "", err
	}
	if c.exports != nil {
		if _, ok := c.exports.Lookup(manifest.Handler); !ok {
			return "", fmt.Errorf("%s: handler %q is not registered", rel, manifest.Handler)
		}
	}

	out := filepath.Join(c.cacheDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", err
	}
	// Write to a temp file and rename so importers never see a partial file.
	tmp := out + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, out); err != nil {
		return "", err
	}
	return out, nil
}

// prune removes outputs whose sources disappeared since the last build.
func (c *Compiler) prune(sources map[string]string) {
	for rel := range c.sources {
		if _, ok := sources[rel]; ok {
			continue
		}
		out := filepath.Join(c.cacheDir, filepath.FromSlash(rel))
		if err := os.Remove(out); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("Failed to remove stale output.", "file", out, "error", err)
		}
	}
}

func (c *Compiler) count(result *build.Result, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	if result.Err() != nil {
		outcome = "failure"
	}
	c.metrics.Builds.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		c.metrics.BuildTime.Observe(elapsed.Seconds())
	}
}
