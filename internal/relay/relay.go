// Package relay publishes build lifecycle events to a socket.io server so
// browsers connected to it can live-reload.
package relay

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/vk/devfn/internal/build"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

const (
	EventBuildStart = "build:start"
	EventBuildEnd   = "build:end"
)

// ConnectTimeout bounds how long Dial waits for the server.
const ConnectTimeout = 15 * time.Second

// Emitter is the subset of *socket.Socket used by Relay.
type Emitter interface {
	Emit(ev string, args ...any) error
}

// BuildEnd is the payload of EventBuildEnd.
type BuildEnd struct {
	Generation uint64   `json:"generation"`
	Outputs    int      `json:"outputs"`
	Errors     []string `json:"errors,omitempty"`
}

// Relay is a build.Observer forwarding notifications to an Emitter.
type Relay struct {
	emitter Emitter
	logger  *slog.Logger
	close   func()
}

var _ build.Observer = (*Relay)(nil)

// New wraps an already connected emitter.
func New(emitter Emitter, logger *slog.Logger) *Relay {
	return &Relay{emitter: emitter, logger: logger, close: func() {}}
}

// Dial connects to the socket.io server at rawURL over WebSocket.
func Dial(ctx context.Context, rawURL string, logger *slog.Logger) (*Relay, error) {
	logger = logger.With("relay", rawURL)

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse relay URL: %w", err)
	}

	opts := socket.DefaultOptions()
	if parsed.Path != "" && parsed.Path != "/" {
		opts.SetPath(parsed.Path)
	}
	if parsed.Scheme == "https" || parsed.Scheme == "wss" {
		opts.SetTLSClientConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host), opts)
	io := manager.Socket("/", opts)

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connected <- err
	})
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("relay connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, ctx.Err()
	case <-time.After(ConnectTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for relay connection", ConnectTimeout)
	}

	logger.Info("📡 Build relay connected.", "sid", io.Id())
	r := New(io, logger)
	r.close = func() { io.Disconnect() }
	return r, nil
}

// BuildStarted emits EventBuildStart.
func (r *Relay) BuildStarted() {
	r.emit(EventBuildStart, map[string]any{})
}

// BuildFinished emits EventBuildEnd with a summary of the result.
func (r *Relay) BuildFinished(result *build.Result) {
	payload := BuildEnd{Generation: result.Generation, Outputs: len(result.Outputs)}
	for _, err := range result.Errors {
		payload.Errors = append(payload.Errors, err.Error())
	}
	r.emit(EventBuildEnd, payload)
}

func (r *Relay) emit(ev string, payload any) {
	if err := r.emitter.Emit(ev, payload); err != nil {
		r.logger.Warn("Failed to relay build event.", "event", ev, "error", err)
	}
}

// Close disconnects from the server.
func (r *Relay) Close() {
	r.close()
}
