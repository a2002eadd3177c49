package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/springmesh/apigw/internal/config"
	"github.com/springmesh/apigw/internal/observability"
)

// Listener default timeouts, used when the configuration leaves them
// unset.
const (
	defaultReadTimeout       = 30 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	maxHeaderBytes           = 1 << 20
)

// Listener wraps an http.Server bound to the configured address.
type Listener struct {
	cfg     config.ServerConfig
	server  *http.Server
	handler http.Handler
	logger  observability.Logger
	running atomic.Bool

	boundAddr atomic.Value
}

// ListenerOption is a functional option for configuring a listener.
type ListenerOption func(*Listener)

// WithListenerLogger sets the logger for the listener.
func WithListenerLogger(logger observability.Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = logger
	}
}

// NewListener creates a listener serving the given handler.
func NewListener(cfg config.ServerConfig, handler http.Handler, opts ...ListenerOption) *Listener {
	l := &Listener{
		cfg:     cfg,
		handler: handler,
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Address returns the bind address of the listener.
func (l *Listener) Address() string {
	bind := l.cfg.Bind
	if bind == "" {
		bind = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d", bind, l.cfg.Port)
}

// Start binds the address and begins serving in the background.
func (l *Listener) Start(ctx context.Context) error {
	if l.running.Load() {
		return fmt.Errorf("listener on %s is already running", l.Address())
	}

	addr := l.Address()

	l.server = &http.Server{
		Addr:              addr,
		Handler:           l.handler,
		ReadTimeout:       durationOr(l.cfg.ReadTimeout, defaultReadTimeout),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		WriteTimeout:      durationOr(l.cfg.WriteTimeout, defaultWriteTimeout),
		IdleTimeout:       durationOr(l.cfg.IdleTimeout, defaultIdleTimeout),
		MaxHeaderBytes:    maxHeaderBytes,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	l.running.Store(true)
	l.boundAddr.Store(ln.Addr().String())

	l.logger.Info("listener started",
		observability.String("address", addr))

	go l.serve(ln)

	return nil
}

// serve runs the server loop until shutdown.
func (l *Listener) serve(ln net.Listener) {
	if err := l.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		l.logger.Error("listener error",
			observability.String("address", l.Address()),
			observability.Error(err))
	}
	l.running.Store(false)
}

// Stop shuts the listener down gracefully, falling back to a hard close
// when the context expires first.
func (l *Listener) Stop(ctx context.Context) error {
	if !l.running.Load() {
		return nil
	}

	l.logger.Info("stopping listener",
		observability.String("address", l.Address()))

	if err := l.server.Shutdown(ctx); err != nil {
		if closeErr := l.server.Close(); closeErr != nil {
			return closeErr
		}
		return err
	}

	return nil
}

// IsRunning reports whether the listener is serving.
func (l *Listener) IsRunning() bool {
	return l.running.Load()
}

// BoundAddr returns the address the listener actually bound, useful
// when the configured port is 0.
func (l *Listener) BoundAddr() string {
	if addr, ok := l.boundAddr.Load().(string); ok {
		return addr
	}
	return ""
}

func durationOr(d config.Duration, fallback time.Duration) time.Duration {
	if d > 0 {
		return d.Duration()
	}
	return fallback
}
