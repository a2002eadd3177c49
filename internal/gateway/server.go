package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/springmesh/apigw/internal/config"
	"github.com/springmesh/apigw/internal/observability"
)

// State represents the server state.
type State int32

const (
	// StateStopped indicates the server is stopped.
	StateStopped State = iota
	// StateStarting indicates the server is starting.
	StateStarting
	// StateRunning indicates the server is running.
	StateRunning
	// StateStopping indicates the server is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Server owns the inbound listener and its lifecycle. All request
// dispatch goes through a gin engine whose NoRoute handler is the
// gateway pipeline, so every path reaches the resolver.
type Server struct {
	cfg       config.ServerConfig
	logger    observability.Logger
	handler   http.Handler
	engine    *gin.Engine
	listener  *Listener
	state     atomic.Int32
	startTime time.Time

	shutdownTimeout time.Duration
}

// ServerOption is a functional option for configuring the server.
type ServerOption func(*Server)

// WithServerLogger sets the logger for the server.
func WithServerLogger(logger observability.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates the gateway server around the given handler chain.
func NewServer(cfg config.ServerConfig, handler http.Handler, opts ...ServerOption) (*Server, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	s := &Server{
		cfg:             cfg,
		handler:         handler,
		logger:          observability.NopLogger(),
		shutdownTimeout: durationOr(cfg.ShutdownTimeout, 30*time.Second),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.state.Store(int32(StateStopped))

	return s, nil
}

// Start starts the server.
func (s *Server) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return errors.New("server is not in stopped state")
	}

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.NoRoute(gin.WrapH(s.handler))

	s.listener = NewListener(s.cfg, s.engine, WithListenerLogger(s.logger))

	if err := s.listener.Start(ctx); err != nil {
		s.state.Store(int32(StateStopped))
		return err
	}

	s.startTime = time.Now()
	s.state.Store(int32(StateRunning))

	s.logger.Info("gateway server started",
		observability.String("address", s.listener.Address()))

	return nil
}

// Stop stops the server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return errors.New("server is not running")
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}

	err := s.listener.Stop(ctx)

	s.state.Store(int32(StateStopped))

	s.logger.Info("gateway server stopped")

	return err
}

// BoundAddr returns the address of the running listener.
func (s *Server) BoundAddr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.BoundAddr()
}

// State returns the current server state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	return s.State() == StateRunning
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}
