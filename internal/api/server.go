package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/elliotnash/piopener/internal/door"
	"github.com/elliotnash/piopener/internal/history"
	"github.com/elliotnash/piopener/internal/infrastructure/config"
	"github.com/elliotnash/piopener/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Door is the controller surface the API drives.
type Door interface {
	Submit(cmd door.Command) error
	State() door.State
	Subscribe() *door.Subscription
}

// HealthChecker is implemented by optional components reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Door     Door
	DoorID   string

	// History is optional; /history answers 503 without it.
	History history.Repository

	// Checks are reported by name on /health.
	Checks map[string]HealthChecker

	Version string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	secCfg  config.SecurityConfig
	logger  *logging.Logger
	door    Door
	doorID  string
	history history.Repository
	checks  map[string]HealthChecker
	version string

	hub     *Hub
	tickets *ticketStore

	// ctx ends every stream when the server closes.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Door == nil {
		return nil, fmt.Errorf("door controller is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		secCfg:  deps.Security,
		logger:  deps.Logger,
		door:    deps.Door,
		doorID:  deps.DoorID,
		history: deps.History,
		checks:  deps.Checks,
		version: deps.Version,
		hub:     NewHub(deps.Logger),
		tickets: newTicketStore(),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Handler returns the routed handler without binding a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in a background goroutine.
//
// The listener is bound before Start returns so address errors surface to
// the caller. Cancelling ctx has the same effect on streams as Close.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	stop := context.AfterFunc(ctx, s.cancel)
	go func() {
		<-s.ctx.Done()
		stop()
	}()

	go s.hub.Run(s.ctx)
	go s.cleanTicketsLoop(s.ctx)

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}

	srv := s.server
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = srv.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close ends all live feeds, then waits up to gracefulShutdownTimeout for
// in-flight requests before closing remaining connections.
func (s *Server) Close() error {
	s.cancel()

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	if s.ctx.Err() != nil {
		return fmt.Errorf("api server closed")
	}
	return nil
}
