package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/tankbot-core/internal/audit"
	"github.com/nerrad567/tankbot-core/internal/command"
	"github.com/nerrad567/tankbot-core/internal/infrastructure/config"
	"github.com/nerrad567/tankbot-core/internal/infrastructure/logging"
	"github.com/nerrad567/tankbot-core/internal/link"
	"github.com/nerrad567/tankbot-core/internal/session"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Commander invokes commands. *command.Publisher satisfies it.
type Commander interface {
	Invoke(ctx context.Context, name command.Name) error
	Table() *command.Table
	Stats() command.Stats
}

// SessionStatus reports the broker session state. *session.Supervisor satisfies it.
type SessionStatus interface {
	State() session.State
}

// LinkStatus reports network link readiness. *link.Monitor satisfies it.
type LinkStatus interface {
	Status() link.Status
}

// AuditReader lists the command audit trail.
type AuditReader interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
	ListStates(ctx context.Context, limit int) ([]audit.StateEvent, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Device    config.DeviceConfig
	Logger    *logging.Logger
	Commander Commander
	Session   SessionStatus // optional
	Link      LinkStatus    // optional
	Audit     AuditReader   // optional: /audit returns 503 without it
	Hub       *Hub          // optional: created by Start if nil
	Metrics   http.Handler  // optional: /metrics is not routed without it
	Version   string
}

// Server is the HTTP API server for tankbot.
//
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	device    config.DeviceConfig
	logger    *logging.Logger
	commander Commander
	session   SessionStatus
	link      LinkStatus
	audit     AuditReader
	metrics   http.Handler
	version   string
	startTime time.Time
	server    *http.Server
	listener  net.Listener
	hub       *Hub
	cancel    context.CancelFunc // cancels the hub on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Commander == nil {
		return nil, fmt.Errorf("commander is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		device:    deps.Device,
		logger:    deps.Logger,
		commander: deps.Commander,
		session:   deps.Session,
		link:      deps.Link,
		audit:     deps.Audit,
		hub:       deps.Hub,
		metrics:   deps.Metrics,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Hub returns the WebSocket hub, or nil before Start when none was injected.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed HTTP handler. Used by Start and by tests.
func (s *Server) Handler() http.Handler {
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	return s.buildRouter()
}

// Start binds the listener and serves in a background goroutine.
//
// Binding happens synchronously so a port already in use is reported here.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	handler := s.Handler()
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           handler,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
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

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
