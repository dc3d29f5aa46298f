package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/relay-gateway/internal/dispatch"
	"github.com/nerrad567/relay-gateway/internal/infrastructure/config"
	"github.com/nerrad567/relay-gateway/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Dispatcher is the part of the dispatch worker the API needs.
type Dispatcher interface {
	Submit(ctx context.Context, cmd dispatch.Command) (dispatch.Response, error)
	State() dispatch.State
	QueueDepth() int
}

// ConnectionStatus reports an optional upstream link, such as MQTT.
type ConnectionStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Metrics    config.MetricsConfig
	Logger     *logging.Logger
	Dispatcher Dispatcher
	Hub        *Hub             // optional; created when nil
	Collectors *Metrics         // optional; created when nil and metrics are enabled
	MQTT       ConnectionStatus // optional
	History    HistoryReader    // optional; enables GET /history
	Panel      http.Handler     // optional; dashboard mounted under /ui/
	Source     string           // config source description for /health
	Version    string
}

// Server is the HTTP API server for the relay gateway.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	metricsCfg config.MetricsConfig
	logger     *logging.Logger
	dispatcher Dispatcher
	hub        *Hub
	metrics    *Metrics
	mqtt       ConnectionStatus
	history    HistoryReader
	panel      http.Handler
	source     string
	version    string
	startTime  time.Time

	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		metricsCfg: deps.Metrics,
		logger:     deps.Logger,
		dispatcher: deps.Dispatcher,
		hub:        deps.Hub,
		metrics:    deps.Collectors,
		mqtt:       deps.MQTT,
		history:    deps.History,
		panel:      deps.Panel,
		source:     deps.Source,
		version:    deps.Version,
		startTime:  time.Now(),
	}
	if s.hub == nil {
		s.hub = NewHub(deps.WS, deps.Logger)
	}
	if s.metrics == nil && deps.Metrics.Enabled {
		s.metrics = NewMetrics(deps.Dispatcher)
	}
	if s.wsCfg.Path == "" {
		s.wsCfg.Path = "/ws"
	}
	if s.metricsCfg.Path == "" {
		s.metricsCfg.Path = "/metrics"
	}

	return s, nil
}

// Hub returns the WebSocket hub, for registration as a worker observer.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Metrics returns the Prometheus collectors, or nil when disabled.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in a background goroutine.
// A bind failure is returned immediately.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
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

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
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
