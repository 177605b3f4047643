package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/cadbridge/internal/access"
	"github.com/nerrad567/cadbridge/internal/auth"
	"github.com/nerrad567/cadbridge/internal/infrastructure/config"
	"github.com/nerrad567/cadbridge/internal/infrastructure/logging"
	"github.com/nerrad567/cadbridge/internal/journal"
	"github.com/nerrad567/cadbridge/internal/operations"
)

// drainTimeout bounds how long Close waits for in-flight requests.
const drainTimeout = 10 * time.Second

// Deps holds what the server needs. Logger, Registry and Filter are
// required; the rest switch features on when set.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Metrics  config.MetricsConfig
	Logger   *logging.Logger

	Registry *operations.Registry
	Filter   *access.Filter

	// SettingsPath is where allow-list changes are persisted.
	SettingsPath string

	AdminEvents journal.AdminRepository
	Hub         *Hub
	Prometheus  *Metrics
	QueueDepth  func() int
	Version     string
}

// Server serves /rpc, /ws, the metrics endpoint and the admin API on a
// listener wrapped by the access filter.
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	secCfg       config.SecurityConfig
	metricsCfg   config.MetricsConfig
	logger       *logging.Logger
	registry     *operations.Registry
	filter       *access.Filter
	settingsPath string
	adminEvents  journal.AdminRepository
	hub          *Hub
	metrics      *Metrics
	queueDepth   func() int
	limiter      *rateLimiter
	signer       *auth.Signer // nil disables the admin API
	version      string
	startTime    time.Time

	httpSrv  *http.Server
	listener net.Listener
	stop     context.CancelFunc
	served   chan struct{}
}

// New validates deps and returns an unstarted server.
func New(deps Deps) (*Server, error) {
	var missing []error
	if deps.Logger == nil {
		missing = append(missing, errors.New("logger is required"))
	}
	if deps.Registry == nil {
		missing = append(missing, errors.New("operations registry is required"))
	}
	if deps.Filter == nil {
		missing = append(missing, errors.New("access filter is required"))
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		secCfg:       deps.Security,
		metricsCfg:   deps.Metrics,
		logger:       deps.Logger,
		registry:     deps.Registry,
		filter:       deps.Filter,
		settingsPath: deps.SettingsPath,
		adminEvents:  deps.AdminEvents,
		hub:          deps.Hub,
		metrics:      deps.Prometheus,
		queueDepth:   deps.QueueDepth,
		version:      deps.Version,
		startTime:    time.Now(),
	}
	if s.queueDepth == nil {
		s.queueDepth = func() int { return 0 }
	}
	if s.secCfg.RateLimit.Enabled {
		s.limiter = newRateLimiter(s.secCfg.RateLimit)
	}
	if secret := s.secCfg.JWT.Secret; secret != "" {
		signer, err := auth.NewSigner(secret)
		if err != nil {
			return nil, fmt.Errorf("admin token signer: %w", err)
		}
		s.signer = signer
	}
	return s, nil
}

// Start binds cfg.Host:cfg.Port and serves in the background until Close.
// Port 0 picks a free port; Addr reports it.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}
	s.listener = access.NewListener(ln, s.filter)

	runCtx, stop := context.WithCancel(ctx)
	s.stop = stop
	if s.hub != nil {
		go s.hub.Run(runCtx)
	}

	t := s.cfg.Timeouts
	s.httpSrv = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       seconds(t.Read),
		ReadHeaderTimeout: seconds(t.Read),
		WriteTimeout:      seconds(t.Write),
		IdleTimeout:       seconds(t.Idle),
	}
	s.served = make(chan struct{})
	go s.serve()
	return nil
}

func (s *Server) serve() {
	defer close(s.served)

	addr := s.listener.Addr().String()
	var err error
	if tls := s.cfg.TLS; tls.Enabled {
		s.logger.Info("listening", "address", addr, "tls", true, "cert", tls.CertFile)
		err = s.httpSrv.ServeTLS(s.listener, tls.CertFile, tls.KeyFile)
	} else {
		s.logger.Info("listening", "address", addr, "tls", false)
		err = s.httpSrv.Serve(s.listener)
	}
	if !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("serving stopped unexpectedly", "address", addr, "error", err)
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Handler returns the router without binding a listener, for httptest.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Close stops accepting, disconnects /ws peers and waits up to drainTimeout
// for in-flight requests. It is a no-op on an unstarted server.
func (s *Server) Close() error {
	if s.httpSrv == nil {
		return nil
	}
	s.stop()

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	s.logger.Info("draining http server")
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	<-s.served
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.httpSrv == nil {
		return errors.New("api server not started")
	}
	return nil
}
