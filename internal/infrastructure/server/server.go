package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/extsync/internal/api/http"
	"github.com/GriffinCanCode/extsync/internal/api/middleware"
	"github.com/GriffinCanCode/extsync/internal/api/ws"
	"github.com/GriffinCanCode/extsync/internal/app"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/extsync/internal/shared/advisory"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	app     *app.App
	hub     *ws.Hub
	tracer  *tracing.Tracer
	detach  func()
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer wires the sync stack behind the HTTP API. opts may override the
// install host or secret store; its logger and metrics are used when set.
func NewServer(cfg *config.Config, opts app.Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
		opts.Logger = logger
	}

	logger.Info("Initializing extsync daemon",
		zap.String("addr", net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)),
		zap.String("host_kind", cfg.Host.Kind),
		zap.String("settings", cfg.Storage.SettingsFile),
	)

	metrics := opts.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetrics()
		opts.Metrics = metrics
	}

	hub := ws.NewHub(nil, logger.Component("ws"), metrics)
	opts.Notifiers = append(opts.Notifiers, advisory.Notifier(hub))

	a, err := app.New(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble sync stack: %w", err)
	}
	hub.SetRefresher(a.Tree)
	detach := hub.Attach(a.Tree)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	tracer := tracing.New(logger.Component("trace"))

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitFromConfig(cfg.RateLimit)))
	}

	handlers := http.NewHandlers(a.Manager, a.Settings, a.Advisories, a.Client, metrics)
	handlers.Register(router)
	router.GET("/ws", hub.HandleConnection)

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		app:     a,
		hub:     hub,
		tracer:  tracer,
		detach:  detach,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Router returns the gin engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// App returns the wired sync stack.
func (s *Server) App() *app.App {
	return s.app
}

// Run serves until ctx is cancelled, then shuts down gracefully. It performs
// an initial refresh and keeps the background watchers running alongside.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	srv := &nethttp.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bgDone := make(chan error, 1)
	go func() {
		s.app.Sync(ctx, "startup")
		bgDone <- s.app.RunBackground(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	case err := <-bgDone:
		if err != nil {
			serveErr = fmt.Errorf("background sync: %w", err)
		}
		bgDone <- nil
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	if err := <-bgDone; err != nil && serveErr == nil {
		serveErr = fmt.Errorf("background sync: %w", err)
	}
	return serveErr
}

// Close releases subscriptions and flushes the logger.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")
	if s.detach != nil {
		s.detach()
	}
	s.tracer.Close()
	return s.app.Close()
}
