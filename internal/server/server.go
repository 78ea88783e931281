package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sonoswidget/internal/config"
	"github.com/GriffinCanCode/sonoswidget/internal/imageproxy"
	"github.com/GriffinCanCode/sonoswidget/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sonoswidget/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/sonoswidget/internal/logging"
	"github.com/GriffinCanCode/sonoswidget/internal/middleware"
	"github.com/GriffinCanCode/sonoswidget/internal/widget"
	"github.com/GriffinCanCode/sonoswidget/internal/ws"
)

const readHeaderTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	ws       *ws.Handler
	proxy    *imageproxy.Proxy
	tracer   *tracing.Tracer
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
	registry *prometheus.Registry
}

// Option configures a Server.
type Option func(*options)

type options struct {
	provider widget.Provider
}

// WithProvider overrides the provider selected from configuration.
func WithProvider(provider widget.Provider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logging.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger.Info("Initializing widget server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("scheme", cfg.Server.Scheme()),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	provider := o.provider
	if provider == nil {
		var err error
		provider, err = newProvider(cfg.Provider, logger)
		if err != nil {
			return nil, err
		}
	}

	renderer, err := widget.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load widget template: %w", err)
	}
	service := widget.NewService(provider, renderer, metrics)

	proxy, err := imageproxy.New(cfg.ImageProxy.CacheDir, cfg.ImageProxy.MaxAge, logger,
		imageproxy.WithMetrics(metrics))
	if err != nil {
		return nil, err
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	tracer := tracing.New("widget-server", logger)

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	wsHandler := ws.NewHandler(service, logger, metrics)

	s := &Server{
		router:   router,
		ws:       wsHandler,
		proxy:    proxy,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		registry: registry,
	}

	static := gzhttp.GzipHandler(http.StripPrefix("/static/", http.FileServer(http.FS(staticFS()))))

	router.GET("/", s.index)
	router.GET("/static/*filepath", gin.WrapH(static))
	router.GET(widget.ImageProxyPath, proxy.Handle)
	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	s.http = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.Info("Server initialized successfully")
	return s, nil
}

func newProvider(cfg config.ProviderConfig, logger *logging.Logger) (widget.Provider, error) {
	if cfg.URL != "" {
		logger.Info("Using HTTP status provider", zap.String("url", cfg.URL))
		return widget.NewHTTPProvider(cfg.URL, logger), nil
	}
	provider, err := widget.NewFileProvider(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("failed to create status provider: %w", err)
	}
	logger.Info("Using file status provider", zap.String("path", cfg.File))
	return provider, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Connections returns the number of open widget sessions.
func (s *Server) Connections() int {
	return s.ws.Count()
}

// index serves the page or, on an upgrade request, a widget session.
func (s *Server) index(c *gin.Context) {
	if ws.IsUpgrade(c.Request) {
		s.ws.HandleConnection(c)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexPage)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": s.ws.Count(),
	})
}

// Run serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Run() error {
	addr := s.config.Server.Addr()
	s.logger.Info("Starting server",
		zap.String("addr", addr),
		zap.String("scheme", s.config.Server.Scheme()),
	)

	var err error
	if s.config.Server.HTTPOnly {
		err = s.http.ListenAndServe()
	} else {
		err = s.http.ListenAndServeTLS(s.config.Server.TLSCert, s.config.Server.TLSKey)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown closes every widget session and then stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	// Hijacked WebSocket connections are not tracked by http.Server.
	s.ws.CloseAll()

	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shut down HTTP server", zap.Error(err))
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}

	s.tracer.Close()
	s.logger.Sync()
	return nil
}
