package server

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/arpitjain799/jupyter-server-terminals/internal/api/http"
	"github.com/arpitjain799/jupyter-server-terminals/internal/api/middleware"
	"github.com/arpitjain799/jupyter-server-terminals/internal/api/ws"
	"github.com/arpitjain799/jupyter-server-terminals/internal/config"
	"github.com/arpitjain799/jupyter-server-terminals/internal/logging"
	"github.com/arpitjain799/jupyter-server-terminals/internal/monitoring"
	"github.com/arpitjain799/jupyter-server-terminals/internal/terminal"
)

// Server wires the HTTP router, the session registry and the culler.
type Server struct {
	router  *gin.Engine
	manager *terminal.Manager
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics

	stopCuller context.CancelFunc
}

// New creates a server instance and starts the culling scheduler.
func New(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		l, err := logging.New(logging.Config{Level: cfg.Logging.Level})
		if err != nil {
			return nil, err
		}
		logger = l
	}

	logger.Info("initializing terminal server",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("root_dir", cfg.Terminal.RootDir),
		zap.Int("cull_inactive_timeout", cfg.Terminal.CullInactiveTimeout),
		zap.Int("cull_interval", cfg.Terminal.CullInterval),
	)

	metrics := monitoring.NewMetrics()

	manager := terminal.NewManager(terminal.Config{
		Command:      cfg.Terminal.ShellCommand,
		RootDir:      cfg.Terminal.RootDir,
		Rows:         cfg.Terminal.Rows,
		Cols:         cfg.Terminal.Cols,
		BufferChunks: cfg.Terminal.BufferChunks,
		BufferBytes:  cfg.Terminal.BufferBytes,
	}, logger).WithMetrics(metrics)

	culler := terminal.NewCuller(manager, cfg.Terminal.CullTimeout(), cfg.Terminal.CullEvery(), logger)
	cullCtx, stopCuller := context.WithCancel(context.Background())
	go culler.Run(cullCtx)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(manager, logger)
	wsHandler := ws.NewHandler(manager, logger, metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Terminal lifecycle
	router.GET("/api/terminals", handlers.ListTerminals)
	router.POST("/api/terminals", handlers.CreateTerminal)
	router.GET("/api/terminals/:name", handlers.GetTerminal)
	router.DELETE("/api/terminals/:name", handlers.DeleteTerminal)

	// Terminal I/O stream
	router.GET("/terminals/websocket/:name", wsHandler.HandleTerminal)

	// Metrics
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return &Server{
		router:     router,
		manager:    manager,
		logger:     logger,
		config:     cfg,
		metrics:    metrics,
		stopCuller: stopCuller,
	}, nil
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Manager exposes the session registry.
func (s *Server) Manager() *terminal.Manager { return s.manager }

// Run starts the HTTP server and blocks.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close stops the culler and terminates every live terminal so no shell
// process outlives the server.
func (s *Server) Close() error {
	s.logger.Info("shutting down terminal server")
	s.stopCuller()
	s.manager.Shutdown()
	return nil
}
