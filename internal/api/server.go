package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/metrics"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/middleware"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/service"
	"github.com/c3po-initiative/dhroxy-frontend-example/pkg/external"
)

const version = "1.0.0"

// Probe reports whether one backing component is reachable.
type Probe func(ctx context.Context) error

// Dependencies are the services and health probes the server exposes.
type Dependencies struct {
	Health   *service.HealthService
	Chat     *service.ChatService
	Probes   map[string]Probe
	Breakers func() []external.BreakerState
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	deps          Dependencies
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
	upgrader      websocket.Upgrader
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" && !configManager.IsProduction() {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.AuditLogger(logger))
	router.Use(metrics.GinMiddleware())
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))
	router.Use(middleware.CredentialPassthrough())

	server := &Server{
		configManager: configManager,
		deps:          deps,
		logger:        logger,
		router:        router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(cfg.Server.CORSOrigins),
		},
	}

	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithFields(logrus.Fields{"addr": addr, "tls": cfg.TLSEnabled}).Info("HTTP server listening")
		var err error
		if cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/patients", s.handlePatients)
		v1.GET("/snapshot", s.handleSnapshot)
		v1.GET("/ips/:patientID", s.handlePatientSummary)

		labs := v1.Group("/labs")
		labs.GET("/prioritized", s.handlePrioritized)
		labs.GET("/panel", s.handleLabPanel)
		labs.GET("/trends", s.handleTrends)
		labs.GET("/explanations", s.handleExplanations)
		labs.POST("/classify", s.handleClassify)

		v1.GET("/dashboards", s.handleDashboards)
		v1.GET("/dashboards/:id", s.handleDashboard)
		v1.GET("/sleep", s.handleSleep)
		v1.GET("/healthkit/status", s.handleHealthKitStatus)
		v1.GET("/recommendations", s.handleRecommendations)

		v1.GET("/profile", s.handleGetProfile)
		v1.PUT("/profile", s.handlePutProfile)

		v1.POST("/chat", s.handleChat)
		v1.GET("/chat", s.handleChatHistory)
		v1.DELETE("/chat", s.handleClearChat)
		v1.GET("/chat/ws", s.handleChatSocket)
	}
}

// handleHealth reports the probe results and breaker states. Any failing probe
// turns the answer into a 503.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	components := gin.H{}

	names := make([]string, 0, len(s.deps.Probes))
	for name := range s.deps.Probes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.deps.Probes[name](ctx); err != nil {
			components[name] = gin.H{"status": "unhealthy", "error": err.Error()}
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[name] = gin.H{"status": "healthy"}
	}

	body := gin.H{
		"status":     status,
		"timestamp":  time.Now().UTC(),
		"version":    version,
		"components": components,
	}
	if s.deps.Breakers != nil {
		body["circuit_breakers"] = s.deps.Breakers()
	}
	c.JSON(code, body)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept",
			middleware.CorrelationIDHeader,
			external.HeaderCookie,
			external.HeaderXSRFToken,
			external.HeaderConversationUUID,
		},
		ExposeHeaders: []string{"Content-Length", middleware.CorrelationIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if allowsAll(origins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func allowsAll(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func originChecker(origins []string) func(r *http.Request) bool {
	if allowsAll(origins) {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
