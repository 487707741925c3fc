package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"integration-sync-platform/internal/config"
	"integration-sync-platform/internal/handlers"
	"integration-sync-platform/internal/logger"
	"integration-sync-platform/internal/middleware"
)

// Server represents the HTTP server
type Server struct {
	config            *config.Config
	logger            *logger.Logger
	router            *mux.Router
	httpServer        *http.Server
	taskHandler       *handlers.SyncTaskHandler
	schemaHandler     *handlers.ConversionSchemaHandler
	connectionHandler *handlers.ConnectionHandler
	webhookHandler    *handlers.WebhookHandler
	healthHandler     *handlers.HealthHandler
	authMiddleware    *middleware.AuthenticationMiddleware
	registry          *prometheus.Registry
}

// NewServer creates a new HTTP server
func NewServer(
	config *config.Config,
	logger *logger.Logger,
	taskHandler *handlers.SyncTaskHandler,
	schemaHandler *handlers.ConversionSchemaHandler,
	connectionHandler *handlers.ConnectionHandler,
	webhookHandler *handlers.WebhookHandler,
	healthHandler *handlers.HealthHandler,
	authMiddleware *middleware.AuthenticationMiddleware,
	registry *prometheus.Registry,
) *Server {
	server := &Server{
		config:            config,
		logger:            logger,
		router:            mux.NewRouter(),
		taskHandler:       taskHandler,
		schemaHandler:     schemaHandler,
		connectionHandler: connectionHandler,
		webhookHandler:    webhookHandler,
		healthHandler:     healthHandler,
		authMiddleware:    authMiddleware,
		registry:          registry,
	}

	server.setupRoutes()
	server.setupHTTPServer()

	return server
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health check endpoints (no auth required)
	s.router.HandleFunc("/health", s.healthHandler.HandleHealthCheck).Methods("GET")
	s.router.HandleFunc("/health/ready", s.healthHandler.HandleReadinessProbe).Methods("GET")
	s.router.HandleFunc("/health/live", s.healthHandler.HandleLivenessProbe).Methods("GET")

	// Metrics endpoint (no auth required for monitoring systems)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")

	// Inbound webhook deliveries authenticate with payload signatures
	s.webhookHandler.RegisterRoutes(s.router)

	// Authenticated API surface
	s.taskHandler.RegisterRoutes(s.router)
	s.schemaHandler.RegisterRoutes(s.router)
	s.connectionHandler.RegisterRoutes(s.router)

	s.router.Use(s.authenticationMiddleware)
	s.router.Use(middleware.CompressionMiddleware)
	s.router.Use(s.loggingMiddleware)
}

// setupHTTPServer configures the HTTP server
func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.config.Server.IdleTimeout) * time.Second,
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.config.Server.Port).Info("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.WithError(err).Error("HTTP server error")
		return err
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// Middleware

// authenticationMiddleware requires a JWT for the API surface while leaving
// the operational and webhook endpoints open.
func (s *Server) authenticationMiddleware(next http.Handler) http.Handler {
	protected := s.authMiddleware.RequireJWT()(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	})
}

func isPublicPath(path string) bool {
	return path == "/metrics" ||
		path == "/health" ||
		strings.HasPrefix(path, "/health/") ||
		strings.HasPrefix(path, "/webhooks/")
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		s.logger.WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": duration.Milliseconds(),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
