// Package server exposes the engine over HTTP. It is a thin collaborator
// layer: request validation and serialization only, no graph semantics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/anamnesis"
	"github.com/soundprediction/anamnesis/pkg/config"
	"github.com/soundprediction/anamnesis/pkg/server/handlers"
)

// Server is the HTTP server over the engine.
type Server struct {
	config *config.Config
	router *gin.Engine
	engine anamnesis.Engine
	server *http.Server
	log    *slog.Logger
}

// New creates a server instance.
func New(cfg *config.Config, engine anamnesis.Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		config: cfg,
		engine: engine,
		log:    log.With("component", "server"),
	}
}

// Setup builds the router and the underlying http.Server.
func (s *Server) Setup() {
	gin.SetMode(s.config.Server.Mode)

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger(s.log))

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
}

// Router returns the configured router. Tests drive it with httptest.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler()
	userHandler := handlers.NewUserHandler(s.engine)
	sessionHandler := handlers.NewSessionHandler(s.engine)
	profileHandler := handlers.NewProfileHandler(s.engine)

	s.router.GET("/health", healthHandler.Check)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/users", userHandler.Create)
		v1.DELETE("/users/:user_id", userHandler.Delete)

		v1.POST("/sessions", sessionHandler.Create)
		v1.GET("/sessions/:user_id", sessionHandler.List)

		profile := v1.Group("/profile")
		{
			profile.POST("/query", profileHandler.Query)
			profile.POST("/center-node", profileHandler.CenterNodeQuery)
		}
	}
}

// Start starts serving. Blocks until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.log.Info("starting http server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("stopping http server")
	return s.server.Shutdown(ctx)
}

// requestLogger logs one line per request at debug level.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status())
	}
}
