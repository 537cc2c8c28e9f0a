// Package api provides the HTTP API server: gin engine construction,
// middleware wiring, and route registration for the three client-facing
// dialects the gateway accepts.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/copilotgw/gateway/internal/api/handlers"
	"github.com/copilotgw/gateway/internal/api/handlers/chatcompletions"
	"github.com/copilotgw/gateway/internal/api/handlers/claude"
	"github.com/copilotgw/gateway/internal/api/handlers/responses"
	"github.com/copilotgw/gateway/internal/api/middleware"
	"github.com/copilotgw/gateway/internal/config"
	"github.com/copilotgw/gateway/internal/logging"
	"github.com/copilotgw/gateway/internal/registry"
	"github.com/copilotgw/gateway/internal/upstream"
	sdkaccess "github.com/copilotgw/gateway/sdk/access"
)

// Server is the gateway's HTTP server.
type Server struct {
	engine           *gin.Engine
	server           *http.Server
	transcriptLogger *logging.FileTranscriptLogger
}

// NewServer constructs the gin engine, registers every route, and builds the
// underlying http.Server. cfg is the config snapshot read at startup for
// server-level settings (port, debug, request logging); per-request config
// lookups go through store.
func NewServer(store *config.Store, cfg *config.Config, catalog *registry.Catalog, client *upstream.Client, accessManager *sdkaccess.Manager) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger())
	engine.Use(logging.GinLogrusRecovery())

	transcriptLogger := logging.NewFileTranscriptLogger(cfg.TranscriptLog, "logs")
	engine.Use(middleware.TranscriptLoggingMiddleware(transcriptLogger))
	engine.Use(corsMiddleware())

	s := &Server{engine: engine, transcriptLogger: transcriptLogger}

	base := handlers.NewBase(store, catalog, client)
	s.setupRoutes(base, catalog, accessManager)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	return s
}

func (s *Server) setupRoutes(base *handlers.Base, catalog *registry.Catalog, accessManager *sdkaccess.Manager) {
	claudeHandlers := claude.New(base)
	chatHandlers := chatcompletions.New(base)
	responsesHandlers := responses.New(base)

	v1 := s.engine.Group("/v1")
	v1.Use(AuthMiddleware(accessManager))
	{
		v1.GET("/models", modelsHandler(catalog))
		v1.POST("/chat/completions", chatHandlers.Completions)
		v1.POST("/messages", claudeHandlers.Messages)
		v1.POST("/messages/count_tokens", claudeHandlers.CountTokens)
		v1.POST("/responses", responsesHandlers.Create)
	}

	s.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "LLM protocol gateway",
			"endpoints": []string{
				"POST /v1/chat/completions",
				"POST /v1/messages",
				"POST /v1/messages/count_tokens",
				"POST /v1/responses",
				"GET /v1/models",
			},
		})
	})
}

// modelsHandler lists the models the configured upstream serves, per the
// loaded model catalog.
func modelsHandler(catalog *registry.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"object": "list", "data": catalog.All()})
	}
}

// Start begins serving HTTP requests; it blocks until Stop is called or an
// unrecoverable error occurs.
func (s *Server) Start() error {
	log.Debugf("starting API server on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	log.Debug("stopping API server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Api-Key, X-Goog-Api-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// AuthMiddleware authenticates every request in its group through the shared
// access.Manager. A manager with no configured providers allows all requests,
// so a gateway run without any api-keys/access config stays open.
func AuthMiddleware(manager *sdkaccess.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(manager.Providers()) == 0 {
			c.Next()
			return
		}

		result, err := manager.Authenticate(c.Request.Context(), c.Request)
		if err != nil || result == nil {
			message := "authentication failed"
			if err != nil {
				message = err.Error()
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"type": "authentication_error", "message": message},
			})
			return
		}

		c.Set("principal", result.Principal)
		c.Set("authProvider", result.Provider)
		c.Next()
	}
}
