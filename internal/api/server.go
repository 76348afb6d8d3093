// Package api exposes the screening pipeline over HTTP. The server is
// a thin layer: all decisions happen in the screener, alert and
// backtest packages.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"confluence-screener/internal/alert"
	"confluence-screener/internal/backtest"
	"confluence-screener/internal/market"
	"confluence-screener/internal/notification"
	"confluence-screener/internal/screener"
)

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins string
	ProductionMode bool
}

// Server wires the pipeline components behind the HTTP API
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     ServerConfig

	engine     *screener.Engine
	backtester *backtest.Engine
	provider   market.Provider

	gate     *alert.Gate
	limiter  *alert.RateLimiter
	deduper  *alert.Deduper
	notifier *notification.Manager // nil disables outbound notifications
}

// NewServer builds the router and registers all routes
func NewServer(
	config ServerConfig,
	engine *screener.Engine,
	backtester *backtest.Engine,
	provider market.Provider,
	gate *alert.Gate,
	limiter *alert.RateLimiter,
	deduper *alert.Deduper,
	notifier *notification.Manager,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if config.AllowedOrigins == "" || config.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(config.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:     router,
		config:     config,
		engine:     engine,
		backtester: backtester,
		provider:   provider,
		gate:       gate,
		limiter:    limiter,
		deduper:    deduper,
		notifier:   notifier,
	}
	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/screen", s.handleScreen)
		v1.POST("/screen/batch", s.handleScreenBatch)
		v1.POST("/backtest", s.handleBacktest)
		v1.GET("/alerts/stats", s.handleAlertStats)
	}
}

// Start blocks serving HTTP until the listener fails or Shutdown runs
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down HTTP server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
