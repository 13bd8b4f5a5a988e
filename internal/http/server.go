package http

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"giveaway-bot/internal/common/middleware"
)

const readyTimeout = 2 * time.Second

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsProvider adds details to /health.
type StatsProvider interface {
	Stats() map[string]interface{}
}

type Options struct {
	Port    int
	Debug   bool
	Service string
	Checks  map[string]Pinger
	Stats   map[string]StatsProvider
}

// Server exposes health probes and Prometheus metrics. Bot updates arrive by
// long polling, not through this server.
type Server struct {
	srv    *nethttp.Server
	logger zerolog.Logger
}

func NewServer(opts Options, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "http").Logger()
	return &Server{
		srv: &nethttp.Server{
			Addr:         fmt.Sprintf(":%d", opts.Port),
			Handler:      NewRouter(opts, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

func NewRouter(opts Options, logger zerolog.Logger) *gin.Engine {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler(logger))
	router.Use(middleware.Logger(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   opts.Service,
		}
		for name, s := range opts.Stats {
			body[name] = s.Stats()
		}
		c.JSON(nethttp.StatusOK, body)
	})

	// Liveness probe
	router.GET("/live", func(c *gin.Context) {
		c.Status(nethttp.StatusOK)
	})

	// Readiness probe
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()

		for name, check := range opts.Checks {
			if err := check.Ping(ctx); err != nil {
				c.JSON(nethttp.StatusServiceUnavailable, gin.H{
					"status":  "unready",
					"error":   name + " unavailable",
					"details": err.Error(),
				})
				return
			}
		}

		c.JSON(nethttp.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   opts.Service,
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// Start blocks until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.srv.Addr).Msg("Starting HTTP server")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
