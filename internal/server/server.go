package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JustJay7/ojv-scraper/internal/api"
	"github.com/JustJay7/ojv-scraper/internal/cache"
	"github.com/JustJay7/ojv-scraper/internal/config"
	"github.com/JustJay7/ojv-scraper/internal/database"
	"github.com/JustJay7/ojv-scraper/internal/metrics"
	"github.com/JustJay7/ojv-scraper/internal/scraper"
	"github.com/JustJay7/ojv-scraper/internal/session"
	"github.com/JustJay7/ojv-scraper/internal/sheets"
	"github.com/JustJay7/ojv-scraper/pkg/logger"
	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg      *config.Config
	logger   *logger.Logger
	router   *gin.Engine
	sessions *session.Pool
}

func New(cfg *config.Config, store *database.Store, cache cache.Cache, logger *logger.Logger) *Server {
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New()
	sessions := session.NewPool(cfg.SessionTTL, logger)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	router.Use(metricsMiddleware(m))
	router.Use(corsMiddleware())

	opts := scraper.OptionsFromConfig(cfg)
	opts.Observer = m

	handlers := api.NewHandlers(api.Dependencies{
		Store:    store,
		Cache:    cache,
		Sessions: sessions,
		NewSession: func() (*scraper.Session, error) {
			return scraper.NewSession(opts, logger)
		},
		Pacing:  opts.Pacing,
		Sink:    sheets.NewCSVSink(cfg.SheetsExportPath),
		Metrics: m,
		Logger:  logger,
	})
	api.SetupRoutes(router, handlers)

	return &Server{
		cfg:      cfg,
		logger:   logger,
		router:   router,
		sessions: sessions,
	}
}

// Handler exposes the router for in-process use.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run() error {
	// No write timeout: paced bulk runs can take minutes.
	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port),
		Handler:     s.router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("Failed to start server", "error", err)
		}
	}()

	s.logger.Info("Server started", "address", srv.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	s.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("Server forced to shutdown", "error", err)
		return err
	}

	s.sessions.Close()

	s.logger.Info("Server exited gracefully")
	return nil
}

func loggingMiddleware(logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		clientIP := c.ClientIP()
		method := c.Request.Method
		statusCode := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		logger.Info("HTTP Request",
			"client_ip", clientIP,
			"method", method,
			"path", path,
			"status", statusCode,
			"latency", latency.String(),
			"user_agent", c.Request.UserAgent(),
		)
	}
}

func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
