// Package server exposes the triage service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/careloop/triagelog/internal/config"
	"github.com/careloop/triagelog/internal/metrics"
	"github.com/careloop/triagelog/internal/report"
	"github.com/careloop/triagelog/internal/store"
	"github.com/careloop/triagelog/internal/triage"
)

type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	store    store.Store
	pipeline *triage.Pipeline
	synth    *report.Synthesizer
	metrics  *metrics.Collector
	engine   *gin.Engine
	http     *http.Server
}

func New(cfg *config.Config, log *zap.Logger, st store.Store, pipeline *triage.Pipeline, synth *report.Synthesizer, collector *metrics.Collector) *Server {
	if cfg.App.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		log:      log,
		store:    st,
		pipeline: pipeline,
		synth:    synth,
		metrics:  collector,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.observe(), cors())
	s.registerRoutes(engine)
	s.engine = engine

	s.http = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes(engine *gin.Engine) {
	engine.GET("/history", s.handleHistory)
	engine.POST("/delete-event", s.handleDeleteEvent)
	engine.POST("/process-text", s.handleProcessText)
	engine.POST("/process-image", s.handleProcessImage)
	engine.POST("/generate-soap", s.handleGenerateSOAP)
	engine.POST("/add-history", s.handleAddHistory)

	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// Run serves until the context is cancelled, then shuts down within
// the configured grace period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		s.metrics.InFlightGauge.Inc()

		c.Next()

		s.metrics.InFlightGauge.Dec()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := strconv.Itoa(c.Writer.Status())
		elapsed := time.Since(start)

		s.metrics.RequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		s.metrics.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(elapsed.Seconds())

		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("status", status),
			zap.Duration("elapsed", elapsed),
		)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
