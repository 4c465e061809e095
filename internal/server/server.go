// Package server exposes the verification pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/pipeline"
)

// Runner runs verification requests; *pipeline.Orchestrator implements it
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*model.Report, error)
	Ready(ctx context.Context) error
}

// Server is the HTTP API
type Server struct {
	runner   Runner
	logger   *zap.Logger
	gatherer prometheus.Gatherer
	timeout  time.Duration
	engine   *gin.Engine
}

// Options configure a Server. A nil Gatherer disables /metrics.
type Options struct {
	Logger   *zap.Logger
	Gatherer prometheus.Gatherer
	Timeout  time.Duration // per request run timeout
}

type verifyRequest struct {
	Text string `json:"text" binding:"required"`
	HTML bool   `json:"html"`
}

type checkRequest struct {
	Query     string   `json:"query"`
	Response  string   `json:"response" binding:"required"`
	Documents []string `json:"documents" binding:"omitempty,max=50"`
}

type errorResponse struct {
	Error  string        `json:"error"`
	Report *model.Report `json:"report,omitempty"`
}

// New creates the server and its routes
func New(runner Runner, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}

	s := &Server{
		runner:   runner,
		logger:   opts.Logger,
		gatherer: opts.Gatherer,
		timeout:  opts.Timeout,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", s.ready)
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")
	v1.POST("/verify", s.verify)
	v1.POST("/check", s.check)

	s.engine = r
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then drains in-flight requests
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.run(c, pipeline.Request{Mode: model.ModePerClaim, Text: req.Text, HTML: req.HTML})
}

func (s *Server) check(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.run(c, pipeline.Request{
		Mode:      model.ModeQueryResponse,
		Query:     req.Query,
		Text:      req.Response,
		Documents: req.Documents,
	})
}

func (s *Server) run(c *gin.Context, req pipeline.Request) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	report, err := s.runner.Run(ctx, req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, report)
	case errors.Is(err, pipeline.ErrRunAborted):
		c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error(), Report: report})
	default:
		s.logger.Error("verification failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.runner.Ready(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
