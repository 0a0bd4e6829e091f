// Package server exposes trip planning sessions over HTTP.
//
//	POST   /workflow/run   start, resume or observe a session
//	GET    /workflow/:id   observe a session
//	DELETE /workflow/:id   discard a session
//	GET    /healthz
//	GET    /metrics        when a metrics handler is configured
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/tripflow/internal/trip"
	"github.com/randalmurphal/tripflow/pkg/flowgraph"
)

// Sessions is the session API the server drives. *trip.Service
// implements it.
type Sessions interface {
	Run(ctx context.Context, req trip.RunRequest) (*trip.RunResponse, error)
	Get(ctx context.Context, sessionID string) (*trip.RunResponse, error)
	Reset(sessionID string) error
}

var _ Sessions = (*trip.Service)(nil)

// Server routes HTTP requests to a Sessions implementation.
type Server struct {
	sessions Sessions
	engine   *gin.Engine
	logger   *slog.Logger
	metrics  http.Handler
	timeout  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithRequestTimeout bounds each session call. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New creates a Server.
func New(sessions Sessions, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		logger:   slog.Default(),
		timeout:  5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLog())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		engine.GET("/metrics", gin.WrapH(s.metrics))
	}

	wf := engine.Group("/workflow")
	wf.POST("/run", s.run)
	wf.GET("/:id", s.get)
	wf.DELETE("/:id", s.reset)

	s.engine = engine
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// runRequest is the body of POST /workflow/run. resume_value is kept raw
// so an explicit value can be told apart from an absent one.
type runRequest struct {
	ThreadID     string          `json:"thread_id"`
	InitialInput *string         `json:"initial_input"`
	ResumeValue  json.RawMessage `json:"resume_value"`
}

func (r runRequest) toRun() (trip.RunRequest, error) {
	req := trip.RunRequest{SessionID: r.ThreadID, Input: r.InitialInput}
	if len(r.ResumeValue) == 0 || string(r.ResumeValue) == "null" {
		return req, nil
	}
	var v any
	if err := json.Unmarshal(r.ResumeValue, &v); err != nil {
		return trip.RunRequest{}, fmt.Errorf("resume_value: %w", err)
	}
	req.Resume = v
	req.Resuming = true
	return req, nil
}

type errorResponse struct {
	Error    string `json:"error"`
	ThreadID string `json:"thread_id,omitempty"`
}

func (s *Server) run(c *gin.Context) {
	var body runRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	req, err := body.toRun()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), ThreadID: body.ThreadID})
		return
	}

	ctx, cancel := s.callContext(c)
	defer cancel()
	resp, err := s.sessions.Run(ctx, req)
	if err != nil {
		s.fail(c, body.ThreadID, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) get(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := s.callContext(c)
	defer cancel()
	resp, err := s.sessions.Get(ctx, id)
	if err != nil {
		s.fail(c, id, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) reset(c *gin.Context) {
	id := c.Param("id")
	if err := s.sessions.Reset(id); err != nil {
		s.fail(c, id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) callContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), s.timeout)
}

// fail maps a rejected call to a status code. Not found is checked
// before invalid input because unknown sessions carry both.
func (s *Server) fail(c *gin.Context, id string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("session call failed", slog.String("session_id", id), slog.Any("error", err))
	}
	c.JSON(status, errorResponse{Error: err.Error(), ThreadID: id})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, trip.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, trip.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, flowgraph.ErrSessionBusyOrDone):
		return http.StatusConflict
	case flowgraph.IsProtocolViolation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000))
	}
}
