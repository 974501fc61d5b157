// Package httpapi exposes live mixer operation over HTTP for stream-desk
// dashboards and hotkey tools.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"tourney-media/domain/mixer"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const shutdownTimeout = 5 * time.Second

// Server routes API requests to a mixer controller
type Server struct {
	controller mixer.Controller
	events     []string
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	engine     *gin.Engine

	mu      sync.Mutex
	clients map[*eventClient]struct{}
}

// Option is a functional option for configuring Server
type Option func(*Server)

// WithEvents sets which mixer events are forwarded to /api/events subscribers
func WithEvents(names ...string) Option {
	return func(s *Server) {
		s.events = names
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates the API server and its routes
func NewServer(controller mixer.Controller, opts ...Option) *Server {
	s := &Server{
		controller: controller,
		events:     []string{mixer.EventConnectionOpened, mixer.EventConnectionClosed},
		logger:     slog.Default(),
		upgrader: websocket.Upgrader{
			// dashboards are served from other local origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*eventClient]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.GET("/mixer/status", s.handleStatus)
		api.POST("/mixer/connect", s.handleConnect)
		api.POST("/mixer/disconnect", s.handleDisconnect)
		api.GET("/scene", s.handleScene)
		api.GET("/recording", s.handleRecording)
		api.POST("/recording/start", s.handleStartRecording)
		api.POST("/recording/stop", s.handleStopRecording)
		api.GET("/thumbnail", s.handleThumbnail)
		api.POST("/replay", s.handleReplay)
		api.GET("/events", s.handleEvents)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.closeClients()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// statusFor maps a controller error onto an HTTP status
func statusFor(err error) int {
	switch {
	case mixer.IsAuthenticationError(err):
		return http.StatusUnauthorized
	case errors.Is(err, mixer.ErrUnableToConnect):
		return http.StatusServiceUnavailable
	case errors.Is(err, mixer.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, mixer.ErrNotRecording):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusBadGateway {
		s.logger.Warn("mixer request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// stateReporter is implemented by controllers that expose their connection state
type stateReporter interface {
	State() mixer.ConnectionState
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := gin.H{"connected": s.controller.IsConnected()}
	if sr, ok := s.controller.(stateReporter); ok {
		resp["state"] = sr.State().String()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleConnect(c *gin.Context) {
	if err := s.controller.Connect(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true})
}

func (s *Server) handleDisconnect(c *gin.Context) {
	if err := s.controller.Disconnect(); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": false})
}

func (s *Server) handleScene(c *gin.Context) {
	scene, err := s.controller.CurrentScene(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scene": scene})
}

func (s *Server) handleRecording(c *gin.Context) {
	ctx := c.Request.Context()

	folder, err := s.controller.RecordingFolder(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := gin.H{"folder": folder, "recording": false}

	timestamp, err := s.controller.RecordingTimestamp(ctx)
	switch {
	case errors.Is(err, mixer.ErrNotRecording):
		c.JSON(http.StatusOK, resp)
		return
	case err != nil:
		s.fail(c, err)
		return
	}
	resp["recording"] = true
	resp["timestamp"] = timestamp.String()

	if file, err := s.controller.RecordingFile(ctx); err == nil {
		resp["file"] = file
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStartRecording(c *gin.Context) {
	if err := s.controller.StartRecording(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recording": true})
}

func (s *Server) handleStopRecording(c *gin.Context) {
	if err := s.controller.StopRecording(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recording": false})
}

func (s *Server) handleThumbnail(c *gin.Context) {
	width := 0
	if raw := c.Query("width"); raw != "" {
		w, err := strconv.Atoi(raw)
		if err != nil || w < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "width must be a non-negative integer"})
			return
		}
		width = w
	}

	img, err := s.controller.TakeThumbnail(c.Request.Context(), c.Query("source"), width)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", img)
}

func (s *Server) handleReplay(c *gin.Context) {
	path, err := s.controller.SaveReplayBuffer(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}
