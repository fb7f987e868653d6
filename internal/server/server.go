// Package server exposes sessions over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/KaramelBytes/datachat-cli/internal/inference"
	"github.com/KaramelBytes/datachat-cli/internal/logger"
	"github.com/KaramelBytes/datachat-cli/internal/parser"
	"github.com/KaramelBytes/datachat-cli/internal/session"
)

// DefaultMaxUpload is the upload size guidance (10 MB).
const DefaultMaxUpload int64 = 10 << 20

// DefaultIdleTimeout is how long an unused session survives.
const DefaultIdleTimeout = 30 * time.Minute

// Config wires the server's dependencies.
type Config struct {
	Adapter     *inference.Adapter
	Parse       parser.Options
	MaxUpload   int64
	IdleTimeout time.Duration // unused sessions are dropped after this long
	Logger      *slog.Logger
}

// entry serializes all actions on one session.
type entry struct {
	mu       sync.Mutex
	sess     *session.Session
	created  time.Time
	lastUsed atomic.Int64 // unix nanoseconds
}

func (e *entry) touch(t time.Time) { e.lastUsed.Store(t.UnixNano()) }

func (e *entry) idleSince() time.Time { return time.Unix(0, e.lastUsed.Load()) }

// Server owns the session registry and the gin engine.
type Server struct {
	cfg      Config
	mu       sync.RWMutex
	sessions map[string]*entry
	engine   *gin.Engine
	now      func() time.Time
}

// New builds a Server with routes registered.
func New(cfg Config) *Server {
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = DefaultMaxUpload
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.L
	}
	if cfg.Parse == (parser.Options{}) {
		cfg.Parse = parser.DefaultOptions()
	}
	s := &Server{cfg: cfg, sessions: make(map[string]*entry), now: time.Now}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.MaxMultipartMemory = cfg.MaxUpload

	r.GET("/healthz", s.HealthHandler)
	r.GET("/api/suggestions", s.SuggestionsHandler)

	api := r.Group("/api/sessions")
	api.POST("", s.CreateSessionHandler)
	api.DELETE("/:id", s.DeleteSessionHandler)
	api.POST("/:id/upload", s.UploadHandler)
	api.GET("/:id/preview", s.PreviewHandler)
	api.GET("/:id/summary", s.SummaryHandler)
	api.POST("/:id/calculate", s.CalculateHandler)
	api.POST("/:id/ask", s.AskHandler)
	api.GET("/:id/history", s.HistoryHandler)
	api.DELETE("/:id/history", s.ClearHistoryHandler)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info("server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	go s.sweepLoop(ctx)
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.cfg.Logger.Info("server shutting down")
		return srv.Shutdown(shutdown)
	}
}

func (s *Server) create() (string, *entry) {
	id := uuid.New().String()
	now := s.now()
	e := &entry{
		sess: session.New(s.cfg.Adapter,
			session.WithLogger(s.cfg.Logger.With("session", id)),
			session.WithParseOptions(s.cfg.Parse)),
		created: now.UTC(),
	}
	e.touch(now)
	s.mu.Lock()
	s.sessions[id] = e
	s.mu.Unlock()
	return id, e
}

func (s *Server) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	return e, ok
}

func (s *Server) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Sweep drops sessions idle for longer than the configured timeout and
// returns how many were removed. Sessions busy with a request are kept.
func (s *Server) Sweep() int {
	cutoff := s.now().Add(-s.cfg.IdleTimeout)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.sessions {
		if !e.idleSince().Before(cutoff) || !e.mu.TryLock() {
			continue
		}
		delete(s.sessions, id)
		e.mu.Unlock()
		n++
	}
	if n > 0 {
		s.cfg.Logger.Info("expired idle sessions", "count", n, "remaining", len(s.sessions))
	}
	return n
}

func (s *Server) sweepLoop(ctx context.Context) {
	every := s.cfg.IdleTimeout / 2
	if every < time.Second {
		every = time.Second
	}
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			s.Sweep()
		}
	}
}

// Len reports the number of live sessions.
func (s *Server) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.cfg.Logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}
