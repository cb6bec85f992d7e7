// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/jeranaias/ollachat/internal/conversation"
	"github.com/jeranaias/ollachat/internal/export"
	"github.com/jeranaias/ollachat/internal/session"
)

//go:embed static
var staticFS embed.FS

// =============================================================================
// CONFIGURATION
// =============================================================================

// HealthChecker reports whether the backend is reachable.
type HealthChecker interface {
	CheckRunning(ctx context.Context) error
}

// Options configures the server. Generator is required.
type Options struct {
	Generator  conversation.Generator
	Generation conversation.GenerationConfig
	Policy     session.ErrorHistoryPolicy
	BaseURL    string        // Shown in error hints
	Health     HealthChecker // Optional, used by /health

	// SessionIdle drops detached sessions idle longer than this. 0 keeps
	// them forever.
	SessionIdle time.Duration

	// Logger receives lifecycle and WebSocket logs (default: stderr).
	Logger *log.Logger
	// AccessLog receives request logs (default: stderr).
	AccessLog io.Writer

	// MessageRate and MessageBurst bound frames per connection
	// (default: 2/s, burst 5).
	MessageRate  rate.Limit
	MessageBurst int
}

// =============================================================================
// SERVER
// =============================================================================

// Server is the browser chat server.
type Server struct {
	opts     Options
	echo     *echo.Echo
	logger   *log.Logger
	registry *session.Registry
	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]*room
}

// New creates a server with routes registered.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "ollachat: ", log.LstdFlags)
	}
	if opts.AccessLog == nil {
		opts.AccessLog = os.Stderr
	}
	if opts.MessageRate == 0 {
		opts.MessageRate = 2
	}
	if opts.MessageBurst == 0 {
		opts.MessageBurst = 5
	}
	if opts.Generation.Model == "" {
		opts.Generation = conversation.DefaultGenerationConfig()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{Output: opts.AccessLog}))
	e.Use(middleware.Recover())
	e.Use(securityHeaders())

	s := &Server{
		opts:     opts,
		echo:     e,
		logger:   opts.Logger,
		registry: session.NewRegistry(opts.Policy),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		rooms: make(map[string]*room),
	}

	e.GET("/", s.handleIndex)
	e.StaticFS("/static", echo.MustSubFS(staticFS, "static"))
	e.GET("/health", s.handleHealth)
	e.POST("/api/sessions", s.handleCreateSession)
	e.GET("/api/sessions/:id/messages", s.handleMessages)
	e.GET("/api/sessions/:id/export", s.handleExport)
	e.GET("/api/suggestions", s.handleSuggestions)
	e.GET("/ws", s.handleWebSocket)

	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()
	s.logger.Printf("serving chat on http://%s (model %s)", addr, s.opts.Generation.Model)

	var ticker *time.Ticker
	var tick <-chan time.Time
	if s.opts.SessionIdle > 0 {
		ticker = time.NewTicker(pruneInterval(s.opts.SessionIdle))
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-tick:
			if n := s.Prune(); n > 0 {
				s.logger.Printf("pruned %d idle sessions", n)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.echo.Shutdown(shutdownCtx); err != nil {
				return err
			}
			s.logger.Printf("server stopped")
			return nil
		}
	}
}

func pruneInterval(idle time.Duration) time.Duration {
	interval := idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	return interval
}

// =============================================================================
// SESSIONS
// =============================================================================

// newRoomLocked starts a session and its room. Caller holds s.mu.
func (s *Server) newRoomLocked() *room {
	store := s.registry.Create()
	r := newRoom(store.ID())
	r.orch = conversation.New(store, s.opts.Generator, s.opts.Generation,
		conversation.WithRenderer(r),
		conversation.WithLogger(s.logger),
		conversation.WithBaseURL(s.opts.BaseURL),
	)
	s.rooms[r.id] = r
	return r
}

// createRoom starts a new session.
func (s *Server) createRoom() *room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newRoomLocked()
}

// lookup returns the room of an existing session. It never creates one.
func (s *Server) lookup(id string) (*room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(id)
}

func (s *Server) lookupLocked(id string) (*room, bool) {
	if _, ok := s.registry.Get(id); !ok {
		return nil, false
	}
	r, ok := s.rooms[id]
	return r, ok
}

// join attaches cl to session id, or to a new session when id is empty,
// and queues the session frame ahead of any room event. It holds s.mu
// throughout so Prune cannot drop the room between lookup and attach.
func (s *Server) join(id string, cl *client) (*room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var r *room
	if id == "" {
		r = s.newRoomLocked()
	} else {
		var ok bool
		if r, ok = s.lookupLocked(id); !ok {
			return nil, false
		}
	}

	store := r.orch.Store()
	r.mu.Lock()
	cl.room = r
	cl.enqueue(ServerMessage{
		Type:      TypeSession,
		SessionID: r.id,
		Content:   store.Title(),
		Messages:  messageViews(store.All()),
	})
	r.clients[cl] = struct{}{}
	r.mu.Unlock()
	return r, true
}

// Prune drops idle sessions that have no connection and no turn in
// flight, returning how many were removed.
func (s *Server) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := func(id string) bool {
		r, ok := s.rooms[id]
		return ok && (r.attached() > 0 || r.orch.Busy())
	}
	removed := s.registry.Prune(s.opts.SessionIdle, keep)
	for _, id := range removed {
		delete(s.rooms, id)
	}
	return len(removed)
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleIndex(c echo.Context) error {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, page)
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{
		Status:   "ok",
		Ollama:   "unknown",
		Model:    s.opts.Generation.Model,
		Sessions: s.registry.Len(),
	}
	if s.opts.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()
		if err := s.opts.Health.CheckRunning(ctx); err != nil {
			resp.Ollama = "down"
			resp.Error = err.Error()
		} else {
			resp.Ollama = "up"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCreateSession(c echo.Context) error {
	r := s.createRoom()
	s.logger.Printf("session created: %s", r.id)
	return c.JSON(http.StatusCreated, SessionResponse{
		SessionID: r.id,
		Title:     r.orch.Store().Title(),
		Messages:  []MessageView{},
	})
}

func (s *Server) handleMessages(c echo.Context) error {
	r, ok := s.lookup(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	store := r.orch.Store()
	return c.JSON(http.StatusOK, SessionResponse{
		SessionID: r.id,
		Title:     store.Title(),
		Messages:  messageViews(store.All()),
	})
}

// handleExport downloads the transcript; ?format= is markdown or json.
func (s *Server) handleExport(c echo.Context) error {
	r, ok := s.lookup(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	exp, err := export.ForFormat(c.QueryParam("format"), nil)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	t := export.FromStore(r.orch.Store(), r.orch.Config().Model)
	body, err := exp.Export(t)
	if errors.Is(err, export.ErrEmptyTranscript) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", export.Filename(t, exp)))
	return c.Blob(http.StatusOK, exp.MimeType()+"; charset=utf-8", body)
}

func (s *Server) handleSuggestions(c echo.Context) error {
	return c.JSON(http.StatusOK, conversation.Suggestions())
}
