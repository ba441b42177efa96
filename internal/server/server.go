// Package server exposes the note store and session control over a JSON
// API with server-sent state events, for a piano-roll frontend running in
// a browser or separate process.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// Config holds server configuration
type Config struct {
	Port           int
	ScriptsDir     string
	AllowedOrigins []string
}

// Server is the HTTP server
type Server struct {
	config   Config
	router   *chi.Mux
	logger   *slog.Logger
	sessions *SessionManager
}

// New creates a new server
func New(cfg Config) *Server {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		logger:   logger,
		sessions: NewSessionManager(cfg.ScriptsDir, logger),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*"}
	}
	r.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler)

	r.Get("/health", s.handleHealth)
	r.Get("/events", s.handleEvents)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)

		r.Post("/notes", s.handleAddNote)
		r.Delete("/notes", s.handleClearNotes)
		r.Patch("/notes/{id}", s.handleUpdateNote)
		r.Delete("/notes/{id}", s.handleDeleteNote)

		r.Post("/selection", s.handleSelect)
		r.Delete("/selection", s.handleClearSelection)
		r.Post("/selection/all", s.handleSelectAll)
		r.Post("/selection/toggle/{id}", s.handleToggleSelect)
		r.Delete("/selection/notes", s.handleDeleteSelected)

		r.Post("/clipboard/copy", s.handleCopy)
		r.Post("/clipboard/cut", s.handleCut)
		r.Post("/clipboard/paste", s.handlePaste)

		r.Post("/history/undo", s.handleUndo)
		r.Post("/history/redo", s.handleRedo)
		r.Post("/nudge", s.handleNudge)

		r.Post("/tempo", s.handleSetTempo)
		r.Post("/position", s.handleSetPosition)

		r.Post("/record/start", s.handleRecordStart)
		r.Post("/record/stop", s.handleRecordStop)
		r.Post("/playback/start", s.handlePlayStart)
		r.Post("/playback/stop", s.handlePlayStop)

		r.Get("/export/midi", s.handleExportMIDI)
	})
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the server
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Long for SSE
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		s.logger.Info("shutting down server...")
		s.sessions.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	s.logger.Info("server starting", slog.Int("port", s.config.Port))
	fmt.Printf("\n  Voice-to-MIDI editing API running at: http://localhost:%d\n\n", s.config.Port)

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	<-done
	return nil
}
