// Package api provides the HTTP REST API for campusq.
//
// Endpoints:
//
//	GET  /health                  liveness probe
//	GET  /ready                   readiness probe (pings the database)
//	POST /api/posts               create a post, question, or answer
//	GET  /api/posts               list the feed (top-level posts)
//	GET  /api/posts/{id}          fetch one post
//	GET  /api/posts/{id}/answers  list a question's answers
//	DELETE /api/posts/{id}        delete own post
//	POST /api/posts/{id}/vote     cast, toggle, or switch a vote
//	POST /api/chat                ask the knowledge chatbot
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery, rate limiting)
//   - health.go: health check endpoints
//   - posts.go: forum endpoints (posts, answers, votes)
//   - chat.go: chatbot endpoint
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusq/campusq/internal/chatbot"
	"github.com/campusq/campusq/internal/forum"
	"github.com/campusq/campusq/internal/log"
	"github.com/campusq/campusq/internal/promoter"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout = 60 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for the campusq REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	health *HealthHandler
	posts  *PostHandler
	chat   *ChatHandler
}

// NewServer creates a new HTTP server with all routes registered.
// chatRatePerMinute bounds /api/chat requests; the forum endpoints are
// not rate limited.
func NewServer(pool *pgxpool.Pool, store *forum.Store, engine *chatbot.Engine,
	prom *promoter.Promoter, chatRatePerMinute int, logger log.Logger) *Server {
	mux := http.NewServeMux()

	// A nil concrete pointer must stay a nil interface so the handlers'
	// nil checks keep working.
	var posts PostStore
	if store != nil {
		posts = store
	}
	var dispatch PromotionDispatcher
	if prom != nil {
		dispatch = prom
	}
	var answerer Answerer
	if engine != nil {
		answerer = engine
	}

	s := &Server{
		mux:    mux,
		logger: logger,
		health: NewHealthHandler(pool, logger),
		posts:  NewPostHandler(posts, dispatch, logger),
		chat:   NewChatHandler(answerer, chatRatePerMinute, logger),
	}

	s.health.RegisterRoutes(mux)
	s.posts.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger))
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
