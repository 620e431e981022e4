// Package status serves a read-only HTTP view of the running guard: its
// retry state and the last completed answer.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/dsguard/completion"
	"github.com/hazyhaar/dsguard/crazyretry"
)

// RetryState reports the orchestrator snapshot.
type RetryState interface {
	Status() crazyretry.Status
}

// Answers reports the last completed answer.
type Answers interface {
	Last() (completion.Completed, bool)
}

// Server is the status HTTP server.
type Server struct {
	retry   RetryState
	answers Answers // may be nil when the completion monitor is off
	logger  *slog.Logger
	router  chi.Router
}

// New builds the router. answers may be nil.
func New(retry RetryState, answers Answers, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{retry: retry, answers: answers, logger: logger}

	r := chi.NewRouter()
	r.Use(headToGet)
	r.Use(securityHeaders)
	r.Use(s.traceRequests)
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/answer", s.handleAnswer)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("status: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("status: listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("status: serve: %w", err)
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("status: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status: serve: %w", err)
	}
	return ctx.Err()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.retry.Status())
}

func (s *Server) handleAnswer(w http.ResponseWriter, _ *http.Request) {
	if s.answers == nil {
		http.Error(w, "completion monitor disabled", http.StatusNotFound)
		return
	}
	last, ok := s.answers.Last()
	if !ok {
		http.Error(w, "no completed answer yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
