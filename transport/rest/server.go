package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	logger *slog.Logger
	srv    *http.Server
}

type Option func(mux *http.ServeMux, logger *slog.Logger)

// WithMetrics serves handler on GET /metrics.
func WithMetrics(handler http.Handler) Option {
	return func(mux *http.ServeMux, _ *slog.Logger) {
		mux.Handle("GET /metrics", handler)
	}
}

// WithSessions serves the play endpoints backed by sessions.
func WithSessions(sessions SessionRegistry) Option {
	return func(mux *http.ServeMux, logger *slog.Logger) {
		play := newPlayHandler(logger, sessions)
		mux.HandleFunc("POST /play/new", play.New)
		mux.HandleFunc("POST /play/move", play.Move)
		mux.HandleFunc("GET /play/{id}", play.Render)
	}
}

func New(logger *slog.Logger, port string, options ...Option) *Server {
	log := logger.With("component", "rest")

	mux := http.NewServeMux()
	mux.Handle("GET /ping", &pingHandler{})
	for _, option := range options {
		option(mux, log)
	}

	return &Server{
		logger: log,
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
	}
}

func (that *Server) Handler() http.Handler {
	return that.srv.Handler
}

// Start serves until ctx is done, then shuts down gracefully.
func (that *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		that.logger.Info("Starting HTTP server", "addr", that.srv.Addr)
		if err := that.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := that.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	that.logger.Info("HTTP server stopped")

	return nil
}
