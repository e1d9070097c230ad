// Package server arma y maneja el ciclo de vida del http.Server.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/johnboard/internal/observability/logger"
)

// Config del servidor HTTP.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server envuelve http.Server con arranque y shutdown graceful.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
}

// New crea el servidor con el handler dado.
func New(cfg Config, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Run arranca el servidor y bloquea hasta que ctx se cancele o el listener
// falle. El shutdown drena conexiones con su propio timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("http server listening", logger.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	logger.L().Info("shutting down http server")
	if err := s.srv.Shutdown(shCtx); err != nil {
		return err
	}
	return nil
}
