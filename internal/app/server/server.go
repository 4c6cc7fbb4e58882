package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server wraps http.Server with the start/shutdown shape both binaries use. There is no
// WriteTimeout: upgraded WebSocket connections are long-lived and manage their own deadlines.
type Server struct {
	srv *http.Server
	log *slog.Logger
}

func New(addr string, handler http.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		log: log,
	}
}

func (s *Server) Addr() string { return s.srv.Addr }

// Start blocks until the server stops. A graceful Shutdown is not reported as an error.
func (s *Server) Start() error {
	s.log.Info("server - start - listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("server - start - listening", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RegisterOnShutdown runs fn when Shutdown begins, e.g. to close hijacked connections
// which http.Server does not track.
func (s *Server) RegisterOnShutdown(fn func()) {
	s.srv.RegisterOnShutdown(fn)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server - shutdown - draining", "addr", s.srv.Addr)
	return s.srv.Shutdown(ctx)
}
