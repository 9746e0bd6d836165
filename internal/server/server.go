package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// Server runs the HTTP surface until its context is canceled.
type Server struct {
	logger  zerolog.Logger
	addr    string
	handler http.Handler
	http    *http.Server
	bound   string
	done    chan struct{}
}

// New constructs a Server for addr. It does not listen until Start.
func New(logger zerolog.Logger, addr string, handler http.Handler) *Server {
	return &Server{
		logger:  logger,
		addr:    addr,
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Start binds the listener synchronously and serves in the background. The
// server shuts down gracefully when ctx is canceled; Done is closed afterwards.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.bound = ln.Addr().String()

	s.http = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		s.logger.Info().Str("addr", s.bound).Msg("http server starting")
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Str("addr", s.bound).Msg("http server failed")
		}
	}()

	go func() {
		defer close(s.done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Str("addr", s.bound).Msg("http server shutdown failed")
			return
		}
		s.logger.Info().Str("addr", s.bound).Msg("http server stopped")
	}()

	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	return s.bound
}

// Done is closed after the server has shut down.
func (s *Server) Done() <-chan struct{} {
	return s.done
}
