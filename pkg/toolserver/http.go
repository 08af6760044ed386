package toolserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/harun/mcplink/internal/observability"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ErrAlreadyRunning is returned by Run when the listener is already up.
var ErrAlreadyRunning = errors.New("tool server already running")

// Handler serves MCP over streamable HTTP at the configured path, plus /metrics and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, &mcp.StreamableHTTPOptions{Stateless: s.cfg.Stateless}))
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Run starts listening. With block set it serves until ctx is cancelled or the
// listener fails; otherwise it returns once the listener is bound and serves in
// the background until Shutdown.
func (s *Server) Run(ctx context.Context, block bool) error {
	s.httpMu.Lock()
	if s.httpServer != nil {
		s.httpMu.Unlock()
		return ErrAlreadyRunning
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.httpMu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.done = make(chan error, 1)
	httpServer := s.httpServer
	done := s.done
	s.httpMu.Unlock()

	s.logger.Info().
		Str("addr", listener.Addr().String()).
		Str("path", s.cfg.Path).
		Strs("tools", s.Tools()).
		Msg("Tool server running")

	go func() {
		err := httpServer.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			s.logger.Error().Err(err).Msg("Tool server error")
		}
		done <- err
	}()

	if !block {
		return nil
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Addr returns the bound listener address, or "" when not running.
func (s *Server) Addr() string {
	s.httpMu.Lock()
	defer s.httpMu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// URL returns the MCP endpoint URL of the running server.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	return "http://" + addr + s.cfg.Path
}

// Shutdown stops the HTTP listener. It is safe to call when not running.
func (s *Server) Shutdown(ctx context.Context) error {
	s.httpMu.Lock()
	httpServer := s.httpServer
	s.httpServer = nil
	s.listener = nil
	s.httpMu.Unlock()

	if httpServer == nil {
		return nil
	}

	s.logger.Info().Msg("Shutting down tool server")
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tool server: %w", err)
	}
	return nil
}
