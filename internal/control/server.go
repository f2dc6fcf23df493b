package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"firestige.xyz/dnsreflect/internal/blocklist"
	"firestige.xyz/dnsreflect/internal/core"
	"firestige.xyz/dnsreflect/internal/log"
)

// Server serves the block-list API.
type Server struct {
	addr string
	e    *echo.Echo
}

// NewServer creates a server for addr with the block-list routes mounted.
func NewServer(addr string, store Store, w blocklist.Writer) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	Register(e, store, w)
	return &Server{addr: addr, e: e}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("%w: control listen on %s: %w", core.ErrControlPlane, s.addr, err)
	}
	s.e.Listener = ln

	logger := log.GetLogger()
	logger.WithField("addr", ln.Addr().String()).Info("starting control server")

	go func() {
		if err := s.e.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("control server error")
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.e.Listener != nil {
		return s.e.Listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.e.Listener == nil {
		return nil
	}
	log.GetLogger().Info("stopping control server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("control server shutdown failed: %w", err)
	}
	return nil
}
