// Package admin serves the operational HTTP endpoints of the relay:
// liveness, readiness and Prometheus metrics.
package admin

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	relayerrors "gpsrelay/internal/errors"
	"gpsrelay/internal/metrics"
	"gpsrelay/util"
)

// Server exposes /health, /ready and /metrics.
type Server struct {
	server *http.Server
	logger *util.Logger
	ready  atomic.Bool
	addr   atomic.Value // net.Addr once listening
}

// New returns a Server for addr.  It reports not ready until SetReady
// is called.
func New(addr string, m *metrics.Collector, logger *util.Logger) *Server {
	if logger == nil {
		logger = util.NewLogger(-1)
	}
	s := &Server{logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", m.Handler())

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start binds the address and serves in the background.  A bind
// failure is returned.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return relayerrors.Wrap("listen", s.server.Addr, err)
	}
	s.addr.Store(ln.Addr())
	s.logger.Info("Admin server listening on %s", ln.Addr())

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Admin server: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	a, _ := s.addr.Load().(net.Addr)
	return a
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// SetReady flips the /ready answer.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok")) //nolint:errcheck
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready.Load() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready")) //nolint:errcheck
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte("not ready")) //nolint:errcheck
}
