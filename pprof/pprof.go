// Package pprof serves the runtime profiling endpoints over HTTP.
package pprof

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"net/netip"

	"github.com/database64128/xvpn-go/tslog"
)

// DefaultListenAddress is used when pprof is enabled without a listen address.
const DefaultListenAddress = "127.0.0.1:6060"

// Config is the configuration for the pprof service.
type Config struct {
	// Enabled controls whether the pprof service is enabled.
	Enabled bool `json:"enabled"`

	// ListenNetwork is the network to listen on. Defaults to "tcp".
	ListenNetwork string `json:"listenNetwork,omitzero"`

	// ListenAddress is the address to listen on.
	ListenAddress string `json:"listenAddress"`
}

// NewService creates a new pprof service.
func (c Config) NewService(logger *tslog.Logger) *Service {
	network := c.ListenNetwork
	if network == "" {
		network = "tcp"
	}

	address := c.ListenAddress
	if address == "" {
		address = DefaultListenAddress
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return &Service{
		logger:  logger,
		network: network,
		server: http.Server{
			Addr:     address,
			Handler:  logRequests(logger, mux),
			ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
		},
	}
}

// logRequests is a middleware that logs handled requests.
func logRequests(logger *tslog.Logger, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r)
		logger.Info("Handled pprof request",
			slog.String("method", r.Method),
			slog.String("requestURI", r.RequestURI),
			slog.String("remoteAddr", r.RemoteAddr),
		)
	})
}

// Service implements [service.Service].
type Service struct {
	logger  *tslog.Logger
	network string
	server  http.Server
	addr    netip.AddrPort
}

// String implements [service.Service.String].
func (*Service) String() string {
	return "pprof"
}

// Addr returns the address the service is listening on.
// It is only valid after Start returns successfully.
func (s *Service) Addr() netip.AddrPort {
	return s.addr
}

// Start implements [service.Service.Start].
func (s *Service) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, s.network, s.server.Addr)
	if err != nil {
		return err
	}

	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.addr = tcpAddr.AddrPort()
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Failed to serve pprof", tslog.Err(err))
		}
	}()

	s.logger.Info("Started pprof", tslog.AddrPort("listenAddress", s.addr))
	return nil
}

// Stop implements [service.Service.Stop].
func (s *Service) Stop() error {
	if err := s.server.Close(); err != nil {
		return err
	}
	s.logger.Info("Stopped pprof")
	return nil
}
