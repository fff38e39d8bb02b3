// Package service wires TUN devices, UDP sockets and packet handlers
// into running tunnel services.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/database64128/xvpn-go/pprof"
	"github.com/database64128/xvpn-go/tslog"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Service is implemented by encapsulations that can be started and stopped.
type Service interface {
	// String returns the service's name.
	String() string

	// Start starts the service.
	Start(ctx context.Context) error

	// Stop stops the service.
	Stop() error
}

// Config stores configurations for a typical xvpn service.
// It may be marshaled as or unmarshaled from JSON.
type Config struct {
	Tunnels []TunnelConfig `json:"tunnels"`
	Pprof   pprof.Config   `json:"pprof"`
}

// Manager initializes the service manager.
//
// pprofLogger is only used when pprof is enabled.
// openDevice may be nil, in which case TUN devices are created on the host.
func (sc *Config) Manager(logger *zap.Logger, pprofLogger *tslog.Logger, openDevice DeviceOpener) (*Manager, error) {
	if len(sc.Tunnels) == 0 {
		return nil, errors.New("no tunnels to start")
	}

	services := make([]Service, 0, len(sc.Tunnels)+1)
	tunnels := make([]*Tunnel, 0, len(sc.Tunnels))

	if sc.Pprof.Enabled {
		services = append(services, sc.Pprof.NewService(pprofLogger))
	}

	for i := range sc.Tunnels {
		t, err := sc.Tunnels[i].Tunnel(logger, openDevice)
		if err != nil {
			return nil, fmt.Errorf("failed to create tunnel %s: %w", sc.Tunnels[i].Name, err)
		}
		services = append(services, t)
		tunnels = append(tunnels, t)
	}

	return &Manager{
		services: services,
		tunnels:  tunnels,
		logger:   logger,
	}, nil
}

// Manager manages the services.
type Manager struct {
	services []Service
	tunnels  []*Tunnel
	started  int
	logger   *zap.Logger
}

// Start starts all configured services.
//
// If any service fails to start, the services already started are stopped,
// and the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	for _, s := range m.services {
		if err := s.Start(ctx); err != nil {
			m.Stop()
			return fmt.Errorf("failed to start %s: %w", s.String(), err)
		}
		m.started++
	}
	return nil
}

// Wait blocks until ctx is canceled, a tunnel fails, or all tunnels have finished.
//
// It returns the first tunnel failure, or nil.
func (m *Manager) Wait(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range m.tunnels {
		g.Go(func() error {
			select {
			case <-t.Done():
				return t.Err()
			case <-gctx.Done():
				return nil
			}
		})
	}
	return g.Wait()
}

// Stop stops all running services in reverse start order.
func (m *Manager) Stop() {
	for i := m.started - 1; i >= 0; i-- {
		s := m.services[i]
		if err := s.Stop(); err != nil {
			m.logger.Warn("Failed to stop service",
				zap.Stringer("service", s),
				zap.Error(err),
			)
		}
		m.logger.Info("Stopped service", zap.Stringer("service", s))
	}
	m.started = 0
}
