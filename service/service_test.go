package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/database64128/xvpn-go/conn"
	"github.com/database64128/xvpn-go/jsonhelper"
	"github.com/database64128/xvpn-go/tundev"
	"github.com/database64128/xvpn-go/tundev/tundevtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestConfigDecode(t *testing.T) {
	const input = `{
	"tunnels": [
		{
			"name": "site-b",
			"listen": "0.0.0.0:12353",
			"peer": "192.168.100.18:12353",
			"obfs": true,
			"key": "abcdefghijklmnopqrstuvwxyz",
			"device": {
				"name": "gw0",
				"mtu": 1420,
				"ipv4": "172.16.0.1/24",
				"ipv6": "fced:9999:9999::1/64"
			},
			"fwmark": 51820,
			"pumpFailure": "isolate",
			"bufferSize": 2048
		}
	],
	"pprof": {
		"enabled": false,
		"listenAddress": "127.0.0.1:6060"
	}
}`

	var sc Config
	if err := jsonhelper.DecodeDisallowUnknownFields(strings.NewReader(input), &sc); err != nil {
		t.Fatalf("Failed to decode config: %v", err)
	}
	if len(sc.Tunnels) != 1 {
		t.Fatalf("len(Tunnels) = %d, want 1", len(sc.Tunnels))
	}

	tc := sc.Tunnels[0]
	if tc.PeerAddress != conn.MustParseAddr("192.168.100.18:12353") {
		t.Errorf("PeerAddress = %s", tc.PeerAddress)
	}
	if tc.Device.MTU != 1420 || tc.Device.IPv4.String() != "172.16.0.1/24" || tc.Device.IPv6.String() != "fced:9999:9999::1/64" {
		t.Errorf("Device = %+v", tc.Device)
	}
	if !tc.Obfs || tc.Key != "abcdefghijklmnopqrstuvwxyz" || tc.Fwmark != 51820 || tc.PumpFailure != PumpFailureIsolate || tc.BufferSize != 2048 {
		t.Errorf("TunnelConfig = %+v", tc)
	}

	if _, err := sc.Manager(zaptest.NewLogger(t), nil, nil); err != nil {
		t.Errorf("Manager failed: %v", err)
	}
}

func TestConfigManagerErrors(t *testing.T) {
	logger := zaptest.NewLogger(t)

	var empty Config
	if _, err := empty.Manager(logger, nil, nil); err == nil {
		t.Error("Manager succeeded without tunnels")
	}

	bad := Config{Tunnels: []TunnelConfig{{Name: "bad"}}}
	if _, err := bad.Manager(logger, nil, nil); err == nil {
		t.Error("Manager succeeded with a tunnel without peer")
	}
}

func TestManagerLifecycle(t *testing.T) {
	logger := zaptest.NewLogger(t)
	peer := newPeerConn(t)
	devs := map[string]*tundevtest.Device{
		"test0": tundevtest.New("test0"),
		"test1": tundevtest.New("test1"),
	}
	openDevice := func(cfg *tundev.Config, _ *zap.Logger) (tundev.Device, error) {
		return devs[cfg.Name], nil
	}

	sc := Config{
		Tunnels: []TunnelConfig{
			{
				ListenAddress: "127.0.0.1:0",
				PeerAddress:   conn.AddrFromIPPort(localAddrPort(peer)),
				Device:        tundev.Config{Name: "test0"},
			},
			{
				ListenAddress: "127.0.0.1:0",
				PeerAddress:   conn.AddrFromIPPort(localAddrPort(peer)),
				Device:        tundev.Config{Name: "test1"},
			},
		},
	}

	m, err := sc.Manager(logger, nil, openDevice)
	if err != nil {
		t.Fatalf("Manager failed: %v", err)
	}
	if err = m.Start(t.Context()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	pkt := []byte("hello")
	if err = devs["test1"].Send(t.Context(), bytes.Clone(pkt)); err != nil {
		t.Fatal(err)
	}
	if got, _ := readFromPeer(t, peer, len(pkt)); !bytes.Equal(got, pkt) {
		t.Errorf("peer received %q, want %q", got, pkt)
	}

	ctx, cancel := context.WithCancel(t.Context())
	waitErr := make(chan error, 1)
	go func() {
		waitErr <- m.Wait(ctx)
	}()
	cancel()

	select {
	case err = <-waitErr:
		if err != nil {
			t.Errorf("Wait() = %v, want nil after cancel", err)
		}
	case <-time.After(testTimeout):
		t.Fatal("Wait did not return after cancel")
	}

	m.Stop()

	for name, dev := range devs {
		select {
		case <-dev.Closed():
		default:
			t.Errorf("device %s was not closed by Stop", name)
		}
	}
}

func TestManagerWaitReportsTunnelFailure(t *testing.T) {
	logger := zaptest.NewLogger(t)
	peer := newPeerConn(t)
	dev := tundevtest.New("test0")

	sc := Config{
		Tunnels: []TunnelConfig{
			{
				ListenAddress: "127.0.0.1:0",
				PeerAddress:   conn.AddrFromIPPort(localAddrPort(peer)),
				Device:        tundev.Config{Name: "test0"},
			},
		},
	}

	m, err := sc.Manager(logger, nil, openTestDevice(dev))
	if err != nil {
		t.Fatalf("Manager failed: %v", err)
	}
	if err = m.Start(t.Context()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()

	dev.FailRead(nil)

	ctx, cancel := context.WithTimeout(t.Context(), testTimeout)
	defer cancel()

	err = m.Wait(ctx)
	var perr *PumpError
	if !errors.As(err, &perr) {
		t.Fatalf("Wait() = %v, want *PumpError", err)
	}
	if !errors.Is(err, tundevtest.ErrInjected) {
		t.Errorf("Wait() = %v, want wrapped ErrInjected", err)
	}
}

func TestManagerStartFailureStopsStarted(t *testing.T) {
	logger := zaptest.NewLogger(t)
	peer := newPeerConn(t)
	good := tundevtest.New("good")
	errOpen := errors.New("no such device")

	openDevice := func(cfg *tundev.Config, _ *zap.Logger) (tundev.Device, error) {
		if cfg.Name == "good" {
			return good, nil
		}
		return nil, errOpen
	}

	sc := Config{
		Tunnels: []TunnelConfig{
			{
				ListenAddress: "127.0.0.1:0",
				PeerAddress:   conn.AddrFromIPPort(localAddrPort(peer)),
				Device:        tundev.Config{Name: "good"},
			},
			{
				ListenAddress: "127.0.0.1:0",
				PeerAddress:   conn.AddrFromIPPort(localAddrPort(peer)),
				Device:        tundev.Config{Name: "bad"},
			},
		},
	}

	m, err := sc.Manager(logger, nil, openDevice)
	if err != nil {
		t.Fatalf("Manager failed: %v", err)
	}
	if err = m.Start(t.Context()); !errors.Is(err, errOpen) {
		t.Fatalf("Start() = %v, want %v", err, errOpen)
	}

	select {
	case <-good.Closed():
	default:
		t.Error("started tunnel was not stopped after a later tunnel failed to start")
	}
}
