package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/database64128/xvpn-go/conn"
	"github.com/database64128/xvpn-go/packet"
	"github.com/database64128/xvpn-go/tundev"
	"go.uber.org/zap"
)

const (
	// DefaultListenAddress is the default local address of the tunnel socket.
	DefaultListenAddress = "0.0.0.0:12353"

	// DefaultBufferSize is the default size of each pump's packet buffer.
	DefaultBufferSize = 4096

	// maxBufferSize is the largest possible UDP payload.
	maxBufferSize = 65535
)

// Pump failure policies.
const (
	// PumpFailureStopTunnel stops the whole tunnel when either pump fails.
	PumpFailureStopTunnel = "stop-tunnel"

	// PumpFailureIsolate stops only the failed pump. The other direction keeps running.
	PumpFailureIsolate = "isolate"
)

// DeviceOpener opens the TUN device described by cfg.
type DeviceOpener func(cfg *tundev.Config, logger *zap.Logger) (tundev.Device, error)

// OpenHostDevice is the default [DeviceOpener]. It creates a TUN device on the host.
func OpenHostDevice(cfg *tundev.Config, logger *zap.Logger) (tundev.Device, error) {
	return cfg.Open(logger)
}

// TunnelConfig stores configurations for a tunnel service.
// It may be marshaled as or unmarshaled from JSON.
type TunnelConfig struct {
	// Name identifies the tunnel in logs. Defaults to the device name.
	Name string `json:"name"`

	// ListenAddress is the local UDP address to bind.
	ListenAddress string `json:"listen"`

	// PeerAddress is where packets read from the device are sent.
	// A domain name is resolved once when the tunnel starts.
	PeerAddress conn.Addr `json:"peer"`

	// Obfs enables XOR obfuscation of packets in both directions.
	Obfs bool `json:"obfs"`

	// Key is the obfuscation key. Required when Obfs is true.
	Key string `json:"key"`

	// Device configures the TUN device.
	Device tundev.Config `json:"device"`

	// Fwmark sets the socket's fwmark on Linux.
	Fwmark int `json:"fwmark"`

	// PumpFailure selects what happens when one direction fails.
	//
	// Available values:
	// - "stop-tunnel" (default): stop both directions.
	// - "isolate": stop only the failed direction.
	PumpFailure string `json:"pumpFailure"`

	// BufferSize is the size of each pump's packet buffer.
	// It must not be smaller than the device MTU.
	BufferSize int `json:"bufferSize"`
}

// CheckAndApplyDefaults checks and applies default values to the configuration.
func (tc *TunnelConfig) CheckAndApplyDefaults() error {
	if err := tc.Device.CheckAndApplyDefaults(); err != nil {
		return err
	}

	if tc.Name == "" {
		tc.Name = tc.Device.Name
	}

	if tc.ListenAddress == "" {
		tc.ListenAddress = DefaultListenAddress
	}
	if _, err := conn.ParseAddr(tc.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", tc.ListenAddress, err)
	}

	if !tc.PeerAddress.IsValid() {
		return errors.New("missing peer address")
	}
	if tc.PeerAddress.Port() == 0 {
		return fmt.Errorf("peer port must not be zero: %s", tc.PeerAddress)
	}

	switch tc.PumpFailure {
	case "":
		tc.PumpFailure = PumpFailureStopTunnel
	case PumpFailureStopTunnel, PumpFailureIsolate:
	default:
		return fmt.Errorf("unknown pump failure policy: %s", tc.PumpFailure)
	}

	switch {
	case tc.BufferSize == 0:
		tc.BufferSize = max(DefaultBufferSize, tc.Device.MTU)
	case tc.BufferSize < tc.Device.MTU || tc.BufferSize > maxBufferSize:
		return fmt.Errorf("buffer size out of range [%d, %d]: %d", tc.Device.MTU, maxBufferSize, tc.BufferSize)
	}

	return nil
}

// Tunnel creates a tunnel service from the config.
// Call the Start method on the returned service to start it.
//
// All configuration errors are reported here, before anything is opened.
func (tc *TunnelConfig) Tunnel(logger *zap.Logger, openDevice DeviceOpener) (*Tunnel, error) {
	if err := tc.CheckAndApplyDefaults(); err != nil {
		return nil, err
	}

	mode := packet.ModePlain
	if tc.Obfs {
		mode = packet.ModeXOR
	}

	handler, err := packet.NewHandler(mode, []byte(tc.Key))
	if err != nil {
		return nil, err
	}

	if openDevice == nil {
		openDevice = OpenHostDevice
	}

	var keyFingerprint string
	if tc.Obfs {
		keyFingerprint = packet.KeyFingerprint([]byte(tc.Key))
	}

	return &Tunnel{
		name:           tc.Name,
		listenAddress:  tc.ListenAddress,
		peerAddr:       tc.PeerAddress,
		handler:        handler,
		keyFingerprint: keyFingerprint,
		pumpFailure:    tc.PumpFailure,
		bufferSize:     tc.BufferSize,
		deviceConfig:   tc.Device,
		openDevice:     openDevice,
		listenConfig: conn.ListenerSocketOptions{
			SendBufferSize:    conn.DefaultUDPSocketBufferSize,
			ReceiveBufferSize: conn.DefaultUDPSocketBufferSize,
			Fwmark:            tc.Fwmark,
		}.ListenConfig(),
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

// Tunnel relays packets between a TUN device and a single UDP peer.
//
// The uplink pump reads packets from the device and sends them to the peer.
// The downlink pump receives datagrams on the local socket and writes them
// to the device. The downlink accepts datagrams from any source address.
//
// Tunnel implements [Service].
type Tunnel struct {
	name           string
	listenAddress  string
	peerAddr       conn.Addr
	handler        packet.Handler
	keyFingerprint string
	pumpFailure    string
	bufferSize     int
	deviceConfig   tundev.Config
	openDevice     DeviceOpener
	listenConfig   conn.ListenConfig
	logger         *zap.Logger

	device       tundev.Device
	conn         *net.UDPConn
	peerAddrPort netip.AddrPort

	stopping  atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup
	done      chan struct{}

	errMu sync.Mutex
	err   error
}

// String implements the Service String method.
func (t *Tunnel) String() string {
	return t.name + " tunnel service"
}

// LocalAddrPort returns the bound address of the tunnel socket.
// It is only valid after Start returns successfully.
func (t *Tunnel) LocalAddrPort() netip.AddrPort {
	return t.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Start implements the Service Start method.
//
// The peer address is resolved, the socket is bound and the device is opened,
// in that order. If any step fails, whatever was opened is closed again
// and no pump is started.
func (t *Tunnel) Start(ctx context.Context) error {
	peerAddrPort, err := t.peerAddr.ResolveIPPort(ctx, "ip")
	if err != nil {
		return fmt.Errorf("failed to resolve peer address %s: %w", t.peerAddr, err)
	}
	// A udp4 socket cannot send to an IPv4-mapped IPv6 address.
	peerAddrPort = netip.AddrPortFrom(peerAddrPort.Addr().Unmap(), peerAddrPort.Port())
	if t.peerAddr.IsDomain() {
		t.logger.Info("Resolved peer address",
			zap.String("tunnel", t.name),
			zap.String("domain", t.peerAddr.Domain()),
			zap.Stringer("peerAddress", peerAddrPort),
		)
	}

	uc, err := t.listenConfig.ListenUDP(ctx, "udp", t.listenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", t.listenAddress, err)
	}

	device, err := t.openDevice(&t.deviceConfig, t.logger)
	if err != nil {
		_ = uc.Close()
		return fmt.Errorf("failed to open device %s: %w", t.deviceConfig.Name, err)
	}

	t.conn = uc
	t.device = device
	t.peerAddrPort = peerAddrPort

	t.wg.Add(2)

	go func() {
		defer t.wg.Done()
		t.pumpExited(DirectionUplink, t.relayDeviceToPeer())
	}()

	go func() {
		defer t.wg.Done()
		t.pumpExited(DirectionDownlink, t.relayPeerToDevice())
	}()

	go func() {
		t.wg.Wait()
		close(t.done)
	}()

	t.logger.Info("Started service",
		zap.String("tunnel", t.name),
		zap.String("device", device.Name()),
		zap.Stringer("listenAddress", uc.LocalAddr()),
		zap.Stringer("peerAddress", peerAddrPort),
		zap.String("obfsMode", t.handler.Mode()),
		zap.String("keyFingerprint", t.keyFingerprint),
		zap.String("pumpFailure", t.pumpFailure),
		zap.Int("bufferSize", t.bufferSize),
	)
	return nil
}

// Done returns a channel that is closed when both pumps have exited.
func (t *Tunnel) Done() <-chan struct{} {
	return t.done
}

// Err returns the error that stopped the first failed pump.
// It returns nil if no pump has failed, or if the pumps exited because of Stop.
func (t *Tunnel) Err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.err
}

// Stop implements the Service Stop method.
func (t *Tunnel) Stop() error {
	t.shutdown()
	t.wg.Wait()
	return nil
}

// shutdown closes the socket and the device, which unblocks both pumps.
func (t *Tunnel) shutdown() {
	t.stopping.Store(true)
	t.closeOnce.Do(func() {
		if t.conn != nil {
			if err := t.conn.Close(); err != nil {
				t.logger.Warn("Failed to close socket", zap.String("tunnel", t.name), zap.Error(err))
			}
		}
		if t.device != nil {
			if err := t.device.Close(); err != nil {
				t.logger.Warn("Failed to close device", zap.String("tunnel", t.name), zap.Error(err))
			}
		}
	})
}

// pumpExited applies the pump failure policy to a pump that returned err.
func (t *Tunnel) pumpExited(direction Direction, err error) {
	if t.stopping.Load() {
		return
	}

	perr := &PumpError{Direction: direction, Err: err}

	t.errMu.Lock()
	if t.err == nil {
		t.err = perr
	}
	t.errMu.Unlock()

	t.logger.Error("Pump failed",
		zap.String("tunnel", t.name),
		zap.Stringer("direction", direction),
		zap.String("pumpFailure", t.pumpFailure),
		zap.Error(err),
	)

	if t.pumpFailure == PumpFailureStopTunnel {
		t.shutdown()
	}
}

// relayDeviceToPeer is the uplink pump.
// It only returns when reading from the device or sending to the peer fails.
func (t *Tunnel) relayDeviceToPeer() error {
	var (
		packetsSent uint64
		bytesSent   uint64
	)

	buf := make([]byte, t.bufferSize)

	defer func() {
		t.logger.Info("Finished relay device -> peer",
			zap.String("tunnel", t.name),
			zap.Stringer("peerAddress", t.peerAddrPort),
			zap.Uint64("packetsSent", packetsSent),
			zap.Uint64("bytesSent", bytesSent),
		)
	}()

	for {
		n, err := t.device.ReadPacket(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}

		var fields []zap.Field
		ce := t.logger.Check(zap.DebugLevel, "Relayed packet device -> peer")
		if ce != nil {
			fields = make([]zap.Field, 0, 8)
			if s, ok := summarizeIPPacket(buf[:n]); ok {
				fields = s.appendFields(fields)
			}
		}

		pkt := t.handler.Encrypt(buf[:n])

		sent, err := t.conn.WriteToUDPAddrPort(pkt, t.peerAddrPort)
		if err != nil {
			return &SocketError{Op: "send", Addr: t.peerAddrPort, Err: err}
		}

		packetsSent++
		bytesSent += uint64(sent)

		if ce != nil {
			fields = append(fields,
				zap.String("tunnel", t.name),
				zap.Int("bytesRead", n),
				zap.Int("bytesSent", sent),
				zap.Stringer("peerAddress", t.peerAddrPort),
			)
			ce.Write(fields...)
		}
	}
}

// relayPeerToDevice is the downlink pump.
// It only returns when receiving from the socket or writing to the device fails.
//
// The source address of received datagrams is not checked against the peer.
func (t *Tunnel) relayPeerToDevice() error {
	var (
		packetsReceived uint64
		bytesReceived   uint64
		packetsDropped  uint64
	)

	buf := make([]byte, t.bufferSize)

	defer func() {
		t.logger.Info("Finished relay peer -> device",
			zap.String("tunnel", t.name),
			zap.Stringer("peerAddress", t.peerAddrPort),
			zap.Uint64("packetsReceived", packetsReceived),
			zap.Uint64("bytesReceived", bytesReceived),
			zap.Uint64("packetsDropped", packetsDropped),
		)
	}()

	for {
		n, _, flags, sourceAddrPort, err := t.conn.ReadMsgUDPAddrPort(buf, nil)
		if err != nil {
			return &SocketError{Op: "receive", Err: err}
		}
		if err = conn.ParseFlagsForError(flags); err != nil {
			packetsDropped++
			t.logger.Warn("Dropping truncated packet",
				zap.String("tunnel", t.name),
				zap.Stringer("sourceAddress", sourceAddrPort),
				zap.Int("bufferSize", t.bufferSize),
				zap.Error(err),
			)
			continue
		}
		if n == 0 {
			packetsDropped++
			continue
		}

		pkt := t.handler.Decrypt(buf[:n])

		written, err := t.device.WritePacket(pkt)
		if err != nil {
			// The kernel rejects datagrams that are not IP packets with EINVAL.
			if errors.Is(err, syscall.EINVAL) {
				packetsDropped++
				t.logger.Warn("Dropping packet rejected by device",
					zap.String("tunnel", t.name),
					zap.Stringer("sourceAddress", sourceAddrPort),
					zap.Bool("fromPeer", conn.AddrPortMappedEqual(sourceAddrPort, t.peerAddrPort)),
					zap.Int("packetLength", len(pkt)),
					zap.Error(err),
				)
				continue
			}
			return err
		}

		packetsReceived++
		bytesReceived += uint64(n)

		if ce := t.logger.Check(zap.DebugLevel, "Relayed packet peer -> device"); ce != nil {
			fields := make([]zap.Field, 0, 8)
			if s, ok := summarizeIPPacket(pkt); ok {
				fields = s.appendFields(fields)
			}
			fields = append(fields,
				zap.String("tunnel", t.name),
				zap.Int("bytesReceived", n),
				zap.Int("bytesWritten", written),
				zap.Stringer("sourceAddress", sourceAddrPort),
				zap.Bool("fromPeer", conn.AddrPortMappedEqual(sourceAddrPort, t.peerAddrPort)),
			)
			ce.Write(fields...)
		}
	}
}
