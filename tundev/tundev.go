// Package tundev opens and configures the TUN device that carries raw IP packets
// between the host network stack and the tunnel.
package tundev

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"sync/atomic"

	"github.com/songgao/water"
	"go.uber.org/zap"
)

const (
	// DefaultName is the default name of the TUN device.
	DefaultName = "gw0"

	// DefaultMTU is the default MTU of the TUN device.
	DefaultMTU = 1500

	// minimumMTU is the minimum MTU required by IPv6.
	minimumMTU = 1280
)

// ErrDeviceClosed is wrapped by errors returned from a closed device.
var ErrDeviceClosed = errors.New("device closed")

// Device is a TUN device opened in packet mode without packet information headers.
//
// ReadPacket and WritePacket may be called concurrently with each other.
// Neither may be called concurrently with itself.
type Device interface {
	// Name returns the name of the network interface.
	Name() string

	// ReadPacket reads the next IP packet sent by the host into b.
	// It blocks until a packet is available or the device is closed.
	ReadPacket(b []byte) (n int, err error)

	// WritePacket injects the IP packet b into the host network stack.
	WritePacket(b []byte) (n int, err error)

	// Close closes the device. Blocked reads and writes return an error
	// that wraps [ErrDeviceClosed].
	Close() error
}

// DeviceError records a failed device operation.
type DeviceError struct {
	Op   string
	Name string
	Err  error
}

func (e *DeviceError) Error() string {
	return "tundev: " + e.Op + " " + e.Name + ": " + e.Err.Error()
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Config is the TUN device configuration.
// It may be marshaled as or unmarshaled from JSON.
type Config struct {
	// Name is the interface name. Only honored on Linux.
	Name string `json:"name"`

	// MTU is the interface MTU. Set on Linux only.
	MTU int `json:"mtu"`

	// IPv4 is the IPv4 address and prefix length assigned to the interface.
	// Leave empty to skip.
	IPv4 netip.Prefix `json:"ipv4"`

	// IPv6 is the IPv6 address and prefix length assigned to the interface.
	// Leave empty to skip.
	IPv6 netip.Prefix `json:"ipv6"`
}

// CheckAndApplyDefaults checks and applies default values to the configuration.
func (c *Config) CheckAndApplyDefaults() error {
	if c.Name == "" {
		c.Name = DefaultName
	}

	switch {
	case c.MTU == 0:
		c.MTU = DefaultMTU
	case c.MTU < minimumMTU || c.MTU > 65535:
		return fmt.Errorf("device MTU out of range [%d, 65535]: %d", minimumMTU, c.MTU)
	}

	if c.IPv4.IsValid() && !c.IPv4.Addr().Is4() {
		return fmt.Errorf("ipv4 prefix is not an IPv4 prefix: %s", c.IPv4)
	}
	if c.IPv6.IsValid() && !c.IPv6.Addr().Is6() {
		return fmt.Errorf("ipv6 prefix is not an IPv6 prefix: %s", c.IPv6)
	}

	return nil
}

// prefixes returns the configured prefixes.
func (c *Config) prefixes() []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, 2)
	if c.IPv4.IsValid() {
		prefixes = append(prefixes, c.IPv4)
	}
	if c.IPv6.IsValid() {
		prefixes = append(prefixes, c.IPv6)
	}
	return prefixes
}

// Open creates the TUN device and brings it up.
//
// Failing to bring the link up is an error. Failing to set the MTU or
// assign addresses is logged as a warning, and the device is still returned,
// so addresses managed by other tools do not prevent startup.
func (c *Config) Open(logger *zap.Logger) (Device, error) {
	iface, err := water.New(water.Config{
		DeviceType:             water.TUN,
		PlatformSpecificParams: platformSpecificParams(c.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create TUN device %s: %w", c.Name, err)
	}

	d := &waterDevice{iface: iface}

	if err = configureLink(logger, d.Name(), c.MTU, c.prefixes()); err != nil {
		_ = iface.Close()
		return nil, err
	}

	logger.Info("Opened TUN device",
		zap.String("device", d.Name()),
		zap.Int("mtu", c.MTU),
		zap.Stringer("ipv4", c.IPv4),
		zap.Stringer("ipv6", c.IPv6),
	)
	return d, nil
}

// waterDevice implements [Device] on top of a [*water.Interface].
//
// The interface is backed by an [*os.File] registered with the runtime poller,
// so concurrent Read and Write calls need no extra locking,
// and Close unblocks both.
type waterDevice struct {
	iface  *water.Interface
	closed atomic.Bool
}

// Name implements [Device.Name].
func (d *waterDevice) Name() string {
	return d.iface.Name()
}

// ReadPacket implements [Device.ReadPacket].
func (d *waterDevice) ReadPacket(b []byte) (int, error) {
	n, err := d.iface.Read(b)
	if err != nil {
		return n, d.wrapError("read", err)
	}
	return n, nil
}

// WritePacket implements [Device.WritePacket].
func (d *waterDevice) WritePacket(b []byte) (int, error) {
	n, err := d.iface.Write(b)
	if err != nil {
		return n, d.wrapError("write", err)
	}
	return n, nil
}

// Close implements [Device.Close].
func (d *waterDevice) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	return d.iface.Close()
}

func (d *waterDevice) wrapError(op string, err error) error {
	if d.closed.Load() || errors.Is(err, os.ErrClosed) {
		err = fmt.Errorf("%w: %w", ErrDeviceClosed, err)
	}
	return &DeviceError{Op: op, Name: d.Name(), Err: err}
}
