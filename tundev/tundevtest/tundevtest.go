// Package tundevtest provides an in-memory [tundev.Device] for tests.
package tundevtest

import (
	"context"
	"errors"
	"sync"

	"github.com/database64128/xvpn-go/tundev"
)

// ErrInjected is the default error returned by injected read and write failures.
var ErrInjected = errors.New("injected device failure")

// Device is an in-memory TUN device.
//
// The test plays the host network stack: [Device.Send] queues a packet for the
// tunnel to read, and [Device.Receive] returns packets the tunnel wrote.
type Device struct {
	name     string
	outbound chan []byte
	inbound  chan []byte

	mu         sync.Mutex
	readErr    error
	writeErr   error
	nextErr    error
	readFailed chan struct{}
	closed     chan struct{}
	closeOnce  sync.Once
}

// New returns a new in-memory device with the given name.
func New(name string) *Device {
	return &Device{
		name:       name,
		outbound:   make(chan []byte, 64),
		inbound:    make(chan []byte, 64),
		readFailed: make(chan struct{}),
		closed:     make(chan struct{}),
	}
}

// Name implements [tundev.Device.Name].
func (d *Device) Name() string {
	return d.name
}

// ReadPacket implements [tundev.Device.ReadPacket].
func (d *Device) ReadPacket(b []byte) (int, error) {
	select {
	case pkt := <-d.outbound:
		return copy(b, pkt), nil
	case <-d.readFailed:
		d.mu.Lock()
		err := d.readErr
		d.mu.Unlock()
		return 0, d.wrapError("read", err)
	case <-d.closed:
		return 0, d.wrapError("read", tundev.ErrDeviceClosed)
	}
}

// WritePacket implements [tundev.Device.WritePacket].
func (d *Device) WritePacket(b []byte) (int, error) {
	d.mu.Lock()
	err := d.writeErr
	if err == nil {
		err, d.nextErr = d.nextErr, nil
	}
	d.mu.Unlock()
	if err != nil {
		return 0, d.wrapError("write", err)
	}

	pkt := make([]byte, len(b))
	copy(pkt, b)

	select {
	case d.inbound <- pkt:
		return len(b), nil
	case <-d.closed:
		return 0, d.wrapError("write", tundev.ErrDeviceClosed)
	}
}

// Close implements [tundev.Device.Close].
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		close(d.closed)
	})
	return nil
}

// Closed returns a channel that is closed when the device is closed.
func (d *Device) Closed() <-chan struct{} {
	return d.closed
}

// Send queues a packet from the host for the tunnel to read.
func (d *Device) Send(ctx context.Context, pkt []byte) error {
	select {
	case d.outbound <- pkt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.closed:
		return tundev.ErrDeviceClosed
	}
}

// Receive returns the next packet the tunnel injected into the host.
func (d *Device) Receive(ctx context.Context) ([]byte, error) {
	select {
	case pkt := <-d.inbound:
		return pkt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FailRead makes the current and all future reads fail with err.
// A nil err is replaced with [ErrInjected].
func (d *Device) FailRead(err error) {
	if err == nil {
		err = ErrInjected
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readErr != nil {
		return
	}
	d.readErr = err
	close(d.readFailed)
}

// FailWrite makes all future writes fail with err.
// A nil err is replaced with [ErrInjected].
func (d *Device) FailWrite(err error) {
	if err == nil {
		err = ErrInjected
	}
	d.mu.Lock()
	d.writeErr = err
	d.mu.Unlock()
}

// FailNextWrite makes only the next write fail with err.
// A nil err is replaced with [ErrInjected].
func (d *Device) FailNextWrite(err error) {
	if err == nil {
		err = ErrInjected
	}
	d.mu.Lock()
	d.nextErr = err
	d.mu.Unlock()
}

func (d *Device) wrapError(op string, err error) error {
	return &tundev.DeviceError{Op: op, Name: d.name, Err: err}
}
