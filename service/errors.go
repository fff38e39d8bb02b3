package service

import (
	"net/netip"
	"strconv"
)

// Direction identifies one of the two pumps of a tunnel.
type Direction uint8

const (
	// DirectionUplink carries packets from the device to the peer.
	DirectionUplink Direction = iota

	// DirectionDownlink carries packets from the peer to the device.
	DirectionDownlink
)

// String implements [fmt.Stringer].
func (d Direction) String() string {
	switch d {
	case DirectionUplink:
		return "device -> peer"
	case DirectionDownlink:
		return "peer -> device"
	default:
		return "Direction(" + strconv.Itoa(int(d)) + ")"
	}
}

// PumpError is returned by [Tunnel.Err] when a pump stopped on an I/O error.
type PumpError struct {
	Direction Direction
	Err       error
}

// Error implements [error].
func (e *PumpError) Error() string {
	return "pump " + e.Direction.String() + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *PumpError) Unwrap() error {
	return e.Err
}

// SocketError records a failed operation on the tunnel's UDP socket.
type SocketError struct {
	Op   string
	Addr netip.AddrPort
	Err  error
}

// Error implements [error].
func (e *SocketError) Error() string {
	if e.Addr.IsValid() {
		return "socket " + e.Op + " " + e.Addr.String() + ": " + e.Err.Error()
	}
	return "socket " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *SocketError) Unwrap() error {
	return e.Err
}
