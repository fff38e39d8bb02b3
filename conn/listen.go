package conn

import (
	"context"
	"net"
	"syscall"
)

// DefaultUDPSocketBufferSize is the default send and receive buffer size of UDP sockets.
//
// The tunnel relays one packet at a time, so a buffer in the low megabytes
// is enough to absorb bursts while a pump is busy writing to the TUN device.
const DefaultUDPSocketBufferSize = 4 << 20

// ListenerSocketOptions contains options for listener sockets.
type ListenerSocketOptions struct {
	// SendBufferSize sets the send buffer size of the listener.
	//
	// Available on POSIX systems.
	SendBufferSize int

	// ReceiveBufferSize sets the receive buffer size of the listener.
	//
	// Available on POSIX systems.
	ReceiveBufferSize int

	// Fwmark sets the listener's fwmark on Linux, or user cookie on FreeBSD.
	//
	// Available on Linux and FreeBSD.
	Fwmark int
}

// ListenConfig returns a [ListenConfig] that applies the socket options.
func (lso ListenerSocketOptions) ListenConfig() ListenConfig {
	return ListenConfig{
		lc: net.ListenConfig{
			Control: lso.buildSetFns().controlFunc(),
		},
	}
}

// ListenConfig is [net.ListenConfig] with socket options applied on supported platforms.
type ListenConfig struct {
	lc net.ListenConfig
}

// ListenUDP wraps [net.ListenConfig.ListenPacket] and returns a [*net.UDPConn] directly.
//
// The returned conn is safe for one goroutine to send and another to receive
// at the same time.
func (lc *ListenConfig) ListenUDP(ctx context.Context, network, address string) (*net.UDPConn, error) {
	pc, err := lc.lc.ListenPacket(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}

type setFunc = func(fd int, network string) error

type setFuncSlice []setFunc

func (fns setFuncSlice) controlFunc() func(network, address string, c syscall.RawConn) error {
	if len(fns) == 0 {
		return nil
	}
	return func(network, address string, c syscall.RawConn) (err error) {
		if cerr := c.Control(func(fd uintptr) {
			for _, fn := range fns {
				if err = fn(int(fd), network); err != nil {
					return
				}
			}
		}); cerr != nil {
			return cerr
		}
		return
	}
}

func (lso ListenerSocketOptions) buildSetFns() setFuncSlice {
	return setFuncSlice{}.
		appendSetSendBufferSize(lso.SendBufferSize).
		appendSetRecvBufferSize(lso.ReceiveBufferSize).
		appendSetFwmarkFunc(lso.Fwmark)
}
