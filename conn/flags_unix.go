//go:build linux || darwin || freebsd

package conn

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ErrMessageTruncated is returned when a received datagram did not fit in the supplied buffer.
var ErrMessageTruncated = errors.New("the packet is larger than the supplied buffer")

// ParseFlagsForError parses the message flags returned by
// the ReadMsgUDPAddrPort method and returns an error if MSG_TRUNC
// is set, indicating that the returned packet was truncated.
func ParseFlagsForError(flags int) error {
	if flags&unix.MSG_TRUNC == unix.MSG_TRUNC {
		return ErrMessageTruncated
	}
	return nil
}
