//go:build !linux && !darwin && !freebsd

package conn

import "errors"

// ErrMessageTruncated is returned when a received datagram did not fit in the supplied buffer.
var ErrMessageTruncated = errors.New("the packet is larger than the supplied buffer")

// ParseFlagsForError parses the message flags returned by
// the ReadMsgUDPAddrPort method.
//
// The check is skipped on platforms other than Linux, macOS and FreeBSD.
// On Windows an error (WSAEMSGSIZE) is returned by the read call instead.
func ParseFlagsForError(flags int) error {
	return nil
}
