package service

import (
	"net/netip"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// ipSummary describes the inner IP packet for debug logging.
// The relay itself never looks inside packets.
type ipSummary struct {
	version  int
	protocol int
	src      netip.Addr
	dst      netip.Addr
}

// summarizeIPPacket parses the IP header at the start of b.
// It returns false if b does not start with a valid IPv4 or IPv6 header.
func summarizeIPPacket(b []byte) (s ipSummary, ok bool) {
	if len(b) == 0 {
		return s, false
	}

	switch b[0] >> 4 {
	case ipv4.Version:
		h, err := ipv4.ParseHeader(b)
		if err != nil {
			return s, false
		}
		s.version = ipv4.Version
		s.protocol = h.Protocol
		s.src, _ = netip.AddrFromSlice(h.Src.To4())
		s.dst, _ = netip.AddrFromSlice(h.Dst.To4())
		return s, true

	case ipv6.Version:
		h, err := ipv6.ParseHeader(b)
		if err != nil {
			return s, false
		}
		s.version = ipv6.Version
		s.protocol = h.NextHeader
		s.src, _ = netip.AddrFromSlice(h.Src)
		s.dst, _ = netip.AddrFromSlice(h.Dst)
		return s, true

	default:
		return s, false
	}
}

// appendFields appends the summary as log fields.
func (s ipSummary) appendFields(fields []zap.Field) []zap.Field {
	return append(fields,
		zap.Int("ipVersion", s.version),
		zap.Int("ipProtocol", s.protocol),
		zap.Stringer("ipSource", s.src),
		zap.Stringer("ipDestination", s.dst),
	)
}
