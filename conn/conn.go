// Package conn provides UDP socket helpers for the tunnel transport.
package conn

import "net/netip"

// AddrPortMappedEqual returns whether the two addresses point to the same endpoint.
// An IPv4 address and an IPv4-mapped IPv6 address pointing to the same endpoint are considered equal.
// For example, 1.1.1.1:53 and [::ffff:1.1.1.1]:53 are considered equal.
func AddrPortMappedEqual(l, r netip.AddrPort) bool {
	return l.Port() == r.Port() && l.Addr().Unmap() == r.Addr().Unmap()
}
