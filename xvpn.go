// Package xvpn implements a minimal point-to-point tunnel that relays
// raw IP packets between a TUN device and a single peer over UDP.
//
// Each UDP datagram carries exactly one IP packet read from the TUN device.
// Payloads are optionally obfuscated with a repeating-key XOR transform:
//
//	out[i] = in[i] ^ key[i % len(key)]
//
// The transform preserves packet length and is its own inverse.
// It evades trivial pattern matching and nothing more: there is no
// confidentiality, integrity protection, or peer authentication.
//
// Datagrams are accepted from any source address that reaches the
// local port, not just the configured peer. Operators should restrict
// the listen port at the firewall when that matters. Debug logs mark
// whether each received datagram came from the configured peer.
//
// A datagram the TUN device refuses as not being an IP packet is dropped
// and counted. Any other I/O error ends its pump.
package xvpn
