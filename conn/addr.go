package conn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// Addr is a port number combined with either an IP address or a domain name.
//
// The zero value is not a valid address.
type Addr struct {
	ip     netip.Addr
	domain string
	port   uint16
}

// IsValid returns whether the address is an initialized address (not a zero value).
func (a Addr) IsValid() bool {
	return a.ip.IsValid() || a.domain != ""
}

// IsDomain returns whether the address is a domain name.
func (a Addr) IsDomain() bool {
	return a.domain != ""
}

// Domain returns the domain name.
//
// If the address is an IP address or zero value, this method panics.
func (a Addr) Domain() string {
	if a.domain == "" {
		panic("Domain() called on non-domain address")
	}
	return a.domain
}

// Port returns the port number.
func (a Addr) Port() uint16 {
	return a.port
}

// ResolveIP resolves a domain name string into an IP address.
//
// This function always returns the first IP address returned by the resolver,
// because the resolver takes care of sorting the IP addresses by address family
// availability and preference.
func ResolveIP(ctx context.Context, network, host string) (netip.Addr, error) {
	ips, err := net.DefaultResolver.LookupNetIP(ctx, network, host)
	if err != nil {
		return netip.Addr{}, err
	}
	if len(ips) == 0 {
		return netip.Addr{}, fmt.Errorf("no %s address found for %s", network, host)
	}
	return ips[0], nil
}

// ResolveIPPort returns the IP address itself or the resolved IP address of the domain name
// and the port number as a [netip.AddrPort].
//
// network is passed to the resolver and must be one of "ip", "ip4", "ip6".
func (a Addr) ResolveIPPort(ctx context.Context, network string) (netip.AddrPort, error) {
	switch {
	case a.ip.IsValid():
		return netip.AddrPortFrom(a.ip, a.port), nil
	case a.domain != "":
		ip, err := ResolveIP(ctx, network, a.domain)
		if err != nil {
			return netip.AddrPort{}, err
		}
		return netip.AddrPortFrom(ip, a.port), nil
	default:
		return netip.AddrPort{}, errors.New("cannot resolve zero value address")
	}
}

// String returns the string representation of the address.
//
// If the address is zero value, an empty string is returned.
func (a Addr) String() string {
	switch {
	case a.ip.IsValid():
		return netip.AddrPortFrom(a.ip, a.port).String()
	case a.domain != "":
		return net.JoinHostPort(a.domain, strconv.FormatUint(uint64(a.port), 10))
	default:
		return ""
	}
}

// MarshalText implements the encoding.TextMarshaler MarshalText method.
func (a Addr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler UnmarshalText method.
func (a *Addr) UnmarshalText(text []byte) error {
	addr, err := ParseAddr(string(text))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// AddrFromIPPort returns an Addr from the provided netip.AddrPort.
func AddrFromIPPort(addrPort netip.AddrPort) Addr {
	return Addr{ip: addrPort.Addr(), port: addrPort.Port()}
}

// AddrFromDomainPort returns an Addr from the provided domain name and port number.
func AddrFromDomainPort(domain string, port uint16) (Addr, error) {
	if len(domain) == 0 || len(domain) > 255 {
		return Addr{}, fmt.Errorf("length of domain %s out of range [1, 255]", domain)
	}
	return Addr{domain: domain, port: port}, nil
}

// AddrFromHostPort returns an Addr from the provided host string and port number.
// The host string may be a string representation of an IP address or a domain name.
func AddrFromHostPort(host string, port uint16) (Addr, error) {
	if host == "" {
		host = "::"
	}

	if ip, err := netip.ParseAddr(host); err == nil {
		return Addr{ip: ip, port: port}, nil
	}

	return AddrFromDomainPort(host, port)
}

// ParseAddr parses the provided string representation of an address
// and returns the parsed address or an error.
func ParseAddr(s string) (Addr, error) {
	host, portString, err := net.SplitHostPort(s)
	if err != nil {
		return Addr{}, err
	}

	portNumber, err := strconv.ParseUint(portString, 10, 16)
	if err != nil {
		return Addr{}, fmt.Errorf("failed to parse port string: %w", err)
	}

	return AddrFromHostPort(host, uint16(portNumber))
}

// MustParseAddr calls [ParseAddr] and panics on error.
func MustParseAddr(s string) Addr {
	addr, err := ParseAddr(s)
	if err != nil {
		panic(err)
	}
	return addr
}
