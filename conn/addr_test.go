package conn

import (
	"encoding/json"
	"net/netip"
	"testing"
)

var (
	ip4addr     = netip.AddrFrom4([4]byte{127, 0, 0, 1})
	ip4addrPort = netip.AddrPortFrom(ip4addr, 12353)
)

var (
	ip4in6addr     = netip.AddrFrom16([16]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff, 127, 0, 0, 1})
	ip4in6addrPort = netip.AddrPortFrom(ip4in6addr, 12353)
)

var (
	ip6addr     = netip.AddrFrom16([16]byte{0x20, 0x01, 0x0d, 0xb8, 0xfa, 0xd6, 0x05, 0x72, 0xac, 0xbe, 0x71, 0x43, 0x14, 0xe5, 0x7a, 0x6e})
	ip6addrPort = netip.AddrPortFrom(ip6addr, 12353)
)

const (
	ip4addrString    = "127.0.0.1:12353"
	ip4in6addrString = "[::ffff:127.0.0.1]:12353"
	ip6addrString    = "[2001:db8:fad6:572:acbe:7143:14e5:7a6e]:12353"
	domainString     = "peer.example.com:12353"
)

func TestParseAddr(t *testing.T) {
	for _, c := range []struct {
		name     string
		s        string
		isIP     bool
		expected string
	}{
		{"IPv4", ip4addrString, true, ip4addrString},
		{"IPv4in6", ip4in6addrString, true, ip4in6addrString},
		{"IPv6", ip6addrString, true, ip6addrString},
		{"Domain", domainString, false, domainString},
		{"EmptyHost", ":12353", true, "[::]:12353"},
	} {
		t.Run(c.name, func(t *testing.T) {
			addr, err := ParseAddr(c.s)
			if err != nil {
				t.Fatalf("ParseAddr(%q) failed: %v", c.s, err)
			}
			if !addr.IsValid() {
				t.Fatal("addr.IsValid() = false")
			}
			if addr.IsDomain() == c.isIP {
				t.Errorf("addr.IsDomain() = %v, want %v", addr.IsDomain(), !c.isIP)
			}
			if addr.Port() != 12353 {
				t.Errorf("addr.Port() = %d, want 12353", addr.Port())
			}
			if s := addr.String(); s != c.expected {
				t.Errorf("addr.String() = %q, want %q", s, c.expected)
			}
		})
	}
}

func TestParseAddrErrors(t *testing.T) {
	for _, s := range []string{
		"",
		"127.0.0.1",
		"127.0.0.1:65536",
		"127.0.0.1:port",
	} {
		if _, err := ParseAddr(s); err == nil {
			t.Errorf("ParseAddr(%q) did not return an error", s)
		}
	}
}

func TestAddrResolveIPPort(t *testing.T) {
	addr := AddrFromIPPort(ip6addrPort)
	addrPort, err := addr.ResolveIPPort(t.Context(), "ip")
	if err != nil {
		t.Fatal(err)
	}
	if addrPort != ip6addrPort {
		t.Errorf("addr.ResolveIPPort() = %v, want %v", addrPort, ip6addrPort)
	}

	if _, err = (Addr{}).ResolveIPPort(t.Context(), "ip"); err == nil {
		t.Error("zero value Addr resolved without error")
	}
}

func TestAddrJSON(t *testing.T) {
	type config struct {
		Peer Addr `json:"peer"`
	}

	var c config
	if err := json.Unmarshal([]byte(`{"peer":"`+domainString+`"}`), &c); err != nil {
		t.Fatal(err)
	}
	if !c.Peer.IsDomain() || c.Peer.Domain() != "peer.example.com" {
		t.Errorf("c.Peer = %v, want %s", c.Peer, domainString)
	}

	b, err := json.Marshal(config{Peer: AddrFromIPPort(ip4addrPort)})
	if err != nil {
		t.Fatal(err)
	}
	if expected := `{"peer":"` + ip4addrString + `"}`; string(b) != expected {
		t.Errorf("json.Marshal() = %s, want %s", b, expected)
	}
}

func TestAddrComparable(t *testing.T) {
	a := MustParseAddr(ip4addrString)
	if a != AddrFromIPPort(ip4addrPort) {
		t.Errorf("%v != %v", a, ip4addrPort)
	}
	if a == AddrFromIPPort(ip6addrPort) {
		t.Errorf("%v == %v", a, ip6addrPort)
	}
}

func TestAddrPortMappedEqual(t *testing.T) {
	if !AddrPortMappedEqual(ip4addrPort, ip4addrPort) {
		t.Errorf("AddrPortMappedEqual(%v, %v) = false, want true", ip4addrPort, ip4addrPort)
	}
	if !AddrPortMappedEqual(ip4addrPort, ip4in6addrPort) {
		t.Errorf("AddrPortMappedEqual(%v, %v) = false, want true", ip4addrPort, ip4in6addrPort)
	}
	if !AddrPortMappedEqual(ip4in6addrPort, ip4addrPort) {
		t.Errorf("AddrPortMappedEqual(%v, %v) = false, want true", ip4in6addrPort, ip4addrPort)
	}
	if AddrPortMappedEqual(ip4addrPort, ip6addrPort) {
		t.Errorf("AddrPortMappedEqual(%v, %v) = true, want false", ip4addrPort, ip6addrPort)
	}
	if AddrPortMappedEqual(ip4addrPort, netip.AddrPortFrom(ip4addr, 1)) {
		t.Error("AddrPortMappedEqual ignored the port")
	}
}
