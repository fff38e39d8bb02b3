package tundev

import (
	"encoding/json"
	"errors"
	"net/netip"
	"strings"
	"testing"
)

func TestConfigCheckAndApplyDefaults(t *testing.T) {
	var c Config
	if err := c.CheckAndApplyDefaults(); err != nil {
		t.Fatal(err)
	}
	if c.Name != DefaultName {
		t.Errorf("c.Name = %q, want %q", c.Name, DefaultName)
	}
	if c.MTU != DefaultMTU {
		t.Errorf("c.MTU = %d, want %d", c.MTU, DefaultMTU)
	}
	if prefixes := c.prefixes(); len(prefixes) != 0 {
		t.Errorf("c.prefixes() = %v, want none", prefixes)
	}
}

func TestConfigCheckAndApplyDefaultsErrors(t *testing.T) {
	for _, c := range []struct {
		name   string
		config Config
	}{
		{"MTUTooSmall", Config{MTU: 576}},
		{"MTUTooLarge", Config{MTU: 65536}},
		{"IPv6InIPv4", Config{IPv4: netip.MustParsePrefix("fced:9999:9999::1/64")}},
		{"IPv4InIPv6", Config{IPv6: netip.MustParsePrefix("172.16.0.1/24")}},
	} {
		t.Run(c.name, func(t *testing.T) {
			if err := c.config.CheckAndApplyDefaults(); err == nil {
				t.Error("CheckAndApplyDefaults() did not return an error")
			}
		})
	}
}

func TestConfigJSON(t *testing.T) {
	const s = `{"name":"gw0","mtu":1400,"ipv4":"172.16.0.1/24","ipv6":"fced:9999:9999::1/64"}`

	var c Config
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		t.Fatal(err)
	}
	if err := c.CheckAndApplyDefaults(); err != nil {
		t.Fatal(err)
	}

	prefixes := c.prefixes()
	expected := []netip.Prefix{
		netip.MustParsePrefix("172.16.0.1/24"),
		netip.MustParsePrefix("fced:9999:9999::1/64"),
	}
	if len(prefixes) != len(expected) {
		t.Fatalf("c.prefixes() = %v, want %v", prefixes, expected)
	}
	for i := range expected {
		if prefixes[i] != expected[i] {
			t.Errorf("prefixes[%d] = %v, want %v", i, prefixes[i], expected[i])
		}
	}
}

func TestDeviceError(t *testing.T) {
	err := error(&DeviceError{Op: "read", Name: "gw0", Err: ErrDeviceClosed})
	if !errors.Is(err, ErrDeviceClosed) {
		t.Error("errors.Is(err, ErrDeviceClosed) = false")
	}
	var de *DeviceError
	if !errors.As(err, &de) || de.Op != "read" {
		t.Errorf("errors.As(err, *DeviceError) failed: %v", err)
	}
	if s := err.Error(); !strings.Contains(s, "gw0") || !strings.Contains(s, "read") {
		t.Errorf("err.Error() = %q, want device name and op", s)
	}
}
