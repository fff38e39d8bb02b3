// Package packet contains types and methods that obfuscate tunnel packets.
package packet

import (
	"errors"
	"fmt"
)

const (
	// ModePlain forwards packets as is.
	ModePlain = "plain"

	// ModeXOR XORs packets with a repeating key.
	ModeXOR = "xor"
)

// ErrEmptyKey is returned when an obfuscating mode is requested with an empty key.
var ErrEmptyKey = errors.New("obfuscation key must not be empty")

// Handler obfuscates packets read from the TUN device before they are sent
// to the peer, and reverses the obfuscation on packets received from the peer.
//
// Handlers never change the length of a packet. Implementations are safe for
// concurrent use by the uplink and downlink pumps.
type Handler interface {
	// Mode returns the name of the obfuscation mode.
	Mode() string

	// Encrypt obfuscates the packet in place and returns it.
	Encrypt(b []byte) []byte

	// Decrypt reverses Encrypt in place and returns the packet.
	Decrypt(b []byte) []byte
}

// NewHandler returns a handler for the given mode.
//
// The key is copied. It is ignored in plain mode.
func NewHandler(mode string, key []byte) (Handler, error) {
	switch mode {
	case "", ModePlain:
		return plainHandler{}, nil
	case ModeXOR:
		return NewXORHandler(key)
	default:
		return nil, fmt.Errorf("unknown obfuscation mode: %q", mode)
	}
}
