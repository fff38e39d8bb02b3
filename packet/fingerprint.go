package packet

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// fingerprintDomain separates key fingerprints from any other use of the key.
const fingerprintDomain = "xvpn key fingerprint"

// KeyFingerprint returns a short hex string identifying the key.
// Both ends of a tunnel log it on startup, so a key mismatch can be spotted
// without writing the key itself to the logs.
//
// An empty key has an empty fingerprint.
func KeyFingerprint(key []byte) string {
	if len(key) == 0 {
		return ""
	}
	h, err := blake2b.New256(key)
	if err != nil {
		// Keys longer than 64 bytes are not valid BLAKE2b MAC keys. Hash them instead.
		sum := blake2b.Sum256(append([]byte(fingerprintDomain), key...))
		return hex.EncodeToString(sum[:8])
	}
	h.Write([]byte(fingerprintDomain))
	return hex.EncodeToString(h.Sum(nil)[:8])
}
