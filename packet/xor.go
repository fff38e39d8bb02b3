package packet

// XOR sets dst[i] = src[i] ^ key[i%len(key)] for every byte of src and returns dst[:len(src)].
//
// dst must be at least as long as src. dst and src may be the same slice.
// XOR panics if key is empty.
func XOR(dst, src, key []byte) []byte {
	if len(key) == 0 {
		panic("packet: XOR with empty key")
	}
	dst = dst[:len(src)]

	// Whole key-length chunks first, so the inner loop has no modulo.
	var i int
	for ; i+len(key) <= len(src); i += len(key) {
		d := dst[i : i+len(key)]
		s := src[i : i+len(key)]
		for j := range key {
			d[j] = s[j] ^ key[j]
		}
	}
	for j := 0; i < len(src); i, j = i+1, j+1 {
		dst[i] = src[i] ^ key[j]
	}
	return dst
}

// xorHandler obfuscates packets by XORing them with a repeating key.
// The key restarts at offset 0 for every packet.
//
// xorHandler implements the Handler interface.
type xorHandler struct {
	key []byte
}

// NewXORHandler creates a handler that XORs packets with the given key.
// The key is copied and never modified afterwards.
func NewXORHandler(key []byte) (Handler, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	return &xorHandler{
		key: append([]byte(nil), key...),
	}, nil
}

// Mode implements the Handler Mode method.
func (h *xorHandler) Mode() string {
	return ModeXOR
}

// Encrypt implements the Handler Encrypt method.
func (h *xorHandler) Encrypt(b []byte) []byte {
	return XOR(b, b, h.key)
}

// Decrypt implements the Handler Decrypt method.
func (h *xorHandler) Decrypt(b []byte) []byte {
	return XOR(b, b, h.key)
}
