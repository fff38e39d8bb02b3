package packet

// plainHandler forwards packets untouched.
//
// plainHandler implements the Handler interface.
type plainHandler struct{}

// Mode implements the Handler Mode method.
func (plainHandler) Mode() string {
	return ModePlain
}

// Encrypt implements the Handler Encrypt method.
func (plainHandler) Encrypt(b []byte) []byte {
	return b
}

// Decrypt implements the Handler Decrypt method.
func (plainHandler) Decrypt(b []byte) []byte {
	return b
}
