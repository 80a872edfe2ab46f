package common

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// Used to drop passwords and raw keys from memory after use.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
