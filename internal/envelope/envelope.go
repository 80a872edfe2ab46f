// Package envelope serialises an encrypted payload together with the salt
// and IV needed to decrypt it:
//
//	[saltLen u32 LE][salt][ivLen u32 LE][iv][ciphertext...]
//
// The ciphertext has no length prefix and runs to the end of the buffer.
package envelope

import (
	"encoding/binary"
	"fmt"

	"github.com/dmitrijs2005/gophshare/internal/common"
)

const lenPrefixSize = 4

// Envelope is the unpacked form of a stored blob.
type Envelope struct {
	Salt       []byte
	IV         []byte
	Ciphertext []byte
}

// HeaderSize is the number of bytes that precede the ciphertext.
func HeaderSize(saltLen, ivLen int) int {
	return 2*lenPrefixSize + saltLen + ivLen
}

// Pack concatenates the three parts into a fresh buffer.
func Pack(ciphertext, iv, salt []byte) []byte {
	out := make([]byte, 0, HeaderSize(len(salt), len(iv))+len(ciphertext))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(salt)))
	out = append(out, salt...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(iv)))
	out = append(out, iv...)
	out = append(out, ciphertext...)
	return out
}

// Pack is a convenience wrapper around the package level Pack.
func (e *Envelope) Pack() []byte {
	return Pack(e.Ciphertext, e.IV, e.Salt)
}

// Unpack splits b. It never reads past the end of b and returns
// common.ErrMalformedEnvelope when a length prefix is missing or points
// beyond the buffer. The returned slices are copies.
func Unpack(b []byte) (*Envelope, error) {
	salt, rest, err := readChunk(b, "salt")
	if err != nil {
		return nil, err
	}
	iv, rest, err := readChunk(rest, "iv")
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Salt:       salt,
		IV:         iv,
		Ciphertext: append([]byte{}, rest...),
	}, nil
}

func readChunk(b []byte, name string) (chunk, rest []byte, err error) {
	if len(b) < lenPrefixSize {
		return nil, nil, fmt.Errorf("%w: truncated %s length", common.ErrMalformedEnvelope, name)
	}
	n := uint64(binary.LittleEndian.Uint32(b))
	b = b[lenPrefixSize:]
	if n > uint64(len(b)) {
		return nil, nil, fmt.Errorf("%w: %s length %d exceeds remaining %d bytes",
			common.ErrMalformedEnvelope, name, n, len(b))
	}
	chunk = append([]byte{}, b[:n]...)
	return chunk, b[n:], nil
}
