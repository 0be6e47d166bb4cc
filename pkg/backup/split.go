package backup

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/forest6511/credvault/pkg/envelope"
)

// Parts is the number of fragments a backup is split into.
const Parts = 3

// Split partitions s into Parts contiguous substrings. Every part but the
// last is len(s)/Parts long; the last absorbs the remainder.
func Split(s string) [Parts]string {
	n := len(s) / Parts
	var parts [Parts]string
	for i := 0; i < Parts-1; i++ {
		parts[i] = s[i*n : (i+1)*n]
	}
	parts[Parts-1] = s[(Parts-1)*n:]
	return parts
}

// Encode returns the base64 (standard, padded) encoding of a serialized
// envelope, the string that Split partitions.
func Encode(envelopeJSON []byte) string {
	return base64.StdEncoding.EncodeToString(envelopeJSON)
}

// Concat joins fragments in order.
func Concat(parts [Parts]string) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p)
	}
	return b.String()
}

// Join concatenates the fragments, base64-decodes the result and parses it
// as an envelope. It does not decrypt; pass the envelope to
// envelope.Cipher.Decrypt with the manifest password.
func Join(parts [Parts]string) (*envelope.Envelope, error) {
	data, err := base64.StdEncoding.DecodeString(Concat(parts))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return envelope.Unmarshal(data)
}
