package tezos

import (
	"bytes"
	"crypto/sha256"
	"errors"

	"github.com/mr-tron/base58"
)

// Base58check prefixes.
var (
	prefixTZ1       = []byte{6, 161, 159}
	prefixTZ2       = []byte{6, 161, 161}
	prefixTZ3       = []byte{6, 161, 164}
	prefixKT1       = []byte{2, 90, 121}
	prefixOperation = []byte{5, 116}
	prefixBlock     = []byte{1, 52}
)

var errChecksum = errors.New("base58check: bad checksum")

func checksum(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:4]
}

func encodeCheck(prefix, payload []byte) string {
	b := make([]byte, 0, len(prefix)+len(payload)+4)
	b = append(b, prefix...)
	b = append(b, payload...)
	return base58.Encode(append(b, checksum(b)...))
}

// decodeCheck decodes s and strips prefix. The payload must be size bytes.
func decodeCheck(s string, prefix []byte, size int) ([]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != len(prefix)+size+4 {
		return nil, errors.New("base58check: bad length")
	}
	body, sum := raw[:len(raw)-4], raw[len(raw)-4:]
	if !bytes.Equal(checksum(body), sum) {
		return nil, errChecksum
	}
	if !bytes.HasPrefix(body, prefix) {
		return nil, errors.New("base58check: bad prefix")
	}
	return body[len(prefix):], nil
}
