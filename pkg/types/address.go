package types

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// AddressSize is the length of an address in bytes.
const AddressSize = 20

// Human-readable parts of mainnet and testnet addresses.
const (
	MainnetHRP = "kgx"
	TestnetHRP = "tkgx"
)

// ErrWrongHRP is returned when an address belongs to another network.
var ErrWrongHRP = errors.New("address for another network")

// Address is the hash of the public key that may spend an output.
type Address [AddressSize]byte

func (a Address) IsZero() bool { return a == Address{} }

// Encode returns the bech32 form of a under hrp.
func (a Address) Encode(hrp string) string {
	s, err := EncodeBech32(hrp, a[:])
	if err != nil {
		// Only an invalid hrp fails.
		return hrp + ":" + hex.EncodeToString(a[:])
	}
	return s
}

// String is the mainnet encoding.
func (a Address) String() string { return a.Encode(MainnetHRP) }

// Bytes returns a copy of the address.
func (a Address) Bytes() []byte { return append([]byte(nil), a[:]...) }

// ParseAddress decodes a bech32 address and checks its hrp.
func ParseAddress(s, hrp string) (Address, error) {
	var a Address
	got, data, err := DecodeBech32(s)
	if err != nil {
		return a, fmt.Errorf("invalid address: %w", err)
	}
	if len(data) != AddressSize {
		return a, fmt.Errorf("invalid address: %d byte payload, want %d", len(data), AddressSize)
	}
	if got != hrp {
		return a, fmt.Errorf("%w: hrp %q, want %q", ErrWrongHRP, got, hrp)
	}
	copy(a[:], data)
	return a, nil
}
