// Package types defines the primitive values of the Klingnet ledger as the
// wallet sees them: addresses, hashes, outpoints and output scripts.
package types

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// HashSize is the length of a hash in bytes.
const HashSize = 32

// Hash is a transaction id or any other 256-bit digest. It marshals as
// bare hex.
type Hash [HashSize]byte

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// UnmarshalText accepts 64 hex digits, or nothing for the zero hash.
func (h *Hash) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*h = Hash{}
		return nil
	}
	parsed, err := HexToHash(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// HexToHash parses 64 hex digits.
func HexToHash(s string) (Hash, error) {
	var h Hash
	if len(s) != 2*HashSize {
		return h, fmt.Errorf("hash must be %d hex digits, got %d", 2*HashSize, len(s))
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	return h, nil
}

// TokenID names a token. It is the hash of the outpoint that issued it.
type TokenID Hash

func (t TokenID) String() string { return Hash(t).String() }

func (t TokenID) MarshalText() ([]byte, error) { return Hash(t).MarshalText() }

func (t *TokenID) UnmarshalText(b []byte) error { return (*Hash)(t).UnmarshalText(b) }

// TokenData is a token balance carried by an output next to its coins.
// The wallet relays it but never creates one.
type TokenData struct {
	ID     TokenID `json:"id"`
	Amount uint64  `json:"amount"`
}

// Outpoint names one output of a transaction.
type Outpoint struct {
	TxID  Hash   `json:"txid"`
	Index uint32 `json:"index"`
}

// IsZero reports whether o is the null outpoint coinbase inputs spend.
func (o Outpoint) IsZero() bool { return o == Outpoint{} }

// String formats o as "txid:index".
func (o Outpoint) String() string {
	return o.TxID.String() + ":" + strconv.FormatUint(uint64(o.Index), 10)
}

// ParseOutpoint is the inverse of Outpoint.String.
func ParseOutpoint(s string) (Outpoint, error) {
	txid, idx, ok := strings.Cut(s, ":")
	if !ok {
		return Outpoint{}, fmt.Errorf("outpoint %q: missing index", s)
	}
	h, err := HexToHash(txid)
	if err != nil {
		return Outpoint{}, fmt.Errorf("outpoint %q: %w", s, err)
	}
	n, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return Outpoint{}, fmt.Errorf("outpoint %q: %w", s, err)
	}
	return Outpoint{TxID: h, Index: uint32(n)}, nil
}
