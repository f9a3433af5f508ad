// Package derive implements hierarchical key derivation for the supported
// ledgers: BIP-32 over secp256k1 and SLIP-10 over ed25519.
package derive

import (
	"bytes"
	"fmt"

	"github.com/tyler-smith/go-bip32"
)

// Hardened marks a hardened child index.
const Hardened = bip32.FirstHardenedChild

// BIP-44 purpose and the coin types used by the ledger plugins.
const (
	PurposeBIP44 = Hardened + 44

	CoinTypeEthereum = Hardened + 60
	CoinTypeTezos    = Hardened + 1729
	CoinTypeHedera   = Hardened + 3030
	CoinTypeKlingnet = Hardened + 8888

	// ChangeExternal is for receiving addresses.
	ChangeExternal = 0
	// ChangeInternal is for change addresses.
	ChangeInternal = 1
)

// SerializedHDKeySize is the length of Serialize output: the 78-byte
// extended key plus a 4-byte checksum.
const SerializedHDKeySize = 82

// HDKey is a BIP-32 extended key.
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates a master HD key from a 64-byte seed.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// DeserializeHDKey parses Serialize output.
func DeserializeHDKey(data []byte) (*HDKey, error) {
	if len(data) != SerializedHDKeySize {
		return nil, fmt.Errorf("extended key must be %d bytes, got %d", SerializedHDKeySize, len(data))
	}
	k, err := bip32.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("deserialize extended key: %w", err)
	}
	return &HDKey{key: k}, nil
}

// DeriveChild derives a child key at the given index.
// For hardened derivation, add Hardened to the index.
func (k *HDKey) DeriveChild(index uint32) (*HDKey, error) {
	child, err := k.key.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive child %d: %w", index, err)
	}
	return &HDKey{key: child}, nil
}

// DerivePath derives a key along a sequence of indices.
func (k *HDKey) DerivePath(indices ...uint32) (*HDKey, error) {
	current := k
	for _, idx := range indices {
		child, err := current.DeriveChild(idx)
		if err != nil {
			return nil, err
		}
		current = child
	}
	return current, nil
}

// PrivateKeyBytes returns the raw 32-byte private key.
// Returns nil if this is a public-only key.
func (k *HDKey) PrivateKeyBytes() []byte {
	if !k.key.IsPrivate {
		return nil
	}
	raw := k.key.Key
	if len(raw) == 33 && raw[0] == 0 {
		return raw[1:]
	}
	return raw
}

// PublicKeyBytes returns the compressed 33-byte public key.
func (k *HDKey) PublicKeyBytes() []byte {
	return k.key.PublicKey().Key
}

func (k *HDKey) IsPrivate() bool { return k.key.IsPrivate }

// Depth returns the derivation depth (0 for master).
func (k *HDKey) Depth() uint8 { return k.key.Depth }

// Neuter returns a public-key-only copy (for watch-only wallets). The copy
// shares no memory with k, so zeroing k leaves it intact.
func (k *HDKey) Neuter() *HDKey {
	pub := k.key.PublicKey()
	pub.Key = bytes.Clone(pub.Key)
	pub.ChainCode = bytes.Clone(pub.ChainCode)
	pub.FingerPrint = bytes.Clone(pub.FingerPrint)
	pub.ChildNumber = bytes.Clone(pub.ChildNumber)
	return &HDKey{key: pub}
}

// Serialize returns the 82-byte checksummed extended key.
func (k *HDKey) Serialize() ([]byte, error) {
	return k.key.Serialize()
}

// Zero clears private key material. The key is unusable afterwards.
func (k *HDKey) Zero() {
	if k.key.IsPrivate {
		clear(k.key.Key)
	}
	clear(k.key.ChainCode)
}

// DeriveFromSeed derives path from a seed. Every intermediate node is
// zeroed; the caller zeroes the result.
func DeriveFromSeed(seed []byte, path ...uint32) (*HDKey, error) {
	node, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	for _, idx := range path {
		child, err := node.DeriveChild(idx)
		node.Zero()
		if err != nil {
			return nil, err
		}
		node = child
	}
	return node, nil
}
