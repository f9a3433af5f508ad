// Package crypto holds the Klingnet keys the wallet signs with. Hashes are
// BLAKE3-256 and signatures are BIP-340 style Schnorr over secp256k1.
package crypto

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
	"github.com/zeebo/blake3"

	"github.com/Klingon-tech/walletkit/pkg/types"
)

// Hash returns the BLAKE3-256 digest of the concatenated parts.
func Hash(parts ...[]byte) types.Hash {
	h := blake3.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// AddressFromPubKey returns the first 20 bytes of the digest of a
// compressed public key.
func AddressFromPubKey(pubKey []byte) types.Address {
	var a types.Address
	d := Hash(pubKey)
	copy(a[:], d[:])
	return a
}

// PrivateKey is a spending key of one wallet address.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PrivateKeyFromBytes wraps a 32-byte scalar.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != secp256k1.PrivKeyBytesLen {
		return nil, fmt.Errorf("private key is %d bytes, want %d", len(b), secp256k1.PrivKeyBytesLen)
	}
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(b)}, nil
}

// Sign signs a transaction digest.
func (k *PrivateKey) Sign(digest types.Hash) ([]byte, error) {
	sig, err := schnorr.Sign(k.key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("schnorr: %w", err)
	}
	return sig.Serialize(), nil
}

// PublicKey returns the 33-byte compressed public key.
func (k *PrivateKey) PublicKey() []byte {
	return k.key.PubKey().SerializeCompressed()
}

// Address returns the address the key spends from.
func (k *PrivateKey) Address() types.Address {
	return AddressFromPubKey(k.PublicKey())
}

// Bytes returns the scalar.
func (k *PrivateKey) Bytes() []byte {
	return k.key.Serialize()
}

// Zero wipes the scalar.
func (k *PrivateKey) Zero() {
	k.key.Zero()
}

// Verify reports whether sig is pubKey's signature of digest. Malformed
// keys and signatures never verify.
func Verify(digest types.Hash, sig, pubKey []byte) bool {
	pub, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	s, err := schnorr.ParseSignature(sig)
	if err != nil {
		return false
	}
	return s.Verify(digest[:], pub)
}
