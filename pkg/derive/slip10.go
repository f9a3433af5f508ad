package derive

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
)

var slip10Curve = []byte("ed25519 seed")

// Ed25519Key is a SLIP-10 ed25519 node. Only hardened derivation exists on
// this curve.
type Ed25519Key struct {
	key       [32]byte
	chainCode [32]byte
	depth     uint8
}

// NewEd25519MasterKey creates the SLIP-10 master node for seed.
func NewEd25519MasterKey(seed []byte) (*Ed25519Key, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	mac := hmac.New(sha512.New, slip10Curve)
	mac.Write(seed)
	sum := mac.Sum(nil)
	k := &Ed25519Key{}
	copy(k.key[:], sum[:32])
	copy(k.chainCode[:], sum[32:])
	clear(sum)
	return k, nil
}

// DeriveChild derives a hardened child. index must include Hardened.
func (k *Ed25519Key) DeriveChild(index uint32) (*Ed25519Key, error) {
	if index < Hardened {
		return nil, fmt.Errorf("derive child %d: ed25519 supports hardened derivation only", index)
	}
	var data [37]byte
	copy(data[1:33], k.key[:])
	binary.BigEndian.PutUint32(data[33:], index)

	mac := hmac.New(sha512.New, k.chainCode[:])
	mac.Write(data[:])
	sum := mac.Sum(nil)
	child := &Ed25519Key{depth: k.depth + 1}
	copy(child.key[:], sum[:32])
	copy(child.chainCode[:], sum[32:])
	clear(sum)
	clear(data[:])
	return child, nil
}

// DerivePath derives a key along a sequence of hardened indices.
func (k *Ed25519Key) DerivePath(indices ...uint32) (*Ed25519Key, error) {
	current := k
	for _, idx := range indices {
		child, err := current.DeriveChild(idx)
		if err != nil {
			return nil, err
		}
		if current != k {
			current.Zero()
		}
		current = child
	}
	return current, nil
}

// DeriveEd25519 derives the node at path from seed.
func DeriveEd25519(seed []byte, path ...uint32) (*Ed25519Key, error) {
	master, err := NewEd25519MasterKey(seed)
	if err != nil {
		return nil, err
	}
	defer master.Zero()
	return master.DerivePath(path...)
}

func (k *Ed25519Key) Depth() uint8 { return k.depth }

// Seed returns the 32-byte ed25519 private seed.
func (k *Ed25519Key) Seed() []byte { return append([]byte(nil), k.key[:]...) }

func (k *Ed25519Key) ChainCode() []byte { return append([]byte(nil), k.chainCode[:]...) }

// PrivateKey expands the node into an ed25519 signing key.
func (k *Ed25519Key) PrivateKey() ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(k.key[:])
}

// PublicKey returns the 32-byte ed25519 public key.
func (k *Ed25519Key) PublicKey() ed25519.PublicKey {
	priv := k.PrivateKey()
	pub := append(ed25519.PublicKey(nil), priv.Public().(ed25519.PublicKey)...)
	clear(priv)
	return pub
}

// Zero clears the key material.
func (k *Ed25519Key) Zero() {
	clear(k.key[:])
	clear(k.chainCode[:])
}
