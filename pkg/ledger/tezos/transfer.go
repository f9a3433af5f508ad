package tezos

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// transferValue is a forged operation group. Values from bundles carry
// only the operation hash. counter is the last account counter the group
// consumes, zero when unknown.
type transferValue struct {
	forged  []byte
	signed  []byte
	hash    []byte
	counter uint64
}

func (v *transferValue) Tag() walletkit.Tag { return Tag }
func (v *transferValue) Signed() bool       { return v.signed != nil }

func (v *transferValue) Hash() (walletkit.Hash, bool) {
	if v.hash == nil {
		return walletkit.Hash{}, false
	}
	return walletkit.NewHash(Tag, v.hash), true
}

// Identifier is the base58 operation hash once signed.
func (v *transferValue) Identifier() string {
	if v.hash == nil {
		return ""
	}
	return encodeCheck(prefixOperation, v.hash)
}

func (v *transferValue) sign(sig []byte) {
	v.signed = append(bytes.Clone(v.forged), sig...)
	sum := blake2b.Sum256(v.signed)
	v.hash = sum[:]
}

func (v *transferValue) SerializeForSubmission() ([]byte, error) {
	if v.signed == nil {
		return nil, walletkit.ErrNotSigned
	}
	return bytes.Clone(v.signed), nil
}

// SerializeForFeeEstimation pads the forged group with an empty signature.
func (v *transferValue) SerializeForFeeEstimation() ([]byte, error) {
	if v.forged == nil {
		return nil, fmt.Errorf("%w: operation %s not held", walletkit.ErrUnsupported, v.Identifier())
	}
	return append(bytes.Clone(v.forged), make([]byte, ed25519.SignatureSize)...), nil
}

func (v *transferValue) Equal(o walletkit.TransferValue) bool {
	other, ok := o.(*transferValue)
	if !ok {
		return false
	}
	if v.hash != nil && other.hash != nil {
		return bytes.Equal(v.hash, other.hash)
	}
	return v == other
}

type transferHandlers struct{}

func (transferHandlers) FromBundle(_ *walletkit.Network, b *walletkit.TransferBundle) (walletkit.TransferValue, error) {
	h, err := decodeCheck(b.Hash, prefixOperation, blake2b.Size256)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", walletkit.ErrInvalidHash, b.Hash, err)
	}
	return &transferValue{hash: h}, nil
}

// A reveal and a transaction share one operation hash.
func (transferHandlers) MatchByTarget() bool { return true }
