package ethereum

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// transferValue is a legacy transaction, unsigned until signed is set.
// Values built from bundles carry only a hash.
type transferValue struct {
	chainID  *big.Int
	unsigned *types.LegacyTx
	signed   *types.Transaction
	hash     common.Hash
	hasHash  bool
}

func (v *transferValue) Tag() walletkit.Tag { return Tag }
func (v *transferValue) Signed() bool       { return v.signed != nil }

func (v *transferValue) Hash() (walletkit.Hash, bool) {
	if !v.hasHash {
		return walletkit.Hash{}, false
	}
	return walletkit.NewHash(Tag, v.hash.Bytes()), true
}

func (v *transferValue) Identifier() string {
	if !v.hasHash {
		return ""
	}
	return v.hash.Hex()
}

func (v *transferValue) SetHash(h walletkit.Hash) error {
	if h.Len() != common.HashLength {
		return fmt.Errorf("%w: %d-byte hash", walletkit.ErrInvalidHash, h.Len())
	}
	v.hash, v.hasHash = common.BytesToHash(h.Bytes()), true
	return nil
}

// Transaction returns the signed transaction, or the unsigned one.
func (v *transferValue) Transaction() *types.Transaction {
	switch {
	case v.signed != nil:
		return v.signed
	case v.unsigned != nil:
		return types.NewTx(v.unsigned)
	}
	return nil
}

func (v *transferValue) SerializeForSubmission() ([]byte, error) {
	if v.signed == nil {
		return nil, walletkit.ErrNotSigned
	}
	return v.signed.MarshalBinary()
}

func (v *transferValue) SerializeForFeeEstimation() ([]byte, error) {
	t := v.Transaction()
	if t == nil {
		return nil, fmt.Errorf("%w: transaction %s not held", walletkit.ErrUnsupported, v.Identifier())
	}
	return t.MarshalBinary()
}

func (v *transferValue) Equal(o walletkit.TransferValue) bool {
	other, ok := o.(*transferValue)
	if !ok {
		return false
	}
	if v.hasHash && other.hasHash {
		return v.hash == other.hash
	}
	return v == other
}

func (v *transferValue) sign(prv *ecdsa.PrivateKey, nonce uint64) error {
	inner := *v.unsigned
	inner.Nonce = nonce
	signed, err := types.SignTx(types.NewTx(&inner), types.NewEIP155Signer(v.chainID), prv)
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	v.unsigned = &inner
	v.signed = signed
	v.hash, v.hasHash = signed.Hash(), true
	return nil
}

type transferHandlers struct{}

func (transferHandlers) FromBundle(_ *walletkit.Network, b *walletkit.TransferBundle) (walletkit.TransferValue, error) {
	raw, err := hexutil.Decode(b.Hash)
	if err != nil || len(raw) != common.HashLength {
		return nil, fmt.Errorf("%w: %q", walletkit.ErrInvalidHash, b.Hash)
	}
	return &transferValue{hash: common.BytesToHash(raw), hasHash: true}, nil
}

func (transferHandlers) MatchByTarget() bool { return false }
