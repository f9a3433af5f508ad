package klingnet

import (
	"fmt"
	"strings"

	"github.com/Klingon-tech/walletkit/pkg/tx"
	"github.com/Klingon-tech/walletkit/pkg/types"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// transferValue is a Klingnet transaction. Transactions reported only by
// hash (from a transfer bundle) have a nil tx.
type transferValue struct {
	tx     *tx.Transaction
	hash   types.Hash
	signed bool
	// spends maps each input to the account address that owns it.
	spends map[types.Outpoint]types.Address
}

func newTransferValue(t *tx.Transaction, spends map[types.Outpoint]types.Address) *transferValue {
	return &transferValue{tx: t, hash: t.Hash(), signed: t.IsSigned(), spends: spends}
}

func (v *transferValue) Tag() walletkit.Tag { return Tag }
func (v *transferValue) Signed() bool       { return v.signed }
func (v *transferValue) Identifier() string { return v.hash.String() }

// Hash is known from creation: transaction ids do not cover signatures.
func (v *transferValue) Hash() (walletkit.Hash, bool) {
	return walletkit.NewHash(Tag, v.hash[:]), true
}

// Transaction returns a copy of the transaction, or nil when only the hash
// is known.
func (v *transferValue) Transaction() *tx.Transaction {
	if v.tx == nil {
		return nil
	}
	return v.tx.Clone()
}

func (v *transferValue) SerializeForSubmission() ([]byte, error) {
	if v.tx == nil {
		return nil, fmt.Errorf("%w: transaction %s not held", walletkit.ErrUnsupported, v.hash)
	}
	if !v.signed {
		return nil, walletkit.ErrNotSigned
	}
	return v.tx.Marshal()
}

func (v *transferValue) SerializeForFeeEstimation() ([]byte, error) {
	if v.tx == nil {
		return nil, fmt.Errorf("%w: transaction %s not held", walletkit.ErrUnsupported, v.hash)
	}
	return v.tx.Marshal()
}

func (v *transferValue) Equal(o walletkit.TransferValue) bool {
	other, ok := o.(*transferValue)
	return ok && v.hash == other.hash
}

type transferHandlers struct{}

func (transferHandlers) FromBundle(_ *walletkit.Network, b *walletkit.TransferBundle) (walletkit.TransferValue, error) {
	h, err := types.HexToHash(strings.TrimPrefix(b.Hash, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", walletkit.ErrInvalidHash, err)
	}
	return &transferValue{hash: h, signed: true}, nil
}

// One transaction is one transfer.
func (transferHandlers) MatchByTarget() bool { return false }
