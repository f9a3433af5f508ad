package hedera

import (
	"bytes"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// transactionID is the ledger's textual transaction id.
func transactionID(payer address, validStart time.Time) string {
	return fmt.Sprintf("%s-%d-%09d", payer, validStart.Unix(), validStart.Nanosecond())
}

// transferValue is a crypto transfer. Values from bundles carry only the
// hash and transaction id.
type transferValue struct {
	body       []byte
	identifier string
	signedTx   []byte
	hash       []byte
}

func (v *transferValue) Tag() walletkit.Tag { return Tag }
func (v *transferValue) Identifier() string { return v.identifier }
func (v *transferValue) Signed() bool       { return v.signedTx != nil }

func (v *transferValue) Hash() (walletkit.Hash, bool) {
	if v.hash == nil {
		return walletkit.Hash{}, false
	}
	return walletkit.NewHash(Tag, v.hash), true
}

func (v *transferValue) sign(pub, sig []byte) {
	v.signedTx = signedTransaction(v.body, pub, sig)
	sum := sha512.Sum384(v.signedTx)
	v.hash = sum[:]
}

func (v *transferValue) SerializeForSubmission() ([]byte, error) {
	if v.signedTx == nil {
		return nil, walletkit.ErrNotSigned
	}
	return transaction(v.signedTx), nil
}

func (v *transferValue) SerializeForFeeEstimation() ([]byte, error) {
	if v.body == nil {
		return nil, fmt.Errorf("%w: transaction %s not held", walletkit.ErrUnsupported, v.identifier)
	}
	return transaction(signedTransaction(v.body, nil, nil)), nil
}

func (v *transferValue) Equal(o walletkit.TransferValue) bool {
	other, ok := o.(*transferValue)
	switch {
	case !ok:
		return false
	case v.hash != nil && other.hash != nil:
		return bytes.Equal(v.hash, other.hash)
	case v.identifier != "" && other.identifier != "":
		return v.identifier == other.identifier
	}
	return v == other
}

type transferHandlers struct{}

func (transferHandlers) FromBundle(_ *walletkit.Network, b *walletkit.TransferBundle) (walletkit.TransferValue, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(b.Hash, "0x"))
	if err != nil || len(raw) != sha512.Size384 {
		return nil, fmt.Errorf("%w: %q", walletkit.ErrInvalidHash, b.Hash)
	}
	return &transferValue{hash: raw, identifier: b.Identifier}, nil
}

// One transaction moves value to several accounts (the target, the node
// and the fee collector), each reported as its own transfer.
func (transferHandlers) MatchByTarget() bool { return true }
