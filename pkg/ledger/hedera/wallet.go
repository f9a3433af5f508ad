package hedera

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"github.com/Klingon-tech/walletkit/pkg/amount"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

type walletHandlers struct{}

func keyOf(w *walletkit.Wallet) *accountKey {
	return w.Account().Key().(*accountKey)
}

func (walletHandlers) NewData(*walletkit.Wallet) walletkit.WalletData { return nil }

func (walletHandlers) Address(w *walletkit.Wallet, _ walletkit.AddressScheme) (walletkit.AddressValue, error) {
	a, ok := keyOf(w).account()
	if !ok {
		return nil, walletkit.ErrAddressUnassigned
	}
	return a, nil
}

func (walletHandlers) HasAddress(w *walletkit.Wallet, v walletkit.AddressValue) bool {
	return keyOf(w).HasAddress(v)
}

func (walletHandlers) AddressesForRecovery(w *walletkit.Wallet) []walletkit.AddressValue {
	return keyOf(w).Addresses()
}

func (walletHandlers) TransferAttributes(*walletkit.Wallet, *walletkit.Address) []walletkit.Attribute {
	return []walletkit.Attribute{{Key: AttributeMemo}}
}

func (walletHandlers) ValidateAttribute(_ *walletkit.Wallet, a walletkit.Attribute) error {
	if !a.KeyIs(AttributeMemo) {
		return &walletkit.AttributeError{Key: a.Key, Kind: walletkit.RelationshipInconsistency}
	}
	if len(a.Value) > MaxMemoSize {
		return &walletkit.AttributeError{Key: a.Key, Kind: walletkit.MismatchedType}
	}
	return nil
}

func (h walletHandlers) CreateTransfer(w *walletkit.Wallet, target *walletkit.Address, amt amount.Amount, fb *walletkit.FeeBasis, attrs []walletkit.Attribute) (*walletkit.TransferDraft, error) {
	var memo string
	if a, ok := walletkit.FindAttribute(attrs, AttributeMemo); ok {
		memo = a.Value
	}
	d, err := h.build(w, []walletkit.TransferOutput{{Target: target, Amount: amt}}, fb, memo)
	if err != nil {
		return nil, err
	}
	d.Attributes = attrs
	return d, nil
}

// CreateMultiOutputTransfer pays every output from one transfer list.
func (h walletHandlers) CreateMultiOutputTransfer(w *walletkit.Wallet, outputs []walletkit.TransferOutput, fb *walletkit.FeeBasis) (*walletkit.TransferDraft, error) {
	return h.build(w, outputs, fb, "")
}

func (walletHandlers) build(w *walletkit.Wallet, outputs []walletkit.TransferOutput, fb *walletkit.FeeBasis, memo string) (*walletkit.TransferDraft, error) {
	payer, ok := keyOf(w).account()
	if !ok {
		return nil, walletkit.ErrAddressUnassigned
	}
	node, err := nodeOf(w.Network())
	if err != nil {
		return nil, err
	}

	credits := make([]accountAmount, 0, len(outputs))
	var total uint64
	for _, o := range outputs {
		to, ok := addressOf(o.Target.Value())
		if !ok {
			return nil, fmt.Errorf("%w: not a hedera account id", walletkit.ErrInvalidAddress)
		}
		v := o.Amount.Value()
		if !v.IsUint64() || v.Uint64() > math.MaxInt64-total {
			return nil, fmt.Errorf("%w: amount %s exceeds the ledger's range", walletkit.ErrInsufficientFunds, v.Dec())
		}
		total += v.Uint64()
		credits = append(credits, accountAmount{account: to, amount: int64(v.Uint64())})
	}

	fee, err := fb.Fee()
	if err != nil {
		return nil, err
	}
	if !fee.Value().IsUint64() {
		return nil, walletkit.ErrFeeOverflow
	}
	need, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(total), fee.Value())
	if overflow {
		return nil, walletkit.ErrFeeOverflow
	}
	if bal := w.Balance(); bal.IsNegative() || bal.Value().Lt(need) {
		return nil, fmt.Errorf("%w: need %s, have %s", walletkit.ErrInsufficientFunds, need.Dec(), bal.Value().Dec())
	}

	tb := &body{
		payer:      payer,
		node:       node,
		validStart: now().Add(-validStartSkew),
		fee:        fee.Value().Uint64(),
		memo:       memo,
		transfers:  append([]accountAmount{{account: payer, amount: -int64(total)}}, credits...),
	}
	return &walletkit.TransferDraft{
		Value:  &transferValue{body: tb.marshal(), identifier: transactionID(payer, tb.validStart)},
		Source: payer,
		Target: credits[0].account,
		Amount: uint256.NewInt(total),
	}, nil
}
