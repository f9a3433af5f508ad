package tezos

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/Klingon-tech/walletkit/pkg/amount"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// ErrNoBranch means the network has no verified block hash to branch on.
var ErrNoBranch = errors.New("tezos: network has no verified block hash")

type walletHandlers struct{}

func keyOf(w *walletkit.Wallet) *accountKey {
	return w.Account().Key().(*accountKey)
}

func (walletHandlers) NewData(*walletkit.Wallet) walletkit.WalletData { return nil }

func (walletHandlers) Address(w *walletkit.Wallet, _ walletkit.AddressScheme) (walletkit.AddressValue, error) {
	return keyOf(w).addr, nil
}

func (walletHandlers) HasAddress(w *walletkit.Wallet, v walletkit.AddressValue) bool {
	return keyOf(w).HasAddress(v)
}

func (walletHandlers) AddressesForRecovery(w *walletkit.Wallet) []walletkit.AddressValue {
	return keyOf(w).Addresses()
}

func (walletHandlers) TransferAttributes(*walletkit.Wallet, *walletkit.Address) []walletkit.Attribute {
	return []walletkit.Attribute{
		{Key: AttributeDelegationOp},
		{Key: AttributeDelegate},
		{Key: AttributeType},
	}
}

func (walletHandlers) ValidateAttribute(_ *walletkit.Wallet, a walletkit.Attribute) error {
	switch {
	case a.KeyIs(AttributeDelegationOp):
		if a.Value != "" && a.Value != "0" && a.Value != "1" {
			return &walletkit.AttributeError{Key: a.Key, Kind: walletkit.MismatchedType}
		}
		return nil
	case a.KeyIs(AttributeDelegate), a.KeyIs(AttributeType):
		return nil
	}
	return &walletkit.AttributeError{Key: a.Key, Kind: walletkit.RelationshipInconsistency}
}

// needsReveal reports whether the wallet has yet to send anything.
func needsReveal(w *walletkit.Wallet) bool {
	for _, t := range w.Transfers() {
		if t.Direction() == walletkit.DirectionReceived {
			continue
		}
		if _, failed := t.State().(walletkit.StateErrored); !failed {
			return false
		}
	}
	return true
}

// lastCounter is the highest account counter the wallet's outgoing
// history has consumed. Operations seen only by hash count one each, plus
// the reveal that preceded the first.
func lastCounter(w *walletkit.Wallet) uint64 {
	var known, ops uint64
	for _, t := range w.Transfers() {
		if t.Direction() == walletkit.DirectionReceived {
			continue
		}
		switch t.State().(type) {
		case walletkit.StateErrored, walletkit.StateDeleted:
			continue
		}
		ops++
		if v, ok := t.Value().(*transferValue); ok && v.counter > known {
			known = v.counter
		}
	}
	if ops > 0 {
		ops++
	}
	return max(known, ops)
}

func isDelegation(attrs []walletkit.Attribute) bool {
	a, ok := walletkit.FindAttribute(attrs, AttributeDelegationOp)
	return ok && a.Value == "1"
}

func (walletHandlers) CreateTransfer(w *walletkit.Wallet, target *walletkit.Address, amt amount.Amount, fb *walletkit.FeeBasis, attrs []walletkit.Attribute) (*walletkit.TransferDraft, error) {
	key := keyOf(w)
	to, ok := addressOf(target.Value())
	if !ok {
		return nil, fmt.Errorf("%w: not a tezos address", walletkit.ErrInvalidAddress)
	}
	basis, err := feeBasisOf(fb.Value())
	if err != nil {
		return nil, err
	}
	branch := w.Network().VerifiedBlockHash()
	if branch.IsZero() || branch.Len() != 32 {
		return nil, ErrNoBranch
	}

	main := &operation{
		kind:         opTransaction,
		source:       key.addr,
		gasLimit:     basis.gasLimit,
		storageLimit: basis.storageLimit,
		destination:  to,
	}
	main.fee.Set(&basis.fee)
	main.amount.Set(amt.Value())
	if isDelegation(attrs) {
		if !to.implicit() {
			return nil, fmt.Errorf("%w: delegate %s is a contract", walletkit.ErrInvalidAddress, to)
		}
		if !amt.IsZero() {
			return nil, fmt.Errorf("%w: delegation with an amount", walletkit.ErrUnsupported)
		}
		main.kind = opDelegation
	}

	var ops []*operation
	total := new(uint256.Int).Set(&basis.fee)
	counter := max(basis.counter, lastCounter(w))
	if needsReveal(w) {
		counter++
		reveal := &operation{
			kind:      opReveal,
			source:    key.addr,
			counter:   counter,
			gasLimit:  revealGasLimit,
			publicKey: key.PublicKey(),
		}
		reveal.fee.SetUint64(revealFee)
		total.Add(total, &reveal.fee)
		ops = append(ops, reveal)
	}
	counter++
	main.counter = counter
	ops = append(ops, main)

	need, overflow := new(uint256.Int).AddOverflow(&main.amount, total)
	if overflow {
		return nil, walletkit.ErrFeeOverflow
	}
	if bal := w.Balance(); bal.IsNegative() || bal.Value().Lt(need) {
		return nil, fmt.Errorf("%w: need %s, have %s", walletkit.ErrInsufficientFunds, need.Dec(), bal.Value().Dec())
	}

	paid := &feeBasis{gasLimit: basis.gasLimit, storageLimit: basis.storageLimit, counter: basis.counter}
	paid.fee.Set(total)
	return &walletkit.TransferDraft{
		Value:      &transferValue{forged: forge(branch.Bytes(), ops), counter: counter},
		Source:     key.addr,
		Target:     to,
		Amount:     new(uint256.Int).Set(&main.amount),
		FeeBasis:   paid,
		Attributes: attrs,
	}, nil
}

func (walletHandlers) CreateMultiOutputTransfer(*walletkit.Wallet, []walletkit.TransferOutput, *walletkit.FeeBasis) (*walletkit.TransferDraft, error) {
	return nil, fmt.Errorf("%w: multi-output transfers on tezos", walletkit.ErrUnsupported)
}
