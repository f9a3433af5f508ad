package klingnet

import (
	"errors"
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"github.com/Klingon-tech/walletkit/internal/log"
	"github.com/Klingon-tech/walletkit/pkg/amount"
	"github.com/Klingon-tech/walletkit/pkg/crypto"
	"github.com/Klingon-tech/walletkit/pkg/derive"
	"github.com/Klingon-tech/walletkit/pkg/tx"
	"github.com/Klingon-tech/walletkit/pkg/types"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// maxFeeRounds bounds the select-then-price iterations of a spend.
const maxFeeRounds = 8

var errFeeNotConverged = errors.New("fee did not converge")

// payment is one output of a spend being built.
type payment struct {
	to    types.Address
	value uint64
}

type walletHandlers struct{}

func keyOf(w *walletkit.Wallet) *accountKey {
	return w.Account().Key().(*accountKey)
}

func utxosOf(w *walletkit.Wallet) *utxoSet {
	return w.Data().(*utxoSet)
}

// UTXOs returns the spendable outputs of a Klingnet wallet.
func UTXOs(w *walletkit.Wallet) []UTXO {
	s, ok := w.Data().(*utxoSet)
	if !ok {
		return nil
	}
	return s.Spendable()
}

func (walletHandlers) NewData(*walletkit.Wallet) walletkit.WalletData { return newUTXOSet() }

// Address returns the first external address that has not received funds.
func (walletHandlers) Address(w *walletkit.Wallet, _ walletkit.AddressScheme) (walletkit.AddressValue, error) {
	a := keyOf(w).firstUnused(derive.ChangeExternal, utxosOf(w).isUsed)
	return newAddress(a, hrpOf(w.Network())), nil
}

func (walletHandlers) HasAddress(w *walletkit.Wallet, v walletkit.AddressValue) bool {
	return w.Account().Key().HasAddress(v)
}

func (walletHandlers) AddressesForRecovery(w *walletkit.Wallet) []walletkit.AddressValue {
	hrp := hrpOf(w.Network())
	vals := w.Account().Key().Addresses()
	out := make([]walletkit.AddressValue, 0, len(vals))
	for _, v := range vals {
		a, _ := addressOf(v)
		out = append(out, newAddress(a, hrp))
	}
	return out
}

// Klingnet transfers carry no attributes.
func (walletHandlers) TransferAttributes(*walletkit.Wallet, *walletkit.Address) []walletkit.Attribute {
	return nil
}

func (walletHandlers) ValidateAttribute(_ *walletkit.Wallet, a walletkit.Attribute) error {
	return &walletkit.AttributeError{Key: a.Key, Kind: walletkit.RelationshipInconsistency}
}

func (h walletHandlers) CreateTransfer(w *walletkit.Wallet, target *walletkit.Address, amt amount.Amount, fb *walletkit.FeeBasis, _ []walletkit.Attribute) (*walletkit.TransferDraft, error) {
	p, err := toPayment(target, amt)
	if err != nil {
		return nil, err
	}
	return h.spend(w, []payment{p}, fb)
}

func (h walletHandlers) CreateMultiOutputTransfer(w *walletkit.Wallet, outputs []walletkit.TransferOutput, fb *walletkit.FeeBasis) (*walletkit.TransferDraft, error) {
	payments := make([]payment, 0, len(outputs))
	for _, o := range outputs {
		p, err := toPayment(o.Target, o.Amount)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return h.spend(w, payments, fb)
}

func toPayment(target *walletkit.Address, amt amount.Amount) (payment, error) {
	to, ok := addressOf(target.Value())
	if !ok {
		return payment{}, fmt.Errorf("%w: not a klingnet address", walletkit.ErrInvalidAddress)
	}
	v := amt.Value()
	if !v.IsUint64() {
		return payment{}, fmt.Errorf("%w: amount %s exceeds 64 bits", walletkit.ErrInsufficientFunds, v.Dec())
	}
	if v.IsZero() {
		return payment{}, fmt.Errorf("%w: zero amount", walletkit.ErrNegativeAmount)
	}
	return payment{to: to, value: v.Uint64()}, nil
}

// spend funds payments from the wallet's UTXOs. Coin selection and pricing
// alternate until the selected inputs pay for their own size.
func (walletHandlers) spend(w *walletkit.Wallet, payments []payment, fb *walletkit.FeeBasis) (*walletkit.TransferDraft, error) {
	var need uint64
	for _, p := range payments {
		if need > math.MaxUint64-p.value {
			return nil, fmt.Errorf("%w: total overflows", walletkit.ErrInsufficientFunds)
		}
		need += p.value
	}
	price := fb.Value().PricePerCostFactor()
	key := keyOf(w)
	utxos := utxosOf(w).Spendable()

	var (
		fee   uint64
		basis = feeBasisForSize(price, 0)
	)
	for range maxFeeRounds {
		if need > math.MaxUint64-fee {
			return nil, fmt.Errorf("%w: fee overflows", walletkit.ErrInsufficientFunds)
		}
		sel, err := SelectCoins(utxos, need+fee)
		if errors.Is(err, ErrNoUTXOs) {
			return nil, fmt.Errorf("%w: %v", walletkit.ErrInsufficientFunds, err)
		}
		if err != nil {
			return nil, err
		}
		outputs := len(payments)
		if sel.Change > 0 {
			outputs++
		}
		next := feeBasisForSize(price, tx.EstimateSize(len(sel.Inputs), outputs))
		required, ok := next.fee()
		if !ok {
			return nil, fmt.Errorf("%w: fee overflows", walletkit.ErrInsufficientFunds)
		}
		if required > fee {
			fee, basis = required, next
			continue
		}
		if required == fee {
			basis = next
		}
		return buildDraft(w, key, payments, sel, basis)
	}
	return nil, errFeeNotConverged
}

func buildDraft(w *walletkit.Wallet, key *accountKey, payments []payment, sel *CoinSelection, basis *feeBasis) (*walletkit.TransferDraft, error) {
	b := tx.NewBuilder()
	spends := make(map[types.Outpoint]types.Address, len(sel.Inputs))
	for _, u := range sel.Inputs {
		b.AddInput(u.Outpoint)
		spends[u.Outpoint] = u.Owner
	}
	var total uint64
	for _, p := range payments {
		b.AddOutput(p.value, p.to)
		total += p.value
	}
	if sel.Change > 0 {
		b.AddOutput(sel.Change, key.at(derive.ChangeInternal, 0))
	}
	t := b.Build()
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}

	hrp := hrpOf(w.Network())
	log.Wallet.Debug().
		Str("network", w.Network().UIDs()).
		Int("inputs", len(t.Inputs)).
		Int("outputs", len(t.Outputs)).
		Uint64("change", sel.Change).
		Msg("Klingnet spend built")

	return &walletkit.TransferDraft{
		Value:    newTransferValue(t, spends),
		Source:   newAddress(sel.Inputs[0].Owner, hrp),
		Target:   newAddress(payments[0].to, hrp),
		Amount:   uint256.NewInt(total),
		FeeBasis: basis,
	}, nil
}

// DecodeTransaction classifies a reported transaction from the wallet's
// point of view and folds it into the UTXO set. A transaction touching no
// wallet address yields no drafts.
func (walletHandlers) DecodeTransaction(w *walletkit.Wallet, b *walletkit.TransactionBundle) ([]*walletkit.TransferDraft, error) {
	t, err := tx.Parse(b.Serialization)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", walletkit.ErrInvalidSerialization, err)
	}
	txid := t.Hash()
	key := keyOf(w)
	set := utxosOf(w)
	hrp := hrpOf(w.Network())

	var (
		spent      []types.Outpoint
		spends     = make(map[types.Outpoint]types.Address)
		payer      types.Address
		payerKnown bool
		inTotal    uint64
		inKnown    = true
	)
	for _, in := range t.Inputs {
		if in.PrevOut.IsZero() {
			inKnown = false
			continue
		}
		// Held outputs are ours; otherwise the signing key names the owner.
		prev, held := set.output(in.PrevOut)
		owner, known := prev.Owner, held
		if !held && len(in.PubKey) > 0 {
			owner, known = crypto.AddressFromPubKey(in.PubKey), true
		}
		if known && !payerKnown {
			payer, payerKnown = owner, true
		}
		if _, owned := key.position(owner); known && owned {
			spent = append(spent, in.PrevOut)
			spends[in.PrevOut] = owner
		}
		if held && inTotal <= math.MaxUint64-prev.Value {
			inTotal += prev.Value
		} else {
			inKnown = false
		}
	}

	var (
		created      []UTXO
		ownedTotal   uint64
		foreignTotal uint64
		outTotal     uint64
		firstForeign *types.Address
		firstOwned   *types.Address
	)
	for i, out := range t.Outputs {
		// Owned and foreign totals are bounded by outTotal.
		if outTotal > math.MaxUint64-out.Value {
			return nil, fmt.Errorf("%w: output %d: %v", walletkit.ErrInvalidSerialization, i, tx.ErrOutputOverflow)
		}
		outTotal += out.Value
		addr, ok := out.Script.Address()
		if ok && key.observe(addr) {
			if firstOwned == nil {
				firstOwned = &addr
			}
			// Token outputs never join the spendable set.
			if out.Token == nil {
				ownedTotal += out.Value
				created = append(created, UTXO{
					Outpoint: types.Outpoint{TxID: txid, Index: uint32(i)},
					Value:    out.Value,
					Owner:    addr,
				})
			}
			continue
		}
		foreignTotal += out.Value
		if firstForeign == nil && ok {
			firstForeign = &addr
		}
	}

	if len(spent) == 0 && firstOwned == nil {
		return nil, nil
	}

	draft := &walletkit.TransferDraft{Value: newTransferValue(t, spends)}
	var fee *walletkit.FeeBasis
	if len(spent) > 0 {
		draft.Source = newAddress(spends[spent[0]], hrp)
		switch {
		case firstForeign != nil:
			draft.Target = newAddress(*firstForeign, hrp)
		case firstOwned != nil:
			draft.Target = newAddress(*firstOwned, hrp)
		default:
			draft.Target = addressHandlers{}.Reserved(walletkit.SentinelUnknown)
		}
		draft.Amount = uint256.NewInt(foreignTotal)
		if inKnown && len(spent) == len(t.Inputs) && inTotal >= outTotal {
			fv := newFeeBasis(uint256.NewInt(inTotal-outTotal), 1)
			draft.FeeBasis = fv
			if fee, err = walletkit.NewFeeBasis(w.UnitForFee(), fv); err != nil {
				return nil, err
			}
		}
	} else {
		if payerKnown {
			draft.Source = newAddress(payer, hrp)
		} else {
			draft.Source = addressHandlers{}.Reserved(walletkit.SentinelUnknown)
		}
		draft.Target = newAddress(*firstOwned, hrp)
		draft.Amount = uint256.NewInt(ownedTotal)
	}
	draft.State = walletkit.StateForTransaction(b, fee)

	switch draft.State.(type) {
	case walletkit.StateErrored, walletkit.StateDeleted:
		set.revert(txid)
	default:
		set.apply(txid, created, spent)
	}
	return []*walletkit.TransferDraft{draft}, nil
}
