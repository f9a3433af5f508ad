package walletkit

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Klingon-tech/walletkit/pkg/amount"
	"github.com/Klingon-tech/walletkit/pkg/refcount"
)

// Direction classifies a transfer relative to the wallet it belongs to.
type Direction int

const (
	// DirectionSent moves value out of the wallet.
	DirectionSent Direction = iota
	// DirectionReceived moves value into the wallet.
	DirectionReceived
	// DirectionRecovered moves value between two of the wallet's own addresses.
	DirectionRecovered
)

func (d Direction) String() string {
	switch d {
	case DirectionSent:
		return "sent"
	case DirectionReceived:
		return "received"
	case DirectionRecovered:
		return "recovered"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ClassifyDirection derives the direction from address ownership.
func ClassifyDirection(sourceOwned, targetOwned bool) (Direction, error) {
	switch {
	case sourceOwned && targetOwned:
		return DirectionRecovered, nil
	case sourceOwned:
		return DirectionSent, nil
	case targetOwned:
		return DirectionReceived, nil
	default:
		return 0, ErrNotOwned
	}
}

var transferSeq atomic.Uint64

// Transfer is one movement of value, from creation through inclusion.
// Identity fields are fixed at construction; the ledger value, state and
// fee bases change under mu.
type Transfer struct {
	ref        refcount.Ref
	tag        Tag
	h          *Handlers
	seq        uint64
	uids       string
	direction  Direction
	source     *Address
	target     *Address
	amount     amount.Amount
	unitForFee *amount.Unit
	attributes []Attribute

	mu        sync.Mutex
	value     TransferValue
	estimated *FeeBasis
	state     TransferState
}

// newTransfer builds a transfer from a draft. owns decides which of the two
// addresses belong to the wallet; a transfer touching neither is rejected.
func newTransfer(h *Handlers, d *TransferDraft, unit, unitForFee *amount.Unit, owns func(AddressValue) bool) (*Transfer, error) {
	if d.Value != nil && d.Value.Tag() != h.Tag {
		return nil, fmt.Errorf("%w: transfer value for %s", ErrLedgerMismatch, d.Value.Tag())
	}
	source, target := NewAddress(d.Source), NewAddress(d.Target)
	dir, err := ClassifyDirection(
		!source.IsFee() && !source.IsUnknown() && owns(d.Source),
		!target.IsFee() && !target.IsUnknown() && owns(d.Target),
	)
	if err != nil {
		return nil, fmt.Errorf("transfer %s -> %s: %w", source, target, err)
	}

	var estimated *FeeBasis
	if d.FeeBasis != nil {
		estimated, err = NewFeeBasis(unitForFee, d.FeeBasis)
		if err != nil {
			return nil, err
		}
	}

	state := d.State
	if state == nil {
		state = StateCreated{}
	}

	t := &Transfer{
		tag:        h.Tag,
		h:          h,
		seq:        transferSeq.Add(1),
		uids:       d.UIDs,
		direction:  dir,
		source:     source,
		target:     target,
		amount:     amount.New(unit, d.Amount, false),
		unitForFee: unitForFee,
		attributes: copyAttributes(d.Attributes),
		value:      d.Value,
		estimated:  estimated,
		state:      state,
	}
	t.ref.Init(t.destroy)
	return t, nil
}

func (t *Transfer) destroy() {
	t.source.Release()
	t.target.Release()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.estimated != nil {
		t.estimated.Release()
	}
	if r, ok := t.value.(Releaser); ok {
		r.Release()
	}
}

func (t *Transfer) Refs() *refcount.Ref { return &t.ref }

// Take adds an owner.
func (t *Transfer) Take() *Transfer { return refcount.Take(t) }

// Release drops an owner.
func (t *Transfer) Release() { t.ref.Release() }

func (t *Transfer) Tag() Tag                 { return t.tag }
func (t *Transfer) UIDs() string             { return t.uids }
func (t *Transfer) Direction() Direction     { return t.direction }
func (t *Transfer) Source() *Address         { return t.source }
func (t *Transfer) Target() *Address         { return t.target }
func (t *Transfer) Amount() amount.Amount    { return t.amount }
func (t *Transfer) UnitForFee() *amount.Unit { return t.unitForFee }

// Attributes returns a copy of the transfer attributes.
func (t *Transfer) Attributes() []Attribute { return copyAttributes(t.attributes) }

// Value returns the ledger transfer value.
func (t *Transfer) Value() TransferValue {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

func (t *Transfer) State() TransferState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transfer) EstimatedFeeBasis() *FeeBasis {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.estimated
}

// ConfirmedFeeBasis returns the fee basis reported at inclusion, if any.
func (t *Transfer) ConfirmedFeeBasis() *FeeBasis {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.state.(StateIncluded); ok {
		return s.FeeBasis
	}
	return nil
}

// Fee returns the confirmed fee once included, otherwise the estimate. ok
// is false when neither is known.
func (t *Transfer) Fee() (fee amount.Amount, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.feeLocked()
}

func (t *Transfer) feeLocked() (amount.Amount, bool) {
	fb := t.estimated
	if s, ok := t.state.(StateIncluded); ok && s.FeeBasis != nil {
		fb = s.FeeBasis
	}
	if fb == nil {
		return amount.Amount{}, false
	}
	fee, err := fb.Fee()
	if err != nil {
		return amount.Amount{}, false
	}
	return fee, true
}

// DirectedAmount is the signed effect of the transfer on the owning
// wallet's balance. A fee counts only when paid in the transfer's currency.
func (t *Transfer) DirectedAmount() amount.Amount {
	t.mu.Lock()
	state := t.state
	fee, hasFee := t.feeLocked()
	t.mu.Unlock()

	zero := amount.Zero(t.amount.Unit())
	if !hasFee || !fee.IsCompatible(t.amount) {
		fee = zero
	}

	switch s := state.(type) {
	case StateErrored, StateDeleted:
		return zero
	case StateIncluded:
		if !s.Success {
			if t.direction == DirectionReceived {
				return zero
			}
			return fee.Negate()
		}
	}

	switch t.direction {
	case DirectionRecovered:
		return fee.Negate()
	case DirectionSent:
		total, err := t.amount.Add(fee)
		if err != nil {
			return t.amount.Negate()
		}
		return total.Negate()
	default:
		return t.amount
	}
}

// DirectedFee is the signed effect of the transfer on the wallet paying
// its fee when that wallet does not hold the transfer's currency.
func (t *Transfer) DirectedFee() amount.Amount {
	t.mu.Lock()
	state := t.state
	fee, hasFee := t.feeLocked()
	t.mu.Unlock()

	if !hasFee || t.direction == DirectionReceived {
		return amount.Zero(t.unitForFee)
	}
	switch state.(type) {
	case StateErrored, StateDeleted:
		return amount.Zero(t.unitForFee)
	}
	return fee.Negate()
}

// Hash returns the ledger hash once known.
func (t *Transfer) Hash() (Hash, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.value == nil {
		return Hash{}, false
	}
	return t.value.Hash()
}

// Identifier returns the ledger's transaction identifier, which for most
// ledgers is the encoded hash.
func (t *Transfer) Identifier() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.value == nil {
		return ""
	}
	return t.value.Identifier()
}

// SetHash assigns a hash learned after submission.
func (t *Transfer) SetHash(h Hash) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	hs, ok := t.value.(HashSetter)
	if !ok {
		return ErrUnsupported
	}
	return hs.SetHash(h)
}

// UpdateIdentifier recomputes the ledger identifier.
func (t *Transfer) UpdateIdentifier() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if u, ok := t.value.(IdentifierUpdater); ok {
		u.UpdateIdentifier()
	}
}

// SerializeForSubmission returns the signed transaction bytes.
func (t *Transfer) SerializeForSubmission() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.value == nil {
		return nil, ErrUnsupported
	}
	if !t.value.Signed() {
		return nil, ErrNotSigned
	}
	return t.value.SerializeForSubmission()
}

// SerializeForFeeEstimation returns bytes suitable for a fee estimate.
func (t *Transfer) SerializeForFeeEstimation() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.value == nil {
		return nil, ErrUnsupported
	}
	return t.value.SerializeForFeeEstimation()
}

// setState moves the transfer forward and returns the previous state.
func (t *Transfer) setState(s TransferState) (TransferState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	old := t.state
	if !CanTransition(old, s) {
		return old, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, old.Type(), s.Type())
	}
	t.state = s
	return old, nil
}

// sameIdentity reports whether a and b are the same ledger transfer: equal
// hashes or equal uids, plus equal targets where the ledger requires it.
func sameIdentity(a, b *Transfer) bool {
	if a == b {
		return true
	}
	if a.tag != b.tag {
		return false
	}
	ah, aok := a.Hash()
	bh, bok := b.Hash()
	match := aok && bok && !ah.IsZero() && ah.Equal(bh)
	if !match && a.uids != "" && b.uids != "" {
		match = a.uids == b.uids
	}
	if match && a.h.Transfer.MatchByTarget() {
		match = a.target.Equal(b.target)
	}
	return match
}

// Equal reports whether t and o are the same transfer.
func (t *Transfer) Equal(o *Transfer) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil {
		return false
	}
	if sameIdentity(t, o) {
		return true
	}
	av, bv := t.Value(), o.Value()
	return av != nil && bv != nil && av.Equal(bv)
}

// CompareTransfers orders included transfers first, by timestamp, block
// number and index; all others follow in creation order.
func CompareTransfers(a, b *Transfer) int {
	as, aok := a.State().(StateIncluded)
	bs, bok := b.State().(StateIncluded)
	switch {
	case aok && !bok:
		return -1
	case !aok && bok:
		return 1
	case aok && bok:
		if c := as.Timestamp.Compare(bs.Timestamp); c != 0 {
			return c
		}
		if c := cmp.Compare(as.BlockNumber, bs.BlockNumber); c != 0 {
			return c
		}
		if c := cmp.Compare(as.TransactionIndex, bs.TransactionIndex); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.seq, b.seq)
}

// SortTransfers sorts ts in place by CompareTransfers.
func SortTransfers(ts []*Transfer) {
	slices.SortStableFunc(ts, CompareTransfers)
}
