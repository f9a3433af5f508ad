package walletkit

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Klingon-tech/walletkit/internal/log"
	"github.com/Klingon-tech/walletkit/pkg/amount"
	"github.com/Klingon-tech/walletkit/pkg/refcount"
)

// WalletState is the wallet lifecycle.
type WalletState int

const (
	WalletCreated WalletState = iota
	WalletDeleted
)

// WalletEvent is delivered to a WalletListener after the wallet lock is
// released.
type WalletEvent interface{ isWalletEvent() }

type WalletTransferAdded struct{ Transfer *Transfer }

type WalletTransferChanged struct {
	Transfer *Transfer
	Old, New TransferState
}

type WalletTransferDeleted struct{ Transfer *Transfer }

type WalletBalanceUpdated struct{ Balance amount.Amount }

type WalletFeeBasisUpdated struct{ FeeBasis *FeeBasis }

type WalletDeletedEvent struct{}

func (WalletTransferAdded) isWalletEvent()   {}
func (WalletTransferChanged) isWalletEvent() {}
func (WalletTransferDeleted) isWalletEvent() {}
func (WalletBalanceUpdated) isWalletEvent()  {}
func (WalletFeeBasisUpdated) isWalletEvent() {}
func (WalletDeletedEvent) isWalletEvent()    {}

// WalletListener receives wallet events.
type WalletListener func(w *Wallet, e WalletEvent)

// WalletOption configures NewWallet.
type WalletOption func(*Wallet)

// WithWalletListener registers l for the wallet's events.
func WithWalletListener(l WalletListener) WalletOption {
	return func(w *Wallet) { w.listener = l }
}

// WithBalanceLimits sets the minimum and maximum balance the ledger allows.
// Either may be nil.
func WithBalanceLimits(min, max *amount.Amount) WalletOption {
	return func(w *Wallet) {
		w.minBalance = min
		w.maxBalance = max
	}
}

// WithSiblings gives the wallet the other wallets of its account on the
// same network. Ledgers whose account state spans currencies read them.
func WithSiblings(f func() []*Wallet) WalletOption {
	return func(w *Wallet) { w.siblings = f }
}

// WithUnitForFee overrides the unit fees are paid in.
func WithUnitForFee(u *amount.Unit) WalletOption {
	return func(w *Wallet) { w.unitForFee = u }
}

// Wallet holds the transfers of one currency for one account on one
// network, and the balance derived from them. The balance is always
// recomputed from the full transfer list.
type Wallet struct {
	ref        refcount.Ref
	tag        Tag
	h          *Handlers
	network    *Network
	account    *Account
	currency   *amount.Currency
	unit       *amount.Unit
	unitForFee *amount.Unit
	minBalance *amount.Amount
	maxBalance *amount.Amount
	listener   WalletListener
	siblings   func() []*Wallet
	data       WalletData

	mu              sync.Mutex
	state           WalletState
	transfers       []*Transfer
	balance         amount.Amount
	defaultFeeBasis *FeeBasis
}

// NewWallet creates a wallet for currency c held by account a on network n.
func NewWallet(n *Network, a *Account, c *amount.Currency, opts ...WalletOption) (*Wallet, error) {
	if n.Tag() != a.Tag() {
		return nil, fmt.Errorf("%w: %s account on %s network", ErrLedgerMismatch, a.Tag(), n.Tag())
	}
	unit, err := n.BaseUnit(c)
	if err != nil {
		return nil, err
	}

	w := &Wallet{
		tag:        n.Tag(),
		h:          n.Handlers(),
		network:    n.Take(),
		account:    a.Take(),
		currency:   c,
		unit:       unit,
		unitForFee: n.NativeBaseUnit(),
		balance:    amount.Zero(unit),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.data = w.h.Wallet.NewData(w)
	w.ref.Init(w.destroy)

	log.Wallet.Debug().
		Str("network", n.UIDs()).
		Str("currency", c.Code()).
		Str("account", a.UIDs()).
		Msg("Wallet created")
	return w, nil
}

func (w *Wallet) destroy() {
	w.mu.Lock()
	transfers := w.transfers
	w.transfers = nil
	fb := w.defaultFeeBasis
	w.defaultFeeBasis = nil
	w.mu.Unlock()

	for _, t := range transfers {
		t.Release()
	}
	if fb != nil {
		fb.Release()
	}
	if r, ok := w.data.(Releaser); ok {
		r.Release()
	}
	w.account.Release()
	w.network.Release()
}

func (w *Wallet) Refs() *refcount.Ref { return &w.ref }

// Take adds an owner.
func (w *Wallet) Take() *Wallet { return refcount.Take(w) }

// Release drops an owner.
func (w *Wallet) Release() { w.ref.Release() }

func (w *Wallet) Tag() Tag                   { return w.tag }
func (w *Wallet) Network() *Network          { return w.network }
func (w *Wallet) Account() *Account          { return w.account }
func (w *Wallet) Currency() *amount.Currency { return w.currency }
func (w *Wallet) Unit() *amount.Unit         { return w.unit }
func (w *Wallet) UnitForFee() *amount.Unit   { return w.unitForFee }

// Siblings returns the wallets of the same account on the same network,
// w included.
func (w *Wallet) Siblings() []*Wallet {
	if w.siblings == nil {
		return []*Wallet{w}
	}
	out := w.siblings()
	if !slices.Contains(out, w) {
		out = append(out, w)
	}
	return out
}

// FeeWallet returns the sibling that pays this wallet's fees: w itself
// when its currency is the fee currency.
func (w *Wallet) FeeWallet() (*Wallet, bool) {
	if w.unit.IsCompatible(w.unitForFee) {
		return w, true
	}
	for _, s := range w.Siblings() {
		if s.unit.IsCompatible(w.unitForFee) {
			return s, true
		}
	}
	return nil, false
}

// Data returns the ledger's per-wallet state.
func (w *Wallet) Data() WalletData { return w.data }

func (w *Wallet) State() WalletState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Delete marks the wallet deleted. It accepts no more transfers.
func (w *Wallet) Delete() {
	w.mu.Lock()
	already := w.state == WalletDeleted
	w.state = WalletDeleted
	w.mu.Unlock()
	if !already {
		w.emit(WalletDeletedEvent{})
	}
}

func (w *Wallet) Balance() amount.Amount {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance
}

// BalanceMinimum returns the smallest balance the ledger allows, if any.
func (w *Wallet) BalanceMinimum() (amount.Amount, bool) {
	if w.minBalance == nil {
		return amount.Amount{}, false
	}
	return *w.minBalance, true
}

// BalanceMaximum returns the largest balance the ledger allows, if any.
func (w *Wallet) BalanceMaximum() (amount.Amount, bool) {
	if w.maxBalance == nil {
		return amount.Amount{}, false
	}
	return *w.maxBalance, true
}

// Transfers returns the wallet's transfers in CompareTransfers order.
func (w *Wallet) Transfers() []*Transfer {
	w.mu.Lock()
	out := slices.Clone(w.transfers)
	w.mu.Unlock()
	SortTransfers(out)
	return out
}

func (w *Wallet) TransferCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.transfers)
}

// HasTransfer reports whether the wallet holds t or a transfer with its identity.
func (w *Wallet) HasTransfer(t *Transfer) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.indexLocked(t) >= 0
}

// FindTransfer returns the held transfer with t's identity.
func (w *Wallet) FindTransfer(t *Transfer) (*Transfer, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i := w.indexLocked(t); i >= 0 {
		return w.transfers[i], true
	}
	return nil, false
}

// TransferByHash returns the first transfer with hash h.
func (w *Wallet) TransferByHash(h Hash) (*Transfer, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.transfers {
		if th, ok := t.Hash(); ok && th.Equal(h) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: transfer %s", ErrNotFound, h)
}

func (w *Wallet) indexLocked(t *Transfer) int {
	for i, existing := range w.transfers {
		if sameIdentity(existing, t) {
			return i
		}
	}
	return -1
}

// Address returns the wallet's receive address in scheme.
func (w *Wallet) Address(scheme AddressScheme) (*Address, error) {
	if !w.network.SupportsAddressScheme(scheme) {
		return nil, fmt.Errorf("%w: address scheme %q on %s", ErrUnsupported, scheme, w.network.UIDs())
	}
	v, err := w.h.Wallet.Address(w, scheme)
	if err != nil {
		return nil, err
	}
	return NewAddress(v), nil
}

// DefaultAddress returns the receive address in the network's default scheme.
func (w *Wallet) DefaultAddress() (*Address, error) {
	return w.Address(w.network.DefaultAddressScheme())
}

// HasAddress reports whether addr belongs to the wallet.
func (w *Wallet) HasAddress(addr *Address) bool {
	if addr == nil || addr.Tag() != w.tag || addr.IsFee() || addr.IsUnknown() {
		return false
	}
	return w.h.Wallet.HasAddress(w, addr.Value())
}

func (w *Wallet) ownsValue(v AddressValue) bool {
	return w.h.Wallet.HasAddress(w, v)
}

// AddressesForRecovery returns every address a client must query to
// rebuild the wallet's history.
func (w *Wallet) AddressesForRecovery() []*Address {
	vals := w.h.Wallet.AddressesForRecovery(w)
	set := NewAddressSet()
	out := make([]*Address, 0, len(vals))
	for _, v := range vals {
		a := NewAddress(v)
		if set.Add(a) {
			out = append(out, a)
		}
	}
	return out
}

// TransferAttributes lists the attributes a transfer to target may carry.
func (w *Wallet) TransferAttributes(target *Address) []Attribute {
	return w.h.Wallet.TransferAttributes(w, target)
}

// ValidateAttribute checks one attribute against the ledger's rules.
func (w *Wallet) ValidateAttribute(a Attribute) error {
	return w.h.Wallet.ValidateAttribute(w, a)
}

// ValidateAttributes checks attrs and that every required attribute for
// target is provided.
func (w *Wallet) ValidateAttributes(target *Address, attrs []Attribute) error {
	for _, a := range attrs {
		if err := w.ValidateAttribute(a); err != nil {
			return err
		}
	}
	for _, d := range w.TransferAttributes(target) {
		if !d.Required {
			continue
		}
		if a, ok := FindAttribute(attrs, d.Key); !ok || !a.HasValue() {
			return &AttributeError{Key: d.Key, Kind: RequiredButNotProvided}
		}
	}
	return nil
}

func (w *Wallet) resolveFeeBasis(fb *FeeBasis) (*FeeBasis, error) {
	if fb == nil {
		fb = w.DefaultFeeBasis()
	}
	if fb == nil {
		return nil, ErrNoFeeBasis
	}
	if fb.Tag() != w.tag {
		return nil, fmt.Errorf("%w: %s fee basis", ErrLedgerMismatch, fb.Tag())
	}
	return fb, nil
}

func (w *Wallet) checkTarget(target *Address) error {
	if target == nil || target.Tag() != w.tag {
		return fmt.Errorf("%w: target address", ErrLedgerMismatch)
	}
	if target.IsFee() || target.IsUnknown() {
		return fmt.Errorf("%w: sentinel %s is not a target", ErrInvalidAddress, target)
	}
	return nil
}

func (w *Wallet) checkAmount(amt amount.Amount) error {
	if !amt.Currency().Equal(w.currency) {
		return fmt.Errorf("%w: %s in %s wallet", ErrCurrencyMismatch, amt.Currency(), w.currency)
	}
	if amt.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// CreateTransfer builds an unsigned transfer of amt to target. The
// transfer is not added to the wallet; it joins once observed.
func (w *Wallet) CreateTransfer(target *Address, amt amount.Amount, fb *FeeBasis, attrs []Attribute) (*Transfer, error) {
	if w.State() == WalletDeleted {
		return nil, ErrWalletDeleted
	}
	if err := w.checkTarget(target); err != nil {
		return nil, err
	}
	if err := w.checkAmount(amt); err != nil {
		return nil, err
	}
	fb, err := w.resolveFeeBasis(fb)
	if err != nil {
		return nil, err
	}
	if err := w.ValidateAttributes(target, attrs); err != nil {
		return nil, err
	}

	d, err := w.h.Wallet.CreateTransfer(w, target, amt, fb, attrs)
	if err != nil {
		return nil, err
	}
	return w.fromDraft(d, fb)
}

// CreateMultiOutputTransfer builds one unsigned transfer paying every
// output. Ledgers without multi-output transactions return ErrUnsupported.
func (w *Wallet) CreateMultiOutputTransfer(outputs []TransferOutput, fb *FeeBasis) (*Transfer, error) {
	if w.State() == WalletDeleted {
		return nil, ErrWalletDeleted
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: no outputs", ErrInvalidAddress)
	}
	for _, o := range outputs {
		if err := w.checkTarget(o.Target); err != nil {
			return nil, err
		}
		if err := w.checkAmount(o.Amount); err != nil {
			return nil, err
		}
	}
	fb, err := w.resolveFeeBasis(fb)
	if err != nil {
		return nil, err
	}
	d, err := w.h.Wallet.CreateMultiOutputTransfer(w, outputs, fb)
	if err != nil {
		return nil, err
	}
	return w.fromDraft(d, fb)
}

func (w *Wallet) fromDraft(d *TransferDraft, fb *FeeBasis) (*Transfer, error) {
	if d.FeeBasis == nil && fb != nil {
		d.FeeBasis = fb.Value()
	}
	return newTransfer(w.h, d, w.unit, w.unitForFee, w.ownsValue)
}

// TransferFromBundle reconstructs a transfer reported by a client. The
// bundle's fee, when present, becomes the confirmed fee basis.
func (w *Wallet) TransferFromBundle(b *TransferBundle) (*Transfer, error) {
	n := w.network
	source, err := n.CreateAddress(b.From, false)
	if err != nil {
		return nil, err
	}
	target, err := n.CreateAddress(b.To, false)
	if err != nil {
		return nil, err
	}
	value, err := ParseBaseUnits(b.Amount)
	if err != nil {
		return nil, err
	}

	var fee *FeeBasis
	if b.Fee != "" {
		price, err := ParseBaseUnits(b.Fee)
		if err != nil {
			return nil, err
		}
		fv, err := NewFixedFeeBasis(w.tag, price, 1)
		if err != nil {
			return nil, err
		}
		if fee, err = NewFeeBasis(w.unitForFee, fv); err != nil {
			return nil, err
		}
	}

	tv, err := w.h.Transfer.FromBundle(n, b)
	if err != nil {
		return nil, err
	}

	var attrs []Attribute
	for k, v := range b.Attributes {
		if k == bundleErrorKey {
			continue
		}
		attrs = append(attrs, Attribute{Key: k, Value: v})
	}
	slices.SortFunc(attrs, func(a, b Attribute) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	})

	d := &TransferDraft{
		Value:      tv,
		Source:     source.Value(),
		Target:     target.Value(),
		Amount:     value,
		Attributes: attrs,
		State:      StateForTransfer(b, fee),
		UIDs:       b.UIDs,
	}
	if fee != nil {
		d.FeeBasis = fee.Value()
	}
	return newTransfer(w.h, d, w.unit, w.unitForFee, w.ownsValue)
}

// TransfersFromTransaction decodes a raw transaction on ledgers that
// report transactions rather than transfers.
func (w *Wallet) TransfersFromTransaction(b *TransactionBundle) ([]*Transfer, error) {
	dec, ok := w.h.Wallet.(TransactionDecoder)
	if !ok {
		return nil, fmt.Errorf("%w: raw transactions on %s", ErrUnsupported, w.tag)
	}
	drafts, err := dec.DecodeTransaction(w, b)
	if err != nil {
		return nil, err
	}
	out := make([]*Transfer, 0, len(drafts))
	for _, d := range drafts {
		t, err := newTransfer(w.h, d, w.unit, w.unitForFee, w.ownsValue)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (w *Wallet) checkMember(t *Transfer) {
	if t.Tag() != w.tag {
		violate("%s transfer added to %s wallet", t.Tag(), w.tag)
	}
	if !t.Amount().Unit().IsCompatible(w.unit) && !w.paysFeeFor(t) {
		violate("%s transfer added to %s wallet", t.Amount().Currency(), w.currency)
	}
	if !w.ownsValue(t.Source().Value()) && !w.ownsValue(t.Target().Value()) {
		violate("transfer %s -> %s added to a wallet owning neither address", t.Source(), t.Target())
	}
}

// paysFeeFor reports whether t is held here only for the fee it charges in
// this wallet's currency.
func (w *Wallet) paysFeeFor(t *Transfer) bool {
	return t.Direction() != DirectionReceived &&
		!t.Amount().Unit().IsCompatible(w.unit) &&
		t.UnitForFee().IsCompatible(w.unit)
}

// AddTransfer adds t unless a transfer with the same identity is already
// held, and recomputes the balance. It reports whether t was added.
func (w *Wallet) AddTransfer(t *Transfer) bool {
	w.checkMember(t)

	w.mu.Lock()
	if w.state == WalletDeleted || w.indexLocked(t) >= 0 {
		w.mu.Unlock()
		return false
	}
	w.transfers = append(w.transfers, t.Take())
	balance, changed := w.recomputeLocked()
	w.mu.Unlock()

	log.Wallet.Debug().
		Str("network", w.network.UIDs()).
		Str("currency", w.currency.Code()).
		Str("direction", t.Direction().String()).
		Msg("Transfer added")

	events := []WalletEvent{WalletTransferAdded{Transfer: t}}
	if changed {
		events = append(events, WalletBalanceUpdated{Balance: balance})
	}
	w.emit(events...)
	return true
}

// RemoveTransfer removes the transfer with t's identity, marks it deleted
// and recomputes the balance. It reports whether a transfer was removed.
func (w *Wallet) RemoveTransfer(t *Transfer) bool {
	w.mu.Lock()
	i := w.indexLocked(t)
	if i < 0 {
		w.mu.Unlock()
		return false
	}
	existing := w.transfers[i]
	w.transfers = slices.Delete(w.transfers, i, i+1)
	old, err := existing.setState(StateDeleted{})
	balance, changed := w.recomputeLocked()
	w.mu.Unlock()

	events := []WalletEvent{}
	if err == nil {
		events = append(events, WalletTransferChanged{Transfer: existing, Old: old, New: StateDeleted{}})
	}
	events = append(events, WalletTransferDeleted{Transfer: existing})
	if changed {
		events = append(events, WalletBalanceUpdated{Balance: balance})
	}
	w.emit(events...)
	existing.Release()
	return true
}

// UpdateTransfer copies t's state onto the held transfer with the same
// identity and recomputes the balance. It reports whether a held transfer
// matched.
func (w *Wallet) UpdateTransfer(t *Transfer) (bool, error) {
	w.mu.Lock()
	i := w.indexLocked(t)
	if i < 0 {
		w.mu.Unlock()
		return false, nil
	}
	existing := w.transfers[i]
	if existing == t {
		w.mu.Unlock()
		return true, nil
	}
	next := t.State()
	old, err := existing.setState(next)
	if err != nil {
		w.mu.Unlock()
		return true, err
	}
	balance, changed := w.recomputeLocked()
	w.mu.Unlock()

	events := []WalletEvent{WalletTransferChanged{Transfer: existing, Old: old, New: next}}
	if changed {
		events = append(events, WalletBalanceUpdated{Balance: balance})
	}
	w.emit(events...)
	return true, nil
}

// SetTransferState moves t (or the held transfer with its identity) to s
// and recomputes the balance when the wallet holds it.
func (w *Wallet) SetTransferState(t *Transfer, s TransferState) error {
	w.mu.Lock()
	target := t
	held := false
	if i := w.indexLocked(t); i >= 0 {
		target = w.transfers[i]
		held = true
	}
	old, err := target.setState(s)
	if err != nil {
		w.mu.Unlock()
		return err
	}
	var balance amount.Amount
	changed := false
	if held {
		balance, changed = w.recomputeLocked()
	}
	w.mu.Unlock()

	events := []WalletEvent{WalletTransferChanged{Transfer: target, Old: old, New: s}}
	if changed {
		events = append(events, WalletBalanceUpdated{Balance: balance})
	}
	w.emit(events...)
	return nil
}

// RecomputeBalance recomputes the balance after a held transfer changed
// state through another wallet.
func (w *Wallet) RecomputeBalance() amount.Amount {
	w.mu.Lock()
	balance, changed := w.recomputeLocked()
	w.mu.Unlock()
	if changed {
		w.emit(WalletBalanceUpdated{Balance: balance})
	}
	return balance
}

func (w *Wallet) recomputeLocked() (amount.Amount, bool) {
	sum := amount.Zero(w.unit)
	for _, t := range w.transfers {
		d := t.DirectedAmount()
		if !d.IsCompatible(sum) {
			if !w.paysFeeFor(t) {
				continue
			}
			d = t.DirectedFee()
		}
		next, err := sum.Add(d)
		if err != nil {
			log.Wallet.Error().Err(err).Str("network", w.network.UIDs()).Msg("Balance overflow")
			continue
		}
		sum = next
	}
	changed := !sum.Equal(w.balance)
	w.balance = sum
	return sum, changed
}

// DefaultFeeBasis returns the fee basis used when none is given.
func (w *Wallet) DefaultFeeBasis() *FeeBasis {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.defaultFeeBasis
}

// SetDefaultFeeBasis replaces the default fee basis.
func (w *Wallet) SetDefaultFeeBasis(fb *FeeBasis) error {
	if fb.Tag() != w.tag {
		return fmt.Errorf("%w: %s fee basis", ErrLedgerMismatch, fb.Tag())
	}
	w.mu.Lock()
	old := w.defaultFeeBasis
	w.defaultFeeBasis = fb.Take()
	w.mu.Unlock()
	if old != nil {
		old.Release()
	}
	w.emit(WalletFeeBasisUpdated{FeeBasis: fb})
	return nil
}

// FeeBasisFor builds the ledger fee basis for a network fee tier and a
// cost factor (size, gas limit, ...).
func (w *Wallet) FeeBasisFor(fee NetworkFee, costFactor float64) (*FeeBasis, error) {
	v, err := w.h.FeeBasis.Create(fee.PricePerCostFactor.Value(), costFactor)
	if err != nil {
		return nil, err
	}
	return NewFeeBasis(w.unitForFee, v)
}

// Equal reports whether both wallets hold the same currency for the same
// account on the same network.
func (w *Wallet) Equal(o *Wallet) bool {
	if w == o {
		return true
	}
	if w == nil || o == nil {
		return false
	}
	return w.tag == o.tag &&
		w.network.UIDs() == o.network.UIDs() &&
		w.account.UIDs() == o.account.UIDs() &&
		w.currency.Equal(o.currency)
}

func (w *Wallet) emit(events ...WalletEvent) {
	if w.listener == nil {
		return
	}
	for _, e := range events {
		w.listener(w, e)
	}
}
