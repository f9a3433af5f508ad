package walletkit

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Klingon-tech/walletkit/internal/log"
	"github.com/Klingon-tech/walletkit/pkg/amount"
	"github.com/Klingon-tech/walletkit/pkg/refcount"
)

// AddressScheme selects an address encoding on ledgers with several.
type AddressScheme string

const (
	AddressSchemeNative AddressScheme = "native"
	AddressSchemeLegacy AddressScheme = "legacy"
	AddressSchemeSegwit AddressScheme = "segwit"
)

// SyncMode is how a manager learns about the ledger.
type SyncMode string

const (
	SyncAPIOnly       SyncMode = "api_only"
	SyncAPIWithP2P    SyncMode = "api_with_p2p_send"
	SyncP2PWithAPI    SyncMode = "p2p_with_api_sync"
	SyncP2POnly       SyncMode = "p2p_only"
	defaultSyncMode            = SyncAPIOnly
	defaultAddrScheme          = AddressSchemeNative
)

// NetworkFee is a price per cost factor offered for a confirmation time.
type NetworkFee struct {
	Tier               string
	ConfirmationTime   time.Duration
	PricePerCostFactor amount.Amount
}

// Association ties a currency to the units it is displayed in.
type Association struct {
	Currency    *amount.Currency
	BaseUnit    *amount.Unit
	DefaultUnit *amount.Unit
	Units       []*amount.Unit
}

// NetworkEvent is one of NetworkHeightUpdated, NetworkFeesUpdated or
// NetworkVerifiedHashUpdated.
type NetworkEvent interface{ isNetworkEvent() }

type NetworkHeightUpdated struct{ Height uint64 }
type NetworkFeesUpdated struct{ Fees []NetworkFee }
type NetworkVerifiedHashUpdated struct{ Hash Hash }

func (NetworkHeightUpdated) isNetworkEvent()       {}
func (NetworkFeesUpdated) isNetworkEvent()         {}
func (NetworkVerifiedHashUpdated) isNetworkEvent() {}

// NetworkListener receives network events outside the network lock.
type NetworkListener func(n *Network, e NetworkEvent)

// NetworkSpec describes a network to create.
type NetworkSpec struct {
	UIDs                    string
	Name                    string
	Tag                     Tag
	Mainnet                 bool
	Currency                *amount.Currency
	ConfirmationsUntilFinal uint32
	Height                  uint64
	Associations            []Association
	Fees                    []NetworkFee
	AddressSchemes          []AddressScheme
	DefaultAddressScheme    AddressScheme
	SyncModes               []SyncMode
	DefaultSyncMode         SyncMode
	Params                  map[string]string
	Listener                NetworkListener
}

// Network is one ledger network (mainnet or a testnet): its currencies,
// fees and chain tip. Everything mutable is guarded by mu; handler calls
// are made without holding it.
type Network struct {
	ref                     refcount.Ref
	tag                     Tag
	h                       *Handlers
	uids                    string
	name                    string
	mainnet                 bool
	currency                *amount.Currency
	confirmationsUntilFinal uint32
	addressSchemes          []AddressScheme
	defaultAddressScheme    AddressScheme
	syncModes               []SyncMode
	defaultSyncMode         SyncMode
	params                  map[string]string
	listener                NetworkListener

	mu           sync.RWMutex
	height       uint64
	verifiedHash Hash
	associations []Association
	fees         []NetworkFee
}

// NewNetwork creates a network through the handler set for spec.Tag.
func NewNetwork(reg *Registry, spec NetworkSpec) (*Network, error) {
	h, err := reg.Lookup(spec.Tag)
	if err != nil {
		return nil, err
	}
	if spec.UIDs == "" {
		return nil, fmt.Errorf("network: empty uids")
	}
	if spec.Currency == nil {
		return nil, fmt.Errorf("network %s: no native currency", spec.UIDs)
	}

	n := &Network{
		tag:                     spec.Tag,
		h:                       h,
		uids:                    spec.UIDs,
		name:                    spec.Name,
		mainnet:                 spec.Mainnet,
		currency:                spec.Currency,
		confirmationsUntilFinal: spec.ConfirmationsUntilFinal,
		addressSchemes:          slices.Clone(spec.AddressSchemes),
		defaultAddressScheme:    spec.DefaultAddressScheme,
		syncModes:               slices.Clone(spec.SyncModes),
		defaultSyncMode:         spec.DefaultSyncMode,
		params:                  make(map[string]string, len(spec.Params)),
		listener:                spec.Listener,
		height:                  spec.Height,
	}
	for k, v := range spec.Params {
		n.params[k] = v
	}
	if len(n.addressSchemes) == 0 {
		n.addressSchemes = []AddressScheme{defaultAddrScheme}
	}
	if n.defaultAddressScheme == "" {
		n.defaultAddressScheme = n.addressSchemes[0]
	}
	if len(n.syncModes) == 0 {
		n.syncModes = []SyncMode{defaultSyncMode}
	}
	if n.defaultSyncMode == "" {
		n.defaultSyncMode = n.syncModes[0]
	}
	if !slices.Contains(n.addressSchemes, n.defaultAddressScheme) {
		return nil, fmt.Errorf("network %s: default address scheme %q not supported", spec.UIDs, n.defaultAddressScheme)
	}
	if !slices.Contains(n.syncModes, n.defaultSyncMode) {
		return nil, fmt.Errorf("network %s: default sync mode %q not supported", spec.UIDs, n.defaultSyncMode)
	}

	for _, a := range spec.Associations {
		if err := n.AddAssociation(a); err != nil {
			return nil, err
		}
	}
	if _, ok := n.association(n.currency); !ok {
		return nil, fmt.Errorf("network %s: native currency %s has no units", spec.UIDs, n.currency.Code())
	}
	if len(spec.Fees) > 0 {
		if err := n.SetFees(spec.Fees); err != nil {
			return nil, err
		}
	}
	n.ref.Init(nil)
	return n, nil
}

func (n *Network) Refs() *refcount.Ref { return &n.ref }

// Take adds an owner.
func (n *Network) Take() *Network { return refcount.Take(n) }

// Release drops an owner.
func (n *Network) Release() { n.ref.Release() }

func (n *Network) Tag() Tag                        { return n.tag }
func (n *Network) Handlers() *Handlers             { return n.h }
func (n *Network) UIDs() string                    { return n.uids }
func (n *Network) Name() string                    { return n.name }
func (n *Network) IsMainnet() bool                 { return n.mainnet }
func (n *Network) Currency() *amount.Currency      { return n.currency }
func (n *Network) ConfirmationsUntilFinal() uint32 { return n.confirmationsUntilFinal }

// Param returns a ledger parameter from the network catalog.
func (n *Network) Param(key string) string { return n.params[key] }

func (n *Network) Height() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.height
}

// SetHeight records a new chain tip.
func (n *Network) SetHeight(height uint64) {
	n.mu.Lock()
	changed := n.height != height
	n.height = height
	n.mu.Unlock()
	if changed {
		log.Network.Debug().Str("network", n.uids).Uint64("height", height).Msg("Height updated")
		n.emit(NetworkHeightUpdated{Height: height})
	}
}

func (n *Network) VerifiedBlockHash() Hash {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.verifiedHash
}

func (n *Network) SetVerifiedBlockHash(h Hash) {
	n.mu.Lock()
	changed := n.verifiedHash != h
	n.verifiedHash = h
	n.mu.Unlock()
	if changed {
		n.emit(NetworkVerifiedHashUpdated{Hash: h})
	}
}

// AddAssociation adds or replaces the units for a currency. A second
// association for the native currency is a contract violation.
func (n *Network) AddAssociation(a Association) error {
	if a.Currency == nil || a.BaseUnit == nil {
		return fmt.Errorf("network %s: association without currency or base unit", n.uids)
	}
	if a.DefaultUnit == nil {
		a.DefaultUnit = a.BaseUnit
	}
	for _, u := range append([]*amount.Unit{a.BaseUnit, a.DefaultUnit}, a.Units...) {
		if !u.Currency().Equal(a.Currency) {
			return fmt.Errorf("network %s: unit %s is not a %s unit", n.uids, u.UIDs(), a.Currency.Code())
		}
	}
	if !slices.Contains(a.Units, a.BaseUnit) {
		a.Units = append([]*amount.Unit{a.BaseUnit}, a.Units...)
	}
	if !slices.Contains(a.Units, a.DefaultUnit) {
		a.Units = append(a.Units, a.DefaultUnit)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for i, existing := range n.associations {
		if existing.Currency.Equal(a.Currency) {
			if a.Currency.Equal(n.currency) {
				violate("network %s: second association for native currency %s", n.uids, a.Currency.Code())
			}
			n.associations[i] = a
			return nil
		}
	}
	n.associations = append(n.associations, a)
	return nil
}

func (n *Network) association(c *amount.Currency) (Association, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, a := range n.associations {
		if a.Currency.Equal(c) {
			return a, true
		}
	}
	return Association{}, false
}

// Currencies lists every associated currency, native first.
func (n *Network) Currencies() []*amount.Currency {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := []*amount.Currency{n.currency}
	for _, a := range n.associations {
		if !a.Currency.Equal(n.currency) {
			out = append(out, a.Currency)
		}
	}
	return out
}

func (n *Network) HasCurrency(c *amount.Currency) bool {
	_, ok := n.association(c)
	return ok
}

// CurrencyByCode finds an associated currency by code, case-insensitively.
func (n *Network) CurrencyByCode(code string) (*amount.Currency, error) {
	code = strings.ToLower(code)
	for _, c := range n.Currencies() {
		if c.Code() == code {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: currency %q on %s", ErrNotFound, code, n.uids)
}

// CurrencyByIssuer finds a token currency by issuer (contract address).
func (n *Network) CurrencyByIssuer(issuer string) (*amount.Currency, error) {
	for _, c := range n.Currencies() {
		if c.Issuer() != "" && strings.EqualFold(c.Issuer(), issuer) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: issuer %q on %s", ErrNotFound, issuer, n.uids)
}

func (n *Network) BaseUnit(c *amount.Currency) (*amount.Unit, error) {
	a, ok := n.association(c)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrCurrencyMismatch, c, n.uids)
	}
	return a.BaseUnit, nil
}

func (n *Network) DefaultUnit(c *amount.Currency) (*amount.Unit, error) {
	a, ok := n.association(c)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrCurrencyMismatch, c, n.uids)
	}
	return a.DefaultUnit, nil
}

func (n *Network) Units(c *amount.Currency) []*amount.Unit {
	a, _ := n.association(c)
	return slices.Clone(a.Units)
}

// NativeBaseUnit returns the base unit of the native currency; fees are
// expressed in it.
func (n *Network) NativeBaseUnit() *amount.Unit {
	a, ok := n.association(n.currency)
	if !ok {
		violate("network %s without native association", n.uids)
	}
	return a.BaseUnit
}

// Fees returns a copy of the current fee list.
func (n *Network) Fees() []NetworkFee {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Clone(n.fees)
}

// SetFees replaces the whole fee list at once. Every fee must be priced in
// the native currency.
func (n *Network) SetFees(fees []NetworkFee) error {
	if len(fees) == 0 {
		return fmt.Errorf("network %s: empty fee list", n.uids)
	}
	for _, f := range fees {
		if !f.PricePerCostFactor.Currency().Equal(n.currency) {
			return fmt.Errorf("%w: fee tier %q not in %s", ErrCurrencyMismatch, f.Tier, n.currency.Code())
		}
		if f.PricePerCostFactor.IsNegative() {
			return fmt.Errorf("%w: fee tier %q", ErrNegativeFee, f.Tier)
		}
	}
	fresh := slices.Clone(fees)
	slices.SortStableFunc(fresh, func(a, b NetworkFee) int {
		return cmp.Compare(a.ConfirmationTime, b.ConfirmationTime)
	})

	n.mu.Lock()
	n.fees = fresh
	n.mu.Unlock()

	log.Network.Debug().Str("network", n.uids).Int("tiers", len(fresh)).Msg("Fees replaced")
	n.emit(NetworkFeesUpdated{Fees: slices.Clone(fresh)})
	return nil
}

// MinimumFee returns the cheapest fee tier.
func (n *Network) MinimumFee() (NetworkFee, error) {
	fees := n.Fees()
	if len(fees) == 0 {
		return NetworkFee{}, fmt.Errorf("%w: no fees on %s", ErrNotFound, n.uids)
	}
	cheapest := fees[0]
	for _, f := range fees[1:] {
		if c, err := f.PricePerCostFactor.Compare(cheapest.PricePerCostFactor); err == nil && c < 0 {
			cheapest = f
		}
	}
	return cheapest, nil
}

func (n *Network) AddressSchemes() []AddressScheme     { return slices.Clone(n.addressSchemes) }
func (n *Network) DefaultAddressScheme() AddressScheme { return n.defaultAddressScheme }
func (n *Network) SupportsAddressScheme(s AddressScheme) bool {
	return slices.Contains(n.addressSchemes, s)
}

func (n *Network) SyncModes() []SyncMode     { return slices.Clone(n.syncModes) }
func (n *Network) DefaultSyncMode() SyncMode { return n.defaultSyncMode }
func (n *Network) SupportsSyncMode(m SyncMode) bool {
	return slices.Contains(n.syncModes, m)
}

// CreateAddress parses s. In non-strict mode the sentinel strings "unknown"
// and "__fee__" yield the reserved sentinel addresses.
func (n *Network) CreateAddress(s string, strict bool) (*Address, error) {
	switch s {
	case FeeAddressString, UnknownAddressString:
		if strict {
			return nil, fmt.Errorf("%w: sentinel %q in strict mode", ErrInvalidAddress, s)
		}
		if s == FeeAddressString {
			return NewAddress(n.h.Address.Reserved(SentinelFee)), nil
		}
		return NewAddress(n.h.Address.Reserved(SentinelUnknown)), nil
	}
	v, err := n.h.Network.CreateAddress(n, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q on %s: %v", ErrInvalidAddress, s, n.uids, err)
	}
	a := NewAddress(v)
	if strict && (a.IsFee() || a.IsUnknown()) {
		a.Release()
		return nil, fmt.Errorf("%w: %q is a reserved address", ErrInvalidAddress, s)
	}
	return a, nil
}

// CreateHash parses a hash in the ledger's textual form.
func (n *Network) CreateHash(s string) (Hash, error) {
	h, err := n.h.Network.CreateHash(n, s)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %q on %s: %v", ErrInvalidHash, s, n.uids, err)
	}
	return h, nil
}

// EncodeHash renders h in the ledger's textual form.
func (n *Network) EncodeHash(h Hash) string {
	return n.h.Network.EncodeHash(n, h)
}

// BlockNumberAtOrBeforeTimestamp estimates the last block produced no later
// than ts. ok is false when the ledger cannot tell.
func (n *Network) BlockNumberAtOrBeforeTimestamp(ts time.Time) (uint64, bool) {
	return n.h.Network.BlockNumberAtOrBeforeTimestamp(n, ts)
}

func (n *Network) IsAccountInitialized(a *Account) bool {
	return n.h.Network.IsAccountInitialized(n, a)
}

// AccountInitializationData returns the bytes a host must publish to create
// the account on ledgers that need an explicit creation step.
func (n *Network) AccountInitializationData(a *Account) ([]byte, error) {
	if a.Tag() != n.tag {
		return nil, ErrLedgerMismatch
	}
	return n.h.Network.AccountInitializationData(n, a)
}

// InitializeAccount consumes the ledger's answer to account creation.
func (n *Network) InitializeAccount(a *Account, data []byte) error {
	if a.Tag() != n.tag {
		return ErrLedgerMismatch
	}
	return n.h.Network.InitializeAccount(n, a, data)
}

func (n *Network) emit(e NetworkEvent) {
	if n.listener != nil {
		n.listener(n, e)
	}
}

func (n *Network) String() string { return n.uids }
