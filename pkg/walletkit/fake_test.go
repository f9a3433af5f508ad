package walletkit

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"github.com/Klingon-tech/walletkit/pkg/amount"
)

// A minimal in-memory ledger used to exercise the generic entities.

const fakeTag = TagRipple

type fakeAddr struct{ b [16]byte }

func newFakeAddr(s string) fakeAddr {
	var a fakeAddr
	copy(a.b[:], s)
	return a
}

func (a fakeAddr) Tag() Tag       { return fakeTag }
func (a fakeAddr) String() string { return strings.TrimRight(string(a.b[:]), "\x00") }
func (a fakeAddr) Bytes() []byte  { return append([]byte(nil), a.b[:]...) }
func (a fakeAddr) Equal(o AddressValue) bool {
	other, ok := o.(fakeAddr)
	return ok && a.b == other.b
}

type fakeKey struct {
	name   string
	pub    []byte
	zeroed bool
}

func (k *fakeKey) Tag() Tag              { return fakeTag }
func (k *fakeKey) PublicKey() []byte     { return k.pub }
func (k *fakeKey) Address() AddressValue { return newFakeAddr(k.name) }
func (k *fakeKey) SetAddress(a AddressValue) error {
	k.name = a.String()
	return nil
}
func (k *fakeKey) HasAddress(a AddressValue) bool {
	return a.Equal(newFakeAddr(k.name)) || a.Equal(newFakeAddr(k.name+"-change"))
}
func (k *fakeKey) Addresses() []AddressValue {
	return []AddressValue{newFakeAddr(k.name), newFakeAddr(k.name + "-change")}
}
func (k *fakeKey) Serialize() []byte { return []byte(k.name) }
func (k *fakeKey) Zero() {
	for i := range k.pub {
		k.pub[i] = 0
	}
	k.zeroed = true
}

type fakeTx struct {
	hash   []byte
	target string
	signed bool
}

func (tx *fakeTx) Tag() Tag { return fakeTag }
func (tx *fakeTx) Hash() (Hash, bool) {
	if len(tx.hash) == 0 {
		return Hash{}, false
	}
	return NewHash(fakeTag, tx.hash), true
}
func (tx *fakeTx) Identifier() string { return hex.EncodeToString(tx.hash) }
func (tx *fakeTx) Signed() bool       { return tx.signed }
func (tx *fakeTx) SerializeForSubmission() ([]byte, error) {
	return append([]byte("tx:"), tx.hash...), nil
}
func (tx *fakeTx) SerializeForFeeEstimation() ([]byte, error) {
	return []byte("estimate:" + tx.target), nil
}
func (tx *fakeTx) Equal(o TransferValue) bool {
	other, ok := o.(*fakeTx)
	return ok && len(tx.hash) > 0 && bytes.Equal(tx.hash, other.hash)
}
func (tx *fakeTx) SetHash(h Hash) error {
	tx.hash = h.Bytes()
	return nil
}

type fakeNetworkHandlers struct{}

func (fakeNetworkHandlers) CreateAddress(_ *Network, s string) (AddressValue, error) {
	if s == "" || strings.HasPrefix(s, "_") || len(s) > 16 {
		return nil, errors.New("bad fake address")
	}
	return newFakeAddr(s), nil
}
func (fakeNetworkHandlers) CreateHash(_ *Network, s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, err
	}
	return NewHash(fakeTag, b), nil
}
func (fakeNetworkHandlers) EncodeHash(_ *Network, h Hash) string { return "0x" + h.String() }
func (fakeNetworkHandlers) BlockNumberAtOrBeforeTimestamp(*Network, time.Time) (uint64, bool) {
	return 0, false
}
func (fakeNetworkHandlers) IsAccountInitialized(*Network, *Account) bool { return true }
func (fakeNetworkHandlers) AccountInitializationData(*Network, *Account) ([]byte, error) {
	return nil, nil
}
func (fakeNetworkHandlers) InitializeAccount(*Network, *Account, []byte) error { return nil }

type fakeAccountHandlers struct{}

func (fakeAccountHandlers) CreateWithSeed(seed []byte) (AccountKey, error) {
	return &fakeKey{name: "acct-" + hex.EncodeToString(seed[:2]), pub: append([]byte(nil), seed[:8]...)}, nil
}
func (fakeAccountHandlers) CreateWithSerialization(data []byte) (AccountKey, error) {
	if len(data) == 0 {
		return nil, ErrInvalidSerialization
	}
	return &fakeKey{name: string(data), pub: data}, nil
}
func (fakeAccountHandlers) SignTransfer(_ AccountKey, v TransferValue, seed []byte) error {
	tx := v.(*fakeTx)
	tx.signed = true
	tx.hash = append([]byte("signed:"), seed[0], seed[1])
	return nil
}

type fakeAddressHandlers struct{}

func (fakeAddressHandlers) Reserved(kind Sentinel) AddressValue {
	var a fakeAddr
	copy(a.b[:], ReservedAddressBytes(kind, len(a.b)))
	return a
}

type fakeTransferHandlers struct{ byTarget bool }

func (fakeTransferHandlers) FromBundle(_ *Network, b *TransferBundle) (TransferValue, error) {
	h, err := hex.DecodeString(b.Hash)
	if err != nil {
		return nil, err
	}
	return &fakeTx{hash: h, target: b.To, signed: true}, nil
}
func (f fakeTransferHandlers) MatchByTarget() bool { return f.byTarget }

type fakeWalletHandlers struct{}

func (fakeWalletHandlers) NewData(*Wallet) WalletData { return nil }
func (fakeWalletHandlers) Address(w *Wallet, _ AddressScheme) (AddressValue, error) {
	return w.Account().Key().Address(), nil
}
func (fakeWalletHandlers) HasAddress(w *Wallet, a AddressValue) bool {
	return w.Account().Key().HasAddress(a)
}
func (fakeWalletHandlers) AddressesForRecovery(w *Wallet) []AddressValue {
	return w.Account().Key().Addresses()
}
func (fakeWalletHandlers) TransferAttributes(*Wallet, *Address) []Attribute {
	return []Attribute{{Key: "memo"}}
}
func (fakeWalletHandlers) ValidateAttribute(_ *Wallet, a Attribute) error {
	if !a.KeyIs("memo") {
		return &AttributeError{Key: a.Key, Kind: RelationshipInconsistency}
	}
	if len(a.Value) > 10 {
		return &AttributeError{Key: a.Key, Kind: MismatchedType}
	}
	return nil
}
func (fakeWalletHandlers) CreateTransfer(w *Wallet, target *Address, amt amount.Amount, _ *FeeBasis, attrs []Attribute) (*TransferDraft, error) {
	return &TransferDraft{
		Value:      &fakeTx{target: target.String()},
		Source:     w.Account().Key().Address(),
		Target:     target.Value(),
		Amount:     amt.Value(),
		Attributes: attrs,
	}, nil
}
func (fakeWalletHandlers) CreateMultiOutputTransfer(*Wallet, []TransferOutput, *FeeBasis) (*TransferDraft, error) {
	return nil, ErrUnsupported
}

type fakeFeeBasisHandlers struct{}

func (fakeFeeBasisHandlers) Create(price *uint256.Int, costFactor float64) (FeeBasisValue, error) {
	return NewFixedFeeBasis(fakeTag, price, costFactor)
}

func fakeHandlers(byTarget bool) *Handlers {
	return &Handlers{
		Tag:      fakeTag,
		Network:  fakeNetworkHandlers{},
		Account:  fakeAccountHandlers{},
		Address:  fakeAddressHandlers{},
		Transfer: fakeTransferHandlers{byTarget: byTarget},
		Wallet:   fakeWalletHandlers{},
		FeeBasis: fakeFeeBasisHandlers{},
	}
}

type fakeEnv struct {
	reg      *Registry
	currency *amount.Currency
	unit     *amount.Unit
	network  *Network
	account  *Account
	wallet   *Wallet
	events   []WalletEvent
}

func testSeed(b byte) []byte {
	seed := make([]byte, SeedSize)
	for i := range seed {
		seed[i] = b + byte(i)
	}
	return seed
}

func newFakeEnv(t *testing.T, byTarget bool) *fakeEnv {
	t.Helper()
	env := &fakeEnv{reg: NewRegistry()}
	env.reg.Install(fakeHandlers(byTarget))

	env.currency = amount.NewCurrency("fake-mainnet:__native__", "Fake", "FAK", amount.TypeNative, "")
	env.unit = amount.NewBaseUnit(env.currency, "fak:base", "base", "f")
	whole := amount.NewUnit(env.currency, "fak:whole", "fake", "FAK", env.unit, 2)

	n, err := NewNetwork(env.reg, NetworkSpec{
		UIDs:     "fake-mainnet",
		Name:     "Fake",
		Tag:      fakeTag,
		Mainnet:  true,
		Currency: env.currency,
		Associations: []Association{{
			Currency:    env.currency,
			BaseUnit:    env.unit,
			DefaultUnit: whole,
		}},
		Fees: []NetworkFee{
			{Tier: "fast", ConfirmationTime: time.Minute, PricePerCostFactor: amount.FromUint64(env.unit, 10)},
			{Tier: "slow", ConfirmationTime: time.Hour, PricePerCostFactor: amount.FromUint64(env.unit, 2)},
		},
	})
	if err != nil {
		t.Fatalf("NewNetwork() error: %v", err)
	}
	env.network = n

	a, err := CreateAccountWithSeed(env.reg, fakeTag, testSeed(1))
	if err != nil {
		t.Fatalf("CreateAccountWithSeed() error: %v", err)
	}
	env.account = a

	w, err := NewWallet(n, a, env.currency, WithWalletListener(func(_ *Wallet, e WalletEvent) {
		env.events = append(env.events, e)
	}))
	if err != nil {
		t.Fatalf("NewWallet() error: %v", err)
	}
	env.wallet = w
	return env
}

func (env *fakeEnv) addr(t *testing.T, s string) *Address {
	t.Helper()
	a, err := env.network.CreateAddress(s, false)
	if err != nil {
		t.Fatalf("CreateAddress(%q) error: %v", s, err)
	}
	return a
}

func (env *fakeEnv) feeBasis(t *testing.T, fee uint64) *FeeBasis {
	t.Helper()
	fb, err := CreateFeeBasis(fakeTag, amount.FromUint64(env.unit, fee), 1)
	if err != nil {
		t.Fatalf("CreateFeeBasis() error: %v", err)
	}
	return fb
}

// transfer builds a transfer as a client would report it.
func (env *fakeEnv) transfer(t *testing.T, hash, from, to string, amt, fee uint64, state TransferState) *Transfer {
	t.Helper()
	d := &TransferDraft{
		Value:  &fakeTx{hash: []byte(hash), target: to, signed: true},
		Source: env.addr(t, from).Value(),
		Target: env.addr(t, to).Value(),
		Amount: uint256.NewInt(amt),
		State:  state,
	}
	if fee > 0 {
		d.FeeBasis = env.feeBasis(t, fee).Value()
	}
	tr, err := newTransfer(env.wallet.h, d, env.unit, env.unit, env.wallet.ownsValue)
	if err != nil {
		t.Fatalf("newTransfer() error: %v", err)
	}
	return tr
}

func (env *fakeEnv) own() string { return env.account.Key().Address().String() }

func included(block, index uint64, ts int64) StateIncluded {
	return StateIncluded{BlockNumber: block, TransactionIndex: index, Timestamp: time.Unix(ts, 0), Success: true}
}

func expectContractPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected contract violation panic")
		}
		if _, ok := r.(*ContractError); !ok {
			t.Fatalf("panic value %T (%v), want *ContractError", r, r)
		}
	}()
	fn()
}
