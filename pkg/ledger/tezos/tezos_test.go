package tezos

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/blake2b"

	"github.com/Klingon-tech/walletkit/pkg/amount"
	"github.com/Klingon-tech/walletkit/pkg/derive"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

const (
	// tz1 of the public key 00 01 02 ... 1f.
	foreign   = "tz1bqaaHdXY8sx6SLQUsQMuheL1SiGGvhwmF"
	nullKT1   = "KT18amZmM5W7qDWVt2pH6uj7sCEd3kbzLrHT"
	testBlock = "BKqoHEY3C15u8zdGwi9Hhj3ArCz2Q8sRQuHVtcWZqUPopsfNZfh"
)

func testSeed(b byte) []byte {
	seed := make([]byte, derive.SeedSize)
	for i := range seed {
		seed[i] = b + byte(i*3)
	}
	return seed
}

type testEnv struct {
	reg     *walletkit.Registry
	mutez   *amount.Unit
	network *walletkit.Network
	account *walletkit.Account
	wallet  *walletkit.Wallet
}

func newTestEnv(t *testing.T, branch bool) *testEnv {
	t.Helper()
	reg := walletkit.NewRegistry()
	Install(reg)
	xtz := amount.NewCurrency("tezos-ghostnet:__native__", "Tezos", "XTZ", amount.TypeNative, "")
	mutez := amount.NewBaseUnit(xtz, "tezos-ghostnet:mutez", "mutez", "mutez")
	n, err := walletkit.NewNetwork(reg, walletkit.NetworkSpec{
		UIDs:         "tezos-ghostnet",
		Name:         "Ghostnet",
		Tag:          Tag,
		Currency:     xtz,
		Associations: []walletkit.Association{{Currency: xtz, BaseUnit: mutez}},
		Fees: []walletkit.NetworkFee{
			{Tier: "normal", ConfirmationTime: 30 * time.Second, PricePerCostFactor: amount.FromUint64(mutez, 1420)},
		},
	})
	if err != nil {
		t.Fatalf("NewNetwork() error: %v", err)
	}
	if branch {
		h, err := ParseBlockHash(testBlock)
		if err != nil {
			t.Fatalf("ParseBlockHash() error: %v", err)
		}
		n.SetVerifiedBlockHash(h)
	}
	a, err := walletkit.CreateAccountWithSeed(reg, Tag, testSeed(9))
	if err != nil {
		t.Fatalf("CreateAccountWithSeed() error: %v", err)
	}
	w, err := walletkit.NewWallet(n, a, xtz)
	if err != nil {
		t.Fatalf("NewWallet() error: %v", err)
	}
	fb, err := w.FeeBasisFor(n.Fees()[0], 1)
	if err != nil {
		t.Fatalf("FeeBasisFor() error: %v", err)
	}
	if err := w.SetDefaultFeeBasis(fb); err != nil {
		t.Fatalf("SetDefaultFeeBasis() error: %v", err)
	}
	return &testEnv{reg: reg, mutez: mutez, network: n, account: a, wallet: w}
}

func (e *testEnv) own() string { return e.account.Address().String() }

func (e *testEnv) addr(t *testing.T, s string) *walletkit.Address {
	t.Helper()
	a, err := e.network.CreateAddress(s, true)
	if err != nil {
		t.Fatalf("CreateAddress(%q) error: %v", s, err)
	}
	return a
}

func (e *testEnv) observe(t *testing.T, salt byte, from, to, value string) {
	t.Helper()
	tr, err := e.wallet.TransferFromBundle(&walletkit.TransferBundle{
		Status:      walletkit.BundleConfirmed,
		Hash:        encodeCheck(prefixOperation, bytes.Repeat([]byte{salt}, 32)),
		From:        from,
		To:          to,
		Amount:      value,
		BlockNumber: 10,
	})
	if err != nil {
		t.Fatalf("TransferFromBundle() error: %v", err)
	}
	e.wallet.AddTransfer(tr)
}

func forgedOf(t *testing.T, tr *walletkit.Transfer) []byte {
	t.Helper()
	tv, ok := tr.Value().(*transferValue)
	if !ok || tv.forged == nil {
		t.Fatal("transfer holds no forged operation")
	}
	return tv.forged
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("DecodeString(%q) error: %v", s, err)
	}
	return b
}

func TestAppendZarith(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "00"},
		{127, "7f"},
		{128, "8001"},
		{300, "ac02"},
		{1420, "8c0b"},
		{1_000_000, "c0843d"},
	}
	for _, tt := range tests {
		if got := hex.EncodeToString(appendZarith64(nil, tt.in)); got != tt.want {
			t.Errorf("appendZarith(%d) = %s, want %s", tt.in, got, tt.want)
		}
	}
	big := new(uint256.Int).Lsh(uint256.NewInt(1), 70)
	if got := appendZarith(nil, big); len(got) != 11 || got[10] != 0x01 {
		t.Errorf("appendZarith(2^70) = %x", got)
	}
}

func TestAddresses(t *testing.T) {
	pub := make([]byte, 32)
	for i := range pub {
		pub[i] = byte(i)
	}
	if got := pubKeyHash(pub).String(); got != foreign {
		t.Fatalf("pubKeyHash() = %s, want %s", got, foreign)
	}

	e := newTestEnv(t, false)
	for _, s := range []string{foreign, nullKT1} {
		a := e.addr(t, s)
		if a.String() != s {
			t.Errorf("CreateAddress(%s).String() = %s", s, a)
		}
	}
	bad := []string{"", "tz1", "tz4bqaaHdXY8sx6SLQUsQMuheL1SiGGvhwmF", foreign[:len(foreign)-1] + "G", "KT1" + foreign[3:]}
	for _, s := range bad {
		if _, err := e.network.CreateAddress(s, true); !errors.Is(err, walletkit.ErrInvalidAddress) {
			t.Errorf("CreateAddress(%q) error = %v, want ErrInvalidAddress", s, err)
		}
	}

	own := e.account.Address().String()
	if own[:3] != "tz1" || len(own) != 36 {
		t.Fatalf("account address = %s", own)
	}
	restored, err := walletkit.CreateAccountWithSerialization(e.reg, Tag, e.account.Serialization())
	if err != nil {
		t.Fatalf("CreateAccountWithSerialization() error: %v", err)
	}
	if restored.Address().String() != own {
		t.Fatal("restored address differs")
	}
	if _, err := walletkit.CreateAccountWithSerialization(e.reg, Tag, []byte{1, 2}); !errors.Is(err, walletkit.ErrInvalidSerialization) {
		t.Fatalf("short serialization error = %v", err)
	}
}

func TestNetwork_Hashes(t *testing.T) {
	e := newTestEnv(t, false)
	const op = "onn2m8bNVq5AAhj62Hn4Mfx9PabZ9MS9gRyP3kjRsWZy7jrUTTT"
	h, err := e.network.CreateHash(op)
	if err != nil {
		t.Fatalf("CreateHash() error: %v", err)
	}
	if got := h.String(); got != "11c0e79b71c3976ccd0c02d1310e2516c08edc9d8b6f57ccd680d63a4d8e72da" {
		t.Fatalf("hash bytes = %s", got)
	}
	if e.network.EncodeHash(h) != op {
		t.Fatalf("EncodeHash() = %s", e.network.EncodeHash(h))
	}
	if _, err := e.network.CreateHash(testBlock); err == nil {
		t.Fatal("CreateHash(block hash) succeeded")
	}
	if _, err := ParseBlockHash(op); !errors.Is(err, walletkit.ErrInvalidHash) {
		t.Fatalf("ParseBlockHash(operation) error = %v", err)
	}
}

func TestWallet_TransferWithReveal(t *testing.T) {
	e := newTestEnv(t, true)
	e.observe(t, 1, foreign, e.own(), "10000000")

	tr, err := e.wallet.CreateTransfer(e.addr(t, foreign), amount.FromUint64(e.mutez, 1_000_000), nil, nil)
	if err != nil {
		t.Fatalf("CreateTransfer() error: %v", err)
	}
	fee, ok := tr.Fee()
	if !ok || fee.Value().Uint64() != 2*1420 {
		t.Fatalf("Fee() = %v, %v; want reveal and transaction fees", fee, ok)
	}

	key := e.account.Key().(*accountKey)
	branch, _ := ParseBlockHash(testBlock)
	var want []byte
	want = append(want, branch.Bytes()...)
	want = append(want, tagReveal, 0x00)
	want = append(want, key.addr.hash[:]...)
	want = append(want, mustHex(t, "8c0b"+"01"+"904e"+"00"+"00")...)
	want = append(want, key.pub...)
	want = append(want, tagTransaction, 0x00)
	want = append(want, key.addr.hash[:]...)
	want = append(want, mustHex(t, "8c0b"+"02"+"80bd3f"+"e0d403"+"c0843d"+"0000")...)
	want = append(want, e.addr(t, foreign).Value().(address).hash[:]...)
	want = append(want, 0x00)
	if got := forgedOf(t, tr); !bytes.Equal(got, want) {
		t.Fatalf("forged =\n%x\nwant\n%x", got, want)
	}

	if _, err := tr.SerializeForSubmission(); !errors.Is(err, walletkit.ErrNotSigned) {
		t.Fatalf("SerializeForSubmission() error = %v, want ErrNotSigned", err)
	}
	est, err := tr.SerializeForFeeEstimation()
	if err != nil || len(est) != len(want)+ed25519.SignatureSize {
		t.Fatalf("SerializeForFeeEstimation() len %d, %v", len(est), err)
	}

	if err := e.account.SignTransferWithSeed(tr, testSeed(10)); !errors.Is(err, walletkit.ErrInvalidSeed) {
		t.Fatalf("SignTransferWithSeed(wrong) error = %v, want ErrInvalidSeed", err)
	}
	if err := e.account.SignTransferWithSeed(tr, testSeed(9)); err != nil {
		t.Fatalf("SignTransferWithSeed() error: %v", err)
	}
	signed, err := tr.SerializeForSubmission()
	if err != nil {
		t.Fatalf("SerializeForSubmission() error: %v", err)
	}
	digest := blake2b.Sum256(append([]byte{watermarkOperation}, want...))
	if !ed25519.Verify(key.pub, digest[:], signed[len(want):]) {
		t.Fatal("signature does not verify")
	}
	sum := blake2b.Sum256(signed)
	if h, ok := tr.Hash(); !ok || !bytes.Equal(h.Bytes(), sum[:]) {
		t.Fatal("Hash() is not blake2b of the signed operation")
	}
	if id := tr.Identifier(); id != encodeCheck(prefixOperation, sum[:]) || id[0] != 'o' {
		t.Fatalf("Identifier() = %s", id)
	}
}

func TestWallet_NoRevealAfterSend(t *testing.T) {
	e := newTestEnv(t, true)
	e.observe(t, 1, foreign, e.own(), "10000000")
	e.observe(t, 2, e.own(), foreign, "5")

	tr, err := e.wallet.CreateTransfer(e.addr(t, foreign), amount.FromUint64(e.mutez, 10), nil, nil)
	if err != nil {
		t.Fatalf("CreateTransfer() error: %v", err)
	}
	if got := forgedOf(t, tr)[32]; got != tagTransaction {
		t.Fatalf("first operation tag = %d, want transaction", got)
	}
	if fee, _ := tr.Fee(); fee.Value().Uint64() != 1420 {
		t.Fatalf("Fee() = %v, want 1420", fee)
	}
}

func TestWallet_Delegation(t *testing.T) {
	e := newTestEnv(t, true)
	e.observe(t, 1, foreign, e.own(), "10000000")
	e.observe(t, 2, e.own(), foreign, "5")
	delegate := []walletkit.Attribute{{Key: AttributeDelegationOp, Value: "1"}}

	tr, err := e.wallet.CreateTransfer(e.addr(t, foreign), amount.Zero(e.mutez), nil, delegate)
	if err != nil {
		t.Fatalf("CreateTransfer(delegation) error: %v", err)
	}
	forged := forgedOf(t, tr)
	if forged[32] != tagDelegation {
		t.Fatalf("operation tag = %d, want delegation", forged[32])
	}
	tail := append([]byte{0xff, 0x00}, e.addr(t, foreign).Value().(address).hash[:]...)
	if !bytes.HasSuffix(forged, tail) {
		t.Fatalf("delegation does not end with the delegate: %x", forged)
	}
	if tr.Direction() != walletkit.DirectionSent {
		t.Fatalf("Direction() = %s, want sent", tr.Direction())
	}

	self, err := e.wallet.CreateTransfer(e.addr(t, e.own()), amount.Zero(e.mutez), nil, delegate)
	if err != nil {
		t.Fatalf("CreateTransfer(self delegation) error: %v", err)
	}
	if self.Direction() != walletkit.DirectionRecovered {
		t.Fatalf("self delegation Direction() = %s, want recovered", self.Direction())
	}

	if _, err := e.wallet.CreateTransfer(e.addr(t, nullKT1), amount.Zero(e.mutez), nil, delegate); !errors.Is(err, walletkit.ErrInvalidAddress) {
		t.Fatalf("delegation to contract error = %v, want ErrInvalidAddress", err)
	}
	if _, err := e.wallet.CreateTransfer(e.addr(t, foreign), amount.FromUint64(e.mutez, 1), nil, delegate); !errors.Is(err, walletkit.ErrUnsupported) {
		t.Fatalf("delegation with amount error = %v, want ErrUnsupported", err)
	}
}

func TestWallet_Attributes(t *testing.T) {
	e := newTestEnv(t, false)
	tests := []struct {
		attr walletkit.Attribute
		kind walletkit.AttributeErrorKind
	}{
		{walletkit.Attribute{Key: "DelegationOp", Value: "1"}, 0},
		{walletkit.Attribute{Key: "delegationop", Value: "0"}, 0},
		{walletkit.Attribute{Key: "DelegationOp", Value: "2"}, walletkit.MismatchedType},
		{walletkit.Attribute{Key: "DelegationOp", Value: "yes"}, walletkit.MismatchedType},
		{walletkit.Attribute{Key: "delegate", Value: foreign}, 0},
		{walletkit.Attribute{Key: "type", Value: "transaction"}, 0},
		{walletkit.Attribute{Key: "memo", Value: "x"}, walletkit.RelationshipInconsistency},
	}
	for _, tt := range tests {
		err := e.wallet.ValidateAttribute(tt.attr)
		if tt.kind == 0 {
			if err != nil {
				t.Errorf("ValidateAttribute(%s=%s) error: %v", tt.attr.Key, tt.attr.Value, err)
			}
			continue
		}
		var ae *walletkit.AttributeError
		if !errors.As(err, &ae) || ae.Kind != tt.kind {
			t.Errorf("ValidateAttribute(%s=%s) error = %v, want %v", tt.attr.Key, tt.attr.Value, err, tt.kind)
		}
	}
}

func TestWallet_Failures(t *testing.T) {
	e := newTestEnv(t, false)
	e.observe(t, 1, foreign, e.own(), "1000")
	if _, err := e.wallet.CreateTransfer(e.addr(t, foreign), amount.FromUint64(e.mutez, 1), nil, nil); !errors.Is(err, ErrNoBranch) {
		t.Fatalf("CreateTransfer() without branch error = %v, want ErrNoBranch", err)
	}

	e = newTestEnv(t, true)
	e.observe(t, 1, foreign, e.own(), "3000")
	// Reveal and transaction fees leave 160 for the amount.
	if _, err := e.wallet.CreateTransfer(e.addr(t, foreign), amount.FromUint64(e.mutez, 200), nil, nil); !errors.Is(err, walletkit.ErrInsufficientFunds) {
		t.Fatalf("CreateTransfer(over) error = %v, want ErrInsufficientFunds", err)
	}
	if _, err := e.wallet.CreateTransfer(e.addr(t, foreign), amount.FromUint64(e.mutez, 160), nil, nil); err != nil {
		t.Fatalf("CreateTransfer(exact) error: %v", err)
	}
}

func TestNewFeeBasis(t *testing.T) {
	e := newTestEnv(t, true)
	fb, err := NewFeeBasis(e.wallet, 1000, 0.2, 1500, 0, 41)
	if err != nil {
		t.Fatalf("NewFeeBasis() error: %v", err)
	}
	// (100 + 150 + 200) × 1.05 = 472.5
	if fee, _ := fb.Fee(); fee.Value().Uint64() != 472 {
		t.Fatalf("Fee() = %v, want 472", fee)
	}
	v := fb.Value().(*feeBasis)
	if v.storageLimit != MinStorageLimit || v.counter != 41 {
		t.Fatalf("fee basis = %+v", v)
	}

	e.observe(t, 1, foreign, e.own(), "10000000")
	tr, err := e.wallet.CreateTransfer(e.addr(t, foreign), amount.FromUint64(e.mutez, 1), fb, nil)
	if err != nil {
		t.Fatalf("CreateTransfer() error: %v", err)
	}
	// Reveal takes counter 42, the transaction 43.
	forged := forgedOf(t, tr)
	if !bytes.Contains(forged, []byte{0x8c, 0x0b, 42}) || !bytes.Contains(forged, []byte{0xd8, 0x03, 43}) {
		t.Fatalf("counters not found in %x", forged)
	}
}

func TestWallet_CounterFollowsHistory(t *testing.T) {
	e := newTestEnv(t, true)
	e.observe(t, 1, foreign, e.own(), "10000000")
	for salt := byte(2); salt <= 4; salt++ {
		e.observe(t, salt, e.own(), foreign, "5")
	}
	counterOf := func(tr *walletkit.Transfer) uint64 {
		t.Helper()
		return tr.Value().(*transferValue).counter
	}

	// A reveal and three sends consumed counters 1 through 4.
	first, err := e.wallet.CreateTransfer(e.addr(t, foreign), amount.FromUint64(e.mutez, 1), nil, nil)
	if err != nil {
		t.Fatalf("CreateTransfer() error: %v", err)
	}
	if got := counterOf(first); got != 5 {
		t.Fatalf("counter = %d, want 5", got)
	}
	if forged := forgedOf(t, first); forged[32] != tagTransaction {
		t.Fatalf("operation tag = %d, want transaction", forged[32])
	}

	e.wallet.AddTransfer(first)
	second, err := e.wallet.CreateTransfer(e.addr(t, foreign), amount.FromUint64(e.mutez, 1), nil, nil)
	if err != nil {
		t.Fatalf("CreateTransfer() error: %v", err)
	}
	if got := counterOf(second); got != 6 {
		t.Fatalf("counter after a held send = %d, want 6", got)
	}
}
