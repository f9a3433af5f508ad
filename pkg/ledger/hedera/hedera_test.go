package hedera

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha512"
	"errors"
	"strings"
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/Klingon-tech/walletkit/pkg/amount"
	"github.com/Klingon-tech/walletkit/pkg/derive"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

const (
	ownID   = "0.0.1234"
	otherID = "0.0.5678"
)

func testSeed(b byte) []byte {
	seed := make([]byte, derive.SeedSize)
	for i := range seed {
		seed[i] = b ^ byte(i*13)
	}
	return seed
}

type testEnv struct {
	reg     *walletkit.Registry
	tinybar *amount.Unit
	network *walletkit.Network
	account *walletkit.Account
	wallet  *walletkit.Wallet
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	restore := now
	now = func() time.Time { return time.Unix(1_700_000_010, 5) }
	t.Cleanup(func() { now = restore })

	reg := walletkit.NewRegistry()
	Install(reg)
	hbar := amount.NewCurrency("hedera-testnet:__native__", "Hbar", "HBAR", amount.TypeNative, "")
	tinybar := amount.NewBaseUnit(hbar, "hedera-testnet:tinybar", "tinybar", "tℏ")
	n, err := walletkit.NewNetwork(reg, walletkit.NetworkSpec{
		UIDs:         "hedera-testnet",
		Name:         "Hedera Testnet",
		Tag:          Tag,
		Currency:     hbar,
		Associations: []walletkit.Association{{Currency: hbar, BaseUnit: tinybar}},
		Fees: []walletkit.NetworkFee{
			{Tier: "normal", ConfirmationTime: 5 * time.Second, PricePerCostFactor: amount.FromUint64(tinybar, 500_000)},
		},
		Params: map[string]string{ParamNodeAccount: "0.0.7"},
	})
	if err != nil {
		t.Fatalf("NewNetwork() error: %v", err)
	}
	a, err := walletkit.CreateAccountWithSeed(reg, Tag, testSeed(3))
	if err != nil {
		t.Fatalf("CreateAccountWithSeed() error: %v", err)
	}
	w, err := walletkit.NewWallet(n, a, hbar)
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
	return &testEnv{reg: reg, tinybar: tinybar, network: n, account: a, wallet: w}
}

func (e *testEnv) addr(t *testing.T, s string) *walletkit.Address {
	t.Helper()
	a, err := e.network.CreateAddress(s, true)
	if err != nil {
		t.Fatalf("CreateAddress(%q) error: %v", s, err)
	}
	return a
}

func (e *testEnv) initialize(t *testing.T) {
	t.Helper()
	if err := e.network.InitializeAccount(e.account, []byte(ownID)); err != nil {
		t.Fatalf("InitializeAccount() error: %v", err)
	}
}

func (e *testEnv) fund(t *testing.T, hash byte, from, to, value string) *walletkit.Transfer {
	t.Helper()
	tr, err := e.wallet.TransferFromBundle(&walletkit.TransferBundle{
		Status:      walletkit.BundleConfirmed,
		Hash:        strings.Repeat(string("0123456789abcdef"[hash%16]), 96),
		Identifier:  from + "-1700000000-000000000",
		From:        from,
		To:          to,
		Amount:      value,
		BlockNumber: 1,
	})
	if err != nil {
		t.Fatalf("TransferFromBundle() error: %v", err)
	}
	e.wallet.AddTransfer(tr)
	return tr
}

// wireFields splits one protobuf message into its length-delimited and
// varint fields.
func wireFields(t *testing.T, b []byte) (map[protowire.Number][][]byte, map[protowire.Number]uint64) {
	t.Helper()
	msgs := map[protowire.Number][][]byte{}
	ints := map[protowire.Number]uint64{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			t.Fatalf("ConsumeTag() error: %v", protowire.ParseError(n))
		}
		b = b[n:]
		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				t.Fatalf("ConsumeBytes() error: %v", protowire.ParseError(n))
			}
			msgs[num] = append(msgs[num], v)
			b = b[n:]
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				t.Fatalf("ConsumeVarint() error: %v", protowire.ParseError(n))
			}
			ints[num] = v
			b = b[n:]
		default:
			t.Fatalf("unexpected wire type %v", typ)
		}
	}
	return msgs, ints
}

func TestAccount_Lifecycle(t *testing.T) {
	e := newTestEnv(t)

	want, err := derive.DeriveEd25519(testSeed(3), accountPath...)
	if err != nil {
		t.Fatalf("DeriveEd25519() error: %v", err)
	}
	if !bytes.Equal(e.account.PublicKey(), want.PublicKey()) {
		t.Fatal("account public key does not match m/44'/3030'/0'/0'/0'")
	}

	if e.account.Address() != nil || e.network.IsAccountInitialized(e.account) {
		t.Fatal("fresh account has an address")
	}
	if _, err := e.wallet.DefaultAddress(); !errors.Is(err, walletkit.ErrAddressUnassigned) {
		t.Fatalf("DefaultAddress() error = %v, want ErrAddressUnassigned", err)
	}
	if _, err := e.wallet.CreateTransfer(e.addr(t, otherID), amount.FromUint64(e.tinybar, 1), nil, nil); !errors.Is(err, walletkit.ErrAddressUnassigned) {
		t.Fatalf("CreateTransfer() error = %v, want ErrAddressUnassigned", err)
	}
	data, err := e.network.AccountInitializationData(e.account)
	if err != nil || !bytes.Equal(data, e.account.PublicKey()) {
		t.Fatalf("AccountInitializationData() = %x, %v", data, err)
	}

	unassigned := e.account.Serialization()
	if len(unassigned) != SerializationSize {
		t.Fatalf("Serialization() len = %d", len(unassigned))
	}

	if err := e.network.InitializeAccount(e.account, []byte("not-an-id")); !errors.Is(err, walletkit.ErrInvalidAddress) {
		t.Fatalf("InitializeAccount(bad) error = %v, want ErrInvalidAddress", err)
	}
	e.initialize(t)
	if got := e.account.Address(); got == nil || got.String() != ownID {
		t.Fatalf("Address() = %v, want %s", got, ownID)
	}
	if !e.network.IsAccountInitialized(e.account) {
		t.Fatal("IsAccountInitialized() = false after InitializeAccount")
	}

	restored, err := walletkit.CreateAccountWithSerialization(e.reg, Tag, e.account.Serialization())
	if err != nil {
		t.Fatalf("CreateAccountWithSerialization() error: %v", err)
	}
	if got := restored.Address(); got == nil || got.String() != ownID {
		t.Fatalf("restored Address() = %v", got)
	}
	fresh, err := walletkit.CreateAccountWithSerialization(e.reg, Tag, unassigned)
	if err != nil {
		t.Fatalf("CreateAccountWithSerialization(unassigned) error: %v", err)
	}
	if fresh.Address() != nil {
		t.Fatal("unassigned serialization restored with an address")
	}
	if _, err := walletkit.CreateAccountWithSerialization(e.reg, Tag, unassigned[:10]); !errors.Is(err, walletkit.ErrInvalidSerialization) {
		t.Fatalf("short serialization error = %v", err)
	}
}

func TestNetwork_Parsing(t *testing.T) {
	e := newTestEnv(t)
	for _, s := range []string{"0.0.1", "1.2.3", " 0.0.98 "} {
		if _, err := e.network.CreateAddress(s, true); err != nil {
			t.Errorf("CreateAddress(%q) error: %v", s, err)
		}
	}
	for _, s := range []string{"", "0.0", "0.0.x", "0.0.1.2", "-1.0.0"} {
		if _, err := e.network.CreateAddress(s, true); !errors.Is(err, walletkit.ErrInvalidAddress) {
			t.Errorf("CreateAddress(%q) error = %v, want ErrInvalidAddress", s, err)
		}
	}
	fee, err := e.network.CreateAddress(walletkit.FeeAddressString, false)
	if err != nil || !fee.IsFee() {
		t.Fatalf("fee sentinel = %v, %v", fee, err)
	}
	if err := e.account.SetAddress(fee); !errors.Is(err, walletkit.ErrInvalidAddress) {
		t.Fatalf("SetAddress(fee sentinel) error = %v, want ErrInvalidAddress", err)
	}

	s := strings.Repeat("ab", sha512.Size384)
	h, err := e.network.CreateHash(s)
	if err != nil {
		t.Fatalf("CreateHash() error: %v", err)
	}
	if e.network.EncodeHash(h) != s {
		t.Fatalf("EncodeHash() = %s", e.network.EncodeHash(h))
	}
	if _, err := e.network.CreateHash(strings.Repeat("ab", 32)); err == nil {
		t.Fatal("CreateHash(32 bytes) succeeded")
	}
}

func TestWallet_Transfer(t *testing.T) {
	e := newTestEnv(t)
	e.initialize(t)
	e.fund(t, 1, "0.0.2", ownID, "10000000")

	attrs := []walletkit.Attribute{{Key: AttributeMemo, Value: "rent"}}
	tr, err := e.wallet.CreateTransfer(e.addr(t, otherID), amount.FromUint64(e.tinybar, 1_000_000), nil, attrs)
	if err != nil {
		t.Fatalf("CreateTransfer() error: %v", err)
	}
	if tr.Identifier() != "0.0.1234-1700000000-000000005" {
		t.Fatalf("Identifier() = %s", tr.Identifier())
	}
	if _, ok := tr.Hash(); ok {
		t.Fatal("unsigned transfer has a hash")
	}
	if err := e.account.SignTransferWithSeed(tr, testSeed(4)); !errors.Is(err, walletkit.ErrInvalidSeed) {
		t.Fatalf("SignTransferWithSeed(wrong seed) error = %v, want ErrInvalidSeed", err)
	}
	if err := e.account.SignTransferWithSeed(tr, testSeed(3)); err != nil {
		t.Fatalf("SignTransferWithSeed() error: %v", err)
	}

	raw, err := tr.SerializeForSubmission()
	if err != nil {
		t.Fatalf("SerializeForSubmission() error: %v", err)
	}
	txMsgs, _ := wireFields(t, raw)
	signedTx := txMsgs[fieldTransactionSignedTx][0]
	h, ok := tr.Hash()
	if sum := sha512.Sum384(signedTx); !ok || !bytes.Equal(h.Bytes(), sum[:]) {
		t.Fatal("Hash() is not SHA-384 of the signed transaction")
	}

	signed, _ := wireFields(t, signedTx)
	bodyBytes := signed[fieldSignedBody][0]
	sigMap, _ := wireFields(t, signed[fieldSignedSigMap][0])
	pair, _ := wireFields(t, sigMap[fieldSigMapPair][0])
	if !ed25519.Verify(e.account.PublicKey(), bodyBytes, pair[fieldSigPairEd25519][0]) {
		t.Fatal("signature does not verify")
	}

	bodyMsgs, bodyInts := wireFields(t, bodyBytes)
	if bodyInts[fieldBodyFee] != 500_000 {
		t.Fatalf("fee = %d, want 500000", bodyInts[fieldBodyFee])
	}
	if got := string(bodyMsgs[fieldBodyMemo][0]); got != "rent" {
		t.Fatalf("memo = %q", got)
	}
	_, node := wireFields(t, bodyMsgs[fieldBodyNodeAccount][0])
	if node[3] != 7 {
		t.Fatalf("node account num = %d, want 7", node[3])
	}
	crypto, _ := wireFields(t, bodyMsgs[fieldBodyCryptoTransfer][0])
	list, _ := wireFields(t, crypto[fieldTransferList][0])
	amounts := list[fieldAccountAmounts]
	if len(amounts) != 2 {
		t.Fatalf("%d account amounts, want 2", len(amounts))
	}
	var sum int64
	for _, aa := range amounts {
		_, ints := wireFields(t, aa)
		sum += protowire.DecodeZigZag(ints[fieldAccountAmountValue])
	}
	if sum != 0 {
		t.Fatalf("transfer list sums to %d", sum)
	}

	if got := tr.DirectedAmount(); !got.IsNegative() || got.Value().Uint64() != 1_500_000 {
		t.Fatalf("DirectedAmount() = %v", got)
	}
}

func TestWallet_Attributes(t *testing.T) {
	e := newTestEnv(t)
	tests := []struct {
		attr walletkit.Attribute
		kind walletkit.AttributeErrorKind
	}{
		{walletkit.Attribute{Key: "memo", Value: "ok"}, 0},
		{walletkit.Attribute{Key: "Memo", Value: strings.Repeat("m", MaxMemoSize)}, 0},
		{walletkit.Attribute{Key: "memo", Value: strings.Repeat("m", MaxMemoSize+1)}, walletkit.MismatchedType},
		{walletkit.Attribute{Key: "tag", Value: "1"}, walletkit.RelationshipInconsistency},
	}
	for _, tt := range tests {
		err := e.wallet.ValidateAttribute(tt.attr)
		if tt.kind == 0 {
			if err != nil {
				t.Errorf("ValidateAttribute(%s) error: %v", tt.attr.Key, err)
			}
			continue
		}
		var ae *walletkit.AttributeError
		if !errors.As(err, &ae) || ae.Kind != tt.kind {
			t.Errorf("ValidateAttribute(%s) error = %v, want %v", tt.attr.Key, err, tt.kind)
		}
	}
}

func TestWallet_MultiOutputAndFunds(t *testing.T) {
	e := newTestEnv(t)
	e.initialize(t)
	e.fund(t, 1, "0.0.2", ownID, "2000000")

	outputs := []walletkit.TransferOutput{
		{Target: e.addr(t, otherID), Amount: amount.FromUint64(e.tinybar, 600_000)},
		{Target: e.addr(t, "0.0.9"), Amount: amount.FromUint64(e.tinybar, 400_000)},
	}
	tr, err := e.wallet.CreateMultiOutputTransfer(outputs, nil)
	if err != nil {
		t.Fatalf("CreateMultiOutputTransfer() error: %v", err)
	}
	if tr.Amount().Value().Uint64() != 1_000_000 {
		t.Fatalf("Amount() = %v", tr.Amount())
	}

	// 1.6M plus the 0.5M fee exceeds the 2M balance.
	if _, err := e.wallet.CreateTransfer(e.addr(t, otherID), amount.FromUint64(e.tinybar, 1_600_000), nil, nil); !errors.Is(err, walletkit.ErrInsufficientFunds) {
		t.Fatalf("CreateTransfer(over) error = %v, want ErrInsufficientFunds", err)
	}
}

func TestWallet_MatchByTarget(t *testing.T) {
	e := newTestEnv(t)
	e.initialize(t)
	e.fund(t, 1, "0.0.2", ownID, "5000000")

	// One transaction reported as a payment and a node fee.
	e.fund(t, 2, ownID, otherID, "1000")
	e.fund(t, 2, ownID, "0.0.7", "10")
	if n := e.wallet.TransferCount(); n != 3 {
		t.Fatalf("TransferCount() = %d, want 3", n)
	}
	e.fund(t, 2, ownID, otherID, "1000")
	if n := e.wallet.TransferCount(); n != 3 {
		t.Fatalf("TransferCount() after duplicate = %d, want 3", n)
	}
}
