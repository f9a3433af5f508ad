package tx

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/Klingon-tech/walletkit/pkg/crypto"
	"github.com/Klingon-tech/walletkit/pkg/types"
)

func testKey(t *testing.T, b byte) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.PrivateKeyFromBytes(bytes.Repeat([]byte{b}, 32))
	if err != nil {
		t.Fatalf("PrivateKeyFromBytes() error: %v", err)
	}
	return key
}

func sampleTx() *Transaction {
	return NewBuilder().
		AddInput(types.Outpoint{TxID: types.Hash{0x01}, Index: 0}).
		AddInput(types.Outpoint{TxID: types.Hash{0x02}, Index: 1}).
		AddOutput(1000, types.Address{0xaa}).
		AddOutput(250, types.Address{0xbb}).
		Build()
}

func TestTransaction_Hash(t *testing.T) {
	a := sampleTx()
	if a.Hash() != a.Hash() || a.Hash().IsZero() {
		t.Fatal("Hash() should be deterministic and non-zero")
	}

	b := sampleTx()
	b.Outputs[0].Value = 1001
	if a.Hash() == b.Hash() {
		t.Error("different transactions should have different hashes")
	}

	h := a.Hash()
	a.Inputs[0].Signature = []byte("sig")
	a.Inputs[0].PubKey = []byte("key")
	if a.Hash() != h {
		t.Error("Hash() must not depend on signatures")
	}
}

func TestTransaction_JSONRoundTrip(t *testing.T) {
	orig := sampleTx()
	if err := SignInputs(orig, func(types.Outpoint) (*crypto.PrivateKey, error) { return testKey(t, 0x01), nil }); err != nil {
		t.Fatalf("SignInputs() error: %v", err)
	}
	data, err := orig.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	back, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if back.Hash() != orig.Hash() {
		t.Fatal("hash changed across JSON round trip")
	}
	if !bytes.Equal(back.Inputs[1].Signature, orig.Inputs[1].Signature) {
		t.Fatal("signature lost across JSON round trip")
	}
	if _, err := Parse([]byte(`{"inputs":[{"signature":"zz"}]}`)); err == nil {
		t.Fatal("Parse(bad hex) expected error")
	}
}

func TestSignInputs(t *testing.T) {
	k1, k2 := testKey(t, 0x01), testKey(t, 0x02)
	owners := map[types.Outpoint]*crypto.PrivateKey{
		{TxID: types.Hash{0x01}, Index: 0}: k1,
		{TxID: types.Hash{0x02}, Index: 1}: k2,
	}
	tr := sampleTx()
	if tr.IsSigned() {
		t.Fatal("unsigned transaction reports signed")
	}
	err := SignInputs(tr, func(op types.Outpoint) (*crypto.PrivateKey, error) {
		return owners[op], nil
	})
	if err != nil {
		t.Fatalf("SignInputs() error: %v", err)
	}
	if !tr.IsSigned() {
		t.Fatal("signed transaction reports unsigned")
	}
	if err := tr.VerifySignatures(); err != nil {
		t.Fatalf("VerifySignatures() error: %v", err)
	}
	if !bytes.Equal(tr.Inputs[0].PubKey, k1.PublicKey()) || !bytes.Equal(tr.Inputs[1].PubKey, k2.PublicKey()) {
		t.Fatal("inputs signed by the wrong keys")
	}

	tr.Outputs[0].Value++
	if err := tr.VerifySignatures(); !errors.Is(err, ErrInvalidSig) {
		t.Fatalf("VerifySignatures(tampered) error = %v, want ErrInvalidSig", err)
	}

	fail := errors.New("no key")
	err = SignInputs(sampleTx(), func(types.Outpoint) (*crypto.PrivateKey, error) { return nil, fail })
	if !errors.Is(err, fail) {
		t.Fatalf("SignInputs(missing key) error = %v", err)
	}
}

func TestTransaction_Clone(t *testing.T) {
	orig := sampleTx()
	orig.Outputs[0].Token = &types.TokenData{ID: types.TokenID{0x05}, Amount: 9}
	c := orig.Clone()
	if c.Hash() != orig.Hash() {
		t.Fatal("clone hash differs")
	}
	c.Outputs[0].Script.Data[0] = 0xff
	c.Outputs[0].Token.Amount = 1
	if orig.Outputs[0].Script.Data[0] != 0xaa || orig.Outputs[0].Token.Amount != 9 {
		t.Fatal("clone shares memory with original")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"valid", func(*Transaction) {}, nil},
		{"no inputs", func(tx *Transaction) { tx.Inputs = nil }, ErrNoInputs},
		{"no outputs", func(tx *Transaction) { tx.Outputs = nil }, ErrNoOutputs},
		{"duplicate input", func(tx *Transaction) { tx.Inputs[1] = tx.Inputs[0] }, ErrDuplicateInput},
		{"zero output", func(tx *Transaction) { tx.Outputs[1].Value = 0 }, ErrZeroOutput},
		{"overflow", func(tx *Transaction) { tx.Outputs[0].Value = math.MaxUint64 }, ErrOutputOverflow},
		{"script too large", func(tx *Transaction) { tx.Outputs[0].Script.Data = make([]byte, MaxScriptData+1) }, ErrScriptDataTooLarge},
		{"too many inputs", func(tx *Transaction) {
			tx.Inputs = make([]Input, MaxInputs+1)
			for i := range tx.Inputs {
				tx.Inputs[i].PrevOut = types.Outpoint{TxID: types.Hash{0x01}, Index: uint32(i)}
			}
		}, ErrTooManyInputs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := sampleTx()
			tt.mutate(tr)
			err := tr.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSize(t *testing.T) {
	tr := sampleTx()
	if got, want := tr.Size(), EstimateSize(2, 2); got != want {
		t.Fatalf("Size() = %d, EstimateSize() = %d", got, want)
	}
	if _, err := tr.TotalOutputValue(); err != nil {
		t.Fatalf("TotalOutputValue() error: %v", err)
	}
}
