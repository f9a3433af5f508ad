package tx

import (
	"fmt"

	"github.com/Klingon-tech/walletkit/pkg/crypto"
	"github.com/Klingon-tech/walletkit/pkg/types"
)

// Builder constructs transactions incrementally.
type Builder struct {
	tx *Transaction
}

// NewBuilder creates a new transaction builder.
func NewBuilder() *Builder {
	return &Builder{
		tx: &Transaction{Version: 1},
	}
}

// AddInput adds an input referencing a previous output.
func (b *Builder) AddInput(prevOut types.Outpoint) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, Input{PrevOut: prevOut})
	return b
}

// AddOutput adds an output paying value to addr.
func (b *Builder) AddOutput(value uint64, addr types.Address) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, Output{Value: value, Script: types.PayToAddress(addr)})
	return b
}

// SetLockTime sets the transaction lock time.
func (b *Builder) SetLockTime(lockTime uint64) *Builder {
	b.tx.LockTime = lockTime
	return b
}

// Build returns the constructed transaction. Does NOT validate; call
// Validate separately.
func (b *Builder) Build() *Transaction {
	return b.tx
}

// KeyFunc returns the key that spends prevOut. The caller owns the key and
// zeroes it once signing is done.
type KeyFunc func(prevOut types.Outpoint) (*crypto.PrivateKey, error)

// SignInputs signs each non-coinbase input with the key keyFor returns for
// it. Inputs spent by the same key share one signature.
func SignInputs(t *Transaction, keyFor KeyFunc) error {
	hash := t.Hash()

	type sigPub struct {
		sig    []byte
		pubKey []byte
	}
	cache := make(map[string]*sigPub)

	for i := range t.Inputs {
		if t.Inputs[i].PrevOut.IsZero() {
			continue
		}
		key, err := keyFor(t.Inputs[i].PrevOut)
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		pub := key.PublicKey()
		sp, cached := cache[string(pub)]
		if !cached {
			sig, err := key.Sign(hash)
			if err != nil {
				return fmt.Errorf("sign input %d: %w", i, err)
			}
			sp = &sigPub{sig: sig, pubKey: pub}
			cache[string(pub)] = sp
		}
		t.Inputs[i].Signature = sp.sig
		t.Inputs[i].PubKey = sp.pubKey
	}
	return nil
}
