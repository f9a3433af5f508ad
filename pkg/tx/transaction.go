// Package tx defines Klingnet transactions as the wallet builds, signs and
// decodes them.
package tx

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"github.com/Klingon-tech/walletkit/pkg/crypto"
	"github.com/Klingon-tech/walletkit/pkg/types"
)

// Transaction represents a blockchain transaction.
type Transaction struct {
	Version  uint32   `json:"version"`
	Inputs   []Input  `json:"inputs"`
	Outputs  []Output `json:"outputs"`
	LockTime uint64   `json:"locktime"`
}

// Input references a UTXO being spent.
type Input struct {
	PrevOut   types.Outpoint `json:"prevout"`
	Signature []byte         `json:"signature"`
	PubKey    []byte         `json:"pubkey"`
}

// inputJSON is the JSON representation of Input with hex-encoded byte fields.
type inputJSON struct {
	PrevOut   types.Outpoint `json:"prevout"`
	Signature *string        `json:"signature"`
	PubKey    *string        `json:"pubkey"`
}

// MarshalJSON encodes the input with hex-encoded signature and pubkey.
func (in Input) MarshalJSON() ([]byte, error) {
	j := inputJSON{PrevOut: in.PrevOut}
	if in.Signature != nil {
		s := hex.EncodeToString(in.Signature)
		j.Signature = &s
	}
	if in.PubKey != nil {
		p := hex.EncodeToString(in.PubKey)
		j.PubKey = &p
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes an input with hex-encoded signature and pubkey.
func (in *Input) UnmarshalJSON(data []byte) error {
	var j inputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	in.PrevOut = j.PrevOut
	in.Signature, in.PubKey = nil, nil
	if j.Signature != nil {
		b, err := hex.DecodeString(*j.Signature)
		if err != nil {
			return fmt.Errorf("signature: %w", err)
		}
		in.Signature = b
	}
	if j.PubKey != nil {
		b, err := hex.DecodeString(*j.PubKey)
		if err != nil {
			return fmt.Errorf("pubkey: %w", err)
		}
		in.PubKey = b
	}
	return nil
}

// Output defines a new UTXO.
type Output struct {
	Value  uint64           `json:"value"`
	Script types.Script     `json:"script"`
	Token  *types.TokenData `json:"token,omitempty"`
}

// Parse decodes the JSON wire form of a transaction.
func Parse(data []byte) (*Transaction, error) {
	var t Transaction
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return &t, nil
}

// Marshal returns the JSON wire form.
func (tx *Transaction) Marshal() ([]byte, error) {
	return json.Marshal(tx)
}

// Clone returns a deep copy.
func (tx *Transaction) Clone() *Transaction {
	c := &Transaction{Version: tx.Version, LockTime: tx.LockTime}
	c.Inputs = make([]Input, len(tx.Inputs))
	for i, in := range tx.Inputs {
		c.Inputs[i] = Input{
			PrevOut:   in.PrevOut,
			Signature: append([]byte(nil), in.Signature...),
			PubKey:    append([]byte(nil), in.PubKey...),
		}
		if in.Signature == nil {
			c.Inputs[i].Signature = nil
		}
		if in.PubKey == nil {
			c.Inputs[i].PubKey = nil
		}
	}
	c.Outputs = make([]Output, len(tx.Outputs))
	for i, out := range tx.Outputs {
		c.Outputs[i] = Output{
			Value:  out.Value,
			Script: types.Script{Type: out.Script.Type, Data: append([]byte(nil), out.Script.Data...)},
		}
		if out.Token != nil {
			tok := *out.Token
			c.Outputs[i].Token = &tok
		}
	}
	return c
}

// Hash computes the transaction ID (BLAKE3 hash of the signing bytes).
// Signatures are excluded, so the ID is known before signing.
func (tx *Transaction) Hash() types.Hash {
	return crypto.Hash(tx.SigningBytes())
}

// SigningBytes returns the canonical byte representation used for signing.
// Format: version(4) | input_count(4) | [prevout(36)]... | output_count(4) | [value(8) + script_type(1) + script_data_len(4) + script_data (+ token(40))]... | locktime(8)
func (tx *Transaction) SigningBytes() []byte {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, tx.Version)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = append(buf, in.PrevOut.TxID[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PrevOut.Index)
		// Coinbase inputs commit to their data so each coinbase has a unique ID.
		if in.PrevOut.IsZero() && len(in.Signature) > 0 {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(in.Signature)))
			buf = append(buf, in.Signature...)
		}
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, out.Value)
		buf = append(buf, byte(out.Script.Type))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(out.Script.Data)))
		buf = append(buf, out.Script.Data...)
		if out.Token != nil {
			buf = append(buf, out.Token.ID[:]...)
			buf = binary.LittleEndian.AppendUint64(buf, out.Token.Amount)
		}
	}

	buf = binary.LittleEndian.AppendUint64(buf, tx.LockTime)
	return buf
}

// IsSigned reports whether every non-coinbase input carries a signature
// and public key.
func (tx *Transaction) IsSigned() bool {
	if len(tx.Inputs) == 0 {
		return false
	}
	for _, in := range tx.Inputs {
		if in.PrevOut.IsZero() {
			continue
		}
		if len(in.Signature) == 0 || len(in.PubKey) == 0 {
			return false
		}
	}
	return true
}

// IsCoinbase reports whether tx mints new coins.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].PrevOut.IsZero()
}

// TotalOutputValue returns the sum of all output values.
// Returns an error if the sum overflows uint64.
func (tx *Transaction) TotalOutputValue() (uint64, error) {
	var total uint64
	for _, out := range tx.Outputs {
		if total > math.MaxUint64-out.Value {
			return 0, fmt.Errorf("output value overflow")
		}
		total += out.Value
	}
	return total, nil
}
