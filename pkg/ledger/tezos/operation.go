package tezos

import (
	"github.com/holiman/uint256"
)

// Operation tags of the binary encoding.
const (
	tagReveal      byte = 107
	tagTransaction byte = 108
	tagDelegation  byte = 110
)

// watermarkOperation precedes forged operations when signing.
const watermarkOperation byte = 0x03

type opKind int

const (
	opReveal opKind = iota
	opTransaction
	opDelegation
)

// operation is one manager operation of a group.
type operation struct {
	kind         opKind
	source       address
	fee          uint256.Int
	counter      uint64
	gasLimit     uint64
	storageLimit uint64

	publicKey   []byte      // reveal
	amount      uint256.Int // transaction
	destination address     // transaction, delegation
}

// appendZarith appends v as an unsigned little-endian base-128 number.
func appendZarith(b []byte, v *uint256.Int) []byte {
	x := new(uint256.Int).Set(v)
	for {
		low := byte(x.Uint64() & 0x7f)
		x.Rsh(x, 7)
		if x.IsZero() {
			return append(b, low)
		}
		b = append(b, low|0x80)
	}
}

func appendZarith64(b []byte, v uint64) []byte {
	return appendZarith(b, uint256.NewInt(v))
}

// appendPublicKeyHash encodes an implicit account.
func appendPublicKeyHash(b []byte, a address) []byte {
	b = append(b, byte(a.kind))
	return append(b, a.hash[:]...)
}

// appendContractID encodes any account as a destination.
func appendContractID(b []byte, a address) []byte {
	if a.implicit() {
		return appendPublicKeyHash(append(b, 0x00), a)
	}
	b = append(b, 0x01)
	b = append(b, a.hash[:]...)
	return append(b, 0x00)
}

func (op *operation) appendTo(b []byte) []byte {
	switch op.kind {
	case opReveal:
		b = append(b, tagReveal)
	case opTransaction:
		b = append(b, tagTransaction)
	case opDelegation:
		b = append(b, tagDelegation)
	}
	b = appendPublicKeyHash(b, op.source)
	b = appendZarith(b, &op.fee)
	b = appendZarith64(b, op.counter)
	b = appendZarith64(b, op.gasLimit)
	b = appendZarith64(b, op.storageLimit)

	switch op.kind {
	case opReveal:
		b = append(b, 0x00) // ed25519
		b = append(b, op.publicKey...)
	case opTransaction:
		b = appendZarith(b, &op.amount)
		b = appendContractID(b, op.destination)
		b = append(b, 0x00) // no parameters
	case opDelegation:
		b = append(b, 0xff)
		b = appendPublicKeyHash(b, op.destination)
	}
	return b
}

// forge encodes an operation group on branch.
func forge(branch []byte, ops []*operation) []byte {
	b := append([]byte(nil), branch...)
	for _, op := range ops {
		b = op.appendTo(b)
	}
	return b
}
