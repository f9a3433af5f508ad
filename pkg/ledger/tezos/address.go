package tezos

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

const (
	hashSize    = 20
	addressSize = 1 + hashSize
)

// addressKind is the curve of an implicit account, or an originated contract.
type addressKind uint8

const (
	kindTZ1 addressKind = iota
	kindTZ2
	kindTZ3
	kindKT1
)

var kindPrefixes = map[addressKind][]byte{
	kindTZ1: prefixTZ1,
	kindTZ2: prefixTZ2,
	kindTZ3: prefixTZ3,
	kindKT1: prefixKT1,
}

type address struct {
	kind addressKind
	hash [hashSize]byte
}

// pubKeyHash is the tz1 address of an ed25519 public key.
func pubKeyHash(pub []byte) address {
	d, _ := blake2b.New(hashSize, nil)
	d.Write(pub)
	a := address{kind: kindTZ1}
	copy(a.hash[:], d.Sum(nil))
	return a
}

func (a address) Tag() walletkit.Tag { return Tag }

func (a address) String() string {
	prefix, ok := kindPrefixes[a.kind]
	if !ok {
		return hex.EncodeToString(a.Bytes())
	}
	return encodeCheck(prefix, a.hash[:])
}

func (a address) Bytes() []byte {
	return append([]byte{byte(a.kind)}, a.hash[:]...)
}

func (a address) Equal(o walletkit.AddressValue) bool {
	other, ok := o.(address)
	return ok && a == other
}

func (a address) implicit() bool { return a.kind != kindKT1 }

func addressOf(v walletkit.AddressValue) (address, bool) {
	a, ok := v.(address)
	return a, ok
}

func parseAddress(s string) (address, error) {
	if len(s) < 3 {
		return address{}, fmt.Errorf("address %q too short", s)
	}
	var kind addressKind
	switch s[:3] {
	case "tz1":
		kind = kindTZ1
	case "tz2":
		kind = kindTZ2
	case "tz3":
		kind = kindTZ3
	case "KT1":
		kind = kindKT1
	default:
		return address{}, fmt.Errorf("unknown address prefix %q", s[:3])
	}
	h, err := decodeCheck(s, kindPrefixes[kind], hashSize)
	if err != nil {
		return address{}, err
	}
	a := address{kind: kind}
	copy(a.hash[:], h)
	return a, nil
}

type addressHandlers struct{}

func (addressHandlers) Reserved(kind walletkit.Sentinel) walletkit.AddressValue {
	b := walletkit.ReservedAddressBytes(kind, addressSize)
	a := address{kind: addressKind(b[0])}
	copy(a.hash[:], b[1:])
	return a
}
