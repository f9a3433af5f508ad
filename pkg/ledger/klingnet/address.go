package klingnet

import (
	"github.com/Klingon-tech/walletkit/pkg/types"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// address is a Klingnet address together with the HRP of the network it
// was parsed on. Equality ignores the HRP.
type address struct {
	addr types.Address
	hrp  string
}

func newAddress(a types.Address, hrp string) address { return address{addr: a, hrp: hrp} }

func (a address) Tag() walletkit.Tag { return Tag }
func (a address) Bytes() []byte      { return a.addr.Bytes() }

func (a address) String() string {
	if a.hrp == "" {
		return a.addr.String()
	}
	return a.addr.Encode(a.hrp)
}

func (a address) Equal(o walletkit.AddressValue) bool {
	other, ok := o.(address)
	return ok && a.addr == other.addr
}

// addressOf extracts the raw address from a value produced by this package.
func addressOf(v walletkit.AddressValue) (types.Address, bool) {
	a, ok := v.(address)
	if !ok {
		return types.Address{}, false
	}
	return a.addr, true
}

type addressHandlers struct{}

func (addressHandlers) Reserved(kind walletkit.Sentinel) walletkit.AddressValue {
	var a types.Address
	copy(a[:], walletkit.ReservedAddressBytes(kind, types.AddressSize))
	return address{addr: a}
}
