package ethereum

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

type address struct{ common.Address }

func (a address) Tag() walletkit.Tag { return Tag }

// String is the EIP-55 checksummed form.
func (a address) String() string { return a.Hex() }

func (a address) Equal(o walletkit.AddressValue) bool {
	other, ok := o.(address)
	return ok && a.Address == other.Address
}

func addressOf(v walletkit.AddressValue) (common.Address, bool) {
	a, ok := v.(address)
	return a.Address, ok
}

// parseAddress accepts 0x-prefixed hex. All-lower and all-upper input is
// taken as is; mixed case must carry a valid EIP-55 checksum.
func parseAddress(s string) (common.Address, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, fmt.Errorf("missing 0x prefix")
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("not a 20-byte hex address")
	}
	a := common.HexToAddress(s)
	body := s[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && a.Hex()[2:] != body {
		return common.Address{}, fmt.Errorf("bad EIP-55 checksum")
	}
	return a, nil
}

type addressHandlers struct{}

func (addressHandlers) Reserved(kind walletkit.Sentinel) walletkit.AddressValue {
	return address{common.BytesToAddress(walletkit.ReservedAddressBytes(kind, common.AddressLength))}
}
