package hedera

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// addressSize is the binary account id: shard, realm and num as big-endian uint64.
const addressSize = 24

var errAddressFormat = errors.New("want shard.realm.num")

type address struct {
	shard, realm, num uint64
}

func (a address) Tag() walletkit.Tag { return Tag }
func (a address) String() string     { return fmt.Sprintf("%d.%d.%d", a.shard, a.realm, a.num) }

func (a address) Bytes() []byte {
	b := make([]byte, addressSize)
	binary.BigEndian.PutUint64(b[0:], a.shard)
	binary.BigEndian.PutUint64(b[8:], a.realm)
	binary.BigEndian.PutUint64(b[16:], a.num)
	return b
}

func (a address) Equal(o walletkit.AddressValue) bool {
	other, ok := o.(address)
	return ok && a == other
}

func addressFromBytes(b []byte) address {
	return address{
		shard: binary.BigEndian.Uint64(b[0:]),
		realm: binary.BigEndian.Uint64(b[8:]),
		num:   binary.BigEndian.Uint64(b[16:]),
	}
}

func addressOf(v walletkit.AddressValue) (address, bool) {
	a, ok := v.(address)
	return a, ok
}

func parseAddress(s string) (address, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return address{}, errAddressFormat
	}
	var nums [3]uint64
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return address{}, fmt.Errorf("%w: %v", errAddressFormat, err)
		}
		nums[i] = n
	}
	return address{shard: nums[0], realm: nums[1], num: nums[2]}, nil
}

type addressHandlers struct{}

func (addressHandlers) Reserved(kind walletkit.Sentinel) walletkit.AddressValue {
	return addressFromBytes(walletkit.ReservedAddressBytes(kind, addressSize))
}
