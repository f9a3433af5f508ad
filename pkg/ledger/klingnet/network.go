package klingnet

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Klingon-tech/walletkit/pkg/types"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// hrpOf returns the bech32 HRP of n.
func hrpOf(n *walletkit.Network) string {
	if hrp := n.Param(ParamHRP); hrp != "" {
		return hrp
	}
	if n.IsMainnet() {
		return types.MainnetHRP
	}
	return types.TestnetHRP
}

type networkHandlers struct{}

func (networkHandlers) CreateAddress(n *walletkit.Network, s string) (walletkit.AddressValue, error) {
	hrp := hrpOf(n)
	a, err := types.ParseAddress(strings.TrimSpace(s), hrp)
	if err != nil {
		return nil, err
	}
	return newAddress(a, hrp), nil
}

func (networkHandlers) CreateHash(_ *walletkit.Network, s string) (walletkit.Hash, error) {
	h, err := types.HexToHash(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return walletkit.Hash{}, err
	}
	return walletkit.NewHash(Tag, h[:]), nil
}

func (networkHandlers) EncodeHash(_ *walletkit.Network, h walletkit.Hash) string {
	return h.String()
}

// BlockNumberAtOrBeforeTimestamp estimates the height from the genesis
// time and the target block interval.
func (networkHandlers) BlockNumberAtOrBeforeTimestamp(n *walletkit.Network, ts time.Time) (uint64, bool) {
	genesis, err := strconv.ParseInt(n.Param(ParamGenesisTime), 10, 64)
	if err != nil {
		return 0, false
	}
	interval, err := strconv.ParseInt(n.Param(ParamBlockTime), 10, 64)
	if err != nil || interval <= 0 {
		return 0, false
	}
	elapsed := ts.Unix() - genesis
	if elapsed < 0 {
		return 0, false
	}
	return uint64(elapsed/interval) + 1, true
}

func (networkHandlers) IsAccountInitialized(*walletkit.Network, *walletkit.Account) bool {
	return true
}

func (networkHandlers) AccountInitializationData(*walletkit.Network, *walletkit.Account) ([]byte, error) {
	return nil, fmt.Errorf("%w: klingnet accounts need no initialization", walletkit.ErrUnsupported)
}

func (networkHandlers) InitializeAccount(*walletkit.Network, *walletkit.Account, []byte) error {
	return fmt.Errorf("%w: klingnet accounts need no initialization", walletkit.ErrUnsupported)
}
