package ethereum

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// chainIDOf returns the EIP-155 chain id of n. Mainnet defaults to 1.
func chainIDOf(n *walletkit.Network) (*big.Int, error) {
	s := n.Param(ParamChainID)
	if s == "" {
		if n.IsMainnet() {
			return big.NewInt(1), nil
		}
		return nil, fmt.Errorf("network %s: no %s parameter", n.UIDs(), ParamChainID)
	}
	id, ok := new(big.Int).SetString(s, 10)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("network %s: bad %s %q", n.UIDs(), ParamChainID, s)
	}
	return id, nil
}

type networkHandlers struct{}

func (networkHandlers) CreateAddress(_ *walletkit.Network, s string) (walletkit.AddressValue, error) {
	a, err := parseAddress(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return address{a}, nil
}

func (networkHandlers) CreateHash(_ *walletkit.Network, s string) (walletkit.Hash, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return walletkit.Hash{}, err
	}
	if len(raw) != common.HashLength {
		return walletkit.Hash{}, fmt.Errorf("hash must be %d bytes, got %d", common.HashLength, len(raw))
	}
	return walletkit.NewHash(Tag, raw), nil
}

func (networkHandlers) EncodeHash(_ *walletkit.Network, h walletkit.Hash) string {
	return hexutil.Encode(h.Bytes())
}

// Block times vary; clients answer this from chain data instead.
func (networkHandlers) BlockNumberAtOrBeforeTimestamp(*walletkit.Network, time.Time) (uint64, bool) {
	return 0, false
}

func (networkHandlers) IsAccountInitialized(*walletkit.Network, *walletkit.Account) bool { return true }

func (networkHandlers) AccountInitializationData(*walletkit.Network, *walletkit.Account) ([]byte, error) {
	return nil, fmt.Errorf("%w: ethereum accounts need no initialization", walletkit.ErrUnsupported)
}

func (networkHandlers) InitializeAccount(*walletkit.Network, *walletkit.Account, []byte) error {
	return fmt.Errorf("%w: ethereum accounts need no initialization", walletkit.ErrUnsupported)
}
