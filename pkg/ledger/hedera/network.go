package hedera

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

func nodeOf(n *walletkit.Network) (address, error) {
	s := n.Param(ParamNodeAccount)
	if s == "" {
		s = DefaultNodeAccount
	}
	a, err := parseAddress(s)
	if err != nil {
		return address{}, fmt.Errorf("network %s: %s %q: %w", n.UIDs(), ParamNodeAccount, s, err)
	}
	return a, nil
}

type networkHandlers struct{}

func (networkHandlers) CreateAddress(_ *walletkit.Network, s string) (walletkit.AddressValue, error) {
	a, err := parseAddress(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (networkHandlers) CreateHash(_ *walletkit.Network, s string) (walletkit.Hash, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return walletkit.Hash{}, err
	}
	if len(raw) != sha512.Size384 {
		return walletkit.Hash{}, fmt.Errorf("hash must be %d bytes, got %d", sha512.Size384, len(raw))
	}
	return walletkit.NewHash(Tag, raw), nil
}

func (networkHandlers) EncodeHash(_ *walletkit.Network, h walletkit.Hash) string { return h.String() }

// The ledger has no blocks of its own.
func (networkHandlers) BlockNumberAtOrBeforeTimestamp(*walletkit.Network, time.Time) (uint64, bool) {
	return 0, false
}

func (networkHandlers) IsAccountInitialized(_ *walletkit.Network, a *walletkit.Account) bool {
	return a.Address() != nil
}

// AccountInitializationData is the public key the account-creation service
// needs.
func (networkHandlers) AccountInitializationData(_ *walletkit.Network, a *walletkit.Account) ([]byte, error) {
	return a.PublicKey(), nil
}

// InitializeAccount takes the account id assigned by the ledger, as text.
func (networkHandlers) InitializeAccount(_ *walletkit.Network, a *walletkit.Account, data []byte) error {
	id, err := parseAddress(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("%w: %v", walletkit.ErrInvalidAddress, err)
	}
	return a.SetAddress(walletkit.NewAddress(id))
}
