package tezos

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// ParseBlockHash parses a base58 block hash, as set with
// Network.SetVerifiedBlockHash to branch new operations.
func ParseBlockHash(s string) (walletkit.Hash, error) {
	h, err := decodeCheck(strings.TrimSpace(s), prefixBlock, blake2b.Size256)
	if err != nil {
		return walletkit.Hash{}, fmt.Errorf("%w: block %q: %v", walletkit.ErrInvalidHash, s, err)
	}
	return walletkit.NewHash(Tag, h), nil
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
	h, err := decodeCheck(strings.TrimSpace(s), prefixOperation, blake2b.Size256)
	if err != nil {
		return walletkit.Hash{}, err
	}
	return walletkit.NewHash(Tag, h), nil
}

func (networkHandlers) EncodeHash(_ *walletkit.Network, h walletkit.Hash) string {
	return encodeCheck(prefixOperation, h.Bytes())
}

func (networkHandlers) BlockNumberAtOrBeforeTimestamp(*walletkit.Network, time.Time) (uint64, bool) {
	return 0, false
}

// Accounts are revealed by the first outgoing operation.
func (networkHandlers) IsAccountInitialized(*walletkit.Network, *walletkit.Account) bool { return true }

func (networkHandlers) AccountInitializationData(*walletkit.Network, *walletkit.Account) ([]byte, error) {
	return nil, fmt.Errorf("%w: tezos accounts are revealed by their first operation", walletkit.ErrUnsupported)
}

func (networkHandlers) InitializeAccount(*walletkit.Network, *walletkit.Account, []byte) error {
	return fmt.Errorf("%w: tezos accounts are revealed by their first operation", walletkit.ErrUnsupported)
}
