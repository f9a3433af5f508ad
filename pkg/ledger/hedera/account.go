package hedera

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/Klingon-tech/walletkit/pkg/derive"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// SerializationSize is the account encoding: the account id (zero while
// unassigned) then the ed25519 public key.
const SerializationSize = addressSize + ed25519.PublicKeySize

// accountPath is m/44'/3030'/0'/0'/0'.
var accountPath = []uint32{derive.PurposeBIP44, derive.CoinTypeHedera, derive.Hardened, derive.Hardened, derive.Hardened}

type accountKey struct {
	pub ed25519.PublicKey

	mu   sync.RWMutex
	addr *address
}

func (k *accountKey) Tag() walletkit.Tag { return Tag }
func (k *accountKey) PublicKey() []byte  { return bytes.Clone(k.pub) }

func (k *accountKey) account() (address, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.addr == nil {
		return address{}, false
	}
	return *k.addr, true
}

func (k *accountKey) Address() walletkit.AddressValue {
	a, ok := k.account()
	if !ok {
		return nil
	}
	return a
}

func (k *accountKey) SetAddress(v walletkit.AddressValue) error {
	a, ok := addressOf(v)
	if !ok {
		return fmt.Errorf("%w: not a hedera account id", walletkit.ErrInvalidAddress)
	}
	if wa := walletkit.NewAddress(a); wa.IsFee() || wa.IsUnknown() || a == (address{}) {
		return fmt.Errorf("%w: %s cannot be assigned", walletkit.ErrInvalidAddress, a)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.addr = &a
	return nil
}

func (k *accountKey) HasAddress(v walletkit.AddressValue) bool {
	a, ok := addressOf(v)
	if !ok {
		return false
	}
	own, assigned := k.account()
	return assigned && own == a
}

func (k *accountKey) Addresses() []walletkit.AddressValue {
	a, ok := k.account()
	if !ok {
		return nil
	}
	return []walletkit.AddressValue{a}
}

func (k *accountKey) Serialize() []byte {
	out := make([]byte, addressSize, SerializationSize)
	if a, ok := k.account(); ok {
		copy(out, a.Bytes())
	}
	return append(out, k.pub...)
}

type accountHandlers struct{}

func (accountHandlers) CreateWithSeed(seed []byte) (walletkit.AccountKey, error) {
	node, err := derive.DeriveEd25519(seed, accountPath...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", walletkit.ErrInvalidSeed, err)
	}
	defer node.Zero()
	return &accountKey{pub: node.PublicKey()}, nil
}

func (accountHandlers) CreateWithSerialization(data []byte) (walletkit.AccountKey, error) {
	if len(data) != SerializationSize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", walletkit.ErrInvalidSerialization, SerializationSize, len(data))
	}
	k := &accountKey{pub: bytes.Clone(data[addressSize:])}
	if a := addressFromBytes(data[:addressSize]); a != (address{}) {
		k.addr = &a
	}
	return k, nil
}

func (accountHandlers) SignTransfer(key walletkit.AccountKey, v walletkit.TransferValue, seed []byte) error {
	k, ok := key.(*accountKey)
	if !ok {
		return fmt.Errorf("%w: foreign account key", walletkit.ErrLedgerMismatch)
	}
	tv, ok := v.(*transferValue)
	if !ok || tv.body == nil {
		return fmt.Errorf("%w: transfer has no body to sign", walletkit.ErrUnsupported)
	}

	node, err := derive.DeriveEd25519(seed, accountPath...)
	if err != nil {
		return fmt.Errorf("%w: %v", walletkit.ErrInvalidSeed, err)
	}
	defer node.Zero()
	priv := node.PrivateKey()
	defer clear(priv)
	if !bytes.Equal(priv.Public().(ed25519.PublicKey), k.pub) {
		return fmt.Errorf("%w: seed does not match account", walletkit.ErrInvalidSeed)
	}
	tv.sign(k.pub, ed25519.Sign(priv, tv.body))
	return nil
}
