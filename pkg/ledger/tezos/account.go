package tezos

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/Klingon-tech/walletkit/pkg/derive"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// SerializationSize is the account encoding: the ed25519 public key.
const SerializationSize = ed25519.PublicKeySize

// accountPath is m/44'/1729'/0'/0'.
var accountPath = []uint32{derive.PurposeBIP44, derive.CoinTypeTezos, derive.Hardened, derive.Hardened}

type accountKey struct {
	pub  ed25519.PublicKey
	addr address
}

func newAccountKey(pub []byte) *accountKey {
	return &accountKey{pub: bytes.Clone(pub), addr: pubKeyHash(pub)}
}

func (k *accountKey) Tag() walletkit.Tag                  { return Tag }
func (k *accountKey) PublicKey() []byte                   { return bytes.Clone(k.pub) }
func (k *accountKey) Address() walletkit.AddressValue     { return k.addr }
func (k *accountKey) Addresses() []walletkit.AddressValue { return []walletkit.AddressValue{k.addr} }
func (k *accountKey) Serialize() []byte                   { return bytes.Clone(k.pub) }

func (k *accountKey) SetAddress(walletkit.AddressValue) error {
	return fmt.Errorf("%w: tezos addresses are derived from the key", walletkit.ErrUnsupported)
}

func (k *accountKey) HasAddress(v walletkit.AddressValue) bool {
	a, ok := addressOf(v)
	return ok && a == k.addr
}

type accountHandlers struct{}

func (accountHandlers) CreateWithSeed(seed []byte) (walletkit.AccountKey, error) {
	node, err := derive.DeriveEd25519(seed, accountPath...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", walletkit.ErrInvalidSeed, err)
	}
	defer node.Zero()
	return newAccountKey(node.PublicKey()), nil
}

func (accountHandlers) CreateWithSerialization(data []byte) (walletkit.AccountKey, error) {
	if len(data) != SerializationSize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", walletkit.ErrInvalidSerialization, SerializationSize, len(data))
	}
	return newAccountKey(data), nil
}

func (accountHandlers) SignTransfer(key walletkit.AccountKey, v walletkit.TransferValue, seed []byte) error {
	k, ok := key.(*accountKey)
	if !ok {
		return fmt.Errorf("%w: foreign account key", walletkit.ErrLedgerMismatch)
	}
	tv, ok := v.(*transferValue)
	if !ok || tv.forged == nil {
		return fmt.Errorf("%w: transfer has no operation to sign", walletkit.ErrUnsupported)
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

	digest := blake2b.Sum256(append([]byte{watermarkOperation}, tv.forged...))
	tv.sign(ed25519.Sign(priv, digest[:]))
	return nil
}
