package ethereum

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Klingon-tech/walletkit/pkg/derive"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// SerializationSize is the account encoding: address then compressed key.
const SerializationSize = common.AddressLength + 33

// accountPath is m/44'/60'/0'/0/0.
var accountPath = []uint32{derive.PurposeBIP44, derive.CoinTypeEthereum, derive.Hardened, derive.ChangeExternal, 0}

type accountKey struct {
	addr common.Address
	pub  []byte

	mu sync.Mutex
	// nextNonce is one past the highest nonce this key has signed with.
	nextNonce uint64
}

func (k *accountKey) Tag() walletkit.Tag                  { return Tag }
func (k *accountKey) PublicKey() []byte                   { return bytes.Clone(k.pub) }
func (k *accountKey) Address() walletkit.AddressValue     { return address{k.addr} }
func (k *accountKey) Addresses() []walletkit.AddressValue { return []walletkit.AddressValue{address{k.addr}} }
func (k *accountKey) SetAddress(walletkit.AddressValue) error {
	return fmt.Errorf("%w: ethereum addresses are derived from the key", walletkit.ErrUnsupported)
}

func (k *accountKey) HasAddress(v walletkit.AddressValue) bool {
	a, ok := addressOf(v)
	return ok && a == k.addr
}

func (k *accountKey) Serialize() []byte {
	out := make([]byte, 0, SerializationSize)
	out = append(out, k.addr.Bytes()...)
	return append(out, k.pub...)
}

func (k *accountKey) signedNonce() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.nextNonce
}

// claimNonce returns the nonce to sign with: at least want and at least one
// past the last signed nonce.
func (k *accountKey) claimNonce(want uint64) uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := max(want, k.nextNonce)
	k.nextNonce = n + 1
	return n
}

type accountHandlers struct{}

func (accountHandlers) CreateWithSeed(seed []byte) (walletkit.AccountKey, error) {
	node, err := derive.DeriveFromSeed(seed, accountPath...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", walletkit.ErrInvalidSeed, err)
	}
	defer node.Zero()
	pub := node.PublicKeyBytes()
	ecdsaPub, err := ethcrypto.DecompressPubkey(pub)
	if err != nil {
		return nil, fmt.Errorf("decompress public key: %w", err)
	}
	return &accountKey{addr: ethcrypto.PubkeyToAddress(*ecdsaPub), pub: bytes.Clone(pub)}, nil
}

func (accountHandlers) CreateWithSerialization(data []byte) (walletkit.AccountKey, error) {
	if len(data) != SerializationSize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", walletkit.ErrInvalidSerialization, SerializationSize, len(data))
	}
	addr := common.BytesToAddress(data[:common.AddressLength])
	pub := bytes.Clone(data[common.AddressLength:])
	ecdsaPub, err := ethcrypto.DecompressPubkey(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", walletkit.ErrInvalidSerialization, err)
	}
	if ethcrypto.PubkeyToAddress(*ecdsaPub) != addr {
		return nil, fmt.Errorf("%w: address does not match public key", walletkit.ErrInvalidSerialization)
	}
	return &accountKey{addr: addr, pub: pub}, nil
}

func (accountHandlers) SignTransfer(key walletkit.AccountKey, v walletkit.TransferValue, seed []byte) error {
	k, ok := key.(*accountKey)
	if !ok {
		return fmt.Errorf("%w: foreign account key", walletkit.ErrLedgerMismatch)
	}
	tv, ok := v.(*transferValue)
	if !ok || tv.unsigned == nil {
		return fmt.Errorf("%w: transfer has no transaction to sign", walletkit.ErrUnsupported)
	}

	node, err := derive.DeriveFromSeed(seed, accountPath...)
	if err != nil {
		return fmt.Errorf("%w: %v", walletkit.ErrInvalidSeed, err)
	}
	defer node.Zero()
	prv, err := ethcrypto.ToECDSA(node.PrivateKeyBytes())
	if err != nil {
		return err
	}
	defer prv.D.SetUint64(0)
	if ethcrypto.PubkeyToAddress(prv.PublicKey) != k.addr {
		return fmt.Errorf("%w: seed does not match account", walletkit.ErrInvalidSeed)
	}

	return tv.sign(prv, k.claimNonce(tv.unsigned.Nonce))
}
