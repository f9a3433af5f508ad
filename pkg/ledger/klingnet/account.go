package klingnet

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/Klingon-tech/walletkit/pkg/crypto"
	"github.com/Klingon-tech/walletkit/pkg/derive"
	"github.com/Klingon-tech/walletkit/pkg/tx"
	"github.com/Klingon-tech/walletkit/pkg/types"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// GapLimit is the number of addresses past the last used one that are
// watched on each chain.
const GapLimit = 20

// accountPath is m/44'/8888'/0'.
var accountPath = []uint32{derive.PurposeBIP44, derive.CoinTypeKlingnet, derive.Hardened}

// keyPosition locates an address under the account node.
type keyPosition struct {
	change uint32
	index  uint32
}

// accountKey is the account extended public key and the address windows
// derived from it.
type accountKey struct {
	xpub *derive.HDKey
	// serialized is the 82-byte xpub.
	serialized []byte

	mu        sync.Mutex
	chains    [2][]types.Address
	positions map[types.Address]keyPosition
}

func newAccountKey(xpub *derive.HDKey) (*accountKey, error) {
	if xpub.IsPrivate() {
		return nil, fmt.Errorf("%w: account key is private", walletkit.ErrInvalidSerialization)
	}
	if xpub.Depth() != uint8(len(accountPath)) {
		return nil, fmt.Errorf("%w: account key depth %d", walletkit.ErrInvalidSerialization, xpub.Depth())
	}
	ser, err := xpub.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serialize account key: %w", err)
	}
	k := &accountKey{
		xpub:       xpub,
		serialized: ser,
		positions:  make(map[types.Address]keyPosition),
	}
	for change := range k.chains {
		if err := k.extendLocked(uint32(change), GapLimit); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// extendLocked derives chain addresses up to n.
func (k *accountKey) extendLocked(change uint32, n int) error {
	branch, err := k.xpub.DeriveChild(change)
	if err != nil {
		return err
	}
	for i := len(k.chains[change]); i < n; i++ {
		child, err := branch.DeriveChild(uint32(i))
		if err != nil {
			return err
		}
		addr := crypto.AddressFromPubKey(child.PublicKeyBytes())
		k.chains[change] = append(k.chains[change], addr)
		k.positions[addr] = keyPosition{change: change, index: uint32(i)}
	}
	return nil
}

// observe records that addr received funds and widens its chain so that
// GapLimit unused addresses follow it. It reports whether addr is owned.
func (k *accountKey) observe(addr types.Address) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	pos, ok := k.positions[addr]
	if !ok {
		return false
	}
	if want := int(pos.index) + 1 + GapLimit; want > len(k.chains[pos.change]) {
		if err := k.extendLocked(pos.change, want); err != nil {
			return true
		}
	}
	return true
}

func (k *accountKey) position(addr types.Address) (keyPosition, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	pos, ok := k.positions[addr]
	return pos, ok
}

// at returns the address at index on change.
func (k *accountKey) at(change uint32, index int) types.Address {
	k.mu.Lock()
	defer k.mu.Unlock()
	if index >= len(k.chains[change]) {
		if err := k.extendLocked(change, index+1); err != nil {
			return types.Address{}
		}
	}
	return k.chains[change][index]
}

// firstUnused returns the first address on change that used does not
// report as used.
func (k *accountKey) firstUnused(change uint32, used func(types.Address) bool) types.Address {
	k.mu.Lock()
	chain := k.chains[change]
	k.mu.Unlock()
	for _, a := range chain {
		if !used(a) {
			return a
		}
	}
	return k.at(change, len(chain))
}

func (k *accountKey) Tag() walletkit.Tag { return Tag }
func (k *accountKey) PublicKey() []byte  { return k.xpub.PublicKeyBytes() }
func (k *accountKey) Serialize() []byte  { return bytes.Clone(k.serialized) }

func (k *accountKey) Address() walletkit.AddressValue {
	return newAddress(k.at(derive.ChangeExternal, 0), "")
}

func (k *accountKey) SetAddress(walletkit.AddressValue) error {
	return fmt.Errorf("%w: klingnet addresses are derived from the key", walletkit.ErrUnsupported)
}

func (k *accountKey) HasAddress(v walletkit.AddressValue) bool {
	addr, ok := addressOf(v)
	if !ok {
		return false
	}
	_, ok = k.position(addr)
	return ok
}

func (k *accountKey) Addresses() []walletkit.AddressValue {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]walletkit.AddressValue, 0, len(k.chains[0])+len(k.chains[1]))
	for _, chain := range k.chains {
		for _, a := range chain {
			out = append(out, newAddress(a, ""))
		}
	}
	return out
}

// deriveAccountNode derives the private account node from seed. The
// caller zeroes the result.
func deriveAccountNode(seed []byte) (*derive.HDKey, error) {
	node, err := derive.DeriveFromSeed(seed, accountPath...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", walletkit.ErrInvalidSeed, err)
	}
	return node, nil
}

type accountHandlers struct{}

func (accountHandlers) CreateWithSeed(seed []byte) (walletkit.AccountKey, error) {
	node, err := deriveAccountNode(seed)
	if err != nil {
		return nil, err
	}
	defer node.Zero()
	return newAccountKey(node.Neuter())
}

func (accountHandlers) CreateWithSerialization(data []byte) (walletkit.AccountKey, error) {
	xpub, err := derive.DeserializeHDKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", walletkit.ErrInvalidSerialization, err)
	}
	return newAccountKey(xpub)
}

// SignTransfer derives the key for every input the transfer spends,
// signs, and zeroes each key before returning.
func (accountHandlers) SignTransfer(key walletkit.AccountKey, v walletkit.TransferValue, seed []byte) error {
	k, ok := key.(*accountKey)
	if !ok {
		return fmt.Errorf("%w: foreign account key", walletkit.ErrLedgerMismatch)
	}
	tv, ok := v.(*transferValue)
	if !ok || tv.tx == nil {
		return fmt.Errorf("%w: transfer has no transaction to sign", walletkit.ErrUnsupported)
	}

	node, err := deriveAccountNode(seed)
	if err != nil {
		return err
	}
	defer node.Zero()
	pub, err := node.Neuter().Serialize()
	if err != nil {
		return err
	}
	if !bytes.Equal(pub, k.serialized) {
		return fmt.Errorf("%w: seed does not match account", walletkit.ErrInvalidSeed)
	}

	keys := make(map[types.Address]*crypto.PrivateKey)
	defer func() {
		for _, pk := range keys {
			pk.Zero()
		}
	}()
	keyFor := func(prevOut types.Outpoint) (*crypto.PrivateKey, error) {
		owner, ok := tv.spends[prevOut]
		if !ok {
			return nil, fmt.Errorf("no owner recorded for %s", prevOut)
		}
		if pk, ok := keys[owner]; ok {
			return pk, nil
		}
		pos, ok := k.position(owner)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an account address", walletkit.ErrNotOwned, owner)
		}
		branch, err := node.DeriveChild(pos.change)
		if err != nil {
			return nil, err
		}
		child, err := branch.DeriveChild(pos.index)
		branch.Zero()
		if err != nil {
			return nil, err
		}
		defer child.Zero()
		pk, err := crypto.PrivateKeyFromBytes(child.PrivateKeyBytes())
		if err != nil {
			return nil, err
		}
		keys[owner] = pk
		return pk, nil
	}

	signed := tv.tx.Clone()
	if err := tx.SignInputs(signed, keyFor); err != nil {
		return err
	}
	tv.tx = signed
	tv.signed = true
	return nil
}
