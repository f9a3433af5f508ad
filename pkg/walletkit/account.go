package walletkit

import (
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Klingon-tech/walletkit/pkg/refcount"
)

// SeedSize is the length of a BIP-39 seed.
const SeedSize = 64

// Account holds the public key material for one ledger. It never keeps the
// seed: signing takes the seed as an argument and clears derived keys
// before returning.
type Account struct {
	ref       refcount.Ref
	tag       Tag
	h         *Handlers
	uids      string
	timestamp time.Time

	mu  sync.RWMutex
	key AccountKey
}

// CreateAccountWithSeed derives the account for tag from a BIP-39 seed.
func CreateAccountWithSeed(reg *Registry, tag Tag, seed []byte) (*Account, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidSeed, SeedSize, len(seed))
	}
	h, err := reg.Lookup(tag)
	if err != nil {
		return nil, err
	}
	key, err := h.Account.CreateWithSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("create %s account: %w", tag, err)
	}
	return newAccount(h, key), nil
}

// CreateAccountWithSerialization restores an account from Serialization output.
func CreateAccountWithSerialization(reg *Registry, tag Tag, data []byte) (*Account, error) {
	h, err := reg.Lookup(tag)
	if err != nil {
		return nil, err
	}
	key, err := h.Account.CreateWithSerialization(data)
	if err != nil {
		return nil, fmt.Errorf("restore %s account: %w", tag, err)
	}
	return newAccount(h, key), nil
}

// CreateAccounts derives one account per tag from the same seed. With no
// tags, every ledger installed in reg is used.
func CreateAccounts(reg *Registry, seed []byte, tags ...Tag) (map[Tag]*Account, error) {
	if len(tags) == 0 {
		tags = reg.InstalledTags()
	}
	out := make(map[Tag]*Account, len(tags))
	for _, tag := range tags {
		a, err := CreateAccountWithSeed(reg, tag, seed)
		if err != nil {
			for _, created := range out {
				created.Release()
			}
			return nil, err
		}
		out[tag] = a
	}
	return out, nil
}

func newAccount(h *Handlers, key AccountKey) *Account {
	a := &Account{
		tag:       h.Tag,
		h:         h,
		uids:      fmt.Sprintf("%s:%016x", h.Tag, xxhash.Sum64(key.PublicKey())),
		timestamp: time.Now().UTC(),
		key:       key,
	}
	a.ref.Init(a.destroy)
	return a
}

func (a *Account) destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if z, ok := a.key.(Zeroer); ok {
		z.Zero()
	}
}

func (a *Account) Refs() *refcount.Ref { return &a.ref }

// Take adds an owner.
func (a *Account) Take() *Account { return refcount.Take(a) }

// Release drops an owner.
func (a *Account) Release() { a.ref.Release() }

func (a *Account) Tag() Tag             { return a.tag }
func (a *Account) UIDs() string         { return a.uids }
func (a *Account) Timestamp() time.Time { return a.timestamp }

// Key returns the ledger key. Callers must not retain it past a SetAddress.
func (a *Account) Key() AccountKey {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.key
}

// PublicKey returns a copy of the account public key.
func (a *Account) PublicKey() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]byte(nil), a.key.PublicKey()...)
}

// Serialization returns the ledger's fixed-layout account encoding.
func (a *Account) Serialization() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.key.Serialize()
}

// Address returns the primary address, or nil while it is unassigned.
func (a *Account) Address() *Address {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v := a.key.Address()
	if v == nil {
		return nil
	}
	return NewAddress(v)
}

// SetAddress assigns the primary address on ledgers where it cannot be
// derived from the key.
func (a *Account) SetAddress(addr *Address) error {
	if addr.Tag() != a.tag {
		return fmt.Errorf("%w: %s address for %s account", ErrLedgerMismatch, addr.Tag(), a.tag)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.key.SetAddress(addr.Value())
}

// HasAddress reports whether addr belongs to the account.
func (a *Account) HasAddress(addr *Address) bool {
	if addr == nil || addr.Tag() != a.tag {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.key.HasAddress(addr.Value())
}

// Addresses returns every address the account controls.
func (a *Account) Addresses() []*Address {
	a.mu.RLock()
	defer a.mu.RUnlock()
	vals := a.key.Addresses()
	out := make([]*Address, 0, len(vals))
	for _, v := range vals {
		out = append(out, NewAddress(v))
	}
	return out
}

// SignTransferWithSeed signs t and moves it to the Signed state. The seed
// is not retained.
func (a *Account) SignTransferWithSeed(t *Transfer, seed []byte) error {
	if t.Tag() != a.tag {
		return fmt.Errorf("%w: %s transfer for %s account", ErrLedgerMismatch, t.Tag(), a.tag)
	}
	if len(seed) != SeedSize {
		return fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidSeed, SeedSize, len(seed))
	}

	a.mu.RLock()
	key := a.key
	a.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state.(type) {
	case StateCreated, StateSigned:
	default:
		return fmt.Errorf("%w: sign in state %s", ErrInvalidTransition, t.state.Type())
	}
	if t.value == nil {
		return ErrUnsupported
	}
	if err := a.h.Account.SignTransfer(key, t.value, seed); err != nil {
		return fmt.Errorf("sign %s transfer: %w", a.tag, err)
	}
	if u, ok := t.value.(IdentifierUpdater); ok {
		u.UpdateIdentifier()
	}
	t.state = StateSigned{}
	return nil
}
