package walletkit

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/Klingon-tech/walletkit/pkg/amount"
)

// Ledger-specific state carried by generic entities. Each value reports the
// tag of the ledger that created it; generic code never inspects the
// concrete type, and ledger code only ever receives values it produced.

// AddressValue is the ledger form of an address.
type AddressValue interface {
	Tag() Tag
	String() string
	Bytes() []byte
	Equal(other AddressValue) bool
}

// AccountKey is the ledger form of an account: public key material and the
// addresses it controls. Implementations are guarded by the owning Account.
type AccountKey interface {
	Tag() Tag
	PublicKey() []byte
	// Address returns the primary address, or nil while it is unassigned.
	Address() AddressValue
	SetAddress(a AddressValue) error
	HasAddress(a AddressValue) bool
	Addresses() []AddressValue
	Serialize() []byte
}

// TransferValue is the ledger form of a transfer (usually an unsigned or
// signed transaction).
type TransferValue interface {
	Tag() Tag
	Hash() (Hash, bool)
	Identifier() string
	Signed() bool
	SerializeForSubmission() ([]byte, error)
	SerializeForFeeEstimation() ([]byte, error)
	Equal(other TransferValue) bool
}

// FeeBasisValue is the ledger form of a fee basis. The fee is always
// PricePerCostFactor × CostFactor; ledgers differ only in how they obtain the
// two numbers.
type FeeBasisValue interface {
	Tag() Tag
	PricePerCostFactor() *uint256.Int
	CostFactor() float64
	Equal(other FeeBasisValue) bool
}

// WalletData is per-wallet ledger state, such as a UTXO set.
type WalletData interface {
	Tag() Tag
}

// Optional capabilities.

// Zeroer is implemented by values holding material that must be cleared on release.
type Zeroer interface{ Zero() }

// Releaser is implemented by values that hold resources beyond memory.
type Releaser interface{ Release() }

// HashSetter is implemented by transfer values whose hash is assigned externally.
type HashSetter interface{ SetHash(h Hash) error }

// IdentifierUpdater is implemented by transfer values whose identifier is
// derived after signing.
type IdentifierUpdater interface{ UpdateIdentifier() }

// Handler groups.

type NetworkHandlers interface {
	CreateAddress(n *Network, s string) (AddressValue, error)
	CreateHash(n *Network, s string) (Hash, error)
	EncodeHash(n *Network, h Hash) string
	BlockNumberAtOrBeforeTimestamp(n *Network, ts time.Time) (uint64, bool)
	IsAccountInitialized(n *Network, a *Account) bool
	AccountInitializationData(n *Network, a *Account) ([]byte, error)
	InitializeAccount(n *Network, a *Account, data []byte) error
}

type AccountHandlers interface {
	CreateWithSeed(seed []byte) (AccountKey, error)
	CreateWithSerialization(data []byte) (AccountKey, error)
	// SignTransfer signs v in place. Private keys derived from seed must be
	// cleared before returning on every path.
	SignTransfer(key AccountKey, v TransferValue, seed []byte) error
}

type AddressHandlers interface {
	// Reserved builds the ledger value for a sentinel address.
	Reserved(kind Sentinel) AddressValue
}

type TransferHandlers interface {
	FromBundle(n *Network, b *TransferBundle) (TransferValue, error)
	// MatchByTarget reports whether transfer identity also requires equal
	// targets, for ledgers that emit several transfers under one hash.
	MatchByTarget() bool
}

type WalletHandlers interface {
	NewData(w *Wallet) WalletData
	Address(w *Wallet, scheme AddressScheme) (AddressValue, error)
	HasAddress(w *Wallet, a AddressValue) bool
	AddressesForRecovery(w *Wallet) []AddressValue
	TransferAttributes(w *Wallet, target *Address) []Attribute
	ValidateAttribute(w *Wallet, attr Attribute) error
	CreateTransfer(w *Wallet, target *Address, amt amount.Amount, fb *FeeBasis, attrs []Attribute) (*TransferDraft, error)
	CreateMultiOutputTransfer(w *Wallet, outputs []TransferOutput, fb *FeeBasis) (*TransferDraft, error)
}

// TransactionDecoder is implemented by the wallet handlers of ledgers whose
// clients report raw transactions rather than transfer bundles.
type TransactionDecoder interface {
	DecodeTransaction(w *Wallet, b *TransactionBundle) ([]*TransferDraft, error)
}

type FeeBasisHandlers interface {
	Create(price *uint256.Int, costFactor float64) (FeeBasisValue, error)
}

// TransferDraft is what a ledger hands back when it builds or decodes a
// transfer. The wallet turns it into a Transfer.
type TransferDraft struct {
	Value      TransferValue
	Source     AddressValue
	Target     AddressValue
	Amount     *uint256.Int
	FeeBasis   FeeBasisValue
	Attributes []Attribute
	// State is the initial state; nil means Created.
	State TransferState
	UIDs  string
}

// TransferOutput is one recipient of a multi-output transfer.
type TransferOutput struct {
	Target *Address
	Amount amount.Amount
}

// Handlers is the complete handler set for one ledger.
type Handlers struct {
	Tag      Tag
	Network  NetworkHandlers
	Account  AccountHandlers
	Address  AddressHandlers
	Transfer TransferHandlers
	Wallet   WalletHandlers
	FeeBasis FeeBasisHandlers
}

func (h *Handlers) complete() bool {
	return h.Network != nil && h.Account != nil && h.Address != nil &&
		h.Transfer != nil && h.Wallet != nil && h.FeeBasis != nil
}
