// Package tezos is the handler set for Tezos-like account ledgers.
//
// Keys are SLIP-10 ed25519 at m/44'/1729'/0'/0' with tz1 addresses.
// Transfers are forged operation groups branched on the network's verified
// block hash: a reveal before the account's first outgoing operation, then
// a transaction or a delegation.
package tezos

import (
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// Transfer attributes.
const (
	// AttributeDelegationOp is "1" to delegate to the target instead of paying it.
	AttributeDelegationOp = "DelegationOp"
	AttributeDelegate     = "delegate"
	AttributeType         = "type"
)

// Fee basis defaults for an operation without a node estimate.
const (
	DefaultGasLimit     = 1_040_000
	DefaultStorageLimit = 60_000
	MinStorageLimit     = 300

	minimalFeeMutez = 100
	mutezPerGasUnit = 0.1
	feePadding      = 1.05

	// Reveal operations carry their own small fee and limits.
	revealFee      = 1_420
	revealGasLimit = 10_000
)

const Tag = walletkit.TagTezos

// Handlers returns the Tezos handler set.
func Handlers() *walletkit.Handlers {
	return &walletkit.Handlers{
		Tag:      Tag,
		Network:  networkHandlers{},
		Account:  accountHandlers{},
		Address:  addressHandlers{},
		Transfer: transferHandlers{},
		Wallet:   walletHandlers{},
		FeeBasis: feeBasisHandlers{},
	}
}

// Install adds the Tezos handlers to reg.
func Install(reg *walletkit.Registry) { reg.Install(Handlers()) }
