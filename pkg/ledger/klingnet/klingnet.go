// Package klingnet is the handler set for Klingnet, a UTXO ledger with
// BLAKE3 transaction ids, bech32 addresses and Schnorr signatures.
//
// Accounts are BIP-44 account nodes (m/44'/8888'/0') kept as extended public
// keys. Clients report raw transactions; the wallet tracks its own UTXO set
// from them and builds spends with coin selection.
package klingnet

import (
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// Network parameters read from the catalog.
const (
	// ParamHRP is the bech32 human-readable part ("kgx", "tkgx").
	ParamHRP = "hrp"
	// ParamGenesisTime is the unix time of block 1.
	ParamGenesisTime = "genesisTime"
	// ParamBlockTime is the target block interval in seconds.
	ParamBlockTime = "blockTime"
)

// Tag is the ledger tag the handlers are installed under.
const Tag = walletkit.TagKlingnet

// Handlers returns the Klingnet handler set.
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

// Install adds the Klingnet handlers to reg.
func Install(reg *walletkit.Registry) { reg.Install(Handlers()) }
