// Package hedera is the handler set for Hedera-like account ledgers.
//
// Keys are SLIP-10 ed25519 at m/44'/3030'/0'/0'/0'. The account id
// (shard.realm.num) is assigned by the ledger when the account is created,
// so a fresh account has no address until InitializeAccount or SetAddress.
// Transfers are crypto transfer bodies in protobuf wire format, signed with
// ed25519 and hashed with SHA-384.
package hedera

import (
	"time"

	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// Network parameters read from the catalog.
const (
	// ParamNodeAccount is the node account that receives submissions.
	ParamNodeAccount = "nodeAccount"
)

const (
	DefaultNodeAccount = "0.0.3"
	// AttributeMemo is the transaction memo.
	AttributeMemo = "memo"
	MaxMemoSize   = 100

	// validDuration is how long a transaction may wait for consensus.
	validDuration = 120 * time.Second
	// validStartSkew backdates transactions against node clock drift.
	validStartSkew = 10 * time.Second
)

const Tag = walletkit.TagHedera

// now is replaced in tests.
var now = time.Now

// Handlers returns the Hedera handler set.
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

// Install adds the Hedera handlers to reg.
func Install(reg *walletkit.Registry) { reg.Install(Handlers()) }
