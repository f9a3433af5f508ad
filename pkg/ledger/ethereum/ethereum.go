// Package ethereum is the handler set for Ethereum-like account ledgers.
//
// Accounts hold one address at m/44'/60'/0'/0/0. Transfers are legacy
// EIP-155 transactions; ERC-20 wallets (currencies of type erc20 whose
// issuer is the contract address) call transfer(address,uint256).
package ethereum

import (
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// Network parameters read from the catalog.
const (
	// ParamChainID is the EIP-155 chain id (decimal).
	ParamChainID = "chainId"
)

// Gas limits used when a fee basis carries none large enough.
const (
	DefaultGasLimit      = 21_000
	DefaultTokenGasLimit = 92_000
)

// AttributeData carries hex call data on ether transfers.
const AttributeData = "data"

const Tag = walletkit.TagEthereum

// Handlers returns the Ethereum handler set.
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

// Install adds the Ethereum handlers to reg.
func Install(reg *walletkit.Registry) { reg.Install(Handlers()) }
