// Package all installs every ledger handler set.
package all

import (
	"github.com/Klingon-tech/walletkit/pkg/ledger/ethereum"
	"github.com/Klingon-tech/walletkit/pkg/ledger/hedera"
	"github.com/Klingon-tech/walletkit/pkg/ledger/klingnet"
	"github.com/Klingon-tech/walletkit/pkg/ledger/tezos"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// Install adds every available handler set to reg.
func Install(reg *walletkit.Registry) {
	klingnet.Install(reg)
	ethereum.Install(reg)
	hedera.Install(reg)
	tezos.Install(reg)
}

// NewRegistry returns a registry with every handler set installed.
func NewRegistry() *walletkit.Registry {
	reg := walletkit.NewRegistry()
	Install(reg)
	return reg
}
