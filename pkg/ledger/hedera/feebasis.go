package hedera

import (
	"github.com/holiman/uint256"

	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

type feeBasisHandlers struct{}

// Create makes a flat fee basis: the maximum transaction fee in tinybars
// is price × cost factor.
func (feeBasisHandlers) Create(price *uint256.Int, costFactor float64) (walletkit.FeeBasisValue, error) {
	return walletkit.NewFixedFeeBasis(Tag, price, costFactor)
}
