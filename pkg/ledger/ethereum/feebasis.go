package ethereum

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// feeBasis is a gas price and a gas limit.
type feeBasis struct {
	gasPrice uint256.Int
	gasLimit uint64
}

func newFeeBasis(gasPrice *uint256.Int, gasLimit uint64) *feeBasis {
	f := &feeBasis{gasLimit: gasLimit}
	f.gasPrice.Set(gasPrice)
	return f
}

func (f *feeBasis) Tag() walletkit.Tag               { return Tag }
func (f *feeBasis) PricePerCostFactor() *uint256.Int { return new(uint256.Int).Set(&f.gasPrice) }
func (f *feeBasis) CostFactor() float64              { return float64(f.gasLimit) }

func (f *feeBasis) Equal(o walletkit.FeeBasisValue) bool {
	other, ok := o.(*feeBasis)
	return ok && f.gasPrice.Eq(&other.gasPrice) && f.gasLimit == other.gasLimit
}

// fee is gasPrice × gasLimit; ok is false on overflow.
func (f *feeBasis) fee() (*uint256.Int, bool) {
	fee, overflow := new(uint256.Int).MulOverflow(&f.gasPrice, uint256.NewInt(f.gasLimit))
	return fee, !overflow
}

type feeBasisHandlers struct{}

// Create takes the cost factor as a gas limit, rounded down.
func (feeBasisHandlers) Create(price *uint256.Int, costFactor float64) (walletkit.FeeBasisValue, error) {
	if math.IsNaN(costFactor) || costFactor < 0 {
		return nil, walletkit.ErrNegativeCostFactor
	}
	if costFactor > math.MaxUint64 {
		return nil, fmt.Errorf("%w: gas limit %g", walletkit.ErrFeeOverflow, costFactor)
	}
	return newFeeBasis(price, uint64(costFactor)), nil
}
