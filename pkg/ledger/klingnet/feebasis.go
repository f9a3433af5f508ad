package klingnet

import (
	"math"

	"github.com/holiman/uint256"

	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// feeBasis prices a transaction by size: a price per kilobyte and the
// transaction size in kilobytes.
type feeBasis struct {
	pricePerKB uint256.Int
	sizeKB     float64
}

func newFeeBasis(pricePerKB *uint256.Int, sizeKB float64) *feeBasis {
	f := &feeBasis{sizeKB: sizeKB}
	f.pricePerKB.Set(pricePerKB)
	return f
}

// feeBasisForSize prices size bytes at pricePerKB.
func feeBasisForSize(pricePerKB *uint256.Int, size int) *feeBasis {
	return newFeeBasis(pricePerKB, float64(size)/1000)
}

func (f *feeBasis) Tag() walletkit.Tag               { return Tag }
func (f *feeBasis) PricePerCostFactor() *uint256.Int { return new(uint256.Int).Set(&f.pricePerKB) }
func (f *feeBasis) CostFactor() float64              { return f.sizeKB }

func (f *feeBasis) Equal(o walletkit.FeeBasisValue) bool {
	other, ok := o.(*feeBasis)
	return ok && f.pricePerKB.Eq(&other.pricePerKB) && f.sizeKB == other.sizeKB
}

// fee returns the fee in base units, or false when it exceeds 64 bits.
func (f *feeBasis) fee() (uint64, bool) {
	fee, err := walletkit.ComputeFee(&f.pricePerKB, f.sizeKB)
	if err != nil || !fee.IsUint64() {
		return math.MaxUint64, false
	}
	return fee.Uint64(), true
}

type feeBasisHandlers struct{}

func (feeBasisHandlers) Create(price *uint256.Int, costFactor float64) (walletkit.FeeBasisValue, error) {
	if math.IsNaN(costFactor) || costFactor < 0 {
		return nil, walletkit.ErrNegativeCostFactor
	}
	return newFeeBasis(price, costFactor), nil
}
