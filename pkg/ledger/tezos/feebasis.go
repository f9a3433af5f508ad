package tezos

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// feeBasis is a flat operation fee with the limits and counter that go
// into the forged operation.
type feeBasis struct {
	fee          uint256.Int
	gasLimit     uint64
	storageLimit uint64
	// counter is the account's current counter; operations use the next ones.
	counter uint64
}

func (f *feeBasis) Tag() walletkit.Tag               { return Tag }
func (f *feeBasis) PricePerCostFactor() *uint256.Int { return new(uint256.Int).Set(&f.fee) }
func (f *feeBasis) CostFactor() float64              { return 1 }

func (f *feeBasis) Equal(o walletkit.FeeBasisValue) bool {
	other, ok := o.(*feeBasis)
	return ok && f.fee.Eq(&other.fee) &&
		f.gasLimit == other.gasLimit &&
		f.storageLimit == other.storageLimit &&
		f.counter == other.counter
}

// NewFeeBasis builds a fee basis from a node's operation estimate. The fee
// is the node's minimal fee rule, padded by five percent:
// 100 + 0.1 × gas + mutezPerKB × size.
func NewFeeBasis(w *walletkit.Wallet, mutezPerKB uint64, sizeKB float64, gasLimit, storageLimit, counter uint64) (*walletkit.FeeBasis, error) {
	if sizeKB < 0 || math.IsNaN(sizeKB) {
		return nil, walletkit.ErrNegativeCostFactor
	}
	minimal := decimal.NewFromInt(minimalFeeMutez).
		Add(decimal.NewFromFloat(mutezPerGasUnit).Mul(decimal.NewFromUint64(gasLimit))).
		Add(decimal.NewFromUint64(mutezPerKB).Mul(decimal.NewFromFloat(sizeKB)))
	padded := minimal.Mul(decimal.NewFromFloat(feePadding)).Truncate(0)
	fee, overflow := uint256.FromBig(padded.BigInt())
	if overflow {
		return nil, walletkit.ErrFeeOverflow
	}
	f := &feeBasis{
		fee:          *fee,
		gasLimit:     gasLimit,
		storageLimit: max(storageLimit, MinStorageLimit),
		counter:      counter,
	}
	return walletkit.NewFeeBasis(w.UnitForFee(), f)
}

type feeBasisHandlers struct{}

// Create takes a network fee tier as a flat fee with default limits and an
// unknown counter.
func (feeBasisHandlers) Create(price *uint256.Int, costFactor float64) (walletkit.FeeBasisValue, error) {
	fee, err := walletkit.ComputeFee(price, costFactor)
	if err != nil {
		return nil, err
	}
	f := &feeBasis{gasLimit: DefaultGasLimit, storageLimit: DefaultStorageLimit}
	f.fee.Set(fee)
	return f, nil
}

func feeBasisOf(v walletkit.FeeBasisValue) (*feeBasis, error) {
	if f, ok := v.(*feeBasis); ok {
		return f, nil
	}
	// A bundle's fee carries no limits.
	if v.Tag() != Tag {
		return nil, fmt.Errorf("%w: %s fee basis", walletkit.ErrLedgerMismatch, v.Tag())
	}
	fee, err := walletkit.ComputeFee(v.PricePerCostFactor(), v.CostFactor())
	if err != nil {
		return nil, err
	}
	f := &feeBasis{gasLimit: DefaultGasLimit, storageLimit: DefaultStorageLimit}
	f.fee.Set(fee)
	return f, nil
}
