package walletkit

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/Klingon-tech/walletkit/pkg/amount"
	"github.com/Klingon-tech/walletkit/pkg/refcount"
)

// FixedFeeBasis is the generic fee basis value: a price and a cost factor
// with no ledger-specific structure. Ledgers whose fee is a flat amount use
// it with a cost factor of one.
type FixedFeeBasis struct {
	tag    Tag
	price  uint256.Int
	factor float64
}

// NewFixedFeeBasis creates a generic fee basis value.
func NewFixedFeeBasis(tag Tag, price *uint256.Int, costFactor float64) (*FixedFeeBasis, error) {
	if err := checkCostFactor(costFactor); err != nil {
		return nil, err
	}
	f := &FixedFeeBasis{tag: tag, factor: costFactor}
	f.price.Set(price)
	return f, nil
}

func (f *FixedFeeBasis) Tag() Tag                         { return f.tag }
func (f *FixedFeeBasis) PricePerCostFactor() *uint256.Int { return new(uint256.Int).Set(&f.price) }
func (f *FixedFeeBasis) CostFactor() float64              { return f.factor }

func (f *FixedFeeBasis) Equal(o FeeBasisValue) bool {
	other, ok := o.(*FixedFeeBasis)
	return ok && f.tag == other.tag && f.price.Eq(&other.price) && f.factor == other.factor
}

func checkCostFactor(cf float64) error {
	switch {
	case math.IsNaN(cf):
		return fmt.Errorf("%w: not a number", ErrNegativeCostFactor)
	case cf < 0:
		return fmt.Errorf("%w: %g", ErrNegativeCostFactor, cf)
	}
	return nil
}

// ComputeFee multiplies price by costFactor exactly and truncates the
// result toward zero.
func ComputeFee(price *uint256.Int, costFactor float64) (*uint256.Int, error) {
	if math.IsNaN(costFactor) {
		return nil, fmt.Errorf("%w: cost factor is not a number", ErrNegativeFee)
	}
	if math.IsInf(costFactor, 1) {
		if price.IsZero() {
			return new(uint256.Int), nil
		}
		return nil, ErrFeeOverflow
	}
	if costFactor < 0 || math.IsInf(costFactor, -1) {
		if price.IsZero() {
			return new(uint256.Int), nil
		}
		return nil, ErrNegativeFee
	}
	product := decimal.NewFromBigInt(price.ToBig(), 0).
		Mul(decimal.NewFromFloat(costFactor)).
		Truncate(0)
	fee, overflow := uint256.FromBig(product.BigInt())
	if overflow {
		return nil, ErrFeeOverflow
	}
	return fee, nil
}

// FeeBasis is what a transfer pays: a price per cost factor and a cost
// factor, in the wallet's fee unit.
type FeeBasis struct {
	ref   refcount.Ref
	tag   Tag
	unit  *amount.Unit
	value FeeBasisValue
}

// NewFeeBasis wraps a ledger fee basis value. unit is the unit the price is
// expressed in, normally the base unit of the network's native currency.
func NewFeeBasis(unit *amount.Unit, v FeeBasisValue) (*FeeBasis, error) {
	if err := checkCostFactor(v.CostFactor()); err != nil {
		return nil, err
	}
	fb := &FeeBasis{tag: v.Tag(), unit: unit, value: v}
	fb.ref.Init(func() {
		if r, ok := fb.value.(Releaser); ok {
			r.Release()
		}
	})
	return fb, nil
}

// CreateFeeBasis builds a generic fee basis from a price and a cost factor.
func CreateFeeBasis(tag Tag, pricePerCostFactor amount.Amount, costFactor float64) (*FeeBasis, error) {
	if pricePerCostFactor.IsNegative() {
		return nil, ErrNegativeFee
	}
	v, err := NewFixedFeeBasis(tag, pricePerCostFactor.Value(), costFactor)
	if err != nil {
		return nil, err
	}
	return NewFeeBasis(pricePerCostFactor.Unit(), v)
}

func (fb *FeeBasis) Refs() *refcount.Ref { return &fb.ref }

// Take adds an owner.
func (fb *FeeBasis) Take() *FeeBasis { return refcount.Take(fb) }

// Release drops an owner.
func (fb *FeeBasis) Release() { fb.ref.Release() }

func (fb *FeeBasis) Tag() Tag             { return fb.tag }
func (fb *FeeBasis) Unit() *amount.Unit   { return fb.unit }
func (fb *FeeBasis) Value() FeeBasisValue { return fb.value }
func (fb *FeeBasis) CostFactor() float64  { return fb.value.CostFactor() }

func (fb *FeeBasis) PricePerCostFactor() amount.Amount {
	return amount.New(fb.unit, fb.value.PricePerCostFactor(), false)
}

// Fee returns PricePerCostFactor × CostFactor.
func (fb *FeeBasis) Fee() (amount.Amount, error) {
	fee, err := ComputeFee(fb.value.PricePerCostFactor(), fb.value.CostFactor())
	if err != nil {
		return amount.Amount{}, err
	}
	return amount.New(fb.unit, fee, false), nil
}

// Equal reports whether both bases have the same price and cost factor.
func (fb *FeeBasis) Equal(o *FeeBasis) bool {
	if fb == o {
		return true
	}
	if fb == nil || o == nil {
		return false
	}
	if fb.tag != o.tag || !fb.unit.IsCompatible(o.unit) {
		return false
	}
	return fb.PricePerCostFactor().Equal(o.PricePerCostFactor()) && fb.CostFactor() == o.CostFactor()
}
