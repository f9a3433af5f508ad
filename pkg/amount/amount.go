package amount

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	ErrParse        = errors.New("amount: invalid number")
	ErrOverflow     = errors.New("amount: value exceeds 256 bits")
	ErrIncompatible = errors.New("amount: incompatible currencies")
)

// Amount is a signed quantity of a currency, held in base units as a 256-bit
// magnitude plus a sign. The unit records how the amount was expressed; all
// arithmetic happens in base units. Amounts are values and safe to copy.
type Amount struct {
	unit     *Unit
	value    uint256.Int
	negative bool
}

// New creates an amount from a base-unit magnitude.
func New(unit *Unit, v *uint256.Int, negative bool) Amount {
	a := Amount{unit: unit, negative: negative}
	if v != nil {
		a.value.Set(v)
	}
	if a.value.IsZero() {
		a.negative = false
	}
	return a
}

// Zero returns a zero amount in unit.
func Zero(unit *Unit) Amount {
	return Amount{unit: unit}
}

// FromUint64 creates a non-negative amount of v base units.
func FromUint64(unit *Unit, v uint64) Amount {
	return New(unit, uint256.NewInt(v), false)
}

// FromInt64 creates an amount of v base units.
func FromInt64(unit *Unit, v int64) Amount {
	if v < 0 {
		return New(unit, uint256.NewInt(uint64(-(v + 1))+1), true)
	}
	return New(unit, uint256.NewInt(uint64(v)), false)
}

// Parse reads a decimal string expressed in unit ("1.5" ether, "-20" wei)
// and converts it to base units. Fractions finer than one base unit are
// rejected.
func Parse(s string, unit *Unit) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty string", ErrParse)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrParse, s)
	}
	d = d.Shift(int32(unit.Decimals()))
	if !d.IsInteger() {
		return Amount{}, fmt.Errorf("%w: %q has more than %d decimals", ErrParse, s, unit.Decimals())
	}
	v, overflow := uint256.FromBig(d.Abs().BigInt())
	if overflow {
		return Amount{}, fmt.Errorf("%w: %q", ErrOverflow, s)
	}
	return New(unit, v, d.Sign() < 0), nil
}

func (a Amount) Unit() *Unit { return a.unit }

func (a Amount) Currency() *Currency {
	if a.unit == nil {
		return nil
	}
	return a.unit.Currency()
}

// Value returns a copy of the base-unit magnitude.
func (a Amount) Value() *uint256.Int { return new(uint256.Int).Set(&a.value) }

func (a Amount) IsNegative() bool { return a.negative }
func (a Amount) IsZero() bool     { return a.value.IsZero() }

// Sign returns -1, 0 or 1.
func (a Amount) Sign() int {
	switch {
	case a.value.IsZero():
		return 0
	case a.negative:
		return -1
	default:
		return 1
	}
}

// IsCompatible reports whether a and o are in the same currency.
func (a Amount) IsCompatible(o Amount) bool {
	return a.unit.IsCompatible(o.unit)
}

// Negate flips the sign.
func (a Amount) Negate() Amount {
	return New(a.unit, &a.value, !a.negative)
}

// Abs returns the magnitude as a non-negative amount.
func (a Amount) Abs() Amount {
	return New(a.unit, &a.value, false)
}

// Add returns a + o. The result keeps a's unit.
func (a Amount) Add(o Amount) (Amount, error) {
	if !a.IsCompatible(o) {
		return Amount{}, ErrIncompatible
	}
	if a.negative == o.negative {
		var sum uint256.Int
		if _, overflow := sum.AddOverflow(&a.value, &o.value); overflow {
			return Amount{}, ErrOverflow
		}
		return New(a.unit, &sum, a.negative), nil
	}
	var diff uint256.Int
	if a.value.Cmp(&o.value) >= 0 {
		diff.Sub(&a.value, &o.value)
		return New(a.unit, &diff, a.negative), nil
	}
	diff.Sub(&o.value, &a.value)
	return New(a.unit, &diff, o.negative), nil
}

// Sub returns a - o.
func (a Amount) Sub(o Amount) (Amount, error) {
	return a.Add(o.Negate())
}

// Compare returns -1, 0 or 1 comparing a with o.
func (a Amount) Compare(o Amount) (int, error) {
	if !a.IsCompatible(o) {
		return 0, ErrIncompatible
	}
	as, bs := a.Sign(), o.Sign()
	switch {
	case as < bs:
		return -1, nil
	case as > bs:
		return 1, nil
	case as == 0:
		return 0, nil
	}
	c := a.value.Cmp(&o.value)
	if as < 0 {
		c = -c
	}
	return c, nil
}

// Equal reports whether a and o are the same signed quantity of one currency.
func (a Amount) Equal(o Amount) bool {
	c, err := a.Compare(o)
	return err == nil && c == 0
}

// Decimal returns the signed base-unit quantity.
func (a Amount) Decimal() decimal.Decimal {
	d := decimal.NewFromBigInt(a.value.ToBig(), 0)
	if a.negative {
		d = d.Neg()
	}
	return d
}

// In returns the amount expressed in unit u.
func (a Amount) In(u *Unit) (decimal.Decimal, error) {
	if !a.unit.IsCompatible(u) {
		return decimal.Decimal{}, ErrIncompatible
	}
	return a.Decimal().Shift(-int32(u.Decimals())), nil
}

// Format renders the amount in unit u followed by its symbol.
func (a Amount) Format(u *Unit) string {
	d, err := a.In(u)
	if err != nil {
		return a.String()
	}
	return d.String() + " " + u.Symbol()
}

// String renders the signed base-unit quantity.
func (a Amount) String() string {
	if a.negative {
		return "-" + a.value.Dec()
	}
	return a.value.Dec()
}
