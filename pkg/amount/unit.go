package amount

// Unit is a denomination of a currency. A base unit has zero decimals and no
// parent; every other unit is defined as 10^decimals base units.
type Unit struct {
	currency *Currency
	uids     string
	name     string
	symbol   string
	base     *Unit
	decimals uint8
}

// NewBaseUnit creates the smallest indivisible unit of c.
func NewBaseUnit(c *Currency, uids, name, symbol string) *Unit {
	return &Unit{currency: c, uids: uids, name: name, symbol: symbol}
}

// NewUnit creates a unit worth 10^decimals of base.
func NewUnit(c *Currency, uids, name, symbol string, base *Unit, decimals uint8) *Unit {
	if base != nil && base.base != nil {
		base = base.base
	}
	return &Unit{currency: c, uids: uids, name: name, symbol: symbol, base: base, decimals: decimals}
}

func (u *Unit) Currency() *Currency { return u.currency }
func (u *Unit) UIDs() string        { return u.uids }
func (u *Unit) Name() string        { return u.name }
func (u *Unit) Symbol() string      { return u.symbol }
func (u *Unit) Decimals() uint8     { return u.decimals }

// Base returns the base unit this unit is defined against, or u itself.
func (u *Unit) Base() *Unit {
	if u.base == nil {
		return u
	}
	return u.base
}

// IsCompatible reports whether amounts in u and o can be combined.
func (u *Unit) IsCompatible(o *Unit) bool {
	if u == nil || o == nil {
		return false
	}
	return u.currency.Equal(o.currency)
}

// Equal reports whether both units denote the same denomination.
func (u *Unit) Equal(o *Unit) bool {
	if u == o {
		return true
	}
	if u == nil || o == nil {
		return false
	}
	return u.uids == o.uids && u.decimals == o.decimals && u.currency.Equal(o.currency)
}

func (u *Unit) String() string { return u.symbol }
