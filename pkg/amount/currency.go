// Package amount defines currencies, their units and signed 256-bit amounts.
package amount

import "strings"

// Currency types.
const (
	TypeNative = "native"
	TypeERC20  = "erc20"
	TypeToken  = "token"
)

// Currency is an immutable description of something a wallet can hold.
type Currency struct {
	uids   string
	name   string
	code   string
	typ    string
	issuer string
}

// NewCurrency creates a currency. The code is normalized to lower case.
func NewCurrency(uids, name, code, typ, issuer string) *Currency {
	return &Currency{
		uids:   uids,
		name:   name,
		code:   strings.ToLower(code),
		typ:    typ,
		issuer: issuer,
	}
}

func (c *Currency) UIDs() string   { return c.uids }
func (c *Currency) Name() string   { return c.name }
func (c *Currency) Code() string   { return c.code }
func (c *Currency) Type() string   { return c.typ }
func (c *Currency) Issuer() string { return c.issuer }

// Equal reports whether two currencies describe the same asset.
func (c *Currency) Equal(o *Currency) bool {
	if c == o {
		return true
	}
	if c == nil || o == nil {
		return false
	}
	return c.uids == o.uids && c.code == o.code
}

func (c *Currency) String() string { return c.code }
