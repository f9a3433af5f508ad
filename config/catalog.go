package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Klingon-tech/walletkit/pkg/amount"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

//go:embed networks.yaml
var builtinCatalog []byte

// Catalog lists the networks a manager can be started for.
type Catalog struct {
	Networks []NetworkEntry `yaml:"networks"`
}

// NetworkEntry is one catalog network.
type NetworkEntry struct {
	UIDs           string                    `yaml:"uids"`
	Name           string                    `yaml:"name"`
	Ledger         walletkit.Tag             `yaml:"ledger"`
	Type           NetworkType               `yaml:"type"`
	Confirmations  uint32                    `yaml:"confirmations"`
	Params         map[string]string         `yaml:"params"`
	AddressSchemes []walletkit.AddressScheme `yaml:"addressSchemes"`
	SyncModes      []walletkit.SyncMode      `yaml:"syncModes"`
	Currencies     []CurrencyEntry           `yaml:"currencies"`
	Fees           []FeeEntry                `yaml:"fees"`
}

// CurrencyEntry is a currency and its units. The first currency of a
// network must be its native one.
type CurrencyEntry struct {
	Code   string      `yaml:"code"`
	Name   string      `yaml:"name"`
	Type   string      `yaml:"type"`
	Issuer string      `yaml:"issuer"`
	Units  []UnitEntry `yaml:"units"`
}

// UnitEntry is a display unit. Exactly one unit per currency has zero
// decimals; it is the base unit.
type UnitEntry struct {
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
	Default  bool   `yaml:"default"`
}

// FeeEntry is a fee tier. Price is in base units of the native currency.
type FeeEntry struct {
	Tier             string        `yaml:"tier"`
	ConfirmationTime time.Duration `yaml:"confirmationTime"`
	Price            string        `yaml:"price"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(builtinCatalog)
	if err != nil {
		panic(fmt.Sprintf("config: built-in catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog file. An empty path returns the built-in
// catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return ParseCatalog(b)
}

// ParseCatalog decodes and checks a YAML catalog.
func ParseCatalog(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	seen := make(map[string]bool, len(c.Networks))
	for i := range c.Networks {
		e := &c.Networks[i]
		if err := e.validate(); err != nil {
			return nil, err
		}
		if seen[e.UIDs] {
			return nil, fmt.Errorf("catalog: duplicate network %q", e.UIDs)
		}
		seen[e.UIDs] = true
	}
	return &c, nil
}

func (e *NetworkEntry) validate() error {
	if e.UIDs == "" {
		return fmt.Errorf("catalog: network without uids")
	}
	if e.Type != Mainnet && e.Type != Testnet {
		return fmt.Errorf("catalog %s: type must be %q or %q", e.UIDs, Mainnet, Testnet)
	}
	if len(e.Currencies) == 0 || e.Currencies[0].Type != amount.TypeNative {
		return fmt.Errorf("catalog %s: first currency must be native", e.UIDs)
	}
	for _, c := range e.Currencies[1:] {
		if c.Type == amount.TypeNative {
			return fmt.Errorf("catalog %s: more than one native currency", e.UIDs)
		}
	}
	for _, c := range e.Currencies {
		if c.Code == "" {
			return fmt.Errorf("catalog %s: currency without code", e.UIDs)
		}
		bases, defaults := 0, 0
		for _, u := range c.Units {
			if u.Decimals == 0 {
				bases++
			}
			if u.Default {
				defaults++
			}
		}
		if bases != 1 {
			return fmt.Errorf("catalog %s: currency %s needs exactly one zero-decimal unit", e.UIDs, c.Code)
		}
		if defaults > 1 {
			return fmt.Errorf("catalog %s: currency %s has %d default units", e.UIDs, c.Code, defaults)
		}
	}
	for _, f := range e.Fees {
		if _, err := walletkit.ParseBaseUnits(f.Price); err != nil {
			return fmt.Errorf("catalog %s: fee %s: %w", e.UIDs, f.Tier, err)
		}
	}
	return nil
}

// Lookup returns the entry for uids.
func (c *Catalog) Lookup(uids string) (NetworkEntry, bool) {
	for _, e := range c.Networks {
		if e.UIDs == uids {
			return e, true
		}
	}
	return NetworkEntry{}, false
}

// Select returns the entries named by uids, or every entry of the given
// type when uids is empty. Naming a network of the other type is an error.
func (c *Catalog) Select(network NetworkType, uids []string) ([]NetworkEntry, error) {
	if len(uids) == 0 {
		var out []NetworkEntry
		for _, e := range c.Networks {
			if e.Type == network {
				out = append(out, e)
			}
		}
		return out, nil
	}
	out := make([]NetworkEntry, 0, len(uids))
	for _, id := range uids {
		e, ok := c.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("catalog: unknown network %q", id)
		}
		if e.Type != network {
			return nil, fmt.Errorf("catalog: network %q is %s, not %s", id, e.Type, network)
		}
		out = append(out, e)
	}
	return out, nil
}

// currencyUIDs is "<network>:__native__" for the native currency and
// "<network>:<issuer or code>" otherwise.
func (e NetworkEntry) currencyUIDs(c CurrencyEntry) string {
	switch {
	case c.Type == amount.TypeNative:
		return e.UIDs + ":__native__"
	case c.Issuer != "":
		return e.UIDs + ":" + strings.ToLower(c.Issuer)
	default:
		return e.UIDs + ":" + strings.ToLower(c.Code)
	}
}

func (e NetworkEntry) association(c CurrencyEntry) walletkit.Association {
	cur := amount.NewCurrency(e.currencyUIDs(c), c.Name, c.Code, c.Type, c.Issuer)
	prefix := e.UIDs + ":"
	if c.Type != amount.TypeNative {
		prefix += strings.ToLower(c.Code) + ":"
	}

	var base *amount.Unit
	for _, u := range c.Units {
		if u.Decimals == 0 {
			base = amount.NewBaseUnit(cur, prefix+u.Name, u.Name, u.Symbol)
		}
	}
	a := walletkit.Association{Currency: cur, BaseUnit: base, DefaultUnit: base}
	for _, u := range c.Units {
		unit := base
		if u.Decimals != 0 {
			unit = amount.NewUnit(cur, prefix+u.Name, u.Name, u.Symbol, base, u.Decimals)
		}
		a.Units = append(a.Units, unit)
		if u.Default {
			a.DefaultUnit = unit
		}
	}
	return a
}

// Build creates the network through reg.
func (e NetworkEntry) Build(reg *walletkit.Registry) (*walletkit.Network, error) {
	spec := walletkit.NetworkSpec{
		UIDs:                    e.UIDs,
		Name:                    e.Name,
		Tag:                     e.Ledger,
		Mainnet:                 e.Type == Mainnet,
		ConfirmationsUntilFinal: e.Confirmations,
		AddressSchemes:          e.AddressSchemes,
		SyncModes:               e.SyncModes,
		Params:                  e.Params,
	}
	for _, c := range e.Currencies {
		spec.Associations = append(spec.Associations, e.association(c))
	}
	spec.Currency = spec.Associations[0].Currency
	native := spec.Associations[0].BaseUnit
	for _, f := range e.Fees {
		v, err := walletkit.ParseBaseUnits(f.Price)
		if err != nil {
			return nil, fmt.Errorf("network %s: fee %s: %w", e.UIDs, f.Tier, err)
		}
		spec.Fees = append(spec.Fees, walletkit.NetworkFee{
			Tier:               f.Tier,
			ConfirmationTime:   f.ConfirmationTime,
			PricePerCostFactor: amount.New(native, v, false),
		})
	}
	return walletkit.NewNetwork(reg, spec)
}

// BuildNetworks builds the selected catalog networks. On error every
// network built so far is released.
func BuildNetworks(reg *walletkit.Registry, c *Catalog, network NetworkType, uids []string) ([]*walletkit.Network, error) {
	entries, err := c.Select(network, uids)
	if err != nil {
		return nil, err
	}
	out := make([]*walletkit.Network, 0, len(entries))
	for _, e := range entries {
		n, err := e.Build(reg)
		if err != nil {
			for _, built := range out {
				built.Release()
			}
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
