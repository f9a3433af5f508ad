package walletkit

import (
	"fmt"
	"strings"
)

// Tag identifies a ledger type. The set is closed; handler sets are
// installed per tag at startup.
type Tag uint8

const (
	TagBitcoin Tag = iota
	TagBitcoinCash
	TagEthereum
	TagRipple
	TagHedera
	TagTezos
	TagKlingnet

	tagCount
)

var tagNames = [tagCount]string{
	TagBitcoin:     "btc",
	TagBitcoinCash: "bch",
	TagEthereum:    "eth",
	TagRipple:      "xrp",
	TagHedera:      "hbar",
	TagTezos:       "xtz",
	TagKlingnet:    "kgx",
}

// Tags returns every known ledger tag.
func Tags() []Tag {
	out := make([]Tag, 0, tagCount)
	for t := Tag(0); t < tagCount; t++ {
		out = append(out, t)
	}
	return out
}

// Valid reports whether t is a known ledger tag.
func (t Tag) Valid() bool { return t < tagCount }

func (t Tag) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
	return tagNames[t]
}

// ParseTag converts a ledger code ("eth", "kgx") to a Tag.
func ParseTag(s string) (Tag, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range tagNames {
		if name == s {
			return Tag(t), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLedger, s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Tag) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLedger, uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tag) UnmarshalText(b []byte) error {
	v, err := ParseTag(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
