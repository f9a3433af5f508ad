package walletkit

import "strings"

// Attribute is a ledger-specific key/value attached to a transfer, such as a
// memo or a delegation flag. An empty Value means not provided.
type Attribute struct {
	Key      string
	Value    string
	Required bool
}

// HasValue reports whether a value was provided.
func (a Attribute) HasValue() bool { return a.Value != "" }

// KeyIs compares the attribute key case-insensitively.
func (a Attribute) KeyIs(key string) bool { return strings.EqualFold(a.Key, key) }

// FindAttribute returns the attribute named key, if present.
func FindAttribute(attrs []Attribute, key string) (Attribute, bool) {
	for _, a := range attrs {
		if a.KeyIs(key) {
			return a, true
		}
	}
	return Attribute{}, false
}

func copyAttributes(attrs []Attribute) []Attribute {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]Attribute, len(attrs))
	copy(out, attrs)
	return out
}
