package walletkit

import "encoding/hex"

// Hash is a ledger transaction hash. It is an immutable, comparable value
// usable as a map key. Rendering in the ledger's textual form goes through
// Network.EncodeHash; String is plain hex.
type Hash struct {
	tag Tag
	b   string
}

// NewHash copies b into a hash for tag.
func NewHash(tag Tag, b []byte) Hash {
	return Hash{tag: tag, b: string(b)}
}

func (h Hash) Tag() Tag { return h.tag }

// Bytes returns a copy of the hash bytes.
func (h Hash) Bytes() []byte { return []byte(h.b) }

func (h Hash) Len() int { return len(h.b) }

// IsZero reports whether h is empty or all zero bytes.
func (h Hash) IsZero() bool {
	for i := 0; i < len(h.b); i++ {
		if h.b[i] != 0 {
			return false
		}
	}
	return true
}

func (h Hash) Equal(o Hash) bool { return h == o }

func (h Hash) String() string { return hex.EncodeToString([]byte(h.b)) }
