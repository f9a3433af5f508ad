package walletkit

import (
	"bytes"

	"github.com/cespare/xxhash/v2"

	"github.com/Klingon-tech/walletkit/pkg/refcount"
)

// Sentinel marks the two reserved pseudo-addresses.
type Sentinel uint8

const (
	SentinelNone Sentinel = iota
	// SentinelFee is the pseudo-recipient of a transaction's fee.
	SentinelFee
	// SentinelUnknown stands for a counterparty that is not (yet) known.
	SentinelUnknown
)

// Textual forms accepted in non-strict parsing and produced by Address.String.
const (
	FeeAddressString     = "__fee__"
	UnknownAddressString = "unknown"
)

var (
	feePattern     = []byte("__fee__")
	unknownPattern = []byte("__unknown__")
)

// ReservedAddressBytes returns the reserved byte pattern for kind, zero
// padded (or truncated) to size. Ledgers use it to build sentinel values
// that cannot collide with a real address.
func ReservedAddressBytes(kind Sentinel, size int) []byte {
	out := make([]byte, size)
	switch kind {
	case SentinelFee:
		copy(out, feePattern)
	case SentinelUnknown:
		copy(out, unknownPattern)
	}
	return out
}

func sentinelOf(b []byte) Sentinel {
	if len(b) == 0 {
		return SentinelNone
	}
	switch {
	case bytes.Equal(b, ReservedAddressBytes(SentinelFee, len(b))):
		return SentinelFee
	case bytes.Equal(b, ReservedAddressBytes(SentinelUnknown, len(b))):
		return SentinelUnknown
	}
	return SentinelNone
}

// Address is a ledger address. Addresses are immutable once created.
type Address struct {
	ref      refcount.Ref
	tag      Tag
	value    AddressValue
	sentinel Sentinel
	hash     uint64
}

// NewAddress wraps a ledger address value.
func NewAddress(v AddressValue) *Address {
	b := v.Bytes()
	d := xxhash.New()
	d.Write([]byte{byte(v.Tag())})
	d.Write(b)

	a := &Address{
		tag:      v.Tag(),
		value:    v,
		sentinel: sentinelOf(b),
		hash:     d.Sum64(),
	}
	a.ref.Init(nil)
	return a
}

func (a *Address) Refs() *refcount.Ref { return &a.ref }

// Take adds an owner.
func (a *Address) Take() *Address { return refcount.Take(a) }

// Release drops an owner.
func (a *Address) Release() { a.ref.Release() }

func (a *Address) Tag() Tag            { return a.tag }
func (a *Address) Value() AddressValue { return a.value }
func (a *Address) Bytes() []byte       { return a.value.Bytes() }

// HashCode is a cached bucket hash over the ledger tag and address bytes.
func (a *Address) HashCode() uint64 { return a.hash }

func (a *Address) IsFee() bool     { return a.sentinel == SentinelFee }
func (a *Address) IsUnknown() bool { return a.sentinel == SentinelUnknown }

// String returns the ledger encoding, or the sentinel string form.
func (a *Address) String() string {
	switch a.sentinel {
	case SentinelFee:
		return FeeAddressString
	case SentinelUnknown:
		return UnknownAddressString
	}
	return a.value.String()
}

// Equal reports whether a and o denote the same address on the same ledger.
func (a *Address) Equal(o *Address) bool {
	if a == o {
		return true
	}
	if a == nil || o == nil {
		return false
	}
	if a.tag != o.tag || a.hash != o.hash || a.sentinel != o.sentinel {
		return false
	}
	return a.value.Equal(o.value)
}

// Clone returns an independently owned address equal to a.
func (a *Address) Clone() *Address {
	c := &Address{tag: a.tag, value: a.value, sentinel: a.sentinel, hash: a.hash}
	c.ref.Init(nil)
	return c
}

// AddressSet is a set of addresses bucketed by HashCode.
type AddressSet struct {
	buckets map[uint64][]*Address
	n       int
}

// NewAddressSet returns a set holding addrs.
func NewAddressSet(addrs ...*Address) *AddressSet {
	s := &AddressSet{buckets: make(map[uint64][]*Address, len(addrs))}
	for _, a := range addrs {
		s.Add(a)
	}
	return s
}

// Add inserts a and reports whether it was absent.
func (s *AddressSet) Add(a *Address) bool {
	if s.Contains(a) {
		return false
	}
	s.buckets[a.hash] = append(s.buckets[a.hash], a)
	s.n++
	return true
}

// Contains reports whether an address equal to a is in the set.
func (s *AddressSet) Contains(a *Address) bool {
	for _, b := range s.buckets[a.hash] {
		if a.Equal(b) {
			return true
		}
	}
	return false
}

func (s *AddressSet) Len() int { return s.n }

// Slice returns the members in unspecified order.
func (s *AddressSet) Slice() []*Address {
	out := make([]*Address, 0, s.n)
	for _, bucket := range s.buckets {
		out = append(out, bucket...)
	}
	return out
}
