package klingnet

import (
	"cmp"
	"slices"
	"sync"

	"github.com/Klingon-tech/walletkit/pkg/types"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// utxoSet is the per-wallet record of owned outputs and the transactions
// that spent them. Applying a transaction twice has no further effect, and
// a failed transaction can be rolled back.
type utxoSet struct {
	mu      sync.Mutex
	outputs map[types.Outpoint]UTXO
	// createdBy and spentBy index outputs by the transaction that created
	// or spent them.
	createdBy map[types.Hash][]types.Outpoint
	spentBy   map[types.Outpoint]types.Hash
	used      map[types.Address]bool
}

func newUTXOSet() *utxoSet {
	return &utxoSet{
		outputs:   make(map[types.Outpoint]UTXO),
		createdBy: make(map[types.Hash][]types.Outpoint),
		spentBy:   make(map[types.Outpoint]types.Hash),
		used:      make(map[types.Address]bool),
	}
}

func (s *utxoSet) Tag() walletkit.Tag { return Tag }

// output returns an owned output, spent or not.
func (s *utxoSet) output(op types.Outpoint) (UTXO, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.outputs[op]
	return u, ok
}

// apply records the outputs txid creates and the outpoints it spends.
func (s *utxoSet) apply(txid types.Hash, created []UTXO, spent []types.Outpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.createdBy[txid]; !seen {
		ops := make([]types.Outpoint, 0, len(created))
		for _, u := range created {
			ops = append(ops, u.Outpoint)
		}
		s.createdBy[txid] = ops
	}
	for _, u := range created {
		s.outputs[u.Outpoint] = u
		s.used[u.Owner] = true
	}
	for _, op := range spent {
		s.spentBy[op] = txid
	}
}

// revert undoes apply for a transaction that failed or was dropped.
func (s *utxoSet) revert(txid types.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range s.createdBy[txid] {
		delete(s.outputs, op)
	}
	delete(s.createdBy, txid)
	for op, by := range s.spentBy {
		if by == txid {
			delete(s.spentBy, op)
		}
	}
}

// Spendable returns the unspent outputs in outpoint order.
func (s *utxoSet) Spendable() []UTXO {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UTXO, 0, len(s.outputs))
	for op, u := range s.outputs {
		if _, spent := s.spentBy[op]; !spent {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b UTXO) int {
		if c := slices.Compare(a.Outpoint.TxID[:], b.Outpoint.TxID[:]); c != 0 {
			return c
		}
		return cmp.Compare(a.Outpoint.Index, b.Outpoint.Index)
	})
	return out
}

// Balance is the sum of spendable outputs.
func (s *utxoSet) Balance() uint64 {
	var total uint64
	for _, u := range s.Spendable() {
		total += u.Value
	}
	return total
}

func (s *utxoSet) isUsed(a types.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used[a]
}
