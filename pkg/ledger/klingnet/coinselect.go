package klingnet

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/Klingon-tech/walletkit/pkg/types"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// ErrNoUTXOs is returned when the wallet holds nothing spendable.
var ErrNoUTXOs = errors.New("no UTXOs available")

// UTXO is an unspent output owned by the wallet.
type UTXO struct {
	Outpoint types.Outpoint
	Value    uint64
	Owner    types.Address
}

// CoinSelection holds the result of coin selection.
type CoinSelection struct {
	Inputs []UTXO
	Total  uint64
	Change uint64 // Total - target
}

// SelectCoins chooses UTXOs covering target. Two strategies are tried:
//  1. Single UTXO: the smallest one that covers the target.
//  2. Largest-first accumulation.
//
// The one leaving less change wins; ties go to the single UTXO.
func SelectCoins(utxos []UTXO, target uint64) (*CoinSelection, error) {
	if target == 0 {
		return nil, fmt.Errorf("target must be positive")
	}

	candidates := make([]UTXO, 0, len(utxos))
	for _, u := range utxos {
		if u.Value > 0 {
			candidates = append(candidates, u)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoUTXOs
	}
	slices.SortFunc(candidates, func(a, b UTXO) int {
		if c := cmp.Compare(a.Value, b.Value); c != 0 {
			return c
		}
		if c := slices.Compare(a.Outpoint.TxID[:], b.Outpoint.TxID[:]); c != 0 {
			return c
		}
		return cmp.Compare(a.Outpoint.Index, b.Outpoint.Index)
	})

	var single *CoinSelection
	for _, u := range candidates {
		if u.Value >= target {
			single = &CoinSelection{Inputs: []UTXO{u}, Total: u.Value, Change: u.Value - target}
			break
		}
	}

	var accum *CoinSelection
	var selected []UTXO
	var total uint64
	for i := len(candidates) - 1; i >= 0; i-- {
		v := candidates[i].Value
		if total > math.MaxUint64-v {
			break
		}
		selected = append(selected, candidates[i])
		total += v
		if total >= target {
			accum = &CoinSelection{Inputs: selected, Total: total, Change: total - target}
			break
		}
	}

	switch {
	case single != nil && accum != nil:
		if single.Change <= accum.Change {
			return single, nil
		}
		return accum, nil
	case single != nil:
		return single, nil
	case accum != nil:
		return accum, nil
	default:
		return nil, fmt.Errorf("%w: have %d, need %d", walletkit.ErrInsufficientFunds, total, target)
	}
}
