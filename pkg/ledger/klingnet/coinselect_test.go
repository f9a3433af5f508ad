package klingnet

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/walletkit/pkg/types"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

func makeUTXOs(values ...uint64) []UTXO {
	utxos := make([]UTXO, len(values))
	for i, v := range values {
		utxos[i] = UTXO{
			Outpoint: types.Outpoint{TxID: types.Hash{byte(i + 1)}, Index: 0},
			Value:    v,
		}
	}
	return utxos
}

func TestSelectCoins(t *testing.T) {
	tests := []struct {
		name       string
		utxos      []uint64
		target     uint64
		wantTotal  uint64
		wantChange uint64
		wantInputs int
	}{
		{"exact single match", []uint64{1000, 2000, 3000}, 2000, 2000, 0, 1},
		{"single utxo with change", []uint64{5000}, 3000, 5000, 2000, 1},
		{"combine when no single covers", []uint64{1000, 2000, 1500}, 4000, 4500, 500, 3},
		{"single preferred on tie", []uint64{1000, 2000, 3000, 5000}, 3000, 3000, 0, 1},
		{"largest first", []uint64{1000, 3000, 5000, 2000}, 7000, 8000, 1000, 2},
		{"all utxos", []uint64{1000, 2000, 3000}, 6000, 6000, 0, 3},
		{"zero values skipped", []uint64{0, 700, 0}, 500, 700, 200, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := SelectCoins(makeUTXOs(tt.utxos...), tt.target)
			if err != nil {
				t.Fatalf("SelectCoins() error: %v", err)
			}
			if sel.Total != tt.wantTotal || sel.Change != tt.wantChange || len(sel.Inputs) != tt.wantInputs {
				t.Errorf("SelectCoins() = total %d change %d inputs %d, want %d/%d/%d",
					sel.Total, sel.Change, len(sel.Inputs), tt.wantTotal, tt.wantChange, tt.wantInputs)
			}
		})
	}
}

func TestSelectCoins_Errors(t *testing.T) {
	if _, err := SelectCoins(makeUTXOs(1000, 2000), 5000); !errors.Is(err, walletkit.ErrInsufficientFunds) {
		t.Errorf("insufficient: got %v, want ErrInsufficientFunds", err)
	}
	if _, err := SelectCoins(nil, 1000); !errors.Is(err, ErrNoUTXOs) {
		t.Errorf("empty: got %v, want ErrNoUTXOs", err)
	}
	if _, err := SelectCoins(makeUTXOs(0, 0, 0), 1000); !errors.Is(err, ErrNoUTXOs) {
		t.Errorf("all zero: got %v, want ErrNoUTXOs", err)
	}
	if _, err := SelectCoins(makeUTXOs(1000), 0); err == nil {
		t.Error("zero target should fail")
	}
}
