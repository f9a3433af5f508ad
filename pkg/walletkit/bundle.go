package walletkit

import (
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"
)

// BundleStatus is the status string reported by a client.
type BundleStatus string

const (
	BundleConfirmed BundleStatus = "confirmed"
	BundleSubmitted BundleStatus = "submitted"
	BundleReverted  BundleStatus = "reverted"
	BundleFailed    BundleStatus = "failed"
	BundleRejected  BundleStatus = "rejected"
	BundleDeleted   BundleStatus = "deleted"
)

// TransferBundle is a transfer as reported by an account-model client.
// Amounts and fees are decimal strings in base units.
type TransferBundle struct {
	Status                BundleStatus      `json:"status"`
	UIDs                  string            `json:"uids"`
	Hash                  string            `json:"hash"`
	Identifier            string            `json:"identifier,omitempty"`
	From                  string            `json:"from"`
	To                    string            `json:"to"`
	Amount                string            `json:"amount"`
	Currency              string            `json:"currency"`
	Fee                   string            `json:"fee,omitempty"`
	TransferIndex         uint64            `json:"transferIndex"`
	BlockTimestamp        int64             `json:"blockTimestamp"`
	BlockNumber           uint64            `json:"blockNumber"`
	BlockConfirmations    uint64            `json:"blockConfirmations"`
	BlockTransactionIndex uint64            `json:"blockTransactionIndex"`
	BlockHash             string            `json:"blockHash,omitempty"`
	Attributes            map[string]string `json:"attributes,omitempty"`
}

// TransactionBundle is a raw transaction as reported by a UTXO client.
type TransactionBundle struct {
	Status        BundleStatus `json:"status"`
	Serialization []byte       `json:"serialization"`
	Timestamp     int64        `json:"timestamp"`
	BlockHeight   uint64       `json:"blockHeight"`
}

// Included reports whether the bundle has a block.
func (b *TransactionBundle) Included() bool { return b.BlockHeight > 0 }

// StateForTransaction maps a transaction bundle to a transfer state. fee is
// the fee basis paid, if known.
func StateForTransaction(b *TransactionBundle, fee *FeeBasis) TransferState {
	switch b.Status {
	case BundleFailed, BundleRejected:
		return StateErrored{Err: SubmitError{Kind: SubmitUnknown, Message: string(b.Status)}}
	case BundleDeleted:
		return StateDeleted{}
	}
	if !b.Included() {
		return StateSubmitted{}
	}
	return StateIncluded{
		BlockNumber: b.BlockHeight,
		Timestamp:   time.Unix(b.Timestamp, 0).UTC(),
		FeeBasis:    fee,
		Success:     true,
	}
}

// bundleErrorKey is the attribute under which clients report the failure
// reason of an included but failed transfer.
const bundleErrorKey = "__error__"

// StateForTransfer maps a transfer bundle to a transfer state:
// confirmed is Included, submitted and reverted are Submitted, failed and
// rejected are Errored unless a block is reported, in which case the
// transfer was included but failed.
func StateForTransfer(b *TransferBundle, fee *FeeBasis) TransferState {
	included := func(success bool, reason string) TransferState {
		return StateIncluded{
			BlockNumber:      b.BlockNumber,
			TransactionIndex: b.BlockTransactionIndex,
			Timestamp:        time.Unix(b.BlockTimestamp, 0).UTC(),
			FeeBasis:         fee,
			Success:          success,
			Error:            reason,
		}
	}
	switch BundleStatus(strings.ToLower(string(b.Status))) {
	case BundleConfirmed:
		if reason := b.Attributes[bundleErrorKey]; reason != "" {
			return included(false, reason)
		}
		return included(true, "")
	case BundleSubmitted, BundleReverted:
		return StateSubmitted{}
	case BundleFailed, BundleRejected:
		if b.BlockNumber > 0 {
			return included(false, string(b.Status))
		}
		return StateErrored{Err: SubmitError{Kind: SubmitUnknown, Message: string(b.Status)}}
	case BundleDeleted:
		return StateDeleted{}
	default:
		return StateSubmitted{}
	}
}

// ParseBaseUnits parses a non-negative decimal base-unit quantity.
func ParseBaseUnits(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("base units %q: %w", s, err)
	}
	return v, nil
}
