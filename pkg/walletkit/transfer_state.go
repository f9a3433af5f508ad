package walletkit

import (
	"fmt"
	"time"
)

// TransferStateType enumerates the transfer lifecycle.
type TransferStateType int

const (
	TransferCreated TransferStateType = iota
	TransferSigned
	TransferSubmitted
	TransferIncluded
	TransferErrored
	TransferDeleted
)

func (t TransferStateType) String() string {
	switch t {
	case TransferCreated:
		return "created"
	case TransferSigned:
		return "signed"
	case TransferSubmitted:
		return "submitted"
	case TransferIncluded:
		return "included"
	case TransferErrored:
		return "errored"
	case TransferDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("state(%d)", int(t))
	}
}

// rank orders states along the lifecycle. Errored ranks below Included: a
// submission reported as failed may still be observed in a block, but a
// transfer seen in a block is never errored afterwards. A failure inside
// a block is Included with Success false.
func (t TransferStateType) rank() int {
	switch t {
	case TransferCreated:
		return 0
	case TransferSigned:
		return 1
	case TransferSubmitted:
		return 2
	case TransferErrored:
		return 3
	case TransferIncluded:
		return 4
	default:
		return 5
	}
}

// TransferState is one of StateCreated, StateSigned, StateSubmitted,
// StateIncluded, StateErrored or StateDeleted.
type TransferState interface {
	Type() TransferStateType
	isTransferState()
}

type StateCreated struct{}

type StateSigned struct{}

type StateSubmitted struct{}

// StateIncluded records the block a transfer was included in. Success is
// false when the ledger included the transaction but its effect failed; the
// payer is still charged the fee.
type StateIncluded struct {
	BlockNumber      uint64
	TransactionIndex uint64
	Timestamp        time.Time
	FeeBasis         *FeeBasis
	Success          bool
	Error            string
}

type StateErrored struct {
	Err SubmitError
}

type StateDeleted struct{}

func (StateCreated) Type() TransferStateType   { return TransferCreated }
func (StateSigned) Type() TransferStateType    { return TransferSigned }
func (StateSubmitted) Type() TransferStateType { return TransferSubmitted }
func (StateIncluded) Type() TransferStateType  { return TransferIncluded }
func (StateErrored) Type() TransferStateType   { return TransferErrored }
func (StateDeleted) Type() TransferStateType   { return TransferDeleted }

func (StateCreated) isTransferState()   {}
func (StateSigned) isTransferState()    {}
func (StateSubmitted) isTransferState() {}
func (StateIncluded) isTransferState()  {}
func (StateErrored) isTransferState()   {}
func (StateDeleted) isTransferState()   {}

// CanTransition reports whether a transfer in from may move to to. States
// never move backward; from Submitted onward a state may be refreshed with
// a newer report of the same rank.
func CanTransition(from, to TransferState) bool {
	if from == nil {
		return true
	}
	if to == nil || from.Type() == TransferDeleted {
		return false
	}
	fr, tr := from.Type().rank(), to.Type().rank()
	if tr > fr {
		return true
	}
	return tr == fr && fr >= TransferSubmitted.rank()
}
