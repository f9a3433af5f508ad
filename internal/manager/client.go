package manager

import (
	"github.com/google/uuid"

	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// RequestKind names the client call a request belongs to.
type RequestKind string

const (
	KindBlockNumber  RequestKind = "block_number"
	KindTransactions RequestKind = "transactions"
	KindTransfers    RequestKind = "transfers"
	KindSubmit       RequestKind = "submit"
	KindEstimateFee  RequestKind = "estimate_fee"
)

// Request identifies one outstanding client call. The client hands it back
// unchanged to the matching Announce method.
type Request struct {
	ID      uuid.UUID
	Network string
	Kind    RequestKind
}

// Client reaches the ledger on behalf of a Manager. Every method must
// return immediately and report its result later through the Announcer.
type Client interface {
	GetBlockNumber(req Request)
	// GetTransactions asks for raw transactions touching addresses in
	// blocks [begin, end).
	GetTransactions(req Request, addresses []string, begin, end uint64)
	// GetTransfers asks for transfers touching addresses in blocks
	// [begin, end).
	GetTransfers(req Request, addresses []string, begin, end uint64)
	SubmitTransaction(req Request, identifier string, data []byte)
	EstimateTransactionFee(req Request, data []byte)
}

// Announcer receives client results. *Manager implements it.
type Announcer interface {
	AnnounceBlockNumber(req Request, height uint64, blockHash string, err error) error
	AnnounceTransactions(req Request, bundles []*walletkit.TransactionBundle, err error) error
	AnnounceTransfers(req Request, bundles []*walletkit.TransferBundle, err error) error
	AnnounceSubmit(req Request, hash string, err error) error
	AnnounceEstimateFee(req Request, costFactor float64, err error) error
}

// Binder is implemented by clients that need the Announcer of the manager
// they serve. New calls Bind before the manager is returned.
type Binder interface {
	Bind(a Announcer)
}
