package rpcclient

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"syscall"
	"time"

	"github.com/Klingon-tech/walletkit/internal/log"
	"github.com/Klingon-tech/walletkit/internal/manager"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// Indexer method names.
const (
	MethodBlockNumber  = "getBlockNumber"
	MethodTransfers    = "getTransfers"
	MethodTransactions = "getTransactions"
	MethodSubmit       = "submitTransaction"
	MethodEstimateFee  = "estimateTransactionFee"
)

// BlockNumberResult is the result of getBlockNumber.
type BlockNumberResult struct {
	Height    uint64 `json:"height"`
	BlockHash string `json:"blockHash,omitempty"`
}

// HistoryParams are the params of getTransfers and getTransactions. The
// block range is [Begin, End).
type HistoryParams struct {
	Network   string   `json:"network"`
	Addresses []string `json:"addresses"`
	Begin     uint64   `json:"begin"`
	End       uint64   `json:"end"`
}

// SubmitParams are the params of submitTransaction. Data is hex encoded.
type SubmitParams struct {
	Network    string `json:"network"`
	Identifier string `json:"identifier"`
	Data       string `json:"data"`
}

type SubmitResult struct {
	Hash string `json:"hash"`
}

type EstimateParams struct {
	Network string `json:"network"`
	Data    string `json:"data"`
}

type EstimateResult struct {
	CostFactor float64 `json:"costFactor"`
}

type networkParams struct {
	Network string `json:"network"`
}

// AsyncClient adapts Client to manager.Client: every request runs on its
// own goroutine and its result is announced to the bound manager.
type AsyncClient struct {
	rpc     *Client
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sem    chan struct{}

	mu        sync.RWMutex
	announcer manager.Announcer
}

var (
	_ manager.Client = (*AsyncClient)(nil)
	_ manager.Binder = (*AsyncClient)(nil)
)

// NewAsync wraps rpc. At most concurrency calls are in flight; timeout
// bounds each call.
func NewAsync(rpc *Client, concurrency int, timeout time.Duration) *AsyncClient {
	if concurrency <= 0 {
		concurrency = 4
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncClient{
		rpc:     rpc,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		sem:     make(chan struct{}, concurrency),
	}
}

// Bind directs results to a.
func (c *AsyncClient) Bind(a manager.Announcer) {
	c.mu.Lock()
	c.announcer = a
	c.mu.Unlock()
}

// Close cancels outstanding calls and waits for their announcements.
func (c *AsyncClient) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *AsyncClient) spawn(req manager.Request, fn func(ctx context.Context, a manager.Announcer) error) {
	c.mu.RLock()
	a := c.announcer
	c.mu.RUnlock()
	if a == nil {
		log.Client.Error().Str("kind", string(req.Kind)).Msg("Request before Bind dropped")
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case c.sem <- struct{}{}:
		case <-c.ctx.Done():
			return
		}
		defer func() { <-c.sem }()

		ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
		defer cancel()
		if err := fn(ctx, a); err != nil && !errors.Is(err, manager.ErrUnknownRequest) {
			log.Client.Warn().Err(err).Str("kind", string(req.Kind)).Msg("Announce failed")
		}
	}()
}

func (c *AsyncClient) GetBlockNumber(req manager.Request) {
	c.spawn(req, func(ctx context.Context, a manager.Announcer) error {
		var res BlockNumberResult
		err := c.rpc.CallContext(ctx, MethodBlockNumber, networkParams{Network: req.Network}, &res)
		return a.AnnounceBlockNumber(req, res.Height, res.BlockHash, err)
	})
}

func (c *AsyncClient) GetTransfers(req manager.Request, addresses []string, begin, end uint64) {
	params := HistoryParams{Network: req.Network, Addresses: addresses, Begin: begin, End: end}
	c.spawn(req, func(ctx context.Context, a manager.Announcer) error {
		var res []*walletkit.TransferBundle
		err := c.rpc.CallContext(ctx, MethodTransfers, params, &res)
		return a.AnnounceTransfers(req, res, err)
	})
}

func (c *AsyncClient) GetTransactions(req manager.Request, addresses []string, begin, end uint64) {
	params := HistoryParams{Network: req.Network, Addresses: addresses, Begin: begin, End: end}
	c.spawn(req, func(ctx context.Context, a manager.Announcer) error {
		var res []*walletkit.TransactionBundle
		err := c.rpc.CallContext(ctx, MethodTransactions, params, &res)
		return a.AnnounceTransactions(req, res, err)
	})
}

func (c *AsyncClient) SubmitTransaction(req manager.Request, identifier string, data []byte) {
	params := SubmitParams{Network: req.Network, Identifier: identifier, Data: hex.EncodeToString(data)}
	c.spawn(req, func(ctx context.Context, a manager.Announcer) error {
		var res SubmitResult
		err := c.rpc.CallContext(ctx, MethodSubmit, params, &res)
		if err != nil {
			err = submitError(err)
		}
		return a.AnnounceSubmit(req, res.Hash, err)
	})
}

func (c *AsyncClient) EstimateTransactionFee(req manager.Request, data []byte) {
	params := EstimateParams{Network: req.Network, Data: hex.EncodeToString(data)}
	c.spawn(req, func(ctx context.Context, a manager.Announcer) error {
		var res EstimateResult
		err := c.rpc.CallContext(ctx, MethodEstimateFee, params, &res)
		return a.AnnounceEstimateFee(req, res.CostFactor, err)
	})
}

// submitError classifies a failed submission: an OS error number from
// the transport is a posix error, anything else is unknown.
func submitError(err error) walletkit.SubmitError {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return walletkit.SubmitError{Kind: walletkit.SubmitPosix, Errno: int(errno), Message: errno.Error()}
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return walletkit.SubmitError{Kind: walletkit.SubmitUnknown, Message: rpcErr.Message}
	}
	return walletkit.SubmitError{Kind: walletkit.SubmitUnknown, Message: err.Error()}
}
