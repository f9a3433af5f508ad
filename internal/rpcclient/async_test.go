package rpcclient

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Klingon-tech/walletkit/internal/manager"
	"github.com/Klingon-tech/walletkit/internal/storage"
	"github.com/Klingon-tech/walletkit/pkg/amount"
	"github.com/Klingon-tech/walletkit/pkg/derive"
	"github.com/Klingon-tech/walletkit/pkg/ledger/ethereum"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

type announcement struct {
	req    manager.Request
	height uint64
	hash   string
	count  int
	cost   float64
	err    error
}

// recorder collects announcements on a channel.
type recorder struct{ ch chan announcement }

func newRecorder() *recorder { return &recorder{ch: make(chan announcement, 16)} }

func (r *recorder) AnnounceBlockNumber(req manager.Request, height uint64, hash string, err error) error {
	r.ch <- announcement{req: req, height: height, hash: hash, err: err}
	return nil
}
func (r *recorder) AnnounceTransactions(req manager.Request, b []*walletkit.TransactionBundle, err error) error {
	r.ch <- announcement{req: req, count: len(b), err: err}
	return nil
}
func (r *recorder) AnnounceTransfers(req manager.Request, b []*walletkit.TransferBundle, err error) error {
	r.ch <- announcement{req: req, count: len(b), err: err}
	return nil
}
func (r *recorder) AnnounceSubmit(req manager.Request, hash string, err error) error {
	r.ch <- announcement{req: req, hash: hash, err: err}
	return nil
}
func (r *recorder) AnnounceEstimateFee(req manager.Request, cost float64, err error) error {
	r.ch <- announcement{req: req, cost: cost, err: err}
	return nil
}

func (r *recorder) next(t *testing.T) announcement {
	t.Helper()
	select {
	case a := <-r.ch:
		return a
	case <-time.After(5 * time.Second):
		t.Fatal("no announcement")
		return announcement{}
	}
}

func newRequest(kind manager.RequestKind) manager.Request {
	return manager.Request{ID: uuid.New(), Network: "ethereum-sepolia", Kind: kind}
}

func TestAsyncClient_Methods(t *testing.T) {
	var submitted SubmitParams
	srv := rpcServer(t, func(method string, params json.RawMessage) (any, *RPCError) {
		switch method {
		case MethodBlockNumber:
			return BlockNumberResult{Height: 42, BlockHash: "0xabc"}, nil
		case MethodTransfers:
			var p HistoryParams
			_ = json.Unmarshal(params, &p)
			if p.Begin != 1 || p.End != 43 || len(p.Addresses) != 2 {
				return nil, &RPCError{Code: -32602, Message: "bad params"}
			}
			return []walletkit.TransferBundle{{Hash: "0x1"}, {Hash: "0x2"}}, nil
		case MethodTransactions:
			return []walletkit.TransactionBundle{{Serialization: []byte{1, 2}, BlockHeight: 3}}, nil
		case MethodSubmit:
			_ = json.Unmarshal(params, &submitted)
			return SubmitResult{Hash: "0xfeed"}, nil
		case MethodEstimateFee:
			return EstimateResult{CostFactor: 21000}, nil
		}
		return nil, &RPCError{Code: -32601, Message: "method not found"}
	})

	c := NewAsync(New(srv.URL), 2, time.Second)
	defer c.Close()
	r := newRecorder()
	c.Bind(r)

	req := newRequest(manager.KindBlockNumber)
	c.GetBlockNumber(req)
	a := r.next(t)
	if a.err != nil || a.req != req || a.height != 42 || a.hash != "0xabc" {
		t.Fatalf("block number announcement = %+v", a)
	}

	c.GetTransfers(newRequest(manager.KindTransfers), []string{"a", "b"}, 1, 43)
	if a = r.next(t); a.err != nil || a.count != 2 {
		t.Fatalf("transfers announcement = %+v", a)
	}
	c.GetTransactions(newRequest(manager.KindTransactions), []string{"a"}, 0, 1)
	if a = r.next(t); a.err != nil || a.count != 1 {
		t.Fatalf("transactions announcement = %+v", a)
	}

	c.SubmitTransaction(newRequest(manager.KindSubmit), "0xid", []byte{0xde, 0xad})
	if a = r.next(t); a.err != nil || a.hash != "0xfeed" {
		t.Fatalf("submit announcement = %+v", a)
	}
	if submitted.Data != hex.EncodeToString([]byte{0xde, 0xad}) || submitted.Identifier != "0xid" {
		t.Fatalf("submitted params = %+v", submitted)
	}

	c.EstimateTransactionFee(newRequest(manager.KindEstimateFee), []byte{1})
	if a = r.next(t); a.err != nil || a.cost != 21000 {
		t.Fatalf("estimate announcement = %+v", a)
	}
}

func TestAsyncClient_SubmitRejected(t *testing.T) {
	srv := rpcServer(t, func(string, json.RawMessage) (any, *RPCError) {
		return nil, &RPCError{Code: -32000, Message: "nonce too low"}
	})
	c := NewAsync(New(srv.URL), 1, time.Second)
	defer c.Close()
	r := newRecorder()
	c.Bind(r)

	c.SubmitTransaction(newRequest(manager.KindSubmit), "0xid", []byte{1})
	a := r.next(t)
	var se walletkit.SubmitError
	if !errors.As(a.err, &se) || se.Kind != walletkit.SubmitUnknown || se.Message != "nonce too low" {
		t.Fatalf("submit error = %v", a.err)
	}
}

func TestSubmitError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		kind  walletkit.SubmitErrorKind
		errno int
	}{
		{"errno", errors.Join(errors.New("dial"), syscall.ECONNREFUSED), walletkit.SubmitPosix, int(syscall.ECONNREFUSED)},
		{"rpc", &RPCError{Code: 1, Message: "x"}, walletkit.SubmitUnknown, 0},
		{"other", errors.New("y"), walletkit.SubmitUnknown, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := submitError(tt.err)
			if se.Kind != tt.kind || se.Errno != tt.errno || se.Message == "" {
				t.Fatalf("submitError() = %+v", se)
			}
		})
	}
}

func TestAsyncClient_UnboundDropsRequest(t *testing.T) {
	c := NewAsync(New("http://127.0.0.1:1"), 1, time.Second)
	c.GetBlockNumber(newRequest(manager.KindBlockNumber))
	c.Close()
}

// An indexer serving one incoming transfer drives a manager through a full
// sync over HTTP.
func TestAsyncClient_ManagerSync(t *testing.T) {
	const own = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	srv := rpcServer(t, func(method string, params json.RawMessage) (any, *RPCError) {
		switch method {
		case MethodBlockNumber:
			return BlockNumberResult{Height: 200}, nil
		case MethodTransfers:
			var p HistoryParams
			_ = json.Unmarshal(params, &p)
			if len(p.Addresses) != 1 || !strings.EqualFold(p.Addresses[0], own) {
				return []walletkit.TransferBundle{}, nil
			}
			return []walletkit.TransferBundle{{
				Status:      walletkit.BundleConfirmed,
				Hash:        "0x" + strings.Repeat("ab", 32),
				From:        "0x1111111111111111111111111111111111111111",
				To:          own,
				Amount:      "12345",
				BlockNumber: 150,
			}}, nil
		}
		return nil, &RPCError{Code: -32601, Message: "method not found"}
	})

	reg := walletkit.NewRegistry()
	ethereum.Install(reg)
	eth := amount.NewCurrency("ethereum-sepolia:__native__", "Ether", "ETH", amount.TypeNative, "")
	wei := amount.NewBaseUnit(eth, "ethereum-sepolia:wei", "wei", "WEI")
	n, err := walletkit.NewNetwork(reg, walletkit.NetworkSpec{
		UIDs:         "ethereum-sepolia",
		Tag:          ethereum.Tag,
		Currency:     eth,
		Associations: []walletkit.Association{{Currency: eth, BaseUnit: wei}},
		Params:       map[string]string{ethereum.ParamChainID: "11155111"},
	})
	if err != nil {
		t.Fatalf("NewNetwork() error: %v", err)
	}
	seed, err := derive.SeedFromMnemonic("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about", "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	acct, err := walletkit.CreateAccountWithSeed(reg, ethereum.Tag, seed)
	if err != nil {
		t.Fatalf("CreateAccountWithSeed() error: %v", err)
	}

	client := NewAsync(New(srv.URL), 2, time.Second)
	defer client.Close()
	done := make(chan error, 1)
	m, err := manager.New(manager.Options{
		Network: n,
		Account: acct,
		Client:  client,
		DB:      storage.NewMemory(),
		Listener: func(_ *manager.Manager, e manager.Event) {
			if s, ok := e.(manager.EventSyncStopped); ok {
				done <- s.Err
			}
		},
	})
	if err != nil {
		t.Fatalf("manager.New() error: %v", err)
	}
	defer m.Close()

	if err := m.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("sync error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sync did not finish")
	}
	w := m.PrimaryWallet()
	if w.TransferCount() != 1 || w.Balance().Value().Uint64() != 12345 {
		t.Fatalf("count %d balance %s", w.TransferCount(), w.Balance())
	}
	if m.SyncedTo() != 201 || n.Height() != 200 {
		t.Fatalf("synced %d height %d", m.SyncedTo(), n.Height())
	}
}
