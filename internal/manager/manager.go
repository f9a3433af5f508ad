// Package manager runs a network's wallets against an asynchronous ledger
// client: it syncs transfers, submits signed transfers, estimates fees and
// persists what the client reported.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/walletkit/internal/log"
	"github.com/Klingon-tech/walletkit/internal/metrics"
	"github.com/Klingon-tech/walletkit/internal/storage"
	"github.com/Klingon-tech/walletkit/pkg/amount"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

var (
	ErrUnknownWallet  = errors.New("unknown wallet")
	ErrUnknownRequest = errors.New("unknown request")
	ErrNotConnected   = errors.New("manager not connected")
	ErrClosed         = errors.New("manager closed")
	ErrActive         = errors.New("a manager is active for this path")
)

// Options configures a Manager.
type Options struct {
	Network *walletkit.Network
	Account *walletkit.Account
	Client  Client
	// DB persists reported bundles under a per-network namespace. A nil DB
	// keeps state in memory.
	DB storage.DB
	// Path identifies the persisted state. While the manager is open, Wipe
	// and WipeStore refuse to remove it.
	Path     string
	Metrics  *metrics.Collector
	Listener Listener
}

type pending struct {
	req       Request
	sync      bool
	addresses []string
	seen      map[string]bool
	begin     uint64
	end       uint64
	wallet    *walletkit.Wallet
	transfer  *walletkit.Transfer
	fee       walletkit.NetworkFee
}

func (p *pending) release() {
	if p.transfer != nil {
		p.transfer.Release()
		p.transfer = nil
	}
}

// Manager owns the wallets of one account on one network.
type Manager struct {
	id       uuid.UUID
	network  *walletkit.Network
	account  *walletkit.Account
	client   Client
	db       *storage.PrefixDB
	path     string
	metrics  *metrics.Collector
	listener Listener
	log      zerolog.Logger
	useTxs   bool

	// applyMu serializes application of client results.
	applyMu sync.Mutex

	mu        sync.Mutex
	state     State
	wallets   []*walletkit.Wallet
	pending   map[uuid.UUID]*pending
	syncing   bool
	syncStart time.Time
	syncedTo  uint64
}

// New creates a manager for opts.Account on opts.Network, creates the
// primary wallet and replays persisted bundles. The manager takes its own
// references to the network and account.
func New(opts Options) (*Manager, error) {
	if opts.Network == nil || opts.Account == nil || opts.Client == nil {
		return nil, errors.New("manager: network, account and client are required")
	}
	if opts.Network.Tag() != opts.Account.Tag() {
		return nil, fmt.Errorf("%w: %s account on %s network", walletkit.ErrLedgerMismatch, opts.Account.Tag(), opts.Network.Tag())
	}
	db := opts.DB
	if db == nil {
		db = storage.NewMemory()
	}
	if err := acquirePath(opts.Path); err != nil {
		return nil, err
	}

	n := opts.Network
	_, useTxs := n.Handlers().Wallet.(walletkit.TransactionDecoder)
	m := &Manager{
		id:       uuid.New(),
		network:  n.Take(),
		account:  opts.Account.Take(),
		client:   opts.Client,
		db:       storage.NewPrefixDB(db, namespace(n.UIDs())),
		path:     opts.Path,
		metrics:  opts.Metrics,
		listener: opts.Listener,
		log:      log.Manager.With().Str("network", n.UIDs()).Logger(),
		useTxs:   useTxs,
		pending:  make(map[uuid.UUID]*pending),
	}
	if _, err := m.walletFor(n.Currency()); err != nil {
		m.Close()
		return nil, err
	}
	if err := m.replay(); err != nil {
		m.Close()
		return nil, fmt.Errorf("replay %s: %w", n.UIDs(), err)
	}
	if b, ok := opts.Client.(Binder); ok {
		b.Bind(m)
	}
	m.log.Info().Str("id", m.id.String()).Str("ledger", n.Tag().String()).Msg("Wallet manager created")
	return m, nil
}

func (m *Manager) ID() uuid.UUID               { return m.id }
func (m *Manager) Network() *walletkit.Network { return m.network }
func (m *Manager) Account() *walletkit.Account { return m.account }

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Syncing reports whether a sync is in progress.
func (m *Manager) Syncing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncing
}

// SyncedTo returns the height through which transfers have been fetched.
func (m *Manager) SyncedTo() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncedTo
}

func (m *Manager) emit(e Event) {
	if m.listener != nil {
		m.listener(m, e)
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	old := m.state
	m.state = s
	m.mu.Unlock()
	if old != s {
		m.log.Info().Str("from", old.String()).Str("to", s.String()).Msg("Manager state changed")
		m.emit(EventStateChanged{Old: old, New: s})
	}
}

// PrimaryWallet returns the wallet of the network's native currency.
func (m *Manager) PrimaryWallet() *walletkit.Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.wallets) == 0 {
		return nil
	}
	return m.wallets[0]
}

// Wallets returns the manager's wallets, primary first.
func (m *Manager) Wallets() []*walletkit.Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*walletkit.Wallet(nil), m.wallets...)
}

// Wallet returns the wallet holding c.
func (m *Manager) Wallet(c *amount.Currency) (*walletkit.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.wallets {
		if w.Currency().Equal(c) {
			return w, nil
		}
	}
	return nil, fmt.Errorf("%w: %s on %s", ErrUnknownWallet, c, m.network.UIDs())
}

// CreateWallet returns the wallet for c, creating it when needed.
func (m *Manager) CreateWallet(c *amount.Currency) (*walletkit.Wallet, error) {
	if !m.network.HasCurrency(c) {
		return nil, fmt.Errorf("%w: %s not on %s", walletkit.ErrNotFound, c, m.network.UIDs())
	}
	return m.walletFor(c)
}

func (m *Manager) walletFor(c *amount.Currency) (*walletkit.Wallet, error) {
	if w, err := m.Wallet(c); err == nil {
		return w, nil
	}
	w, err := walletkit.NewWallet(m.network, m.account, c,
		walletkit.WithWalletListener(m.onWalletEvent),
		walletkit.WithSiblings(m.Wallets))
	if err != nil {
		return nil, err
	}
	if fee, err := m.network.MinimumFee(); err == nil {
		fb, err := w.FeeBasisFor(fee, 1)
		if err == nil {
			err = w.SetDefaultFeeBasis(fb)
			fb.Release()
		}
		if err != nil {
			m.log.Warn().Err(err).Str("currency", c.Code()).Msg("No default fee basis")
		}
	}

	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		w.Release()
		return nil, ErrClosed
	}
	for _, existing := range m.wallets {
		if existing.Currency().Equal(c) {
			m.mu.Unlock()
			w.Release()
			return existing, nil
		}
	}
	m.wallets = append(m.wallets, w)
	m.mu.Unlock()

	m.log.Debug().Str("currency", c.Code()).Msg("Wallet created")
	m.emit(EventWalletAdded{Wallet: w})
	return w, nil
}

func (m *Manager) onWalletEvent(w *walletkit.Wallet, e walletkit.WalletEvent) {
	if m.metrics != nil {
		switch ev := e.(type) {
		case walletkit.WalletTransferAdded:
			m.metrics.CountTransfer(m.network.UIDs(), w.Currency().Code(), ev.Transfer.Direction().String())
		case walletkit.WalletBalanceUpdated:
			if u, err := m.network.DefaultUnit(w.Currency()); err == nil {
				if d, err := ev.Balance.In(u); err == nil {
					m.metrics.SetBalance(m.network.UIDs(), w.Currency().Code(), d.InexactFloat64())
				}
			}
		}
	}
	m.emit(EventWallet{Wallet: w, Event: e})
}

// Connect starts accepting client results and begins a sync.
func (m *Manager) Connect() error {
	m.mu.Lock()
	st := m.state
	m.mu.Unlock()
	switch st {
	case StateClosed:
		return ErrClosed
	case StateConnected:
		return nil
	}
	m.setState(StateConnected)
	return m.Sync()
}

// Disconnect drops outstanding requests; results that arrive later are
// ignored. Transfer state already applied is kept.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	dropped := m.pending
	m.pending = make(map[uuid.UUID]*pending)
	wasSyncing := m.syncing
	m.syncing = false
	m.mu.Unlock()

	for _, p := range dropped {
		p.release()
	}
	if wasSyncing {
		m.emit(EventSyncStopped{Err: ErrNotConnected})
	}
	m.setState(StateDisconnected)
}

// Sync fetches the block height and then every transfer since the last
// completed sync. It returns at once; progress arrives as events. A sync
// already in progress is left alone.
func (m *Manager) Sync() error {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	if m.syncing {
		m.mu.Unlock()
		return nil
	}
	m.syncing = true
	m.syncStart = time.Now()
	req := m.newRequestLocked(KindBlockNumber, &pending{sync: true})
	m.mu.Unlock()

	m.log.Debug().Msg("Sync started")
	m.emit(EventSyncStarted{})
	m.client.GetBlockNumber(req)
	return nil
}

func (m *Manager) newRequestLocked(kind RequestKind, p *pending) Request {
	p.req = Request{ID: uuid.New(), Network: m.network.UIDs(), Kind: kind}
	m.pending[p.req.ID] = p
	return p.req
}

// take removes and returns the pending request for req.
func (m *Manager) take(req Request) (*pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[req.ID]
	if !ok || p.req.Kind != req.Kind {
		return nil, fmt.Errorf("%w: %s %s", ErrUnknownRequest, req.Kind, req.ID)
	}
	delete(m.pending, req.ID)
	return p, nil
}

func (m *Manager) endSync(err error) {
	m.mu.Lock()
	if !m.syncing {
		m.mu.Unlock()
		return
	}
	m.syncing = false
	elapsed := time.Since(m.syncStart)
	m.mu.Unlock()

	if err != nil {
		m.log.Warn().Err(err).Msg("Sync failed")
	} else {
		m.log.Debug().Dur("duration", elapsed).Msg("Sync completed")
		if m.metrics != nil {
			m.metrics.ObserveSync(m.network.UIDs(), elapsed)
		}
	}
	m.emit(EventSyncStopped{Err: err})
}

// recoveryAddresses lists every address any wallet may have used.
func (m *Manager) recoveryAddresses() []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range m.Wallets() {
		for _, a := range w.AddressesForRecovery() {
			s := a.String()
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

func (m *Manager) requestHistory(p *pending) {
	kind := KindTransfers
	if m.useTxs {
		kind = KindTransactions
	}
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	req := m.newRequestLocked(kind, p)
	m.mu.Unlock()

	if m.useTxs {
		m.client.GetTransactions(req, p.addresses, p.begin, p.end)
	} else {
		m.client.GetTransfers(req, p.addresses, p.begin, p.end)
	}
}

// Run syncs every interval until ctx is done. Sync errors other than
// ErrNotConnected are logged.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Sync(); err != nil && !errors.Is(err, ErrNotConnected) {
				m.log.Warn().Err(err).Msg("Periodic sync failed")
			}
		}
	}
}

// Submit signs t with seed, adds it to w and hands it to the client. The
// outcome arrives as a transfer state change on w.
func (m *Manager) Submit(w *walletkit.Wallet, t *walletkit.Transfer, seed []byte) error {
	if !m.owns(w) {
		return ErrUnknownWallet
	}
	if m.State() != StateConnected {
		return ErrNotConnected
	}
	if err := m.account.SignTransferWithSeed(t, seed); err != nil {
		return err
	}
	data, err := t.SerializeForSubmission()
	if err != nil {
		return err
	}
	w.AddTransfer(t)
	if fw := feeWallet(w, t); fw != nil {
		fw.AddTransfer(t)
	}

	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	req := m.newRequestLocked(KindSubmit, &pending{wallet: w, transfer: t.Take()})
	m.mu.Unlock()

	m.log.Debug().Str("transfer", t.Identifier()).Msg("Submitting transfer")
	m.client.SubmitTransaction(req, t.Identifier(), data)
	return nil
}

// EstimateFee builds an unsigned transfer and asks the client for its
// cost. The answer arrives as EventFeeEstimated carrying the returned
// cookie.
func (m *Manager) EstimateFee(w *walletkit.Wallet, target *walletkit.Address, amt amount.Amount, fee walletkit.NetworkFee, attrs []walletkit.Attribute) (uuid.UUID, error) {
	if !m.owns(w) {
		return uuid.Nil, ErrUnknownWallet
	}
	fb, err := w.FeeBasisFor(fee, 1)
	if err != nil {
		return uuid.Nil, err
	}
	defer fb.Release()
	t, err := w.CreateTransfer(target, amt, fb, attrs)
	if err != nil {
		return uuid.Nil, err
	}
	data, err := t.SerializeForFeeEstimation()
	t.Release()
	if err != nil {
		return uuid.Nil, err
	}

	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return uuid.Nil, ErrNotConnected
	}
	req := m.newRequestLocked(KindEstimateFee, &pending{wallet: w, fee: fee})
	m.mu.Unlock()

	m.client.EstimateTransactionFee(req, data)
	return req.ID, nil
}

func (m *Manager) owns(w *walletkit.Wallet) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, held := range m.wallets {
		if held == w {
			return true
		}
	}
	return false
}

// Close disconnects, releases the wallets, the account and the network,
// and frees the manager's path for Wipe. The storage is left open.
func (m *Manager) Close() {
	m.Disconnect()
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	wallets := m.wallets
	m.wallets = nil
	m.mu.Unlock()
	m.setState(StateClosed)

	for _, w := range wallets {
		w.Release()
	}
	m.account.Release()
	m.network.Release()
	releasePath(m.path)
	m.log.Info().Str("id", m.id.String()).Msg("Wallet manager closed")
}
