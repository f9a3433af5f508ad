package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Klingon-tech/walletkit/config"
	"github.com/Klingon-tech/walletkit/internal/keystore"
	"github.com/Klingon-tech/walletkit/internal/manager"
	"github.com/Klingon-tech/walletkit/internal/rpcclient"
	"github.com/Klingon-tech/walletkit/internal/storage"
	"github.com/Klingon-tech/walletkit/pkg/amount"
	"github.com/Klingon-tech/walletkit/pkg/ledger/all"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

func openStore(cfg *config.Config) (storage.DB, error) {
	db, err := storage.Open(cfg.Storage.Backend, cfg.StoreDir(), cfg.Storage.RedisAddr)
	if errors.Is(err, storage.ErrLocked) {
		return nil, fmt.Errorf("%w (stop walletkitd first)", err)
	}
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", cfg.StoreDir(), err)
	}
	return db, nil
}

// session is a manager for one network, opened for a single command.
type session struct {
	ks      *keystore.Keystore
	net     *walletkit.Network
	account *walletkit.Account
	db      storage.DB
	client  *rpcclient.AsyncClient
	m       *manager.Manager
	events  chan manager.Event
}

func openSession(cfg *config.Config, uids string) (*session, error) {
	s := &session{events: make(chan manager.Event, 256)}
	if err := s.open(cfg, uids); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) open(cfg *config.Config, uids string) error {
	reg := all.NewRegistry()
	catalog, err := config.LoadCatalog(cfg.Catalog)
	if err != nil {
		return err
	}
	entry, ok := catalog.Lookup(uids)
	if !ok {
		return fmt.Errorf("unknown network %q", uids)
	}
	if s.net, err = entry.Build(reg); err != nil {
		return err
	}

	if s.ks, err = keystore.New(cfg.KeystoreDir()); err != nil {
		return err
	}
	accounts, err := s.ks.Accounts(reg, cfg.Account)
	if err != nil {
		return err
	}
	for tag, a := range accounts {
		if tag == s.net.Tag() {
			s.account = a
			continue
		}
		a.Release()
	}
	if s.account == nil {
		return fmt.Errorf("keystore %q has no %s account", cfg.Account, s.net.Tag())
	}

	if s.db, err = openStore(cfg); err != nil {
		return err
	}
	s.client = rpcclient.NewAsync(rpcclient.NewWithTimeout(cfg.Client.Endpoint, cfg.Client.Timeout),
		cfg.Client.Concurrency, cfg.Client.Timeout)
	s.m, err = manager.New(manager.Options{
		Network: s.net,
		Account: s.account,
		Client:  s.client,
		DB:      s.db,
		Path:    manager.StorePath(cfg.NetworkDataDir(), uids),
		Listener: s.forward,
	})
	return err
}

// forward passes on sync completion and transfer state changes; the
// commands wait for nothing else.
func (s *session) forward(_ *manager.Manager, e manager.Event) {
	switch ev := e.(type) {
	case manager.EventSyncStopped:
	case manager.EventWallet:
		if _, ok := ev.Event.(walletkit.WalletTransferChanged); !ok {
			return
		}
	default:
		return
	}
	select {
	case s.events <- e:
	default:
	}
}

func (s *session) network() *walletkit.Network { return s.net }

func (s *session) close() {
	if s.client != nil {
		s.client.Close()
	}
	if s.m != nil {
		s.m.Close()
	}
	if s.account != nil {
		s.account.Release()
	}
	if s.net != nil {
		s.net.Release()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// sync connects and waits for the first sync to end.
func (s *session) sync(timeout time.Duration) error {
	if err := s.m.Connect(); err != nil {
		return err
	}
	deadline := time.After(timeout)
	for {
		select {
		case e := <-s.events:
			if ev, ok := e.(manager.EventSyncStopped); ok {
				return ev.Err
			}
		case <-deadline:
			return errors.New("timed out")
		}
	}
}

func (s *session) printBalances(out io.Writer) {
	fmt.Fprintf(out, "Network: %s (height %d)\n", s.net.UIDs(), s.net.Height())
	for _, w := range s.m.Wallets() {
		fmt.Fprintf(out, "  %-8s %s (%d transfers)\n",
			strings.ToUpper(w.Currency().Code()), formatAmount(s.net, w.Balance()), w.TransferCount())
	}
}

// createTransfer builds an unsigned transfer from the wallet for code.
func (s *session) createTransfer(code, to, amountStr, tier string) (*walletkit.Transfer, *walletkit.Wallet, error) {
	c := s.net.Currency()
	if code != "" {
		var err error
		if c, err = s.net.CurrencyByCode(code); err != nil {
			return nil, nil, err
		}
	}
	w, err := s.m.CreateWallet(c)
	if err != nil {
		return nil, nil, err
	}
	target, err := s.net.CreateAddress(to, true)
	if err != nil {
		return nil, nil, err
	}
	defer target.Release()

	unit, err := s.net.DefaultUnit(c)
	if err != nil {
		return nil, nil, err
	}
	amt, err := amount.Parse(amountStr, unit)
	if err != nil {
		return nil, nil, fmt.Errorf("amount: %w", err)
	}

	fee, err := s.net.MinimumFee()
	if err != nil {
		return nil, nil, err
	}
	if tier != "" {
		found := false
		for _, f := range s.net.Fees() {
			if strings.EqualFold(f.Tier, tier) {
				fee, found = f, true
			}
		}
		if !found {
			return nil, nil, fmt.Errorf("network %s has no fee tier %q", s.net.UIDs(), tier)
		}
	}
	fb, err := w.FeeBasisFor(fee, 1)
	if err != nil {
		return nil, nil, err
	}
	defer fb.Release()

	t, err := w.CreateTransfer(target, amt, fb, nil)
	if err != nil {
		return nil, nil, err
	}
	return t, w, nil
}

// submit hands t to the manager and waits for it to be submitted or
// rejected.
func (s *session) submit(w *walletkit.Wallet, t *walletkit.Transfer, seed []byte, timeout time.Duration) (string, error) {
	if err := s.m.Submit(w, t, seed); err != nil {
		return "", err
	}
	deadline := time.After(timeout)
	for {
		select {
		case e := <-s.events:
			ev, ok := e.(manager.EventWallet)
			if !ok {
				continue
			}
			changed, ok := ev.Event.(walletkit.WalletTransferChanged)
			if !ok || changed.Transfer != t {
				continue
			}
			switch st := changed.New.(type) {
			case walletkit.StateSubmitted:
				if h, ok := t.Hash(); ok {
					return s.net.EncodeHash(h), nil
				}
				return t.Identifier(), nil
			case walletkit.StateErrored:
				return "", st.Err
			}
		case <-deadline:
			return "", errors.New("timed out")
		}
	}
}
