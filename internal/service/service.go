// Package service runs one wallet manager per configured network inside a
// single process that can be embedded in any binary.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/walletkit/config"
	"github.com/Klingon-tech/walletkit/internal/keystore"
	klog "github.com/Klingon-tech/walletkit/internal/log"
	"github.com/Klingon-tech/walletkit/internal/manager"
	"github.com/Klingon-tech/walletkit/internal/metrics"
	"github.com/Klingon-tech/walletkit/internal/rpcclient"
	"github.com/Klingon-tech/walletkit/internal/storage"
	"github.com/Klingon-tech/walletkit/pkg/ledger/all"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// ErrNoManagers is returned when no selected network has a stored account.
var ErrNoManagers = errors.New("no network has an account in the keystore")

// Service is a fully-initialized set of wallet managers.
type Service struct {
	cfg    *config.Config
	logger zerolog.Logger

	reg      *walletkit.Registry
	networks []*walletkit.Network
	accounts map[walletkit.Tag]*walletkit.Account
	db       storage.DB
	metrics  *metrics.Collector
	clients  []*rpcclient.AsyncClient
	managers map[string]*manager.Manager

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options tweaks New for embedding and tests.
type Options struct {
	// SkipLogInit keeps the caller's logger configuration.
	SkipLogInit bool
	// DB replaces the store selected by the config.
	DB storage.DB
	// Listener also receives every manager event.
	Listener manager.Listener
}

// New performs all setup steps (logger, catalog, keystore, storage,
// managers) but does not connect. Call Start for that.
func New(cfg *config.Config, opts Options) (*Service, error) {
	if !opts.SkipLogInit {
		logFile := cfg.Log.File
		if logFile == "" {
			if err := os.MkdirAll(cfg.LogsDir(), 0755); err != nil {
				return nil, fmt.Errorf("creating logs dir: %w", err)
			}
			logFile = filepath.Join(cfg.LogsDir(), "walletkit.log")
		}
		if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
			return nil, fmt.Errorf("initializing logger: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:      cfg,
		logger:   klog.WithComponent("service"),
		reg:      all.NewRegistry(),
		accounts: make(map[walletkit.Tag]*walletkit.Account),
		managers: make(map[string]*manager.Manager),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.logger.Info().
		Str("network", string(cfg.Network)).
		Str("account", cfg.Account).
		Str("endpoint", cfg.Client.Endpoint).
		Msg("Starting walletkit")

	if err := s.init(cfg, opts); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *Service) init(cfg *config.Config, opts Options) error {
	// ── Networks ────────────────────────────────────────────────────
	catalog, err := config.LoadCatalog(cfg.Catalog)
	if err != nil {
		return err
	}
	s.networks, err = config.BuildNetworks(s.reg, catalog, cfg.Network, cfg.Networks)
	if err != nil {
		return fmt.Errorf("build networks: %w", err)
	}

	// ── Accounts ────────────────────────────────────────────────────
	ks, err := keystore.New(cfg.KeystoreDir())
	if err != nil {
		return err
	}
	s.accounts, err = ks.Accounts(s.reg, cfg.Account)
	if err != nil {
		return fmt.Errorf("load account %q: %w", cfg.Account, err)
	}

	// ── Storage ─────────────────────────────────────────────────────
	s.db = opts.DB
	if s.db == nil {
		s.db, err = storage.Open(cfg.Storage.Backend, cfg.StoreDir(), cfg.Storage.RedisAddr)
		if err != nil {
			return fmt.Errorf("open store at %s: %w", cfg.StoreDir(), err)
		}
		s.logger.Info().Str("backend", cfg.Storage.Backend).Str("path", cfg.StoreDir()).Msg("Store opened")
	}

	if cfg.Metrics.Enabled {
		s.metrics = metrics.New()
	}

	// ── Managers ────────────────────────────────────────────────────
	rpc := rpcclient.NewWithTimeout(cfg.Client.Endpoint, cfg.Client.Timeout)
	listener := s.listener(opts.Listener)
	for _, n := range s.networks {
		a, ok := s.accounts[n.Tag()]
		if !ok {
			s.logger.Warn().Str("network", n.UIDs()).Str("ledger", n.Tag().String()).
				Msg("No account for ledger, skipping network")
			continue
		}
		client := rpcclient.NewAsync(rpc, cfg.Client.Concurrency, cfg.Client.Timeout)
		m, err := manager.New(manager.Options{
			Network:  n,
			Account:  a,
			Client:   client,
			DB:       s.db,
			Path:     manager.StorePath(cfg.NetworkDataDir(), n.UIDs()),
			Metrics:  s.metrics,
			Listener: listener,
		})
		if err != nil {
			client.Close()
			return fmt.Errorf("manager %s: %w", n.UIDs(), err)
		}
		s.clients = append(s.clients, client)
		s.managers[n.UIDs()] = m
	}
	if len(s.managers) == 0 {
		return ErrNoManagers
	}
	return nil
}

func (s *Service) listener(next manager.Listener) manager.Listener {
	return func(m *manager.Manager, e manager.Event) {
		uids := m.Network().UIDs()
		switch ev := e.(type) {
		case manager.EventStateChanged:
			s.logger.Debug().Str("network", uids).Stringer("state", ev.New).Msg("Manager state changed")
		case manager.EventSyncStopped:
			if ev.Err != nil {
				s.logger.Warn().Err(ev.Err).Str("network", uids).Msg("Sync failed")
			} else {
				s.logger.Debug().Str("network", uids).Uint64("synced_to", m.SyncedTo()).Msg("Sync finished")
			}
		case manager.EventBlockHeight:
			s.logger.Debug().Str("network", uids).Uint64("height", ev.Height).Msg("New block height")
		}
		if next != nil {
			next(m, e)
		}
	}
}

// Start connects every manager and runs the periodic sync and the metrics
// server in the background.
func (s *Service) Start() error {
	if s.metrics != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.metrics.Serve(s.ctx, s.cfg.Metrics.Addr); err != nil {
				s.logger.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	for _, m := range s.Managers() {
		if err := m.Connect(); err != nil {
			return fmt.Errorf("connect %s: %w", m.Network().UIDs(), err)
		}
		s.wg.Add(1)
		go func(m *manager.Manager) {
			defer s.wg.Done()
			m.Run(s.ctx, s.cfg.Sync.Interval)
		}(m)
	}
	s.logger.Info().Int("managers", len(s.managers)).Dur("interval", s.cfg.Sync.Interval).Msg("Wallet managers running")
	return nil
}

// Stop stops the background loops and releases everything New acquired.
func (s *Service) Stop() {
	s.close()
	s.logger.Info().Msg("Goodbye!")
}

func (s *Service) close() {
	s.cancel()
	s.wg.Wait()

	// Clients first so no result arrives at a closed manager.
	for _, c := range s.clients {
		c.Close()
	}
	s.clients = nil
	for uids, m := range s.managers {
		m.Close()
		delete(s.managers, uids)
	}
	for _, a := range s.accounts {
		a.Release()
	}
	s.accounts = nil
	for _, n := range s.networks {
		n.Release()
	}
	s.networks = nil
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Closing store")
		}
		s.db = nil
	}
}

// Managers returns the managers ordered by network uids.
func (s *Service) Managers() []*manager.Manager {
	out := make([]*manager.Manager, 0, len(s.managers))
	for _, m := range s.managers {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Network().UIDs() < out[j].Network().UIDs()
	})
	return out
}

// Manager returns the manager for a network.
func (s *Service) Manager(uids string) (*manager.Manager, bool) {
	m, ok := s.managers[uids]
	return m, ok
}

// Metrics returns the collector, or nil when metrics are disabled.
func (s *Service) Metrics() *metrics.Collector { return s.metrics }
