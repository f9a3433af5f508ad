package manager

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Klingon-tech/walletkit/pkg/amount"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// Manager implements Announcer. Results for unknown or dropped requests
// are ignored with ErrUnknownRequest.
var _ Announcer = (*Manager)(nil)

func (m *Manager) countRequest(kind RequestKind, err error) {
	if m.metrics != nil {
		m.metrics.CountRequest(m.network.UIDs(), string(kind), err)
	}
}

func (m *Manager) unknownRequest(req Request, err error) error {
	m.log.Warn().Err(err).Str("kind", string(req.Kind)).Msg("Dropped client result")
	return err
}

// AnnounceBlockNumber records the chain height. During a sync it is
// followed by a history request over the new block range.
func (m *Manager) AnnounceBlockNumber(req Request, height uint64, blockHash string, err error) error {
	p, terr := m.take(req)
	if terr != nil {
		return m.unknownRequest(req, terr)
	}
	m.countRequest(req.Kind, err)
	if err != nil {
		if p.sync {
			m.endSync(fmt.Errorf("block number: %w", err))
		}
		return nil
	}

	m.applyMu.Lock()
	m.applyHeight(height, blockHash)
	m.applyMu.Unlock()

	if !p.sync {
		return nil
	}
	begin := m.SyncedTo()
	end := height + 1
	if begin >= end {
		m.endSync(nil)
		return nil
	}
	addrs := m.recoveryAddresses()
	seen := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		seen[a] = true
	}
	m.requestHistory(&pending{sync: true, addresses: addrs, seen: seen, begin: begin, end: end})
	return nil
}

func (m *Manager) applyHeight(height uint64, blockHash string) {
	m.network.SetHeight(height)
	if blockHash != "" {
		if h, err := m.network.CreateHash(blockHash); err == nil {
			m.network.SetVerifiedBlockHash(h)
		} else {
			m.log.Debug().Err(err).Str("hash", blockHash).Msg("Ignoring block hash")
		}
	}
	if err := m.saveUint64(keyHeight, height); err != nil {
		m.log.Error().Err(err).Msg("Failed to persist height")
	}
	if m.metrics != nil {
		m.metrics.SetHeight(m.network.UIDs(), height)
	}
	m.emit(EventBlockHeight{Height: height})
}

// AnnounceTransfers records and applies transfer bundles.
func (m *Manager) AnnounceTransfers(req Request, bundles []*walletkit.TransferBundle, err error) error {
	p, terr := m.take(req)
	if terr != nil {
		return m.unknownRequest(req, terr)
	}
	m.countRequest(req.Kind, err)
	if err != nil {
		m.endSync(fmt.Errorf("transfers: %w", err))
		return nil
	}

	m.applyMu.Lock()
	if err := m.saveTransfers(bundles); err != nil {
		m.log.Error().Err(err).Msg("Failed to persist transfers")
	}
	m.recoverTransfers(bundles)
	m.applyMu.Unlock()

	m.continueSync(p)
	return nil
}

// AnnounceTransactions records and applies raw transactions.
func (m *Manager) AnnounceTransactions(req Request, bundles []*walletkit.TransactionBundle, err error) error {
	p, terr := m.take(req)
	if terr != nil {
		return m.unknownRequest(req, terr)
	}
	m.countRequest(req.Kind, err)
	if err != nil {
		m.endSync(fmt.Errorf("transactions: %w", err))
		return nil
	}

	m.applyMu.Lock()
	if err := m.saveTransactions(bundles); err != nil {
		m.log.Error().Err(err).Msg("Failed to persist transactions")
	}
	m.recoverTransactions(bundles)
	m.applyMu.Unlock()

	m.continueSync(p)
	return nil
}

// continueSync re-requests the same block range for addresses that
// appeared while applying results, or completes the sync.
func (m *Manager) continueSync(p *pending) {
	if !p.sync {
		return
	}
	var fresh []string
	for _, a := range m.recoveryAddresses() {
		if !p.seen[a] {
			p.seen[a] = true
			fresh = append(fresh, a)
		}
	}
	if len(fresh) > 0 {
		m.log.Debug().Int("addresses", len(fresh)).Msg("New addresses, extending sync")
		m.requestHistory(&pending{sync: true, addresses: fresh, seen: p.seen, begin: p.begin, end: p.end})
		return
	}

	m.mu.Lock()
	if p.end > m.syncedTo {
		m.syncedTo = p.end
	}
	synced := m.syncedTo
	m.mu.Unlock()
	if err := m.saveUint64(keySynced, synced); err != nil {
		m.log.Error().Err(err).Msg("Failed to persist sync height")
	}
	m.endSync(nil)
}

// mergeFees folds fee-only entries into the transfer they paid for. An
// entry addressed to the fee sentinel becomes the Fee of the bundle with
// the same hash and source, preferring one in the same currency. A fee
// with no such bundle is kept as a zero-amount transfer to an unknown
// target so the fee still counts against the balance.
func mergeFees(bundles []*walletkit.TransferBundle) []*walletkit.TransferBundle {
	var out, fees []*walletkit.TransferBundle
	for _, b := range bundles {
		if b.To == walletkit.FeeAddressString {
			fees = append(fees, b)
		} else {
			out = append(out, b)
		}
	}
	for _, f := range fees {
		var match *walletkit.TransferBundle
		for _, b := range out {
			if b.Hash != f.Hash || !strings.EqualFold(b.From, f.From) || b.Fee != "" {
				continue
			}
			if match == nil || (b.Currency == f.Currency && match.Currency != f.Currency) {
				match = b
			}
		}
		if match != nil {
			merged := *match
			merged.Fee = f.Amount
			out[slices.Index(out, match)] = &merged
			continue
		}
		synth := *f
		synth.To = walletkit.UnknownAddressString
		synth.Amount = "0"
		synth.Fee = f.Amount
		out = append(out, &synth)
	}
	slices.SortStableFunc(out, func(a, b *walletkit.TransferBundle) int {
		switch {
		case a.BlockNumber < b.BlockNumber:
			return -1
		case a.BlockNumber > b.BlockNumber:
			return 1
		case a.BlockTransactionIndex < b.BlockTransactionIndex:
			return -1
		case a.BlockTransactionIndex > b.BlockTransactionIndex:
			return 1
		}
		return 0
	})
	return out
}

// currencyFor resolves a bundle currency: empty is the native currency,
// otherwise it is matched by UIDs, code and issuer in that order.
func (m *Manager) currencyFor(s string) (*amount.Currency, bool) {
	if s == "" {
		return m.network.Currency(), true
	}
	for _, c := range m.network.Currencies() {
		if c.UIDs() == s {
			return c, true
		}
	}
	if c, err := m.network.CurrencyByCode(s); err == nil {
		return c, true
	}
	if c, err := m.network.CurrencyByIssuer(s); err == nil {
		return c, true
	}
	return nil, false
}

func (m *Manager) recoverTransfers(bundles []*walletkit.TransferBundle) {
	for _, b := range mergeFees(bundles) {
		c, ok := m.currencyFor(b.Currency)
		if !ok {
			m.log.Warn().Str("currency", b.Currency).Str("hash", b.Hash).Msg("Transfer in unknown currency")
			continue
		}
		w, err := m.walletFor(c)
		if err != nil {
			m.log.Warn().Err(err).Str("currency", c.Code()).Msg("No wallet for transfer")
			continue
		}
		t, err := w.TransferFromBundle(b)
		if err != nil {
			if !errors.Is(err, walletkit.ErrNotOwned) {
				m.log.Warn().Err(err).Str("hash", b.Hash).Msg("Bad transfer bundle")
			}
			continue
		}
		m.applyTransfer(w, t)
		if fw := feeWallet(w, t); fw != nil {
			m.applyTransfer(fw, t)
		}
		t.Release()
	}
}

// feeWallet returns the wallet charged for t's fee when that is not w,
// such as the ether wallet for a token send. A transfer with no known fee
// charges nothing.
func feeWallet(w *walletkit.Wallet, t *walletkit.Transfer) *walletkit.Wallet {
	if t.Direction() == walletkit.DirectionReceived {
		return nil
	}
	if _, ok := t.Fee(); !ok {
		return nil
	}
	fw, ok := w.FeeWallet()
	if !ok || fw == w {
		return nil
	}
	return fw
}

func (m *Manager) recoverTransactions(bundles []*walletkit.TransactionBundle) {
	sorted := slices.Clone(bundles)
	slices.SortStableFunc(sorted, func(a, b *walletkit.TransactionBundle) int {
		switch {
		case a.BlockHeight < b.BlockHeight:
			return -1
		case a.BlockHeight > b.BlockHeight:
			return 1
		}
		return 0
	})
	w := m.PrimaryWallet()
	if w == nil {
		return
	}
	for _, b := range sorted {
		ts, err := w.TransfersFromTransaction(b)
		if err != nil {
			m.log.Warn().Err(err).Uint64("height", b.BlockHeight).Msg("Bad transaction bundle")
			continue
		}
		for _, t := range ts {
			m.applyTransfer(w, t)
			t.Release()
		}
	}
}

// applyTransfer adds a recovered transfer or advances the state of the
// one already held.
func (m *Manager) applyTransfer(w *walletkit.Wallet, t *walletkit.Transfer) {
	if w.AddTransfer(t) {
		return
	}
	if _, err := w.UpdateTransfer(t); err != nil {
		m.log.Debug().Err(err).Str("transfer", t.Identifier()).Msg("Transfer state not updated")
	}
}

// AnnounceSubmit reports the outcome of Submit.
func (m *Manager) AnnounceSubmit(req Request, hash string, err error) error {
	p, terr := m.take(req)
	if terr != nil {
		return m.unknownRequest(req, terr)
	}
	m.countRequest(req.Kind, err)
	defer p.release()

	t := p.transfer
	if fw := feeWallet(p.wallet, t); fw != nil {
		defer fw.RecomputeBalance()
	}
	if err != nil {
		var se walletkit.SubmitError
		if !errors.As(err, &se) {
			se = walletkit.SubmitError{Kind: walletkit.SubmitUnknown, Message: err.Error()}
		}
		m.log.Warn().Err(err).Str("transfer", t.Identifier()).Msg("Submit failed")
		if serr := p.wallet.SetTransferState(t, walletkit.StateErrored{Err: se}); serr != nil {
			m.log.Debug().Err(serr).Msg("Transfer state not updated")
		}
		return nil
	}
	if _, ok := t.Hash(); !ok && hash != "" {
		if h, herr := m.network.CreateHash(hash); herr == nil {
			if serr := t.SetHash(h); serr != nil {
				m.log.Debug().Err(serr).Msg("Transfer hash not set")
			}
		}
	}
	if serr := p.wallet.SetTransferState(t, walletkit.StateSubmitted{}); serr != nil {
		m.log.Debug().Err(serr).Msg("Transfer state not updated")
	}
	m.log.Info().Str("transfer", t.Identifier()).Msg("Transfer submitted")
	return nil
}

// AnnounceEstimateFee answers EstimateFee with the fee basis for the
// reported cost factor.
func (m *Manager) AnnounceEstimateFee(req Request, costFactor float64, err error) error {
	p, terr := m.take(req)
	if terr != nil {
		return m.unknownRequest(req, terr)
	}
	m.countRequest(req.Kind, err)
	if err != nil {
		m.emit(EventFeeEstimated{Cookie: req.ID, Err: err})
		return nil
	}
	fb, err := p.wallet.FeeBasisFor(p.fee, costFactor)
	if err != nil {
		m.emit(EventFeeEstimated{Cookie: req.ID, Err: err})
		return nil
	}
	m.emit(EventFeeEstimated{Cookie: req.ID, FeeBasis: fb})
	fb.Release()
	return nil
}
