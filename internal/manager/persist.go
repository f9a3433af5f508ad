package manager

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Klingon-tech/walletkit/internal/storage"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// Keys inside a manager's namespace.
var (
	keyHeight         = []byte("height")
	keySynced         = []byte("synced")
	prefixTransfer    = []byte("transfer/")
	prefixTransaction = []byte("transaction/")
)

// bundleSpace names the UUIDv5 keys of persisted bundles, so a bundle
// reported twice overwrites itself.
var bundleSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("walletkit:bundle"))

func namespace(networkUIDs string) []byte {
	return []byte("wm/" + networkUIDs + "/")
}

func transferKey(b *walletkit.TransferBundle) []byte {
	id := strings.Join([]string{
		strings.ToLower(b.Hash),
		strings.ToLower(b.From),
		strings.ToLower(b.To),
		b.Currency,
		fmt.Sprint(b.TransferIndex),
	}, "|")
	return append(append([]byte(nil), prefixTransfer...), uuid.NewSHA1(bundleSpace, []byte(id)).String()...)
}

func transactionKey(b *walletkit.TransactionBundle) []byte {
	return append(append([]byte(nil), prefixTransaction...), uuid.NewSHA1(bundleSpace, b.Serialization).String()...)
}

func (m *Manager) saveUint64(key []byte, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return m.db.Put(key, buf[:])
}

func (m *Manager) loadUint64(key []byte) (uint64, bool, error) {
	b, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(b) != 8 {
		return 0, false, fmt.Errorf("%s: %d bytes", key, len(b))
	}
	return binary.BigEndian.Uint64(b), true, nil
}

func (m *Manager) saveTransfers(bundles []*walletkit.TransferBundle) error {
	batch := m.db.NewBatch()
	for _, b := range bundles {
		data, err := json.Marshal(b)
		if err != nil {
			return err
		}
		if err := batch.Put(transferKey(b), data); err != nil {
			return err
		}
	}
	return batch.Commit()
}

func (m *Manager) saveTransactions(bundles []*walletkit.TransactionBundle) error {
	batch := m.db.NewBatch()
	for _, b := range bundles {
		data, err := json.Marshal(b)
		if err != nil {
			return err
		}
		if err := batch.Put(transactionKey(b), data); err != nil {
			return err
		}
	}
	return batch.Commit()
}

// replay restores the height, the sync point and every persisted bundle.
func (m *Manager) replay() error {
	height, ok, err := m.loadUint64(keyHeight)
	if err != nil {
		return err
	}
	if ok {
		m.network.SetHeight(height)
	}
	synced, ok, err := m.loadUint64(keySynced)
	if err != nil {
		return err
	}
	if ok {
		m.syncedTo = synced
	}

	var transfers []*walletkit.TransferBundle
	err = m.db.ForEach(prefixTransfer, func(key, value []byte) error {
		var b walletkit.TransferBundle
		if err := json.Unmarshal(value, &b); err != nil {
			m.log.Warn().Err(err).Str("key", string(key)).Msg("Skipping corrupt transfer")
			return nil
		}
		transfers = append(transfers, &b)
		return nil
	})
	if err != nil {
		return err
	}

	var txs []*walletkit.TransactionBundle
	err = m.db.ForEach(prefixTransaction, func(key, value []byte) error {
		var b walletkit.TransactionBundle
		if err := json.Unmarshal(value, &b); err != nil {
			m.log.Warn().Err(err).Str("key", string(key)).Msg("Skipping corrupt transaction")
			return nil
		}
		txs = append(txs, &b)
		return nil
	})
	if err != nil {
		return err
	}

	m.applyMu.Lock()
	defer m.applyMu.Unlock()
	if len(transfers) > 0 {
		m.recoverTransfers(transfers)
	}
	if len(txs) > 0 {
		m.recoverTransactions(txs)
	}
	m.log.Debug().
		Int("transfers", len(transfers)).
		Int("transactions", len(txs)).
		Uint64("synced", m.syncedTo).
		Msg("Replayed persisted state")
	return nil
}
