package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// ErrLocked is returned by NewBadger when another process, usually a
// running walletkitd, holds the store.
var ErrLocked = errors.New("store is locked by another process")

// BadgerDB is the on-disk store. One directory holds the bundles of every
// network a process manages.
type BadgerDB struct {
	db *badger.DB
}

// NewBadger opens or creates the store in dir.
func NewBadger(dir string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithNumVersionsToKeep(1)
	db, err := badger.Open(opts)
	if err != nil {
		if isLockError(err) {
			return nil, fmt.Errorf("%w: %s: %v", ErrLocked, dir, err)
		}
		return nil, fmt.Errorf("open store at %s: %w", dir, err)
	}
	return &BadgerDB{db: db}, nil
}

func isLockError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Cannot acquire directory lock") ||
		strings.Contains(msg, "resource temporarily unavailable")
}

func (b *BadgerDB) view(op string, fn func(*badger.Txn) error) error {
	if err := b.db.View(fn); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("badger %s: %w", op, err)
	}
	return nil
}

func (b *BadgerDB) update(op string, fn func(*badger.Txn) error) error {
	if err := b.db.Update(fn); err != nil {
		return fmt.Errorf("badger %s: %w", op, err)
	}
	return nil
}

func (b *BadgerDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.view("get", func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	return val, err
}

func (b *BadgerDB) Has(key []byte) (bool, error) {
	err := b.view("has", func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (b *BadgerDB) Put(key, value []byte) error {
	return b.update("put", func(txn *badger.Txn) error { return txn.Set(key, value) })
}

func (b *BadgerDB) Delete(key []byte) error {
	return b.update("delete", func(txn *badger.Txn) error { return txn.Delete(key) })
}

// ForEach visits the keys under prefix in order inside one read
// transaction.
func (b *BadgerDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), val); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerDB) Close() error { return b.db.Close() }

// NewBatch returns a batch backed by a Badger write batch.
func (b *BadgerDB) NewBatch() Batch {
	return &badgerBatch{wb: b.db.NewWriteBatch()}
}

type badgerBatch struct {
	wb *badger.WriteBatch
}

func (bb *badgerBatch) Put(key, value []byte) error {
	// WriteBatch keeps the slices until Flush.
	return bb.wb.Set(append([]byte{}, key...), append([]byte{}, value...))
}

func (bb *badgerBatch) Delete(key []byte) error {
	return bb.wb.Delete(append([]byte{}, key...))
}

func (bb *badgerBatch) Commit() error {
	if err := bb.wb.Flush(); err != nil {
		bb.wb.Cancel()
		return fmt.Errorf("badger batch: %w", err)
	}
	return nil
}
