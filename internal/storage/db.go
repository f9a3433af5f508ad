// Package storage provides the key-value stores wallet managers persist into.
package storage

import (
	"errors"
	"fmt"
	"os"

	"github.com/Klingon-tech/walletkit/internal/log"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("key not found")

// Backend names accepted by Open.
const (
	BackendBadger = "badger"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix in key order.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Batch collects writes and applies them on Commit.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Batcher is implemented by stores with atomic batches.
type Batcher interface {
	NewBatch() Batch
}

// Open returns the store selected by backend. path is the Badger directory
// and doubles as the Redis key root; redisAddr is only used by the redis
// backend.
func Open(backend, path, redisAddr string) (DB, error) {
	log.Storage.Debug().Str("backend", backend).Str("path", path).Msg("Opening store")
	switch backend {
	case "", BackendBadger:
		return NewBadger(path)
	case BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		return NewRedis(redisAddr, path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// Wipe removes a Badger directory created by Open. A missing directory is
// not an error.
func Wipe(path string) error {
	if path == "" {
		return errors.New("wipe: empty path")
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("wipe %s: %w", path, err)
	}
	log.Storage.Info().Str("path", path).Msg("Store wiped")
	return nil
}

// DeletePrefix removes every key under prefix.
func DeletePrefix(db DB, prefix []byte) error {
	var keys [][]byte
	err := db.ForEach(prefix, func(key, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return err
	}
	if b, ok := db.(Batcher); ok {
		batch := b.NewBatch()
		for _, k := range keys {
			if err := batch.Delete(k); err != nil {
				return err
			}
		}
		return batch.Commit()
	}
	for _, k := range keys {
		if err := db.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
