package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDB implements DB on a Redis server. Keys live under root and are hex
// encoded so SCAN patterns never see raw key bytes.
type RedisDB struct {
	client  *redis.Client
	root    string
	timeout time.Duration
}

// NewRedis connects to addr, which is either host:port or a redis:// URL,
// and verifies connectivity.
func NewRedis(addr, root string) (*RedisDB, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	var opt *redis.Options
	if strings.Contains(addr, "://") {
		var err error
		opt, err = redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
	} else {
		opt = &redis.Options{Addr: addr}
	}

	db := &RedisDB{
		client:  redis.NewClient(opt),
		root:    root + ":",
		timeout: 5 * time.Second,
	}
	ctx, cancel := db.ctx()
	defer cancel()
	if err := db.client.Ping(ctx).Err(); err != nil {
		db.client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return db, nil
}

func (r *RedisDB) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *RedisDB) key(k []byte) string {
	return r.root + hex.EncodeToString(k)
}

// Get retrieves a value by key.
func (r *RedisDB) Get(key []byte) ([]byte, error) {
	ctx, cancel := r.ctx()
	defer cancel()
	v, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return v, nil
}

// Put stores a key-value pair.
func (r *RedisDB) Put(key, value []byte) error {
	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

// Delete removes a key.
func (r *RedisDB) Delete(key []byte) error {
	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Has checks if a key exists.
func (r *RedisDB) Has(key []byte) (bool, error) {
	ctx, cancel := r.ctx()
	defer cancel()
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis has: %w", err)
	}
	return n > 0, nil
}

// ForEach scans the keys under prefix, sorts them and reads each value. Keys
// removed between the scan and the read are skipped.
func (r *RedisDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	ctx, cancel := r.ctx()
	defer cancel()

	match := escapeGlob(r.root) + hex.EncodeToString(prefix) + "*"
	var names []string
	iter := r.client.Scan(ctx, 0, match, 256).Iterator()
	for iter.Next(ctx) {
		names = append(names, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		key, err := hex.DecodeString(strings.TrimPrefix(name, r.root))
		if err != nil {
			continue
		}
		val, err := r.client.Get(ctx, name).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis get: %w", err)
		}
		if err := fn(key, val); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the connection pool.
func (r *RedisDB) Close() error {
	return r.client.Close()
}

// NewBatch returns a batch sent as one MULTI/EXEC transaction.
func (r *RedisDB) NewBatch() Batch {
	return &redisBatch{db: r}
}

type redisBatch struct {
	db  *RedisDB
	ops []memoryOp
}

func (b *redisBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, memoryOp{key: b.db.key(key), value: append([]byte{}, value...)})
	return nil
}

func (b *redisBatch) Delete(key []byte) error {
	b.ops = append(b.ops, memoryOp{key: b.db.key(key)})
	return nil
}

func (b *redisBatch) Commit() error {
	if len(b.ops) == 0 {
		return nil
	}
	ctx, cancel := b.db.ctx()
	defer cancel()
	_, err := b.db.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, op := range b.ops {
			if op.value == nil {
				p.Del(ctx, op.key)
			} else {
				p.Set(ctx, op.key, op.value, 0)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis batch: %w", err)
	}
	b.ops = nil
	return nil
}

func escapeGlob(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
