// Package keystore stores the wallet seed encrypted on disk together with
// the public account serializations derived from it.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Klingon-tech/walletkit/internal/log"
	"github.com/Klingon-tech/walletkit/pkg/derive"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

const (
	fileVersion = 1
	fileExt     = ".keystore"
)

var (
	ErrExists   = errors.New("keystore already exists")
	ErrNotFound = errors.New("keystore not found")
)

// file is the on-disk JSON layout.
type file struct {
	Version    int                      `json:"version"`
	CreatedAt  time.Time                `json:"created_at"`
	SealedSeed []byte                   `json:"sealed_seed"`
	Accounts   map[string]AccountRecord `json:"accounts"`
}

// AccountRecord is the persisted public half of an account.
type AccountRecord struct {
	UIDs          string `json:"uids"`
	Serialization []byte `json:"serialization"`
}

// Keystore manages keystore files in one directory.
type Keystore struct {
	dir string
	mu  sync.Mutex
}

// New opens the keystore directory, creating it when missing.
func New(dir string) (*Keystore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{dir: dir}, nil
}

func (ks *Keystore) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid keystore name %q", name)
	}
	return filepath.Join(ks.dir, name+fileExt), nil
}

// Create seals the seed for mnemonic and passphrase under password, derives
// one account per ledger installed in reg and stores their serializations.
// The returned accounts are owned by the caller.
func (ks *Keystore) Create(reg *walletkit.Registry, name, mnemonic, passphrase string, password []byte, p Params) (map[walletkit.Tag]*walletkit.Account, error) {
	seed, err := derive.SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	defer zero(seed)

	ks.mu.Lock()
	defer ks.mu.Unlock()
	path, err := ks.path(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, name)
	}

	sealed, err := Seal(seed, password, p)
	if err != nil {
		return nil, fmt.Errorf("seal seed: %w", err)
	}
	accounts, err := walletkit.CreateAccounts(reg, seed)
	if err != nil {
		return nil, err
	}
	f := &file{
		Version:    fileVersion,
		CreatedAt:  time.Now().UTC(),
		SealedSeed: sealed,
		Accounts:   make(map[string]AccountRecord, len(accounts)),
	}
	for tag, a := range accounts {
		f.Accounts[tag.String()] = recordOf(a)
	}
	if err := writeFile(path, f); err != nil {
		for _, a := range accounts {
			a.Release()
		}
		return nil, err
	}
	log.Keystore.Info().Str("name", name).Int("accounts", len(accounts)).Msg("Keystore created")
	return accounts, nil
}

func recordOf(a *walletkit.Account) AccountRecord {
	return AccountRecord{UIDs: a.UIDs(), Serialization: a.Serialization()}
}

// Seed opens the sealed seed. Callers should clear it after use.
func (ks *Keystore) Seed(name string, password []byte) ([]byte, error) {
	f, err := ks.load(name)
	if err != nil {
		return nil, err
	}
	seed, err := Open(f.SealedSeed, password)
	if err != nil {
		return nil, fmt.Errorf("open keystore %s: %w", name, err)
	}
	if len(seed) != walletkit.SeedSize {
		zero(seed)
		return nil, fmt.Errorf("keystore %s: seed has %d bytes", name, len(seed))
	}
	return seed, nil
}

// Accounts restores the stored accounts without touching the seed. Ledgers
// without a handler set in reg are skipped.
func (ks *Keystore) Accounts(reg *walletkit.Registry, name string) (map[walletkit.Tag]*walletkit.Account, error) {
	f, err := ks.load(name)
	if err != nil {
		return nil, err
	}
	out := make(map[walletkit.Tag]*walletkit.Account, len(f.Accounts))
	for code, rec := range f.Accounts {
		tag, err := walletkit.ParseTag(code)
		if err != nil || !reg.Installed(tag) {
			log.Keystore.Debug().Str("ledger", code).Msg("Skipping stored account")
			continue
		}
		a, err := walletkit.CreateAccountWithSerialization(reg, tag, rec.Serialization)
		if err != nil {
			for _, done := range out {
				done.Release()
			}
			return nil, fmt.Errorf("keystore %s: %w", name, err)
		}
		out[tag] = a
	}
	return out, nil
}

// SaveAccount replaces the stored record for a's ledger, e.g. after an
// address has been assigned.
func (ks *Keystore) SaveAccount(name string, a *walletkit.Account) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	path, err := ks.path(name)
	if err != nil {
		return err
	}
	f, err := readFile(path)
	if err != nil {
		return err
	}
	f.Accounts[a.Tag().String()] = recordOf(a)
	return writeFile(path, f)
}

// List returns the keystore names in the directory, sorted.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.dir)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == fileExt {
			names = append(names, strings.TrimSuffix(e.Name(), fileExt))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a keystore file.
func (ks *Keystore) Delete(name string) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	path, err := ks.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return err
	}
	log.Keystore.Info().Str("name", name).Msg("Keystore deleted")
	return nil
}

func (ks *Keystore) load(name string) (*file, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	path, err := ks.path(name)
	if err != nil {
		return nil, err
	}
	return readFile(path)
}

func writeFile(path string, f *file) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal keystore: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write keystore: %w", err)
	}
	return nil
}

func readFile(path string) (*file, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSuffix(filepath.Base(path), fileExt))
	}
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse keystore: %w", err)
	}
	if f.Version != fileVersion {
		return nil, fmt.Errorf("unsupported keystore version: %d", f.Version)
	}
	if f.Accounts == nil {
		f.Accounts = map[string]AccountRecord{}
	}
	return &f, nil
}
