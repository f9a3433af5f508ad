package manager

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/Klingon-tech/walletkit/internal/storage"
)

var (
	activeMu sync.Mutex
	active   = make(map[string]bool)
)

func acquirePath(path string) error {
	if path == "" {
		return nil
	}
	activeMu.Lock()
	defer activeMu.Unlock()
	if active[path] {
		return fmt.Errorf("%w: %s", ErrActive, path)
	}
	active[path] = true
	return nil
}

func releasePath(path string) {
	if path == "" {
		return
	}
	activeMu.Lock()
	delete(active, path)
	activeMu.Unlock()
}

func isActive(path string) bool {
	activeMu.Lock()
	defer activeMu.Unlock()
	return active[path]
}

// StorePath returns the directory holding a manager's state for one network.
func StorePath(dataDir, networkUIDs string) string {
	return filepath.Join(dataDir, "managers", networkUIDs)
}

// Wipe removes the persisted state at StorePath(dataDir, networkUIDs). It
// fails with ErrActive while a manager uses that path.
func Wipe(dataDir, networkUIDs string) error {
	path := StorePath(dataDir, networkUIDs)
	if isActive(path) {
		return fmt.Errorf("%w: %s", ErrActive, path)
	}
	return storage.Wipe(path)
}

// WipeStore removes one network's state from a shared store. path is the
// Options.Path the manager was opened with.
func WipeStore(db storage.DB, path, networkUIDs string) error {
	if isActive(path) {
		return fmt.Errorf("%w: %s", ErrActive, path)
	}
	return storage.DeletePrefix(db, namespace(networkUIDs))
}
