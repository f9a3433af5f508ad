package walletkit

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Klingon-tech/walletkit/internal/log"
)

// Registry maps ledger tags to handler sets. Install happens at startup;
// Lookup is a lock-free read afterwards.
type Registry struct {
	mu   sync.Mutex
	sets [tagCount]atomic.Pointer[Handlers]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

// Install registers h for h.Tag. Installing twice for one tag, an unknown
// tag, or an incomplete set is a programming error and panics.
func (r *Registry) Install(h *Handlers) {
	if h == nil {
		violate("install of nil handler set")
	}
	if !h.Tag.Valid() {
		violate("install for unknown ledger %s", h.Tag)
	}
	if !h.complete() {
		violate("incomplete handler set for %s", h.Tag)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sets[h.Tag].Load() != nil {
		violate("handler set for %s already installed", h.Tag)
	}
	r.sets[h.Tag].Store(h)
	log.Registry.Info().Str("ledger", h.Tag.String()).Msg("Handler set installed")
}

// Installed reports whether a handler set exists for tag.
func (r *Registry) Installed(tag Tag) bool {
	return tag.Valid() && r.sets[tag].Load() != nil
}

// Lookup returns the handler set for tag.
func (r *Registry) Lookup(tag Tag) (*Handlers, error) {
	if !tag.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLedger, tag)
	}
	h := r.sets[tag].Load()
	if h == nil {
		return nil, fmt.Errorf("%w: no handlers for %s", ErrUnknownLedger, tag)
	}
	return h, nil
}

// InstalledTags lists the tags with a handler set, in tag order.
func (r *Registry) InstalledTags() []Tag {
	var out []Tag
	for t := Tag(0); t < tagCount; t++ {
		if r.sets[t].Load() != nil {
			out = append(out, t)
		}
	}
	return out
}

// Install registers h in the default registry.
func Install(h *Handlers) { defaultRegistry.Install(h) }

// Lookup reads from the default registry.
func Lookup(tag Tag) (*Handlers, error) { return defaultRegistry.Lookup(tag) }
