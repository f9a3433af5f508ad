// Package refcount implements the shared-ownership counter embedded by every
// walletkit entity.
//
// A Ref starts at one when initialized. Take adds an owner, Release drops
// one, and the destroy function runs exactly once when the last owner lets
// go. TakeWeak is the only safe way to acquire an owner from a lookup path
// that does not already hold one: it fails instead of resurrecting an entity
// whose count has reached zero.
package refcount

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrTakeAfterRelease is the panic value for Take on a released entity.
	ErrTakeAfterRelease = errors.New("refcount: take after final release")
	// ErrOverRelease is the panic value for Release below zero.
	ErrOverRelease = errors.New("refcount: release below zero")
	// ErrUninitialized is the panic value for use of a Ref that was never Init'ed.
	ErrUninitialized = errors.New("refcount: use before init")
)

// Ref is an atomic reference count. The zero value is not usable; call Init.
type Ref struct {
	count   atomic.Int64
	init    atomic.Bool
	destroy func()
}

// Init sets the count to one and records the destroy function. It must be
// called once, before the value is shared.
func (r *Ref) Init(destroy func()) {
	r.destroy = destroy
	r.count.Store(1)
	r.init.Store(true)
}

// Take adds an owner. It panics if the count already reached zero.
func (r *Ref) Take() {
	r.checkInit()
	for {
		n := r.count.Load()
		if n <= 0 {
			panic(fmt.Errorf("%w (count %d)", ErrTakeAfterRelease, n))
		}
		if r.count.CompareAndSwap(n, n+1) {
			return
		}
	}
}

// TakeWeak adds an owner only if the count is still positive.
func (r *Ref) TakeWeak() bool {
	r.checkInit()
	for {
		n := r.count.Load()
		if n <= 0 {
			return false
		}
		if r.count.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops an owner and runs the destroy function when the count hits zero.
func (r *Ref) Release() {
	r.checkInit()
	n := r.count.Add(-1)
	switch {
	case n == 0:
		if r.destroy != nil {
			r.destroy()
		}
	case n < 0:
		panic(fmt.Errorf("%w (count %d)", ErrOverRelease, n))
	}
}

// Count returns the current number of owners.
func (r *Ref) Count() int64 {
	return r.count.Load()
}

// Released reports whether the final owner has let go.
func (r *Ref) Released() bool {
	return r.init.Load() && r.count.Load() <= 0
}

func (r *Ref) checkInit() {
	if !r.init.Load() {
		panic(ErrUninitialized)
	}
}

// Counted is implemented by entities that embed a Ref.
type Counted interface {
	Refs() *Ref
}

// Take adds an owner to v and returns it, for call chaining.
func Take[T Counted](v T) T {
	v.Refs().Take()
	return v
}

// TakeWeak adds an owner to v if it is still alive.
func TakeWeak[T Counted](v T) (T, bool) {
	if !v.Refs().TakeWeak() {
		var zero T
		return zero, false
	}
	return v, true
}

// Release drops an owner from v.
func Release[T Counted](v T) {
	v.Refs().Release()
}
