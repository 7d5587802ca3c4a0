package syncedstore

import (
	"reflect"
	"sync/atomic"

	sserr "github.com/synthlabs/tauri-svelte-synced-store/syncedstore_errors"
)

// Item is a scope-bound, exclusively locked view of one entry. Acquire
// takes the cell lock; Release gives it back and then publishes the
// value as of release (and persists it when a backend is configured).
// The publish happens exactly once per acquisition, on every exit path,
// provided the caller pairs Acquire with a deferred Release.
//
// Clones alias the same locked scope; the side effects fire when the
// last clone is released.
type Item[T any] struct {
	syncer *Syncer
	c      *cell
	key    string
	refs   *int32
}

// Acquire blocks until the entry lock for key is free and returns the
// handle. Fails with ErrKeyNotFound for unknown keys, ErrTypeMismatch
// when T differs from the established type, ErrPoisoned after a panic
// on this entry.
func Acquire[T any](s *Syncer, key string) (*Item[T], error) {
	c, err := lookupTyped[T](s.values, key)
	if err != nil {
		return nil, err
	}
	c.lock.Lock()
	if c.poisoned {
		c.lock.Unlock()
		return nil, sserr.ErrPoisoned
	}
	refs := int32(1)
	return &Item[T]{syncer: s, c: c, key: key, refs: &refs}, nil
}

func (it *Item[T]) Key() string {
	return it.key
}

// Value returns the current value. Only valid while the item is held.
func (it *Item[T]) Value() T {
	return it.c.val.(T)
}

// Set replaces the value. The replacement is observed by the
// release-time notification, not published immediately.
func (it *Item[T]) Set(v T) {
	it.c.val = v
}

// Mutate applies fn to the value in place.
func (it *Item[T]) Mutate(fn func(*T)) {
	v := it.c.val.(T)
	fn(&v)
	it.c.val = v
}

// Clone returns a handle aliasing the same held entry. Each handle
// must still be released; the notification fires once, on the last
// release.
func (it *Item[T]) Clone() *Item[T] {
	atomic.AddInt32(it.refs, 1)
	return &Item[T]{syncer: it.syncer, c: it.c, key: it.key, refs: it.refs}
}

// Equal reports whether two items view the same key and currently
// equal values.
func (it *Item[T]) Equal(other *Item[T]) bool {
	if other == nil || it.key != other.key {
		return false
	}
	return reflect.DeepEqual(it.c.val, other.c.val)
}

/// Release unlocks the entry and fires the one-shot side effects: the
// value as of release is encoded, published through the sink, and
// written to the backend if one is configured. Sink and backend
// failures are logged and returned, never fatal. Releasing an already
// released item reports ErrReleased.
func (it *Item[T]) Release() error {
	n := atomic.AddInt32(it.refs, -1)
	if n > 0 {
		return nil
	}
	if n < 0 {
		return sserr.ErrReleased
	}
	v := it.c.val
	it.c.lock.Unlock()
	return it.syncer.released(it.key, v)
}
