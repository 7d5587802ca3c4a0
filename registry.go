package syncedstore

import (
	"reflect"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	sserr "github.com/synthlabs/tauri-svelte-synced-store/syncedstore_errors"
)

// cell is one entry of the value registry: an erased value, the runtime
// type it was established with, and its own lock. The type tag never
// changes after creation; checking it on every typed access is what
// turns a caller mix-up into ErrTypeMismatch instead of a bad cast.
type cell struct {
	lock     sync.Mutex
	typ      reflect.Type
	val      any
	poisoned bool
}

// registry maps keys to cells. Structural changes go through the xsync
// map; value access takes the cell lock only, so writers on distinct
// keys never contend.
type registry struct {
	cells *xsync.MapOf[string, *cell]
}

func newRegistry() *registry {
	return &registry{cells: xsync.NewMapOf[string, *cell]()}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (r *registry) lookup(key string) (*cell, error) {
	c, ok := r.cells.Load(key)
	if !ok {
		return nil, sserr.ErrKeyNotFound
	}
	return c, nil
}

// insert establishes (or force-replaces) an entry. The new cell starts
// unlocked and unpoisoned.
func (r *registry) insert(key string, typ reflect.Type, val any) *cell {
	c := &cell{typ: typ, val: val}
	r.cells.Store(key, c)
	return c
}

func (r *registry) size() int {
	return r.cells.Size()
}

// lookupTyped fetches the cell for key and verifies the established
// type matches T.
func lookupTyped[T any](r *registry, key string) (*cell, error) {
	c, err := r.lookup(key)
	if err != nil {
		return nil, err
	}
	if c.typ != typeOf[T]() {
		return nil, sserr.ErrTypeMismatch
	}
	return c, nil
}

// read clones the current value under the cell lock.
func (c *cell) read() (any, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.poisoned {
		return nil, sserr.ErrPoisoned
	}
	return c.val, nil
}

// write replaces the value under the cell lock. The value must already
// be of the established type; callers go through lookupTyped or the
// codec for that.
func (c *cell) write(val any) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.poisoned {
		return sserr.ErrPoisoned
	}
	c.val = val
	return nil
}

// withWrite applies fn to the value under the cell lock. A panic
// inside fn poisons the cell before propagating: the entry may be in
// a half-mutated state and later readers must hear about it.
func withWrite[T any](r *registry, key string, fn func(*T)) error {
	c, err := lookupTyped[T](r, key)
	if err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.poisoned {
		return sserr.ErrPoisoned
	}
	defer func() {
		if p := recover(); p != nil {
			c.poisoned = true
			panic(p)
		}
	}()
	v := c.val.(T)
	fn(&v)
	c.val = v
	return nil
}
