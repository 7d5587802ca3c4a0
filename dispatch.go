package syncedstore

import (
	"sort"

	sserr "github.com/synthlabs/tauri-svelte-synced-store/syncedstore_errors"
	"github.com/synthlabs/tauri-svelte-synced-store/utils"
)

// Handler applies one named command's text payload to the store.
type Handler func(s *Syncer, payload string, notify bool) error

// Dispatch routes command names to typed handlers. It replaces
// generated per-command glue with a table built at startup: bind each
// name to a key once, route payloads by name afterwards.
type Dispatch struct {
	syncer   *Syncer
	handlers utils.CMap[string, Handler]
}

func NewDispatch(s *Syncer) *Dispatch {
	return &Dispatch{syncer: s}
}

// RegisterKey binds command name to store key: routed payloads are
// decoded as T and applied via UpdateValue. The first routed payload for a
// fresh key establishes it.
func RegisterKey[T any](d *Dispatch, name, key string) {
	d.handlers.Store(name, func(s *Syncer, payload string, notify bool) error {
		cod := codecFor[T]()
		v, err := cod.decode(payload)
		if err != nil {
			s.metrics.decodeFailed()
			return err
		}
		return UpdateValue[T](s, key, v.(T), notify)
	})
}

// Register binds an arbitrary handler to name.
func (d *Dispatch) Register(name string, h Handler) {
	d.handlers.Store(name, h)
}

func (d *Dispatch) Unregister(name string) {
	d.handlers.Delete(name)
}

// Route applies payload through the handler bound to name.
func (d *Dispatch) Route(name, payload string, notify bool) error {
	h, ok := d.handlers.Load(name)
	if !ok {
		return sserr.ErrCommandUnknown
	}
	return h(d.syncer, payload, notify)
}

// Names lists the registered command names, sorted.
func (d *Dispatch) Names() []string {
	var names []string
	d.handlers.Range(func(name string, _ Handler) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}
