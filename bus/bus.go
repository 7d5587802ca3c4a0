// Package bus is an in-process publish/subscribe channel that plugs
// into the store as its notification sink. A host framework's own
// event pipe can replace it; the store only needs the Emit method.
package bus

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	syncedstore "github.com/synthlabs/tauri-svelte-synced-store"
	"github.com/synthlabs/tauri-svelte-synced-store/utils"
)

// Handler receives one published update.
type Handler func(event string, upd syncedstore.Update)

type subscription struct {
	id      string
	event   string
	handler Handler
	async   bool
}

type SubscribeOption func(*subscription)

// Async runs the handler on its own goroutine; WaitAsync drains them.
func Async() SubscribeOption {
	return func(sub *subscription) {
		sub.async = true
	}
}

// Bus fans updates out to per-event subscriber lists. A panicking
// subscriber is isolated and reported through Emit's error; it never
// unwinds into the publisher.
type Bus struct {
	lock    sync.RWMutex
	byEvent map[string][]*subscription
	byID    utils.CMap[string, *subscription]
	wg      sync.WaitGroup
	log     utils.Logger
}

func New(log utils.Logger) *Bus {
	return &Bus{
		byEvent: make(map[string][]*subscription),
		log:     log,
	}
}

// Subscribe registers h for event and returns the subscription id.
func (b *Bus) Subscribe(event string, h Handler, opts ...SubscribeOption) string {
	sub := &subscription{
		id:      uuid.Must(uuid.NewV7()).String(),
		event:   event,
		handler: h,
	}
	for _, opt := range opts {
		opt(sub)
	}

	b.lock.Lock()
	b.byEvent[event] = append(b.byEvent[event], sub)
	b.lock.Unlock()
	b.byID.Store(sub.id, sub)
	return sub.id
}

func (b *Bus) Unsubscribe(id string) bool {
	sub, ok := b.byID.LoadAndDelete(id)
	if !ok {
		return false
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	subs := b.byEvent[sub.event]
	for i, s := range subs {
		if s == sub {
			b.byEvent[sub.event] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	return true
}

// Emit delivers upd to every subscriber of event. Synchronous handler
// panics are counted and reported; async handlers run detached.
func (b *Bus) Emit(event string, upd syncedstore.Update) error {
	b.lock.RLock()
	subs := make([]*subscription, len(b.byEvent[event]))
	copy(subs, b.byEvent[event])
	b.lock.RUnlock()

	panics := 0
	for _, sub := range subs {
		if sub.async {
			b.wg.Add(1)
			go func(sub *subscription) {
				defer b.wg.Done()
				b.deliver(sub, event, upd)
			}(sub)
			continue
		}
		if !b.deliver(sub, event, upd) {
			panics++
		}
	}
	if panics > 0 {
		return fmt.Errorf("bus: %d subscriber(s) of %q panicked", panics, event)
	}
	return nil
}

func (b *Bus) deliver(sub *subscription, event string, upd syncedstore.Update) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			ok = false
			if b.log != nil {
				b.log.Error("bus: subscriber panicked", "event", event, "sub", sub.id, "panic", p)
			}
		}
	}()
	sub.handler(event, upd)
	return true
}

// WaitAsync blocks until all detached deliveries are done.
func (b *Bus) WaitAsync() {
	b.wg.Wait()
}
