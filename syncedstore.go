// Package syncedstore is an in-process, strongly typed, heterogeneous
// state store. One registry holds values of arbitrary (per-key fixed)
// types behind per-entry locks, lazily binds a JSON codec per key, and
// publishes a change notification whenever a held value is released
// after mutation. Keys can optionally be mirrored to a durable pebble
// backend.
package syncedstore

import (
	"fmt"
	"log/slog"

	sserr "github.com/synthlabs/tauri-svelte-synced-store/syncedstore_errors"
	"github.com/synthlabs/tauri-svelte-synced-store/utils"
)

type Options struct {
	// Logger defaults to the slog text logger on stderr.
	Logger utils.Logger
	// Emitter is the notification sink. Nil disables publishing.
	Emitter Emitter
	// Backend is the durable store. Nil disables load/save.
	Backend Backend
	// Metrics, when set, is bumped by every store operation. Register
	// it with prometheus yourself.
	Metrics *Metrics
	// DedupEmits makes Emit skip re-publishing a payload identical to
	// the last one published for that key.
	DedupEmits bool
	// EmitCacheSize bounds the dedup hash cache.
	EmitCacheSize int
}

func (o *Options) SetDefaults() {
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelInfo)
	}
	if o.EmitCacheSize == 0 {
		o.EmitCacheSize = 512
	}
}

// Syncer is the store façade. Construct with New and pass the instance
// around; there is no process-wide registry.
type Syncer struct {
	values  *registry
	codecs  *codecRegistry
	emitter Emitter
	backend Backend
	metrics *Metrics
	log     utils.Logger
	clock   versionClock
	cache   *emitCache
	dedup   bool
}

func New(opts Options) (*Syncer, error) {
	opts.SetDefaults()
	cache, err := newEmitCache(opts.EmitCacheSize)
	if err != nil {
		return nil, err
	}
	s := &Syncer{
		values:  newRegistry(),
		codecs:  newCodecRegistry(),
		emitter: opts.Emitter,
		backend: opts.Backend,
		metrics: opts.Metrics,
		log:     opts.Logger,
		cache:   cache,
		dedup:   opts.DedupEmits,
	}
	if s.metrics != nil {
		s.metrics.keys = s.values.size
	}
	return s, nil
}

// Close releases the backend, if any. The emitter is externally owned.
func (s *Syncer) Close() error {
	if s.backend != nil {
		return s.backend.Close()
	}
	return nil
}

// Set establishes (or replaces) the entry for key with value v. The
// first Set for a key fixes its type and binds the codec pair; a later
// Set with a different type is rejected with ErrTypeMismatch. Use
// ForceSet for a deliberate type change. With a backend configured the
// value is persisted immediately. Set does not notify.
func Set[T any](s *Syncer, key string, v T) error {
	cod, existed := s.codecs.bind(key, codecFor[T]())
	if existed && cod.typ != typeOf[T]() {
		return sserr.ErrTypeMismatch
	}
	s.values.insert(key, typeOf[T](), v)
	s.metrics.updateApplied()
	s.log.Debug("set", "key", key)
	if s.backend != nil {
		return s.persist(key, v)
	}
	return nil
}

// ForceSet is the explicit override: it drops the established type and
// codec for key and starts over with T.
func ForceSet[T any](s *Syncer, key string, v T) error {
	s.codecs.rebind(key, codecFor[T]())
	s.values.insert(key, typeOf[T](), v)
	s.metrics.updateApplied()
	s.log.Debug("force set", "key", key)
	if s.backend != nil {
		return s.persist(key, v)
	}
	return nil
}

// UpdateValue replaces the value under the entry lock. A new key behaves
// like Set. The notification, when requested, is synchronous and
// observes the new value; it does not go through an Item.
func UpdateValue[T any](s *Syncer, key string, v T, notify bool) error {
	c, err := s.values.lookup(key)
	if err != nil {
		if err = Set[T](s, key, v); err != nil {
			return err
		}
	} else {
		if c.typ != typeOf[T]() {
			return sserr.ErrTypeMismatch
		}
		if err = c.write(v); err != nil {
			return err
		}
		s.metrics.updateApplied()
		if s.backend != nil {
			if err = s.persist(key, v); err != nil {
				return err
			}
		}
	}
	if notify {
		return s.publish(key, v, false)
	}
	return nil
}

// WithWrite applies a mutation under the entry lock without handing
// out a handle. No notification is published; pair with Emit when
// subscribers should hear about the result. Persists like UpdateValue.
func WithWrite[T any](s *Syncer, key string, fn func(*T)) error {
	if err := withWrite(s.values, key, fn); err != nil {
		return err
	}
	s.metrics.updateApplied()
	if s.backend != nil {
		v, err := SnapshotOf[T](s, key)
		if err != nil {
			return err
		}
		return s.persist(key, v)
	}
	return nil
}

// UpdateFromText decodes text through the key's registered decoder and
// applies it. A malformed payload fails just this call; the stored
// value stays untouched.
func (s *Syncer) UpdateFromText(key, text string, notify bool) error {
	cod, err := s.codecs.lookup(key)
	if err != nil {
		return err
	}
	v, err := cod.decode(text)
	if err != nil {
		s.metrics.decodeFailed()
		s.log.Error("update from text: bad payload", "key", key, "err", err)
		return err
	}
	c, lerr := s.values.lookup(key)
	if lerr != nil {
		s.values.insert(key, cod.typ, v)
	} else if err = c.write(v); err != nil {
		return err
	}
	s.metrics.updateApplied()
	s.log.Debug("update from text", "key", key)
	if s.backend != nil {
		if err = s.backend.Set(key, []byte(text)); err != nil {
			return err
		}
	}
	if notify {
		return s.publish(key, v, false)
	}
	return nil
}

// SnapshotOf returns a copy of the current value, no handle, no side
// effects. The read-only fast path.
func SnapshotOf[T any](s *Syncer, key string) (T, error) {
	var zero T
	c, err := lookupTyped[T](s.values, key)
	if err != nil {
		return zero, err
	}
	v, err := c.read()
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Emit publishes the entry's current value without mutating it. False
// means the value could not be published: unknown key, poisoned entry,
// or a sink failure; the cause is logged. When deduplication is on, a
// payload identical to the last published one is silently skipped.
func (s *Syncer) Emit(key string) bool {
	if err := s.EmitErr(key); err != nil {
		s.log.Warn("emit failed", "key", key, "err", err)
		return false
	}
	return true
}

// EmitErr is Emit with the cause.
func (s *Syncer) EmitErr(key string) error {
	c, err := s.values.lookup(key)
	if err != nil {
		return err
	}
	v, err := c.read()
	if err != nil {
		return err
	}
	return s.publish(key, v, s.dedup)
}

// Load reads key from the backend, decodes it, installs it in memory
// and returns it. Fallbacks are distinguished: with no backend the
// zero value is installed and ErrNoBackend returned; a key absent on
// the backend installs the zero value cleanly; a decode failure
// installs the zero value and reports the corruption. In every case
// the key ends up set in memory.
func Load[T any](s *Syncer, key string) (T, error) {
	var zero T
	cod, existed := s.codecs.bind(key, codecFor[T]())
	if existed && cod.typ != typeOf[T]() {
		return zero, sserr.ErrTypeMismatch
	}
	if s.backend == nil {
		s.values.insert(key, typeOf[T](), zero)
		return zero, sserr.ErrNoBackend
	}
	raw, ok, err := s.backend.Get(key)
	if err != nil || !ok {
		s.values.insert(key, typeOf[T](), zero)
		return zero, err
	}
	v, err := cod.decode(string(raw))
	if err != nil {
		s.metrics.decodeFailed()
		s.log.Error("load: stored payload corrupt", "key", key, "err", err)
		s.values.insert(key, typeOf[T](), zero)
		return zero, err
	}
	s.values.insert(key, typeOf[T](), v)
	s.log.Debug("load", "key", key)
	return v.(T), nil
}

// Save writes the current in-memory value to the backend.
func (s *Syncer) Save(key string) error {
	if s.backend == nil {
		return sserr.ErrNoBackend
	}
	c, err := s.values.lookup(key)
	if err != nil {
		return err
	}
	v, err := c.read()
	if err != nil {
		return err
	}
	s.log.Debug("save", "key", key)
	return s.persist(key, v)
}

func (s *Syncer) persist(key string, val any) error {
	if s.backend == nil {
		return sserr.ErrNoBackend
	}
	cod, err := s.codecs.lookup(key)
	if err != nil {
		return err
	}
	payload, err := cod.encode(val)
	if err != nil {
		return err
	}
	return s.backend.Set(key, []byte(payload))
}

// publish encodes val and hands it to the sink, stamped with the next
// version. Sink failures are logged and surfaced as ErrEmit, never
// allowed to take the process down.
func (s *Syncer) publish(key string, val any, dedup bool) error {
	cod, err := s.codecs.lookup(key)
	if err != nil {
		return err
	}
	payload, err := cod.encode(val)
	if err != nil {
		return err
	}
	if dedup && !s.cache.changed(key, payload) {
		s.metrics.emitSkipped()
		s.log.Debug("emit skipped, payload unchanged", "key", key)
		return nil
	}
	if s.emitter == nil {
		return nil
	}
	ver := s.clock.Next()
	upd := Update{Version: &ver, Name: key, Value: payload}
	if err = s.emitter.Emit(EventName(key), upd); err != nil {
		s.metrics.emitFailed()
		s.log.Error("publish failed", "key", key, "err", err)
		return fmt.Errorf("%w: %v", sserr.ErrEmit, err)
	}
	s.cache.note(key, payload)
	s.metrics.notified(payload)
	s.log.Debug("published", "key", key, "version", ver.String())
	return nil
}

// released runs the one-shot effects of an Item release: publish the
// value as of release, then persist it when a backend is configured.
func (s *Syncer) released(key string, val any) error {
	err := s.publish(key, val, false)
	if s.backend != nil {
		if perr := s.persist(key, val); perr != nil {
			s.log.Error("persist on release failed", "key", key, "err", perr)
			if err == nil {
				err = perr
			}
		}
	}
	return err
}
