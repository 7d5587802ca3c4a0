package syncedstore

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/synthlabs/tauri-svelte-synced-store/syncedstore_errors"
	"github.com/synthlabs/tauri-svelte-synced-store/utils"
)

// recorder collects published updates.
type recorder struct {
	lock    sync.Mutex
	updates []Update
	events  []string
	fail    error
}

func (r *recorder) Emit(event string, upd Update) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.events = append(r.events, event)
	r.updates = append(r.updates, upd)
	return nil
}

func (r *recorder) count() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.updates)
}

func (r *recorder) last() (string, Update) {
	r.lock.Lock()
	defer r.lock.Unlock()
	n := len(r.updates)
	return r.events[n-1], r.updates[n-1]
}

// memBackend is an in-memory Backend for tests that don't need disk.
type memBackend struct {
	lock sync.Mutex
	data map[string][]byte
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string][]byte)}
}

func (b *memBackend) Get(key string) ([]byte, bool, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *memBackend) Set(key string, value []byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.data[key] = append([]byte(nil), value...)
	return nil
}

func (b *memBackend) Close() error { return nil }

func newTestSyncer(t *testing.T, emitter Emitter) *Syncer {
	t.Helper()
	s, err := New(Options{Logger: utils.NopLogger{}, Emitter: emitter})
	require.NoError(t, err)
	return s
}

func newTestSyncerWith(t *testing.T, opts Options) *Syncer {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = utils.NopLogger{}
	}
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func TestSetRejectsTypeChange(t *testing.T) {
	s := newTestSyncer(t, nil)
	require.NoError(t, Set(s, "volume", 50))
	assert.ErrorIs(t, Set(s, "volume", "loud"), sserr.ErrTypeMismatch)

	// same type just replaces
	require.NoError(t, Set(s, "volume", 60))
	v, err := SnapshotOf[int](s, "volume")
	require.NoError(t, err)
	assert.Equal(t, 60, v)
}

func TestForceSetOverridesType(t *testing.T) {
	s := newTestSyncer(t, nil)
	require.NoError(t, Set(s, "theme", 1))
	require.NoError(t, ForceSet(s, "theme", "dark"))

	v, err := SnapshotOf[string](s, "theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", v)

	_, err = SnapshotOf[int](s, "theme")
	assert.ErrorIs(t, err, sserr.ErrTypeMismatch)
}

func TestUpdateNotifies(t *testing.T) {
	rec := &recorder{}
	s := newTestSyncer(t, rec)

	require.NoError(t, UpdateValue(s, "volume", 50, false))
	assert.Equal(t, 0, rec.count())

	require.NoError(t, UpdateValue(s, "volume", 70, true))
	require.Equal(t, 1, rec.count())
	event, upd := rec.last()
	assert.Equal(t, "volume_update", event)
	assert.Equal(t, "volume", upd.Name)
	assert.Equal(t, "70", upd.Value)
	require.NotNil(t, upd.Version)
}

func TestSyncerWithWrite(t *testing.T) {
	rec := &recorder{}
	back := newMemBackend()
	s := newTestSyncerWith(t, Options{Emitter: rec, Backend: back})
	require.NoError(t, Set(s, "volume", 50))

	require.NoError(t, WithWrite(s, "volume", func(v *int) { *v += 5 }))
	v, err := SnapshotOf[int](s, "volume")
	require.NoError(t, err)
	assert.Equal(t, 55, v)
	assert.Equal(t, 0, rec.count()) // no notification without Emit

	raw, ok, err := back.Get("volume")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "55", string(raw))
}

func TestUpdateFromText(t *testing.T) {
	rec := &recorder{}
	s := newTestSyncer(t, rec)
	require.NoError(t, Set(s, "volume", 50))

	require.NoError(t, s.UpdateFromText("volume", "55", true))
	v, err := SnapshotOf[int](s, "volume")
	require.NoError(t, err)
	assert.Equal(t, 55, v)
	assert.Equal(t, 1, rec.count())

	// malformed payload fails this call only, value untouched
	err = s.UpdateFromText("volume", "not-a-number", true)
	assert.ErrorIs(t, err, sserr.ErrDecode)
	v, _ = SnapshotOf[int](s, "volume")
	assert.Equal(t, 55, v)
	assert.Equal(t, 1, rec.count())

	assert.ErrorIs(t, s.UpdateFromText("unknown", "1", false), sserr.ErrKeyNotFound)
}

func TestRoundTrip(t *testing.T) {
	type prefs struct {
		Theme string   `json:"theme"`
		Tags  []string `json:"tags"`
	}
	s := newTestSyncer(t, nil)

	orig := prefs{Theme: "dark", Tags: []string{"a", "b"}}
	require.NoError(t, Set(s, "prefs", orig))

	cod, err := s.codecs.lookup("prefs")
	require.NoError(t, err)
	text, err := cod.encode(orig)
	require.NoError(t, err)
	back, err := cod.decode(text)
	require.NoError(t, err)
	assert.Equal(t, orig, back)
}

func TestSnapshotHasNoSideEffects(t *testing.T) {
	rec := &recorder{}
	s := newTestSyncer(t, rec)
	require.NoError(t, Set(s, "volume", 50))

	v, err := SnapshotOf[int](s, "volume")
	require.NoError(t, err)
	assert.Equal(t, 50, v)
	assert.Equal(t, 0, rec.count())

	_, err = SnapshotOf[int](s, "missing")
	assert.ErrorIs(t, err, sserr.ErrKeyNotFound)
}

func TestEmitForcesNotification(t *testing.T) {
	rec := &recorder{}
	s := newTestSyncer(t, rec)
	require.NoError(t, Set(s, "volume", 50))

	assert.True(t, s.Emit("volume"))
	assert.True(t, s.Emit("volume"))
	assert.Equal(t, 2, rec.count())

	assert.False(t, s.Emit("missing"))
}

func TestEmitDedup(t *testing.T) {
	rec := &recorder{}
	s := newTestSyncerWith(t, Options{Emitter: rec, DedupEmits: true})
	require.NoError(t, Set(s, "volume", 50))

	assert.True(t, s.Emit("volume"))
	assert.True(t, s.Emit("volume")) // skipped but not an error
	assert.Equal(t, 1, rec.count())

	require.NoError(t, UpdateValue(s, "volume", 51, false))
	assert.True(t, s.Emit("volume"))
	assert.Equal(t, 2, rec.count())
}

func TestEmitRetriesAfterTransportFailure(t *testing.T) {
	rec := &recorder{fail: errors.New("pipe broke")}
	s := newTestSyncerWith(t, Options{Emitter: rec, DedupEmits: true})
	require.NoError(t, Set(s, "volume", 50))

	// a failed publish must not count as delivered
	assert.False(t, s.Emit("volume"))
	assert.Equal(t, 0, rec.count())

	rec.lock.Lock()
	rec.fail = nil
	rec.lock.Unlock()

	// the retry reaches the sink instead of being deduplicated away
	assert.True(t, s.Emit("volume"))
	require.Equal(t, 1, rec.count())
	_, upd := rec.last()
	assert.Equal(t, "50", upd.Value)

	// dedup applies again once the payload really went out
	assert.True(t, s.Emit("volume"))
	assert.Equal(t, 1, rec.count())
}

func TestTransportFailureIsReportedNotFatal(t *testing.T) {
	rec := &recorder{fail: errors.New("pipe broke")}
	s := newTestSyncer(t, rec)
	require.NoError(t, Set(s, "volume", 50))

	err := UpdateValue(s, "volume", 60, true)
	assert.ErrorIs(t, err, sserr.ErrEmit)

	// the value still applied
	v, err := SnapshotOf[int](s, "volume")
	require.NoError(t, err)
	assert.Equal(t, 60, v)
}

func TestVersionsAreMonotonic(t *testing.T) {
	rec := &recorder{}
	s := newTestSyncer(t, rec)
	require.NoError(t, Set(s, "n", 0))

	for i := 1; i <= 5; i++ {
		require.NoError(t, UpdateValue(s, "n", i, true))
	}
	require.Equal(t, 5, rec.count())
	for i := 1; i < len(rec.updates); i++ {
		assert.True(t, rec.updates[i-1].Version.Less(*rec.updates[i].Version))
	}
}

func TestSaveAndLoad(t *testing.T) {
	back := newMemBackend()
	s := newTestSyncerWith(t, Options{Backend: back})

	require.NoError(t, Set(s, "theme", "dark"))
	require.NoError(t, s.Save("theme"))
	raw, ok, err := back.Get("theme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"dark"`, string(raw))

	// a second store over the same backend picks it up
	s2 := newTestSyncerWith(t, Options{Backend: back})
	v, err := Load[string](s2, "theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", v)
	v, err = SnapshotOf[string](s2, "theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", v)
}

func TestSaveWithoutBackend(t *testing.T) {
	s := newTestSyncer(t, nil)
	require.NoError(t, Set(s, "theme", "dark"))
	assert.ErrorIs(t, s.Save("theme"), sserr.ErrNoBackend)
}

func TestLoadFallbacks(t *testing.T) {
	// no backend: zero value installed, ErrNoBackend reported
	s := newTestSyncer(t, nil)
	flag, err := Load[bool](s, "flag")
	assert.ErrorIs(t, err, sserr.ErrNoBackend)
	assert.False(t, flag)
	got, err := SnapshotOf[bool](s, "flag")
	require.NoError(t, err)
	assert.False(t, got)

	// backend present, key absent: clean zero value
	s = newTestSyncerWith(t, Options{Backend: newMemBackend()})
	n, err := Load[int](s, "count")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	got2, err := SnapshotOf[int](s, "count")
	require.NoError(t, err)
	assert.Equal(t, 0, got2)

	// backend holds garbage: corruption reported, zero value installed
	back := newMemBackend()
	require.NoError(t, back.Set("count", []byte("garbage")))
	s = newTestSyncerWith(t, Options{Backend: back})
	n, err = Load[int](s, "count")
	assert.ErrorIs(t, err, sserr.ErrDecode)
	assert.Equal(t, 0, n)
}

func TestSetPersistsImmediately(t *testing.T) {
	back := newMemBackend()
	s := newTestSyncerWith(t, Options{Backend: back})

	require.NoError(t, Set(s, "volume", 50))
	raw, ok, err := back.Get("volume")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "50", string(raw))
}
