package bus_test

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncedstore "github.com/synthlabs/tauri-svelte-synced-store"
	"github.com/synthlabs/tauri-svelte-synced-store/bus"
	"github.com/synthlabs/tauri-svelte-synced-store/utils"
)

func TestSubscribeEmitUnsubscribe(t *testing.T) {
	b := bus.New(utils.NopLogger{})

	var got []syncedstore.Update
	id := b.Subscribe("volume_update", func(event string, upd syncedstore.Update) {
		got = append(got, upd)
	})
	require.NotEmpty(t, id)

	require.NoError(t, b.Emit("volume_update", syncedstore.Update{Name: "volume", Value: "50"}))
	require.NoError(t, b.Emit("theme_update", syncedstore.Update{Name: "theme", Value: `"dark"`}))
	require.Len(t, got, 1)
	assert.Equal(t, "50", got[0].Value)

	assert.True(t, b.Unsubscribe(id))
	assert.False(t, b.Unsubscribe(id))
	require.NoError(t, b.Emit("volume_update", syncedstore.Update{Name: "volume", Value: "60"}))
	assert.Len(t, got, 1)
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	b := bus.New(utils.NopLogger{})

	calls := 0
	b.Subscribe("k_update", func(string, syncedstore.Update) { panic("bad subscriber") })
	b.Subscribe("k_update", func(string, syncedstore.Update) { calls++ })

	err := b.Emit("k_update", syncedstore.Update{Name: "k", Value: "1"})
	assert.Error(t, err)
	assert.Equal(t, 1, calls) // the healthy subscriber still ran
}

func TestAsyncDelivery(t *testing.T) {
	b := bus.New(utils.NopLogger{})

	var calls atomic.Int32
	b.Subscribe("k_update", func(string, syncedstore.Update) {
		calls.Add(1)
	}, bus.Async())

	for i := 0; i < 10; i++ {
		require.NoError(t, b.Emit("k_update", syncedstore.Update{Name: "k", Value: "1"}))
	}
	b.WaitAsync()
	assert.Equal(t, int32(10), calls.Load())
}

func TestBusAsStoreSink(t *testing.T) {
	b := bus.New(utils.NopLogger{})
	s, err := syncedstore.New(syncedstore.Options{Logger: utils.NopLogger{}, Emitter: b})
	require.NoError(t, err)

	var seen []string
	b.Subscribe("volume_update", func(event string, upd syncedstore.Update) {
		seen = append(seen, upd.Value)
	})

	require.NoError(t, syncedstore.Set(s, "volume", 50))
	it, err := syncedstore.Acquire[int](s, "volume")
	require.NoError(t, err)
	it.Set(60)
	require.NoError(t, it.Release())

	assert.Equal(t, []string{"60"}, seen)
}
