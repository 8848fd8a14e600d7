package eventbus

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhinomusic/rhino/internal/domain"
	"github.com/rhinomusic/rhino/internal/logger"
)

func newTestBus(t *testing.T) *SyncEventBus {
	t.Helper()
	bus := NewSyncEventBus(logger.NewTestLogger())
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestNewSyncEventBus(t *testing.T) {
	bus := newTestBus(t)

	assert.Equal(t, 0, bus.SubscriberCount())
	assert.False(t, bus.HasSubscribers(domain.EventTrackLoaded))
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus(t)

	var received []domain.Event
	subID := bus.Subscribe(domain.EventTrackLoaded, func(e domain.Event) {
		received = append(received, e)
	})
	require.NotEmpty(t, subID)

	song := domain.Song{Title: "Test Song", FileReference: "/music/test.mp3"}
	bus.Publish(domain.NewTrackLoadedEvent(song, 3))

	require.Len(t, received, 1)
	loaded, ok := received[0].(domain.TrackLoadedEvent)
	require.True(t, ok)
	assert.Equal(t, song, loaded.Song)
	assert.Equal(t, 3, loaded.Index)
	assert.False(t, loaded.Timestamp().IsZero())
}

func TestSubscriptionOrderIsPreserved(t *testing.T) {
	bus := newTestBus(t)

	var order []string
	bus.SubscribeAll(func(domain.Event) { order = append(order, "all") })
	first := bus.Subscribe(domain.EventNoMedia, func(domain.Event) { order = append(order, "first") })
	bus.Subscribe(domain.EventNoMedia, func(domain.Event) { order = append(order, "second") })
	bus.Subscribe(domain.EventNoMedia, func(domain.Event) { order = append(order, "third") })

	bus.Publish(domain.NewNoMediaEvent())
	assert.Equal(t, []string{"first", "second", "third", "all"}, order)

	order = nil
	bus.Unsubscribe(first)
	bus.Publish(domain.NewNoMediaEvent())
	assert.Equal(t, []string{"second", "third", "all"}, order)
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus(t)

	var calls int
	id := bus.Subscribe(domain.EventVolumeChanged, func(domain.Event) { calls++ })

	bus.Publish(domain.NewVolumeChangedEvent(50))
	bus.Unsubscribe(id)
	bus.Publish(domain.NewVolumeChangedEvent(60))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.SubscriberCount())

	// Unknown IDs are ignored
	bus.Unsubscribe("sub-999")
	bus.Unsubscribe(id)
}

func TestSubscribeAll(t *testing.T) {
	bus := newTestBus(t)

	var types []domain.EventType
	id := bus.SubscribeAll(func(e domain.Event) { types = append(types, e.Type()) })

	bus.Publish(domain.NewShuffleChangedEvent(true))
	bus.Publish(domain.NewRepeatModeChangedEvent(domain.RepeatSong))

	assert.Equal(t, []domain.EventType{domain.EventShuffleChanged, domain.EventRepeatModeChanged}, types)
	assert.True(t, bus.HasSubscribers(domain.EventSeeked), "wildcard counts for every type")

	bus.Unsubscribe(id)
	assert.False(t, bus.HasSubscribers(domain.EventSeeked))
}

func TestHandlerPanic(t *testing.T) {
	bus := newTestBus(t)

	var called bool
	bus.Subscribe(domain.EventEndOfQueue, func(domain.Event) { panic("boom") })
	bus.Subscribe(domain.EventEndOfQueue, func(domain.Event) { called = true })

	assert.NotPanics(t, func() { bus.Publish(domain.NewEndOfQueueEvent()) })
	assert.True(t, called, "later handlers still run")
}

func TestHandlerMayPublish(t *testing.T) {
	bus := newTestBus(t)

	var got []domain.EventType
	bus.Subscribe(domain.EventEndOfQueue, func(domain.Event) {
		bus.Publish(domain.NewNoMediaEvent())
	})
	bus.Subscribe(domain.EventNoMedia, func(e domain.Event) { got = append(got, e.Type()) })

	bus.Publish(domain.NewEndOfQueueEvent())
	assert.Equal(t, []domain.EventType{domain.EventNoMedia}, got)
}

func TestClose(t *testing.T) {
	bus := NewSyncEventBus(logger.NewTestLogger())

	var calls int
	bus.Subscribe(domain.EventNoMedia, func(domain.Event) { calls++ })

	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Close(), ErrClosed)

	bus.Publish(domain.NewNoMediaEvent())
	assert.Equal(t, 0, calls)
	assert.Panics(t, func() { bus.Subscribe(domain.EventNoMedia, func(domain.Event) {}) })
}

func TestNilEventAndHandler(t *testing.T) {
	bus := newTestBus(t)

	assert.NotPanics(t, func() { bus.Publish(nil) })
	assert.Panics(t, func() { bus.Subscribe(domain.EventNoMedia, nil) })
	assert.Panics(t, func() { bus.SubscribeAll(nil) })
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	bus := newTestBus(t)

	var count atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			bus.Subscribe(domain.EventProgress, func(domain.Event) { count.Add(1) })
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(domain.NewProgressEvent(0, 0))
			}
		}()
	}
	wg.Wait()

	count.Store(0)
	bus.Publish(domain.NewProgressEvent(0, 0))
	assert.Equal(t, int64(10), count.Load())
}
