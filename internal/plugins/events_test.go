package plugins

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_DeliversInRegistrationOrder(t *testing.T) {
	bus := NewEventBus()
	var mu sync.Mutex
	var order []int

	for i := 0; i < 5; i++ {
		i := i
		bus.On("trackChange", "p", func(data interface{}) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}

	bus.Emit("trackChange", nil)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestEventBus_ListenerPanicDoesNotBlockOthers(t *testing.T) {
	bus := NewEventBus()
	var delivered int32

	bus.On("trackChange", "bad", func(data interface{}) error {
		panic("boom")
	})
	bus.On("trackChange", "good", func(data interface{}) error {
		atomic.AddInt32(&delivered, 1)
		return nil
	})

	assert.NotPanics(t, func() { bus.Emit("trackChange", nil) })
	assert.EqualValues(t, 1, atomic.LoadInt32(&delivered))
}

func TestEventBus_ListenerErrorDoesNotBlockOthers(t *testing.T) {
	bus := NewEventBus()
	var delivered int32

	bus.On("trackChange", "bad", func(data interface{}) error {
		return errors.New("nope")
	})
	bus.On("trackChange", "good", func(data interface{}) error {
		atomic.AddInt32(&delivered, 1)
		return nil
	})

	bus.Emit("trackChange", nil)
	assert.EqualValues(t, 1, atomic.LoadInt32(&delivered))
}

func TestEventBus_OnceRemovedBeforeInvocation(t *testing.T) {
	bus := NewEventBus()
	var calls int32
	bus.Once("seeked", "p", func(data interface{}) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	bus.Emit("seeked", nil)
	bus.Emit("seeked", nil)

	assert.EqualValues(t, 1, calls)
}

func TestEventBus_RemovePluginListenersPurgesAllEvents(t *testing.T) {
	bus := NewEventBus()
	var calls int32
	bus.On("a", "p", func(data interface{}) error { atomic.AddInt32(&calls, 1); return nil })
	bus.On("b", "p", func(data interface{}) error { atomic.AddInt32(&calls, 1); return nil })
	bus.On("a", "other", func(data interface{}) error { atomic.AddInt32(&calls, 1); return nil })

	bus.RemovePluginListeners("p")
	bus.Emit("a", nil)
	bus.Emit("b", nil)

	time.Sleep(10 * time.Millisecond)
	assert.EqualValues(t, 1, calls)
}

func TestEventBus_RequestNoHandlerFailsImmediately(t *testing.T) {
	bus := NewEventBus()
	_, err := bus.Request("search.query", nil)
	require.Error(t, err)
}

func TestEventBus_RequestReturnsHandlerResult(t *testing.T) {
	bus := NewEventBus()
	bus.HandleRequest("search.query", "b", func(data interface{}) (interface{}, error) {
		return "result", nil
	})
	result, err := bus.Request("search.query", nil)
	require.NoError(t, err)
	assert.Equal(t, "result", result)
}

func TestEventBus_RemovePluginRequestHandlers(t *testing.T) {
	bus := NewEventBus()
	bus.HandleRequest("search.query", "b", func(data interface{}) (interface{}, error) {
		return "result", nil
	})
	bus.RemovePluginRequestHandlers("b")
	_, err := bus.Request("search.query", nil)
	require.Error(t, err)
}
