package pubsub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesMatchingKind(t *testing.T) {
	bus := New()
	defer bus.Close()

	ch, cancel := bus.Subscribe("open")
	defer cancel()

	bus.Publish("open", map[string]interface{}{"from": "closed"})

	select {
	case evt := <-ch:
		assert.Equal(t, "open", evt.Kind)
		assert.Equal(t, "closed", evt.Payload["from"])
		assert.False(t, evt.Time.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered")
	}
}

func TestSubscribeFiltersOtherKinds(t *testing.T) {
	bus := New()
	defer bus.Close()

	ch, cancel := bus.Subscribe("close")
	defer cancel()

	bus.Publish("open", nil)

	select {
	case evt, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event delivered: %v", evt)
		}
	default:
	}
}

func TestKindAllReceivesEverything(t *testing.T) {
	bus := New()
	defer bus.Close()

	ch, cancel := bus.Subscribe(KindAll)
	defer cancel()

	bus.Publish("open", nil)
	bus.Publish("half_open", nil)

	require.Equal(t, "open", (<-ch).Kind)
	require.Equal(t, "half_open", (<-ch).Kind)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus := New()
	defer bus.Close()

	ch, cancel := bus.Subscribe("open")
	cancel()
	cancel() // second call must not panic

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// Publishing after unsubscribe must not panic either
	bus.Publish("open", nil)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewWithBuffer(1)
	defer bus.Close()

	ch, cancel := bus.Subscribe("open")
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			bus.Publish("open", nil)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// Only the buffered event survives
	assert.Equal(t, 1, len(ch))
}

func TestCloseClosesSubscribers(t *testing.T) {
	bus := New()
	ch, _ := bus.Subscribe("open")

	bus.Close()

	_, ok := <-ch
	assert.False(t, ok)

	// Close is idempotent
	bus.Close()
}
