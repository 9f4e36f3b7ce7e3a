package streamclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusFanOut(t *testing.T) {
	b := NewBus()
	s1 := b.Subscribe(TopicEvents)
	s2 := b.Subscribe(TopicEvents)
	other := b.Subscribe(TopicConnection)

	b.Publish(TopicEvents, Message{Event: "test", ReceivedAt: time.Now()})

	require.Len(t, s1.C, 1)
	require.Len(t, s2.C, 1)
	assert.Empty(t, other.C, "topics are isolated")

	m := <-s1.C
	assert.Equal(t, "test", m.Event)
}

func TestBusUnsubscribeIdempotent(t *testing.T) {
	b := NewBus()
	s := b.Subscribe(TopicEvents)

	b.Unsubscribe(s)
	assert.NotPanics(t, func() { b.Unsubscribe(s) })

	// Closed channel signals the subscription is done.
	_, ok := <-s.C
	assert.False(t, ok)

	b.Publish(TopicEvents, Message{Event: "test"})
}

func TestBusSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBus()
	s := b.Subscribe(TopicEvents)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < cap(s.C)+5; i++ {
			b.Publish(TopicEvents, Message{Event: "test"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Len(t, s.C, cap(s.C))
}
