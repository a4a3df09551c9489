package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Filled float64 `json:"filled"`
}

func TestHubPublishSubscribe(t *testing.T) {
	h := NewHub()
	a := h.Subscribe()
	b := h.Subscribe()
	require.Equal(t, 2, h.Subscribers())

	h.Publish(Reading, payload{Filled: 87})

	for _, ch := range []chan Event{a, b} {
		select {
		case ev := <-ch:
			assert.Equal(t, Reading, ev.Name)
			got, err := DecodeAs[payload](ev)
			require.NoError(t, err)
			assert.Equal(t, 87.0, got.Filled)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	h.Unsubscribe(a)
	_, open := <-a
	assert.False(t, open, "channel should be closed after unsubscribe")
	assert.Equal(t, 1, h.Subscribers())

	// Unsubscribing twice is a no-op.
	h.Unsubscribe(a)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish(Reading, payload{Filled: float64(i)})
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestNilHub(t *testing.T) {
	var h *Hub
	assert.NotPanics(t, func() { h.Publish(Reading, payload{}) })
	assert.Equal(t, 0, h.Subscribers())

	var ch chan Event
	require.NotPanics(t, func() { ch = h.Subscribe() })
	_, ok := <-ch
	assert.False(t, ok, "nil hub hands out a closed channel")
	assert.NotPanics(t, func() { h.Unsubscribe(ch) })
}

func TestDecodeAs(t *testing.T) {
	v, err := DecodeAs[payload](Event{Name: Reading})
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = DecodeAs[payload](Event{Name: Reading, Data: []byte("{")})
	assert.Error(t, err)

	ev := NewCycleFailedEvent("fetch", "connection", errors.New("refused"), time.Unix(100, 0))
	assert.Equal(t, CycleFailedEvent{Stage: "fetch", Kind: "connection", Error: "refused", Ts: 100}, ev)
}
