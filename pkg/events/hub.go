package events

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// subscriberBuffer is the number of events a subscriber may lag behind
// before events are dropped for it.
const subscriberBuffer = 16

// Hub fans out events to any number of subscribers. A nil *Hub is valid and
// discards everything published to it.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub { return &Hub{subs: make(map[chan Event]struct{})} }

// Subscribe registers a new subscriber. The returned channel is closed by
// Unsubscribe. A nil hub returns an already closed channel.
func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	if h == nil {
		close(ch)
		return ch
	}
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish encodes payload as JSON and delivers it to every subscriber
// without blocking.
func (h *Hub) Publish(name string, payload any) {
	if h == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).WithField("event", name).Warn("failed to encode event payload")
		return
	}
	msg := Event{Name: name, Data: b}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
			logrus.WithField("event", name).Debug("subscriber too slow, event dropped")
		}
	}
}
