package sink

import (
	"context"
	"sync"

	"github.com/ess-reader/ess-reader/pkg/events"
	"github.com/ess-reader/ess-reader/pkg/types"
)

// Latest remembers the last reading it received and announces it on a hub.
type Latest struct {
	mu  sync.RWMutex
	r   types.Reading
	ok  bool
	hub *events.Hub
}

// NewLatest returns a Latest sink. hub may be nil.
func NewLatest(hub *events.Hub) *Latest {
	return &Latest{hub: hub}
}

func (l *Latest) Send(_ context.Context, r types.Reading) error {
	l.mu.Lock()
	l.r = r
	l.ok = true
	l.mu.Unlock()

	l.hub.Publish(events.Reading, r)
	return nil
}

// Get returns the last reading, and false if there was none yet.
func (l *Latest) Get() (types.Reading, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.r, l.ok
}
