package daemon

import (
	"sync"
	"time"
)

// CycleRecorder keeps the times of the last N successful cycles.
type CycleRecorder struct {
	max   int
	times []time.Time
	mu    sync.Mutex
}

func NewCycleRecorder(maxRecordCount int) *CycleRecorder {
	return &CycleRecorder{
		max:   maxRecordCount,
		times: make([]time.Time, 0, maxRecordCount),
	}
}

// Add records a successful cycle at t.
func (r *CycleRecorder) Add(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Strip the monotonic clock reading so comparisons stay in wall time
	// across system suspend.
	t = t.Round(0)

	if len(r.times) >= r.max {
		r.times = r.times[1:]
	}
	r.times = append(r.times, t)
}

// AddNow records a successful cycle at the current time.
func (r *CycleRecorder) AddNow() {
	r.Add(time.Now())
}

// Last returns the most recent record, or the zero time.
func (r *CycleRecorder) Last() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.times) == 0 {
		return time.Time{}
	}
	return r.times[len(r.times)-1]
}

// Len returns the number of records.
func (r *CycleRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.times)
}

// Stale reports whether no cycle was recorded within maxAge before now.
func (r *CycleRecorder) Stale(now time.Time, maxAge time.Duration) bool {
	last := r.Last()
	return last.IsZero() || now.Sub(last) > maxAge
}

// Continuous returns the number of records within the last duration that
// form an unbroken run ending at the newest record, where two neighbours
// are at most interval+1s apart. It returns 0 when the newest record is
// itself older than interval+1s.
func (r *CycleRecorder) Continuous(now time.Time, last, interval time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	gap := interval + time.Second
	n := len(r.times)
	if n == 0 || now.Sub(r.times[n-1]) >= gap {
		return 0
	}

	count := 0
	for i := n - 1; i >= 0; i-- {
		record := r.times[i]
		if now.Sub(record) > last {
			break
		}
		if i+1 < n && r.times[i+1].Sub(record) >= gap {
			break
		}
		count++
	}
	return count
}
