package events

import (
	"encoding/json"
	"time"
)

// Event names published by the daemon.
const (
	// Reading is published after a reading was forwarded to the backend.
	Reading = "reading"
	// CycleFailed is published when a poll cycle ends with an error.
	CycleFailed = "cycle.failed"
)

// Event is a server-sent event emitted by the daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // JSON payload
}

// CycleFailedEvent is the payload of CycleFailed.
type CycleFailedEvent struct {
	Stage string `json:"stage"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
	Ts    int64  `json:"ts"`
}

// NewCycleFailedEvent builds a CycleFailedEvent at time t.
func NewCycleFailedEvent(stage, kind string, err error, t time.Time) CycleFailedEvent {
	return CycleFailedEvent{
		Stage: stage,
		Kind:  kind,
		Error: err.Error(),
		Ts:    t.Unix(),
	}
}

// DecodeAs unmarshals the payload of e into T. An empty payload yields the
// zero value of T.
//
//	r, err := events.DecodeAs[types.Reading](ev)
func DecodeAs[T any](e Event) (T, error) {
	var v T
	if len(e.Data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(e.Data, &v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
