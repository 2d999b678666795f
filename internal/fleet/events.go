package fleet

import "time"

// EventKind identifies what changed in the catalog.
type EventKind string

const (
	EventHostAdded      EventKind = "host-added"
	EventHostRemoved    EventKind = "host-removed"
	EventStatusChanged  EventKind = "status-changed"
	EventMetricsUpdated EventKind = "metrics-updated"
	EventLogsUpdated    EventKind = "logs-updated"
	EventDeployStarted  EventKind = "deploy-started"
	EventDeployFinished EventKind = "deploy-finished"
)

// Event is a change notification published by the registry. Observers
// subscribe instead of polling the catalog.
type Event struct {
	Kind    EventKind `json:"kind"`
	HostID  string    `json:"host_id,omitempty"`
	Status  Status    `json:"status,omitempty"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Subscribe registers a buffered event channel. Slow subscribers drop events
// rather than block the registry.
func (r *Registry) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if c, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(c)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// publish fans an event out to subscribers. Callers must hold r.mu.
func (r *Registry) publish(ev Event) {
	ev.At = time.Now()
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
