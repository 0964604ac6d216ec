// Package journal implements Chimera's append-only domain event log and
// typed pub/sub bus. The default Journal is in-memory and single-writer;
// adapters/pgjournal provides a Postgres-backed implementation of the
// same interfaces for production deployments.
package journal

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jbouey/chimera/internal/capability"
)

// Event is an alias for capability.Event so that *Journal satisfies
// capability.EventBus without a conversion layer.
type Event = capability.Event

// Handler receives events of the type it subscribed to. Handlers must
// not block: they run synchronously on the publishing goroutine.
type Handler = func(Event)

// Journal is an append-only, total-ordered-by-arrival event log with
// typed subscription, matching the EventBus capability.
type Journal struct {
	mu      sync.Mutex
	entries []Event
	subs    map[string][]Handler
}

// New constructs an empty in-memory Journal.
func New() *Journal {
	return &Journal{subs: make(map[string][]Handler)}
}

// Publish appends each event to the journal under the writer lock, then
// notifies subscribers of that event's type on the appending goroutine,
// in subscription order.
func (j *Journal) Publish(events ...Event) {
	j.mu.Lock()
	for i := range events {
		if events[i].ID == "" {
			events[i].ID = uuid.NewString()
		}
		j.entries = append(j.entries, events[i])
	}
	handlers := make(map[string][]Handler, len(j.subs))
	for t, hs := range j.subs {
		handlers[t] = append([]Handler{}, hs...)
	}
	j.mu.Unlock()

	for _, evt := range events {
		for _, h := range handlers[evt.Type] {
			h(evt)
		}
	}
}

// Subscribe registers a handler invoked for every future event of the
// given type. It does not replay historical entries.
func (j *Journal) Subscribe(eventType string, handler Handler) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.subs[eventType] = append(j.subs[eventType], handler)
}

// Slice returns a read snapshot of every entry recorded so far, in
// arrival order.
func (j *Journal) Slice() []Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Event, len(j.entries))
	copy(out, j.entries)
	return out
}

// SliceSince returns a snapshot of entries recorded at or after the
// given time, in arrival order.
func (j *Journal) SliceSince(since time.Time) []Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []Event
	for _, e := range j.entries {
		if !e.OccurredAt.Before(since) {
			out = append(out, e)
		}
	}
	return out
}
