package journal

import (
	"testing"
	"time"
)

func TestPublishAssignsIDAndNotifiesSubscribers(t *testing.T) {
	j := New()
	var got []Event
	j.Subscribe("DriftDetected", func(e Event) {
		got = append(got, e)
	})

	j.Publish(Event{Type: "DriftDetected", AggregateID: "node-1", OccurredAt: time.Now()})

	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	if got[0].ID == "" {
		t.Fatalf("expected event to be assigned an id")
	}
	if got[0].AggregateID != "node-1" {
		t.Fatalf("unexpected aggregate id %q", got[0].AggregateID)
	}
}

func TestSubscribeDoesNotReplayHistory(t *testing.T) {
	j := New()
	j.Publish(Event{Type: "Started", OccurredAt: time.Now()})

	var got []Event
	j.Subscribe("Started", func(e Event) { got = append(got, e) })

	if len(got) != 0 {
		t.Fatalf("expected no replay, got %d events", len(got))
	}
}

func TestSliceIsTotalOrderedByArrival(t *testing.T) {
	j := New()
	j.Publish(Event{Type: "A", OccurredAt: time.Now()})
	j.Publish(Event{Type: "B", OccurredAt: time.Now()})
	j.Publish(Event{Type: "C", OccurredAt: time.Now()})

	entries := j.Slice()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	types := []string{entries[0].Type, entries[1].Type, entries[2].Type}
	want := []string{"A", "B", "C"}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("entry %d: got %s, want %s", i, types[i], want[i])
		}
	}
}

func TestSliceSinceFiltersByOccurredAt(t *testing.T) {
	j := New()
	past := time.Now().Add(-time.Hour)
	j.Publish(Event{Type: "Old", OccurredAt: past})

	cutoff := time.Now()
	j.Publish(Event{Type: "New", OccurredAt: cutoff.Add(time.Second)})

	entries := j.SliceSince(cutoff)
	if len(entries) != 1 || entries[0].Type != "New" {
		t.Fatalf("expected only the New event, got %+v", entries)
	}
}

func TestHandlersRunSynchronouslyOnPublish(t *testing.T) {
	j := New()
	var order []string
	j.Subscribe("X", func(e Event) { order = append(order, "handler") })
	j.Publish(Event{Type: "X", OccurredAt: time.Now()})
	order = append(order, "after-publish")

	if len(order) != 2 || order[0] != "handler" || order[1] != "after-publish" {
		t.Fatalf("unexpected execution order: %v", order)
	}
}
