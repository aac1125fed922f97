package analytics_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/routevox/routevox/internal/analytics"
)

func TestLog_SummaryDerivedFromEvents(t *testing.T) {
	t.Parallel()

	log := analytics.NewLog("sess-1")
	log.Append(analytics.Event{Type: analytics.EventSessionStart})
	log.Append(analytics.Event{Type: analytics.EventMatch, Confidence: 0.9})
	log.Append(analytics.Event{Type: analytics.EventLoaded, Details: "333 Fleming Road"})
	log.Append(analytics.Event{Type: analytics.EventMatch, Confidence: 0.7})
	log.Append(analytics.Event{Type: analytics.EventFailed, Details: "no match"})
	log.Append(analytics.Event{Type: analytics.EventUndo})
	log.Append(analytics.Event{Type: analytics.EventCancelled})

	got := log.Summary()
	want := analytics.Summary{
		Loaded:         1,
		Failed:         1,
		Undo:           1,
		Matches:        2,
		MeanConfidence: 0.8,
	}
	if got != want {
		t.Errorf("Summary()=%+v, want %+v", got, want)
	}
}

func TestLog_EmptySummary(t *testing.T) {
	t.Parallel()

	got := analytics.NewLog("sess-1").Summary()
	if got != (analytics.Summary{}) {
		t.Errorf("Summary() on empty log=%+v, want zero value", got)
	}
}

func TestLog_EventsSnapshot(t *testing.T) {
	t.Parallel()

	log := analytics.NewLog("sess-1")
	log.Append(analytics.Event{Type: analytics.EventLoaded})

	events := log.Events()
	if len(events) != 1 {
		t.Fatalf("len(Events())=%d, want 1", len(events))
	}
	if events[0].Timestamp.IsZero() {
		t.Error("appended event has zero timestamp")
	}

	// The snapshot is a copy.
	events[0].Type = analytics.EventFailed
	if log.Events()[0].Type != analytics.EventLoaded {
		t.Error("mutating the snapshot changed the log")
	}
}

type recordingSink struct {
	mu       sync.Mutex
	sessions []string
	events   []analytics.Event
	done     chan struct{}
}

func newRecordingSink(n int) *recordingSink {
	return &recordingSink{done: make(chan struct{}, n)}
}

func (s *recordingSink) Record(_ context.Context, sessionID string, ev analytics.Event) error {
	s.mu.Lock()
	s.sessions = append(s.sessions, sessionID)
	s.events = append(s.events, ev)
	s.mu.Unlock()
	s.done <- struct{}{}
	return nil
}

func TestLog_SinkReceivesEvents(t *testing.T) {
	t.Parallel()

	sink := newRecordingSink(2)
	log := analytics.NewLog("sess-9", analytics.WithSink(sink))
	log.Append(analytics.Event{Type: analytics.EventMatch, Confidence: 0.95})
	log.Append(analytics.Event{Type: analytics.EventLoaded})

	for range 2 {
		select {
		case <-sink.done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for sink writes")
		}
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 2 {
		t.Fatalf("sink received %d events, want 2", len(sink.events))
	}
	for _, id := range sink.sessions {
		if id != "sess-9" {
			t.Errorf("sink session id=%q, want %q", id, "sess-9")
		}
	}
}
