// Package analytics records voice-session events for end-of-session review.
// The log is append-only: past entries are never mutated, and every summary
// figure is derived from the log alone so counts can never drift from the
// events that produced them.
package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventType classifies a session event.
type EventType string

const (
	// EventSessionStart marks the session entering listening for the first time.
	EventSessionStart EventType = "session_start"

	// EventMatch records a prediction that resolved to a stop. Carries the
	// prediction confidence.
	EventMatch EventType = "match"

	// EventLoaded records a committed package.
	EventLoaded EventType = "loaded"

	// EventFailed records a no-match, an ambiguous result the driver
	// abandoned, or a commit that aborted on a stale stop reference.
	EventFailed EventType = "failed"

	// EventUndo records a voice-initiated removal of the last package.
	EventUndo EventType = "undo"

	// EventCancelled records an aborted confirmation countdown.
	EventCancelled EventType = "cancelled"
)

// Event is one append-only log entry.
type Event struct {
	Type      EventType
	Timestamp time.Time

	// Confidence is meaningful only for EventMatch entries.
	Confidence float64

	// Details is free-form context (transcript text, stop address, error).
	Details string
}

// Summary is derived from the event log on demand.
type Summary struct {
	// Loaded is the number of committed packages.
	Loaded int

	// Failed is the number of failed resolutions and aborted commits.
	Failed int

	// Undo is the number of voice undo operations.
	Undo int

	// Matches is the number of match events.
	Matches int

	// MeanConfidence is the average confidence across match events.
	// Zero when no matches were recorded.
	MeanConfidence float64
}

// Sink receives a copy of every appended event, for durable cross-session
// storage. Sink failures must never affect the active session; the log
// records fire-and-forget and logs errors.
type Sink interface {
	Record(ctx context.Context, sessionID string, ev Event) error
}

// Option configures a [Log].
type Option func(*Log)

// WithSink mirrors appended events into a durable sink.
func WithSink(sink Sink) Option {
	return func(l *Log) {
		l.sink = sink
	}
}

// sinkTimeout bounds each fire-and-forget sink write.
const sinkTimeout = 5 * time.Second

// Log is the append-only session event log. Safe for concurrent use.
type Log struct {
	sessionID string
	sink      Sink

	mu     sync.Mutex
	events []Event
}

// NewLog creates an empty Log for the given session.
func NewLog(sessionID string, opts ...Option) *Log {
	l := &Log{sessionID: sessionID}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Append records an event with the current timestamp. When a sink is
// configured the event is mirrored asynchronously; a failed mirror is logged
// and otherwise ignored.
func (l *Log) Append(ev Event) {
	ev.Timestamp = time.Now().UTC()

	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()

	if l.sink != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			defer cancel()
			if err := l.sink.Record(ctx, l.sessionID, ev); err != nil {
				slog.Warn("analytics: sink write failed", "session_id", l.sessionID, "type", ev.Type, "err", err)
			}
		}()
	}
}

// Events returns a snapshot copy of the log in append order.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Summary derives the session summary purely from the log.
func (l *Log) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	var s Summary
	var confidenceSum float64
	for _, ev := range l.events {
		switch ev.Type {
		case EventLoaded:
			s.Loaded++
		case EventFailed:
			s.Failed++
		case EventUndo:
			s.Undo++
		case EventMatch:
			s.Matches++
			confidenceSum += ev.Confidence
		}
	}
	if s.Matches > 0 {
		s.MeanConfidence = confidenceSum / float64(s.Matches)
	}
	return s
}
