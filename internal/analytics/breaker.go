package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrSinkOpen is returned by [BreakerSink.Record] while the breaker is open
// and the cooldown has not yet elapsed.
var ErrSinkOpen = errors.New("analytics: sink circuit open")

const (
	defaultMaxFailures = 5
	defaultCooldown    = 30 * time.Second
)

// BreakerSink wraps a [Sink] with a consecutive-failure circuit breaker. A
// down analytics database would otherwise cost every session event a full
// write timeout; once the breaker opens, events are dropped immediately until
// a cooldown passes and a single probe write succeeds.
//
// Dropped events remain in the per-session [Log]; only the durable mirror is
// affected. Safe for concurrent use.
type BreakerSink struct {
	inner       Sink
	maxFailures int
	cooldown    time.Duration

	mu       sync.Mutex
	failures int
	lastFail time.Time
	probing  bool
}

var _ Sink = (*BreakerSink)(nil)

// NewBreakerSink wraps inner. Zero maxFailures or cooldown selects the
// defaults (5 consecutive failures, 30s cooldown).
func NewBreakerSink(inner Sink, maxFailures int, cooldown time.Duration) *BreakerSink {
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &BreakerSink{
		inner:       inner,
		maxFailures: maxFailures,
		cooldown:    cooldown,
	}
}

// Record implements [Sink]. While open, at most one probe write is in flight
// after each cooldown; everything else returns [ErrSinkOpen] without touching
// the inner sink.
func (b *BreakerSink) Record(ctx context.Context, sessionID string, ev Event) error {
	b.mu.Lock()
	if b.failures >= b.maxFailures {
		if b.probing || time.Since(b.lastFail) < b.cooldown {
			b.mu.Unlock()
			return ErrSinkOpen
		}
		b.probing = true
	}
	b.mu.Unlock()

	err := b.inner.Record(ctx, sessionID, ev)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if err != nil {
		b.failures++
		b.lastFail = time.Now()
		if b.failures == b.maxFailures {
			slog.Warn("analytics: sink circuit opened", "consecutive_failures", b.failures)
		}
		return err
	}
	if b.failures >= b.maxFailures {
		slog.Info("analytics: sink recovered, circuit closed")
	}
	b.failures = 0
	return nil
}
