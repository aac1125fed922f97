// Package postgres provides a PostgreSQL-backed analytics sink so session
// events outlive the device and can be reviewed across sessions.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/routevox/routevox/internal/analytics"
)

// Compile-time interface check.
var _ analytics.Sink = (*Sink)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS session_events (
    id          BIGSERIAL PRIMARY KEY,
    session_id  TEXT             NOT NULL,
    event_type  TEXT             NOT NULL,
    confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
    details     TEXT             NOT NULL DEFAULT '',
    recorded_at TIMESTAMPTZ      NOT NULL
);
CREATE INDEX IF NOT EXISTS session_events_session_idx
    ON session_events (session_id, recorded_at);`

// Sink appends session events to a session_events table.
// All methods are safe for concurrent use.
type Sink struct {
	pool *pgxpool.Pool
}

// Open connects to the database at dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Sink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("analytics sink: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("analytics sink: create schema: %w", err)
	}
	return &Sink{pool: pool}, nil
}

// Ping verifies database connectivity, for readiness probes.
func (s *Sink) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Record implements [analytics.Sink].
func (s *Sink) Record(ctx context.Context, sessionID string, ev analytics.Event) error {
	const q = `
		INSERT INTO session_events (session_id, event_type, confidence, details, recorded_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, q, sessionID, string(ev.Type), ev.Confidence, ev.Details, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("analytics sink: record: %w", err)
	}
	return nil
}

// SessionEvents returns all events recorded for sessionID in chronological
// order. Used by the review surface, not the session hot path.
func (s *Sink) SessionEvents(ctx context.Context, sessionID string) ([]analytics.Event, error) {
	const q = `
		SELECT event_type, confidence, details, recorded_at
		FROM   session_events
		WHERE  session_id = $1
		ORDER  BY recorded_at`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("analytics sink: session events: %w", err)
	}
	defer rows.Close()

	var events []analytics.Event
	for rows.Next() {
		var (
			ev        analytics.Event
			eventType string
		)
		if err := rows.Scan(&eventType, &ev.Confidence, &ev.Details, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("analytics sink: scan: %w", err)
		}
		ev.Type = analytics.EventType(eventType)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analytics sink: rows: %w", err)
	}
	return events, nil
}

// Close releases the connection pool.
func (s *Sink) Close() {
	s.pool.Close()
}
