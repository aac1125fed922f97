// Package aliasdb provides durable storage for taught utterance → stop
// mappings. The primary implementation is a local SQLite file so that learned
// corrections survive app restarts without any external service; an in-memory
// implementation backs tests and alias-less operation.
package aliasdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/routevox/routevox/internal/brain"
)

// Compile-time interface check.
var _ brain.AliasStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS aliases (
    key     TEXT PRIMARY KEY,
    stop_id TEXT NOT NULL
);`

// SQLiteStore is a [brain.AliasStore] backed by a local SQLite file. The full
// alias set is loaded into memory at construction, best-effort: a load
// failure leaves the store empty and logged rather than failing the caller.
// Gets are served from memory; Sets write through to the file.
// All methods are safe for concurrent use.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.RWMutex
	aliases map[string]string
}

// OpenSQLite opens (creating if needed) the alias database at path.
// The parent directory is created when missing.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("aliasdb: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("aliasdb: open %q: %w", path, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("aliasdb: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("aliasdb: create schema: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		aliases: make(map[string]string),
	}
	s.load()
	return s, nil
}

// load reads all aliases into memory. Best-effort: failures are logged and
// the store degrades to "no learned aliases".
func (s *SQLiteStore) load() {
	rows, err := s.db.Query(`SELECT key, stop_id FROM aliases`)
	if err != nil {
		slog.Warn("aliasdb: load failed, starting with no aliases", "err", err)
		return
	}
	defer rows.Close()

	loaded := make(map[string]string)
	for rows.Next() {
		var key, stopID string
		if err := rows.Scan(&key, &stopID); err != nil {
			slog.Warn("aliasdb: scan failed, starting with no aliases", "err", err)
			return
		}
		loaded[key] = stopID
	}
	if err := rows.Err(); err != nil {
		slog.Warn("aliasdb: load failed, starting with no aliases", "err", err)
		return
	}

	s.mu.Lock()
	s.aliases = loaded
	s.mu.Unlock()
	slog.Debug("aliasdb: aliases loaded", "count", len(loaded))
}

// Get implements [brain.AliasStore]. Lookups are exact-match on the cleaned
// utterance text and served from memory.
func (s *SQLiteStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stopID, ok := s.aliases[key]
	return stopID, ok
}

// Set implements [brain.AliasStore]. The in-memory map is updated first so a
// failed file write still improves the running session; the error is returned
// for the caller to log.
func (s *SQLiteStore) Set(ctx context.Context, key, stopID string) error {
	s.mu.Lock()
	s.aliases[key] = stopID
	s.mu.Unlock()

	const q = `
		INSERT INTO aliases (key, stop_id) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET stop_id = excluded.stop_id`
	if _, err := s.db.ExecContext(ctx, q, key, stopID); err != nil {
		return fmt.Errorf("aliasdb: set %q: %w", key, err)
	}
	return nil
}

// Ping verifies the database file is still reachable, for readiness probes.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Len returns the number of aliases currently held in memory.
func (s *SQLiteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.aliases)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
