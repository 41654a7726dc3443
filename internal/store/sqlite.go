package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the same contract as FileStore but makes the
// read-max-id-then-insert sequence a real transaction.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY,
		type TEXT NOT NULL,
		text TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		extra TEXT NOT NULL DEFAULT '{}'
	)`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, type, text, timestamp, extra FROM events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	snap := &Snapshot{Events: []Event{}}
	for rows.Next() {
		var ev Event
		var extraRaw string
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Text, &ev.Timestamp, &extraRaw); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(extraRaw), &ev.Extra); err != nil {
			return nil, fmt.Errorf("decode extra for event %d: %w", ev.ID, err)
		}
		if ev.Extra == nil {
			ev.Extra = map[string]any{}
		}
		snap.Events = append(snap.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return snap, nil
}

func (s *SQLiteStore) Append(eventType, text string, extra map[string]any) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if extra == nil {
		extra = map[string]any{}
	}
	extraRaw, err := json.Marshal(extra)
	if err != nil {
		return Event{}, fmt.Errorf("encode extra: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Event{}, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var nextID int64
	if err := tx.QueryRow(`SELECT COALESCE(MAX(id), 0) + 1 FROM events`).Scan(&nextID); err != nil {
		return Event{}, fmt.Errorf("next id: %w", err)
	}

	ev := Event{
		ID:        nextID,
		Type:      eventType,
		Text:      text,
		Timestamp: nowUTC(),
		Extra:     extra,
	}
	if _, err := tx.Exec(
		`INSERT INTO events (id, type, text, timestamp, extra) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.Type, ev.Text, ev.Timestamp, string(extraRaw),
	); err != nil {
		return Event{}, fmt.Errorf("insert event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Event{}, fmt.Errorf("commit append: %w", err)
	}
	return ev, nil
}

func (s *SQLiteStore) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
