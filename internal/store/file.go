package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

// FileStore persists the snapshot as an indented UTF-8 JSON file,
// fully reloaded on every read and fully rewritten on every write.
// The mutex serializes the whole load-modify-save sequence; without
// it two concurrent appends could each write back a snapshot missing
// the other's event.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) Append(eventType, text string, extra map[string]any) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return Event{}, err
	}

	var nextID int64 = 1
	if n := len(snap.Events); n > 0 {
		nextID = snap.Events[n-1].ID + 1
	}
	if extra == nil {
		extra = map[string]any{}
	}

	ev := Event{
		ID:        nextID,
		Type:      eventType,
		Text:      text,
		Timestamp: nowUTC(),
		Extra:     extra,
	}
	snap.Events = append(snap.Events, ev)

	if err := s.save(snap); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (s *FileStore) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return err
	}

	kept := snap.Events[:0]
	for _, ev := range snap.Events {
		if ev.ID != id {
			kept = append(kept, ev)
		}
	}
	snap.Events = kept

	return s.save(snap)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Snapshot{Events: []Event{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode store %s: %w", s.path, err)
	}
	if snap.Events == nil {
		snap.Events = []Event{}
	}
	return &snap, nil
}

func (s *FileStore) save(snap *Snapshot) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	// Write-then-rename keeps a crash from leaving a half-written file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}
