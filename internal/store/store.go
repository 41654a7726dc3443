// Package store is the durable append-only event log backing the
// triage pipeline and report synthesis. Two drivers share one
// contract: a human-readable JSON snapshot file (the default) and an
// embedded sqlite database for deployments that want transactional
// appends.
package store

import "time"

const (
	TypeSymptom = "symptom"
	TypeHistory = "history"
)

// Event is a single timestamped entry in the clinical log. IDs are
// strictly increasing at creation time: the next id is the tail id
// plus one, never a count, so prior deletions cannot cause collisions.
type Event struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Text      string         `json:"text"`
	Timestamp string         `json:"timestamp"`
	Extra     map[string]any `json:"extra"`
}

// Snapshot is the full store state. Insertion order is creation order.
type Snapshot struct {
	Events []Event `json:"events"`
}

type Store interface {
	// Load returns the full store state. A missing backing resource
	// yields an empty snapshot without creating anything.
	Load() (*Snapshot, error)
	// Append creates an event with the next id and the current UTC
	// timestamp and persists it.
	Append(eventType, text string, extra map[string]any) (Event, error)
	// Delete removes the event with the given id. Absent ids are a
	// no-op, not an error.
	Delete(id int64) error
	Close() error
}

func nowUTC() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000") + "Z"
}
