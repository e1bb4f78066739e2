// Package audit records who changed the schedule, when, and why. Every
// resolve, accepted move and force-override leaves an entry; overrides
// additionally carry the written justification the caller supplied.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medrota/rotaplan/core/model"
)

// Action classifies an audit entry.
type Action string

const (
	ActionResolve  Action = "resolve"
	ActionMove     Action = "move"
	ActionOverride Action = "override"
)

// Entry is one immutable audit record.
type Entry struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	Actor         string          `json:"actor"`
	Action        Action          `json:"action"`
	TraineeID     string          `json:"trainee_id,omitempty"`
	Month         model.Month     `json:"month,omitempty"`
	Prior         model.StationID `json:"prior,omitempty"`
	Next          model.StationID `json:"next,omitempty"`
	Justification string          `json:"justification,omitempty"`
	// Outcome carries the terminal solver status or the rejection reason.
	Outcome string `json:"outcome,omitempty"`
}

// NewEntry stamps an entry with a fresh id and the current time.
func NewEntry(actor string, action Action) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Action:    action,
	}
}

// Query defines filters for retrieving entries.
type Query struct {
	Start     time.Time
	End       time.Time
	TraineeID string
	Action    Action
}

func (q Query) matches(e Entry) bool {
	if !q.Start.IsZero() && e.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && e.Timestamp.After(q.End) {
		return false
	}
	if q.TraineeID != "" && e.TraineeID != q.TraineeID {
		return false
	}
	if q.Action != "" && e.Action != q.Action {
		return false
	}
	return true
}

// Store persists entries and supports querying.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Query(ctx context.Context, q Query) ([]Entry, error)
	Close() error
}

// MemoryStore keeps entries in memory; the default when no trail path is
// configured, and what tests use.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *MemoryStore) Query(_ context.Context, q Query) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if q.matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
