package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"psephos/contexts/governance/audit-log/domain/entities"

	"github.com/google/uuid"
)

// Store is the in-memory audit log used by tests and local wiring. It keeps
// the same at-most-once semantics the postgres adapter gets from its partial
// unique index.
type Store struct {
	mu      sync.Mutex
	entries []entities.Entry
	nowFunc func() time.Time
}

func NewStore() *Store {
	return &Store{nowFunc: func() time.Time { return time.Now().UTC() }}
}

// SetNow overrides the clock for tests.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFunc = now
}

func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowFunc()
}

func (s *Store) Append(_ context.Context, entry entities.Entry) (entities.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(entry), nil
}

func (s *Store) AppendOnce(_ context.Context, entry entities.Entry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.entries {
		if existing.ElectionID == entry.ElectionID && existing.EventType == entry.EventType {
			return false, nil
		}
	}
	s.appendLocked(entry)
	return true, nil
}

func (s *Store) appendLocked(entry entities.Entry) entities.Entry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.nowFunc()
	}
	entry.Timestamp = entry.Timestamp.UTC()
	s.entries = append(s.entries, entry)
	return entry
}

func (s *Store) ListPublic(_ context.Context, electionID int64) ([]entities.Entry, error) {
	return s.list(electionID, true), nil
}

func (s *Store) ListAll(_ context.Context, electionID int64) ([]entities.Entry, error) {
	return s.list(electionID, false), nil
}

func (s *Store) list(electionID int64, publicOnly bool) []entities.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.Entry
	for _, entry := range s.entries {
		if entry.ElectionID != electionID {
			continue
		}
		if publicOnly && !entry.Public {
			continue
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
