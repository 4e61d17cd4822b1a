package memory

import (
	"context"
	"sync"
	"time"

	"psephos/contexts/governance/notifications/domain/entities"
	domainerrors "psephos/contexts/governance/notifications/domain/errors"

	"github.com/google/uuid"
)

// Store is the in-memory message queue for tests and local wiring.
type Store struct {
	mu       sync.Mutex
	messages []entities.Message
	nowFunc  func() time.Time
}

func NewStore() *Store {
	return &Store{nowFunc: func() time.Time { return time.Now().UTC() }}
}

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

func (s *Store) Enqueue(_ context.Context, message entities.Message) (entities.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = s.nowFunc()
	}
	s.messages = append(s.messages, cloneMessage(message))
	return cloneMessage(message), nil
}

func (s *Store) ListPending(_ context.Context, limit int) ([]entities.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.Message
	for _, message := range s.messages {
		if message.Status != entities.StatusPending {
			continue
		}
		out = append(out, cloneMessage(message))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkSent(_ context.Context, id string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].Status = entities.StatusSent
			at := sentAt.UTC()
			s.messages[i].SentAt = &at
			return nil
		}
	}
	return domainerrors.ErrMessageNotFound
}

func (s *Store) ScrubElection(_ context.Context, electionID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.messages[:0]
	var removed int64
	for _, message := range s.messages {
		if message.ElectionID == electionID {
			removed++
			continue
		}
		kept = append(kept, message)
	}
	s.messages = kept
	return removed, nil
}

func (s *Store) ListByElection(_ context.Context, electionID int64) ([]entities.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.Message
	for _, message := range s.messages {
		if message.ElectionID == electionID {
			out = append(out, cloneMessage(message))
		}
	}
	return out, nil
}

func cloneMessage(message entities.Message) entities.Message {
	out := message
	out.Context = append([]byte(nil), message.Context...)
	if message.SentAt != nil {
		at := *message.SentAt
		out.SentAt = &at
	}
	return out
}
