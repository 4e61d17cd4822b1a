package memory

import (
	"context"
	"sync"
	"time"

	"psephos/contexts/governance/credentials/domain/entities"
	domainerrors "psephos/contexts/governance/credentials/domain/errors"
	"psephos/contexts/governance/credentials/ports"
)

// Store is the in-memory credential store for tests and local wiring.
type Store struct {
	mu          sync.Mutex
	nextID      int64
	credentials []entities.Credential
	nowFunc     func() time.Time
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

func (s *Store) Create(_ context.Context, credential entities.Credential) (entities.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.credentials {
		if existing.ElectionID == credential.ElectionID {
			if existing.PublicID == credential.PublicID {
				return entities.Credential{}, domainerrors.ErrConflict
			}
			if existing.VoterRef != nil && credential.VoterRef != nil && *existing.VoterRef == *credential.VoterRef {
				return entities.Credential{}, domainerrors.ErrConflict
			}
		}
	}
	s.nextID++
	credential.ID = s.nextID
	s.credentials = append(s.credentials, cloneCredential(credential))
	return cloneCredential(credential), nil
}

func (s *Store) GetByVoter(_ context.Context, electionID int64, voterRef string) (entities.Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, credential := range s.credentials {
		if credential.ElectionID == electionID && credential.VoterRef != nil && *credential.VoterRef == voterRef {
			return cloneCredential(credential), true, nil
		}
	}
	return entities.Credential{}, false, nil
}

func (s *Store) GetByPublicID(_ context.Context, electionID int64, publicID string) (entities.Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, credential := range s.credentials {
		if credential.ElectionID == electionID && credential.PublicID == publicID {
			return cloneCredential(credential), true, nil
		}
	}
	return entities.Credential{}, false, nil
}

func (s *Store) UpdateWeight(_ context.Context, id int64, weight int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.credentials {
		if s.credentials[i].ID == id {
			s.credentials[i].Weight = weight
			s.credentials[i].UpdatedAt = s.nowFunc()
			return nil
		}
	}
	return domainerrors.ErrCredentialNotFound
}

func (s *Store) AnonymizeElection(_ context.Context, electionID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for i := range s.credentials {
		if s.credentials[i].ElectionID == electionID && s.credentials[i].VoterRef != nil {
			s.credentials[i].VoterRef = nil
			s.credentials[i].UpdatedAt = s.nowFunc()
			affected++
		}
	}
	return affected, nil
}

func (s *Store) TotalWeight(_ context.Context, electionID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, credential := range s.credentials {
		if credential.ElectionID == electionID {
			total += credential.Weight
		}
	}
	return total, nil
}

func (s *Store) ListByElection(_ context.Context, electionID int64) ([]entities.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.Credential
	for _, credential := range s.credentials {
		if credential.ElectionID == electionID {
			out = append(out, cloneCredential(credential))
		}
	}
	return out, nil
}

// Transact snapshots the store and restores it when fn fails, giving the
// same all-or-nothing behavior the postgres adapter gets from a transaction.
func (s *Store) Transact(_ context.Context, fn func(repo ports.CredentialRepository) error) error {
	s.mu.Lock()
	snapshot := make([]entities.Credential, len(s.credentials))
	for i, credential := range s.credentials {
		snapshot[i] = cloneCredential(credential)
	}
	nextID := s.nextID
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.credentials = snapshot
		s.nextID = nextID
		s.mu.Unlock()
		return err
	}
	return nil
}

func cloneCredential(credential entities.Credential) entities.Credential {
	out := credential
	if credential.VoterRef != nil {
		ref := *credential.VoterRef
		out.VoterRef = &ref
	}
	return out
}
