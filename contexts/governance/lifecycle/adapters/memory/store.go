package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"psephos/contexts/governance/lifecycle/domain/entities"
	domainerrors "psephos/contexts/governance/lifecycle/domain/errors"
)

// Store is the in-memory election store for tests and local wiring.
type Store struct {
	mu         sync.Mutex
	nextID     int64
	elections  map[int64]entities.Election
	candidates []entities.Candidate
	groups     []entities.ExclusionGroup
	nowFunc    func() time.Time
}

func NewStore() *Store {
	return &Store{
		elections: make(map[int64]entities.Election),
		nowFunc:   func() time.Time { return time.Now().UTC() },
	}
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

func (s *Store) Create(_ context.Context, election entities.Election) (entities.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	election.ID = s.nextID
	s.elections[election.ID] = cloneElection(election)
	return cloneElection(election), nil
}

func (s *Store) Get(_ context.Context, id int64) (entities.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	election, ok := s.elections[id]
	if !ok {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	return cloneElection(election), nil
}

func (s *Store) Transition(_ context.Context, id int64, from, to entities.Status, mutate func(*entities.Election)) (entities.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	election, ok := s.elections[id]
	if !ok {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	if election.Status != from || !entities.CanTransition(from, to) {
		return entities.Election{}, domainerrors.ErrIllegalTransition
	}
	election.Status = to
	if mutate != nil {
		mutate(&election)
	}
	election.UpdatedAt = s.nowFunc()
	s.elections[id] = cloneElection(election)
	return cloneElection(election), nil
}

func (s *Store) SetEnd(_ context.Context, id int64, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	election, ok := s.elections[id]
	if !ok {
		return domainerrors.ErrElectionNotFound
	}
	election.End = end
	election.UpdatedAt = s.nowFunc()
	s.elections[id] = election
	return nil
}

func (s *Store) FinalizeTally(_ context.Context, id int64, result json.RawMessage) (entities.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	election, ok := s.elections[id]
	if !ok {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	if election.Status != entities.StatusClosed {
		return entities.Election{}, domainerrors.ErrIllegalTransition
	}
	election.Status = entities.StatusTallied
	election.TallyResult = append([]byte(nil), result...)
	election.UpdatedAt = s.nowFunc()
	s.elections[id] = cloneElection(election)
	return cloneElection(election), nil
}

func (s *Store) SetArtifactRefs(_ context.Context, id int64, ballotsRef, auditLogRef string) (entities.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	election, ok := s.elections[id]
	if !ok {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	if election.Status != entities.StatusTallied {
		return entities.Election{}, domainerrors.ErrIllegalTransition
	}
	election.BallotsRef = ballotsRef
	election.AuditLogRef = auditLogRef
	election.UpdatedAt = s.nowFunc()
	s.elections[id] = cloneElection(election)
	return cloneElection(election), nil
}

// Atomically runs fn directly; the memory store keeps no cross-store
// transaction, it exists for tests and local wiring.
func (s *Store) Atomically(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (s *Store) ListOpenPastEnd(_ context.Context, now time.Time) ([]entities.Election, error) {
	return s.listDue(entities.StatusOpen, now), nil
}

func (s *Store) ListClosedPastEnd(_ context.Context, now time.Time) ([]entities.Election, error) {
	return s.listDue(entities.StatusClosed, now), nil
}

func (s *Store) listDue(status entities.Status, now time.Time) []entities.Election {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.Election
	for id := int64(1); id <= s.nextID; id++ {
		election, ok := s.elections[id]
		if !ok {
			continue
		}
		if election.Status == status && !now.Before(election.End) {
			out = append(out, cloneElection(election))
		}
	}
	return out
}

func (s *Store) ListActiveIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for id := int64(1); id <= s.nextID; id++ {
		election, ok := s.elections[id]
		if !ok {
			continue
		}
		if election.Status != entities.StatusDeleted {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Store) AddCandidate(_ context.Context, candidate entities.Candidate) (entities.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.elections[candidate.ElectionID]; !ok {
		return entities.Candidate{}, domainerrors.ErrElectionNotFound
	}
	candidate.ID = int64(len(s.candidates) + 1)
	s.candidates = append(s.candidates, candidate)
	return candidate, nil
}

func (s *Store) ListCandidates(_ context.Context, electionID int64) ([]entities.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.Candidate
	for _, candidate := range s.candidates {
		if candidate.ElectionID == electionID {
			out = append(out, candidate)
		}
	}
	return out, nil
}

func (s *Store) AddExclusionGroup(_ context.Context, group entities.ExclusionGroup) (entities.ExclusionGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.elections[group.ElectionID]; !ok {
		return entities.ExclusionGroup{}, domainerrors.ErrElectionNotFound
	}
	group.ID = int64(len(s.groups) + 1)
	group.CandidateIDs = append([]int64(nil), group.CandidateIDs...)
	s.groups = append(s.groups, group)
	return group, nil
}

func (s *Store) ListExclusionGroups(_ context.Context, electionID int64) ([]entities.ExclusionGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.ExclusionGroup
	for _, group := range s.groups {
		if group.ElectionID == electionID {
			clone := group
			clone.CandidateIDs = append([]int64(nil), group.CandidateIDs...)
			out = append(out, clone)
		}
	}
	return out, nil
}

func cloneElection(election entities.Election) entities.Election {
	out := election
	out.TallyResult = append([]byte(nil), election.TallyResult...)
	return out
}
