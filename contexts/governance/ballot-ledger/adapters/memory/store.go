package memory

import (
	"context"
	"sync"
	"time"

	"psephos/contexts/governance/ballot-ledger/domain/entities"
	"psephos/contexts/governance/ballot-ledger/ports"
)

// Store is the in-memory ledger used by tests and local wiring. The single
// mutex gives the same per-credential serialization the postgres adapter gets
// from row locks. There is deliberately no delete or general update API.
type Store struct {
	mu      sync.Mutex
	nextID  int64
	ballots []entities.Ballot
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

func (s *Store) Append(_ context.Context, draft entities.Draft) (ports.AppendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevIdx := -1
	for i := len(s.ballots) - 1; i >= 0; i-- {
		if s.ballots[i].ElectionID == draft.ElectionID &&
			s.ballots[i].CredentialPublicID == draft.CredentialPublicID {
			prevIdx = i
			break
		}
	}
	previousChainHash := entities.GenesisChainHash(draft.ElectionID)
	if prevIdx >= 0 {
		previousChainHash = s.ballots[prevIdx].ChainHash
	}

	s.nextID++
	ballot := entities.Ballot{
		ID:                 s.nextID,
		ElectionID:         draft.ElectionID,
		CredentialPublicID: draft.CredentialPublicID,
		Ranking:            append([]int64(nil), draft.Ranking...),
		Weight:             draft.Weight,
		Nonce:              draft.Nonce,
		ContentHash:        draft.ContentHash,
		PreviousChainHash:  previousChainHash,
		ChainHash:          entities.ChainNextHash(previousChainHash, draft.ContentHash),
		IsCounted:          true,
		CreatedAt:          s.nowFunc(),
	}
	s.ballots = append(s.ballots, ballot)

	result := ports.AppendResult{Ballot: cloneBallot(ballot)}
	if prevIdx >= 0 {
		id := ballot.ID
		s.ballots[prevIdx].SupersededByID = &id
		s.ballots[prevIdx].IsCounted = false
		superseded := cloneBallot(s.ballots[prevIdx])
		result.Superseded = &superseded
	}
	return result, nil
}

func (s *Store) CountedBallots(_ context.Context, electionID int64) ([]entities.Ballot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.Ballot
	for _, ballot := range s.ballots {
		if ballot.ElectionID == electionID && ballot.IsCounted {
			out = append(out, cloneBallot(ballot))
		}
	}
	return out, nil
}

func (s *Store) ListByElection(_ context.Context, electionID int64) ([]entities.Ballot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.Ballot
	for _, ballot := range s.ballots {
		if ballot.ElectionID == electionID {
			out = append(out, cloneBallot(ballot))
		}
	}
	return out, nil
}

func (s *Store) CountedWeight(_ context.Context, electionID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, ballot := range s.ballots {
		if ballot.ElectionID == electionID && ballot.IsCounted {
			total += ballot.Weight
		}
	}
	return total, nil
}

func cloneBallot(ballot entities.Ballot) entities.Ballot {
	out := ballot
	out.Ranking = append([]int64(nil), ballot.Ranking...)
	if ballot.SupersededByID != nil {
		id := *ballot.SupersededByID
		out.SupersededByID = &id
	}
	return out
}
