package commands

import (
	"context"
	"log/slog"
	"strings"

	"psephos/contexts/governance/lifecycle/domain/entities"
	domainerrors "psephos/contexts/governance/lifecycle/domain/errors"
	"psephos/contexts/governance/lifecycle/ports"

	"github.com/google/uuid"
)

// SetupUseCase covers the committee-authored election setup: the draft
// election itself, its candidates and its exclusion-group caps. All of it is
// frozen once the election starts.
type SetupUseCase struct {
	Elections ports.ElectionRepository
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (uc SetupUseCase) CreateElection(ctx context.Context, election entities.Election) (entities.Election, error) {
	if strings.TrimSpace(election.Name) == "" {
		return entities.Election{}, domainerrors.ErrNameRequired
	}
	if !election.End.After(election.Start) {
		return entities.Election{}, domainerrors.ErrInvalidDates
	}
	if election.QuorumPercent < 0 || election.QuorumPercent > 100 {
		return entities.Election{}, domainerrors.ErrInvalidQuorum
	}
	if election.Seats <= 0 {
		return entities.Election{}, domainerrors.ErrInvalidSeats
	}
	election.Status = entities.StatusDraft
	now := uc.Clock.Now()
	election.CreatedAt = now
	election.UpdatedAt = now
	return uc.Elections.Create(ctx, election)
}

func (uc SetupUseCase) AddCandidate(ctx context.Context, candidate entities.Candidate) (entities.Candidate, error) {
	election, err := uc.Elections.Get(ctx, candidate.ElectionID)
	if err != nil {
		return entities.Candidate{}, err
	}
	if election.Status != entities.StatusDraft {
		return entities.Candidate{}, domainerrors.ErrNotEditable
	}
	if candidate.TiebreakID == "" {
		candidate.TiebreakID = uuid.NewString()
	}
	return uc.Elections.AddCandidate(ctx, candidate)
}

func (uc SetupUseCase) AddExclusionGroup(ctx context.Context, group entities.ExclusionGroup) (entities.ExclusionGroup, error) {
	election, err := uc.Elections.Get(ctx, group.ElectionID)
	if err != nil {
		return entities.ExclusionGroup{}, err
	}
	if election.Status != entities.StatusDraft {
		return entities.ExclusionGroup{}, domainerrors.ErrNotEditable
	}
	candidates, err := uc.Elections.ListCandidates(ctx, group.ElectionID)
	if err != nil {
		return entities.ExclusionGroup{}, err
	}
	known := make(map[int64]bool, len(candidates))
	for _, candidate := range candidates {
		known[candidate.ID] = true
	}
	for _, id := range group.CandidateIDs {
		if !known[id] {
			return entities.ExclusionGroup{}, domainerrors.ErrCandidateNotFound
		}
	}
	return uc.Elections.AddExclusionGroup(ctx, group)
}
