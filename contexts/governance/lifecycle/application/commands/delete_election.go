package commands

import (
	"context"
	"log/slog"

	application "psephos/contexts/governance/lifecycle/application"
	"psephos/contexts/governance/lifecycle/domain/entities"
	domainerrors "psephos/contexts/governance/lifecycle/domain/errors"
	"psephos/contexts/governance/lifecycle/ports"
)

// DeleteElectionUseCase soft-deletes an election. Ballots are append-only,
// so the rows all stay; deleted is a terminal status flag, not a removal.
// Tallied elections are part of the published record and cannot be deleted.
type DeleteElectionUseCase struct {
	Elections ports.ElectionRepository
	Logger    *slog.Logger
}

func (uc DeleteElectionUseCase) DeleteElection(ctx context.Context, electionID int64) (entities.Election, error) {
	election, err := uc.Elections.Get(ctx, electionID)
	if err != nil {
		return entities.Election{}, err
	}
	if !entities.CanTransition(election.Status, entities.StatusDeleted) {
		return entities.Election{}, domainerrors.ErrIllegalTransition
	}
	deleted, err := uc.Elections.Transition(ctx, electionID, election.Status, entities.StatusDeleted, nil)
	if err != nil {
		return entities.Election{}, err
	}
	application.ResolveLogger(uc.Logger).Info("election soft-deleted",
		"event", "lifecycle_election_deleted",
		"module", "governance/lifecycle",
		"layer", "application",
		"election_id", electionID,
		"previous_status", string(election.Status),
	)
	return deleted, nil
}
