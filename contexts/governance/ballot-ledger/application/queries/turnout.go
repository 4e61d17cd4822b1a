package queries

import (
	"context"

	"psephos/contexts/governance/ballot-ledger/domain/entities"
	"psephos/contexts/governance/ballot-ledger/ports"
)

// TurnoutStatus is the quorum read model.
type TurnoutStatus struct {
	ElectionID     int64 `json:"election_id"`
	EligibleWeight int64 `json:"eligible_weight"`
	CountedWeight  int64 `json:"counted_weight"`
	QuorumPercent  int64 `json:"quorum_percent"`
	RequiredWeight int64 `json:"required_weight"`
	QuorumReached  bool  `json:"quorum_reached"`
}

type TurnoutUseCase struct {
	Ballots     ports.BallotRepository
	Credentials ports.CredentialResolver
}

func (uc TurnoutUseCase) Status(ctx context.Context, electionID, quorumPercent int64) (TurnoutStatus, error) {
	eligible, err := uc.Credentials.TotalWeight(ctx, electionID)
	if err != nil {
		return TurnoutStatus{}, err
	}
	counted, err := uc.Ballots.CountedWeight(ctx, electionID)
	if err != nil {
		return TurnoutStatus{}, err
	}
	required := entities.QuorumRequiredWeight(eligible, quorumPercent)
	return TurnoutStatus{
		ElectionID:     electionID,
		EligibleWeight: eligible,
		CountedWeight:  counted,
		QuorumPercent:  quorumPercent,
		RequiredWeight: required,
		QuorumReached:  quorumPercent > 0 && eligible > 0 && counted >= required,
	}, nil
}
