package commands

import (
	"context"
	"encoding/json"
	"log/slog"

	auditentities "psephos/contexts/governance/audit-log/domain/entities"
	auditports "psephos/contexts/governance/audit-log/ports"
	application "psephos/contexts/governance/lifecycle/application"
	"psephos/contexts/governance/lifecycle/domain/entities"
	domainerrors "psephos/contexts/governance/lifecycle/domain/errors"
	"psephos/contexts/governance/lifecycle/ports"
	"psephos/contexts/governance/meek-tally/domain/meek"
)

// TallySummary is the stable result structure stored on the election and
// handed to report rendering.
type TallySummary struct {
	Elected        []int64 `json:"elected"`
	LastEliminated *int64  `json:"last_eliminated,omitempty"`
	ForcedExcluded []int64 `json:"forced_excluded,omitempty"`
	Quota          string  `json:"quota"`
	Seats          int64   `json:"seats"`
	Rounds         int     `json:"rounds"`
}

// TallyElectionUseCase runs the tally engine over the counted ledger and
// publishes the result. A convergence failure leaves the election closed and
// nothing persisted; it needs investigation, not a retry loop.
type TallyElectionUseCase struct {
	Elections ports.ElectionRepository
	Ballots   ports.BallotSource
	Publisher ports.ArtifactPublisher
	Audit     auditports.Appender
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (uc TallyElectionUseCase) TallyElection(ctx context.Context, electionID int64) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)

	election, err := uc.Elections.Get(ctx, electionID)
	if err != nil {
		return entities.Election{}, err
	}
	switch {
	case election.Status == entities.StatusClosed:
	case election.Status == entities.StatusTallied && (election.BallotsRef == "" || election.AuditLogRef == ""):
		// A previous run won the transition and wrote the audit trail but
		// failed to publish. Resume with the publish step only.
		return uc.publishArtifacts(ctx, electionID)
	default:
		return entities.Election{}, domainerrors.ErrIllegalTransition
	}

	candidates, err := uc.Elections.ListCandidates(ctx, electionID)
	if err != nil {
		return entities.Election{}, err
	}
	groups, err := uc.Elections.ListExclusionGroups(ctx, electionID)
	if err != nil {
		return entities.Election{}, err
	}
	ballots, err := uc.Ballots.CountedBallots(ctx, electionID)
	if err != nil {
		return entities.Election{}, err
	}

	input := meek.Input{
		Ballots:    ballots,
		Candidates: make([]meek.Candidate, 0, len(candidates)),
		Seats:      int(election.Seats),
	}
	for _, candidate := range candidates {
		input.Candidates = append(input.Candidates, meek.Candidate{
			ID:         candidate.ID,
			TiebreakID: candidate.TiebreakID,
		})
	}
	for _, group := range groups {
		input.ExclusionGroups = append(input.ExclusionGroups, meek.ExclusionGroup{
			Name:         group.Name,
			MaxElected:   int(group.MaxElected),
			CandidateIDs: group.CandidateIDs,
		})
	}

	result, err := meek.Tally(input)
	if err != nil {
		logger.Error("tally computation failed",
			"event", "lifecycle_tally_failed",
			"module", "governance/lifecycle",
			"layer", "application",
			"election_id", electionID,
			"error", err.Error(),
		)
		return entities.Election{}, err
	}

	summary := TallySummary{
		Elected:        result.Elected,
		ForcedExcluded: result.ForcedExcluded,
		Quota:          result.Quota.String(),
		Seats:          election.Seats,
		Rounds:         len(result.Rounds),
	}
	if last, ok := result.LastEliminated(); ok {
		summary.LastEliminated = &last
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return entities.Election{}, err
	}

	// Winning the closed-to-tallied transition gates the audit trail: a retry
	// or a racing second sweeper loses here with ErrIllegalTransition and
	// never double-appends the round entries.
	if _, err := uc.Elections.FinalizeTally(ctx, electionID, summaryJSON); err != nil {
		return entities.Election{}, err
	}

	uc.auditRounds(ctx, electionID, result)

	completedPayload, _ := json.Marshal(summary)
	if _, err := uc.Audit.Append(ctx, auditentities.Entry{
		ElectionID: electionID,
		EventType:  auditentities.EventTallyCompleted,
		Public:     true,
		Payload:    completedPayload,
		Timestamp:  uc.Clock.Now(),
	}); err != nil {
		logger.Error("tally audit append failed",
			"event", "lifecycle_tally_audit_failed",
			"module", "governance/lifecycle",
			"layer", "application",
			"election_id", electionID,
			"error", err.Error(),
		)
	}

	// Publish after all audit entries so the exported public log is complete.
	tallied, err := uc.publishArtifacts(ctx, electionID)
	if err != nil {
		return entities.Election{}, err
	}

	logger.Info("election tallied",
		"event", "lifecycle_election_tallied",
		"module", "governance/lifecycle",
		"layer", "application",
		"election_id", electionID,
		"elected", len(result.Elected),
		"rounds", len(result.Rounds),
	)
	return tallied, nil
}

// publishArtifacts writes the public artifacts and records their refs on the
// tallied election.
func (uc TallyElectionUseCase) publishArtifacts(ctx context.Context, electionID int64) (entities.Election, error) {
	ballotsRef, auditLogRef, err := uc.Publisher.Publish(ctx, electionID)
	if err != nil {
		return entities.Election{}, err
	}
	return uc.Elections.SetArtifactRefs(ctx, electionID, ballotsRef, auditLogRef)
}

// auditRounds appends one public tally_round entry per round, carrying the
// full per-candidate trail so a third party can recompute the result.
func (uc TallyElectionUseCase) auditRounds(ctx context.Context, electionID int64, result meek.Result) {
	logger := application.ResolveLogger(uc.Logger)
	for _, round := range result.Rounds {
		payload, err := json.Marshal(round)
		if err != nil {
			continue
		}
		if _, err := uc.Audit.Append(ctx, auditentities.Entry{
			ElectionID: electionID,
			EventType:  auditentities.EventTallyRound,
			Public:     true,
			Payload:    payload,
			Timestamp:  uc.Clock.Now(),
		}); err != nil {
			logger.Error("tally round audit append failed",
				"event", "lifecycle_tally_round_audit_failed",
				"module", "governance/lifecycle",
				"layer", "application",
				"election_id", electionID,
				"round", round.Number,
				"error", err.Error(),
			)
		}
	}
}
