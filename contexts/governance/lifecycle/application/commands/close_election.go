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
)

// CloseElectionUseCase is the single close path. Expiry sweep and explicit
// close both land here, so credential anonymization and the notification
// scrub can never be skipped. There is deliberately no "end election now"
// shortcut anywhere else.
type CloseElectionUseCase struct {
	Elections   ports.ElectionRepository
	Credentials ports.CredentialIssuer
	Notifier    ports.Notifier
	Ballots     ports.BallotSource
	Audit       auditports.Appender
	Atomic      ports.Atomic
	Clock       ports.Clock
	Logger      *slog.Logger
}

func (uc CloseElectionUseCase) CloseElection(ctx context.Context, electionID int64) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)

	election, err := uc.Elections.Get(ctx, electionID)
	if err != nil {
		return entities.Election{}, err
	}
	if election.Status != entities.StatusOpen {
		return entities.Election{}, domainerrors.ErrIllegalTransition
	}

	// Anonymization, the scrub, the audit entries and the status change are
	// one unit of work: no reader ever sees an anonymized-but-open election,
	// and a ballot append racing the close lands either before the whole
	// close or against an already-closed election.
	now := uc.Clock.Now()
	var closed entities.Election
	var anonymized, scrubbed int64
	err = application.Atomically(ctx, uc.Atomic, func(ctx context.Context) error {
		var err error
		anonymized, err = uc.Credentials.AnonymizeElection(ctx, electionID)
		if err != nil {
			return err
		}
		scrubbed, err = uc.Notifier.ScrubElection(ctx, electionID)
		if err != nil {
			return err
		}

		anonPayload, _ := json.Marshal(map[string]any{
			"anonymized_credentials": anonymized,
			"scrubbed_notifications": scrubbed,
		})
		if _, err := uc.Audit.Append(ctx, auditentities.Entry{
			ElectionID: electionID,
			EventType:  auditentities.EventElectionAnonymized,
			Public:     false,
			Payload:    anonPayload,
			Timestamp:  now,
		}); err != nil {
			return err
		}

		closed, err = uc.Elections.Transition(ctx, electionID, entities.StatusOpen, entities.StatusClosed, func(e *entities.Election) {
			if now.Before(e.End) {
				e.End = now
			}
		})
		if err != nil {
			return err
		}

		countedWeight, err := uc.Ballots.CountedWeight(ctx, electionID)
		if err != nil {
			return err
		}
		chains, err := uc.Ballots.ChainSummary(ctx, electionID)
		if err != nil {
			return err
		}
		payload, _ := json.Marshal(map[string]any{
			"anonymized_credentials": anonymized,
			"scrubbed_notifications": scrubbed,
			"counted_weight":         countedWeight,
			"chains":                 chains.Chains,
			"chain_heads_digest":     chains.HeadsDigest,
			"end":                    closed.End,
		})
		if _, err := uc.Audit.Append(ctx, auditentities.Entry{
			ElectionID: electionID,
			EventType:  auditentities.EventElectionClosed,
			Public:     true,
			Payload:    payload,
			Timestamp:  now,
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return entities.Election{}, err
	}

	logger.Info("election closed",
		"event", "lifecycle_election_closed",
		"module", "governance/lifecycle",
		"layer", "application",
		"election_id", electionID,
		"anonymized_credentials", anonymized,
		"scrubbed_notifications", scrubbed,
	)
	return closed, nil
}
