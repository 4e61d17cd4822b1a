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

// StartElectionUseCase moves a draft election to open: it snapshots the
// voting-email template, issues credentials for the resolved eligible-voter
// roll and queues one credential mail per voter. Every precondition is
// checked before the first side effect, so a failure changes nothing.
type StartElectionUseCase struct {
	Elections   ports.ElectionRepository
	Roll        ports.VoterRollProvider
	Templates   ports.TemplateSource
	Credentials ports.CredentialIssuer
	Notifier    ports.Notifier
	Audit       auditports.Appender
	Atomic      ports.Atomic
	Clock       ports.Clock
	Logger      *slog.Logger
}

func (uc StartElectionUseCase) StartElection(ctx context.Context, electionID int64) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)

	election, err := uc.Elections.Get(ctx, electionID)
	if err != nil {
		return entities.Election{}, err
	}
	if election.Status != entities.StatusDraft {
		return entities.Election{}, domainerrors.ErrIllegalTransition
	}
	if !election.End.After(election.Start) {
		return entities.Election{}, domainerrors.ErrInvalidDates
	}
	candidates, err := uc.Elections.ListCandidates(ctx, electionID)
	if err != nil {
		return entities.Election{}, err
	}
	if len(candidates) == 0 {
		return entities.Election{}, domainerrors.ErrNoCandidates
	}

	roll, err := uc.Roll.EligibleRoll(ctx, electionID, election.EligibleGroup)
	if err != nil {
		return entities.Election{}, err
	}
	snapshot, err := uc.Templates.VotingEmail(ctx)
	if err != nil {
		return entities.Election{}, err
	}

	// Issuance, mail enqueue, the status change and the audit entry share one
	// unit of work, so a failure anywhere leaves the draft untouched with no
	// credentials or queued mails behind.
	var opened entities.Election
	var issuedCount int
	err = application.Atomically(ctx, uc.Atomic, func(ctx context.Context) error {
		issued, err := uc.Credentials.IssueRoll(ctx, electionID, roll)
		if err != nil {
			return err
		}
		issuedCount = len(issued)

		emailByVoter := make(map[string]string, len(roll))
		for _, entry := range roll {
			emailByVoter[entry.VoterRef] = entry.Email
		}
		for _, credential := range issued {
			if err := uc.Notifier.EnqueueCredentialMail(ctx, ports.CredentialNotice{
				ElectionID:   electionID,
				ElectionName: election.Name,
				Recipient:    emailByVoter[credential.VoterRef],
				PublicID:     credential.PublicID,
				Weight:       credential.Weight,
				Email:        snapshot,
			}); err != nil {
				return err
			}
		}

		opened, err = uc.Elections.Transition(ctx, electionID, entities.StatusDraft, entities.StatusOpen, func(e *entities.Election) {
			e.Email = snapshot
		})
		if err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]any{
			"name":        opened.Name,
			"start":       opened.Start,
			"end":         opened.End,
			"seats":       opened.Seats,
			"candidates":  len(candidates),
			"credentials": len(issued),
		})
		if _, err := uc.Audit.Append(ctx, auditentities.Entry{
			ElectionID: electionID,
			EventType:  auditentities.EventElectionStarted,
			Public:     true,
			Payload:    payload,
			Timestamp:  uc.Clock.Now(),
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return entities.Election{}, err
	}

	logger.Info("election started",
		"event", "lifecycle_election_started",
		"module", "governance/lifecycle",
		"layer", "application",
		"election_id", electionID,
		"credentials_issued", issuedCount,
	)
	return opened, nil
}
