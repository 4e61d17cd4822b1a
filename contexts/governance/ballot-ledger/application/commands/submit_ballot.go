package commands

import (
	"context"
	"encoding/json"
	"log/slog"

	auditentities "psephos/contexts/governance/audit-log/domain/entities"
	auditports "psephos/contexts/governance/audit-log/ports"
	application "psephos/contexts/governance/ballot-ledger/application"
	"psephos/contexts/governance/ballot-ledger/domain/entities"
	domainerrors "psephos/contexts/governance/ballot-ledger/domain/errors"
	"psephos/contexts/governance/ballot-ledger/ports"
)

// SubmitBallotCommand is the write-model input for one vote.
type SubmitBallotCommand struct {
	ElectionID         int64
	CredentialPublicID string
	Ranking            []int64
}

// SubmitBallotUseCase validates a vote, appends it to the credential's chain
// and supersedes the prior final row. Validation runs before anything touches
// the ledger, so validation failures have no side effects.
type SubmitBallotUseCase struct {
	Ballots     ports.BallotRepository
	Credentials ports.CredentialResolver
	Elections   ports.ElectionGate
	Audit       auditports.Appender
	Clock       ports.Clock
	Logger      *slog.Logger
}

func (uc SubmitBallotUseCase) SubmitBallot(ctx context.Context, cmd SubmitBallotCommand) (entities.Receipt, error) {
	logger := application.ResolveLogger(uc.Logger)

	election, err := uc.Elections.VotingContext(ctx, cmd.ElectionID)
	if err != nil {
		return entities.Receipt{}, err
	}
	if election.Status != ports.ElectionStatusOpen {
		logger.Warn("ballot rejected, election not open",
			"event", "ledger_submit_rejected",
			"module", "governance/ballot-ledger",
			"layer", "application",
			"election_id", cmd.ElectionID,
			"status", election.Status,
		)
		return entities.Receipt{}, domainerrors.ErrElectionNotOpen
	}
	now := uc.Clock.Now()
	if now.Before(election.Start) || !now.Before(election.End) {
		return entities.Receipt{}, domainerrors.ErrOutsideVotingWindow
	}
	if err := validateRanking(cmd.Ranking, election.CandidateIDs); err != nil {
		return entities.Receipt{}, err
	}

	credential, found, err := uc.Credentials.Resolve(ctx, cmd.ElectionID, cmd.CredentialPublicID)
	if err != nil {
		return entities.Receipt{}, err
	}
	if !found || credential.Anonymized || credential.ElectionID != cmd.ElectionID {
		return entities.Receipt{}, domainerrors.ErrInvalidCredential
	}

	nonce, err := entities.NewNonce()
	if err != nil {
		return entities.Receipt{}, err
	}
	draft := entities.Draft{
		ElectionID:         cmd.ElectionID,
		CredentialPublicID: credential.PublicID,
		Ranking:            append([]int64(nil), cmd.Ranking...),
		Weight:             credential.Weight,
		Nonce:              nonce,
		ContentHash:        entities.ContentHash(cmd.ElectionID, credential.PublicID, cmd.Ranking, credential.Weight, nonce),
	}

	appended, err := uc.Ballots.Append(ctx, draft)
	if err != nil {
		logger.Error("ballot append failed",
			"event", "ledger_submit_append_failed",
			"module", "governance/ballot-ledger",
			"layer", "application",
			"election_id", cmd.ElectionID,
			"error", err.Error(),
		)
		return entities.Receipt{}, err
	}
	ballot := appended.Ballot

	uc.auditSubmission(ctx, appended)
	uc.checkQuorum(ctx, cmd.ElectionID, election.QuorumPercent)

	logger.Info("ballot appended",
		"event", "ledger_submit_succeeded",
		"module", "governance/ballot-ledger",
		"layer", "application",
		"election_id", cmd.ElectionID,
		"ballot_id", ballot.ID,
		"superseded", appended.Superseded != nil,
	)
	return entities.Receipt{
		BallotID:          ballot.ID,
		ContentHash:       ballot.ContentHash,
		PreviousChainHash: ballot.PreviousChainHash,
		ChainHash:         ballot.ChainHash,
		Nonce:             ballot.Nonce,
	}, nil
}

// auditSubmission records hashes only. The entry stays private and never
// carries the ranking, so the audit trail cannot leak vote content.
func (uc SubmitBallotUseCase) auditSubmission(ctx context.Context, appended ports.AppendResult) {
	payload := map[string]any{
		"ballot_id":    appended.Ballot.ID,
		"content_hash": appended.Ballot.ContentHash,
		"chain_hash":   appended.Ballot.ChainHash,
	}
	if appended.Superseded != nil {
		payload["superseded_content_hash"] = appended.Superseded.ContentHash
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if _, err := uc.Audit.Append(ctx, auditentities.Entry{
		ElectionID: appended.Ballot.ElectionID,
		EventType:  auditentities.EventBallotSubmitted,
		Public:     false,
		Payload:    raw,
		Timestamp:  uc.Clock.Now(),
	}); err != nil {
		application.ResolveLogger(uc.Logger).Error("ballot audit append failed",
			"event", "ledger_submit_audit_failed",
			"module", "governance/ballot-ledger",
			"layer", "application",
			"election_id", appended.Ballot.ElectionID,
			"error", err.Error(),
		)
	}
}

// checkQuorum appends the quorum_reached entry at most once per election.
// AppendOnce is backed by a storage uniqueness guarantee, so concurrent
// submissions crossing the threshold cannot double-append.
func (uc SubmitBallotUseCase) checkQuorum(ctx context.Context, electionID, quorumPercent int64) {
	logger := application.ResolveLogger(uc.Logger)
	if quorumPercent <= 0 {
		return
	}
	eligible, err := uc.Credentials.TotalWeight(ctx, electionID)
	if err != nil || eligible <= 0 {
		return
	}
	counted, err := uc.Ballots.CountedWeight(ctx, electionID)
	if err != nil {
		return
	}
	required := entities.QuorumRequiredWeight(eligible, quorumPercent)
	if counted < required {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"counted_weight":  counted,
		"eligible_weight": eligible,
		"quorum_percent":  quorumPercent,
	})
	if err != nil {
		return
	}
	created, err := uc.Audit.AppendOnce(ctx, auditentities.Entry{
		ElectionID: electionID,
		EventType:  auditentities.EventQuorumReached,
		Public:     true,
		Payload:    payload,
		Timestamp:  uc.Clock.Now(),
	})
	if err != nil {
		logger.Error("quorum audit append failed",
			"event", "ledger_quorum_audit_failed",
			"module", "governance/ballot-ledger",
			"layer", "application",
			"election_id", electionID,
			"error", err.Error(),
		)
		return
	}
	if created {
		logger.Info("quorum reached",
			"event", "ledger_quorum_reached",
			"module", "governance/ballot-ledger",
			"layer", "application",
			"election_id", electionID,
			"counted_weight", counted,
			"eligible_weight", eligible,
		)
	}
}

func validateRanking(ranking []int64, candidateIDs []int64) error {
	if len(ranking) == 0 {
		return domainerrors.ErrEmptyRanking
	}
	known := make(map[int64]bool, len(candidateIDs))
	for _, id := range candidateIDs {
		known[id] = true
	}
	seen := make(map[int64]bool, len(ranking))
	for _, id := range ranking {
		if !known[id] {
			return domainerrors.ErrUnknownCandidate
		}
		if seen[id] {
			return domainerrors.ErrDuplicateRanking
		}
		seen[id] = true
	}
	return nil
}
