package queries

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	auditentities "psephos/contexts/governance/audit-log/domain/entities"
	auditports "psephos/contexts/governance/audit-log/ports"
	application "psephos/contexts/governance/ballot-ledger/application"
	"psephos/contexts/governance/ballot-ledger/domain/entities"
	domainerrors "psephos/contexts/governance/ballot-ledger/domain/errors"
	"psephos/contexts/governance/ballot-ledger/ports"
)

// ChainIssue describes one detected inconsistency.
type ChainIssue struct {
	CredentialPublicID string `json:"credential_public_id"`
	BallotID           int64  `json:"ballot_id,omitempty"`
	Reason             string `json:"reason"`
}

// ChainReport summarizes one re-walk of an election's ledger.
type ChainReport struct {
	ElectionID    int64        `json:"election_id"`
	BallotsWalked int          `json:"ballots_walked"`
	Chains        int          `json:"chains"`
	Issues        []ChainIssue `json:"issues,omitempty"`
}

// VerifyChainsUseCase re-walks every credential's chain against recomputed
// hashes and the per-credential uniqueness invariants. It detects out-of-band
// tampering the storage guards could not intercept.
type VerifyChainsUseCase struct {
	Ballots ports.BallotRepository
	Audit   auditports.Appender
	Logger  *slog.Logger
}

func (uc VerifyChainsUseCase) Verify(ctx context.Context, electionID int64) (ChainReport, error) {
	rows, err := uc.Ballots.ListByElection(ctx, electionID)
	if err != nil {
		return ChainReport{}, err
	}

	chains := make(map[string][]entities.Ballot)
	order := make([]string, 0)
	for _, row := range rows {
		if _, seen := chains[row.CredentialPublicID]; !seen {
			order = append(order, row.CredentialPublicID)
		}
		chains[row.CredentialPublicID] = append(chains[row.CredentialPublicID], row)
	}
	sort.Strings(order)

	report := ChainReport{ElectionID: electionID, BallotsWalked: len(rows), Chains: len(order)}
	genesis := entities.GenesisChainHash(electionID)
	for _, credential := range order {
		report.Issues = append(report.Issues, walkChain(credential, genesis, chains[credential])...)
	}

	uc.auditVerification(ctx, report)
	if len(report.Issues) > 0 {
		application.ResolveLogger(uc.Logger).Error("chain verification found inconsistencies",
			"event", "ledger_chain_verify_failed",
			"module", "governance/ballot-ledger",
			"layer", "application",
			"election_id", electionID,
			"issues", len(report.Issues),
		)
		return report, domainerrors.ErrChainMismatch
	}
	return report, nil
}

// walkChain checks linkage, hash recomputation, pointer direction and the
// one-final/one-counted invariants for a single credential. Rows arrive in id
// order, which is chain order within a credential.
func walkChain(credential, genesis string, rows []entities.Ballot) []ChainIssue {
	var issues []ChainIssue
	prev := genesis
	finals, counted := 0, 0
	for i, row := range rows {
		if row.PreviousChainHash != prev {
			issues = append(issues, ChainIssue{
				CredentialPublicID: credential,
				BallotID:           row.ID,
				Reason:             "previous chain hash does not match the prior row",
			})
		}
		if entities.ChainNextHash(row.PreviousChainHash, row.ContentHash) != row.ChainHash {
			issues = append(issues, ChainIssue{
				CredentialPublicID: credential,
				BallotID:           row.ID,
				Reason:             "chain hash does not match recomputation",
			})
		}
		switch {
		case row.SupersededByID == nil:
			finals++
			if i != len(rows)-1 {
				issues = append(issues, ChainIssue{
					CredentialPublicID: credential,
					BallotID:           row.ID,
					Reason:             "non-latest row has no supersession pointer",
				})
			}
		case *row.SupersededByID <= row.ID:
			issues = append(issues, ChainIssue{
				CredentialPublicID: credential,
				BallotID:           row.ID,
				Reason:             "supersession pointer does not reference a later row",
			})
		}
		if row.IsCounted {
			counted++
		}
		prev = row.ChainHash
	}
	if finals != 1 {
		issues = append(issues, ChainIssue{
			CredentialPublicID: credential,
			Reason:             fmt.Sprintf("expected exactly one final row, found %d", finals),
		})
	}
	if counted > 1 {
		issues = append(issues, ChainIssue{
			CredentialPublicID: credential,
			Reason:             fmt.Sprintf("expected at most one counted row, found %d", counted),
		})
	}
	return issues
}

func (uc VerifyChainsUseCase) auditVerification(ctx context.Context, report ChainReport) {
	if uc.Audit == nil {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return
	}
	if _, err := uc.Audit.Append(ctx, auditentities.Entry{
		ElectionID: report.ElectionID,
		EventType:  auditentities.EventChainVerified,
		Public:     false,
		Payload:    payload,
	}); err != nil {
		application.ResolveLogger(uc.Logger).Error("chain verification audit append failed",
			"event", "ledger_chain_verify_audit_failed",
			"module", "governance/ballot-ledger",
			"layer", "application",
			"election_id", report.ElectionID,
			"error", err.Error(),
		)
	}
}
