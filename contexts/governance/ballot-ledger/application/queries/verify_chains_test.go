package queries

import (
	"context"
	"errors"
	"testing"

	"psephos/contexts/governance/ballot-ledger/adapters/memory"
	"psephos/contexts/governance/ballot-ledger/domain/entities"
	domainerrors "psephos/contexts/governance/ballot-ledger/domain/errors"
	"psephos/contexts/governance/ballot-ledger/ports"
)

// fakeLedger returns rows verbatim, letting tests hand the verifier a
// tampered ledger the real adapters would never produce.
type fakeLedger struct {
	rows []entities.Ballot
}

func (f fakeLedger) Append(context.Context, entities.Draft) (ports.AppendResult, error) {
	panic("not used")
}

func (f fakeLedger) CountedBallots(context.Context, int64) ([]entities.Ballot, error) {
	var out []entities.Ballot
	for _, row := range f.rows {
		if row.IsCounted {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f fakeLedger) ListByElection(context.Context, int64) ([]entities.Ballot, error) {
	return f.rows, nil
}

func (f fakeLedger) CountedWeight(context.Context, int64) (int64, error) {
	var total int64
	for _, row := range f.rows {
		if row.IsCounted {
			total += row.Weight
		}
	}
	return total, nil
}

func chainRows(electionID int64, credential string, count int) []entities.Ballot {
	prev := entities.GenesisChainHash(electionID)
	rows := make([]entities.Ballot, 0, count)
	for i := 0; i < count; i++ {
		id := int64(i + 1)
		content := entities.ContentHash(electionID, credential, []int64{id}, 1, "nonce")
		row := entities.Ballot{
			ID:                 id,
			ElectionID:         electionID,
			CredentialPublicID: credential,
			Ranking:            []int64{id},
			Weight:             1,
			ContentHash:        content,
			PreviousChainHash:  prev,
			ChainHash:          entities.ChainNextHash(prev, content),
		}
		prev = row.ChainHash
		rows = append(rows, row)
	}
	for i := 0; i < count-1; i++ {
		next := rows[i+1].ID
		rows[i].SupersededByID = &next
	}
	if count > 0 {
		rows[count-1].IsCounted = true
	}
	return rows
}

func TestVerifyChainsCleanLedger(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	for _, ranking := range [][]int64{{1}, {2, 1}} {
		draft := entities.Draft{
			ElectionID:         5,
			CredentialPublicID: "cred-a",
			Ranking:            ranking,
			Weight:             1,
			Nonce:              "n",
		}
		draft.ContentHash = entities.ContentHash(5, "cred-a", ranking, 1, "n")
		if _, err := store.Append(ctx, draft); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	uc := VerifyChainsUseCase{Ballots: store}
	report, err := uc.Verify(ctx, 5)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.BallotsWalked != 2 || report.Chains != 1 || len(report.Issues) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestVerifyChainsDetectsTamperedContent(t *testing.T) {
	rows := chainRows(5, "cred-a", 3)
	rows[1].ContentHash = "deadbeef"

	uc := VerifyChainsUseCase{Ballots: fakeLedger{rows: rows}}
	report, err := uc.Verify(context.Background(), 5)
	if !errors.Is(err, domainerrors.ErrChainMismatch) {
		t.Fatalf("expected ErrChainMismatch, got %v", err)
	}
	if len(report.Issues) == 0 {
		t.Fatalf("expected issues in the report")
	}
	if report.Issues[0].BallotID != rows[1].ID {
		t.Fatalf("issue should name the tampered row, got %+v", report.Issues[0])
	}
}

func TestVerifyChainsDetectsBrokenLinkage(t *testing.T) {
	rows := chainRows(5, "cred-a", 3)
	rows[2].PreviousChainHash = entities.GenesisChainHash(5)
	rows[2].ChainHash = entities.ChainNextHash(rows[2].PreviousChainHash, rows[2].ContentHash)

	uc := VerifyChainsUseCase{Ballots: fakeLedger{rows: rows}}
	_, err := uc.Verify(context.Background(), 5)
	if !errors.Is(err, domainerrors.ErrChainMismatch) {
		t.Fatalf("expected ErrChainMismatch, got %v", err)
	}
}

func TestVerifyChainsDetectsDoubleCounted(t *testing.T) {
	rows := chainRows(5, "cred-a", 2)
	rows[0].IsCounted = true

	uc := VerifyChainsUseCase{Ballots: fakeLedger{rows: rows}}
	report, err := uc.Verify(context.Background(), 5)
	if !errors.Is(err, domainerrors.ErrChainMismatch) {
		t.Fatalf("expected ErrChainMismatch, got %v", err)
	}
	found := false
	for _, issue := range report.Issues {
		if issue.Reason == "expected at most one counted row, found 2" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected double-counted issue, got %+v", report.Issues)
	}
}
