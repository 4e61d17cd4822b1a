package queries

import (
	"context"
	"testing"

	"psephos/contexts/governance/ballot-ledger/adapters/memory"
	"psephos/contexts/governance/ballot-ledger/domain/entities"
	"psephos/contexts/governance/ballot-ledger/ports"
)

func submitTestBallot(t *testing.T, store *memory.Store, electionID int64, credential string, ranking []int64, weight int64) {
	t.Helper()
	draft := entities.Draft{
		ElectionID:         electionID,
		CredentialPublicID: credential,
		Ranking:            ranking,
		Weight:             weight,
		Nonce:              "n-" + credential,
	}
	draft.ContentHash = entities.ContentHash(electionID, credential, ranking, weight, draft.Nonce)
	if _, err := store.Append(context.Background(), draft); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestBuildBallotsExportOnlyCountedSortedByCredential(t *testing.T) {
	store := memory.NewStore()
	submitTestBallot(t, store, 3, "zz-cred", []int64{1}, 1)
	submitTestBallot(t, store, 3, "aa-cred", []int64{2, 1}, 2)
	// Superseded: only the replacement stays counted.
	submitTestBallot(t, store, 3, "zz-cred", []int64{2}, 1)
	// Different election, must not leak in.
	submitTestBallot(t, store, 4, "other", []int64{1}, 1)

	export, err := ExportUseCase{Ballots: store}.BuildBallotsExport(context.Background(), 3)
	if err != nil {
		t.Fatalf("BuildBallotsExport: %v", err)
	}
	if export.Genesis != entities.GenesisChainHash(3) {
		t.Fatalf("export must carry the election genesis")
	}
	if len(export.Ballots) != 2 {
		t.Fatalf("expected 2 counted ballots, got %d", len(export.Ballots))
	}
	if export.Ballots[0].CredentialPublicID != "aa-cred" || export.Ballots[1].CredentialPublicID != "zz-cred" {
		t.Fatalf("export must be sorted by credential public id: %+v", export.Ballots)
	}
	if got := export.Ballots[1].Ranking; len(got) != 1 || got[0] != 2 {
		t.Fatalf("export must carry the superseding ballot's ranking, got %v", got)
	}
}

func TestBuildChainSummaryDigestsFinalHeads(t *testing.T) {
	store := memory.NewStore()
	submitTestBallot(t, store, 5, "cred-a", []int64{1}, 1)
	submitTestBallot(t, store, 5, "cred-b", []int64{2}, 1)

	before, err := ExportUseCase{Ballots: store}.BuildChainSummary(context.Background(), 5)
	if err != nil {
		t.Fatalf("BuildChainSummary: %v", err)
	}
	if before.Chains != 2 {
		t.Fatalf("chains = %d, want 2", before.Chains)
	}

	// A resubmission moves cred-a's head, so the digest must change while the
	// chain count stays.
	submitTestBallot(t, store, 5, "cred-a", []int64{2, 1}, 1)
	after, err := ExportUseCase{Ballots: store}.BuildChainSummary(context.Background(), 5)
	if err != nil {
		t.Fatalf("BuildChainSummary: %v", err)
	}
	if after.Chains != 2 {
		t.Fatalf("chains after resubmission = %d, want 2", after.Chains)
	}
	if after.HeadsDigest == before.HeadsDigest {
		t.Fatal("digest must follow the moved chain head")
	}

	// The digest is recomputable from the final rows alone.
	rows, err := store.ListByElection(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListByElection: %v", err)
	}
	var heads []string
	for _, ballot := range rows {
		if ballot.SupersededByID == nil {
			heads = append(heads, ballot.ChainHash)
		}
	}
	if got := entities.ChainHeadsDigest(heads); got != after.HeadsDigest {
		t.Fatalf("digest = %s, want %s recomputed from final heads", after.HeadsDigest, got)
	}
}

func TestTurnoutStatusQuorumMath(t *testing.T) {
	store := memory.NewStore()
	submitTestBallot(t, store, 3, "cred-a", []int64{1}, 2)

	resolver := fakeResolverTotal{total: 5}
	status, err := TurnoutUseCase{Ballots: store, Credentials: resolver}.Status(context.Background(), 3, 50)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	// ceil(5 * 50 / 100) = 3
	if status.RequiredWeight != 3 {
		t.Fatalf("required weight: got %d want 3", status.RequiredWeight)
	}
	if status.QuorumReached {
		t.Fatalf("quorum must not be reached at 2/3")
	}

	submitTestBallot(t, store, 3, "cred-b", []int64{1}, 1)
	status, err = TurnoutUseCase{Ballots: store, Credentials: resolver}.Status(context.Background(), 3, 50)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.QuorumReached {
		t.Fatalf("quorum must be reached at 3/3 required")
	}
}

func TestQuorumRequiredWeightCeiling(t *testing.T) {
	cases := []struct {
		eligible, percent, want int64
	}{
		{100, 50, 50},
		{101, 50, 51},
		{3, 34, 2},
		{3, 0, 0},
		{0, 50, 0},
		{7, 100, 7},
	}
	for _, tc := range cases {
		if got := entities.QuorumRequiredWeight(tc.eligible, tc.percent); got != tc.want {
			t.Fatalf("QuorumRequiredWeight(%d, %d) = %d, want %d", tc.eligible, tc.percent, got, tc.want)
		}
	}
}

type fakeResolverTotal struct {
	total int64
}

func (r fakeResolverTotal) Resolve(context.Context, int64, string) (ports.Credential, bool, error) {
	panic("not used")
}

func (r fakeResolverTotal) TotalWeight(context.Context, int64) (int64, error) {
	return r.total, nil
}
