package commands

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"psephos/contexts/governance/credentials/adapters/memory"
	domainerrors "psephos/contexts/governance/credentials/domain/errors"
)

func newIssueUseCase() (IssueUseCase, *memory.Store) {
	store := memory.NewStore()
	return IssueUseCase{Credentials: store, Clock: store}, store
}

func TestIssueIsIdempotentPerVoter(t *testing.T) {
	uc, _ := newIssueUseCase()
	ctx := context.Background()

	first, err := uc.Issue(ctx, 1, "voter-1", 1)
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	second, err := uc.Issue(ctx, 1, "voter-1", 3)
	if err != nil {
		t.Fatalf("re-issue: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("re-issue must not create a new credential")
	}
	if second.Weight != 3 {
		t.Fatalf("re-issue must update the weight, got %d", second.Weight)
	}
	if second.PublicID != first.PublicID {
		t.Fatalf("re-issue must keep the public id")
	}
}

func TestIssuePublicIDIsOpaqueHex(t *testing.T) {
	uc, _ := newIssueUseCase()
	ctx := context.Background()

	hex32 := regexp.MustCompile(`^[0-9a-f]{32}$`)
	seen := map[string]bool{}
	for _, voter := range []string{"voter-1", "voter-2", "voter-3"} {
		credential, err := uc.Issue(ctx, 1, voter, 1)
		if err != nil {
			t.Fatalf("issue %s: %v", voter, err)
		}
		if !hex32.MatchString(credential.PublicID) {
			t.Fatalf("public id must be 32 hex chars, got %q", credential.PublicID)
		}
		if seen[credential.PublicID] {
			t.Fatalf("public ids must be unique")
		}
		seen[credential.PublicID] = true
	}
}

func TestIssueRejectsBadInput(t *testing.T) {
	uc, _ := newIssueUseCase()
	ctx := context.Background()

	if _, err := uc.Issue(ctx, 1, "  ", 1); !errors.Is(err, domainerrors.ErrVoterRefRequired) {
		t.Fatalf("blank voter: got %v", err)
	}
	if _, err := uc.Issue(ctx, 1, "voter-1", 0); !errors.Is(err, domainerrors.ErrInvalidWeight) {
		t.Fatalf("zero weight: got %v", err)
	}
}

func TestIssueRollIsAllOrNothing(t *testing.T) {
	uc, store := newIssueUseCase()
	ctx := context.Background()

	_, err := uc.IssueRoll(ctx, 1, []RollEntry{
		{VoterRef: "voter-1", Weight: 1},
		{VoterRef: "voter-2", Weight: 0},
	})
	if !errors.Is(err, domainerrors.ErrInvalidWeight) {
		t.Fatalf("expected ErrInvalidWeight, got %v", err)
	}
	issued, err := store.ListByElection(ctx, 1)
	if err != nil {
		t.Fatalf("ListByElection: %v", err)
	}
	if len(issued) != 0 {
		t.Fatalf("failed roll must leave no partial issuance, found %d", len(issued))
	}

	roll := []RollEntry{
		{VoterRef: "voter-1", Weight: 1},
		{VoterRef: "voter-2", Weight: 2},
	}
	credentials, err := uc.IssueRoll(ctx, 1, roll)
	if err != nil {
		t.Fatalf("IssueRoll: %v", err)
	}
	if len(credentials) != 2 {
		t.Fatalf("expected 2 credentials, got %d", len(credentials))
	}
}

func TestAnonymizeElectionClearsEveryVoterRef(t *testing.T) {
	uc, store := newIssueUseCase()
	ctx := context.Background()

	if _, err := uc.IssueRoll(ctx, 1, []RollEntry{
		{VoterRef: "voter-1", Weight: 1},
		{VoterRef: "voter-2", Weight: 2},
	}); err != nil {
		t.Fatalf("IssueRoll: %v", err)
	}
	if _, err := uc.Issue(ctx, 2, "voter-1", 1); err != nil {
		t.Fatalf("issue other election: %v", err)
	}

	anonymize := AnonymizeUseCase{Credentials: store}
	affected, err := anonymize.AnonymizeElection(ctx, 1)
	if err != nil {
		t.Fatalf("AnonymizeElection: %v", err)
	}
	if affected != 2 {
		t.Fatalf("expected 2 anonymized credentials, got %d", affected)
	}

	credentials, err := store.ListByElection(ctx, 1)
	if err != nil {
		t.Fatalf("ListByElection: %v", err)
	}
	for _, credential := range credentials {
		if !credential.Anonymized() {
			t.Fatalf("credential %d still carries a voter ref", credential.ID)
		}
		if credential.Weight == 0 {
			t.Fatalf("anonymization must not touch weights")
		}
	}

	// Other elections stay linked.
	other, err := store.ListByElection(ctx, 2)
	if err != nil {
		t.Fatalf("ListByElection: %v", err)
	}
	if len(other) != 1 || other[0].Anonymized() {
		t.Fatalf("anonymization must be scoped to one election")
	}
}
