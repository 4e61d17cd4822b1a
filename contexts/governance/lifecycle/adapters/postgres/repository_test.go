package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"psephos/contexts/governance/lifecycle/domain/entities"
	domainerrors "psephos/contexts/governance/lifecycle/domain/errors"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRepository(db, nil)
}

func createDraft(t *testing.T, repo *Repository, end time.Time) entities.Election {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	election, err := repo.Create(context.Background(), entities.Election{
		Name:          "Board 2026",
		Start:         now.Add(-time.Hour),
		End:           end,
		Seats:         2,
		QuorumPercent: 50,
		Status:        entities.StatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return election
}

func TestTransitionIsConditionalOnCurrentStatus(t *testing.T) {
	repo := newTestRepository(t)
	end := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	election := createDraft(t, repo, end)

	snapshot := entities.EmailSnapshot{Subject: "Vote", HTMLBody: "<p>vote</p>", TextBody: "vote"}
	opened, err := repo.Transition(context.Background(), election.ID, entities.StatusDraft, entities.StatusOpen, func(e *entities.Election) {
		e.Email = snapshot
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if opened.Status != entities.StatusOpen {
		t.Fatalf("status = %s, want open", opened.Status)
	}
	if opened.Email != snapshot {
		t.Fatalf("email = %+v, want snapshot applied", opened.Email)
	}

	// The row is no longer draft, so a second identical transition loses.
	if _, err := repo.Transition(context.Background(), election.ID, entities.StatusDraft, entities.StatusOpen, nil); !errors.Is(err, domainerrors.ErrIllegalTransition) {
		t.Fatalf("replayed transition: got %v, want ErrIllegalTransition", err)
	}

	// Skipping states is rejected before any read.
	if _, err := repo.Transition(context.Background(), election.ID, entities.StatusOpen, entities.StatusTallied, nil); !errors.Is(err, domainerrors.ErrIllegalTransition) {
		t.Fatalf("open->tallied: got %v, want ErrIllegalTransition", err)
	}

	if _, err := repo.Transition(context.Background(), 9999, entities.StatusDraft, entities.StatusOpen, nil); !errors.Is(err, domainerrors.ErrElectionNotFound) {
		t.Fatalf("missing election: got %v, want ErrElectionNotFound", err)
	}
}

func TestFinalizeTallyRequiresClosed(t *testing.T) {
	repo := newTestRepository(t)
	end := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	election := createDraft(t, repo, end)
	result := json.RawMessage(`{"elected":[1,2]}`)

	if _, err := repo.FinalizeTally(context.Background(), election.ID, result); !errors.Is(err, domainerrors.ErrIllegalTransition) {
		t.Fatalf("finalize draft: got %v, want ErrIllegalTransition", err)
	}
	if _, err := repo.SetArtifactRefs(context.Background(), election.ID, "b", "a"); !errors.Is(err, domainerrors.ErrIllegalTransition) {
		t.Fatalf("refs on draft: got %v, want ErrIllegalTransition", err)
	}

	if _, err := repo.Transition(context.Background(), election.ID, entities.StatusDraft, entities.StatusOpen, nil); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := repo.Transition(context.Background(), election.ID, entities.StatusOpen, entities.StatusClosed, nil); err != nil {
		t.Fatalf("close: %v", err)
	}

	tallied, err := repo.FinalizeTally(context.Background(), election.ID, result)
	if err != nil {
		t.Fatalf("FinalizeTally: %v", err)
	}
	if tallied.Status != entities.StatusTallied {
		t.Fatalf("status = %s, want tallied", tallied.Status)
	}
	if string(tallied.TallyResult) != string(result) {
		t.Fatalf("tally result = %s", tallied.TallyResult)
	}

	withRefs, err := repo.SetArtifactRefs(context.Background(), election.ID, "mem://ballots", "mem://audit")
	if err != nil {
		t.Fatalf("SetArtifactRefs: %v", err)
	}
	if withRefs.BallotsRef != "mem://ballots" || withRefs.AuditLogRef != "mem://audit" {
		t.Fatalf("refs = %q %q", withRefs.BallotsRef, withRefs.AuditLogRef)
	}

	if _, err := repo.FinalizeTally(context.Background(), election.ID, result); !errors.Is(err, domainerrors.ErrIllegalTransition) {
		t.Fatalf("second finalize: got %v, want ErrIllegalTransition", err)
	}
}

func TestListDueFiltersByStatusAndEnd(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	pastOpen := createDraft(t, repo, now.Add(-time.Minute))
	futureOpen := createDraft(t, repo, now.Add(time.Hour))
	// A past-end draft must never show up in the sweep.
	createDraft(t, repo, now.Add(-time.Minute))
	for _, id := range []int64{pastOpen.ID, futureOpen.ID} {
		if _, err := repo.Transition(context.Background(), id, entities.StatusDraft, entities.StatusOpen, nil); err != nil {
			t.Fatalf("open %d: %v", id, err)
		}
	}

	due, err := repo.ListOpenPastEnd(context.Background(), now)
	if err != nil {
		t.Fatalf("ListOpenPastEnd: %v", err)
	}
	if len(due) != 1 || due[0].ID != pastOpen.ID {
		t.Fatalf("due = %+v, want only election %d", due, pastOpen.ID)
	}

	closedDue, err := repo.ListClosedPastEnd(context.Background(), now)
	if err != nil {
		t.Fatalf("ListClosedPastEnd: %v", err)
	}
	if len(closedDue) != 0 {
		t.Fatalf("closed due = %+v, want none", closedDue)
	}
}

func TestListActiveIDsExcludesDeleted(t *testing.T) {
	repo := newTestRepository(t)
	end := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	kept := createDraft(t, repo, end)
	dropped := createDraft(t, repo, end)
	if _, err := repo.Transition(context.Background(), dropped.ID, entities.StatusDraft, entities.StatusDeleted, nil); err != nil {
		t.Fatalf("delete: %v", err)
	}

	ids, err := repo.ListActiveIDs(context.Background())
	if err != nil {
		t.Fatalf("ListActiveIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != kept.ID {
		t.Fatalf("ids = %v, want [%d]", ids, kept.ID)
	}
}

func TestExclusionGroupRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	end := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	election := createDraft(t, repo, end)

	alice, err := repo.AddCandidate(context.Background(), entities.Candidate{ElectionID: election.ID, Name: "alice", TiebreakID: "t1"})
	if err != nil {
		t.Fatalf("AddCandidate: %v", err)
	}
	bob, err := repo.AddCandidate(context.Background(), entities.Candidate{ElectionID: election.ID, Name: "bob", TiebreakID: "t2"})
	if err != nil {
		t.Fatalf("AddCandidate: %v", err)
	}

	if _, err := repo.AddExclusionGroup(context.Background(), entities.ExclusionGroup{
		ElectionID:   election.ID,
		Name:         "same household",
		MaxElected:   1,
		CandidateIDs: []int64{alice.ID, bob.ID},
	}); err != nil {
		t.Fatalf("AddExclusionGroup: %v", err)
	}

	groups, err := repo.ListExclusionGroups(context.Background(), election.ID)
	if err != nil {
		t.Fatalf("ListExclusionGroups: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("groups = %+v, want one", groups)
	}
	got := groups[0]
	if got.MaxElected != 1 || len(got.CandidateIDs) != 2 || got.CandidateIDs[0] != alice.ID || got.CandidateIDs[1] != bob.ID {
		t.Fatalf("group = %+v", got)
	}
}
