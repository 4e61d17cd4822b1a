package postgresadapter

import (
	"context"
	"errors"
	"testing"

	"psephos/contexts/governance/ballot-ledger/domain/entities"
	domainerrors "psephos/contexts/governance/ballot-ledger/domain/errors"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) (*Repository, *gorm.DB) {
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
	if err := RegisterGuards(db); err != nil {
		t.Fatalf("register guards: %v", err)
	}
	return NewRepository(db, nil), db
}

func appendBallot(t *testing.T, repo *Repository, electionID int64, credential string, ranking []int64) entities.Ballot {
	t.Helper()
	draft := entities.Draft{
		ElectionID:         electionID,
		CredentialPublicID: credential,
		Ranking:            ranking,
		Weight:             1,
		Nonce:              "n",
	}
	draft.ContentHash = entities.ContentHash(electionID, credential, ranking, 1, "n")
	result, err := repo.Append(context.Background(), draft)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	return result.Ballot
}

func TestAppendChainsAndSupersedes(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	first := appendBallot(t, repo, 1, "cred-a", []int64{10})
	if first.PreviousChainHash != entities.GenesisChainHash(1) {
		t.Fatalf("first ballot must chain from genesis")
	}
	second := appendBallot(t, repo, 1, "cred-a", []int64{11})
	if second.PreviousChainHash != first.ChainHash {
		t.Fatalf("second ballot must chain from the first")
	}

	rows, err := repo.ListByElection(ctx, 1)
	if err != nil {
		t.Fatalf("ListByElection: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].SupersededByID == nil || *rows[0].SupersededByID != second.ID {
		t.Fatalf("first row must point at the second")
	}
	if rows[0].IsCounted || !rows[1].IsCounted {
		t.Fatalf("only the latest row may be counted")
	}

	counted, err := repo.CountedBallots(ctx, 1)
	if err != nil {
		t.Fatalf("CountedBallots: %v", err)
	}
	if len(counted) != 1 || counted[0].ID != second.ID {
		t.Fatalf("counted set must contain only the superseding row")
	}

	weight, err := repo.CountedWeight(ctx, 1)
	if err != nil {
		t.Fatalf("CountedWeight: %v", err)
	}
	if weight != 1 {
		t.Fatalf("counted weight: got %d want 1", weight)
	}
}

// Every resubmission must survive the partial unique indexes: at each
// statement boundary at most one final and one counted row may exist per
// (election, credential), so the flip order inside Append matters.
func TestRepeatedResubmissionKeepsOneFinalRow(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()

	var last entities.Ballot
	for i, ranking := range [][]int64{{10}, {11}, {12, 10}} {
		ballot := appendBallot(t, repo, 1, "cred-a", ranking)
		if i > 0 && ballot.PreviousChainHash != last.ChainHash {
			t.Fatalf("vote %d must chain from the previous head", i+1)
		}
		last = ballot

		var finals, counted int64
		if err := db.Model(&ballotModel{}).
			Where("election_id = ? AND credential_public_id = ? AND superseded_by_id IS NULL", 1, "cred-a").
			Count(&finals).Error; err != nil {
			t.Fatalf("count finals: %v", err)
		}
		if err := db.Model(&ballotModel{}).
			Where("election_id = ? AND credential_public_id = ? AND is_counted = ?", 1, "cred-a", true).
			Count(&counted).Error; err != nil {
			t.Fatalf("count counted: %v", err)
		}
		if finals != 1 || counted != 1 {
			t.Fatalf("after vote %d: finals=%d counted=%d, want 1 and 1", i+1, finals, counted)
		}
	}

	rows, err := repo.ListByElection(ctx, 1)
	if err != nil {
		t.Fatalf("ListByElection: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].SupersededByID == nil || *rows[0].SupersededByID != rows[1].ID {
		t.Fatalf("first row must point at the second")
	}
	if rows[1].SupersededByID == nil || *rows[1].SupersededByID != rows[2].ID {
		t.Fatalf("second row must point at the third")
	}
	if rows[2].SupersededByID != nil || !rows[2].IsCounted {
		t.Fatalf("latest row must be the counted final: %+v", rows[2])
	}

	counted, err := repo.CountedBallots(ctx, 1)
	if err != nil {
		t.Fatalf("CountedBallots: %v", err)
	}
	if len(counted) != 1 || counted[0].ID != last.ID {
		t.Fatalf("counted set must hold only the latest ballot")
	}
}

func TestDistinctCredentialsDoNotSupersedeEachOther(t *testing.T) {
	repo, _ := newTestRepository(t)
	appendBallot(t, repo, 1, "cred-a", []int64{10})
	appendBallot(t, repo, 1, "cred-b", []int64{11})

	rows, err := repo.ListByElection(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListByElection: %v", err)
	}
	for _, row := range rows {
		if row.SupersededByID != nil || !row.IsCounted {
			t.Fatalf("rows from distinct credentials must stay final and counted: %+v", row)
		}
	}
}

func TestDeleteIsAlwaysRejected(t *testing.T) {
	repo, db := newTestRepository(t)
	ballot := appendBallot(t, repo, 1, "cred-a", []int64{10})

	if err := db.Delete(&ballotModel{}, ballot.ID).Error; !errors.Is(err, domainerrors.ErrAppendOnly) {
		t.Fatalf("model delete: got %v want ErrAppendOnly", err)
	}
	if err := db.Exec("DELETE FROM ballots WHERE id = ?", ballot.ID).Error; !errors.Is(err, domainerrors.ErrAppendOnly) {
		t.Fatalf("raw delete: got %v want ErrAppendOnly", err)
	}

	rows, err := repo.ListByElection(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListByElection: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("row must survive delete attempts")
	}
}

func TestUpdateOutsideMutableColumnsIsRejected(t *testing.T) {
	repo, db := newTestRepository(t)
	ballot := appendBallot(t, repo, 1, "cred-a", []int64{10})

	err := db.Model(&ballotModel{}).Where("id = ?", ballot.ID).
		Updates(map[string]any{"ranking": "[99]"}).Error
	if !errors.Is(err, domainerrors.ErrImmutableColumn) {
		t.Fatalf("map update of ranking: got %v want ErrImmutableColumn", err)
	}

	err = db.Model(&ballotModel{}).Where("id = ?", ballot.ID).
		Updates(map[string]any{"is_counted": false, "weight": 5}).Error
	if !errors.Is(err, domainerrors.ErrImmutableColumn) {
		t.Fatalf("mixed update: got %v want ErrImmutableColumn", err)
	}

	var row ballotModel
	if err := db.First(&row, ballot.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	err = db.Save(&row).Error
	if !errors.Is(err, domainerrors.ErrImmutableColumn) {
		t.Fatalf("struct save: got %v want ErrImmutableColumn", err)
	}
}

func TestSetSupersessionValidation(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	a1 := appendBallot(t, repo, 1, "cred-a", []int64{10})
	b1 := appendBallot(t, repo, 1, "cred-b", []int64{10})
	a2 := appendBallot(t, repo, 1, "cred-a", []int64{11})

	// Backward pointer.
	if err := repo.SetSupersession(ctx, a2.ID, a1.ID); !errors.Is(err, domainerrors.ErrInvalidSupersession) {
		t.Fatalf("backward pointer: got %v", err)
	}
	// Self reference.
	if err := repo.SetSupersession(ctx, a2.ID, a2.ID); !errors.Is(err, domainerrors.ErrInvalidSupersession) {
		t.Fatalf("self reference: got %v", err)
	}
	// Different credential.
	if err := repo.SetSupersession(ctx, b1.ID, a2.ID); !errors.Is(err, domainerrors.ErrInvalidSupersession) {
		t.Fatalf("cross-credential pointer: got %v", err)
	}
	// Already superseded (a1 was linked to a2 inside Append).
	if err := repo.SetSupersession(ctx, a1.ID, a2.ID); !errors.Is(err, domainerrors.ErrInvalidSupersession) {
		t.Fatalf("double supersession: got %v", err)
	}
	// Missing rows.
	if err := repo.SetSupersession(ctx, 999, 1000); !errors.Is(err, domainerrors.ErrBallotNotFound) {
		t.Fatalf("missing prior row: got %v", err)
	}
}

func TestPartialUniqueIndexRejectsSecondFinalRow(t *testing.T) {
	repo, db := newTestRepository(t)
	appendBallot(t, repo, 1, "cred-a", []int64{10})

	// Bypass the repository to simulate a buggy writer inserting a second
	// final row for the same credential.
	row, err := ballotModelFromDraft(entities.Draft{
		ElectionID:         1,
		CredentialPublicID: "cred-a",
		Ranking:            []int64{11},
		Weight:             1,
		Nonce:              "n2",
		ContentHash:        entities.ContentHash(1, "cred-a", []int64{11}, 1, "n2"),
	}, entities.GenesisChainHash(1))
	if err != nil {
		t.Fatalf("build row: %v", err)
	}
	if err := db.Create(&row).Error; err == nil {
		t.Fatalf("second final row for the credential must violate the partial unique index")
	}
}
