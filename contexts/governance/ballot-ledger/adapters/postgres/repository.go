package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"psephos/contexts/governance/ballot-ledger/domain/entities"
	domainerrors "psephos/contexts/governance/ballot-ledger/domain/errors"
	"psephos/contexts/governance/ballot-ledger/ports"
	platformdb "psephos/internal/platform/db"

	"gorm.io/gorm"
)

// Repository is the single write path for the ballot table. Everything else
// in the system only reads it.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

// conn joins an ambient unit of work when the context carries one.
func (r *Repository) conn(ctx context.Context) *gorm.DB {
	return platformdb.FromContext(ctx, r.db).WithContext(ctx)
}

// Append inserts the draft under a per-credential advisory lock, so two
// submissions for the same credential never read the same chain head while
// distinct credentials proceed in parallel.
//
// A resubmission flips in three steps so the partial unique indexes hold at
// every statement: the new row enters provisional (pointing back at the prior
// row, uncounted), the prior row leaves the final and counted sets, then the
// new row's provisional pointer is cleared and it becomes the counted final.
func (r *Repository) Append(ctx context.Context, draft entities.Draft) (ports.AppendResult, error) {
	var result ports.AppendResult
	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCredentialChain(tx, draft.ElectionID, draft.CredentialPublicID); err != nil {
			return err
		}

		var prior ballotModel
		priorFound := true
		err := tx.Where("election_id = ? AND credential_public_id = ?", draft.ElectionID, draft.CredentialPublicID).
			Order("id DESC").
			First(&prior).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			priorFound = false
		} else if err != nil {
			return err
		}

		previousChainHash := entities.GenesisChainHash(draft.ElectionID)
		if priorFound {
			previousChainHash = prior.ChainHash
		}

		row, err := ballotModelFromDraft(draft, previousChainHash)
		if err != nil {
			return err
		}
		if priorFound {
			priorID := prior.ID
			row.SupersededByID = &priorID
			row.IsCounted = false
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		if priorFound {
			res := tx.Model(&ballotModel{}).
				Where("id = ? AND superseded_by_id IS NULL", prior.ID).
				Updates(map[string]any{"superseded_by_id": row.ID, "is_counted": false})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domainerrors.ErrInvalidSupersession
			}
			res = tx.Model(&ballotModel{}).
				Where("id = ? AND superseded_by_id = ?", row.ID, prior.ID).
				Updates(map[string]any{"superseded_by_id": nil, "is_counted": true})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domainerrors.ErrInvalidSupersession
			}
			row.SupersededByID = nil
			row.IsCounted = true
		}

		ballot, err := row.toEntity()
		if err != nil {
			return err
		}
		result = ports.AppendResult{Ballot: ballot}
		if priorFound {
			superseded, err := prior.toEntity()
			if err != nil {
				return err
			}
			superseded.SupersededByID = &row.ID
			superseded.IsCounted = false
			result.Superseded = &superseded
		}
		return nil
	})
	if err != nil {
		return ports.AppendResult{}, r.logError("ledger_repo_append_failed", err,
			"election_id", draft.ElectionID,
		)
	}
	return result, nil
}

// lockCredentialChain takes a transaction-scoped advisory lock keyed on the
// (election, credential) pair. On non-postgres dialects (sqlite tests) the
// database-level write serialization stands in for it.
func lockCredentialChain(tx *gorm.DB, electionID int64, credentialPublicID string) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	key := fmt.Sprintf("ballots|%d|%s", electionID, credentialPublicID)
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", key).Error
}

// supersede links prior to new for SetSupersession callers. It validates the
// pointer before writing; the postgres triggers re-validate at commit. The
// submission path in Append flips rows itself because the chain walk would
// trip over the provisional pointer it creates.
func supersede(tx *gorm.DB, priorID, newID int64) error {
	if err := validateSupersession(tx, priorID, newID); err != nil {
		return err
	}
	res := tx.Model(&ballotModel{}).
		Where("id = ? AND superseded_by_id IS NULL", priorID).
		Updates(map[string]any{"superseded_by_id": newID, "is_counted": false})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainerrors.ErrInvalidSupersession
	}
	return nil
}

// validateSupersession enforces direction, scope and acyclicity. The forward
// direction makes a cycle impossible, but the walk stays as a backstop
// against rows written outside this path.
func validateSupersession(tx *gorm.DB, priorID, newID int64) error {
	if newID <= priorID {
		return domainerrors.ErrInvalidSupersession
	}
	var prior, next ballotModel
	if err := tx.Where("id = ?", priorID).First(&prior).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrBallotNotFound
		}
		return err
	}
	if err := tx.Where("id = ?", newID).First(&next).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrInvalidSupersession
		}
		return err
	}
	if prior.ElectionID != next.ElectionID || prior.CredentialPublicID != next.CredentialPublicID {
		return domainerrors.ErrInvalidSupersession
	}
	seen := map[int64]bool{priorID: true}
	cursor := next
	for cursor.SupersededByID != nil {
		target := *cursor.SupersededByID
		if seen[target] {
			return domainerrors.ErrInvalidSupersession
		}
		seen[target] = true
		if err := tx.Where("id = ?", target).First(&cursor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrInvalidSupersession
			}
			return err
		}
	}
	return nil
}

// SetSupersession links an existing row forward. Exposed for repair tooling
// and invariant tests; the submission path links rows itself inside Append.
func (r *Repository) SetSupersession(ctx context.Context, ballotID, supersededByID int64) error {
	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return supersede(tx, ballotID, supersededByID)
	})
	if err != nil && !errors.Is(err, domainerrors.ErrInvalidSupersession) && !errors.Is(err, domainerrors.ErrBallotNotFound) {
		return r.logError("ledger_repo_set_supersession_failed", err, "ballot_id", ballotID)
	}
	return err
}

func (r *Repository) CountedBallots(ctx context.Context, electionID int64) ([]entities.Ballot, error) {
	return r.list(ctx, electionID, true)
}

func (r *Repository) ListByElection(ctx context.Context, electionID int64) ([]entities.Ballot, error) {
	return r.list(ctx, electionID, false)
}

func (r *Repository) list(ctx context.Context, electionID int64, countedOnly bool) ([]entities.Ballot, error) {
	tx := r.conn(ctx).
		Where("election_id = ?", electionID).
		Order("id ASC")
	if countedOnly {
		tx = tx.Where("is_counted = ?", true)
	}
	var rows []ballotModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_failed", err, "election_id", electionID)
	}
	out := make([]entities.Ballot, 0, len(rows))
	for _, row := range rows {
		ballot, err := row.toEntity()
		if err != nil {
			return nil, r.logError("ledger_repo_decode_failed", err, "ballot_id", row.ID)
		}
		out = append(out, ballot)
	}
	return out, nil
}

func (r *Repository) CountedWeight(ctx context.Context, electionID int64) (int64, error) {
	var total int64
	err := r.conn(ctx).Model(&ballotModel{}).
		Where("election_id = ? AND is_counted = ?", electionID, true).
		Select("COALESCE(SUM(weight), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, r.logError("ledger_repo_counted_weight_failed", err, "election_id", electionID)
	}
	return total, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := append([]any{
		"event", event,
		"module", "governance/ballot-ledger",
		"layer", "adapter",
		"error", err.Error(),
	}, attrs...)
	r.logger.Error("ledger repository operation failed", fields...)
	return err
}

type ballotModel struct {
	ID                 int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ElectionID         int64     `gorm:"column:election_id;index:idx_ballots_election_credential,priority:1"`
	CredentialPublicID string    `gorm:"column:credential_public_id;index:idx_ballots_election_credential,priority:2"`
	Ranking            string    `gorm:"column:ranking"`
	Weight             int64     `gorm:"column:weight"`
	Nonce              string    `gorm:"column:nonce"`
	ContentHash        string    `gorm:"column:content_hash"`
	PreviousChainHash  string    `gorm:"column:previous_chain_hash"`
	ChainHash          string    `gorm:"column:chain_hash;uniqueIndex:idx_ballots_chain_hash"`
	SupersededByID     *int64    `gorm:"column:superseded_by_id"`
	IsCounted          bool      `gorm:"column:is_counted"`
	CreatedAt          time.Time `gorm:"column:created_at"`
}

func (ballotModel) TableName() string {
	return "ballots"
}

func ballotModelFromDraft(draft entities.Draft, previousChainHash string) (ballotModel, error) {
	ranking, err := json.Marshal(draft.Ranking)
	if err != nil {
		return ballotModel{}, err
	}
	return ballotModel{
		ElectionID:         draft.ElectionID,
		CredentialPublicID: draft.CredentialPublicID,
		Ranking:            string(ranking),
		Weight:             draft.Weight,
		Nonce:              draft.Nonce,
		ContentHash:        draft.ContentHash,
		PreviousChainHash:  previousChainHash,
		ChainHash:          entities.ChainNextHash(previousChainHash, draft.ContentHash),
		IsCounted:          true,
		CreatedAt:          time.Now().UTC(),
	}, nil
}

func (m ballotModel) toEntity() (entities.Ballot, error) {
	var ranking []int64
	if m.Ranking != "" {
		if err := json.Unmarshal([]byte(m.Ranking), &ranking); err != nil {
			return entities.Ballot{}, err
		}
	}
	ballot := entities.Ballot{
		ID:                 m.ID,
		ElectionID:         m.ElectionID,
		CredentialPublicID: m.CredentialPublicID,
		Ranking:            ranking,
		Weight:             m.Weight,
		Nonce:              m.Nonce,
		ContentHash:        m.ContentHash,
		PreviousChainHash:  m.PreviousChainHash,
		ChainHash:          m.ChainHash,
		IsCounted:          m.IsCounted,
		CreatedAt:          m.CreatedAt.UTC(),
	}
	if m.SupersededByID != nil {
		id := *m.SupersededByID
		ballot.SupersededByID = &id
	}
	return ballot, nil
}
