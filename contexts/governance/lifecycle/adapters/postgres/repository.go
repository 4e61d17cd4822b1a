package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"psephos/contexts/governance/lifecycle/domain/entities"
	domainerrors "psephos/contexts/governance/lifecycle/domain/errors"
	"psephos/contexts/governance/lifecycle/ports"
	platformdb "psephos/internal/platform/db"

	"gorm.io/gorm"
)

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

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&electionModel{}, &candidateModel{}, &exclusionGroupModel{})
}

func (r *Repository) Create(ctx context.Context, election entities.Election) (entities.Election, error) {
	row := electionModelFromEntity(election)
	if err := r.conn(ctx).Create(&row).Error; err != nil {
		return entities.Election{}, r.logError("lifecycle_repo_create_failed", err)
	}
	return row.toEntity(), nil
}

func (r *Repository) Get(ctx context.Context, id int64) (entities.Election, error) {
	var row electionModel
	err := r.conn(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	if err != nil {
		return entities.Election{}, r.logError("lifecycle_repo_get_failed", err, "election_id", id)
	}
	return row.toEntity(), nil
}

// Transition re-reads the row under a transaction and applies the update
// conditionally on the status still being 'from'; a lost race surfaces as
// ErrIllegalTransition.
func (r *Repository) Transition(ctx context.Context, id int64, from, to entities.Status, mutate func(*entities.Election)) (entities.Election, error) {
	if !entities.CanTransition(from, to) {
		return entities.Election{}, domainerrors.ErrIllegalTransition
	}
	var out entities.Election
	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var row electionModel
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrElectionNotFound
			}
			return err
		}
		election := row.toEntity()
		if election.Status != from {
			return domainerrors.ErrIllegalTransition
		}
		election.Status = to
		if mutate != nil {
			mutate(&election)
		}
		election.UpdatedAt = time.Now().UTC()

		updated := electionModelFromEntity(election)
		res := tx.Model(&electionModel{}).
			Where("id = ? AND status = ?", id, string(from)).
			Updates(map[string]any{
				"status":        updated.Status,
				"end_at":        updated.End,
				"email_subject": updated.EmailSubject,
				"email_html":    updated.EmailHTML,
				"email_text":    updated.EmailText,
				"updated_at":    updated.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domainerrors.ErrIllegalTransition
		}
		out = election
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrIllegalTransition) || errors.Is(err, domainerrors.ErrElectionNotFound) {
			return entities.Election{}, err
		}
		return entities.Election{}, r.logError("lifecycle_repo_transition_failed", err, "election_id", id)
	}
	return out, nil
}

func (r *Repository) SetEnd(ctx context.Context, id int64, end time.Time) error {
	res := r.conn(ctx).Model(&electionModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"end_at": end.UTC(), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return r.logError("lifecycle_repo_set_end_failed", res.Error, "election_id", id)
	}
	if res.RowsAffected == 0 {
		return domainerrors.ErrElectionNotFound
	}
	return nil
}

func (r *Repository) FinalizeTally(ctx context.Context, id int64, result json.RawMessage) (entities.Election, error) {
	res := r.conn(ctx).Model(&electionModel{}).
		Where("id = ? AND status = ?", id, string(entities.StatusClosed)).
		Updates(map[string]any{
			"status":       string(entities.StatusTallied),
			"tally_result": []byte(result),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return entities.Election{}, r.logError("lifecycle_repo_finalize_failed", res.Error, "election_id", id)
	}
	if res.RowsAffected == 0 {
		return entities.Election{}, domainerrors.ErrIllegalTransition
	}
	return r.Get(ctx, id)
}

func (r *Repository) SetArtifactRefs(ctx context.Context, id int64, ballotsRef, auditLogRef string) (entities.Election, error) {
	res := r.conn(ctx).Model(&electionModel{}).
		Where("id = ? AND status = ?", id, string(entities.StatusTallied)).
		Updates(map[string]any{
			"ballots_ref":   ballotsRef,
			"audit_log_ref": auditLogRef,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return entities.Election{}, r.logError("lifecycle_repo_set_refs_failed", res.Error, "election_id", id)
	}
	if res.RowsAffected == 0 {
		return entities.Election{}, domainerrors.ErrIllegalTransition
	}
	return r.Get(ctx, id)
}

func (r *Repository) ListOpenPastEnd(ctx context.Context, now time.Time) ([]entities.Election, error) {
	return r.listDue(ctx, entities.StatusOpen, now)
}

func (r *Repository) ListClosedPastEnd(ctx context.Context, now time.Time) ([]entities.Election, error) {
	return r.listDue(ctx, entities.StatusClosed, now)
}

func (r *Repository) listDue(ctx context.Context, status entities.Status, now time.Time) ([]entities.Election, error) {
	var rows []electionModel
	err := r.conn(ctx).
		Where("status = ? AND end_at <= ?", string(status), now.UTC()).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("lifecycle_repo_list_due_failed", err, "status", string(status))
	}
	out := make([]entities.Election, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) ListActiveIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.conn(ctx).Model(&electionModel{}).
		Where("status <> ?", string(entities.StatusDeleted)).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, r.logError("lifecycle_repo_list_active_failed", err)
	}
	return ids, nil
}

func (r *Repository) AddCandidate(ctx context.Context, candidate entities.Candidate) (entities.Candidate, error) {
	row := candidateModelFromEntity(candidate)
	if err := r.conn(ctx).Create(&row).Error; err != nil {
		return entities.Candidate{}, r.logError("lifecycle_repo_add_candidate_failed", err,
			"election_id", candidate.ElectionID,
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListCandidates(ctx context.Context, electionID int64) ([]entities.Candidate, error) {
	var rows []candidateModel
	err := r.conn(ctx).
		Where("election_id = ?", electionID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("lifecycle_repo_list_candidates_failed", err, "election_id", electionID)
	}
	out := make([]entities.Candidate, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) AddExclusionGroup(ctx context.Context, group entities.ExclusionGroup) (entities.ExclusionGroup, error) {
	row, err := exclusionGroupModelFromEntity(group)
	if err != nil {
		return entities.ExclusionGroup{}, err
	}
	if err := r.conn(ctx).Create(&row).Error; err != nil {
		return entities.ExclusionGroup{}, r.logError("lifecycle_repo_add_group_failed", err,
			"election_id", group.ElectionID,
		)
	}
	return row.toEntity()
}

func (r *Repository) ListExclusionGroups(ctx context.Context, electionID int64) ([]entities.ExclusionGroup, error) {
	var rows []exclusionGroupModel
	err := r.conn(ctx).
		Where("election_id = ?", electionID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("lifecycle_repo_list_groups_failed", err, "election_id", electionID)
	}
	out := make([]entities.ExclusionGroup, 0, len(rows))
	for _, row := range rows {
		group, err := row.toEntity()
		if err != nil {
			return nil, r.logError("lifecycle_repo_decode_group_failed", err, "group_id", row.ID)
		}
		out = append(out, group)
	}
	return out, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := append([]any{
		"event", event,
		"module", "governance/lifecycle",
		"layer", "adapter",
		"error", err.Error(),
	}, attrs...)
	r.logger.Error("election repository operation failed", fields...)
	return err
}

var _ ports.ElectionRepository = (*Repository)(nil)
