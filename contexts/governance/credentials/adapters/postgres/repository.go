package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"psephos/contexts/governance/credentials/domain/entities"
	domainerrors "psephos/contexts/governance/credentials/domain/errors"
	"psephos/contexts/governance/credentials/ports"
	platformdb "psephos/internal/platform/db"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
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

// Migrate creates the credential table. One credential per (election, voter)
// at issuance; the index is partial so anonymized rows don't collide.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&credentialModel{}); err != nil {
		return err
	}
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uniq_credentials_voter
		ON voting_credentials (election_id, voter_ref)
		WHERE voter_ref IS NOT NULL`).Error
}

func (r *Repository) Create(ctx context.Context, credential entities.Credential) (entities.Credential, error) {
	row := credentialModelFromEntity(credential)
	if err := r.conn(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return entities.Credential{}, domainerrors.ErrConflict
		}
		return entities.Credential{}, r.logError("credentials_repo_create_failed", err,
			"election_id", credential.ElectionID,
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) GetByVoter(ctx context.Context, electionID int64, voterRef string) (entities.Credential, bool, error) {
	var row credentialModel
	err := r.conn(ctx).
		Where("election_id = ? AND voter_ref = ?", electionID, strings.TrimSpace(voterRef)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Credential{}, false, nil
	}
	if err != nil {
		return entities.Credential{}, false, r.logError("credentials_repo_get_by_voter_failed", err,
			"election_id", electionID,
		)
	}
	return row.toEntity(), true, nil
}

// GetByPublicID takes a row lock on postgres so concurrent ballot
// submissions under one credential serialize on it.
func (r *Repository) GetByPublicID(ctx context.Context, electionID int64, publicID string) (entities.Credential, bool, error) {
	tx := r.conn(ctx)
	if tx.Dialector.Name() == "postgres" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row credentialModel
	err := tx.Where("election_id = ? AND public_id = ?", electionID, strings.TrimSpace(publicID)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Credential{}, false, nil
	}
	if err != nil {
		return entities.Credential{}, false, r.logError("credentials_repo_get_by_public_id_failed", err,
			"election_id", electionID,
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) UpdateWeight(ctx context.Context, id int64, weight int64) error {
	res := r.conn(ctx).Model(&credentialModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"weight": weight, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return r.logError("credentials_repo_update_weight_failed", res.Error, "credential_id", id)
	}
	if res.RowsAffected == 0 {
		return domainerrors.ErrCredentialNotFound
	}
	return nil
}

func (r *Repository) AnonymizeElection(ctx context.Context, electionID int64) (int64, error) {
	res := r.conn(ctx).Model(&credentialModel{}).
		Where("election_id = ? AND voter_ref IS NOT NULL", electionID).
		Updates(map[string]any{"voter_ref": nil, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return 0, r.logError("credentials_repo_anonymize_failed", res.Error, "election_id", electionID)
	}
	return res.RowsAffected, nil
}

func (r *Repository) TotalWeight(ctx context.Context, electionID int64) (int64, error) {
	var total int64
	err := r.conn(ctx).Model(&credentialModel{}).
		Where("election_id = ?", electionID).
		Select("COALESCE(SUM(weight), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, r.logError("credentials_repo_total_weight_failed", err, "election_id", electionID)
	}
	return total, nil
}

func (r *Repository) ListByElection(ctx context.Context, electionID int64) ([]entities.Credential, error) {
	var rows []credentialModel
	err := r.conn(ctx).
		Where("election_id = ?", electionID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("credentials_repo_list_failed", err, "election_id", electionID)
	}
	out := make([]entities.Credential, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) Transact(ctx context.Context, fn func(repo ports.CredentialRepository) error) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx, logger: r.logger})
	})
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := append([]any{
		"event", event,
		"module", "governance/credentials",
		"layer", "adapter",
		"error", err.Error(),
	}, attrs...)
	r.logger.Error("credential repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// glebarez/sqlite surfaces constraint failures as plain errors.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type credentialModel struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ElectionID int64     `gorm:"column:election_id;index:idx_credentials_election"`
	PublicID   string    `gorm:"column:public_id;uniqueIndex:uniq_credentials_public_id"`
	VoterRef   *string   `gorm:"column:voter_ref"`
	Weight     int64     `gorm:"column:weight"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (credentialModel) TableName() string {
	return "voting_credentials"
}

func credentialModelFromEntity(credential entities.Credential) credentialModel {
	row := credentialModel{
		ID:         credential.ID,
		ElectionID: credential.ElectionID,
		PublicID:   credential.PublicID,
		Weight:     credential.Weight,
		CreatedAt:  credential.CreatedAt,
		UpdatedAt:  credential.UpdatedAt,
	}
	if credential.VoterRef != nil {
		ref := *credential.VoterRef
		row.VoterRef = &ref
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m credentialModel) toEntity() entities.Credential {
	credential := entities.Credential{
		ID:         m.ID,
		ElectionID: m.ElectionID,
		PublicID:   m.PublicID,
		Weight:     m.Weight,
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
	if m.VoterRef != nil {
		ref := *m.VoterRef
		credential.VoterRef = &ref
	}
	return credential
}

var _ ports.CredentialRepository = (*Repository)(nil)
