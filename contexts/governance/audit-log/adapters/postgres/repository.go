package postgresadapter

import (
	"context"
	"log/slog"
	"time"

	"psephos/contexts/governance/audit-log/domain/entities"
	platformdb "psephos/internal/platform/db"

	"github.com/google/uuid"
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

// Migrate creates the audit tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&entryModel{}, &singletonModel{})
}

func (r *Repository) Append(ctx context.Context, entry entities.Entry) (entities.Entry, error) {
	row := entryFromEntity(entry)
	if err := r.conn(ctx).Create(&row).Error; err != nil {
		return entities.Entry{}, r.logError("audit_append_failed", err,
			"election_id", entry.ElectionID,
			"event_type", entry.EventType,
		)
	}
	return row.toEntity(), nil
}

// AppendOnce reserves the (election, event type) pair through the singleton
// table's primary key before writing the entry, so concurrent callers can
// never double-append. Both writes share one transaction.
func (r *Repository) AppendOnce(ctx context.Context, entry entities.Entry) (bool, error) {
	created := false
	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		reservation := singletonModel{
			ElectionID: entry.ElectionID,
			EventType:  entry.EventType,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&reservation)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		row := entryFromEntity(entry)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, r.logError("audit_append_once_failed", err,
			"election_id", entry.ElectionID,
			"event_type", entry.EventType,
		)
	}
	return created, nil
}

func (r *Repository) ListPublic(ctx context.Context, electionID int64) ([]entities.Entry, error) {
	return r.list(ctx, electionID, true)
}

func (r *Repository) ListAll(ctx context.Context, electionID int64) ([]entities.Entry, error) {
	return r.list(ctx, electionID, false)
}

func (r *Repository) list(ctx context.Context, electionID int64, publicOnly bool) ([]entities.Entry, error) {
	tx := r.conn(ctx).
		Where("election_id = ?", electionID).
		Order("created_at ASC, id ASC")
	if publicOnly {
		tx = tx.Where("is_public = ?", true)
	}
	var rows []entryModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, r.logError("audit_list_failed", err, "election_id", electionID)
	}
	out := make([]entities.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := append([]any{
		"event", event,
		"module", "governance/audit-log",
		"layer", "adapter",
		"error", err.Error(),
	}, attrs...)
	r.logger.Error("audit repository operation failed", fields...)
	return err
}

type entryModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	ElectionID int64     `gorm:"column:election_id;index:idx_audit_election_time,priority:1"`
	EventType  string    `gorm:"column:event_type"`
	Public     bool      `gorm:"column:is_public"`
	Payload    []byte    `gorm:"column:payload;type:jsonb"`
	Timestamp  time.Time `gorm:"column:created_at;index:idx_audit_election_time,priority:2"`
}

func (entryModel) TableName() string {
	return "audit_log_entries"
}

type singletonModel struct {
	ElectionID int64  `gorm:"column:election_id;primaryKey;autoIncrement:false"`
	EventType  string `gorm:"column:event_type;primaryKey"`
}

func (singletonModel) TableName() string {
	return "audit_singleton_events"
}

func entryFromEntity(entry entities.Entry) entryModel {
	row := entryModel{
		ID:         entry.ID,
		ElectionID: entry.ElectionID,
		EventType:  entry.EventType,
		Public:     entry.Public,
		Payload:    append([]byte(nil), entry.Payload...),
		Timestamp:  entry.Timestamp.UTC(),
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now().UTC()
	}
	return row
}

func (m entryModel) toEntity() entities.Entry {
	return entities.Entry{
		ID:         m.ID,
		ElectionID: m.ElectionID,
		EventType:  m.EventType,
		Public:     m.Public,
		Payload:    append([]byte(nil), m.Payload...),
		Timestamp:  m.Timestamp.UTC(),
	}
}
