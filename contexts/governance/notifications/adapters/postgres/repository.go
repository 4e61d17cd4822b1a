package postgresadapter

import (
	"context"
	"log/slog"
	"time"

	"psephos/contexts/governance/notifications/domain/entities"
	domainerrors "psephos/contexts/governance/notifications/domain/errors"
	"psephos/contexts/governance/notifications/ports"
	platformdb "psephos/internal/platform/db"

	"github.com/google/uuid"
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
	return db.AutoMigrate(&messageModel{})
}

func (r *Repository) Enqueue(ctx context.Context, message entities.Message) (entities.Message, error) {
	row := messageModelFromEntity(message)
	if err := r.conn(ctx).Create(&row).Error; err != nil {
		return entities.Message{}, r.logError("notifications_repo_enqueue_failed", err,
			"election_id", message.ElectionID,
			"template", message.Template,
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListPending(ctx context.Context, limit int) ([]entities.Message, error) {
	tx := r.conn(ctx).
		Where("status = ?", string(entities.StatusPending)).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var rows []messageModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, r.logError("notifications_repo_list_pending_failed", err)
	}
	out := make([]entities.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	res := r.conn(ctx).Model(&messageModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": string(entities.StatusSent), "sent_at": sentAt.UTC()})
	if res.Error != nil {
		return r.logError("notifications_repo_mark_sent_failed", res.Error, "message_id", id)
	}
	if res.RowsAffected == 0 {
		return domainerrors.ErrMessageNotFound
	}
	return nil
}

func (r *Repository) ScrubElection(ctx context.Context, electionID int64) (int64, error) {
	res := r.conn(ctx).
		Where("election_id = ?", electionID).
		Delete(&messageModel{})
	if res.Error != nil {
		return 0, r.logError("notifications_repo_scrub_failed", res.Error, "election_id", electionID)
	}
	return res.RowsAffected, nil
}

func (r *Repository) ListByElection(ctx context.Context, electionID int64) ([]entities.Message, error) {
	var rows []messageModel
	err := r.conn(ctx).
		Where("election_id = ?", electionID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("notifications_repo_list_failed", err, "election_id", electionID)
	}
	out := make([]entities.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := append([]any{
		"event", event,
		"module", "governance/notifications",
		"layer", "adapter",
		"error", err.Error(),
	}, attrs...)
	r.logger.Error("notification repository operation failed", fields...)
	return err
}

type messageModel struct {
	ID         string     `gorm:"column:id;primaryKey"`
	ElectionID int64      `gorm:"column:election_id;index:idx_notifications_election"`
	Template   string     `gorm:"column:template"`
	Recipient  string     `gorm:"column:recipient"`
	Subject    string     `gorm:"column:subject"`
	HTMLBody   string     `gorm:"column:html_body"`
	TextBody   string     `gorm:"column:text_body"`
	Context    []byte     `gorm:"column:context;type:jsonb"`
	Status     string     `gorm:"column:status;index:idx_notifications_status"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
	SentAt     *time.Time `gorm:"column:sent_at"`
}

func (messageModel) TableName() string {
	return "notification_messages"
}

func messageModelFromEntity(message entities.Message) messageModel {
	row := messageModel{
		ID:         message.ID,
		ElectionID: message.ElectionID,
		Template:   message.Template,
		Recipient:  message.Recipient,
		Subject:    message.Subject,
		HTMLBody:   message.HTMLBody,
		TextBody:   message.TextBody,
		Context:    append([]byte(nil), message.Context...),
		Status:     string(message.Status),
		CreatedAt:  message.CreatedAt.UTC(),
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if message.SentAt != nil {
		at := message.SentAt.UTC()
		row.SentAt = &at
	}
	return row
}

func (m messageModel) toEntity() entities.Message {
	message := entities.Message{
		ID:         m.ID,
		ElectionID: m.ElectionID,
		Template:   m.Template,
		Recipient:  m.Recipient,
		Subject:    m.Subject,
		HTMLBody:   m.HTMLBody,
		TextBody:   m.TextBody,
		Context:    append([]byte(nil), m.Context...),
		Status:     entities.MessageStatus(m.Status),
		CreatedAt:  m.CreatedAt.UTC(),
	}
	if m.SentAt != nil {
		at := m.SentAt.UTC()
		message.SentAt = &at
	}
	return message
}

var _ ports.MessageQueue = (*Repository)(nil)
