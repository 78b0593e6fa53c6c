package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"termbase/contexts/governance/orchestrator/domain/entities"
	"termbase/contexts/governance/orchestrator/ports"
	"termbase/internal/shared/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
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

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]outbox.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outbox.StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("orchestrator_repo_list_outbox_failed", err)
	}
	items := make([]outbox.Message, 0, len(rows))
	for _, row := range rows {
		items = append(items, outbox.Message{
			OutboxID:    row.OutboxID,
			EventType:   row.EventType,
			Payload:     row.Payload,
			Status:      row.Status,
			CreatedAt:   row.CreatedAt.UTC(),
			PublishedAt: normalizeOptionalTime(row.PublishedAt),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Where("status = ?", outbox.StatusPending).
		Updates(map[string]any{
			"status":       outbox.StatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("orchestrator_repo_mark_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	return nil
}

// Reserve claims the event for the consumer group through the unique key on
// processed_events. A duplicate insert means another delivery already
// applied the effects.
func (r *Repository) Reserve(ctx context.Context, consumerGroup, eventID string) (bool, error) {
	row := processedEventModel{
		ID:            uuid.NewString(),
		ConsumerGroup: strings.TrimSpace(consumerGroup),
		EventID:       strings.TrimSpace(eventID),
		ProcessedAt:   time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, r.logError("orchestrator_repo_reserve_failed", err,
			"consumer_group", row.ConsumerGroup,
			"event_id", row.EventID,
		)
	}
	return true, nil
}

func (r *Repository) AppendPointsEntry(ctx context.Context, entry entities.PointsEntry) error {
	row := pointsEntryModel{
		ID:        strings.TrimSpace(entry.EntryID),
		UserID:    strings.TrimSpace(entry.UserID),
		Points:    entry.Points,
		Reason:    strings.TrimSpace(entry.Reason),
		EventID:   strings.TrimSpace(entry.EventID),
		CreatedAt: entry.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return r.logError("orchestrator_repo_append_points_failed", err,
			"entry_id", row.ID,
			"user_id", row.UserID,
		)
	}
	return nil
}

func (r *Repository) InsertNotification(ctx context.Context, notification entities.Notification) error {
	row := notificationModel{
		ID:        strings.TrimSpace(notification.NotificationID),
		UserID:    strings.TrimSpace(notification.UserID),
		Kind:      string(notification.Kind),
		EntityID:  strings.TrimSpace(notification.EntityID),
		EventID:   strings.TrimSpace(notification.EventID),
		CreatedAt: notification.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return r.logError("orchestrator_repo_insert_notification_failed", err,
			"notification_id", row.ID,
			"user_id", row.UserID,
		)
	}
	return nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "governance/orchestrator",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("orchestrator repository operation failed", fields...)
	return err
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

type outboxModel struct {
	OutboxID    string     `gorm:"column:outbox_id;primaryKey"`
	EventType   string     `gorm:"column:event_type"`
	Payload     []byte     `gorm:"column:payload"`
	Status      string     `gorm:"column:status"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	PublishedAt *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "governance_outbox"
}

type processedEventModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	ConsumerGroup string    `gorm:"column:consumer_group;uniqueIndex:idx_processed_event"`
	EventID       string    `gorm:"column:event_id;uniqueIndex:idx_processed_event"`
	ProcessedAt   time.Time `gorm:"column:processed_at"`
}

func (processedEventModel) TableName() string {
	return "processed_events"
}

type pointsEntryModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	UserID    string    `gorm:"column:user_id"`
	Points    int       `gorm:"column:points"`
	Reason    string    `gorm:"column:reason"`
	EventID   string    `gorm:"column:event_id"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (pointsEntryModel) TableName() string {
	return "points_ledger"
}

type notificationModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	UserID    string    `gorm:"column:user_id"`
	Kind      string    `gorm:"column:kind"`
	EntityID  string    `gorm:"column:entity_id"`
	EventID   string    `gorm:"column:event_id"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (notificationModel) TableName() string {
	return "notifications"
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.DedupStore = (*Repository)(nil)
var _ ports.EffectsRepository = (*Repository)(nil)
