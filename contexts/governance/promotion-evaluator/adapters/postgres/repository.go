package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"termbase/contexts/governance/promotion-evaluator/domain/entities"
	domainerrors "termbase/contexts/governance/promotion-evaluator/domain/errors"
	"termbase/contexts/governance/promotion-evaluator/ports"
	"termbase/internal/shared/events"
	"termbase/internal/shared/outbox"

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

// GetMetrics derives the cumulative record from the users row plus live
// counts over translations and validations, so the evaluator never trusts a
// stale counter column.
func (r *Repository) GetMetrics(ctx context.Context, userID string) (entities.Metrics, error) {
	userID = strings.TrimSpace(userID)

	var row userModel
	err := r.db.WithContext(ctx).
		Where("id = ?", userID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Metrics{}, domainerrors.ErrUserNotFound
		}
		return entities.Metrics{}, r.logError("promotion_repo_get_user_failed", err,
			"user_id", userID,
		)
	}

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&translationModel{}).
		Where("contributor_id = ?", userID).
		Count(&total).Error; err != nil {
		return entities.Metrics{}, r.logError("promotion_repo_count_translations_failed", err,
			"user_id", userID,
		)
	}

	var approved int64
	if err := r.db.WithContext(ctx).
		Model(&translationModel{}).
		Where("contributor_id = ?", userID).
		Where("status = ?", "approved").
		Count(&approved).Error; err != nil {
		return entities.Metrics{}, r.logError("promotion_repo_count_approved_failed", err,
			"user_id", userID,
		)
	}

	var validations int64
	if err := r.db.WithContext(ctx).
		Model(&validationModel{}).
		Where("validator_id = ?", userID).
		Count(&validations).Error; err != nil {
		return entities.Metrics{}, r.logError("promotion_repo_count_validations_failed", err,
			"user_id", userID,
		)
	}

	return entities.Metrics{
		UserID:               row.ID,
		Role:                 entities.Role(row.Role),
		Level:                row.Level,
		ApprovedTranslations: int(approved),
		TotalTranslations:    int(total),
		ValidationsPerformed: int(validations),
		PromotedAt:           normalizeOptionalTime(row.PromotedAt),
	}, nil
}

func (r *Repository) PromoteRole(ctx context.Context, userID string, fromRole, toRole entities.Role, promotedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("id = ?", strings.TrimSpace(userID)).
		Where("role = ?", string(fromRole)).
		Updates(map[string]any{
			"role":        string(toRole),
			"promoted_at": promotedAt.UTC(),
		})
	if result.Error != nil {
		return false, r.logError("promotion_repo_promote_failed", result.Error,
			"user_id", strings.TrimSpace(userID),
			"from_role", string(fromRole),
			"to_role", string(toRole),
		)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope events.Envelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("promotion_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:  strings.TrimSpace(envelope.EventID),
		EventType: strings.TrimSpace(envelope.EventType),
		Payload:   payload,
		Status:    outbox.StatusPending,
		CreatedAt: envelope.OccurredAtUTC.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return r.logError("promotion_repo_append_outbox_failed", err,
			"event_id", row.OutboxID,
			"event_type", row.EventType,
		)
	}
	return nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "governance/promotion-evaluator",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("promotion evaluator repository operation failed", fields...)
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

type userModel struct {
	ID         string     `gorm:"column:id;primaryKey"`
	Role       string     `gorm:"column:role"`
	Level      int        `gorm:"column:level"`
	PromotedAt *time.Time `gorm:"column:promoted_at"`
}

func (userModel) TableName() string {
	return "users"
}

type translationModel struct {
	ID            string `gorm:"column:id;primaryKey"`
	ContributorID string `gorm:"column:contributor_id"`
	Status        string `gorm:"column:status"`
}

func (translationModel) TableName() string {
	return "translations"
}

type validationModel struct {
	ID          string `gorm:"column:id;primaryKey"`
	ValidatorID string `gorm:"column:validator_id"`
}

func (validationModel) TableName() string {
	return "validations"
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

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

var _ ports.PromotionRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
