package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"termbase/contexts/governance/strike-ledger/domain/entities"
	domainerrors "termbase/contexts/governance/strike-ledger/domain/errors"
	"termbase/contexts/governance/strike-ledger/ports"
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

func (r *Repository) InsertStrike(ctx context.Context, strike entities.Strike) error {
	row := strikeModelFromEntity(strike)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return r.logError("strike_repo_insert_failed", err,
			"strike_id", strings.TrimSpace(strike.StrikeID),
			"user_id", strings.TrimSpace(strike.UserID),
		)
	}
	return nil
}

func (r *Repository) GetStrike(ctx context.Context, strikeID string) (entities.Strike, error) {
	var row strikeModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(strikeID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Strike{}, domainerrors.ErrStrikeNotFound
		}
		return entities.Strike{}, r.logError("strike_repo_get_failed", err,
			"strike_id", strings.TrimSpace(strikeID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListStrikes(ctx context.Context, userID string) ([]entities.Strike, error) {
	var rows []strikeModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("strike_repo_list_failed", err,
			"user_id", strings.TrimSpace(userID),
		)
	}
	items := make([]entities.Strike, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) CountActiveStrikes(ctx context.Context, userID string) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&strikeModel{}).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Where("is_active = ?", true).
		Count(&count).Error; err != nil {
		return 0, r.logError("strike_repo_count_active_failed", err,
			"user_id", strings.TrimSpace(userID),
		)
	}
	return int(count), nil
}

func (r *Repository) DeactivateStrike(ctx context.Context, strikeID string, updatedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&strikeModel{}).
		Where("id = ?", strings.TrimSpace(strikeID)).
		Where("is_active = ?", true).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": updatedAt.UTC(),
		})
	if result.Error != nil {
		return false, r.logError("strike_repo_deactivate_failed", result.Error,
			"strike_id", strings.TrimSpace(strikeID),
		)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) ListExpiredActiveStrikes(ctx context.Context, now time.Time, limit int) ([]entities.Strike, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []strikeModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("strike_repo_list_expired_failed", err)
	}
	items := make([]entities.Strike, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetBanState(ctx context.Context, userID string) (entities.BanState, bool, error) {
	var row userModerationModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(userID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.BanState{}, false, nil
		}
		return entities.BanState{}, false, r.logError("strike_repo_get_ban_state_failed", err,
			"user_id", strings.TrimSpace(userID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ApplyBan(ctx context.Context, userID, reason string, bannedAt, expiresAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&userModerationModel{}).
		Where("id = ?", strings.TrimSpace(userID)).
		Where("is_banned = ?", false).
		Updates(map[string]any{
			"is_banned":      true,
			"is_active":      false,
			"banned_at":      bannedAt.UTC(),
			"banned_reason":  reason,
			"ban_expires_at": expiresAt.UTC(),
		})
	if result.Error != nil {
		return false, r.logError("strike_repo_apply_ban_failed", result.Error,
			"user_id", strings.TrimSpace(userID),
		)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) LiftBan(ctx context.Context, userID string, updatedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&userModerationModel{}).
		Where("id = ?", strings.TrimSpace(userID)).
		Where("is_banned = ?", true).
		Updates(map[string]any{
			"is_banned":      false,
			"is_active":      true,
			"banned_at":      nil,
			"banned_reason":  "",
			"ban_expires_at": nil,
		})
	if result.Error != nil {
		return false, r.logError("strike_repo_lift_ban_failed", result.Error,
			"user_id", strings.TrimSpace(userID),
		)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope events.Envelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("strike_repo_append_outbox_marshal_failed", err,
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
		return r.logError("strike_repo_append_outbox_failed", err,
			"event_id", row.OutboxID,
			"event_type", row.EventType,
		)
	}
	return nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "governance/strike-ledger",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("strike ledger repository operation failed", fields...)
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

type strikeModel struct {
	ID        string     `gorm:"column:id;primaryKey"`
	UserID    string     `gorm:"column:user_id"`
	AdminID   string     `gorm:"column:admin_id"`
	Reason    string     `gorm:"column:reason"`
	Detail    string     `gorm:"column:detail"`
	Severity  string     `gorm:"column:severity"`
	IsActive  bool       `gorm:"column:is_active"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at"`
}

func (strikeModel) TableName() string {
	return "strikes"
}

func strikeModelFromEntity(strike entities.Strike) strikeModel {
	return strikeModel{
		ID:        strings.TrimSpace(strike.StrikeID),
		UserID:    strings.TrimSpace(strike.UserID),
		AdminID:   strings.TrimSpace(strike.AdminID),
		Reason:    string(strike.Reason),
		Detail:    strings.TrimSpace(strike.Detail),
		Severity:  string(strike.Severity),
		IsActive:  strike.IsActive,
		ExpiresAt: normalizeOptionalTime(strike.ExpiresAt),
		CreatedAt: strike.CreatedAt.UTC(),
		UpdatedAt: strike.UpdatedAt.UTC(),
	}
}

func (m strikeModel) toEntity() entities.Strike {
	return entities.Strike{
		StrikeID:  m.ID,
		UserID:    m.UserID,
		AdminID:   m.AdminID,
		Reason:    entities.StrikeReason(m.Reason),
		Detail:    m.Detail,
		Severity:  entities.Severity(m.Severity),
		IsActive:  m.IsActive,
		ExpiresAt: normalizeOptionalTime(m.ExpiresAt),
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

type userModerationModel struct {
	ID           string     `gorm:"column:id;primaryKey"`
	IsBanned     bool       `gorm:"column:is_banned"`
	IsActive     bool       `gorm:"column:is_active"`
	BannedAt     *time.Time `gorm:"column:banned_at"`
	BannedReason string     `gorm:"column:banned_reason"`
	BanExpiresAt *time.Time `gorm:"column:ban_expires_at"`
}

func (userModerationModel) TableName() string {
	return "users"
}

func (m userModerationModel) toEntity() entities.BanState {
	return entities.BanState{
		UserID:       m.ID,
		IsBanned:     m.IsBanned,
		IsActive:     m.IsActive,
		BannedAt:     normalizeOptionalTime(m.BannedAt),
		BannedReason: m.BannedReason,
		BanExpiresAt: normalizeOptionalTime(m.BanExpiresAt),
	}
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

var _ ports.StrikeRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
