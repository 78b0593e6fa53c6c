package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"termbase/contexts/consensus/validation-ledger/domain/entities"
	domainerrors "termbase/contexts/consensus/validation-ledger/domain/errors"
	"termbase/contexts/consensus/validation-ledger/ports"
	"termbase/internal/shared/events"
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

func (r *Repository) GetTranslation(ctx context.Context, translationID string) (entities.Translation, error) {
	var row translationModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(translationID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Translation{}, domainerrors.ErrTranslationNotFound
		}
		return entities.Translation{}, r.logError("validation_repo_get_translation_failed", err,
			"translation_id", strings.TrimSpace(translationID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) InsertValidation(ctx context.Context, validation entities.Validation) error {
	row := validationModelFromEntity(validation)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateValidation
		}
		return r.logError("validation_repo_insert_failed", err,
			"validation_id", strings.TrimSpace(validation.ValidationID),
			"translation_id", strings.TrimSpace(validation.TranslationID),
			"validator_id", strings.TrimSpace(validation.ValidatorID),
		)
	}
	return nil
}

func (r *Repository) ListValidations(ctx context.Context, translationID string) ([]entities.Validation, error) {
	var rows []validationModel
	if err := r.db.WithContext(ctx).
		Where("translation_id = ?", strings.TrimSpace(translationID)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("validation_repo_list_failed", err,
			"translation_id", strings.TrimSpace(translationID),
		)
	}
	items := make([]entities.Validation, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) Summarize(ctx context.Context, translationID string) (entities.Summary, error) {
	type decisionCount struct {
		Decision string
		Count    int
	}
	var counts []decisionCount
	err := r.db.WithContext(ctx).
		Model(&validationModel{}).
		Select("decision, COUNT(*) AS count").
		Where("translation_id = ?", strings.TrimSpace(translationID)).
		Group("decision").
		Scan(&counts).
		Error
	if err != nil {
		return entities.Summary{}, r.logError("validation_repo_summarize_failed", err,
			"translation_id", strings.TrimSpace(translationID),
		)
	}
	var summary entities.Summary
	for _, item := range counts {
		summary.Total += item.Count
		switch entities.ValidationDecision(item.Decision) {
		case entities.DecisionApproved:
			summary.Approvals = item.Count
		case entities.DecisionRejected:
			summary.Rejections = item.Count
		case entities.DecisionNeedsRevision:
			summary.Revisions = item.Count
		}
	}
	return summary, nil
}

func (r *Repository) IncrementDecisionCounter(ctx context.Context, translationID string, decision entities.ValidationDecision, updatedAt time.Time) error {
	updates := map[string]any{"updated_at": updatedAt.UTC()}
	switch decision {
	case entities.DecisionApproved:
		updates["approval_count"] = gorm.Expr("approval_count + 1")
	case entities.DecisionRejected:
		updates["rejection_count"] = gorm.Expr("rejection_count + 1")
	default:
		// needs_revision contributes to neither counter.
		return nil
	}
	if err := r.db.WithContext(ctx).
		Model(&translationModel{}).
		Where("id = ?", strings.TrimSpace(translationID)).
		Updates(updates).Error; err != nil {
		return r.logError("validation_repo_increment_counter_failed", err,
			"translation_id", strings.TrimSpace(translationID),
			"decision", string(decision),
		)
	}
	return nil
}

func (r *Repository) TransitionStatus(ctx context.Context, translationID string, fromStatus, toStatus entities.TranslationStatus, updatedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&translationModel{}).
		Where("id = ?", strings.TrimSpace(translationID)).
		Where("status = ?", string(fromStatus)).
		Updates(map[string]any{
			"status":     string(toStatus),
			"updated_at": updatedAt.UTC(),
		})
	if result.Error != nil {
		return false, r.logError("validation_repo_transition_status_failed", result.Error,
			"translation_id", strings.TrimSpace(translationID),
			"from_status", string(fromStatus),
			"to_status", string(toStatus),
		)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope events.Envelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("validation_repo_append_outbox_marshal_failed", err,
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
		return r.logError("validation_repo_append_outbox_failed", err,
			"event_id", row.OutboxID,
			"event_type", row.EventType,
		)
	}
	return nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "consensus/validation-ledger",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("validation ledger repository operation failed", fields...)
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

type translationModel struct {
	ID             string     `gorm:"column:id;primaryKey"`
	TermID         string     `gorm:"column:term_id"`
	ContributorID  string     `gorm:"column:contributor_id"`
	Text           string     `gorm:"column:text"`
	Notes          string     `gorm:"column:notes"`
	Status         string     `gorm:"column:status"`
	ApprovalCount  int        `gorm:"column:approval_count"`
	RejectionCount int        `gorm:"column:rejection_count"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
	ApprovedAt     *time.Time `gorm:"column:approved_at"`
}

func (translationModel) TableName() string {
	return "translations"
}

func (m translationModel) toEntity() entities.Translation {
	return entities.Translation{
		TranslationID:  m.ID,
		TermID:         m.TermID,
		ContributorID:  m.ContributorID,
		Text:           m.Text,
		Notes:          m.Notes,
		Status:         entities.TranslationStatus(m.Status),
		ApprovalCount:  m.ApprovalCount,
		RejectionCount: m.RejectionCount,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
		ApprovedAt:     normalizeOptionalTime(m.ApprovedAt),
	}
}

type validationModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	TranslationID string    `gorm:"column:translation_id;uniqueIndex:idx_validation_identity"`
	ValidatorID   string    `gorm:"column:validator_id;uniqueIndex:idx_validation_identity"`
	Rating        int       `gorm:"column:rating"`
	Decision      string    `gorm:"column:decision"`
	Comment       string    `gorm:"column:comment"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (validationModel) TableName() string {
	return "validations"
}

func validationModelFromEntity(validation entities.Validation) validationModel {
	return validationModel{
		ID:            strings.TrimSpace(validation.ValidationID),
		TranslationID: strings.TrimSpace(validation.TranslationID),
		ValidatorID:   strings.TrimSpace(validation.ValidatorID),
		Rating:        validation.Rating,
		Decision:      string(validation.Decision),
		Comment:       strings.TrimSpace(validation.Comment),
		CreatedAt:     validation.CreatedAt.UTC(),
	}
}

func (m validationModel) toEntity() entities.Validation {
	return entities.Validation{
		ValidationID:  m.ID,
		TranslationID: m.TranslationID,
		ValidatorID:   m.ValidatorID,
		Rating:        m.Rating,
		Decision:      entities.ValidationDecision(m.Decision),
		Comment:       m.Comment,
		CreatedAt:     m.CreatedAt.UTC(),
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.ValidationRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
