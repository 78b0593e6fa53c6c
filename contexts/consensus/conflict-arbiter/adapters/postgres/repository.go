package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"termbase/contexts/consensus/conflict-arbiter/domain/entities"
	domainerrors "termbase/contexts/consensus/conflict-arbiter/domain/errors"
	"termbase/contexts/consensus/conflict-arbiter/ports"
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

func (r *Repository) GetConflict(ctx context.Context, conflictID string) (entities.ConflictCase, error) {
	var row conflictModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(conflictID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ConflictCase{}, domainerrors.ErrConflictNotFound
		}
		return entities.ConflictCase{}, r.logError("arbiter_repo_get_conflict_failed", err,
			"conflict_id", strings.TrimSpace(conflictID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) GetOpenConflictByTerm(ctx context.Context, termID string) (entities.ConflictCase, bool, error) {
	var row conflictModel
	err := r.db.WithContext(ctx).
		Where("term_id = ?", strings.TrimSpace(termID)).
		Where("status <> ?", string(entities.ConflictStatusResolved)).
		Order("created_at ASC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ConflictCase{}, false, nil
		}
		return entities.ConflictCase{}, false, r.logError("arbiter_repo_get_open_conflict_failed", err,
			"term_id", strings.TrimSpace(termID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) CreateConflict(ctx context.Context, conflict entities.ConflictCase, memberIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := conflictModelFromEntity(conflict)
		if err := tx.Create(&row).Error; err != nil {
			return r.logError("arbiter_repo_create_conflict_failed", err,
				"conflict_id", strings.TrimSpace(conflict.ConflictID),
				"term_id", strings.TrimSpace(conflict.TermID),
			)
		}
		for _, translationID := range memberIDs {
			member := conflictMemberModel{
				ConflictID:    strings.TrimSpace(conflict.ConflictID),
				TranslationID: strings.TrimSpace(translationID),
			}
			if err := tx.Create(&member).Error; err != nil {
				return r.logError("arbiter_repo_attach_member_failed", err,
					"conflict_id", strings.TrimSpace(conflict.ConflictID),
					"translation_id", strings.TrimSpace(translationID),
				)
			}
		}
		return nil
	})
}

func (r *Repository) MarkInReview(ctx context.Context, conflictID string, updatedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&conflictModel{}).
		Where("id = ?", strings.TrimSpace(conflictID)).
		Where("status = ?", string(entities.ConflictStatusPending)).
		Updates(map[string]any{
			"status":     string(entities.ConflictStatusInReview),
			"updated_at": updatedAt.UTC(),
		})
	if result.Error != nil {
		return false, r.logError("arbiter_repo_mark_in_review_failed", result.Error,
			"conflict_id", strings.TrimSpace(conflictID),
		)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) InsertVote(ctx context.Context, vote entities.CommitteeVote) error {
	row := voteModelFromEntity(vote)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateVote
		}
		return r.logError("arbiter_repo_insert_vote_failed", err,
			"vote_id", strings.TrimSpace(vote.VoteID),
			"conflict_id", strings.TrimSpace(vote.ConflictID),
			"voter_id", strings.TrimSpace(vote.VoterID),
		)
	}
	return nil
}

func (r *Repository) ListVotes(ctx context.Context, conflictID string) ([]entities.CommitteeVote, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("conflict_id = ?", strings.TrimSpace(conflictID)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("arbiter_repo_list_votes_failed", err,
			"conflict_id", strings.TrimSpace(conflictID),
		)
	}
	items := make([]entities.CommitteeVote, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListMembers(ctx context.Context, conflictID string) ([]ports.TranslationRef, error) {
	var rows []translationModel
	err := r.db.WithContext(ctx).
		Table("translations AS t").
		Select("t.*").
		Joins("JOIN conflict_translations AS ct ON ct.translation_id = t.id").
		Where("ct.conflict_id = ?", strings.TrimSpace(conflictID)).
		Order("t.created_at ASC").
		Scan(&rows).
		Error
	if err != nil {
		return nil, r.logError("arbiter_repo_list_members_failed", err,
			"conflict_id", strings.TrimSpace(conflictID),
		)
	}
	return toTranslationRefs(rows), nil
}

func (r *Repository) GetTranslation(ctx context.Context, translationID string) (ports.TranslationRef, error) {
	var row translationModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(translationID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.TranslationRef{}, domainerrors.ErrTranslationNotFound
		}
		return ports.TranslationRef{}, r.logError("arbiter_repo_get_translation_failed", err,
			"translation_id", strings.TrimSpace(translationID),
		)
	}
	return row.toRef(), nil
}

func (r *Repository) ListLiveTranslationsByTerm(ctx context.Context, termID string) ([]ports.TranslationRef, error) {
	var rows []translationModel
	if err := r.db.WithContext(ctx).
		Where("term_id = ?", strings.TrimSpace(termID)).
		Where("status IN ?", entities.LiveTranslationStatuses()).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("arbiter_repo_list_live_translations_failed", err,
			"term_id", strings.TrimSpace(termID),
		)
	}
	return toTranslationRefs(rows), nil
}

func (r *Repository) Resolve(ctx context.Context, update ports.ResolutionUpdate) (bool, error) {
	resolvedAt := update.ResolvedAt.UTC()
	result := r.db.WithContext(ctx).
		Model(&conflictModel{}).
		Where("id = ?", strings.TrimSpace(update.ConflictID)).
		Where("status = ?", string(entities.ConflictStatusInReview)).
		Updates(map[string]any{
			"status":                 string(entities.ConflictStatusResolved),
			"resolution":             string(update.Resolution),
			"winning_translation_id": strings.TrimSpace(update.WinningTranslationID),
			"resolved_by":            strings.TrimSpace(update.ResolvedBy),
			"resolved_at":            resolvedAt,
			"updated_at":             resolvedAt,
		})
	if result.Error != nil {
		return false, r.logError("arbiter_repo_resolve_failed", result.Error,
			"conflict_id", strings.TrimSpace(update.ConflictID),
			"resolution", string(update.Resolution),
		)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) ApproveTranslation(ctx context.Context, translationID string, approvedAt time.Time) error {
	if err := r.db.WithContext(ctx).
		Model(&translationModel{}).
		Where("id = ?", strings.TrimSpace(translationID)).
		Updates(map[string]any{
			"status":      "approved",
			"approved_at": approvedAt.UTC(),
			"updated_at":  approvedAt.UTC(),
		}).Error; err != nil {
		return r.logError("arbiter_repo_approve_translation_failed", err,
			"translation_id", strings.TrimSpace(translationID),
		)
	}
	return nil
}

func (r *Repository) RejectTranslations(ctx context.Context, translationIDs []string, updatedAt time.Time) error {
	if len(translationIDs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Model(&translationModel{}).
		Where("id IN ?", translationIDs).
		Updates(map[string]any{
			"status":     "rejected",
			"updated_at": updatedAt.UTC(),
		}).Error; err != nil {
		return r.logError("arbiter_repo_reject_translations_failed", err,
			"translations", len(translationIDs),
		)
	}
	return nil
}

func (r *Repository) OverwriteTerm(ctx context.Context, termID, text, notes string, updatedAt time.Time) error {
	if err := r.db.WithContext(ctx).
		Model(&termModel{}).
		Where("id = ?", strings.TrimSpace(termID)).
		Updates(map[string]any{
			"translated_text":  text,
			"translation_notes": notes,
			"updated_at":       updatedAt.UTC(),
		}).Error; err != nil {
		return r.logError("arbiter_repo_overwrite_term_failed", err,
			"term_id", strings.TrimSpace(termID),
		)
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope events.Envelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("arbiter_repo_append_outbox_marshal_failed", err,
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
		return r.logError("arbiter_repo_append_outbox_failed", err,
			"event_id", row.OutboxID,
			"event_type", row.EventType,
		)
	}
	return nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "consensus/conflict-arbiter",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("conflict arbiter repository operation failed", fields...)
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

type conflictModel struct {
	ID                   string     `gorm:"column:id;primaryKey"`
	TermID               string     `gorm:"column:term_id"`
	Status               string     `gorm:"column:status"`
	Priority             int        `gorm:"column:priority"`
	Resolution           string     `gorm:"column:resolution"`
	WinningTranslationID string     `gorm:"column:winning_translation_id"`
	ResolvedBy           string     `gorm:"column:resolved_by"`
	ResolvedAt           *time.Time `gorm:"column:resolved_at"`
	CreatedAt            time.Time  `gorm:"column:created_at"`
	UpdatedAt            time.Time  `gorm:"column:updated_at"`
}

func (conflictModel) TableName() string {
	return "conflict_cases"
}

func conflictModelFromEntity(conflict entities.ConflictCase) conflictModel {
	return conflictModel{
		ID:                   strings.TrimSpace(conflict.ConflictID),
		TermID:               strings.TrimSpace(conflict.TermID),
		Status:               string(conflict.Status),
		Priority:             conflict.Priority,
		Resolution:           string(conflict.Resolution),
		WinningTranslationID: strings.TrimSpace(conflict.WinningTranslationID),
		ResolvedBy:           strings.TrimSpace(conflict.ResolvedBy),
		ResolvedAt:           normalizeOptionalTime(conflict.ResolvedAt),
		CreatedAt:            conflict.CreatedAt.UTC(),
		UpdatedAt:            conflict.UpdatedAt.UTC(),
	}
}

func (m conflictModel) toEntity() entities.ConflictCase {
	return entities.ConflictCase{
		ConflictID:           m.ID,
		TermID:               m.TermID,
		Status:               entities.ConflictStatus(m.Status),
		Priority:             m.Priority,
		Resolution:           entities.Resolution(m.Resolution),
		WinningTranslationID: m.WinningTranslationID,
		ResolvedBy:           m.ResolvedBy,
		ResolvedAt:           normalizeOptionalTime(m.ResolvedAt),
		CreatedAt:            m.CreatedAt.UTC(),
		UpdatedAt:            m.UpdatedAt.UTC(),
	}
}

type conflictMemberModel struct {
	ConflictID    string `gorm:"column:conflict_id;primaryKey"`
	TranslationID string `gorm:"column:translation_id;primaryKey"`
}

func (conflictMemberModel) TableName() string {
	return "conflict_translations"
}

type voteModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	ConflictID    string    `gorm:"column:conflict_id;uniqueIndex:idx_vote_identity"`
	VoterID       string    `gorm:"column:voter_id;uniqueIndex:idx_vote_identity"`
	VoteType      string    `gorm:"column:vote_type"`
	TranslationID string    `gorm:"column:translation_id"`
	Comment       string    `gorm:"column:comment"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (voteModel) TableName() string {
	return "committee_votes"
}

func voteModelFromEntity(vote entities.CommitteeVote) voteModel {
	return voteModel{
		ID:            strings.TrimSpace(vote.VoteID),
		ConflictID:    strings.TrimSpace(vote.ConflictID),
		VoterID:       strings.TrimSpace(vote.VoterID),
		VoteType:      string(vote.VoteType),
		TranslationID: strings.TrimSpace(vote.TranslationID),
		Comment:       strings.TrimSpace(vote.Comment),
		CreatedAt:     vote.CreatedAt.UTC(),
	}
}

func (m voteModel) toEntity() entities.CommitteeVote {
	return entities.CommitteeVote{
		VoteID:        m.ID,
		ConflictID:    m.ConflictID,
		VoterID:       m.VoterID,
		VoteType:      entities.VoteType(m.VoteType),
		TranslationID: m.TranslationID,
		Comment:       m.Comment,
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

type translationModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	TermID        string    `gorm:"column:term_id"`
	ContributorID string    `gorm:"column:contributor_id"`
	Text          string    `gorm:"column:text"`
	Notes         string    `gorm:"column:notes"`
	Status        string    `gorm:"column:status"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (translationModel) TableName() string {
	return "translations"
}

func (m translationModel) toRef() ports.TranslationRef {
	return ports.TranslationRef{
		TranslationID: m.ID,
		TermID:        m.TermID,
		ContributorID: m.ContributorID,
		Text:          m.Text,
		Notes:         m.Notes,
		Status:        m.Status,
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

type termModel struct {
	ID string `gorm:"column:id;primaryKey"`
}

func (termModel) TableName() string {
	return "terms"
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

func toTranslationRefs(rows []translationModel) []ports.TranslationRef {
	items := make([]ports.TranslationRef, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toRef())
	}
	return items
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

var _ ports.ConflictRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
