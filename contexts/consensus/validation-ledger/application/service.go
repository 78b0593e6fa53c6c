package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"termbase/contexts/consensus/validation-ledger/domain/entities"
	domainerrors "termbase/contexts/consensus/validation-ledger/domain/errors"
	"termbase/contexts/consensus/validation-ledger/ports"
	"termbase/internal/shared/events"
)

const (
	// ValidatorAwardPoints is the fixed award for recording a validation.
	ValidatorAwardPoints = 5

	reviewQuorumMinimum = 3
	reviewApprovalRatio = 0.70

	sourceService = "validation-ledger"
)

// SubmitValidationCommand is the write-model input for one peer validation.
type SubmitValidationCommand struct {
	TranslationID string
	ValidatorID   string
	Rating        int
	Decision      entities.ValidationDecision
	Comment       string
}

type SubmitValidationResult struct {
	Validation    entities.Validation
	Summary       entities.Summary
	QuorumReached bool
}

// Service records peer validations and drives the review-quorum gate: once a
// translation holds at least three validations with a 70% approval ratio it
// moves to pending_validation and stays there regardless of later ratios.
type Service struct {
	Repo   ports.ValidationRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (s Service) SubmitValidation(ctx context.Context, cmd SubmitValidationCommand) (SubmitValidationResult, error) {
	logger := ResolveLogger(s.Logger)
	cmd.TranslationID = strings.TrimSpace(cmd.TranslationID)
	cmd.ValidatorID = strings.TrimSpace(cmd.ValidatorID)
	cmd.Comment = strings.TrimSpace(cmd.Comment)

	if cmd.TranslationID == "" || cmd.ValidatorID == "" {
		return SubmitValidationResult{}, domainerrors.ErrInvalidValidationInput
	}
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return SubmitValidationResult{}, domainerrors.ErrInvalidRating
	}
	if !cmd.Decision.Valid() {
		return SubmitValidationResult{}, domainerrors.ErrInvalidDecision
	}

	translation, err := s.Repo.GetTranslation(ctx, cmd.TranslationID)
	if err != nil {
		return SubmitValidationResult{}, err
	}
	if translation.ContributorID == cmd.ValidatorID {
		logger.Warn("self validation rejected",
			"event", "validation_self_rejected",
			"module", "consensus/validation-ledger",
			"layer", "application",
			"translation_id", cmd.TranslationID,
			"validator_id", cmd.ValidatorID,
		)
		return SubmitValidationResult{}, domainerrors.ErrSelfValidation
	}

	now := s.now()
	validationID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return SubmitValidationResult{}, err
	}
	validation := entities.Validation{
		ValidationID:  validationID,
		TranslationID: cmd.TranslationID,
		ValidatorID:   cmd.ValidatorID,
		Rating:        cmd.Rating,
		Decision:      cmd.Decision,
		Comment:       cmd.Comment,
		CreatedAt:     now,
	}
	if err := s.Repo.InsertValidation(ctx, validation); err != nil {
		return SubmitValidationResult{}, err
	}
	if err := s.Repo.IncrementDecisionCounter(ctx, cmd.TranslationID, cmd.Decision, now); err != nil {
		return SubmitValidationResult{}, err
	}

	if err := s.appendRecordedEvent(ctx, validation, now); err != nil {
		return SubmitValidationResult{}, err
	}

	summary, err := s.Repo.Summarize(ctx, cmd.TranslationID)
	if err != nil {
		return SubmitValidationResult{}, err
	}

	result := SubmitValidationResult{Validation: validation, Summary: summary}
	if summary.Total >= reviewQuorumMinimum && summary.ApprovalRatio() >= reviewApprovalRatio {
		// One-way gate: only a pending_review translation moves forward, and a
		// ratio that later drops never reverts the status.
		applied, err := s.Repo.TransitionStatus(ctx,
			cmd.TranslationID,
			entities.TranslationStatusPendingReview,
			entities.TranslationStatusPendingValidation,
			now,
		)
		if err != nil {
			return SubmitValidationResult{}, err
		}
		if applied {
			result.QuorumReached = true
			if err := s.appendQuorumEvent(ctx, translation, summary, now); err != nil {
				return SubmitValidationResult{}, err
			}
			logger.Info("translation reached review quorum",
				"event", "validation_review_quorum_reached",
				"module", "consensus/validation-ledger",
				"layer", "application",
				"translation_id", cmd.TranslationID,
				"validations", summary.Total,
				"approval_ratio", summary.ApprovalRatio(),
			)
		}
	}

	logger.Info("validation recorded",
		"event", "validation_recorded",
		"module", "consensus/validation-ledger",
		"layer", "application",
		"validation_id", validation.ValidationID,
		"translation_id", cmd.TranslationID,
		"validator_id", cmd.ValidatorID,
		"decision", string(cmd.Decision),
		"rating", cmd.Rating,
	)
	return result, nil
}

func (s Service) ListValidations(ctx context.Context, translationID string) ([]entities.Validation, error) {
	translationID = strings.TrimSpace(translationID)
	if translationID == "" {
		return nil, domainerrors.ErrInvalidValidationInput
	}
	return s.Repo.ListValidations(ctx, translationID)
}

func (s Service) Summarize(ctx context.Context, translationID string) (entities.Summary, error) {
	translationID = strings.TrimSpace(translationID)
	if translationID == "" {
		return entities.Summary{}, domainerrors.ErrInvalidValidationInput
	}
	return s.Repo.Summarize(ctx, translationID)
}

func (s Service) appendRecordedEvent(ctx context.Context, validation entities.Validation, occurredAt time.Time) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := events.New(eventID, events.TypeValidationRecorded, sourceService,
		"validation", validation.ValidationID, occurredAt,
		events.ValidationRecorded{
			TranslationID: validation.TranslationID,
			ValidatorID:   validation.ValidatorID,
			Decision:      string(validation.Decision),
			Rating:        validation.Rating,
			Points:        ValidatorAwardPoints,
		})
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, envelope)
}

func (s Service) appendQuorumEvent(ctx context.Context, translation entities.Translation, summary entities.Summary, occurredAt time.Time) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := events.New(eventID, events.TypeReviewQuorumReached, sourceService,
		"translation", translation.TranslationID, occurredAt,
		events.ReviewQuorumReached{
			TranslationID: translation.TranslationID,
			TermID:        translation.TermID,
			ContributorID: translation.ContributorID,
			Validations:   summary.Total,
			ApprovalRatio: summary.ApprovalRatio(),
		})
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, envelope)
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
