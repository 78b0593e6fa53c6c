package ports

import (
	"context"
	"time"

	"termbase/contexts/consensus/validation-ledger/domain/entities"
	"termbase/internal/shared/events"
)

type ValidationRepository interface {
	GetTranslation(ctx context.Context, translationID string) (entities.Translation, error)
	// InsertValidation persists one validation and fails with
	// ErrDuplicateValidation when the (translation_id, validator_id) pair
	// already exists, including under concurrent submission.
	InsertValidation(ctx context.Context, validation entities.Validation) error
	ListValidations(ctx context.Context, translationID string) ([]entities.Validation, error)
	Summarize(ctx context.Context, translationID string) (entities.Summary, error)
	IncrementDecisionCounter(ctx context.Context, translationID string, decision entities.ValidationDecision, updatedAt time.Time) error
	// TransitionStatus applies the status change only when the translation is
	// still in fromStatus and reports whether the write took effect.
	TransitionStatus(ctx context.Context, translationID string, fromStatus, toStatus entities.TranslationStatus, updatedAt time.Time) (bool, error)
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope events.Envelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
