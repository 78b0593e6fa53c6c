package ports

import (
	"context"
	"time"

	"termbase/contexts/consensus/conflict-arbiter/domain/entities"
	"termbase/internal/shared/events"
)

// TranslationRef is the arbiter's read/write view of a translation row owned
// by the wider platform. The arbiter only flips statuses and reads content.
type TranslationRef struct {
	TranslationID string
	TermID        string
	ContributorID string
	Text          string
	Notes         string
	Status        string
	CreatedAt     time.Time
}

// ResolutionUpdate is the terminal write for a conflict case. Repositories
// apply it only while the case is still in_review.
type ResolutionUpdate struct {
	ConflictID           string
	Resolution           entities.Resolution
	WinningTranslationID string
	ResolvedBy           string
	ResolvedAt           time.Time
}

type ConflictRepository interface {
	GetConflict(ctx context.Context, conflictID string) (entities.ConflictCase, error)
	GetOpenConflictByTerm(ctx context.Context, termID string) (entities.ConflictCase, bool, error)
	// CreateConflict persists the case together with its member translations.
	CreateConflict(ctx context.Context, conflict entities.ConflictCase, memberIDs []string) error
	// MarkInReview moves a pending case to in_review; reports whether the
	// write took effect.
	MarkInReview(ctx context.Context, conflictID string, updatedAt time.Time) (bool, error)
	// InsertVote fails with ErrDuplicateVote when (conflict_id, voter_id)
	// already exists, including under concurrent submission.
	InsertVote(ctx context.Context, vote entities.CommitteeVote) error
	ListVotes(ctx context.Context, conflictID string) ([]entities.CommitteeVote, error)
	// ListMembers returns the competing translations ordered by creation
	// time, which fixes the resolution tie-break.
	ListMembers(ctx context.Context, conflictID string) ([]TranslationRef, error)
	GetTranslation(ctx context.Context, translationID string) (TranslationRef, error)
	ListLiveTranslationsByTerm(ctx context.Context, termID string) ([]TranslationRef, error)
	// Resolve applies the terminal update only while the case status is
	// in_review and reports whether the write took effect.
	Resolve(ctx context.Context, update ResolutionUpdate) (bool, error)
	ApproveTranslation(ctx context.Context, translationID string, approvedAt time.Time) error
	RejectTranslations(ctx context.Context, translationIDs []string, updatedAt time.Time) error
	// OverwriteTerm replaces the term's public content with the winner's.
	OverwriteTerm(ctx context.Context, termID, text, notes string, updatedAt time.Time) error
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
