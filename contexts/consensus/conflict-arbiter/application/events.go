package application

import (
	"context"
	"time"

	"termbase/contexts/consensus/conflict-arbiter/domain/entities"
	"termbase/contexts/consensus/conflict-arbiter/ports"
	"termbase/internal/shared/events"
)

const sourceService = "conflict-arbiter"

func (s Service) appendConflictOpenedEvent(ctx context.Context, conflict entities.ConflictCase, translations int, occurredAt time.Time) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := events.New(eventID, events.TypeConflictOpened, sourceService,
		"conflict", conflict.ConflictID, occurredAt,
		events.ConflictOpened{
			ConflictID:   conflict.ConflictID,
			TermID:       conflict.TermID,
			Translations: translations,
			Priority:     conflict.Priority,
		})
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, envelope)
}

func (s Service) appendResolvedEvent(
	ctx context.Context,
	conflict entities.ConflictCase,
	outcome resolutionOutcome,
	resolvedBy string,
	contributors []string,
	occurredAt time.Time,
) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := events.New(eventID, events.TypeConflictResolved, sourceService,
		"conflict", conflict.ConflictID, occurredAt,
		events.ConflictResolved{
			ConflictID:              conflict.ConflictID,
			TermID:                  conflict.TermID,
			Resolution:              string(outcome.resolution),
			WinningTranslationID:    outcome.winnerID,
			ResolvedBy:              resolvedBy,
			ParticipantContributors: contributors,
		})
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, envelope)
}

func (s Service) appendTranslationApprovedEvent(ctx context.Context, winner ports.TranslationRef, occurredAt time.Time) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := events.New(eventID, events.TypeTranslationApproved, sourceService,
		"translation", winner.TranslationID, occurredAt,
		events.TranslationApproved{
			TranslationID: winner.TranslationID,
			ContributorID: winner.ContributorID,
			Points:        WinnerBonusPoints,
		})
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, envelope)
}

func (s Service) appendTranslationRejectedEvent(ctx context.Context, loser ports.TranslationRef, occurredAt time.Time) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := events.New(eventID, events.TypeTranslationRejected, sourceService,
		"translation", loser.TranslationID, occurredAt,
		events.TranslationRejected{
			TranslationID: loser.TranslationID,
			ContributorID: loser.ContributorID,
		})
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, envelope)
}
