package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"termbase/contexts/governance/orchestrator/domain/entities"
	"termbase/contexts/governance/orchestrator/ports"
	"termbase/internal/shared/events"
)

const consumerGroup = "governance-orchestrator"

// EffectsService applies the cross-cutting side of every governance
// decision: points ledger entries and notification records. Each event is
// reserved in the dedup store first, so a redelivered event applies its
// effects exactly once. Effect failures never reach back into the engine
// module that made the decision.
type EffectsService struct {
	Dedup  ports.DedupStore
	Repo   ports.EffectsRepository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// Handle routes one published event to its effects. Unknown event types are
// skipped without reserving, so a later consumer version can pick them up.
func (s EffectsService) Handle(ctx context.Context, event events.Envelope) error {
	logger := ResolveLogger(s.Logger)

	var apply func(context.Context, events.Envelope) error
	switch event.EventType {
	case events.TypeValidationRecorded:
		apply = s.applyValidationRecorded
	case events.TypeTranslationApproved:
		apply = s.applyTranslationApproved
	case events.TypeTranslationRejected:
		apply = s.applyTranslationRejected
	case events.TypeConflictResolved:
		apply = s.applyConflictResolved
	case events.TypeUserStruck:
		apply = s.applyUserStruck
	case events.TypeUserReinstated:
		apply = s.applyUserReinstated
	case events.TypeUserPromoted:
		apply = s.applyUserPromoted
	default:
		return nil
	}

	reserved, err := s.Dedup.Reserve(ctx, consumerGroup, event.EventID)
	if err != nil {
		return err
	}
	if !reserved {
		logger.Debug("event already processed",
			"event", "orchestrator_event_duplicate",
			"module", "governance/orchestrator",
			"layer", "application",
			"event_id", event.EventID,
			"event_type", event.EventType,
		)
		return nil
	}

	if err := apply(ctx, event); err != nil {
		logger.Error("effect application failed",
			"event", "orchestrator_effect_failed",
			"module", "governance/orchestrator",
			"layer", "application",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return err
	}

	logger.Info("effects applied",
		"event", "orchestrator_effects_applied",
		"module", "governance/orchestrator",
		"layer", "application",
		"event_id", event.EventID,
		"event_type", event.EventType,
	)
	return nil
}

func (s EffectsService) applyValidationRecorded(ctx context.Context, event events.Envelope) error {
	var payload events.ValidationRecorded
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}
	return s.awardPoints(ctx, payload.ValidatorID, payload.Points, "validation_recorded", event.EventID)
}

func (s EffectsService) applyTranslationApproved(ctx context.Context, event events.Envelope) error {
	var payload events.TranslationApproved
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}
	if err := s.awardPoints(ctx, payload.ContributorID, payload.Points, "translation_approved", event.EventID); err != nil {
		return err
	}
	return s.notify(ctx, payload.ContributorID, entities.NotificationTranslationApproved, payload.TranslationID, event.EventID)
}

func (s EffectsService) applyTranslationRejected(ctx context.Context, event events.Envelope) error {
	var payload events.TranslationRejected
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}
	return s.notify(ctx, payload.ContributorID, entities.NotificationTranslationRejected, payload.TranslationID, event.EventID)
}

func (s EffectsService) applyConflictResolved(ctx context.Context, event events.Envelope) error {
	var payload events.ConflictResolved
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}
	for _, contributorID := range payload.ParticipantContributors {
		if err := s.notify(ctx, contributorID, entities.NotificationConflictResolved, payload.ConflictID, event.EventID); err != nil {
			return err
		}
	}
	return nil
}

func (s EffectsService) applyUserStruck(ctx context.Context, event events.Envelope) error {
	var payload events.UserStruck
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}
	return s.notify(ctx, payload.UserID, entities.NotificationUserStruck, payload.StrikeID, event.EventID)
}

func (s EffectsService) applyUserReinstated(ctx context.Context, event events.Envelope) error {
	var payload events.UserReinstated
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}
	return s.notify(ctx, payload.UserID, entities.NotificationUserReinstated, payload.UserID, event.EventID)
}

func (s EffectsService) applyUserPromoted(ctx context.Context, event events.Envelope) error {
	var payload events.UserPromoted
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}
	if err := s.awardPoints(ctx, payload.UserID, payload.BonusPoints, "user_promoted", event.EventID); err != nil {
		return err
	}
	return s.notify(ctx, payload.UserID, entities.NotificationUserPromoted, payload.UserID, event.EventID)
}

func (s EffectsService) awardPoints(ctx context.Context, userID string, points int, reason, eventID string) error {
	if points <= 0 {
		return nil
	}
	entryID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	return s.Repo.AppendPointsEntry(ctx, entities.PointsEntry{
		EntryID:   entryID,
		UserID:    userID,
		Points:    points,
		Reason:    reason,
		EventID:   eventID,
		CreatedAt: s.now(),
	})
}

func (s EffectsService) notify(ctx context.Context, userID string, kind entities.NotificationKind, entityID, eventID string) error {
	notificationID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	return s.Repo.InsertNotification(ctx, entities.Notification{
		NotificationID: notificationID,
		UserID:         userID,
		Kind:           kind,
		EntityID:       entityID,
		EventID:        eventID,
		CreatedAt:      s.now(),
	})
}

func (s EffectsService) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
