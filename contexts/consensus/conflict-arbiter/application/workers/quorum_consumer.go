package workers

import (
	"context"
	"encoding/json"
	"log/slog"

	"termbase/contexts/consensus/conflict-arbiter/application"
	"termbase/internal/shared/events"
)

// QuorumConsumer watches translations that clear peer review and opens a
// conflict case when a term accumulates competing candidates.
type QuorumConsumer struct {
	Arbiter application.Service
	Logger  *slog.Logger
}

func (c QuorumConsumer) Handle(ctx context.Context, event events.Envelope) error {
	logger := application.ResolveLogger(c.Logger)
	if event.EventType != events.TypeReviewQuorumReached {
		return nil
	}
	var payload events.ReviewQuorumReached
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		logger.Error("quorum event decode failed",
			"event", "arbiter_quorum_event_decode_failed",
			"module", "consensus/conflict-arbiter",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}

	conflict, opened, err := c.Arbiter.DetectConflict(ctx, payload.TermID)
	if err != nil {
		logger.Error("conflict detection failed",
			"event", "arbiter_conflict_detection_failed",
			"module", "consensus/conflict-arbiter",
			"layer", "worker",
			"term_id", payload.TermID,
			"error", err.Error(),
		)
		return err
	}
	if opened {
		logger.Info("conflict detection opened case",
			"event", "arbiter_conflict_detection_opened",
			"module", "consensus/conflict-arbiter",
			"layer", "worker",
			"conflict_id", conflict.ConflictID,
			"term_id", payload.TermID,
		)
	}
	return nil
}
