package workers

import (
	"context"
	"encoding/json"
	"log/slog"

	"termbase/contexts/governance/promotion-evaluator/application"
	"termbase/internal/shared/events"
)

// ApprovalConsumer re-evaluates a contributor's tier every time one of their
// translations is approved. Evaluation is idempotent, so replays are safe.
type ApprovalConsumer struct {
	Evaluator application.Service
	Logger    *slog.Logger
}

func (c ApprovalConsumer) Handle(ctx context.Context, event events.Envelope) error {
	logger := application.ResolveLogger(c.Logger)
	if event.EventType != events.TypeTranslationApproved {
		return nil
	}
	var payload events.TranslationApproved
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		logger.Error("approval event decode failed",
			"event", "promotion_approval_event_decode_failed",
			"module", "governance/promotion-evaluator",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}

	result, err := c.Evaluator.Evaluate(ctx, payload.ContributorID)
	if err != nil {
		logger.Error("promotion evaluation failed",
			"event", "promotion_evaluation_failed",
			"module", "governance/promotion-evaluator",
			"layer", "worker",
			"user_id", payload.ContributorID,
			"error", err.Error(),
		)
		return err
	}
	if result.Promoted {
		logger.Info("promotion evaluation promoted user",
			"event", "promotion_evaluation_promoted",
			"module", "governance/promotion-evaluator",
			"layer", "worker",
			"user_id", payload.ContributorID,
			"to_role", string(result.ToRole),
		)
	}
	return nil
}
