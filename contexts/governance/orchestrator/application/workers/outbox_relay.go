package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"termbase/contexts/governance/orchestrator/application"
	"termbase/contexts/governance/orchestrator/ports"
	"termbase/internal/shared/events"
)

// OutboxRelay publishes persisted outbox rows to the event bus. Rows are
// marked published only after the publish succeeds; the relay stops on the
// first failure so the next cycle reprocesses remaining rows safely.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("outbox list failed",
			"event", "orchestrator_outbox_list_failed",
			"module", "governance/orchestrator",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(pending) == 0 {
		logger.Debug("outbox relay found no pending rows",
			"event", "orchestrator_outbox_relay_noop",
			"module", "governance/orchestrator",
			"layer", "worker",
			"batch_size", limit,
		)
		return nil
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		var event events.Envelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("outbox decode failed",
				"event", "orchestrator_outbox_decode_failed",
				"module", "governance/orchestrator",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
		topic := event.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("outbox publish failed",
				"event", "orchestrator_outbox_publish_failed",
				"module", "governance/orchestrator",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_id", event.EventID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			logger.Error("outbox mark published failed",
				"event", "orchestrator_outbox_mark_published_failed",
				"module", "governance/orchestrator",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	logger.Info("outbox relay cycle completed",
		"event", "orchestrator_outbox_relay_completed",
		"module", "governance/orchestrator",
		"layer", "worker",
		"published_count", len(pending),
	)
	return nil
}
