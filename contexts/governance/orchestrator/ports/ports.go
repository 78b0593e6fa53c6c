package ports

import (
	"context"
	"time"

	"termbase/contexts/governance/orchestrator/domain/entities"
	"termbase/internal/shared/events"
	"termbase/internal/shared/outbox"
)

// OutboxRepository reads the shared outbox table every engine module writes
// into and marks rows after bus publish.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]outbox.Message, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event events.Envelope) error
}

// DedupStore reserves an event for a consumer group. Reserve reports false
// when the event was already processed, which is how effects stay
// exactly-once under relay redelivery.
type DedupStore interface {
	Reserve(ctx context.Context, consumerGroup, eventID string) (bool, error)
}

type EffectsRepository interface {
	AppendPointsEntry(ctx context.Context, entry entities.PointsEntry) error
	InsertNotification(ctx context.Context, notification entities.Notification) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
