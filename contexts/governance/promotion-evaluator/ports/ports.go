package ports

import (
	"context"
	"time"

	"termbase/contexts/governance/promotion-evaluator/domain/entities"
	"termbase/internal/shared/events"
)

type PromotionRepository interface {
	GetMetrics(ctx context.Context, userID string) (entities.Metrics, error)
	// PromoteRole upgrades the role only while the user still holds fromRole
	// and reports whether the write took effect. This keeps Evaluate
	// idempotent under concurrent approval events.
	PromoteRole(ctx context.Context, userID string, fromRole, toRole entities.Role, promotedAt time.Time) (bool, error)
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
