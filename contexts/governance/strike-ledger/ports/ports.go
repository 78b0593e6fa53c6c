package ports

import (
	"context"
	"time"

	"termbase/contexts/governance/strike-ledger/domain/entities"
	"termbase/internal/shared/events"
)

type StrikeRepository interface {
	InsertStrike(ctx context.Context, strike entities.Strike) error
	GetStrike(ctx context.Context, strikeID string) (entities.Strike, error)
	ListStrikes(ctx context.Context, userID string) ([]entities.Strike, error)
	CountActiveStrikes(ctx context.Context, userID string) (int, error)
	// DeactivateStrike flips is_active only when the strike is still active
	// and reports whether the write took effect.
	DeactivateStrike(ctx context.Context, strikeID string, updatedAt time.Time) (bool, error)
	ListExpiredActiveStrikes(ctx context.Context, now time.Time, limit int) ([]entities.Strike, error)
	GetBanState(ctx context.Context, userID string) (entities.BanState, bool, error)
	// ApplyBan suspends the user only when not already banned; re-applying
	// never extends the existing ban window.
	ApplyBan(ctx context.Context, userID, reason string, bannedAt, expiresAt time.Time) (bool, error)
	// LiftBan reinstates the user only when currently banned.
	LiftBan(ctx context.Context, userID string, updatedAt time.Time) (bool, error)
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
