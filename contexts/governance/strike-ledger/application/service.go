package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"termbase/contexts/governance/strike-ledger/domain/entities"
	domainerrors "termbase/contexts/governance/strike-ledger/domain/errors"
	"termbase/contexts/governance/strike-ledger/ports"
	"termbase/internal/shared/events"
)

const (
	// BanDuration is the suspension window applied on the third active strike.
	BanDuration = 7 * 24 * time.Hour

	sourceService = "strike-ledger"
)

type CreateStrikeCommand struct {
	UserID    string
	AdminID   string
	Reason    entities.StrikeReason
	Detail    string
	Severity  entities.Severity
	ExpiresAt *time.Time
}

type CreateStrikeResult struct {
	Strike      entities.Strike
	StrikeCount int
	Banned      bool
}

type DeactivateStrikeResult struct {
	Strike      entities.Strike
	ActiveCount int
	Reinstated  bool
}

// Service keeps the strike ledger: it escalates repeated violations into a
// suspension at the third active strike and lifts the ban when deactivation
// drops a banned user back below the threshold.
type Service struct {
	Repo   ports.StrikeRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// CreateStrike always succeeds for well-formed input; authorization is the
// caller's responsibility.
func (s Service) CreateStrike(ctx context.Context, cmd CreateStrikeCommand) (CreateStrikeResult, error) {
	logger := ResolveLogger(s.Logger)
	cmd.UserID = strings.TrimSpace(cmd.UserID)
	cmd.AdminID = strings.TrimSpace(cmd.AdminID)
	cmd.Detail = strings.TrimSpace(cmd.Detail)

	if cmd.UserID == "" || cmd.AdminID == "" || !cmd.Reason.Valid() {
		return CreateStrikeResult{}, domainerrors.ErrInvalidStrikeInput
	}
	if cmd.Severity == "" {
		cmd.Severity = entities.SeverityMedium
	}
	if !cmd.Severity.Valid() {
		return CreateStrikeResult{}, domainerrors.ErrInvalidStrikeInput
	}

	// Count before insert so newCount is this strike's ordinal among the
	// user's active strikes.
	activeCount, err := s.Repo.CountActiveStrikes(ctx, cmd.UserID)
	if err != nil {
		return CreateStrikeResult{}, err
	}

	now := s.now()
	strikeID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return CreateStrikeResult{}, err
	}
	strike := entities.Strike{
		StrikeID:  strikeID,
		UserID:    cmd.UserID,
		AdminID:   cmd.AdminID,
		Reason:    cmd.Reason,
		Detail:    cmd.Detail,
		Severity:  cmd.Severity,
		IsActive:  true,
		ExpiresAt: cmd.ExpiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.InsertStrike(ctx, strike); err != nil {
		return CreateStrikeResult{}, err
	}

	newCount := activeCount + 1
	banned := false
	if newCount >= entities.SuspensionThreshold {
		reason := string(cmd.Reason)
		if cmd.Detail != "" {
			reason = reason + ": " + cmd.Detail
		}
		// ApplyBan is conditional on not-banned, so a fourth strike never
		// extends the existing 7-day window.
		if _, err := s.Repo.ApplyBan(ctx, cmd.UserID, reason, now, now.Add(BanDuration)); err != nil {
			return CreateStrikeResult{}, err
		}
		banned = true
	}

	if err := s.appendStruckEvent(ctx, strike, newCount, banned, now); err != nil {
		return CreateStrikeResult{}, err
	}

	logger.Info("strike recorded",
		"event", "strike_recorded",
		"module", "governance/strike-ledger",
		"layer", "application",
		"strike_id", strike.StrikeID,
		"user_id", cmd.UserID,
		"admin_id", cmd.AdminID,
		"reason", string(cmd.Reason),
		"strike_count", newCount,
		"banned", banned,
	)
	return CreateStrikeResult{Strike: strike, StrikeCount: newCount, Banned: banned}, nil
}

// DeactivateStrike is the single unban path: when deactivation drops a
// banned user below the threshold the ban lifts and a reinstatement event
// fires. Deactivating an already-inactive strike is a no-op.
func (s Service) DeactivateStrike(ctx context.Context, strikeID, adminID string) (DeactivateStrikeResult, error) {
	logger := ResolveLogger(s.Logger)
	strikeID = strings.TrimSpace(strikeID)
	if strikeID == "" {
		return DeactivateStrikeResult{}, domainerrors.ErrInvalidStrikeInput
	}

	strike, err := s.Repo.GetStrike(ctx, strikeID)
	if err != nil {
		return DeactivateStrikeResult{}, err
	}

	now := s.now()
	applied, err := s.Repo.DeactivateStrike(ctx, strikeID, now)
	if err != nil {
		return DeactivateStrikeResult{}, err
	}
	if applied {
		strike.IsActive = false
		strike.UpdatedAt = now
	}

	activeCount, err := s.Repo.CountActiveStrikes(ctx, strike.UserID)
	if err != nil {
		return DeactivateStrikeResult{}, err
	}

	result := DeactivateStrikeResult{Strike: strike, ActiveCount: activeCount}
	if applied && activeCount < entities.SuspensionThreshold {
		lifted, err := s.Repo.LiftBan(ctx, strike.UserID, now)
		if err != nil {
			return DeactivateStrikeResult{}, err
		}
		if lifted {
			result.Reinstated = true
			if err := s.appendReinstatedEvent(ctx, strike.UserID, now); err != nil {
				return DeactivateStrikeResult{}, err
			}
			logger.Info("user reinstated",
				"event", "strike_user_reinstated",
				"module", "governance/strike-ledger",
				"layer", "application",
				"user_id", strike.UserID,
				"strike_id", strikeID,
				"admin_id", strings.TrimSpace(adminID),
				"active_strikes", activeCount,
			)
		}
	}
	return result, nil
}

func (s Service) ListStrikes(ctx context.Context, userID string) ([]entities.Strike, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domainerrors.ErrInvalidStrikeInput
	}
	return s.Repo.ListStrikes(ctx, userID)
}

func (s Service) appendStruckEvent(ctx context.Context, strike entities.Strike, strikeCount int, banned bool, occurredAt time.Time) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := events.New(eventID, events.TypeUserStruck, sourceService,
		"user", strike.UserID, occurredAt,
		events.UserStruck{
			UserID:      strike.UserID,
			StrikeID:    strike.StrikeID,
			Reason:      string(strike.Reason),
			StrikeCount: strikeCount,
			Banned:      banned,
		})
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, envelope)
}

func (s Service) appendReinstatedEvent(ctx context.Context, userID string, occurredAt time.Time) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := events.New(eventID, events.TypeUserReinstated, sourceService,
		"user", userID, occurredAt,
		events.UserReinstated{UserID: userID})
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, envelope)
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
