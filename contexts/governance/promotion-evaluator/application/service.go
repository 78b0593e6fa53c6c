package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"termbase/contexts/governance/promotion-evaluator/domain/entities"
	domainerrors "termbase/contexts/governance/promotion-evaluator/domain/errors"
	"termbase/contexts/governance/promotion-evaluator/ports"
	"termbase/internal/shared/events"
)

const sourceService = "promotion-evaluator"

type EvaluateResult struct {
	Promoted    bool
	FromRole    entities.Role
	ToRole      entities.Role
	BonusPoints int
}

// Service re-derives promotion eligibility from cumulative metrics on every
// evaluation. It holds no counters of its own, so replayed or concurrent
// approval events converge on the same outcome.
type Service struct {
	Repo   ports.PromotionRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// Evaluate promotes the user one tier when the threshold from their current
// role is met. Tiers are never skipped: a user clearing both thresholds in
// one burst is promoted once per evaluation.
func (s Service) Evaluate(ctx context.Context, userID string) (EvaluateResult, error) {
	logger := ResolveLogger(s.Logger)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return EvaluateResult{}, domainerrors.ErrInvalidPromotionInput
	}

	metrics, err := s.Repo.GetMetrics(ctx, userID)
	if err != nil {
		return EvaluateResult{}, err
	}

	threshold, ok := entities.ThresholdFor(metrics.Role)
	if !ok {
		// Committee members and above have no automatic next tier.
		return EvaluateResult{FromRole: metrics.Role, ToRole: metrics.Role}, nil
	}
	if !threshold.Met(metrics) {
		return EvaluateResult{FromRole: metrics.Role, ToRole: metrics.Role}, nil
	}

	now := s.now()
	// Conditional on the current role, so two evaluators racing on the same
	// user produce exactly one promotion.
	promoted, err := s.Repo.PromoteRole(ctx, userID, metrics.Role, threshold.Target, now)
	if err != nil {
		return EvaluateResult{}, err
	}
	if !promoted {
		return EvaluateResult{FromRole: metrics.Role, ToRole: metrics.Role}, nil
	}

	if err := s.appendPromotedEvent(ctx, userID, metrics.Role, threshold, now); err != nil {
		return EvaluateResult{}, err
	}

	logger.Info("user promoted",
		"event", "promotion_applied",
		"module", "governance/promotion-evaluator",
		"layer", "application",
		"user_id", userID,
		"from_role", string(metrics.Role),
		"to_role", string(threshold.Target),
		"bonus_points", threshold.BonusPoints,
	)
	return EvaluateResult{
		Promoted:    true,
		FromRole:    metrics.Role,
		ToRole:      threshold.Target,
		BonusPoints: threshold.BonusPoints,
	}, nil
}

// Progress reports how close a user stands to the next tier. Read-only; it
// never triggers a promotion.
func (s Service) Progress(ctx context.Context, userID string) (entities.Progress, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return entities.Progress{}, domainerrors.ErrInvalidPromotionInput
	}

	metrics, err := s.Repo.GetMetrics(ctx, userID)
	if err != nil {
		return entities.Progress{}, err
	}

	progress := entities.Progress{
		UserID:      userID,
		CurrentRole: metrics.Role,
		TargetRole:  metrics.Role,
	}
	threshold, ok := entities.ThresholdFor(metrics.Role)
	if !ok {
		return progress, nil
	}

	progress.TargetRole = threshold.Target
	progress.Eligible = threshold.Met(metrics)
	progress.Criteria = []entities.Criterion{
		criterion("approved_translations", float64(metrics.ApprovedTranslations), float64(threshold.MinApproved)),
		criterion("approval_rate", metrics.ApprovalRate(), threshold.MinApprovalRate),
		criterion("level", float64(metrics.Level), float64(threshold.MinLevel)),
	}
	if threshold.MinValidations > 0 {
		progress.Criteria = append(progress.Criteria,
			criterion("validations_performed", float64(metrics.ValidationsPerformed), float64(threshold.MinValidations)))
	}
	return progress, nil
}

func criterion(name string, current, required float64) entities.Criterion {
	percent := 100.0
	if required > 0 {
		percent = current / required * 100
		if percent > 100 {
			percent = 100
		}
	}
	return entities.Criterion{Name: name, Current: current, Required: required, Percent: percent}
}

func (s Service) appendPromotedEvent(ctx context.Context, userID string, from entities.Role, threshold entities.Threshold, occurredAt time.Time) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := events.New(eventID, events.TypeUserPromoted, sourceService,
		"user", userID, occurredAt,
		events.UserPromoted{
			UserID:      userID,
			FromRole:    string(from),
			ToRole:      string(threshold.Target),
			BonusPoints: threshold.BonusPoints,
		})
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
