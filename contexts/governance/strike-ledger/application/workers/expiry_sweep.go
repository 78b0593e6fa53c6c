package workers

import (
	"context"
	"log/slog"
	"time"

	"termbase/contexts/governance/strike-ledger/application"
	"termbase/contexts/governance/strike-ledger/ports"
)

const sweepActor = "system:strike-expiry-sweep"

// ExpirySweep deactivates active strikes whose expiry has passed. It funnels
// every expired strike through the same deactivation path as an admin call,
// so threshold recomputation and reinstatement come for free. Idempotent:
// an already-deactivated strike is skipped on the next run.
type ExpirySweep struct {
	Strikes   application.Service
	Repo      ports.StrikeRepository
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (w ExpirySweep) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(w.Logger)
	limit := w.BatchSize
	if limit <= 0 {
		limit = 100
	}

	now := time.Now().UTC()
	if w.Clock != nil {
		now = w.Clock.Now().UTC()
	}

	expired, err := w.Repo.ListExpiredActiveStrikes(ctx, now, limit)
	if err != nil {
		logger.Error("strike expiry sweep list failed",
			"event", "strike_expiry_sweep_list_failed",
			"module", "governance/strike-ledger",
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	deactivated := 0
	for _, strike := range expired {
		if _, err := w.Strikes.DeactivateStrike(ctx, strike.StrikeID, sweepActor); err != nil {
			logger.Error("strike expiry sweep deactivate failed",
				"event", "strike_expiry_sweep_deactivate_failed",
				"module", "governance/strike-ledger",
				"layer", "worker",
				"strike_id", strike.StrikeID,
				"user_id", strike.UserID,
				"error", err.Error(),
			)
			return deactivated, err
		}
		deactivated++
	}

	logger.Info("strike expiry sweep completed",
		"event", "strike_expiry_sweep_completed",
		"module", "governance/strike-ledger",
		"layer", "worker",
		"deactivated", deactivated,
	)
	return deactivated, nil
}
