package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	conflictarbiter "termbase/contexts/consensus/conflict-arbiter"
	arbiterpostgres "termbase/contexts/consensus/conflict-arbiter/adapters/postgres"
	validationledger "termbase/contexts/consensus/validation-ledger"
	validationpostgres "termbase/contexts/consensus/validation-ledger/adapters/postgres"
	orchestrator "termbase/contexts/governance/orchestrator"
	orchestratorpostgres "termbase/contexts/governance/orchestrator/adapters/postgres"
	promotionevaluator "termbase/contexts/governance/promotion-evaluator"
	promotionpostgres "termbase/contexts/governance/promotion-evaluator/adapters/postgres"
	strikeledger "termbase/contexts/governance/strike-ledger"
	strikepostgres "termbase/contexts/governance/strike-ledger/adapters/postgres"
	"termbase/internal/platform/config"
	"termbase/internal/platform/db"
	"termbase/internal/platform/messaging"
	"termbase/internal/shared/events"

	"github.com/robfig/cron/v3"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

// Engine groups the five governance modules behind one handle. Callers get
// the application services; wiring stays in here.
type Engine struct {
	Validation validationledger.Module
	Arbiter    conflictarbiter.Module
	Strikes    strikeledger.Module
	Promotion  promotionevaluator.Module
	Effects    orchestrator.Module
}

type WorkerApp struct {
	engine       Engine
	bus          *messaging.Bus
	postgres     *db.Postgres
	cfg          config.Config
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	bus := messaging.NewBus(logger)

	validationRepo := validationpostgres.NewRepository(pg.DB, logger)
	validation := validationledger.NewModule(validationledger.Dependencies{
		Repo:   validationRepo,
		Outbox: validationRepo,
		Clock:  validationpostgres.SystemClock{},
		IDGen:  validationpostgres.UUIDGenerator{},
		Logger: logger,
	})

	arbiterRepo := arbiterpostgres.NewRepository(pg.DB, logger)
	arbiter := conflictarbiter.NewModule(conflictarbiter.Dependencies{
		Repo:   arbiterRepo,
		Outbox: arbiterRepo,
		Clock:  arbiterpostgres.SystemClock{},
		IDGen:  arbiterpostgres.UUIDGenerator{},
		Logger: logger,
	})

	strikeRepo := strikepostgres.NewRepository(pg.DB, logger)
	strikes := strikeledger.NewModule(strikeledger.Dependencies{
		Repo:   strikeRepo,
		Outbox: strikeRepo,
		Clock:  strikepostgres.SystemClock{},
		IDGen:  strikepostgres.UUIDGenerator{},
		Logger: logger,
	})

	promotionRepo := promotionpostgres.NewRepository(pg.DB, logger)
	promotion := promotionevaluator.NewModule(promotionevaluator.Dependencies{
		Repo:   promotionRepo,
		Outbox: promotionRepo,
		Clock:  promotionpostgres.SystemClock{},
		IDGen:  promotionpostgres.UUIDGenerator{},
		Logger: logger,
	})

	orchestratorRepo := orchestratorpostgres.NewRepository(pg.DB, logger)
	effects := orchestrator.NewModule(orchestrator.Dependencies{
		Outbox:    orchestratorRepo,
		Publisher: bus,
		Dedup:     orchestratorRepo,
		Effects:   orchestratorRepo,
		Clock:     orchestratorpostgres.SystemClock{},
		IDGen:     orchestratorpostgres.UUIDGenerator{},
		BatchSize: 100,
		Logger:    logger,
	})

	pollInterval, err := time.ParseDuration(cfg.WorkerPollInterval)
	if err != nil || pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}

	return &WorkerApp{
		engine: Engine{
			Validation: validation,
			Arbiter:    arbiter,
			Strikes:    strikes,
			Promotion:  promotion,
			Effects:    effects,
		},
		bus:          bus,
		postgres:     pg,
		cfg:          cfg,
		pollInterval: pollInterval,
		logger:       logger,
	}, nil
}

// Run subscribes the consumers, schedules the strike expiry sweep, and
// drives the outbox relay until the context is cancelled.
func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.subscribe(ctx); err != nil {
		return err
	}

	scheduler := cron.New()
	if w.cfg.EnableStrikeExpirySweep {
		if _, err := scheduler.AddFunc(w.cfg.StrikeSweepSpec, func() {
			if _, err := w.engine.Strikes.ExpirySweep.RunOnce(ctx); err != nil {
				w.logger.Error("strike expiry sweep run failed",
					"event", "bootstrap_strike_sweep_failed",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"error", err.Error(),
				)
			}
		}); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"sweep_spec", w.cfg.StrikeSweepSpec,
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.engine.Effects.Relay.RunOnce(ctx); err != nil {
				w.logger.Error("outbox relay cycle failed",
					"event", "bootstrap_relay_cycle_failed",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"error", err.Error(),
				)
			}
		}
	}
}

func (w *WorkerApp) subscribe(ctx context.Context) error {
	if w.cfg.EnableConflictDetection {
		if err := w.bus.Subscribe(ctx, events.TypeReviewQuorumReached,
			"conflict-arbiter-quorum-cg", w.engine.Arbiter.QuorumConsumer.Handle); err != nil {
			return err
		}
	}
	if w.cfg.EnablePromotionConsumer {
		if err := w.bus.Subscribe(ctx, events.TypeTranslationApproved,
			"promotion-evaluator-approval-cg", w.engine.Promotion.ApprovalConsumer.Handle); err != nil {
			return err
		}
	}
	if w.cfg.EnableOrchestratorEffects {
		topics := []string{
			events.TypeValidationRecorded,
			events.TypeTranslationApproved,
			events.TypeTranslationRejected,
			events.TypeConflictResolved,
			events.TypeUserStruck,
			events.TypeUserReinstated,
			events.TypeUserPromoted,
		}
		for _, topic := range topics {
			if err := w.bus.Subscribe(ctx, topic,
				"governance-orchestrator-cg", w.engine.Effects.Effects.Handle); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}
