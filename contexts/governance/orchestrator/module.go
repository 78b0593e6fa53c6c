package orchestrator

import (
	"log/slog"

	"termbase/contexts/governance/orchestrator/adapters/memory"
	"termbase/contexts/governance/orchestrator/application"
	"termbase/contexts/governance/orchestrator/application/workers"
	"termbase/contexts/governance/orchestrator/ports"
)

type Module struct {
	Effects application.EffectsService
	Relay   workers.OutboxRelay
	Store   *memory.Store
}

type Dependencies struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Dedup     ports.DedupStore
	Effects   ports.EffectsRepository
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	BatchSize int
	Logger    *slog.Logger
}

func NewModule(deps Dependencies) Module {
	effects := application.EffectsService{
		Dedup:  deps.Dedup,
		Repo:   deps.Effects,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	return Module{
		Effects: effects,
		Relay: workers.OutboxRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			BatchSize: deps.BatchSize,
			Logger:    deps.Logger,
		},
	}
}

func NewInMemoryModule(publisher ports.EventPublisher, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Outbox:    store,
		Publisher: publisher,
		Dedup:     store,
		Effects:   store,
		Clock:     store,
		IDGen:     store,
		Logger:    logger,
	})
	module.Store = store
	return module
}
