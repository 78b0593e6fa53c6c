package conflictarbiter

import (
	"log/slog"

	"termbase/contexts/consensus/conflict-arbiter/adapters/memory"
	"termbase/contexts/consensus/conflict-arbiter/application"
	"termbase/contexts/consensus/conflict-arbiter/application/workers"
	"termbase/contexts/consensus/conflict-arbiter/ports"
)

type Module struct {
	Service        application.Service
	QuorumConsumer workers.QuorumConsumer
	Store          *memory.Store
}

type Dependencies struct {
	Repo   ports.ConflictRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:   deps.Repo,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	return Module{
		Service: service,
		QuorumConsumer: workers.QuorumConsumer{
			Arbiter: service,
			Logger:  deps.Logger,
		},
	}
}

func NewInMemoryModule(seed []ports.TranslationRef, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Repo:   store,
		Outbox: store,
		Clock:  store,
		IDGen:  store,
		Logger: logger,
	})
	module.Store = store
	return module
}
