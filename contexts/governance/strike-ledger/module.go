package strikeledger

import (
	"log/slog"

	"termbase/contexts/governance/strike-ledger/adapters/memory"
	"termbase/contexts/governance/strike-ledger/application"
	"termbase/contexts/governance/strike-ledger/application/workers"
	"termbase/contexts/governance/strike-ledger/ports"
)

type Module struct {
	Service     application.Service
	ExpirySweep workers.ExpirySweep
	Store       *memory.Store
}

type Dependencies struct {
	Repo   ports.StrikeRepository
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
		ExpirySweep: workers.ExpirySweep{
			Strikes: service,
			Repo:    deps.Repo,
			Clock:   deps.Clock,
			Logger:  deps.Logger,
		},
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
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
