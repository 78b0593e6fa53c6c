package validationledger

import (
	"log/slog"

	"termbase/contexts/consensus/validation-ledger/adapters/memory"
	"termbase/contexts/consensus/validation-ledger/application"
	"termbase/contexts/consensus/validation-ledger/domain/entities"
	"termbase/contexts/consensus/validation-ledger/ports"
)

type Module struct {
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Repo   ports.ValidationRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Service: application.Service{
			Repo:   deps.Repo,
			Outbox: deps.Outbox,
			Clock:  deps.Clock,
			IDGen:  deps.IDGen,
			Logger: deps.Logger,
		},
	}
}

func NewInMemoryModule(seed []entities.Translation, logger *slog.Logger) Module {
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
