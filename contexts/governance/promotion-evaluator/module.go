package promotionevaluator

import (
	"log/slog"

	"termbase/contexts/governance/promotion-evaluator/adapters/memory"
	"termbase/contexts/governance/promotion-evaluator/application"
	"termbase/contexts/governance/promotion-evaluator/application/workers"
	"termbase/contexts/governance/promotion-evaluator/ports"
)

type Module struct {
	Service          application.Service
	ApprovalConsumer workers.ApprovalConsumer
	Store            *memory.Store
}

type Dependencies struct {
	Repo   ports.PromotionRepository
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
		ApprovalConsumer: workers.ApprovalConsumer{
			Evaluator: service,
			Logger:    deps.Logger,
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
