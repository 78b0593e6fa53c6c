package bootstrap

import (
	"log/slog"

	conflictarbiter "termbase/contexts/consensus/conflict-arbiter"
	arbitermemory "termbase/contexts/consensus/conflict-arbiter/adapters/memory"
	validationledger "termbase/contexts/consensus/validation-ledger"
	validationmemory "termbase/contexts/consensus/validation-ledger/adapters/memory"
	orchestrator "termbase/contexts/governance/orchestrator"
	orchestratormemory "termbase/contexts/governance/orchestrator/adapters/memory"
	orchestratorports "termbase/contexts/governance/orchestrator/ports"
	promotionevaluator "termbase/contexts/governance/promotion-evaluator"
	promotionmemory "termbase/contexts/governance/promotion-evaluator/adapters/memory"
	strikeledger "termbase/contexts/governance/strike-ledger"
	strikememory "termbase/contexts/governance/strike-ledger/adapters/memory"
)

// InMemoryStores exposes each module's store for seeding and inspection.
type InMemoryStores struct {
	Validation *validationmemory.Store
	Arbiter    *arbitermemory.Store
	Strikes    *strikememory.Store
	Promotion  *promotionmemory.Store
	Shared     *orchestratormemory.Store
}

// BuildInMemoryEngine wires every module against in-memory adapters with the
// orchestrator store as the shared outbox, mirroring the single
// governance_outbox table of the Postgres deployment. Used by tests and
// local experiments.
func BuildInMemoryEngine(publisher orchestratorports.EventPublisher, logger *slog.Logger) (Engine, InMemoryStores) {
	shared := orchestratormemory.NewStore()
	validationStore := validationmemory.NewStore(nil)
	arbiterStore := arbitermemory.NewStore(nil)
	strikeStore := strikememory.NewStore()
	promotionStore := promotionmemory.NewStore()

	validation := validationledger.NewModule(validationledger.Dependencies{
		Repo:   validationStore,
		Outbox: shared,
		Clock:  validationStore,
		IDGen:  validationStore,
		Logger: logger,
	})
	arbiter := conflictarbiter.NewModule(conflictarbiter.Dependencies{
		Repo:   arbiterStore,
		Outbox: shared,
		Clock:  arbiterStore,
		IDGen:  arbiterStore,
		Logger: logger,
	})
	strikes := strikeledger.NewModule(strikeledger.Dependencies{
		Repo:   strikeStore,
		Outbox: shared,
		Clock:  strikeStore,
		IDGen:  strikeStore,
		Logger: logger,
	})
	promotion := promotionevaluator.NewModule(promotionevaluator.Dependencies{
		Repo:   promotionStore,
		Outbox: shared,
		Clock:  promotionStore,
		IDGen:  promotionStore,
		Logger: logger,
	})
	effects := orchestrator.NewModule(orchestrator.Dependencies{
		Outbox:    shared,
		Publisher: publisher,
		Dedup:     shared,
		Effects:   shared,
		Clock:     shared,
		IDGen:     shared,
		Logger:    logger,
	})

	engine := Engine{
		Validation: validation,
		Arbiter:    arbiter,
		Strikes:    strikes,
		Promotion:  promotion,
		Effects:    effects,
	}
	stores := InMemoryStores{
		Validation: validationStore,
		Arbiter:    arbiterStore,
		Strikes:    strikeStore,
		Promotion:  promotionStore,
		Shared:     shared,
	}
	return engine, stores
}
