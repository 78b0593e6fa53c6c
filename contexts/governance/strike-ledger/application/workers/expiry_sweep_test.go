package workers

import (
	"context"
	"testing"
	"time"

	"termbase/contexts/governance/strike-ledger/adapters/memory"
	"termbase/contexts/governance/strike-ledger/application"
	"termbase/contexts/governance/strike-ledger/domain/entities"
)

func TestExpirySweepDeactivatesDueStrikes(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	store.SetNow(func() time.Time { return now })
	service := application.Service{Repo: store, Outbox: store, Clock: store, IDGen: store}
	sweep := ExpirySweep{Strikes: service, Repo: store, Clock: store}

	expired := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)
	ctx := context.Background()
	for _, strike := range []entities.Strike{
		{StrikeID: "strike-due", UserID: "user-1", AdminID: "admin-1", Reason: entities.ReasonSpam, Severity: entities.SeverityMedium, IsActive: true, ExpiresAt: &expired, CreatedAt: expired, UpdatedAt: expired},
		{StrikeID: "strike-later", UserID: "user-1", AdminID: "admin-1", Reason: entities.ReasonSpam, Severity: entities.SeverityMedium, IsActive: true, ExpiresAt: &future, CreatedAt: expired, UpdatedAt: expired},
		{StrikeID: "strike-open", UserID: "user-2", AdminID: "admin-1", Reason: entities.ReasonSpam, Severity: entities.SeverityMedium, IsActive: true, CreatedAt: expired, UpdatedAt: expired},
	} {
		if err := store.InsertStrike(ctx, strike); err != nil {
			t.Fatalf("seed strike failed: %v", err)
		}
	}

	deactivated, err := sweep.RunOnce(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if deactivated != 1 {
		t.Fatalf("expected 1 deactivation, got %d", deactivated)
	}

	due, err := store.GetStrike(ctx, "strike-due")
	if err != nil {
		t.Fatalf("get strike failed: %v", err)
	}
	if due.IsActive {
		t.Fatal("expected due strike deactivated")
	}
	later, _ := store.GetStrike(ctx, "strike-later")
	if !later.IsActive {
		t.Fatal("future-dated strike must stay active")
	}
}

func TestExpirySweepIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	store.SetNow(func() time.Time { return now })
	service := application.Service{Repo: store, Outbox: store, Clock: store, IDGen: store}
	sweep := ExpirySweep{Strikes: service, Repo: store, Clock: store}

	expired := now.Add(-time.Hour)
	ctx := context.Background()
	if err := store.InsertStrike(ctx, entities.Strike{
		StrikeID: "strike-due", UserID: "user-1", AdminID: "admin-1",
		Reason: entities.ReasonSpam, Severity: entities.SeverityMedium,
		IsActive: true, ExpiresAt: &expired, CreatedAt: expired, UpdatedAt: expired,
	}); err != nil {
		t.Fatalf("seed strike failed: %v", err)
	}

	if _, err := sweep.RunOnce(ctx); err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
	second, err := sweep.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if second != 0 {
		t.Fatalf("second sweep must be a no-op, got %d", second)
	}
}
