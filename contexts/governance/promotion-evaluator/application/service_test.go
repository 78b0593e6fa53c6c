package application

import (
	"context"
	"errors"
	"testing"

	"termbase/contexts/governance/promotion-evaluator/adapters/memory"
	"termbase/contexts/governance/promotion-evaluator/domain/entities"
	domainerrors "termbase/contexts/governance/promotion-evaluator/domain/errors"
	"termbase/internal/shared/events"
)

func newEvaluator(t *testing.T) (Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return Service{
		Repo:   store,
		Outbox: store,
		Clock:  store,
		IDGen:  store,
	}, store
}

func TestEvaluatePromotesEligibleContributor(t *testing.T) {
	service, store := newEvaluator(t)
	store.SetMetrics(entities.Metrics{
		UserID:               "user-1",
		Role:                 entities.RoleContributor,
		Level:                4,
		ApprovedTranslations: 60,
		TotalTranslations:    65,
	})

	result, err := service.Evaluate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if !result.Promoted {
		t.Fatal("expected promotion")
	}
	if result.ToRole != entities.RoleReviewer {
		t.Fatalf("expected reviewer, got %s", result.ToRole)
	}
	if result.BonusPoints != 100 {
		t.Fatalf("expected 100 bonus points, got %d", result.BonusPoints)
	}

	metrics, _ := store.Metrics("user-1")
	if metrics.Role != entities.RoleReviewer {
		t.Fatalf("expected stored role reviewer, got %s", metrics.Role)
	}

	recorded := store.OutboxEvents()
	if len(recorded) != 1 || recorded[0].EventType != events.TypeUserPromoted {
		t.Fatalf("expected one user.promoted event, got %+v", recorded)
	}
}

func TestEvaluateZeroTranslationsNotEligible(t *testing.T) {
	service, store := newEvaluator(t)
	store.SetMetrics(entities.Metrics{
		UserID: "user-1",
		Role:   entities.RoleContributor,
		Level:  9,
	})

	result, err := service.Evaluate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.Promoted {
		t.Fatal("zero translations must not promote")
	}
}

func TestEvaluateBelowApprovalRateNotEligible(t *testing.T) {
	service, store := newEvaluator(t)
	store.SetMetrics(entities.Metrics{
		UserID:               "user-1",
		Role:                 entities.RoleContributor,
		Level:                5,
		ApprovedTranslations: 60,
		TotalTranslations:    80, // 75% < 85%
	})

	result, err := service.Evaluate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.Promoted {
		t.Fatal("approval rate below threshold must not promote")
	}
}

func TestEvaluateNeverSkipsTiers(t *testing.T) {
	service, store := newEvaluator(t)
	// Clears the committee threshold on paper, but is still a contributor:
	// only the contributor->reviewer step applies.
	store.SetMetrics(entities.Metrics{
		UserID:               "user-1",
		Role:                 entities.RoleContributor,
		Level:                9,
		ApprovedTranslations: 300,
		TotalTranslations:    310,
		ValidationsPerformed: 150,
	})

	result, err := service.Evaluate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.ToRole != entities.RoleReviewer {
		t.Fatalf("expected single-step promotion to reviewer, got %s", result.ToRole)
	}
}

func TestEvaluateReviewerRequiresValidations(t *testing.T) {
	service, store := newEvaluator(t)
	store.SetMetrics(entities.Metrics{
		UserID:               "user-1",
		Role:                 entities.RoleReviewer,
		Level:                9,
		ApprovedTranslations: 250,
		TotalTranslations:    260,
		ValidationsPerformed: 40, // below 100
	})

	result, err := service.Evaluate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.Promoted {
		t.Fatal("reviewer without enough validations must not promote")
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	service, store := newEvaluator(t)
	store.SetMetrics(entities.Metrics{
		UserID:               "user-1",
		Role:                 entities.RoleContributor,
		Level:                4,
		ApprovedTranslations: 60,
		TotalTranslations:    65,
	})

	first, err := service.Evaluate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("first evaluate failed: %v", err)
	}
	if !first.Promoted {
		t.Fatal("expected first promotion")
	}
	second, err := service.Evaluate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("second evaluate failed: %v", err)
	}
	if second.Promoted {
		t.Fatal("second evaluation must not promote again")
	}
	if len(store.OutboxEvents()) != 1 {
		t.Fatalf("expected one promotion event, got %d", len(store.OutboxEvents()))
	}
}

func TestEvaluateCommitteeMemberHasNoNextTier(t *testing.T) {
	service, store := newEvaluator(t)
	store.SetMetrics(entities.Metrics{
		UserID:               "user-1",
		Role:                 entities.RoleCommitteeMember,
		Level:                10,
		ApprovedTranslations: 500,
		TotalTranslations:    510,
		ValidationsPerformed: 300,
	})

	result, err := service.Evaluate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.Promoted {
		t.Fatal("committee member has no automatic promotion")
	}
}

func TestEvaluateUnknownUser(t *testing.T) {
	service, _ := newEvaluator(t)

	_, err := service.Evaluate(context.Background(), "user-missing")
	if !errors.Is(err, domainerrors.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestProgressReportsCriteriaWithoutMutating(t *testing.T) {
	service, store := newEvaluator(t)
	store.SetMetrics(entities.Metrics{
		UserID:               "user-1",
		Role:                 entities.RoleContributor,
		Level:                2,
		ApprovedTranslations: 25,
		TotalTranslations:    30,
	})

	progress, err := service.Progress(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("progress failed: %v", err)
	}
	if progress.Eligible {
		t.Fatal("expected not eligible")
	}
	if progress.TargetRole != entities.RoleReviewer {
		t.Fatalf("expected target reviewer, got %s", progress.TargetRole)
	}
	if len(progress.Criteria) != 3 {
		t.Fatalf("expected 3 criteria, got %d", len(progress.Criteria))
	}

	metrics, _ := store.Metrics("user-1")
	if metrics.Role != entities.RoleContributor {
		t.Fatal("progress must not mutate the user")
	}
	if len(store.OutboxEvents()) != 0 {
		t.Fatal("progress must not emit events")
	}
}
