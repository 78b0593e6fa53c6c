package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"termbase/contexts/consensus/validation-ledger/adapters/memory"
	"termbase/contexts/consensus/validation-ledger/domain/entities"
	domainerrors "termbase/contexts/consensus/validation-ledger/domain/errors"
	"termbase/internal/shared/events"
)

func newTestService(t *testing.T) (Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore([]entities.Translation{{
		TranslationID: "tr-1",
		TermID:        "term-1",
		ContributorID: "contributor-1",
		Text:          "selam",
		Status:        entities.TranslationStatusPendingReview,
		CreatedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}})
	return Service{
		Repo:   store,
		Outbox: store,
		Clock:  store,
		IDGen:  store,
	}, store
}

func submit(t *testing.T, service Service, validatorID string, decision entities.ValidationDecision) SubmitValidationResult {
	t.Helper()
	result, err := service.SubmitValidation(context.Background(), SubmitValidationCommand{
		TranslationID: "tr-1",
		ValidatorID:   validatorID,
		Rating:        4,
		Decision:      decision,
	})
	if err != nil {
		t.Fatalf("submit validation by %s failed: %v", validatorID, err)
	}
	return result
}

func TestSubmitValidationReachesQuorumAtThreeApprovals(t *testing.T) {
	service, store := newTestService(t)

	first := submit(t, service, "validator-1", entities.DecisionApproved)
	if first.QuorumReached {
		t.Fatal("one validation must not reach quorum")
	}
	second := submit(t, service, "validator-2", entities.DecisionApproved)
	if second.QuorumReached {
		t.Fatal("two validations must not reach quorum")
	}
	third := submit(t, service, "validator-3", entities.DecisionApproved)
	if !third.QuorumReached {
		t.Fatal("three approvals must reach quorum")
	}

	translation, ok := store.Translation("tr-1")
	if !ok {
		t.Fatal("translation missing")
	}
	if translation.Status != entities.TranslationStatusPendingValidation {
		t.Fatalf("expected pending_validation, got %s", translation.Status)
	}

	quorumEvents := 0
	for _, event := range store.OutboxEvents() {
		if event.EventType == events.TypeReviewQuorumReached {
			quorumEvents++
		}
	}
	if quorumEvents != 1 {
		t.Fatalf("expected exactly one quorum event, got %d", quorumEvents)
	}
}

func TestSubmitValidationBelowRatioStaysPendingReview(t *testing.T) {
	service, store := newTestService(t)

	submit(t, service, "validator-1", entities.DecisionApproved)
	submit(t, service, "validator-2", entities.DecisionRejected)
	result := submit(t, service, "validator-3", entities.DecisionApproved)

	// 2/3 approvals is below the 70% gate.
	if result.QuorumReached {
		t.Fatal("ratio below threshold must not reach quorum")
	}
	translation, _ := store.Translation("tr-1")
	if translation.Status != entities.TranslationStatusPendingReview {
		t.Fatalf("expected pending_review, got %s", translation.Status)
	}
}

func TestSubmitValidationGateIsOneWay(t *testing.T) {
	service, store := newTestService(t)

	submit(t, service, "validator-1", entities.DecisionApproved)
	submit(t, service, "validator-2", entities.DecisionApproved)
	submit(t, service, "validator-3", entities.DecisionApproved)

	// Later rejections drop the ratio but never revert the status.
	submit(t, service, "validator-4", entities.DecisionRejected)
	submit(t, service, "validator-5", entities.DecisionRejected)

	translation, _ := store.Translation("tr-1")
	if translation.Status != entities.TranslationStatusPendingValidation {
		t.Fatalf("expected pending_validation to persist, got %s", translation.Status)
	}
}

func TestSubmitValidationRejectsSelfValidation(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.SubmitValidation(context.Background(), SubmitValidationCommand{
		TranslationID: "tr-1",
		ValidatorID:   "contributor-1",
		Rating:        5,
		Decision:      entities.DecisionApproved,
	})
	if !errors.Is(err, domainerrors.ErrSelfValidation) {
		t.Fatalf("expected self validation error, got %v", err)
	}
}

func TestSubmitValidationComparesIdentitiesExactly(t *testing.T) {
	service, _ := newTestService(t)

	// IDs compare exactly everywhere in the store, so a validator whose ID
	// differs from the contributor's only in case is a distinct identity.
	result, err := service.SubmitValidation(context.Background(), SubmitValidationCommand{
		TranslationID: "tr-1",
		ValidatorID:   "CONTRIBUTOR-1",
		Rating:        4,
		Decision:      entities.DecisionApproved,
	})
	if err != nil {
		t.Fatalf("expected distinct validator to be accepted, got %v", err)
	}
	if result.Validation.ValidatorID != "CONTRIBUTOR-1" {
		t.Fatalf("unexpected validator id %q", result.Validation.ValidatorID)
	}
}

func TestSubmitValidationRejectsDuplicateValidator(t *testing.T) {
	service, _ := newTestService(t)

	submit(t, service, "validator-1", entities.DecisionApproved)
	_, err := service.SubmitValidation(context.Background(), SubmitValidationCommand{
		TranslationID: "tr-1",
		ValidatorID:   "validator-1",
		Rating:        2,
		Decision:      entities.DecisionRejected,
	})
	if !errors.Is(err, domainerrors.ErrDuplicateValidation) {
		t.Fatalf("expected duplicate validation error, got %v", err)
	}
}

func TestSubmitValidationRejectsOutOfRangeRating(t *testing.T) {
	service, _ := newTestService(t)

	for _, rating := range []int{0, 6, -1} {
		_, err := service.SubmitValidation(context.Background(), SubmitValidationCommand{
			TranslationID: "tr-1",
			ValidatorID:   "validator-1",
			Rating:        rating,
			Decision:      entities.DecisionApproved,
		})
		if !errors.Is(err, domainerrors.ErrInvalidRating) {
			t.Fatalf("rating %d: expected invalid rating error, got %v", rating, err)
		}
	}
}

func TestSubmitValidationRejectsUnknownTranslation(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.SubmitValidation(context.Background(), SubmitValidationCommand{
		TranslationID: "tr-missing",
		ValidatorID:   "validator-1",
		Rating:        4,
		Decision:      entities.DecisionApproved,
	})
	if !errors.Is(err, domainerrors.ErrTranslationNotFound) {
		t.Fatalf("expected translation not found, got %v", err)
	}
}

func TestSubmitValidationEmitsRecordedEventWithPoints(t *testing.T) {
	service, store := newTestService(t)

	submit(t, service, "validator-1", entities.DecisionApproved)

	recorded := store.OutboxEvents()
	if len(recorded) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(recorded))
	}
	if recorded[0].EventType != events.TypeValidationRecorded {
		t.Fatalf("expected validation.recorded, got %s", recorded[0].EventType)
	}
}

func TestSummarizeCountsDecisions(t *testing.T) {
	service, _ := newTestService(t)

	submit(t, service, "validator-1", entities.DecisionApproved)
	submit(t, service, "validator-2", entities.DecisionRejected)
	submit(t, service, "validator-3", entities.DecisionNeedsRevision)

	summary, err := service.Summarize(context.Background(), "tr-1")
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if summary.Total != 3 || summary.Approvals != 1 || summary.Rejections != 1 || summary.Revisions != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestListValidationsOrderedByCreation(t *testing.T) {
	service, _ := newTestService(t)

	for i := 1; i <= 3; i++ {
		submit(t, service, fmt.Sprintf("validator-%d", i), entities.DecisionApproved)
	}
	items, err := service.ListValidations(context.Background(), "tr-1")
	if err != nil {
		t.Fatalf("list validations failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 validations, got %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].CreatedAt.Before(items[i-1].CreatedAt) {
			t.Fatal("validations out of order")
		}
	}
}
