package bootstrap

import (
	"context"
	"fmt"
	"testing"
	"time"

	arbiterapp "termbase/contexts/consensus/conflict-arbiter/application"
	arbiterentities "termbase/contexts/consensus/conflict-arbiter/domain/entities"
	arbiterports "termbase/contexts/consensus/conflict-arbiter/ports"
	validationapp "termbase/contexts/consensus/validation-ledger/application"
	validationentities "termbase/contexts/consensus/validation-ledger/domain/entities"
	orchestratorentities "termbase/contexts/governance/orchestrator/domain/entities"
	promotionentities "termbase/contexts/governance/promotion-evaluator/domain/entities"
	strikeapp "termbase/contexts/governance/strike-ledger/application"
	strikeentities "termbase/contexts/governance/strike-ledger/domain/entities"
	"termbase/internal/shared/events"
)

// syncDispatcher fans published events out to the registered handlers
// synchronously, standing in for the bus so the flow is deterministic.
type syncDispatcher struct {
	handlers []func(context.Context, events.Envelope) error
}

func (d *syncDispatcher) Publish(ctx context.Context, _ string, event events.Envelope) error {
	for _, handler := range d.handlers {
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func newEngine(t *testing.T) (Engine, InMemoryStores) {
	t.Helper()
	dispatcher := &syncDispatcher{}
	engine, stores := BuildInMemoryEngine(dispatcher, nil)
	dispatcher.handlers = []func(context.Context, events.Envelope) error{
		engine.Arbiter.QuorumConsumer.Handle,
		engine.Promotion.ApprovalConsumer.Handle,
		engine.Effects.Effects.Handle,
	}
	return engine, stores
}

func drain(t *testing.T, engine Engine) {
	t.Helper()
	// Two cycles: the first may publish events whose consumers append more
	// outbox rows.
	for i := 0; i < 2; i++ {
		if err := engine.Effects.Relay.RunOnce(context.Background()); err != nil {
			t.Fatalf("relay cycle failed: %v", err)
		}
	}
}

func TestEngineValidationFlowReachesQuorum(t *testing.T) {
	engine, stores := newEngine(t)
	stores.Validation.SetTranslation(validationentities.Translation{
		TranslationID: "tr-1",
		TermID:        "term-1",
		ContributorID: "contributor-1",
		Text:          "selam",
		Status:        validationentities.TranslationStatusPendingReview,
		CreatedAt:     time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	})

	for i := 1; i <= 3; i++ {
		_, err := engine.Validation.Service.SubmitValidation(context.Background(), validationapp.SubmitValidationCommand{
			TranslationID: "tr-1",
			ValidatorID:   fmt.Sprintf("validator-%d", i),
			Rating:        4,
			Decision:      validationentities.DecisionApproved,
		})
		if err != nil {
			t.Fatalf("validation %d failed: %v", i, err)
		}
	}
	drain(t, engine)

	translation, _ := stores.Validation.Translation("tr-1")
	if translation.Status != validationentities.TranslationStatusPendingValidation {
		t.Fatalf("expected pending_validation, got %s", translation.Status)
	}
	for i := 1; i <= 3; i++ {
		validator := fmt.Sprintf("validator-%d", i)
		if total := stores.Shared.PointsTotal(validator); total != 5 {
			t.Fatalf("expected 5 points for %s, got %d", validator, total)
		}
	}
}

func TestEngineConflictFlowSelectsWinner(t *testing.T) {
	engine, stores := newEngine(t)
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	stores.Arbiter.SetTranslation(arbiterports.TranslationRef{
		TranslationID: "tr-a",
		TermID:        "term-1",
		ContributorID: "contributor-a",
		Text:          "merhaba",
		Status:        "pending_validation",
		CreatedAt:     base,
	})
	stores.Arbiter.SetTranslation(arbiterports.TranslationRef{
		TranslationID: "tr-b",
		TermID:        "term-1",
		ContributorID: "contributor-b",
		Text:          "selam",
		Status:        "pending_validation",
		CreatedAt:     base.Add(time.Hour),
	})
	for _, contributor := range []string{"contributor-a", "contributor-b"} {
		stores.Promotion.SetMetrics(promotionentities.Metrics{
			UserID:            contributor,
			Role:              promotionentities.RoleContributor,
			Level:             1,
			TotalTranslations: 1,
		})
	}

	conflict, opened, err := engine.Arbiter.Service.DetectConflict(context.Background(), "term-1")
	if err != nil || !opened {
		t.Fatalf("detect conflict failed: opened=%v err=%v", opened, err)
	}

	votes := []struct {
		voter    string
		voteType arbiterentities.VoteType
		target   string
	}{
		{"member-1", arbiterentities.VoteTypeApproveTranslation, "tr-a"},
		{"member-2", arbiterentities.VoteTypeApproveTranslation, "tr-a"},
		{"member-3", arbiterentities.VoteTypeAbstain, ""},
	}
	var last arbiterapp.CastVoteResult
	for _, v := range votes {
		last, err = engine.Arbiter.Service.CastVote(context.Background(), arbiterapp.CastVoteCommand{
			ConflictID:    conflict.ConflictID,
			VoterID:       v.voter,
			VoteType:      v.voteType,
			TranslationID: v.target,
		})
		if err != nil {
			t.Fatalf("vote by %s failed: %v", v.voter, err)
		}
	}
	if !last.Resolved || last.WinningTranslationID != "tr-a" {
		t.Fatalf("unexpected resolution: %+v", last)
	}
	drain(t, engine)

	if status := stores.Arbiter.TranslationStatus("tr-a"); status != "approved" {
		t.Fatalf("expected tr-a approved, got %s", status)
	}
	if status := stores.Arbiter.TranslationStatus("tr-b"); status != "rejected" {
		t.Fatalf("expected tr-b rejected, got %s", status)
	}
	if text, _ := stores.Arbiter.TermContent("term-1"); text != "merhaba" {
		t.Fatalf("expected term text from winner, got %q", text)
	}
	if total := stores.Shared.PointsTotal("contributor-a"); total != 50 {
		t.Fatalf("expected 50 winner points, got %d", total)
	}

	kinds := map[orchestratorentities.NotificationKind]int{}
	for _, notification := range stores.Shared.Notifications() {
		kinds[notification.Kind]++
	}
	if kinds[orchestratorentities.NotificationConflictResolved] != 2 {
		t.Fatalf("expected both participants notified of resolution, got %d", kinds[orchestratorentities.NotificationConflictResolved])
	}
	if kinds[orchestratorentities.NotificationTranslationApproved] != 1 {
		t.Fatalf("expected winner approval notification, got %d", kinds[orchestratorentities.NotificationTranslationApproved])
	}
	if kinds[orchestratorentities.NotificationTranslationRejected] != 1 {
		t.Fatalf("expected loser rejection notification, got %d", kinds[orchestratorentities.NotificationTranslationRejected])
	}
}

func TestEngineStrikeFlowBansAtThreshold(t *testing.T) {
	engine, stores := newEngine(t)
	stores.Strikes.SetNow(func() time.Time {
		return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	})

	reasons := []struct {
		reason strikeentities.StrikeReason
		detail string
	}{
		{strikeentities.ReasonSpam, ""},
		{strikeentities.ReasonPlagiarism, ""},
		{strikeentities.ReasonAbusiveConduct, "repeated insults"},
	}
	var last strikeapp.CreateStrikeResult
	for _, r := range reasons {
		var err error
		last, err = engine.Strikes.Service.CreateStrike(context.Background(), strikeapp.CreateStrikeCommand{
			UserID:  "user-9",
			AdminID: "admin-1",
			Reason:  r.reason,
			Detail:  r.detail,
		})
		if err != nil {
			t.Fatalf("strike failed: %v", err)
		}
	}
	if !last.Banned || last.StrikeCount != 3 {
		t.Fatalf("unexpected third strike result: %+v", last)
	}
	drain(t, engine)

	state, ok := stores.Strikes.BanState("user-9")
	if !ok || !state.IsBanned {
		t.Fatal("expected user banned")
	}
	if state.BannedReason != "abusive_conduct: repeated insults" {
		t.Fatalf("ban reason must reference the third strike, got %q", state.BannedReason)
	}

	struck := 0
	for _, notification := range stores.Shared.Notifications() {
		if notification.Kind == orchestratorentities.NotificationUserStruck && notification.UserID == "user-9" {
			struck++
		}
	}
	if struck != 3 {
		t.Fatalf("expected three strike notifications, got %d", struck)
	}
}

func TestEnginePromotionFlowAwardsBonus(t *testing.T) {
	engine, stores := newEngine(t)
	stores.Promotion.SetMetrics(promotionentities.Metrics{
		UserID:               "user-1",
		Role:                 promotionentities.RoleContributor,
		Level:                4,
		ApprovedTranslations: 60,
		TotalTranslations:    65,
	})

	result, err := engine.Promotion.Service.Evaluate(context.Background(), "user-1")
	if err != nil || !result.Promoted {
		t.Fatalf("evaluate failed: promoted=%v err=%v", result.Promoted, err)
	}
	drain(t, engine)

	if total := stores.Shared.PointsTotal("user-1"); total != 100 {
		t.Fatalf("expected 100 bonus points, got %d", total)
	}
	promoted := 0
	for _, notification := range stores.Shared.Notifications() {
		if notification.Kind == orchestratorentities.NotificationUserPromoted {
			promoted++
		}
	}
	if promoted != 1 {
		t.Fatalf("expected one promotion notification, got %d", promoted)
	}
}
