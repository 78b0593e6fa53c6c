package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"termbase/contexts/consensus/conflict-arbiter/adapters/memory"
	"termbase/contexts/consensus/conflict-arbiter/domain/entities"
	domainerrors "termbase/contexts/consensus/conflict-arbiter/domain/errors"
	"termbase/contexts/consensus/conflict-arbiter/ports"
	"termbase/internal/shared/events"
)

func seedTranslations() []ports.TranslationRef {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return []ports.TranslationRef{
		{
			TranslationID: "tr-a",
			TermID:        "term-1",
			ContributorID: "contributor-a",
			Text:          "merhaba",
			Status:        "pending_validation",
			CreatedAt:     base,
		},
		{
			TranslationID: "tr-b",
			TermID:        "term-1",
			ContributorID: "contributor-b",
			Text:          "selam",
			Status:        "pending_validation",
			CreatedAt:     base.Add(time.Hour),
		},
	}
}

func newArbiter(t *testing.T) (Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore(seedTranslations())
	return Service{
		Repo:   store,
		Outbox: store,
		Clock:  store,
		IDGen:  store,
	}, store
}

func openCase(t *testing.T, service Service) entities.ConflictCase {
	t.Helper()
	conflict, opened, err := service.DetectConflict(context.Background(), "term-1")
	if err != nil {
		t.Fatalf("detect conflict failed: %v", err)
	}
	if !opened {
		t.Fatal("expected a new conflict case")
	}
	return conflict
}

func vote(t *testing.T, service Service, conflictID, voterID string, voteType entities.VoteType, translationID string) CastVoteResult {
	t.Helper()
	result, err := service.CastVote(context.Background(), CastVoteCommand{
		ConflictID:    conflictID,
		VoterID:       voterID,
		VoteType:      voteType,
		TranslationID: translationID,
	})
	if err != nil {
		t.Fatalf("vote by %s failed: %v", voterID, err)
	}
	return result
}

func TestDetectConflictOpensCaseForCompetingTranslations(t *testing.T) {
	service, store := newArbiter(t)

	conflict := openCase(t, service)
	if conflict.Status != entities.ConflictStatusPending {
		t.Fatalf("expected pending case, got %s", conflict.Status)
	}
	if conflict.Priority != 2 {
		t.Fatalf("expected priority 2, got %d", conflict.Priority)
	}

	recorded := store.OutboxEvents()
	if len(recorded) != 1 || recorded[0].EventType != events.TypeConflictOpened {
		t.Fatalf("expected one conflict.opened event, got %+v", recorded)
	}
}

func TestDetectConflictIsIdempotentWhileCaseOpen(t *testing.T) {
	service, _ := newArbiter(t)

	first := openCase(t, service)
	second, opened, err := service.DetectConflict(context.Background(), "term-1")
	if err != nil {
		t.Fatalf("second detect failed: %v", err)
	}
	if opened {
		t.Fatal("second detect must not open another case")
	}
	if second.ConflictID != first.ConflictID {
		t.Fatalf("expected existing case %s, got %s", first.ConflictID, second.ConflictID)
	}
}

func TestDetectConflictRequiresTwoLiveTranslations(t *testing.T) {
	store := memory.NewStore(seedTranslations()[:1])
	service := Service{Repo: store, Outbox: store, Clock: store, IDGen: store}

	_, opened, err := service.DetectConflict(context.Background(), "term-1")
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if opened {
		t.Fatal("single live translation must not open a case")
	}
}

// lostResolveRepo simulates losing every conditional resolve write to a
// concurrent caller while leaving the rest of the store intact.
type lostResolveRepo struct {
	*memory.Store
	resolveAttempts int
	approveCalls    int
	rejectCalls     int
}

func (r *lostResolveRepo) Resolve(_ context.Context, _ ports.ResolutionUpdate) (bool, error) {
	r.resolveAttempts++
	return false, nil
}

func (r *lostResolveRepo) ApproveTranslation(ctx context.Context, translationID string, approvedAt time.Time) error {
	r.approveCalls++
	return r.Store.ApproveTranslation(ctx, translationID, approvedAt)
}

func (r *lostResolveRepo) RejectTranslations(ctx context.Context, translationIDs []string, updatedAt time.Time) error {
	r.rejectCalls++
	return r.Store.RejectTranslations(ctx, translationIDs, updatedAt)
}

func TestCastVoteSurfacesConflictWhenResolveWriteLost(t *testing.T) {
	store := memory.NewStore(seedTranslations())
	repo := &lostResolveRepo{Store: store}
	service := Service{Repo: repo, Outbox: store, Clock: store, IDGen: store}
	conflict := openCase(t, service)

	vote(t, service, conflict.ConflictID, "member-1", entities.VoteTypeApproveTranslation, "tr-a")
	vote(t, service, conflict.ConflictID, "member-2", entities.VoteTypeApproveTranslation, "tr-a")

	// The quorum-crossing vote loses the conditional write, retries once with
	// fresh data, then surfaces the race instead of applying effects.
	_, err := service.CastVote(context.Background(), CastVoteCommand{
		ConflictID:    conflict.ConflictID,
		VoterID:       "member-3",
		VoteType:      entities.VoteTypeApproveTranslation,
		TranslationID: "tr-a",
	})
	if !errors.Is(err, domainerrors.ErrResolutionConflict) {
		t.Fatalf("expected resolution conflict, got %v", err)
	}
	if repo.resolveAttempts != 2 {
		t.Fatalf("expected one retry (2 resolve attempts), got %d", repo.resolveAttempts)
	}
	if repo.approveCalls != 0 || repo.rejectCalls != 0 {
		t.Fatalf("race loser must not apply effects: %d approvals, %d rejections", repo.approveCalls, repo.rejectCalls)
	}
	if status := store.TranslationStatus("tr-a"); status != "pending_validation" {
		t.Fatalf("expected tr-a untouched, got %s", status)
	}
	if status := store.TranslationStatus("tr-b"); status != "pending_validation" {
		t.Fatalf("expected tr-b untouched, got %s", status)
	}
	for _, event := range store.OutboxEvents() {
		if event.EventType == events.TypeConflictResolved {
			t.Fatal("race loser must not emit conflict.resolved")
		}
	}
}

func TestDetectConflictIgnoresSettledTranslations(t *testing.T) {
	service, store := newArbiter(t)
	store.SetTranslation(ports.TranslationRef{
		TranslationID: "tr-c",
		TermID:        "term-2",
		ContributorID: "contributor-c",
		Status:        "approved",
		CreatedAt:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	store.SetTranslation(ports.TranslationRef{
		TranslationID: "tr-d",
		TermID:        "term-2",
		ContributorID: "contributor-d",
		Status:        "pending_review",
		CreatedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	})

	_, opened, err := service.DetectConflict(context.Background(), "term-2")
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if opened {
		t.Fatal("an approved translation must not count toward a conflict")
	}
}

func TestCastVoteResolvesWithMajorityWinner(t *testing.T) {
	service, store := newArbiter(t)
	conflict := openCase(t, service)

	vote(t, service, conflict.ConflictID, "member-1", entities.VoteTypeApproveTranslation, "tr-a")
	vote(t, service, conflict.ConflictID, "member-2", entities.VoteTypeApproveTranslation, "tr-a")
	result := vote(t, service, conflict.ConflictID, "member-3", entities.VoteTypeAbstain, "")

	if !result.Resolved {
		t.Fatal("expected resolution at two of three approvals")
	}
	if result.Resolution != entities.ResolutionTranslationSelected {
		t.Fatalf("expected translation_selected, got %s", result.Resolution)
	}
	if result.WinningTranslationID != "tr-a" {
		t.Fatalf("expected winner tr-a, got %s", result.WinningTranslationID)
	}

	if status := store.TranslationStatus("tr-a"); status != "approved" {
		t.Fatalf("expected winner approved, got %s", status)
	}
	if status := store.TranslationStatus("tr-b"); status != "rejected" {
		t.Fatalf("expected loser rejected, got %s", status)
	}
	if text, _ := store.TermContent("term-1"); text != "merhaba" {
		t.Fatalf("expected term overwritten with winner text, got %q", text)
	}

	resolved, _, _, err := service.GetConflict(context.Background(), conflict.ConflictID)
	if err != nil {
		t.Fatalf("get conflict failed: %v", err)
	}
	if resolved.Status != entities.ConflictStatusResolved {
		t.Fatalf("expected resolved case, got %s", resolved.Status)
	}
}

func TestCastVoteCreateNewTakesPrecedence(t *testing.T) {
	service, store := newArbiter(t)
	conflict := openCase(t, service)

	vote(t, service, conflict.ConflictID, "member-1", entities.VoteTypeCreateNew, "")
	vote(t, service, conflict.ConflictID, "member-2", entities.VoteTypeCreateNew, "")
	result := vote(t, service, conflict.ConflictID, "member-3", entities.VoteTypeApproveTranslation, "tr-a")

	if !result.Resolved {
		t.Fatal("expected resolution")
	}
	if result.Resolution != entities.ResolutionRequiresNewTranslation {
		t.Fatalf("expected requires_new_translation, got %s", result.Resolution)
	}
	// No winner: statuses stay live.
	if status := store.TranslationStatus("tr-a"); status != "pending_validation" {
		t.Fatalf("expected tr-a untouched, got %s", status)
	}
	if status := store.TranslationStatus("tr-b"); status != "pending_validation" {
		t.Fatalf("expected tr-b untouched, got %s", status)
	}
}

func TestResolutionTieBreaksTowardEarliestTranslation(t *testing.T) {
	service, store := newArbiter(t)
	conflict := openCase(t, service)

	// Seed a 2-2 tally directly; both candidates hold quorum at four votes.
	now := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	for i, target := range []string{"tr-b", "tr-a", "tr-b", "tr-a"} {
		err := store.InsertVote(ctx, entities.CommitteeVote{
			VoteID:        "vote-" + target + string(rune('0'+i)),
			ConflictID:    conflict.ConflictID,
			VoterID:       "member-" + string(rune('1'+i)),
			VoteType:      entities.VoteTypeApproveTranslation,
			TranslationID: target,
			CreatedAt:     now.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seed vote failed: %v", err)
		}
	}
	if _, err := store.MarkInReview(ctx, conflict.ConflictID, now); err != nil {
		t.Fatalf("mark in review failed: %v", err)
	}
	members, err := store.ListMembers(ctx, conflict.ConflictID)
	if err != nil {
		t.Fatalf("list members failed: %v", err)
	}

	outcome, applied, err := service.attemptResolution(ctx, conflict, members, "member-4", now)
	if err != nil {
		t.Fatalf("resolution failed: %v", err)
	}
	if !outcome.decided || !applied {
		t.Fatal("expected an applied resolution")
	}
	if outcome.winnerID != "tr-a" {
		t.Fatalf("expected earliest-created tr-a to win the tie, got %s", outcome.winnerID)
	}
}

func TestCastVoteRejectsDuplicateVoter(t *testing.T) {
	service, _ := newArbiter(t)
	conflict := openCase(t, service)

	vote(t, service, conflict.ConflictID, "member-1", entities.VoteTypeAbstain, "")
	_, err := service.CastVote(context.Background(), CastVoteCommand{
		ConflictID: conflict.ConflictID,
		VoterID:    "member-1",
		VoteType:   entities.VoteTypeCreateNew,
	})
	if !errors.Is(err, domainerrors.ErrDuplicateVote) {
		t.Fatalf("expected duplicate vote error, got %v", err)
	}
}

func TestCastVoteRejectsResolvedCase(t *testing.T) {
	service, _ := newArbiter(t)
	conflict := openCase(t, service)

	vote(t, service, conflict.ConflictID, "member-1", entities.VoteTypeApproveTranslation, "tr-a")
	vote(t, service, conflict.ConflictID, "member-2", entities.VoteTypeApproveTranslation, "tr-a")
	vote(t, service, conflict.ConflictID, "member-3", entities.VoteTypeApproveTranslation, "tr-a")

	_, err := service.CastVote(context.Background(), CastVoteCommand{
		ConflictID: conflict.ConflictID,
		VoterID:    "member-4",
		VoteType:   entities.VoteTypeAbstain,
	})
	if !errors.Is(err, domainerrors.ErrConflictAlreadyResolved) {
		t.Fatalf("expected already resolved error, got %v", err)
	}
}

func TestCastVoteRejectsTargetOutsideCase(t *testing.T) {
	service, store := newArbiter(t)
	conflict := openCase(t, service)

	store.SetTranslation(ports.TranslationRef{
		TranslationID: "tr-other",
		TermID:        "term-2",
		ContributorID: "contributor-c",
		Status:        "pending_review",
		CreatedAt:     time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	})
	_, err := service.CastVote(context.Background(), CastVoteCommand{
		ConflictID:    conflict.ConflictID,
		VoterID:       "member-1",
		VoteType:      entities.VoteTypeApproveTranslation,
		TranslationID: "tr-other",
	})
	if !errors.Is(err, domainerrors.ErrInvalidVoteTarget) {
		t.Fatalf("expected invalid vote target, got %v", err)
	}
}

func TestCastVoteEmitsResolutionEvents(t *testing.T) {
	service, store := newArbiter(t)
	conflict := openCase(t, service)

	vote(t, service, conflict.ConflictID, "member-1", entities.VoteTypeApproveTranslation, "tr-a")
	vote(t, service, conflict.ConflictID, "member-2", entities.VoteTypeApproveTranslation, "tr-a")
	vote(t, service, conflict.ConflictID, "member-3", entities.VoteTypeApproveTranslation, "tr-a")

	counts := map[string]int{}
	for _, event := range store.OutboxEvents() {
		counts[event.EventType]++
	}
	if counts[events.TypeConflictResolved] != 1 {
		t.Fatalf("expected one conflict.resolved, got %d", counts[events.TypeConflictResolved])
	}
	if counts[events.TypeTranslationApproved] != 1 {
		t.Fatalf("expected one translation.approved, got %d", counts[events.TypeTranslationApproved])
	}
	if counts[events.TypeTranslationRejected] != 1 {
		t.Fatalf("expected one translation.rejected, got %d", counts[events.TypeTranslationRejected])
	}
}
