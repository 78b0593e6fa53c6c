package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"termbase/contexts/consensus/conflict-arbiter/domain/entities"
	domainerrors "termbase/contexts/consensus/conflict-arbiter/domain/errors"
	"termbase/contexts/consensus/conflict-arbiter/ports"
)

const (
	// WinnerBonusPoints is the one-time award for the contributor whose
	// translation is selected by the committee.
	WinnerBonusPoints = 50

	resolutionVoteMinimum = 3
)

type CastVoteCommand struct {
	ConflictID    string
	VoterID       string
	VoteType      entities.VoteType
	TranslationID string
	Comment       string
}

type CastVoteResult struct {
	Vote                 entities.CommitteeVote
	Resolved             bool
	Resolution           entities.Resolution
	WinningTranslationID string
}

// Service arbitrates conflict cases: it records committee votes, attempts
// quorum resolution after every vote, and applies winner/loser effects
// exactly once via a conditional resolve write.
type Service struct {
	Repo   ports.ConflictRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (s Service) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := ResolveLogger(s.Logger)
	cmd.ConflictID = strings.TrimSpace(cmd.ConflictID)
	cmd.VoterID = strings.TrimSpace(cmd.VoterID)
	cmd.TranslationID = strings.TrimSpace(cmd.TranslationID)
	cmd.Comment = strings.TrimSpace(cmd.Comment)

	if cmd.ConflictID == "" || cmd.VoterID == "" {
		return CastVoteResult{}, domainerrors.ErrInvalidVoteInput
	}
	if !cmd.VoteType.Valid() {
		return CastVoteResult{}, domainerrors.ErrInvalidVoteType
	}

	conflict, err := s.Repo.GetConflict(ctx, cmd.ConflictID)
	if err != nil {
		return CastVoteResult{}, err
	}
	if conflict.Status == entities.ConflictStatusResolved {
		return CastVoteResult{}, domainerrors.ErrConflictAlreadyResolved
	}

	members, err := s.Repo.ListMembers(ctx, cmd.ConflictID)
	if err != nil {
		return CastVoteResult{}, err
	}

	if cmd.VoteType == entities.VoteTypeApproveTranslation {
		if cmd.TranslationID == "" {
			return CastVoteResult{}, domainerrors.ErrInvalidVoteTarget
		}
		if _, err := s.Repo.GetTranslation(ctx, cmd.TranslationID); err != nil {
			return CastVoteResult{}, err
		}
		if !isMember(members, cmd.TranslationID) {
			return CastVoteResult{}, domainerrors.ErrInvalidVoteTarget
		}
	} else {
		cmd.TranslationID = ""
	}

	now := s.now()
	voteID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return CastVoteResult{}, err
	}
	vote := entities.CommitteeVote{
		VoteID:        voteID,
		ConflictID:    cmd.ConflictID,
		VoterID:       cmd.VoterID,
		VoteType:      cmd.VoteType,
		TranslationID: cmd.TranslationID,
		Comment:       cmd.Comment,
		CreatedAt:     now,
	}
	if err := s.Repo.InsertVote(ctx, vote); err != nil {
		return CastVoteResult{}, err
	}

	if conflict.Status == entities.ConflictStatusPending {
		// First vote opens the review. A concurrent first vote makes this a
		// no-op, which is fine.
		if _, err := s.Repo.MarkInReview(ctx, cmd.ConflictID, now); err != nil {
			return CastVoteResult{}, err
		}
	}

	logger.Info("committee vote recorded",
		"event", "arbiter_vote_recorded",
		"module", "consensus/conflict-arbiter",
		"layer", "application",
		"conflict_id", cmd.ConflictID,
		"voter_id", cmd.VoterID,
		"vote_type", string(cmd.VoteType),
		"translation_id", cmd.TranslationID,
	)

	result := CastVoteResult{Vote: vote}
	outcome, applied, err := s.attemptResolution(ctx, conflict, members, cmd.VoterID, now)
	if err != nil {
		return CastVoteResult{}, err
	}
	if outcome.decided && !applied {
		// Another vote won the conditional write. Retry once with fresh data;
		// an already-resolved case surfaces as a conflict to this caller.
		fresh, err := s.Repo.GetConflict(ctx, cmd.ConflictID)
		if err != nil {
			return CastVoteResult{}, err
		}
		if fresh.Status == entities.ConflictStatusResolved {
			return CastVoteResult{}, domainerrors.ErrResolutionConflict
		}
		outcome, applied, err = s.attemptResolution(ctx, fresh, members, cmd.VoterID, now)
		if err != nil {
			return CastVoteResult{}, err
		}
		if outcome.decided && !applied {
			return CastVoteResult{}, domainerrors.ErrResolutionConflict
		}
	}
	if outcome.decided && applied {
		result.Resolved = true
		result.Resolution = outcome.resolution
		result.WinningTranslationID = outcome.winnerID
	}
	return result, nil
}

// GetConflict returns the case with its votes and member translations.
func (s Service) GetConflict(ctx context.Context, conflictID string) (entities.ConflictCase, []entities.CommitteeVote, []ports.TranslationRef, error) {
	conflictID = strings.TrimSpace(conflictID)
	if conflictID == "" {
		return entities.ConflictCase{}, nil, nil, domainerrors.ErrInvalidVoteInput
	}
	conflict, err := s.Repo.GetConflict(ctx, conflictID)
	if err != nil {
		return entities.ConflictCase{}, nil, nil, err
	}
	votes, err := s.Repo.ListVotes(ctx, conflictID)
	if err != nil {
		return entities.ConflictCase{}, nil, nil, err
	}
	members, err := s.Repo.ListMembers(ctx, conflictID)
	if err != nil {
		return entities.ConflictCase{}, nil, nil, err
	}
	return conflict, votes, members, nil
}

// DetectConflict opens a pending case when at least two live translations
// compete for the term and no open case exists. Safe to call repeatedly.
func (s Service) DetectConflict(ctx context.Context, termID string) (entities.ConflictCase, bool, error) {
	logger := ResolveLogger(s.Logger)
	termID = strings.TrimSpace(termID)
	if termID == "" {
		return entities.ConflictCase{}, false, domainerrors.ErrInvalidVoteInput
	}

	live, err := s.Repo.ListLiveTranslationsByTerm(ctx, termID)
	if err != nil {
		return entities.ConflictCase{}, false, err
	}
	if len(live) < 2 {
		return entities.ConflictCase{}, false, nil
	}
	if existing, found, err := s.Repo.GetOpenConflictByTerm(ctx, termID); err != nil {
		return entities.ConflictCase{}, false, err
	} else if found {
		return existing, false, nil
	}

	now := s.now()
	conflictID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.ConflictCase{}, false, err
	}
	conflict := entities.ConflictCase{
		ConflictID: conflictID,
		TermID:     termID,
		Status:     entities.ConflictStatusPending,
		Priority:   len(live),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	memberIDs := make([]string, 0, len(live))
	for _, translation := range live {
		memberIDs = append(memberIDs, translation.TranslationID)
	}
	if err := s.Repo.CreateConflict(ctx, conflict, memberIDs); err != nil {
		return entities.ConflictCase{}, false, err
	}
	if err := s.appendConflictOpenedEvent(ctx, conflict, len(live), now); err != nil {
		return entities.ConflictCase{}, false, err
	}

	logger.Info("conflict case opened",
		"event", "arbiter_conflict_opened",
		"module", "consensus/conflict-arbiter",
		"layer", "application",
		"conflict_id", conflict.ConflictID,
		"term_id", termID,
		"translations", len(live),
	)
	return conflict, true, nil
}

type resolutionOutcome struct {
	decided    bool
	resolution entities.Resolution
	winnerID   string
}

// attemptResolution recomputes the tally from the store and, when a decision
// exists, applies it through the conditional resolve write. The boolean
// reports whether this caller's write took effect.
func (s Service) attemptResolution(
	ctx context.Context,
	conflict entities.ConflictCase,
	members []ports.TranslationRef,
	voterID string,
	now time.Time,
) (resolutionOutcome, bool, error) {
	votes, err := s.Repo.ListVotes(ctx, conflict.ConflictID)
	if err != nil {
		return resolutionOutcome{}, false, err
	}
	if len(votes) < resolutionVoteMinimum {
		return resolutionOutcome{}, false, nil
	}

	quorum := entities.Quorum(len(votes))
	createNew := 0
	approvals := make(map[string]int, len(members))
	for _, vote := range votes {
		switch vote.VoteType {
		case entities.VoteTypeCreateNew:
			createNew++
		case entities.VoteTypeApproveTranslation:
			approvals[vote.TranslationID]++
		}
	}

	outcome := resolutionOutcome{}
	if createNew >= quorum {
		outcome = resolutionOutcome{decided: true, resolution: entities.ResolutionRequiresNewTranslation}
	} else {
		// Members arrive ordered by creation time, so ties between candidates
		// that both reach quorum break toward the earliest-created translation.
		for _, member := range members {
			if approvals[member.TranslationID] >= quorum {
				outcome = resolutionOutcome{
					decided:    true,
					resolution: entities.ResolutionTranslationSelected,
					winnerID:   member.TranslationID,
				}
				break
			}
		}
	}
	if !outcome.decided {
		return resolutionOutcome{}, false, nil
	}

	applied, err := s.Repo.Resolve(ctx, ports.ResolutionUpdate{
		ConflictID:           conflict.ConflictID,
		Resolution:           outcome.resolution,
		WinningTranslationID: outcome.winnerID,
		ResolvedBy:           voterID,
		ResolvedAt:           now,
	})
	if err != nil {
		return resolutionOutcome{}, false, err
	}
	if !applied {
		return outcome, false, nil
	}

	if err := s.applyResolutionEffects(ctx, conflict, members, outcome, voterID, now); err != nil {
		return resolutionOutcome{}, false, err
	}
	return outcome, true, nil
}

func (s Service) applyResolutionEffects(
	ctx context.Context,
	conflict entities.ConflictCase,
	members []ports.TranslationRef,
	outcome resolutionOutcome,
	voterID string,
	now time.Time,
) error {
	logger := ResolveLogger(s.Logger)
	contributors := make([]string, 0, len(members))
	for _, member := range members {
		contributors = append(contributors, member.ContributorID)
	}

	if outcome.resolution == entities.ResolutionTranslationSelected {
		var winner ports.TranslationRef
		losers := make([]ports.TranslationRef, 0, len(members))
		for _, member := range members {
			if member.TranslationID == outcome.winnerID {
				winner = member
			} else {
				losers = append(losers, member)
			}
		}

		if err := s.Repo.ApproveTranslation(ctx, winner.TranslationID, now); err != nil {
			return err
		}
		loserIDs := make([]string, 0, len(losers))
		for _, loser := range losers {
			loserIDs = append(loserIDs, loser.TranslationID)
		}
		if len(loserIDs) > 0 {
			if err := s.Repo.RejectTranslations(ctx, loserIDs, now); err != nil {
				return err
			}
		}
		if err := s.Repo.OverwriteTerm(ctx, conflict.TermID, winner.Text, winner.Notes, now); err != nil {
			return err
		}

		if err := s.appendResolvedEvent(ctx, conflict, outcome, voterID, contributors, now); err != nil {
			return err
		}
		if err := s.appendTranslationApprovedEvent(ctx, winner, now); err != nil {
			return err
		}
		for _, loser := range losers {
			if err := s.appendTranslationRejectedEvent(ctx, loser, now); err != nil {
				return err
			}
		}
	} else {
		// requires_new_translation keeps every translation's status; only the
		// resubmit notifications fire.
		if err := s.appendResolvedEvent(ctx, conflict, outcome, voterID, contributors, now); err != nil {
			return err
		}
	}

	logger.Info("conflict case resolved",
		"event", "arbiter_conflict_resolved",
		"module", "consensus/conflict-arbiter",
		"layer", "application",
		"conflict_id", conflict.ConflictID,
		"term_id", conflict.TermID,
		"resolution", string(outcome.resolution),
		"winning_translation_id", outcome.winnerID,
		"resolved_by", voterID,
	)
	return nil
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func isMember(members []ports.TranslationRef, translationID string) bool {
	for _, member := range members {
		if member.TranslationID == translationID {
			return true
		}
	}
	return false
}
