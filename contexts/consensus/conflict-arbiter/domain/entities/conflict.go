package entities

import "time"

type ConflictStatus string

const (
	ConflictStatusPending  ConflictStatus = "pending"
	ConflictStatusInReview ConflictStatus = "in_review"
	ConflictStatusResolved ConflictStatus = "resolved"
)

type Resolution string

const (
	ResolutionTranslationSelected    Resolution = "translation_selected"
	ResolutionRequiresNewTranslation Resolution = "requires_new_translation"
)

// ConflictCase groups the competing translations for one term while the
// committee arbitrates. Resolved is terminal.
type ConflictCase struct {
	ConflictID           string
	TermID               string
	Status               ConflictStatus
	Priority             int
	Resolution           Resolution
	WinningTranslationID string
	ResolvedBy           string
	ResolvedAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// LiveTranslationStatuses are the translation statuses that compete in a
// conflict case. Approved and rejected translations are settled and never
// re-enter arbitration.
func LiveTranslationStatuses() []string {
	return []string{"pending_review", "pending_validation"}
}

func IsLiveTranslationStatus(status string) bool {
	for _, live := range LiveTranslationStatuses() {
		if status == live {
			return true
		}
	}
	return false
}

type VoteType string

const (
	VoteTypeApproveTranslation VoteType = "approve_translation"
	VoteTypeCreateNew          VoteType = "create_new"
	VoteTypeAbstain            VoteType = "abstain"
)

func (v VoteType) Valid() bool {
	switch v {
	case VoteTypeApproveTranslation, VoteTypeCreateNew, VoteTypeAbstain:
		return true
	default:
		return false
	}
}

// CommitteeVote is one committee member's position on a conflict case,
// unique per (conflict_id, voter_id). TranslationID is set only for
// approve_translation votes and must reference a case member.
type CommitteeVote struct {
	VoteID        string
	ConflictID    string
	VoterID       string
	VoteType      VoteType
	TranslationID string
	Comment       string
	CreatedAt     time.Time
}

// Quorum is the strict majority of votes cast so far, deliberately low to
// favor timely resolution over full committee turnout.
func Quorum(totalVotes int) int {
	return (totalVotes + 1) / 2
}
