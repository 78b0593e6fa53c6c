package entities

import "time"

type TranslationStatus string

const (
	TranslationStatusDraft             TranslationStatus = "draft"
	TranslationStatusPendingReview     TranslationStatus = "pending_review"
	TranslationStatusPendingValidation TranslationStatus = "pending_validation"
	TranslationStatusApproved          TranslationStatus = "approved"
	TranslationStatusRejected          TranslationStatus = "rejected"
	TranslationStatusNeedsRevision     TranslationStatus = "needs_revision"
)

// Translation is the candidate rendering of a term under peer review.
// At most one translation exists per (term_id, contributor_id).
type Translation struct {
	TranslationID  string
	TermID         string
	ContributorID  string
	Text           string
	Notes          string
	Status         TranslationStatus
	ApprovalCount  int
	RejectionCount int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ApprovedAt     *time.Time
}

type ValidationDecision string

const (
	DecisionApproved      ValidationDecision = "approved"
	DecisionNeedsRevision ValidationDecision = "needs_revision"
	DecisionRejected      ValidationDecision = "rejected"
)

func (d ValidationDecision) Valid() bool {
	switch d {
	case DecisionApproved, DecisionNeedsRevision, DecisionRejected:
		return true
	default:
		return false
	}
}

// Validation is one validator's judgment of one translation, unique per
// (translation_id, validator_id).
type Validation struct {
	ValidationID  string
	TranslationID string
	ValidatorID   string
	Rating        int
	Decision      ValidationDecision
	Comment       string
	CreatedAt     time.Time
}

// Summary aggregates the validations recorded for one translation.
type Summary struct {
	Total      int
	Approvals  int
	Rejections int
	Revisions  int
}

// ApprovalRatio is approvals over total validations; zero when no
// validations exist so callers never divide by zero.
func (s Summary) ApprovalRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Approvals) / float64(s.Total)
}
