package entities

import "time"

type StrikeReason string

const (
	ReasonSpam               StrikeReason = "spam"
	ReasonPlagiarism         StrikeReason = "plagiarism"
	ReasonAbusiveConduct     StrikeReason = "abusive_conduct"
	ReasonVoteManipulation   StrikeReason = "vote_manipulation"
	ReasonRepeatedLowQuality StrikeReason = "repeated_low_quality"
)

func (r StrikeReason) Valid() bool {
	switch r {
	case ReasonSpam, ReasonPlagiarism, ReasonAbusiveConduct, ReasonVoteManipulation, ReasonRepeatedLowQuality:
		return true
	default:
		return false
	}
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	default:
		return false
	}
}

// Strike is one recorded policy violation. Only active strikes count toward
// suspension; a deactivated or expired strike never re-activates itself.
type Strike struct {
	StrikeID  string
	UserID    string
	AdminID   string
	Reason    StrikeReason
	Detail    string
	Severity  Severity
	IsActive  bool
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BanState is the ledger's view of a user's suspension fields.
type BanState struct {
	UserID       string
	IsBanned     bool
	IsActive     bool
	BannedAt     *time.Time
	BannedReason string
	BanExpiresAt *time.Time
}

// SuspensionThreshold is the active-strike count that triggers a ban.
const SuspensionThreshold = 3
