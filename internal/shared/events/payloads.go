package events

// Payload contracts for governance events. Each carries enough identifiers
// for the orchestrator to award points and render a notification; the engine
// never formats presentation text.

type ValidationRecorded struct {
	TranslationID string `json:"translation_id"`
	ValidatorID   string `json:"validator_id"`
	Decision      string `json:"decision"`
	Rating        int    `json:"rating"`
	Points        int    `json:"points"`
}

type ReviewQuorumReached struct {
	TranslationID string  `json:"translation_id"`
	TermID        string  `json:"term_id"`
	ContributorID string  `json:"contributor_id"`
	Validations   int     `json:"validations"`
	ApprovalRatio float64 `json:"approval_ratio"`
}

type TranslationApproved struct {
	TranslationID string `json:"translation_id"`
	ContributorID string `json:"contributor_id"`
	Points        int    `json:"points"`
}

type TranslationRejected struct {
	TranslationID string `json:"translation_id"`
	ContributorID string `json:"contributor_id"`
}

type ConflictOpened struct {
	ConflictID   string `json:"conflict_id"`
	TermID       string `json:"term_id"`
	Translations int    `json:"translations"`
	Priority     int    `json:"priority"`
}

type ConflictResolved struct {
	ConflictID              string   `json:"conflict_id"`
	TermID                  string   `json:"term_id"`
	Resolution              string   `json:"resolution"`
	WinningTranslationID    string   `json:"winning_translation_id,omitempty"`
	ResolvedBy              string   `json:"resolved_by"`
	ParticipantContributors []string `json:"participant_contributors"`
}

type UserStruck struct {
	UserID      string `json:"user_id"`
	StrikeID    string `json:"strike_id"`
	Reason      string `json:"reason"`
	StrikeCount int    `json:"strike_count"`
	Banned      bool   `json:"banned"`
}

type UserReinstated struct {
	UserID string `json:"user_id"`
}

type UserPromoted struct {
	UserID      string `json:"user_id"`
	FromRole    string `json:"from_role"`
	ToRole      string `json:"to_role"`
	BonusPoints int    `json:"bonus_points"`
}
