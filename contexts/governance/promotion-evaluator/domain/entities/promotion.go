package entities

import "time"

// Metrics is the cumulative contributor record the evaluator reads. It is
// recomputed from the store on every call; the evaluator holds no state.
type Metrics struct {
	UserID               string
	Role                 Role
	Level                int
	ApprovedTranslations int
	TotalTranslations    int
	ValidationsPerformed int
	PromotedAt           *time.Time
}

// ApprovalRate is approved over total translations; zero when the user has
// no translations so eligibility checks never divide by zero.
func (m Metrics) ApprovalRate() float64 {
	if m.TotalTranslations == 0 {
		return 0
	}
	return float64(m.ApprovedTranslations) / float64(m.TotalTranslations)
}

// Threshold is one upgrade rule, checked only from the immediately-lower
// role; tiers are never skipped.
type Threshold struct {
	Target          Role
	MinApproved     int
	MinApprovalRate float64
	MinLevel        int
	MinValidations  int
	BonusPoints     int
}

var thresholds = map[Role]Threshold{
	RoleContributor: {
		Target:          RoleReviewer,
		MinApproved:     50,
		MinApprovalRate: 0.85,
		MinLevel:        3,
		BonusPoints:     100,
	},
	RoleReviewer: {
		Target:          RoleCommitteeMember,
		MinApproved:     200,
		MinApprovalRate: 0.90,
		MinLevel:        8,
		MinValidations:  100,
		BonusPoints:     250,
	},
}

// ThresholdFor returns the upgrade rule applicable from the given role.
func ThresholdFor(from Role) (Threshold, bool) {
	threshold, ok := thresholds[from]
	return threshold, ok
}

// Met reports whether the metrics clear every criterion of the threshold.
func (t Threshold) Met(metrics Metrics) bool {
	if metrics.ApprovedTranslations < t.MinApproved {
		return false
	}
	if metrics.ApprovalRate() < t.MinApprovalRate {
		return false
	}
	if metrics.Level < t.MinLevel {
		return false
	}
	if metrics.ValidationsPerformed < t.MinValidations {
		return false
	}
	return true
}

// Criterion is one row of read-only promotion progress.
type Criterion struct {
	Name     string
	Current  float64
	Required float64
	Percent  float64
}

// Progress exposes how close a user is to the next tier without mutating
// anything.
type Progress struct {
	UserID      string
	CurrentRole Role
	TargetRole  Role
	Eligible    bool
	Criteria    []Criterion
}
