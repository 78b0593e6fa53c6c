package entities

import "time"

// PointsEntry is one append-only points ledger row. EventID ties the award
// back to the decision that produced it.
type PointsEntry struct {
	EntryID   string
	UserID    string
	Points    int
	Reason    string
	EventID   string
	CreatedAt time.Time
}

// NotificationKind mirrors the decision event that triggered the record.
type NotificationKind string

const (
	NotificationTranslationApproved NotificationKind = "translation_approved"
	NotificationTranslationRejected NotificationKind = "translation_rejected"
	NotificationConflictResolved    NotificationKind = "conflict_resolved"
	NotificationUserStruck          NotificationKind = "user_struck"
	NotificationUserReinstated      NotificationKind = "user_reinstated"
	NotificationUserPromoted        NotificationKind = "user_promoted"
)

// Notification is a per-user delivery record. The orchestrator only stores
// the fact and the identifiers; rendering is a presentation concern.
type Notification struct {
	NotificationID string
	UserID         string
	Kind           NotificationKind
	EntityID       string
	EventID        string
	CreatedAt      time.Time
}
