package events

import (
	"encoding/json"
	"time"
)

// Envelope is the shared event shape carried through outbox rows and the bus.
// Engine modules emit decisions as events; the orchestrator consumes them.
type Envelope struct {
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	SourceService  string          `json:"source_service"`
	OccurredAtUTC  time.Time       `json:"occurred_at_utc"`
	EntityType     string          `json:"entity_type"`
	EntityID       string          `json:"entity_id"`
	PayloadVersion int             `json:"payload_version"`
	Payload        json.RawMessage `json:"payload"`
}

// Event types emitted by the governance engine.
const (
	TypeValidationRecorded  = "validation.recorded"
	TypeReviewQuorumReached = "translation.review_quorum_reached"
	TypeTranslationApproved = "translation.approved"
	TypeTranslationRejected = "translation.rejected"
	TypeConflictOpened      = "conflict.opened"
	TypeConflictResolved    = "conflict.resolved"
	TypeUserStruck          = "user.struck"
	TypeUserReinstated      = "user.reinstated"
	TypeUserPromoted        = "user.promoted"
)

// New builds an envelope with a marshalled payload. Payload marshal failures
// surface to the caller so a decision is never recorded with a broken event.
func New(eventID, eventType, source, entityType, entityID string, occurredAt time.Time, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:        eventID,
		EventType:      eventType,
		SourceService:  source,
		OccurredAtUTC:  occurredAt.UTC(),
		EntityType:     entityType,
		EntityID:       entityID,
		PayloadVersion: 1,
		Payload:        raw,
	}, nil
}
