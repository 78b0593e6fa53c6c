package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"termbase/contexts/consensus/validation-ledger/domain/entities"
	domainerrors "termbase/contexts/consensus/validation-ledger/domain/errors"
	"termbase/internal/shared/events"

	"github.com/google/uuid"
)

// Store is the in-memory adapter used by tests. It mirrors the store-level
// guarantees the engine relies on: the unique (translation_id, validator_id)
// constraint and the conditional status transition.
type Store struct {
	mu sync.RWMutex

	translations map[string]entities.Translation
	validations  map[string]entities.Validation
	byIdentity   map[string]string // translationID|validatorID -> validationID
	outbox       []events.Envelope
}

func NewStore(seed []entities.Translation) *Store {
	translations := make(map[string]entities.Translation, len(seed))
	for _, translation := range seed {
		translations[translation.TranslationID] = translation
	}
	return &Store{
		translations: translations,
		validations:  make(map[string]entities.Validation),
		byIdentity:   make(map[string]string),
	}
}

func (s *Store) SetTranslation(translation entities.Translation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.translations[strings.TrimSpace(translation.TranslationID)] = translation
}

func (s *Store) Translation(translationID string) (entities.Translation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	translation, ok := s.translations[strings.TrimSpace(translationID)]
	return translation, ok
}

func (s *Store) OutboxEvents() []events.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Envelope(nil), s.outbox...)
}

func (s *Store) GetTranslation(_ context.Context, translationID string) (entities.Translation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	translation, ok := s.translations[strings.TrimSpace(translationID)]
	if !ok {
		return entities.Translation{}, domainerrors.ErrTranslationNotFound
	}
	return translation, nil
}

func (s *Store) InsertValidation(_ context.Context, validation entities.Validation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := identityKey(validation.TranslationID, validation.ValidatorID)
	if _, exists := s.byIdentity[key]; exists {
		return domainerrors.ErrDuplicateValidation
	}
	s.validations[validation.ValidationID] = validation
	s.byIdentity[key] = validation.ValidationID
	return nil
}

func (s *Store) ListValidations(_ context.Context, translationID string) ([]entities.Validation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Validation, 0)
	for _, validation := range s.validations {
		if validation.TranslationID == strings.TrimSpace(translationID) {
			items = append(items, validation)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) Summarize(_ context.Context, translationID string) (entities.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var summary entities.Summary
	for _, validation := range s.validations {
		if validation.TranslationID != strings.TrimSpace(translationID) {
			continue
		}
		summary.Total++
		switch validation.Decision {
		case entities.DecisionApproved:
			summary.Approvals++
		case entities.DecisionRejected:
			summary.Rejections++
		case entities.DecisionNeedsRevision:
			summary.Revisions++
		}
	}
	return summary, nil
}

func (s *Store) IncrementDecisionCounter(_ context.Context, translationID string, decision entities.ValidationDecision, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	translation, ok := s.translations[strings.TrimSpace(translationID)]
	if !ok {
		return domainerrors.ErrTranslationNotFound
	}
	switch decision {
	case entities.DecisionApproved:
		translation.ApprovalCount++
	case entities.DecisionRejected:
		translation.RejectionCount++
	}
	translation.UpdatedAt = updatedAt.UTC()
	s.translations[translation.TranslationID] = translation
	return nil
}

func (s *Store) TransitionStatus(_ context.Context, translationID string, fromStatus, toStatus entities.TranslationStatus, updatedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	translation, ok := s.translations[strings.TrimSpace(translationID)]
	if !ok {
		return false, domainerrors.ErrTranslationNotFound
	}
	if translation.Status != fromStatus {
		return false, nil
	}
	translation.Status = toStatus
	translation.UpdatedAt = updatedAt.UTC()
	s.translations[translation.TranslationID] = translation
	return true, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, envelope)
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func identityKey(translationID, validatorID string) string {
	return strings.TrimSpace(translationID) + "|" + strings.TrimSpace(validatorID)
}
