package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"termbase/contexts/consensus/conflict-arbiter/domain/entities"
	domainerrors "termbase/contexts/consensus/conflict-arbiter/domain/errors"
	"termbase/contexts/consensus/conflict-arbiter/ports"
	"termbase/internal/shared/events"

	"github.com/google/uuid"
)

type termContent struct {
	Text  string
	Notes string
}

// Store is the in-memory adapter used by tests. It mirrors the store
// guarantees the arbiter relies on: the unique (conflict_id, voter_id)
// constraint and the resolve-only-while-in-review conditional write.
type Store struct {
	mu sync.RWMutex

	conflicts    map[string]entities.ConflictCase
	members      map[string][]string // conflictID -> translationIDs in attach order
	votes        map[string]entities.CommitteeVote
	voteIdentity map[string]string // conflictID|voterID -> voteID
	translations map[string]ports.TranslationRef
	terms        map[string]termContent
	outbox       []events.Envelope
}

func NewStore(seed []ports.TranslationRef) *Store {
	translations := make(map[string]ports.TranslationRef, len(seed))
	for _, translation := range seed {
		translations[translation.TranslationID] = translation
	}
	return &Store{
		conflicts:    make(map[string]entities.ConflictCase),
		members:      make(map[string][]string),
		votes:        make(map[string]entities.CommitteeVote),
		voteIdentity: make(map[string]string),
		translations: translations,
		terms:        make(map[string]termContent),
	}
}

func (s *Store) SetTranslation(translation ports.TranslationRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.translations[strings.TrimSpace(translation.TranslationID)] = translation
}

func (s *Store) TranslationStatus(translationID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.translations[strings.TrimSpace(translationID)].Status
}

func (s *Store) TermContent(termID string) (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content := s.terms[strings.TrimSpace(termID)]
	return content.Text, content.Notes
}

func (s *Store) OutboxEvents() []events.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Envelope(nil), s.outbox...)
}

func (s *Store) GetConflict(_ context.Context, conflictID string) (entities.ConflictCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conflict, ok := s.conflicts[strings.TrimSpace(conflictID)]
	if !ok {
		return entities.ConflictCase{}, domainerrors.ErrConflictNotFound
	}
	return conflict, nil
}

func (s *Store) GetOpenConflictByTerm(_ context.Context, termID string) (entities.ConflictCase, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, conflict := range s.conflicts {
		if conflict.TermID == strings.TrimSpace(termID) && conflict.Status != entities.ConflictStatusResolved {
			return conflict, true, nil
		}
	}
	return entities.ConflictCase{}, false, nil
}

func (s *Store) CreateConflict(_ context.Context, conflict entities.ConflictCase, memberIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts[conflict.ConflictID] = conflict
	s.members[conflict.ConflictID] = append([]string(nil), memberIDs...)
	return nil
}

func (s *Store) MarkInReview(_ context.Context, conflictID string, updatedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conflict, ok := s.conflicts[strings.TrimSpace(conflictID)]
	if !ok {
		return false, domainerrors.ErrConflictNotFound
	}
	if conflict.Status != entities.ConflictStatusPending {
		return false, nil
	}
	conflict.Status = entities.ConflictStatusInReview
	conflict.UpdatedAt = updatedAt.UTC()
	s.conflicts[conflict.ConflictID] = conflict
	return true, nil
}

func (s *Store) InsertVote(_ context.Context, vote entities.CommitteeVote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := identityKey(vote.ConflictID, vote.VoterID)
	if _, exists := s.voteIdentity[key]; exists {
		return domainerrors.ErrDuplicateVote
	}
	s.votes[vote.VoteID] = vote
	s.voteIdentity[key] = vote.VoteID
	return nil
}

func (s *Store) ListVotes(_ context.Context, conflictID string) ([]entities.CommitteeVote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.CommitteeVote, 0)
	for _, vote := range s.votes {
		if vote.ConflictID == strings.TrimSpace(conflictID) {
			items = append(items, vote)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) ListMembers(_ context.Context, conflictID string) ([]ports.TranslationRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.members[strings.TrimSpace(conflictID)]
	items := make([]ports.TranslationRef, 0, len(ids))
	for _, id := range ids {
		if translation, ok := s.translations[id]; ok {
			items = append(items, translation)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) GetTranslation(_ context.Context, translationID string) (ports.TranslationRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	translation, ok := s.translations[strings.TrimSpace(translationID)]
	if !ok {
		return ports.TranslationRef{}, domainerrors.ErrTranslationNotFound
	}
	return translation, nil
}

func (s *Store) ListLiveTranslationsByTerm(_ context.Context, termID string) ([]ports.TranslationRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]ports.TranslationRef, 0)
	for _, translation := range s.translations {
		if translation.TermID != strings.TrimSpace(termID) {
			continue
		}
		if entities.IsLiveTranslationStatus(translation.Status) {
			items = append(items, translation)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) Resolve(_ context.Context, update ports.ResolutionUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conflict, ok := s.conflicts[strings.TrimSpace(update.ConflictID)]
	if !ok {
		return false, domainerrors.ErrConflictNotFound
	}
	if conflict.Status != entities.ConflictStatusInReview {
		return false, nil
	}
	resolvedAt := update.ResolvedAt.UTC()
	conflict.Status = entities.ConflictStatusResolved
	conflict.Resolution = update.Resolution
	conflict.WinningTranslationID = update.WinningTranslationID
	conflict.ResolvedBy = update.ResolvedBy
	conflict.ResolvedAt = &resolvedAt
	conflict.UpdatedAt = resolvedAt
	s.conflicts[conflict.ConflictID] = conflict
	return true, nil
}

func (s *Store) ApproveTranslation(_ context.Context, translationID string, approvedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	translation, ok := s.translations[strings.TrimSpace(translationID)]
	if !ok {
		return domainerrors.ErrTranslationNotFound
	}
	translation.Status = "approved"
	s.translations[translation.TranslationID] = translation
	return nil
}

func (s *Store) RejectTranslations(_ context.Context, translationIDs []string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range translationIDs {
		translation, ok := s.translations[strings.TrimSpace(id)]
		if !ok {
			continue
		}
		translation.Status = "rejected"
		s.translations[translation.TranslationID] = translation
	}
	return nil
}

func (s *Store) OverwriteTerm(_ context.Context, termID, text, notes string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terms[strings.TrimSpace(termID)] = termContent{Text: text, Notes: notes}
	return nil
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

func identityKey(conflictID, voterID string) string {
	return strings.TrimSpace(conflictID) + "|" + strings.TrimSpace(voterID)
}
