package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"termbase/contexts/governance/strike-ledger/domain/entities"
	domainerrors "termbase/contexts/governance/strike-ledger/domain/errors"
	"termbase/internal/shared/events"

	"github.com/google/uuid"
)

// Store is the in-memory adapter used by tests. Conditional ban/unban writes
// mirror the store semantics the ledger relies on for idempotency.
type Store struct {
	mu sync.RWMutex

	strikes map[string]entities.Strike
	bans    map[string]entities.BanState
	outbox  []events.Envelope

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		strikes: make(map[string]entities.Strike),
		bans:    make(map[string]entities.BanState),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetNow pins the store clock for tests.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) SetBanState(state entities.BanState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bans[strings.TrimSpace(state.UserID)] = state
}

func (s *Store) BanState(userID string) (entities.BanState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.bans[strings.TrimSpace(userID)]
	return state, ok
}

func (s *Store) OutboxEvents() []events.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Envelope(nil), s.outbox...)
}

func (s *Store) InsertStrike(_ context.Context, strike entities.Strike) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strikes[strike.StrikeID] = strike
	return nil
}

func (s *Store) GetStrike(_ context.Context, strikeID string) (entities.Strike, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	strike, ok := s.strikes[strings.TrimSpace(strikeID)]
	if !ok {
		return entities.Strike{}, domainerrors.ErrStrikeNotFound
	}
	return strike, nil
}

func (s *Store) ListStrikes(_ context.Context, userID string) ([]entities.Strike, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Strike, 0)
	for _, strike := range s.strikes {
		if strike.UserID == strings.TrimSpace(userID) {
			items = append(items, strike)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) CountActiveStrikes(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, strike := range s.strikes {
		if strike.UserID == strings.TrimSpace(userID) && strike.IsActive {
			count++
		}
	}
	return count, nil
}

func (s *Store) DeactivateStrike(_ context.Context, strikeID string, updatedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	strike, ok := s.strikes[strings.TrimSpace(strikeID)]
	if !ok {
		return false, domainerrors.ErrStrikeNotFound
	}
	if !strike.IsActive {
		return false, nil
	}
	strike.IsActive = false
	strike.UpdatedAt = updatedAt.UTC()
	s.strikes[strike.StrikeID] = strike
	return true, nil
}

func (s *Store) ListExpiredActiveStrikes(_ context.Context, now time.Time, limit int) ([]entities.Strike, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Strike, 0)
	for _, strike := range s.strikes {
		if !strike.IsActive || strike.ExpiresAt == nil {
			continue
		}
		if !strike.ExpiresAt.After(now) {
			items = append(items, strike)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) GetBanState(_ context.Context, userID string) (entities.BanState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.bans[strings.TrimSpace(userID)]
	return state, ok, nil
}

func (s *Store) ApplyBan(_ context.Context, userID, reason string, bannedAt, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID = strings.TrimSpace(userID)
	state := s.bans[userID]
	if state.IsBanned {
		return false, nil
	}
	banned := bannedAt.UTC()
	expires := expiresAt.UTC()
	s.bans[userID] = entities.BanState{
		UserID:       userID,
		IsBanned:     true,
		IsActive:     false,
		BannedAt:     &banned,
		BannedReason: reason,
		BanExpiresAt: &expires,
	}
	return true, nil
}

func (s *Store) LiftBan(_ context.Context, userID string, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID = strings.TrimSpace(userID)
	state, ok := s.bans[userID]
	if !ok || !state.IsBanned {
		return false, nil
	}
	s.bans[userID] = entities.BanState{
		UserID:   userID,
		IsBanned: false,
		IsActive: true,
	}
	return true, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, envelope)
	return nil
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
