package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"termbase/contexts/governance/promotion-evaluator/domain/entities"
	domainerrors "termbase/contexts/governance/promotion-evaluator/domain/errors"
	"termbase/internal/shared/events"

	"github.com/google/uuid"
)

// Store is the in-memory adapter used by tests. PromoteRole is conditional on
// the user's current role, mirroring the store-level guard the evaluator
// relies on for exactly-one promotions.
type Store struct {
	mu sync.RWMutex

	metrics map[string]entities.Metrics
	outbox  []events.Envelope

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		metrics: make(map[string]entities.Metrics),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetNow pins the store clock for tests.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) SetMetrics(metrics entities.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[strings.TrimSpace(metrics.UserID)] = metrics
}

func (s *Store) Metrics(userID string) (entities.Metrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	metrics, ok := s.metrics[strings.TrimSpace(userID)]
	return metrics, ok
}

func (s *Store) OutboxEvents() []events.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Envelope(nil), s.outbox...)
}

func (s *Store) GetMetrics(_ context.Context, userID string) (entities.Metrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	metrics, ok := s.metrics[strings.TrimSpace(userID)]
	if !ok {
		return entities.Metrics{}, domainerrors.ErrUserNotFound
	}
	return metrics, nil
}

func (s *Store) PromoteRole(_ context.Context, userID string, fromRole, toRole entities.Role, promotedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID = strings.TrimSpace(userID)
	metrics, ok := s.metrics[userID]
	if !ok {
		return false, domainerrors.ErrUserNotFound
	}
	if metrics.Role != fromRole {
		return false, nil
	}
	promoted := promotedAt.UTC()
	metrics.Role = toRole
	metrics.PromotedAt = &promoted
	s.metrics[userID] = metrics
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
