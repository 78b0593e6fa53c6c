package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"termbase/contexts/governance/orchestrator/domain/entities"
	"termbase/internal/shared/events"
	"termbase/internal/shared/outbox"

	"github.com/google/uuid"
)

// Store is the in-memory adapter used by tests and the in-memory composition
// root. It doubles as the shared outbox: engine modules append through
// AppendOutbox and the relay drains through ListPendingOutbox.
type Store struct {
	mu sync.RWMutex

	rows          map[string]outbox.Message
	order         []string
	reservations  map[string]struct{}
	points        []entities.PointsEntry
	notifications []entities.Notification

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		rows:         make(map[string]outbox.Message),
		reservations: make(map[string]struct{}),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetNow pins the store clock for tests.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) PointsEntries() []entities.PointsEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.PointsEntry(nil), s.points...)
}

func (s *Store) Notifications() []entities.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.Notification(nil), s.notifications...)
}

func (s *Store) PointsTotal(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, entry := range s.points {
		if entry.UserID == userID {
			total += entry.Points
		}
	}
	return total
}

func (s *Store) AppendOutbox(_ context.Context, envelope events.Envelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row := outbox.Message{
		OutboxID:  envelope.EventID,
		EventType: envelope.EventType,
		Payload:   payload,
		Status:    outbox.StatusPending,
		CreatedAt: envelope.OccurredAtUTC.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	s.rows[row.OutboxID] = row
	s.order = append(s.order, row.OutboxID)
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]outbox.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	items := make([]outbox.Message, 0, limit)
	for _, id := range s.order {
		row := s.rows[id]
		if row.Status != outbox.StatusPending {
			continue
		}
		items = append(items, row)
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[outboxID]
	if !ok {
		return nil
	}
	published := publishedAt.UTC()
	row.Status = outbox.StatusPublished
	row.PublishedAt = &published
	s.rows[outboxID] = row
	return nil
}

func (s *Store) Reserve(_ context.Context, consumerGroup, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := consumerGroup + "|" + eventID
	if _, exists := s.reservations[key]; exists {
		return false, nil
	}
	s.reservations[key] = struct{}{}
	return true, nil
}

func (s *Store) AppendPointsEntry(_ context.Context, entry entities.PointsEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, entry)
	return nil
}

func (s *Store) InsertNotification(_ context.Context, notification entities.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, notification)
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
