package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"termbase/contexts/governance/orchestrator/adapters/memory"
	"termbase/internal/shared/events"
)

type capturePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *capturePublisher) Publish(_ context.Context, topic string, _ events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *capturePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

func seedEvent(t *testing.T, store *memory.Store, eventID, eventType string) {
	t.Helper()
	env, err := events.New(eventID, eventType, "test",
		"entity", "entity-1", time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		map[string]string{"id": eventID})
	if err != nil {
		t.Fatalf("build envelope failed: %v", err)
	}
	if err := store.AppendOutbox(context.Background(), env); err != nil {
		t.Fatalf("append outbox failed: %v", err)
	}
}

func TestOutboxRelayPublishesAndMarksRows(t *testing.T) {
	store := memory.NewStore()
	publisher := &capturePublisher{}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, Clock: store}

	seedEvent(t, store, "evt-1", events.TypeUserStruck)
	seedEvent(t, store, "evt-2", events.TypeUserPromoted)

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}

	topics := publisher.published()
	if len(topics) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(topics))
	}
	if topics[0] != events.TypeUserStruck || topics[1] != events.TypeUserPromoted {
		t.Fatalf("unexpected topics %v", topics)
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending rows after relay, got %d", len(pending))
	}
}

func TestOutboxRelaySecondRunIsNoOp(t *testing.T) {
	store := memory.NewStore()
	publisher := &capturePublisher{}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, Clock: store}

	seedEvent(t, store, "evt-1", events.TypeUserStruck)

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if len(publisher.published()) != 1 {
		t.Fatalf("expected one publish total, got %d", len(publisher.published()))
	}
}
