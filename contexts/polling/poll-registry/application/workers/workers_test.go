package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"agora/contexts/polling/poll-registry/adapters/memory"
	"agora/contexts/polling/poll-registry/domain/entities"
	"agora/contexts/polling/poll-registry/ports"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type capturingPublisher struct {
	topics []string
	events []ports.EventEnvelope
	err    error
}

func (p *capturingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func TestExpiryCloserClosesDuePolls(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	due := now.Add(-time.Hour)
	later := now.Add(time.Hour)
	store := memory.NewStore([]entities.Poll{
		{
			PollID:    "poll-due",
			Title:     "Due poll",
			CreatedBy: "user-1",
			Status:    entities.PollStatusOpen,
			ClosesAt:  &due,
			CreatedAt: now.Add(-2 * time.Hour),
			UpdatedAt: now.Add(-2 * time.Hour),
		},
		{
			PollID:    "poll-later",
			Title:     "Later poll",
			CreatedBy: "user-1",
			Status:    entities.PollStatusOpen,
			ClosesAt:  &later,
			CreatedAt: now.Add(-2 * time.Hour),
			UpdatedAt: now.Add(-2 * time.Hour),
		},
		{
			PollID:    "poll-unscheduled",
			Title:     "Unscheduled poll",
			CreatedBy: "user-1",
			Status:    entities.PollStatusOpen,
			CreatedAt: now.Add(-2 * time.Hour),
			UpdatedAt: now.Add(-2 * time.Hour),
		},
	})

	closer := ExpiryCloser{Polls: store, Clock: fixedClock{now: now}, BatchSize: 10}
	if err := closer.RunOnce(context.Background()); err != nil {
		t.Fatalf("expiry sweep failed: %v", err)
	}

	duePoll, err := store.GetPoll(context.Background(), "poll-due")
	if err != nil {
		t.Fatalf("load due poll failed: %v", err)
	}
	if duePoll.Status != entities.PollStatusClosed {
		t.Fatalf("expected due poll closed, got %s", duePoll.Status)
	}
	if duePoll.ClosedAt == nil || !duePoll.ClosedAt.Equal(now) {
		t.Fatalf("expected closed_at %v, got %v", now, duePoll.ClosedAt)
	}

	laterPoll, err := store.GetPoll(context.Background(), "poll-later")
	if err != nil {
		t.Fatalf("load later poll failed: %v", err)
	}
	if laterPoll.Status != entities.PollStatusOpen {
		t.Fatalf("expected later poll still open, got %s", laterPoll.Status)
	}

	unscheduled, err := store.GetPoll(context.Background(), "poll-unscheduled")
	if err != nil {
		t.Fatalf("load unscheduled poll failed: %v", err)
	}
	if unscheduled.Status != entities.PollStatusOpen {
		t.Fatalf("expected unscheduled poll untouched, got %s", unscheduled.Status)
	}

	outbox, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(outbox) != 1 {
		t.Fatalf("expected one staged close event, got %d", len(outbox))
	}
	var envelope struct {
		EventType string `json:"event_type"`
		Data      struct {
			PollID   string `json:"poll_id"`
			ClosedBy string `json:"closed_by"`
		} `json:"data"`
	}
	if err := json.Unmarshal(outbox[0].Payload, &envelope); err != nil {
		t.Fatalf("decode outbox envelope failed: %v", err)
	}
	if envelope.EventType != "polling.poll.closed" {
		t.Fatalf("expected poll.closed event, got %s", envelope.EventType)
	}
	if envelope.Data.PollID != "poll-due" || envelope.Data.ClosedBy != "system" {
		t.Fatalf("unexpected close payload: %+v", envelope.Data)
	}

	// A second sweep finds nothing new.
	if err := closer.RunOnce(context.Background()); err != nil {
		t.Fatalf("second expiry sweep failed: %v", err)
	}
	outbox, err = store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox after second sweep failed: %v", err)
	}
	if len(outbox) != 1 {
		t.Fatalf("expected no additional events, got %d", len(outbox))
	}
}

func TestOutboxRelayPublishesAndMarks(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore(nil)
	if err := store.AppendOutbox(context.Background(), ports.EventEnvelope{
		EventID:      "event-1",
		EventType:    "polling.poll.created",
		OccurredAt:   now.Add(-time.Minute),
		PartitionKey: "poll-1",
		Data:         json.RawMessage(`{"poll_id":"poll-1"}`),
	}); err != nil {
		t.Fatalf("stage event failed: %v", err)
	}
	if err := store.AppendOutbox(context.Background(), ports.EventEnvelope{
		EventID:      "event-2",
		EventType:    "polling.poll.closed",
		OccurredAt:   now,
		PartitionKey: "poll-1",
		Data:         json.RawMessage(`{"poll_id":"poll-1"}`),
	}); err != nil {
		t.Fatalf("stage event failed: %v", err)
	}

	publisher := &capturingPublisher{}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, Clock: fixedClock{now: now}, BatchSize: 10}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay cycle failed: %v", err)
	}

	if len(publisher.events) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(publisher.events))
	}
	if publisher.topics[0] != "polling.poll.created" || publisher.topics[1] != "polling.poll.closed" {
		t.Fatalf("unexpected topics: %v", publisher.topics)
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty outbox after relay, got %d rows", len(pending))
	}
}

func TestOutboxRelayKeepsRowsOnPublishFailure(t *testing.T) {
	store := memory.NewStore(nil)
	if err := store.AppendOutbox(context.Background(), ports.EventEnvelope{
		EventID:      "event-1",
		EventType:    "polling.poll.created",
		OccurredAt:   time.Now().UTC(),
		PartitionKey: "poll-1",
		Data:         json.RawMessage(`{"poll_id":"poll-1"}`),
	}); err != nil {
		t.Fatalf("stage event failed: %v", err)
	}

	publisher := &capturingPublisher{err: errors.New("broker unreachable")}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, BatchSize: 10}
	if err := relay.RunOnce(context.Background()); err == nil {
		t.Fatal("expected relay cycle to fail")
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected row to stay pending for retry, got %d rows", len(pending))
	}
}
