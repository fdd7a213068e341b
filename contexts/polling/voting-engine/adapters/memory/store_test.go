package memory

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"agora/contexts/polling/voting-engine/domain/entities"
	"agora/contexts/polling/voting-engine/ports"
)

func TestTryClaimAdmitsSingleWinner(t *testing.T) {
	store := NewStore(nil)

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.TryClaim(context.Background(), "poll-1", "voter-1")
			if err != nil {
				t.Errorf("try claim failed: %v", err)
				return
			}
			if claimed {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", wins.Load())
	}

	if err := store.ReleaseClaim(context.Background(), "poll-1", "voter-1"); err != nil {
		t.Fatalf("release claim failed: %v", err)
	}
	claimed, err := store.TryClaim(context.Background(), "poll-1", "voter-1")
	if err != nil {
		t.Fatalf("reclaim failed: %v", err)
	}
	if !claimed {
		t.Fatal("expected claim to succeed after release")
	}
}

func TestIncrementOptionUnderContention(t *testing.T) {
	store := NewStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.IncrementOption(context.Background(), "poll-1", "option-a"); err != nil {
				t.Errorf("increment failed: %v", err)
			}
		}()
	}
	wg.Wait()

	tally, found, err := store.GetTally(context.Background(), "poll-1")
	if err != nil || !found {
		t.Fatalf("tally read failed: found=%v err=%v", found, err)
	}
	if tally.Counts["option-a"] != 100 || tally.Total != 100 {
		t.Fatalf("expected 100 counted increments, got %+v", tally)
	}
}

func TestAppendVoteKeepsPerPollOrder(t *testing.T) {
	store := NewStore(nil)

	for i := 0; i < 3; i++ {
		pollID := "poll-a"
		if i%2 == 1 {
			pollID = "poll-b"
		}
		if _, err := store.AppendVote(context.Background(), entities.Vote{
			VoteID:   "vote",
			PollID:   pollID,
			OptionID: "option-1",
			VoterID:  "voter",
			CastAt:   time.Now().UTC(),
		}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	votesA, err := store.ReadAllVotes(context.Background(), "poll-a")
	if err != nil {
		t.Fatalf("read poll-a failed: %v", err)
	}
	if len(votesA) != 2 {
		t.Fatalf("expected 2 votes in poll-a, got %d", len(votesA))
	}
	if votesA[1].Position <= votesA[0].Position {
		t.Fatalf("expected increasing positions, got %d then %d", votesA[0].Position, votesA[1].Position)
	}

	pollIDs, err := store.PollIDs(context.Background(), 10)
	if err != nil {
		t.Fatalf("poll ids failed: %v", err)
	}
	if len(pollIDs) != 2 || pollIDs[0] != "poll-a" || pollIDs[1] != "poll-b" {
		t.Fatalf("unexpected ledgered poll ids: %v", pollIDs)
	}
}

func TestOutboxDedupAndPublishLifecycle(t *testing.T) {
	store := NewStore(nil)
	envelope := ports.EventEnvelope{
		EventID:      "event-1",
		EventType:    "polling.vote.accepted",
		OccurredAt:   time.Now().UTC(),
		PartitionKey: "poll-1",
		Data:         json.RawMessage(`{"vote_id":"vote-1"}`),
	}

	if err := store.AppendOutbox(context.Background(), envelope); err != nil {
		t.Fatalf("stage event failed: %v", err)
	}
	if err := store.AppendOutbox(context.Background(), envelope); err != nil {
		t.Fatalf("restaging identical event should be a no-op: %v", err)
	}
	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending row, got %d", len(pending))
	}

	mutated := envelope
	mutated.Data = json.RawMessage(`{"vote_id":"vote-2"}`)
	if err := store.AppendOutbox(context.Background(), mutated); err == nil {
		t.Fatal("expected conflict when event id is reused with a different payload")
	}

	if err := store.MarkOutboxPublished(context.Background(), "event-1", time.Now().UTC()); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	pending, err = store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending after publish failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty outbox after publish, got %d rows", len(pending))
	}
}
