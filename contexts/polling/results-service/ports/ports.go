package ports

import (
	"context"
	"time"

	"agora/contexts/polling/results-service/domain/entities"
	contractsv1 "agora/contracts/gen/events/v1"
)

// PollOptionSummary is the catalog projection of one option.
type PollOptionSummary struct {
	OptionID string
	Label    string
	Position int
}

// PollSummary is the catalog projection results need: identity, lifecycle
// status and the ordered option list.
type PollSummary struct {
	PollID  string
	Title   string
	Status  string
	Options []PollOptionSummary
}

type PollDirectory interface {
	GetPollSummary(ctx context.Context, pollID string) (PollSummary, bool, error)
	OpenPollIDs(ctx context.Context, limit int) ([]string, error)
}

// TallySummary is the live counter view delivered by the voting side.
type TallySummary struct {
	PollID string
	Counts map[string]int64
	Total  int64
}

type TallyProvider interface {
	CurrentTally(ctx context.Context, pollID string) (TallySummary, error)
}

// SnapshotCache is the hot, process-local snapshot layer. Implementations
// own eviction and expiry; callers treat a miss and an expired entry the
// same way.
type SnapshotCache interface {
	Get(pollID string) (entities.ResultSnapshot, bool)
	Set(snapshot entities.ResultSnapshot)
	Invalidate(pollID string)
}

// SnapshotStore persists the last computed snapshot per poll so results
// survive restarts and back stale reads.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, pollID string) (entities.ResultSnapshot, bool, error)
	PutSnapshot(ctx context.Context, snapshot entities.ResultSnapshot) error
}

// EventDedupStore reserves consumed event ids. The first reservation returns
// false; a replay with the same payload hash returns true; a replay with a
// different hash fails.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}

type Clock interface {
	Now() time.Time
}

type EventEnvelope = contractsv1.Envelope

type EventSubscriber interface {
	Subscribe(ctx context.Context, topic string, consumerGroup string, handler func(context.Context, EventEnvelope) error) error
}
