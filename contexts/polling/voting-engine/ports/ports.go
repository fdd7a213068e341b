package ports

import (
	"context"
	"time"

	"agora/contexts/polling/voting-engine/domain/entities"
	contractsv1 "agora/contracts/gen/events/v1"
)

// PollState is the admission-relevant projection of a registry poll.
type PollState struct {
	PollID    string
	Status    string
	ClosesAt  *time.Time
	OptionIDs []string
}

func (s PollState) HasOption(optionID string) bool {
	for _, id := range s.OptionIDs {
		if id == optionID {
			return true
		}
	}
	return false
}

// AcceptingVotes mirrors the registry's close semantics: a poll past its
// scheduled close rejects ballots even before the expiry sweep runs.
func (s PollState) AcceptingVotes(now time.Time) bool {
	if s.Status != "open" {
		return false
	}
	if s.ClosesAt != nil && !s.ClosesAt.UTC().After(now.UTC()) {
		return false
	}
	return true
}

type PollCatalog interface {
	GetPollState(ctx context.Context, pollID string) (PollState, bool, error)
}

// VoterRegistry is the one-vote-per-voter claim index. TryClaim is a single
// atomic test-and-set: exactly one concurrent caller wins a given
// (pollID, voterID) pair. ReleaseClaim exists solely for the append-failure
// rollback path and is never reachable from transport.
type VoterRegistry interface {
	TryClaim(ctx context.Context, pollID string, voterID string) (bool, error)
	ReleaseClaim(ctx context.Context, pollID string, voterID string) error
}

// VoteLedger is the append-only system of record. AppendVote assigns and
// returns a monotonically increasing position; ReadAllVotes replays a poll's
// votes in position order.
type VoteLedger interface {
	AppendVote(ctx context.Context, vote entities.Vote) (int64, error)
	ReadAllVotes(ctx context.Context, pollID string) ([]entities.Vote, error)
	PollIDs(ctx context.Context, limit int) ([]string, error)
}

type TallyStore interface {
	IncrementOption(ctx context.Context, pollID string, optionID string) error
	GetTally(ctx context.Context, pollID string) (entities.Tally, bool, error)
	ReplaceTally(ctx context.Context, tally entities.Tally) error
}

// ResultsNotifier pushes accepted votes to the results side synchronously.
// A nil notifier is a no-op; failures never reverse an accepted vote.
type ResultsNotifier interface {
	VoteAccepted(ctx context.Context, vote entities.Vote) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
