package ports

import (
	"context"
	"time"

	"agora/contexts/polling/poll-registry/domain/entities"
	contractsv1 "agora/contracts/gen/events/v1"
)

type PollFilter struct {
	CreatedBy string
	Status    entities.PollStatus
}

type PollRepository interface {
	CreatePoll(ctx context.Context, poll entities.Poll) error
	UpdatePoll(ctx context.Context, poll entities.Poll) error
	GetPoll(ctx context.Context, pollID string) (entities.Poll, error)
	ListPolls(ctx context.Context, filter PollFilter) ([]entities.Poll, error)
}

type IdempotencyRecord struct {
	Key             string
	RequestHash     string
	ResponsePayload []byte
	ExpiresAt       time.Time
}

type IdempotencyStore interface {
	GetRecord(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	PutRecord(ctx context.Context, record IdempotencyRecord) error
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

type ExpiredPollResult struct {
	PollID string
}

// ExpiryRepository closes open polls whose scheduled close time has passed
// and stages the matching poll.closed events in one atomic step.
type ExpiryRepository interface {
	CloseExpiredPolls(ctx context.Context, now time.Time, limit int) ([]ExpiredPollResult, error)
}
