package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"agora/contexts/polling/poll-registry/domain/entities"
	domainerrors "agora/contexts/polling/poll-registry/domain/errors"
	"agora/contexts/polling/poll-registry/ports"
	eventsv1 "agora/contracts/gen/events/v1"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type Store struct {
	mu sync.RWMutex

	polls       map[string]entities.Poll
	idempotency map[string]ports.IdempotencyRecord
	outbox      map[string]outboxRecord
}

func NewStore(seed []entities.Poll) *Store {
	polls := make(map[string]entities.Poll, len(seed))
	for _, poll := range seed {
		polls[poll.PollID] = poll
	}
	return &Store{
		polls:       polls,
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make(map[string]outboxRecord),
	}
}

func (s *Store) CreatePoll(_ context.Context, poll entities.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.polls[poll.PollID]; exists {
		return domainerrors.ErrInvalidPollInput
	}
	s.polls[poll.PollID] = poll
	return nil
}

func (s *Store) UpdatePoll(_ context.Context, poll entities.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.polls[poll.PollID]; !exists {
		return domainerrors.ErrPollNotFound
	}
	s.polls[poll.PollID] = poll
	return nil
}

func (s *Store) GetPoll(_ context.Context, pollID string) (entities.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	poll, exists := s.polls[strings.TrimSpace(pollID)]
	if !exists {
		return entities.Poll{}, domainerrors.ErrPollNotFound
	}
	return poll, nil
}

func (s *Store) ListPolls(_ context.Context, filter ports.PollFilter) ([]entities.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Poll, 0, len(s.polls))
	for _, poll := range s.polls {
		if strings.TrimSpace(filter.CreatedBy) != "" && poll.CreatedBy != strings.TrimSpace(filter.CreatedBy) {
			continue
		}
		if filter.Status != "" && poll.Status != filter.Status {
			continue
		}
		items = append(items, poll)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) CloseExpiredPolls(_ context.Context, now time.Time, limit int) ([]ports.ExpiredPollResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	timestamp := now.UTC()
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	expired := make([]entities.Poll, 0)
	for _, poll := range s.polls {
		if poll.Status != entities.PollStatusOpen {
			continue
		}
		if poll.ClosesAt == nil || poll.ClosesAt.UTC().After(timestamp) {
			continue
		}
		expired = append(expired, poll)
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ClosesAt.Before(*expired[j].ClosesAt)
	})
	if len(expired) > limit {
		expired = expired[:limit]
	}

	results := make([]ports.ExpiredPollResult, 0, len(expired))
	for _, poll := range expired {
		closedAt := timestamp
		poll.Status = entities.PollStatusClosed
		poll.ClosedAt = &closedAt
		poll.UpdatedAt = timestamp
		s.polls[poll.PollID] = poll

		envelope, err := registryEnvelope(
			uuid.NewString(),
			eventsv1.EventTypePollClosed,
			poll.PollID,
			timestamp,
			eventsv1.PollClosedData{
				PollID:   poll.PollID,
				ClosedBy: "system",
				ClosedAt: closedAt,
			},
		)
		if err != nil {
			return nil, err
		}
		if err := s.appendOutboxLocked(envelope); err != nil {
			return nil, err
		}
		results = append(results, ports.ExpiredPollResult{PollID: poll.PollID})
	}
	return results, nil
}

func (s *Store) GetRecord(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.idempotency[key]
	if !exists {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.After(now) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) PutRecord(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.idempotency[record.Key]
	if exists {
		if existing.RequestHash != record.RequestHash {
			return domainerrors.ErrIdempotencyKeyConflict
		}
		if !bytes.Equal(existing.ResponsePayload, record.ResponsePayload) {
			return domainerrors.ErrIdempotencyKeyConflict
		}
	}
	s.idempotency[record.Key] = record
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendOutboxLocked(envelope)
}

func (s *Store) appendOutboxLocked(envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrIdempotencyKeyConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrPollNotFound
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func registryEnvelope(
	eventID string,
	eventType string,
	pollID string,
	occurredAt time.Time,
	data any,
) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "poll-registry",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "poll_id",
		PartitionKey:     pollID,
		Data:             payload,
	}, nil
}
