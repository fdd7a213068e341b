package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"agora/contexts/polling/voting-engine/domain/entities"
	domainerrors "agora/contexts/polling/voting-engine/domain/errors"
	"agora/contexts/polling/voting-engine/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// pollShard holds one poll's claims, ledger slice and counters. Each poll
// gets its own shard and lock, so admission on different polls never
// serializes; counters are per-option atomics touched lock-free once
// created.
type pollShard struct {
	mu       sync.RWMutex
	claims   map[string]struct{}
	ledger   []entities.Vote
	counters map[string]*atomic.Int64
	tallied  bool
}

func newPollShard() *pollShard {
	return &pollShard{
		claims:   make(map[string]struct{}),
		counters: make(map[string]*atomic.Int64),
	}
}

type Store struct {
	mu sync.RWMutex

	states map[string]ports.PollState
	shards map[string]*pollShard
	outbox map[string]outboxRecord

	position atomic.Int64
}

func NewStore(seed []ports.PollState) *Store {
	states := make(map[string]ports.PollState, len(seed))
	for _, state := range seed {
		states[state.PollID] = copyState(state)
	}
	return &Store{
		states: states,
		shards: make(map[string]*pollShard),
		outbox: make(map[string]outboxRecord),
	}
}

// SetPollState projects a registry poll into the admission catalog. It is
// the seeding hook for tests and the in-process bridge target in memory
// wiring.
func (s *Store) SetPollState(state ports.PollState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.PollID] = copyState(state)
}

// SetVotes preloads ledger rows, claiming each voter so the dedup index
// matches the ledger it fronts.
func (s *Store) SetVotes(votes []entities.Vote) {
	for _, vote := range votes {
		shard := s.shard(vote.PollID)
		shard.mu.Lock()
		shard.ledger = append(shard.ledger, vote)
		shard.claims[vote.VoterID] = struct{}{}
		shard.mu.Unlock()
		if vote.Position > s.position.Load() {
			s.position.Store(vote.Position)
		}
	}
}

func (s *Store) GetPollState(_ context.Context, pollID string) (ports.PollState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.states[strings.TrimSpace(pollID)]
	if !exists {
		return ports.PollState{}, false, nil
	}
	return copyState(state), true, nil
}

func (s *Store) TryClaim(_ context.Context, pollID string, voterID string) (bool, error) {
	shard := s.shard(pollID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if _, taken := shard.claims[voterID]; taken {
		return false, nil
	}
	shard.claims[voterID] = struct{}{}
	return true, nil
}

func (s *Store) ReleaseClaim(_ context.Context, pollID string, voterID string) error {
	shard := s.shard(pollID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	delete(shard.claims, voterID)
	return nil
}

func (s *Store) AppendVote(_ context.Context, vote entities.Vote) (int64, error) {
	shard := s.shard(vote.PollID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	// Position is taken under the shard lock so the per-poll subsequence
	// stays ordered.
	position := s.position.Add(1)
	vote.Position = position
	shard.ledger = append(shard.ledger, vote)
	return position, nil
}

func (s *Store) ReadAllVotes(_ context.Context, pollID string) ([]entities.Vote, error) {
	shard, ok := s.lookupShard(pollID)
	if !ok {
		return []entities.Vote{}, nil
	}
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	votes := make([]entities.Vote, len(shard.ledger))
	copy(votes, shard.ledger)
	return votes, nil
}

func (s *Store) PollIDs(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	ids := make([]string, 0, len(s.shards))
	for pollID, shard := range s.shards {
		shard.mu.RLock()
		hasVotes := len(shard.ledger) > 0
		shard.mu.RUnlock()
		if hasVotes {
			ids = append(ids, pollID)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *Store) IncrementOption(_ context.Context, pollID string, optionID string) error {
	shard := s.shard(pollID)

	shard.mu.RLock()
	counter, ok := shard.counters[optionID]
	shard.mu.RUnlock()
	if ok {
		counter.Add(1)
		return nil
	}

	shard.mu.Lock()
	counter, ok = shard.counters[optionID]
	if !ok {
		counter = &atomic.Int64{}
		shard.counters[optionID] = counter
	}
	shard.mu.Unlock()
	counter.Add(1)
	return nil
}

func (s *Store) GetTally(_ context.Context, pollID string) (entities.Tally, bool, error) {
	shard, ok := s.lookupShard(pollID)
	if !ok {
		return entities.Tally{}, false, nil
	}
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	if !shard.tallied && len(shard.counters) == 0 {
		return entities.Tally{}, false, nil
	}
	tally := entities.NewTally(pollID)
	for optionID, counter := range shard.counters {
		count := counter.Load()
		tally.Counts[optionID] = count
		tally.Total += count
	}
	return tally, true, nil
}

func (s *Store) ReplaceTally(_ context.Context, tally entities.Tally) error {
	shard := s.shard(tally.PollID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	counters := make(map[string]*atomic.Int64, len(tally.Counts))
	for optionID, count := range tally.Counts {
		counter := &atomic.Int64{}
		counter.Store(count)
		counters[optionID] = counter
	}
	shard.counters = counters
	shard.tallied = true
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
			return domainerrors.ErrInvalidVoteInput
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
		return domainerrors.ErrVoteNotFound
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

func (s *Store) shard(pollID string) *pollShard {
	pollID = strings.TrimSpace(pollID)
	s.mu.RLock()
	shard, ok := s.shards[pollID]
	s.mu.RUnlock()
	if ok {
		return shard
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if shard, ok := s.shards[pollID]; ok {
		return shard
	}
	shard = newPollShard()
	s.shards[pollID] = shard
	return shard
}

func (s *Store) lookupShard(pollID string) (*pollShard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shard, ok := s.shards[strings.TrimSpace(pollID)]
	return shard, ok
}

func copyState(state ports.PollState) ports.PollState {
	optionIDs := make([]string, len(state.OptionIDs))
	copy(optionIDs, state.OptionIDs)
	state.OptionIDs = optionIDs
	return state
}
