package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"agora/contexts/polling/results-service/domain/entities"
	domainerrors "agora/contexts/polling/results-service/domain/errors"
	"agora/contexts/polling/results-service/ports"
)

type reservedEvent struct {
	payloadHash string
	expiresAt   time.Time
}

type Store struct {
	mu sync.RWMutex

	polls     map[string]ports.PollSummary
	tallies   map[string]ports.TallySummary
	snapshots map[string]entities.ResultSnapshot
	reserved  map[string]reservedEvent
}

func NewStore(seed []ports.PollSummary) *Store {
	polls := make(map[string]ports.PollSummary, len(seed))
	for _, poll := range seed {
		polls[poll.PollID] = copySummary(poll)
	}
	return &Store{
		polls:     polls,
		tallies:   make(map[string]ports.TallySummary),
		snapshots: make(map[string]entities.ResultSnapshot),
		reserved:  make(map[string]reservedEvent),
	}
}

// SetPollSummary projects a registry poll into the results catalog. Seeding
// hook for tests and the in-process bridge target in memory wiring.
func (s *Store) SetPollSummary(summary ports.PollSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[summary.PollID] = copySummary(summary)
}

// SetTally seeds the counters served to CurrentTally.
func (s *Store) SetTally(tally ports.TallySummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tallies[tally.PollID] = copyTally(tally)
}

func (s *Store) GetPollSummary(_ context.Context, pollID string) (ports.PollSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, exists := s.polls[strings.TrimSpace(pollID)]
	if !exists {
		return ports.PollSummary{}, false, nil
	}
	return copySummary(summary), true, nil
}

func (s *Store) OpenPollIDs(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	ids := make([]string, 0, len(s.polls))
	for pollID, summary := range s.polls {
		if summary.Status == "open" {
			ids = append(ids, pollID)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *Store) CurrentTally(_ context.Context, pollID string) (ports.TallySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pollID = strings.TrimSpace(pollID)
	if _, exists := s.polls[pollID]; !exists {
		return ports.TallySummary{}, domainerrors.ErrPollNotFound
	}
	tally, exists := s.tallies[pollID]
	if !exists {
		return ports.TallySummary{PollID: pollID, Counts: map[string]int64{}}, nil
	}
	return copyTally(tally), nil
}

func (s *Store) GetSnapshot(_ context.Context, pollID string) (entities.ResultSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, exists := s.snapshots[strings.TrimSpace(pollID)]
	if !exists {
		return entities.ResultSnapshot{}, false, nil
	}
	return snapshot.Copy(), true, nil
}

func (s *Store) PutSnapshot(_ context.Context, snapshot entities.ResultSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snapshot.PollID] = snapshot.Copy()
	return nil
}

func (s *Store) ReserveEvent(_ context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eventID = strings.TrimSpace(eventID)
	existing, exists := s.reserved[eventID]
	if exists && existing.expiresAt.After(time.Now().UTC()) {
		if existing.payloadHash != payloadHash {
			return false, domainerrors.ErrEventConflict
		}
		return true, nil
	}
	s.reserved[eventID] = reservedEvent{
		payloadHash: payloadHash,
		expiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func copySummary(summary ports.PollSummary) ports.PollSummary {
	options := make([]ports.PollOptionSummary, len(summary.Options))
	copy(options, summary.Options)
	summary.Options = options
	return summary
}

func copyTally(tally ports.TallySummary) ports.TallySummary {
	counts := make(map[string]int64, len(tally.Counts))
	for optionID, count := range tally.Counts {
		counts[optionID] = count
	}
	tally.Counts = counts
	return tally
}
