package queries

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/sync/singleflight"

	resultscache "agora/contexts/polling/results-service/adapters/cache"
	"agora/contexts/polling/results-service/adapters/memory"
	domainerrors "agora/contexts/polling/results-service/domain/errors"
	"agora/contexts/polling/results-service/ports"
)

type failingDirectory struct {
	err error
}

func (d failingDirectory) GetPollSummary(context.Context, string) (ports.PollSummary, bool, error) {
	return ports.PollSummary{}, false, d.err
}

func (d failingDirectory) OpenPollIDs(context.Context, int) ([]string, error) {
	return nil, d.err
}

type failingTallies struct {
	err error
}

func (p failingTallies) CurrentTally(context.Context, string) (ports.TallySummary, error) {
	return ports.TallySummary{}, p.err
}

func seededStore() *memory.Store {
	store := memory.NewStore([]ports.PollSummary{{
		PollID: "poll-1",
		Title:  "Team lunch venue",
		Status: "open",
		Options: []ports.PollOptionSummary{
			{OptionID: "option-a", Label: "Tacos", Position: 0},
			{OptionID: "option-b", Label: "Sushi", Position: 1},
		},
	}})
	store.SetTally(ports.TallySummary{
		PollID: "poll-1",
		Counts: map[string]int64{"option-a": 3, "option-b": 1},
		Total:  4,
	})
	return store
}

func TestGetResultsComputesAndCaches(t *testing.T) {
	store := seededStore()
	cache := resultscache.NewSnapshotCache(0, 0, 0)
	useCase := GetResultsUseCase{
		Directory: store,
		Tallies:   store,
		Cache:     cache,
		Snapshots: store,
		Flight:    &singleflight.Group{},
		Clock:     store,
	}

	snapshot, err := useCase.Execute(context.Background(), GetResultsQuery{PollID: "poll-1"})
	if err != nil {
		t.Fatalf("get results failed: %v", err)
	}
	if snapshot.TotalVotes != 4 {
		t.Fatalf("expected total 4, got %d", snapshot.TotalVotes)
	}
	if len(snapshot.Options) != 2 {
		t.Fatalf("expected both options in snapshot, got %d", len(snapshot.Options))
	}
	if snapshot.Options[0].Percentage != 75 || snapshot.Options[1].Percentage != 25 {
		t.Fatalf("expected 75/25 split, got %v and %v", snapshot.Options[0].Percentage, snapshot.Options[1].Percentage)
	}
	if snapshot.Stale || snapshot.Final {
		t.Fatalf("expected fresh live snapshot, got stale=%v final=%v", snapshot.Stale, snapshot.Final)
	}

	// Fresher counters are invisible until the cache entry expires.
	store.SetTally(ports.TallySummary{
		PollID: "poll-1",
		Counts: map[string]int64{"option-a": 100},
		Total:  100,
	})
	cached, err := useCase.Execute(context.Background(), GetResultsQuery{PollID: "poll-1"})
	if err != nil {
		t.Fatalf("cached read failed: %v", err)
	}
	if cached.TotalVotes != 4 {
		t.Fatalf("expected cache hit with total 4, got %d", cached.TotalVotes)
	}

	durable, found, err := store.GetSnapshot(context.Background(), "poll-1")
	if err != nil || !found {
		t.Fatalf("expected durable snapshot persisted, found=%v err=%v", found, err)
	}
	if durable.TotalVotes != 4 {
		t.Fatalf("expected durable total 4, got %d", durable.TotalVotes)
	}
}

func TestGetResultsZeroVotesListsEveryOption(t *testing.T) {
	store := memory.NewStore([]ports.PollSummary{{
		PollID: "poll-1",
		Title:  "Team lunch venue",
		Status: "open",
		Options: []ports.PollOptionSummary{
			{OptionID: "option-a", Label: "Tacos", Position: 0},
			{OptionID: "option-b", Label: "Sushi", Position: 1},
		},
	}})
	useCase := GetResultsUseCase{
		Directory: store,
		Tallies:   store,
		Cache:     resultscache.NewSnapshotCache(0, 0, 0),
		Snapshots: store,
		Clock:     store,
	}

	snapshot, err := useCase.Execute(context.Background(), GetResultsQuery{PollID: "poll-1"})
	if err != nil {
		t.Fatalf("get results failed: %v", err)
	}
	if snapshot.TotalVotes != 0 {
		t.Fatalf("expected zero votes, got %d", snapshot.TotalVotes)
	}
	if len(snapshot.Options) != 2 {
		t.Fatalf("expected both options listed, got %d", len(snapshot.Options))
	}
	for _, option := range snapshot.Options {
		if option.VoteCount != 0 || option.Percentage != 0 {
			t.Fatalf("expected zero count and share, got %+v", option)
		}
	}
}

func TestGetResultsUnknownPoll(t *testing.T) {
	store := memory.NewStore(nil)
	useCase := GetResultsUseCase{
		Directory: store,
		Tallies:   store,
		Cache:     resultscache.NewSnapshotCache(0, 0, 0),
		Snapshots: store,
		Clock:     store,
	}

	_, err := useCase.Execute(context.Background(), GetResultsQuery{PollID: "poll-missing"})
	if err != domainerrors.ErrPollNotFound {
		t.Fatalf("expected poll not found, got %v", err)
	}
}

func TestGetResultsFinalForClosedPoll(t *testing.T) {
	store := seededStore()
	store.SetPollSummary(ports.PollSummary{
		PollID: "poll-1",
		Title:  "Team lunch venue",
		Status: "closed",
		Options: []ports.PollOptionSummary{
			{OptionID: "option-a", Label: "Tacos", Position: 0},
			{OptionID: "option-b", Label: "Sushi", Position: 1},
		},
	})
	useCase := GetResultsUseCase{
		Directory: store,
		Tallies:   store,
		Cache:     resultscache.NewSnapshotCache(0, 0, 0),
		Snapshots: store,
		Clock:     store,
	}

	snapshot, err := useCase.Execute(context.Background(), GetResultsQuery{PollID: "poll-1"})
	if err != nil {
		t.Fatalf("get results failed: %v", err)
	}
	if !snapshot.Final {
		t.Fatal("expected final snapshot for closed poll")
	}
}

func TestGetResultsServesStaleSnapshotWhenTallyUnreachable(t *testing.T) {
	store := seededStore()
	warm := GetResultsUseCase{
		Directory: store,
		Tallies:   store,
		Cache:     resultscache.NewSnapshotCache(0, 0, 0),
		Snapshots: store,
		Clock:     store,
	}
	if _, err := warm.Execute(context.Background(), GetResultsQuery{PollID: "poll-1"}); err != nil {
		t.Fatalf("warmup read failed: %v", err)
	}

	degraded := GetResultsUseCase{
		Directory: store,
		Tallies:   failingTallies{err: errors.New("tally store down")},
		Cache:     resultscache.NewSnapshotCache(0, 0, 0),
		Snapshots: store,
		Clock:     store,
	}
	snapshot, err := degraded.Execute(context.Background(), GetResultsQuery{PollID: "poll-1"})
	if err != nil {
		t.Fatalf("degraded read should serve stale snapshot: %v", err)
	}
	if !snapshot.Stale {
		t.Fatal("expected stale marker on degraded snapshot")
	}
	if snapshot.TotalVotes != 4 {
		t.Fatalf("expected last durable numbers, got total %d", snapshot.TotalVotes)
	}
}

func TestGetResultsZeroCountFallbackWithoutDurableSnapshot(t *testing.T) {
	store := memory.NewStore([]ports.PollSummary{{
		PollID: "poll-1",
		Title:  "Team lunch venue",
		Status: "open",
		Options: []ports.PollOptionSummary{
			{OptionID: "option-a", Label: "Tacos", Position: 0},
		},
	}})
	useCase := GetResultsUseCase{
		Directory: store,
		Tallies:   failingTallies{err: errors.New("tally store down")},
		Cache:     resultscache.NewSnapshotCache(0, 0, 0),
		Snapshots: store,
		Clock:     store,
	}

	snapshot, err := useCase.Execute(context.Background(), GetResultsQuery{PollID: "poll-1"})
	if err != nil {
		t.Fatalf("degraded read should not fail: %v", err)
	}
	if !snapshot.Stale || snapshot.TotalVotes != 0 {
		t.Fatalf("expected stale zero-count snapshot, got stale=%v total=%d", snapshot.Stale, snapshot.TotalVotes)
	}
	if len(snapshot.Options) != 1 {
		t.Fatalf("expected option list preserved, got %d", len(snapshot.Options))
	}
}

func TestGetResultsCatalogOutageFallsBackToDurable(t *testing.T) {
	store := seededStore()
	warm := GetResultsUseCase{
		Directory: store,
		Tallies:   store,
		Cache:     resultscache.NewSnapshotCache(0, 0, 0),
		Snapshots: store,
		Clock:     store,
	}
	if _, err := warm.Execute(context.Background(), GetResultsQuery{PollID: "poll-1"}); err != nil {
		t.Fatalf("warmup read failed: %v", err)
	}

	catalogDown := errors.New("catalog unreachable")
	degraded := GetResultsUseCase{
		Directory: failingDirectory{err: catalogDown},
		Tallies:   store,
		Cache:     resultscache.NewSnapshotCache(0, 0, 0),
		Snapshots: store,
		Clock:     store,
	}
	snapshot, err := degraded.Execute(context.Background(), GetResultsQuery{PollID: "poll-1"})
	if err != nil {
		t.Fatalf("catalog outage should fall back to durable snapshot: %v", err)
	}
	if !snapshot.Stale || snapshot.TotalVotes != 4 {
		t.Fatalf("expected stale durable snapshot, got stale=%v total=%d", snapshot.Stale, snapshot.TotalVotes)
	}

	// With nothing durable to serve, the outage surfaces.
	empty := GetResultsUseCase{
		Directory: failingDirectory{err: catalogDown},
		Tallies:   store,
		Cache:     resultscache.NewSnapshotCache(0, 0, 0),
		Snapshots: memory.NewStore(nil),
		Clock:     store,
	}
	if _, err := empty.Execute(context.Background(), GetResultsQuery{PollID: "poll-1"}); err != catalogDown {
		t.Fatalf("expected catalog error to surface, got %v", err)
	}
}
