package queries

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	application "agora/contexts/polling/results-service/application"
	"agora/contexts/polling/results-service/domain/entities"
	domainerrors "agora/contexts/polling/results-service/domain/errors"
	"agora/contexts/polling/results-service/ports"
)

// GetResultsQuery reads the current snapshot for one poll.
type GetResultsQuery struct {
	PollID string
}

// GetResultsUseCase serves snapshots cache-first. On a miss, concurrent
// readers of the same poll collapse onto one recompute; when the tally side
// is unreachable the last durable snapshot (or a zero-count one) is served
// marked stale instead of failing the read.
type GetResultsUseCase struct {
	Directory ports.PollDirectory
	Tallies   ports.TallyProvider
	Cache     ports.SnapshotCache
	Snapshots ports.SnapshotStore
	Flight    *singleflight.Group
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (uc GetResultsUseCase) Execute(ctx context.Context, query GetResultsQuery) (entities.ResultSnapshot, error) {
	pollID := strings.TrimSpace(query.PollID)
	if pollID == "" {
		return entities.ResultSnapshot{}, domainerrors.ErrInvalidResultsInput
	}

	if snapshot, ok := uc.Cache.Get(pollID); ok {
		return snapshot, nil
	}

	if uc.Flight == nil {
		return uc.computeAndCache(ctx, pollID)
	}
	value, err, _ := uc.Flight.Do(pollID, func() (any, error) {
		return uc.computeAndCache(ctx, pollID)
	})
	if err != nil {
		return entities.ResultSnapshot{}, err
	}
	snapshot, ok := value.(entities.ResultSnapshot)
	if !ok {
		return entities.ResultSnapshot{}, domainerrors.ErrInvalidResultsInput
	}
	return snapshot, nil
}

func (uc GetResultsUseCase) computeAndCache(ctx context.Context, pollID string) (entities.ResultSnapshot, error) {
	logger := application.ResolveLogger(uc.Logger)

	// A racing reader may have filled the cache while this call waited on
	// the flight group.
	if snapshot, ok := uc.Cache.Get(pollID); ok {
		return snapshot, nil
	}

	poll, found, err := uc.Directory.GetPollSummary(ctx, pollID)
	if err != nil {
		logger.Error("results catalog lookup failed",
			"event", "results_catalog_lookup_failed",
			"module", "polling/results-service",
			"layer", "application",
			"poll_id", pollID,
			"error", err.Error(),
		)
		return uc.staleFallback(ctx, pollID, err)
	}
	if !found {
		return entities.ResultSnapshot{}, domainerrors.ErrPollNotFound
	}

	tally, err := uc.Tallies.CurrentTally(ctx, pollID)
	if err != nil {
		logger.Error("results tally read failed, serving degraded snapshot",
			"event", "results_tally_read_failed",
			"module", "polling/results-service",
			"layer", "application",
			"poll_id", pollID,
			"error", err.Error(),
		)
		if stored, ok, serr := uc.Snapshots.GetSnapshot(ctx, pollID); serr == nil && ok {
			stored.Stale = true
			return stored, nil
		}
		zero := application.BuildSnapshot(poll, ports.TallySummary{PollID: pollID, Counts: map[string]int64{}}, uc.now(), false)
		zero.Stale = true
		return zero, nil
	}

	snapshot := application.BuildSnapshot(poll, tally, uc.now(), poll.Status == "closed")
	uc.Cache.Set(snapshot)
	if err := uc.Snapshots.PutSnapshot(ctx, snapshot); err != nil {
		logger.Error("snapshot persist failed",
			"event", "results_snapshot_persist_failed",
			"module", "polling/results-service",
			"layer", "application",
			"poll_id", pollID,
			"error", err.Error(),
		)
	}
	logger.Info("results snapshot computed",
		"event", "results_snapshot_computed",
		"module", "polling/results-service",
		"layer", "application",
		"poll_id", pollID,
		"total_votes", snapshot.TotalVotes,
		"final", snapshot.Final,
	)
	return snapshot, nil
}

// staleFallback serves the last durable snapshot when the catalog itself is
// unreachable. With no snapshot to fall back on, the original error stands.
func (uc GetResultsUseCase) staleFallback(ctx context.Context, pollID string, cause error) (entities.ResultSnapshot, error) {
	stored, ok, err := uc.Snapshots.GetSnapshot(ctx, pollID)
	if err != nil || !ok {
		return entities.ResultSnapshot{}, cause
	}
	stored.Stale = true
	return stored, nil
}

func (uc GetResultsUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
