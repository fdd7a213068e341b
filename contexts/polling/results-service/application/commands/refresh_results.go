package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "agora/contexts/polling/results-service/application"
	"agora/contexts/polling/results-service/domain/entities"
	domainerrors "agora/contexts/polling/results-service/domain/errors"
	"agora/contexts/polling/results-service/ports"
)

// RefreshResultsCommand re-derives one poll's snapshot from the tally.
// Force bypasses the final freeze and the unchanged-total skip.
type RefreshResultsCommand struct {
	PollID string
	Force  bool
}

// RefreshResultsResult reports whether a new snapshot was written.
type RefreshResultsResult struct {
	Snapshot  entities.ResultSnapshot
	Refreshed bool
}

// RefreshResultsUseCase recomputes snapshots in the background. A refresh
// that cannot reach the tally marks the cached entry stale and keeps it; a
// refresh of a closed poll writes the final snapshot that later reads serve
// unchanged.
type RefreshResultsUseCase struct {
	Directory ports.PollDirectory
	Tallies   ports.TallyProvider
	Cache     ports.SnapshotCache
	Snapshots ports.SnapshotStore
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (uc RefreshResultsUseCase) Execute(ctx context.Context, cmd RefreshResultsCommand) (RefreshResultsResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	pollID := strings.TrimSpace(cmd.PollID)
	if pollID == "" {
		return RefreshResultsResult{}, domainerrors.ErrInvalidResultsInput
	}

	if !cmd.Force {
		if cached, ok := uc.Cache.Get(pollID); ok && cached.Final {
			return RefreshResultsResult{Snapshot: cached}, nil
		}
	}

	poll, found, err := uc.Directory.GetPollSummary(ctx, pollID)
	if err != nil {
		return RefreshResultsResult{}, err
	}
	if !found {
		return RefreshResultsResult{}, domainerrors.ErrPollNotFound
	}

	tally, err := uc.Tallies.CurrentTally(ctx, pollID)
	if err != nil {
		// Keep serving the previous numbers, visibly stale, until a later
		// refresh succeeds.
		if cached, ok := uc.Cache.Get(pollID); ok && !cached.Stale {
			cached.Stale = true
			uc.Cache.Set(cached)
		}
		logger.Error("results refresh tally read failed",
			"event", "results_refresh_tally_failed",
			"module", "polling/results-service",
			"layer", "application",
			"poll_id", pollID,
			"error", err.Error(),
		)
		return RefreshResultsResult{}, err
	}

	snapshot := application.BuildSnapshot(poll, tally, uc.now(), poll.Status == "closed")
	if !cmd.Force && !snapshot.Final {
		if cached, ok := uc.Cache.Get(pollID); ok && !cached.Stale && cached.TotalVotes == snapshot.TotalVotes {
			return RefreshResultsResult{Snapshot: cached}, nil
		}
	}

	uc.Cache.Set(snapshot)
	if err := uc.Snapshots.PutSnapshot(ctx, snapshot); err != nil {
		logger.Error("results refresh persist failed",
			"event", "results_refresh_persist_failed",
			"module", "polling/results-service",
			"layer", "application",
			"poll_id", pollID,
			"error", err.Error(),
		)
		return RefreshResultsResult{}, err
	}

	logger.Info("results snapshot refreshed",
		"event", "results_snapshot_refreshed",
		"module", "polling/results-service",
		"layer", "application",
		"poll_id", pollID,
		"total_votes", snapshot.TotalVotes,
		"final", snapshot.Final,
		"forced", cmd.Force,
	)
	return RefreshResultsResult{Snapshot: snapshot, Refreshed: true}, nil
}

func (uc RefreshResultsUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
