package workers

import (
	"context"
	"errors"
	"log/slog"

	application "agora/contexts/polling/results-service/application"
	"agora/contexts/polling/results-service/application/commands"
	domainerrors "agora/contexts/polling/results-service/domain/errors"
	"agora/contexts/polling/results-service/ports"
)

// RefreshSweeper re-derives snapshots for open polls on an interval, so
// results converge even when the vote event stream is delayed or dropped.
type RefreshSweeper struct {
	Directory ports.PollDirectory
	Refresh   commands.RefreshResultsUseCase
	BatchSize int
	Logger    *slog.Logger
}

func (j RefreshSweeper) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	limit := j.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pollIDs, err := j.Directory.OpenPollIDs(ctx, limit)
	if err != nil {
		logger.Error("refresh sweep listing failed",
			"event", "results_refresh_sweep_list_failed",
			"module", "polling/results-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	refreshed := 0
	for _, pollID := range pollIDs {
		result, err := j.Refresh.Execute(ctx, commands.RefreshResultsCommand{PollID: pollID})
		if err != nil {
			if errors.Is(err, domainerrors.ErrPollNotFound) {
				continue
			}
			return err
		}
		if result.Refreshed {
			refreshed++
		}
	}

	if refreshed > 0 {
		logger.Info("refresh sweep cycle completed",
			"event", "results_refresh_sweep_completed",
			"module", "polling/results-service",
			"layer", "worker",
			"swept_count", len(pollIDs),
			"refreshed_count", refreshed,
		)
	}
	return nil
}
