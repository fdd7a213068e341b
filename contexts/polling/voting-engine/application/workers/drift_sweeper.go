package workers

import (
	"context"
	"errors"
	"log/slog"

	application "agora/contexts/polling/voting-engine/application"
	"agora/contexts/polling/voting-engine/application/commands"
	domainerrors "agora/contexts/polling/voting-engine/domain/errors"
	"agora/contexts/polling/voting-engine/ports"
)

// DriftSweeper replays every ledgered poll and reconciles its counters. A
// single inconsistent poll is logged and skipped so it cannot starve the
// rest of the sweep.
type DriftSweeper struct {
	Rebuild   commands.RebuildTallyUseCase
	Ledger    ports.VoteLedger
	BatchSize int
	Logger    *slog.Logger
}

func (j DriftSweeper) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	limit := j.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pollIDs, err := j.Ledger.PollIDs(ctx, limit)
	if err != nil {
		logger.Error("drift sweep poll listing failed",
			"event", "voting_drift_sweep_list_failed",
			"module", "polling/voting-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	corrected := 0
	for _, pollID := range pollIDs {
		result, err := j.Rebuild.Execute(ctx, commands.RebuildTallyCommand{PollID: pollID})
		if err != nil {
			if errors.Is(err, domainerrors.ErrTallyDrift) || errors.Is(err, domainerrors.ErrPollNotFound) {
				continue
			}
			return err
		}
		if result.Corrected {
			corrected++
		}
	}

	if corrected > 0 {
		logger.Warn("drift sweep corrected counters",
			"event", "voting_drift_sweep_completed",
			"module", "polling/voting-engine",
			"layer", "worker",
			"swept_count", len(pollIDs),
			"corrected_count", corrected,
		)
	}
	return nil
}
