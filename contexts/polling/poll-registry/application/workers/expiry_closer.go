package workers

import (
	"context"
	"log/slog"
	"time"

	application "agora/contexts/polling/poll-registry/application"
	"agora/contexts/polling/poll-registry/ports"
)

// ExpiryCloser sweeps open polls whose scheduled close time has passed.
type ExpiryCloser struct {
	Polls     ports.ExpiryRepository
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (j ExpiryCloser) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	now := time.Now().UTC()
	if j.Clock != nil {
		now = j.Clock.Now().UTC()
	}

	limit := j.BatchSize
	if limit <= 0 {
		limit = 100
	}

	closed, err := j.Polls.CloseExpiredPolls(ctx, now, limit)
	if err != nil {
		logger.Error("poll expiry sweep failed",
			"event", "poll_expiry_sweep_failed",
			"module", "polling/poll-registry",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(closed) > 0 {
		logger.Info("poll expiry sweep completed",
			"event", "poll_expiry_sweep_completed",
			"module", "polling/poll-registry",
			"layer", "worker",
			"closed_count", len(closed),
		)
	}
	return nil
}
